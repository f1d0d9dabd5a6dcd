package libp2p

import (
	"context"

	"github.com/pkg/errors"

	"github.com/beaconindexer/indexer/indexer/beacon"
	idxnet "github.com/beaconindexer/indexer/indexer/network"
)

// SendRequest implements network.Network. It opens a stream for the
// request's protocol, applies a per-peer leaky-bucket rate limit, and
// delivers the eventual outcome asynchronously as a ResponseReceived or
// RPCFailed event so the dispatcher's select loop never blocks on I/O.
func (h *Host) SendRequest(ctx context.Context, p beacon.PeerId, id idxnet.RequestId, req idxnet.Request) error {
	limiter := h.limiterFor(p)
	if limiter.Add(1) == 0 {
		return errors.Errorf("rate limit exceeded for peer %s", p)
	}

	go h.doRequest(ctx, p, id, req)
	return nil
}

func (h *Host) doRequest(ctx context.Context, p beacon.PeerId, id idxnet.RequestId, req idxnet.Request) {
	ctx, cancel := context.WithTimeout(ctx, rpcTimeout)
	defer cancel()

	switch req.Kind {
	case idxnet.BlocksByRange:
		h.doRangeRequest(ctx, p, req)
	case idxnet.BlocksByRoot:
		h.doRootRequest(ctx, p, id, req)
	default:
		log.WithField("kind", req.Kind).Error("unsupported outbound request kind")
	}
}

func (h *Host) doRangeRequest(ctx context.Context, p beacon.PeerId, req idxnet.Request) {
	s, err := h.h.NewStream(ctx, p, rangeProtocol)
	if err != nil {
		h.fail(p, idxnet.RangeID())
		return
	}
	defer closeWriteAndDrain(s)

	if err := writeMsg(s, rangeRequestMsg{StartSlot: uint64(req.StartSlot), Count: req.Count}); err != nil {
		h.fail(p, idxnet.RangeID())
		return
	}

	var resp rangeResponseMsg
	if err := readMsg(s, &resp); err != nil {
		h.fail(p, idxnet.RangeID())
		return
	}

	if len(resp.Blocks) == 0 {
		h.events <- idxnet.Event{Kind: idxnet.ResponseReceived, Peer: p, ID: idxnet.RangeID(), Response: &idxnet.Response{}}
		return
	}
	for _, wb := range resp.Blocks {
		h.events <- idxnet.Event{
			Kind: idxnet.ResponseReceived,
			Peer: p,
			ID:   idxnet.RangeID(),
			Response: &idxnet.Response{RangeBlock: fromWireBlock(wb)},
		}
	}
}

func (h *Host) doRootRequest(ctx context.Context, p beacon.PeerId, id idxnet.RequestId, req idxnet.Request) {
	s, err := h.h.NewStream(ctx, p, rootProtocol)
	if err != nil {
		h.fail(p, id)
		return
	}
	defer closeWriteAndDrain(s)

	roots := make([][]byte, len(req.Roots))
	for i, r := range req.Roots {
		root := r
		roots[i] = root[:]
	}
	if err := writeMsg(s, rootRequestMsg{Roots: roots}); err != nil {
		h.fail(p, id)
		return
	}

	var resp rootResponseMsg
	if err := readMsg(s, &resp); err != nil {
		h.fail(p, id)
		return
	}

	var block *beacon.SignedBlock
	if len(resp.Blocks) > 0 {
		block = fromWireBlock(resp.Blocks[0])
	}
	h.events <- idxnet.Event{
		Kind:     idxnet.ResponseReceived,
		Peer:     p,
		ID:       id,
		Response: &idxnet.Response{BlockByRoot: block},
	}
}

func (h *Host) fail(p beacon.PeerId, id idxnet.RequestId) {
	h.events <- idxnet.Event{Kind: idxnet.RPCFailed, Peer: p, ID: id}
}
