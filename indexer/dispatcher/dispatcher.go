// Package dispatcher implements the central work dispatcher (spec §4.H):
// a single-threaded event loop owning every Stores mutation, the sole
// writer the concurrency model (spec §5) requires.
//
// Grounded on original_source/indexer/src/network/workers/dispatcher.rs.
package dispatcher

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opencensus.io/trace"

	"github.com/beaconindexer/indexer/indexer/beacon"
	"github.com/beaconindexer/indexer/indexer/catalog"
	"github.com/beaconindexer/indexer/indexer/eventadapter"
	"github.com/beaconindexer/indexer/indexer/network"
	"github.com/beaconindexer/indexer/indexer/persist"
	"github.com/beaconindexer/indexer/indexer/statemachine"
	"github.com/beaconindexer/indexer/indexer/store/accumulator"
	"github.com/beaconindexer/indexer/indexer/store/blockrequests"
	"github.com/beaconindexer/indexer/indexer/store/peerregistry"
	"github.com/beaconindexer/indexer/indexer/store/rangerequest"
)

var log = logrus.WithField("prefix", "dispatcher")

// rangeRequestWindow is the fixed window size named by spec §4.D: "count
// is fixed at 32 (one epoch)".
const rangeRequestWindow = 32

// Dispatcher owns every piece of mutable Stores state (spec §5 rule 1) and
// is the only goroutine that ever touches them after construction.
type Dispatcher struct {
	net      network.Network
	adapter  *eventadapter.Adapter
	requests *blockrequests.Table
	ranges   *rangerequest.Driver
	peers    *peerregistry.Registry
	accum    *accumulator.Accumulator
	machine  *statemachine.StateMachine

	blockPersister *persist.BlockPersister
	epochPersister *persist.EpochPersister
	baseDir        string

	pendingBlocks map[beacon.Slot]*beacon.ConsolidatedBlock
	pendingEpochs map[beacon.Epoch]*beacon.ConsolidatedEpoch
}

// New wires one dispatcher out of its component stores. Every argument is
// expected to already be hydrated from the resumable catalogs where
// applicable.
func New(
	net network.Network,
	adapter *eventadapter.Adapter,
	requests *blockrequests.Table,
	ranges *rangerequest.Driver,
	peers *peerregistry.Registry,
	accum *accumulator.Accumulator,
	machine *statemachine.StateMachine,
	blockPersister *persist.BlockPersister,
	epochPersister *persist.EpochPersister,
	baseDir string,
) *Dispatcher {
	return &Dispatcher{
		net:            net,
		adapter:        adapter,
		requests:       requests,
		ranges:         ranges,
		peers:          peers,
		accum:          accum,
		machine:        machine,
		blockPersister: blockPersister,
		epochPersister: epochPersister,
		baseDir:        baseDir,
		pendingBlocks:  make(map[beacon.Slot]*beacon.ConsolidatedBlock),
		pendingEpochs:  make(map[beacon.Epoch]*beacon.ConsolidatedEpoch),
	}
}

// Run drains the network's event channel until ctx is canceled, flushing
// the resumable catalogs before returning (spec §5, "shutdown is
// cooperative: drain the select once, flush catalogs, return").
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return d.flush()
		case ev, ok := <-d.net.Events():
			if !ok {
				return d.flush()
			}
			d.handleRaw(ctx, ev)
		case <-ticker.C:
			connectedPeersGauge.Set(float64(len(d.net.ConnectedPeers())))
		}
	}
}

func (d *Dispatcher) flush() error {
	if err := catalog.FlushBlockRequests(d.baseDir, d.requests); err != nil {
		return errors.Wrap(err, "could not flush block requests catalog")
	}
	if err := catalog.FlushGoodPeers(d.baseDir, d.peers); err != nil {
		return errors.Wrap(err, "could not flush good peers catalog")
	}
	return nil
}

// handleRaw translates one raw network event and processes every semantic
// event it produces, in order, before returning (spec §4.G ordering
// guarantee).
func (d *Dispatcher) handleRaw(ctx context.Context, ev network.Event) {
	ctx, span := trace.StartSpan(ctx, "dispatcher.handleRaw")
	defer span.End()

	// A range response belongs to the current window only if it came from
	// the peer the driver is currently requesting against; anything else
	// is a stale response from a superseded window and is dropped (spec
	// §4.D: "response with nonce != current: ignored" — the wire protocol
	// here has no nonce field, so the owning peer stands in for it, which
	// is equivalent as long as at most one window per peer is ever
	// outstanding, which the single-in-flight-window rule guarantees).
	if ev.Kind == network.ResponseReceived && ev.ID.Kind == network.RangeRequestId && !d.ranges.MatchesPeer(ev.Peer) {
		return
	}

	for _, sem := range d.adapter.Handle(ev) {
		d.handleSemantic(ctx, sem)
	}
}

func (d *Dispatcher) handleSemantic(ctx context.Context, ev eventadapter.Event) {
	switch ev.Kind {
	case eventadapter.PeerConnected:
		d.onPeerConnected(ctx, ev.Peer)
	case eventadapter.PeerDisconnected:
		d.onPeerDisconnected(ctx, ev.Peer)
	case eventadapter.RangeRequestSucceeded:
		d.requestNextRange(ctx, nil)
	case eventadapter.RangeRequestFailed:
		rpcFailuresCounter.WithLabelValues("range").Inc()
		d.net.ReportPeer(ev.Peer, "range request failed")
		d.requestNextRange(ctx, nil)
	case eventadapter.BlockRequestFailed:
		rpcFailuresCounter.WithLabelValues("block").Inc()
		d.requests.RemovePeer(ev.Root, ev.Peer)
		d.requests.IncrementFailed(ev.Root)
	case eventadapter.NewBlock:
		d.onNewBlock(ctx, ev.State)
	case eventadapter.UnknownBlockRoot:
		d.onUnknownBlockRoot(ctx, ev.Slot, ev.Root)
	case eventadapter.BlockRootFound:
		d.onBlockRootFound(ctx, ev.Root, ev.Peer)
	case eventadapter.BlockRootNotFound:
		d.requests.IncrementNotFound(ev.Root)
	}
}

func (d *Dispatcher) onPeerConnected(ctx context.Context, p beacon.PeerId) {
	if d.ranges.Snapshot().Kind != rangerequest.Requesting {
		d.requestNextRange(ctx, &p)
	}
	d.requests.PendingEach(func(root beacon.Root, a *blockrequests.Attempt) {
		if d.requests.InsertPeer(root, p) {
			d.sendBlockByRoot(ctx, root, p)
		}
	})
}

func (d *Dispatcher) onPeerDisconnected(ctx context.Context, p beacon.PeerId) {
	if d.ranges.MatchesPeer(p) {
		d.requestNextRange(ctx, nil)
	}
	d.requests.RemovePeerEverywhere(p)
}

// requestNextRange picks preferred (if non-nil) or the best connected peer
// and sends the next BlocksByRange window; with no peer available it
// leaves (or moves) the driver to AwaitingPeer (spec §4.H:
// "SendRangeRequest(None) picks the best-scored connected peer from B; if
// none, transition the driver to AwaitingPeer").
func (d *Dispatcher) requestNextRange(ctx context.Context, preferred *beacon.PeerId) {
	d.ranges.SetIdle()

	var p beacon.PeerId
	if preferred != nil {
		p = *preferred
	} else if best, ok := d.peers.BestConnectedPeer(); ok {
		p = best
	} else {
		d.ranges.SetAwaitingPeer()
		return
	}

	nonce := d.ranges.NextNonce()
	if !d.ranges.RequestWithPeer(nonce, p) {
		return
	}

	start := beacon.Slot(0)
	if latest, ok := d.machine.LatestSlot(); ok {
		start = latest + 1
	}
	req := network.Request{Kind: network.BlocksByRange, StartSlot: start, Count: rangeRequestWindow}
	if err := d.net.SendRequest(ctx, p, network.RangeID(), req); err != nil {
		log.WithError(err).WithField("peer", p).Warn("could not send range request")
		d.ranges.SetAwaitingPeer()
	}
}

func (d *Dispatcher) sendBlockByRoot(ctx context.Context, root beacon.Root, p beacon.PeerId) {
	req := network.Request{Kind: network.BlocksByRoot, Roots: []beacon.Root{root}}
	if err := d.net.SendRequest(ctx, p, network.BlockID(root), req); err != nil {
		log.WithError(err).WithField("root", root).Warn("could not send block-by-root request")
	}
}

func (d *Dispatcher) onUnknownBlockRoot(ctx context.Context, slot beacon.Slot, root beacon.Root) {
	d.requests.Add(slot, root)
	unknownBlockRootsCounter.Inc()
	for _, p := range d.peers.ConnectedGoodPeers() {
		if d.requests.InsertPeer(root, p) {
			d.sendBlockByRoot(ctx, root, p)
		}
	}
}

func (d *Dispatcher) onBlockRootFound(ctx context.Context, root beacon.Root, p beacon.PeerId) {
	if !d.requests.SetAsFound(root, p) {
		return
	}
	blockRootsFoundCounter.Inc()
	if a := d.requests.Get(root); a != nil {
		if err := catalog.PersistFoundBlockRequest(d.baseDir, root, *a); err != nil {
			log.WithError(err).WithField("root", root).Error("could not persist found block request")
		}
	}
	if d.peers.AddGoodPeer(p) {
		if err := catalog.PersistGoodPeer(d.baseDir, p); err != nil {
			log.WithError(err).WithField("peer", p).Error("could not persist good peer")
		}
	}
}

// onNewBlock runs state in the indexing state machine (spec §4.E), then
// hands the resulting ConsolidatedBlock to the epoch accumulator (§4.F).
// Blocks are held in pendingBlocks until the accumulator confirms the
// containing epoch is complete, so persistence happens once, in slot
// order, per epoch — the accumulator's ordering guarantee covers blocks as
// well as the epoch summary, not only the summary.
func (d *Dispatcher) onNewBlock(ctx context.Context, state beacon.BlockState) {
	if state.Kind != beacon.Orphaned && !d.machine.CanProcessSlot(state.Slot) {
		log.WithField("slot", uint64(state.Slot)).Warn("dropping non-monotone block state")
		return
	}

	result, err := d.machine.ProcessBlock(ctx, state)
	if err != nil {
		log.WithError(err).WithField("slot", uint64(state.Slot)).Error("state transition failed, skipping block")
		return
	}

	if result.Block != nil {
		d.pendingBlocks[state.Slot] = result.Block
	}
	if result.Epoch != nil {
		d.pendingEpochs[result.Epoch.Epoch] = result.Epoch
	}

	work := d.accum.Insert(state)
	switch work.Kind {
	case accumulator.PersistBlock:
		d.persistLateOrphan(ctx, state.Slot, work.Block)
	case accumulator.PersistEpoch:
		d.persistEpoch(ctx, work.Epoch)
	}
}

func (d *Dispatcher) persistLateOrphan(ctx context.Context, slot beacon.Slot, block *beacon.SignedBlock) {
	cb, ok := d.pendingBlocks[slot]
	if !ok {
		cb = &beacon.ConsolidatedBlock{State: beacon.NewOrphaned(block)}
	}
	delete(d.pendingBlocks, slot)
	if err := d.blockPersister.Persist(ctx, cb); err != nil {
		log.WithError(err).WithField("slot", uint64(slot)).Error("could not persist late orphan")
		return
	}
	blocksProcessedCounter.Inc()
}

func (d *Dispatcher) persistEpoch(ctx context.Context, epoch accumulator.Epoch) {
	slots := make([]beacon.Slot, 0, len(epoch.Slots))
	for slot := range epoch.Slots {
		slots = append(slots, slot)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i] < slots[j] })

	for _, slot := range slots {
		cb, ok := d.pendingBlocks[slot]
		if !ok {
			cb = &beacon.ConsolidatedBlock{State: epoch.Slots[slot]}
		}
		delete(d.pendingBlocks, slot)
		if err := d.blockPersister.Persist(ctx, cb); err != nil {
			log.WithError(err).WithField("slot", uint64(slot)).Error("could not persist block")
			continue
		}
		blocksProcessedCounter.Inc()
	}

	ce, ok := d.pendingEpochs[epoch.Number]
	if !ok {
		log.WithField("epoch", uint64(epoch.Number)).Warn("epoch completed with no summary, skipping epoch persistence")
		return
	}
	delete(d.pendingEpochs, epoch.Number)
	if err := d.epochPersister.Persist(ctx, ce); err != nil {
		log.WithError(err).WithField("epoch", uint64(epoch.Number)).Error("could not persist epoch")
		return
	}
	epochsProcessedCounter.Inc()

	if snapshot, ok, err := d.machine.Snapshot(); err != nil {
		log.WithError(err).WithField("epoch", uint64(epoch.Number)).Error("could not snapshot beacon state")
	} else if ok {
		if err := catalog.PersistStateSnapshot(d.baseDir, snapshot); err != nil {
			log.WithError(err).WithField("epoch", uint64(epoch.Number)).Error("could not persist beacon state snapshot")
		}
	}
}
