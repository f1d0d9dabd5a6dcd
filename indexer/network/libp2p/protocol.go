package libp2p

import (
	corenet "github.com/libp2p/go-libp2p-core/network"

	"github.com/beaconindexer/indexer/indexer/beacon"
)

// wireBlock is the on-wire shape of beacon.SignedBlock; kept distinct from
// the domain type so the wire format doesn't shift when the domain type
// grows fields that aren't meant to cross the network.
type wireBlock struct {
	Slot         uint64
	ParentRoot   []byte
	Root         []byte
	Attestations []wireAttestation
}

type wireAttestation struct {
	Slot            uint64
	BeaconBlockRoot []byte
	CommitteeIndex  uint64
	AggregationBits []byte
	SourceEpoch     uint64
	TargetEpoch     uint64
}

func toWireBlock(b *beacon.SignedBlock) *wireBlock {
	if b == nil {
		return nil
	}
	w := &wireBlock{
		Slot:       uint64(b.Slot),
		ParentRoot: b.ParentRoot[:],
		Root:       b.Root[:],
	}
	for _, a := range b.Attestations {
		w.Attestations = append(w.Attestations, wireAttestation{
			Slot:            uint64(a.Slot),
			BeaconBlockRoot: a.BeaconBlockRoot[:],
			CommitteeIndex:  a.CommitteeIndex,
			AggregationBits: a.AggregationBits,
			SourceEpoch:     uint64(a.SourceEpoch),
			TargetEpoch:     uint64(a.TargetEpoch),
		})
	}
	return w
}

func fromWireBlock(w *wireBlock) *beacon.SignedBlock {
	if w == nil {
		return nil
	}
	b := &beacon.SignedBlock{Slot: beacon.Slot(w.Slot)}
	copy(b.ParentRoot[:], w.ParentRoot)
	copy(b.Root[:], w.Root)
	for _, a := range w.Attestations {
		att := beacon.Attestation{
			Slot:            beacon.Slot(a.Slot),
			CommitteeIndex:  a.CommitteeIndex,
			AggregationBits: a.AggregationBits,
			SourceEpoch:     beacon.Epoch(a.SourceEpoch),
			TargetEpoch:     beacon.Epoch(a.TargetEpoch),
		}
		copy(att.BeaconBlockRoot[:], a.BeaconBlockRoot)
		b.Attestations = append(b.Attestations, att)
	}
	return b
}

// rangeRequestMsg is the wire shape of a BlocksByRange request.
type rangeRequestMsg struct {
	StartSlot uint64
	Count     uint64
}

// rangeResponseMsg carries zero or more blocks for a window in one shot;
// the indexer's driver only ever has one window outstanding, so there is
// no need for the original's per-block streaming chunks.
type rangeResponseMsg struct {
	Blocks []*wireBlock
}

// rootRequestMsg is the wire shape of a BlocksByRoot request.
type rootRequestMsg struct {
	Roots [][]byte
}

// rootResponseMsg carries the blocks found for a BlocksByRoot request, in
// the same order as the request's Roots; a missing entry is represented by
// a nil wireBlock in Blocks at that index.
type rootResponseMsg struct {
	Blocks []*wireBlock
}

// statusMsg is the minimal handshake payload; the indexer never verifies
// head/finality so it is answered with zero values (spec §6.2).
type statusMsg struct {
	ForkDigest [4]byte
}

func (h *Host) handleStatus(s corenet.Stream) {
	defer closeWriteAndDrain(s)
	var req statusMsg
	if err := readMsg(s, &req); err != nil {
		log.WithError(err).Debug("could not read status request")
		return
	}
	if err := writeMsg(s, statusMsg{ForkDigest: h.forkDigest}); err != nil {
		log.WithError(err).Debug("could not write status response")
	}
}

func (h *Host) handleIncomingRange(s corenet.Stream) {
	defer closeWriteAndDrain(s)
	var req rangeRequestMsg
	if err := readMsg(s, &req); err != nil {
		log.WithError(err).Debug("could not read range request")
		return
	}
	// This indexer is a passive observer: it never serves range data to
	// peers, only consumes it. Respond with an empty window.
	if err := writeMsg(s, rangeResponseMsg{}); err != nil {
		log.WithError(err).Debug("could not write range response")
	}
}

func (h *Host) handleIncomingRoot(s corenet.Stream) {
	defer closeWriteAndDrain(s)
	var req rootRequestMsg
	if err := readMsg(s, &req); err != nil {
		log.WithError(err).Debug("could not read block-by-root request")
		return
	}
	resp := rootResponseMsg{Blocks: make([]*wireBlock, len(req.Roots))}
	if err := writeMsg(s, resp); err != nil {
		log.WithError(err).Debug("could not write block-by-root response")
	}
}

