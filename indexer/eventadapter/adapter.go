package eventadapter

import (
	"github.com/beaconindexer/indexer/indexer/beacon"
	"github.com/beaconindexer/indexer/indexer/cache"
	"github.com/beaconindexer/indexer/indexer/network"
)

// RequestExists reports whether a block-by-root attempt for root is
// already tracked; indexer/store/blockrequests.Table satisfies it.
type RequestExists interface {
	Exists(root beacon.Root) bool
}

// Adapter holds the small pieces of state the translation needs: the
// root->slot cache (to recognize already-known roots, for which no
// UnknownBlockRoot is emitted; a root not in the cache is emitted again
// each time a later block's attestations reference it) and the latest
// filled slot (to
// synthesize Missed events for any gap a range response reveals).
type Adapter struct {
	roots       *cache.RootCache
	requests    RequestExists
	latestSlot  beacon.Slot
	haveLatest  bool
}

// New returns an adapter backed by roots (shared with the block persister)
// and requests (the block-by-root table, to suppress found/not-found
// events for roots nobody asked about).
func New(roots *cache.RootCache, requests RequestExists) *Adapter {
	return &Adapter{roots: roots, requests: requests}
}

// Handle translates one raw network event into zero or more semantic
// events, in the exact order spec §4.G requires (never interleaved with
// another raw event's output — callers must fully drain one Handle call's
// result before calling Handle again).
func (a *Adapter) Handle(ev network.Event) []Event {
	switch ev.Kind {
	case network.PeerConnectedOutgoing:
		return []Event{{Kind: PeerConnected, Peer: ev.Peer}}

	case network.PeerDisconnected:
		return []Event{{Kind: PeerDisconnected, Peer: ev.Peer}}

	case network.RPCFailed:
		if ev.ID.Kind == network.RangeRequestId {
			return []Event{{Kind: RangeRequestFailed, Peer: ev.Peer}}
		}
		return []Event{{Kind: BlockRequestFailed, Peer: ev.Peer, Root: ev.ID.Root}}

	case network.ResponseReceived:
		if ev.ID.Kind == network.RangeRequestId {
			return a.handleRangeResponse(ev)
		}
		return a.handleRootResponse(ev)
	}
	return nil
}

func (a *Adapter) handleRangeResponse(ev network.Event) []Event {
	block := ev.Response.RangeBlock
	if block == nil {
		return []Event{{Kind: RangeRequestSucceeded}}
	}

	a.roots.Put(block.Root, block.Slot)

	var out []Event
	out = append(out, a.newBlockEvents(block)...)

	for _, att := range dedupAttestationRoots(block) {
		if a.roots.Has(att.root) {
			continue
		}
		out = append(out, Event{Kind: UnknownBlockRoot, Slot: att.slot, Root: att.root})
	}

	a.latestSlot = block.Slot
	a.haveLatest = true

	return out
}

func (a *Adapter) handleRootResponse(ev network.Event) []Event {
	root := ev.ID.Root
	if !a.requests.Exists(root) {
		return nil
	}
	block := ev.Response.BlockByRoot
	if block == nil {
		return []Event{{Kind: BlockRootNotFound, Root: root}}
	}
	return []Event{
		{Kind: NewBlock, State: beacon.NewOrphaned(block)},
		{Kind: BlockRootFound, Root: root, Slot: block.Slot, Peer: ev.Peer},
	}
}

// newBlockEvents synthesizes a Missed event for every slot between the
// previously-seen latest slot and block's slot, followed by the Proposed
// event for block itself.
func (a *Adapter) newBlockEvents(block *beacon.SignedBlock) []Event {
	var start beacon.Slot
	if a.haveLatest {
		start = a.latestSlot + 1
	}
	var out []Event
	for s := start; s < block.Slot; s++ {
		out = append(out, Event{Kind: NewBlock, State: beacon.NewMissed(s)})
	}
	out = append(out, Event{Kind: NewBlock, State: beacon.NewProposed(block)})
	return out
}

type attestationRoot struct {
	slot beacon.Slot
	root beacon.Root
}

// dedupAttestationRoots returns the distinct (slot, root) pairs referenced
// by block's attestations, preserving first-seen order (spec §4.G:
// "scan attestations, emit UnknownBlockRoot(s,r) for each distinct
// (slot, root)").
func dedupAttestationRoots(block *beacon.SignedBlock) []attestationRoot {
	seen := make(map[attestationRoot]struct{}, len(block.Attestations))
	var out []attestationRoot
	for _, att := range block.Attestations {
		key := attestationRoot{slot: att.Slot, root: att.BeaconBlockRoot}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out
}
