package eventadapter

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/beaconindexer/indexer/indexer/beacon"
	"github.com/beaconindexer/indexer/indexer/cache"
	"github.com/beaconindexer/indexer/indexer/network"
)

type fakeRequests struct {
	known map[beacon.Root]struct{}
}

func (f *fakeRequests) Exists(root beacon.Root) bool {
	_, ok := f.known[root]
	return ok
}

func newAdapter(t *testing.T, known ...beacon.Root) *Adapter {
	t.Helper()
	roots, err := cache.New()
	require.NoError(t, err)

	set := make(map[beacon.Root]struct{}, len(known))
	for _, r := range known {
		set[r] = struct{}{}
	}
	return New(roots, &fakeRequests{known: set})
}

func TestAdapter_PeerConnected(t *testing.T) {
	a := newAdapter(t)
	events := a.Handle(network.Event{Kind: network.PeerConnectedOutgoing, Peer: beacon.PeerId("p1")})
	require.Equal(t, []Event{{Kind: PeerConnected, Peer: beacon.PeerId("p1")}}, events)
}

func TestAdapter_PeerDisconnected(t *testing.T) {
	a := newAdapter(t)
	events := a.Handle(network.Event{Kind: network.PeerDisconnected, Peer: beacon.PeerId("p1")})
	require.Equal(t, []Event{{Kind: PeerDisconnected, Peer: beacon.PeerId("p1")}}, events)
}

func TestAdapter_RPCFailedRangeVsBlock(t *testing.T) {
	a := newAdapter(t)

	rangeEvents := a.Handle(network.Event{Kind: network.RPCFailed, Peer: "p1", ID: network.RangeID()})
	require.Equal(t, []Event{{Kind: RangeRequestFailed, Peer: "p1"}}, rangeEvents)

	root := beacon.Root{1}
	blockEvents := a.Handle(network.Event{Kind: network.RPCFailed, Peer: "p1", ID: network.BlockID(root)})
	require.Equal(t, []Event{{Kind: BlockRequestFailed, Peer: "p1", Root: root}}, blockEvents)
}

func TestAdapter_EmptyRangeResponseSignalsSucceeded(t *testing.T) {
	a := newAdapter(t)
	events := a.Handle(network.Event{
		Kind:     network.ResponseReceived,
		ID:       network.RangeID(),
		Response: &network.Response{},
	})
	require.Equal(t, []Event{{Kind: RangeRequestSucceeded}}, events)
}

func TestAdapter_RangeResponseSynthesizesMissedGaps(t *testing.T) {
	a := newAdapter(t)
	ctx := func(slot beacon.Slot) *network.Event {
		return &network.Event{
			Kind:     network.ResponseReceived,
			ID:       network.RangeID(),
			Response: &network.Response{RangeBlock: &beacon.SignedBlock{Slot: slot}},
		}
	}

	first := a.Handle(*ctx(0))
	require.Equal(t, []Event{{Kind: NewBlock, State: beacon.NewProposed(&beacon.SignedBlock{Slot: 0})}}, first)

	// Slot 3 arrives next: slots 1 and 2 must be synthesized as Missed.
	second := a.Handle(*ctx(3))
	require.Len(t, second, 3)
	require.Equal(t, Event{Kind: NewBlock, State: beacon.NewMissed(1)}, second[0])
	require.Equal(t, Event{Kind: NewBlock, State: beacon.NewMissed(2)}, second[1])
	require.Equal(t, NewBlock, second[2].Kind)
	require.Equal(t, beacon.Proposed, second[2].State.Kind)
}

func TestAdapter_RangeResponseEmitsUnknownBlockRootForNewAttestedRoots(t *testing.T) {
	a := newAdapter(t)
	unknown := beacon.Root{5}
	block := &beacon.SignedBlock{
		Slot: 0,
		Attestations: []beacon.Attestation{
			{Slot: 0, BeaconBlockRoot: unknown},
			{Slot: 0, BeaconBlockRoot: unknown}, // duplicate, must be deduped
		},
	}

	events := a.Handle(network.Event{
		Kind:     network.ResponseReceived,
		ID:       network.RangeID(),
		Response: &network.Response{RangeBlock: block},
	})

	require.Len(t, events, 2)
	require.Equal(t, NewBlock, events[0].Kind)
	require.Equal(t, Event{Kind: UnknownBlockRoot, Slot: 0, Root: unknown}, events[1])
}

func TestAdapter_RangeResponseExcludesOwnBlockRootFromUnknownBlockRoot(t *testing.T) {
	a := newAdapter(t)
	ownRoot := beacon.Root{6}
	block := &beacon.SignedBlock{
		Slot:         0,
		Root:         ownRoot,
		Attestations: []beacon.Attestation{{Slot: 0, BeaconBlockRoot: ownRoot}},
	}

	events := a.Handle(network.Event{
		Kind:     network.ResponseReceived,
		ID:       network.RangeID(),
		Response: &network.Response{RangeBlock: block},
	})

	require.Len(t, events, 1, "the block's own root must already be cached before the attestation scan runs")
	require.Equal(t, NewBlock, events[0].Kind)

	require.True(t, a.roots.Has(ownRoot))
}

func TestAdapter_RangeResponseSkipsAlreadyKnownRoots(t *testing.T) {
	known := beacon.Root{7}
	a := newAdapter(t)
	a.roots.Put(known, beacon.Slot(0))

	block := &beacon.SignedBlock{
		Slot:         1,
		Attestations: []beacon.Attestation{{Slot: 0, BeaconBlockRoot: known}},
	}
	events := a.Handle(network.Event{
		Kind:     network.ResponseReceived,
		ID:       network.RangeID(),
		Response: &network.Response{RangeBlock: block},
	})

	require.Len(t, events, 2) // one Missed(0) gap + the Proposed block, no UnknownBlockRoot
	require.Equal(t, Event{Kind: NewBlock, State: beacon.NewMissed(0)}, events[0])
}

func TestAdapter_RootResponseNotFoundForUntrackedRoot(t *testing.T) {
	a := newAdapter(t)
	events := a.Handle(network.Event{
		Kind: network.ResponseReceived,
		ID:   network.BlockID(beacon.Root{9}),
	})
	require.Nil(t, events, "a response for a root nobody is tracking is ignored")
}

func TestAdapter_RootResponseFound(t *testing.T) {
	root := beacon.Root{9}
	a := newAdapter(t, root)
	block := &beacon.SignedBlock{Slot: 10, Root: root}

	events := a.Handle(network.Event{
		Kind:     network.ResponseReceived,
		ID:       network.BlockID(root),
		Peer:     "p1",
		Response: &network.Response{BlockByRoot: block},
	})

	require.Len(t, events, 2)
	require.Equal(t, NewBlock, events[0].Kind)
	require.Equal(t, beacon.Orphaned, events[0].State.Kind)
	require.Equal(t, Event{Kind: BlockRootFound, Root: root, Slot: 10, Peer: "p1"}, events[1])
}

func TestAdapter_RootResponseNotFound(t *testing.T) {
	root := beacon.Root{9}
	a := newAdapter(t, root)

	events := a.Handle(network.Event{
		Kind:     network.ResponseReceived,
		ID:       network.BlockID(root),
		Response: &network.Response{},
	})

	require.Equal(t, []Event{{Kind: BlockRootNotFound, Root: root}}, events)
}
