package peerregistry

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/beaconindexer/indexer/indexer/beacon"
)

type fakeNetwork struct {
	connected []beacon.PeerId
}

func (f *fakeNetwork) IsConnected(p beacon.PeerId) bool {
	for _, c := range f.connected {
		if c == p {
			return true
		}
	}
	return false
}

func (f *fakeNetwork) ConnectedPeers() []beacon.PeerId { return f.connected }

func TestRegistry_AddGoodPeerOnlyReturnsTrueOnce(t *testing.T) {
	r := New(&fakeNetwork{}, nil)
	p := beacon.PeerId("p1")

	require.True(t, r.AddGoodPeer(p))
	require.False(t, r.AddGoodPeer(p))
	require.True(t, r.IsGoodPeer(p))
}

func TestRegistry_BestConnectedPeerPrefersGood(t *testing.T) {
	net := &fakeNetwork{connected: []beacon.PeerId{"p1", "p2"}}
	r := New(net, nil)
	r.AddGoodPeer("p2")

	best, ok := r.BestConnectedPeer()
	require.True(t, ok)
	require.Equal(t, beacon.PeerId("p2"), best)
}

func TestRegistry_BestConnectedPeerFallsBackToAny(t *testing.T) {
	net := &fakeNetwork{connected: []beacon.PeerId{"p1"}}
	r := New(net, nil)

	best, ok := r.BestConnectedPeer()
	require.True(t, ok)
	require.Equal(t, beacon.PeerId("p1"), best)
}

func TestRegistry_BestConnectedPeerNoneConnected(t *testing.T) {
	r := New(&fakeNetwork{}, nil)
	_, ok := r.BestConnectedPeer()
	require.False(t, ok)
}

func TestRegistry_ConnectedGoodPeersFiltersByConnection(t *testing.T) {
	net := &fakeNetwork{connected: []beacon.PeerId{"p1", "p3"}}
	seed := map[beacon.PeerId]struct{}{"p1": {}, "p2": {}}
	r := New(net, seed)

	good := r.ConnectedGoodPeers()
	require.ElementsMatch(t, []beacon.PeerId{"p1"}, good)
}

func TestRegistry_SnapshotReturnsEverySeenGoodPeer(t *testing.T) {
	r := New(&fakeNetwork{}, nil)
	r.AddGoodPeer("p1")
	r.AddGoodPeer("p2")

	require.ElementsMatch(t, []beacon.PeerId{"p1", "p2"}, r.Snapshot())
}

func TestRegistry_SeededFromDisk(t *testing.T) {
	seed := map[beacon.PeerId]struct{}{"p1": {}}
	r := New(&fakeNetwork{}, seed)
	require.True(t, r.IsGoodPeer("p1"))
}
