package blockrequests

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/beaconindexer/indexer/indexer/beacon"
)

func TestTable_AddIsAppendOnly(t *testing.T) {
	table := New()
	root := beacon.Root{1}

	table.Add(beacon.Slot(5), root)
	table.Add(beacon.Slot(6), root)

	a := table.Get(root)
	require.NotNil(t, a)
	require.Equal(t, AwaitingPeer, a.State)
	require.Len(t, a.PossibleSlots, 2)
	_, ok := a.PossibleSlots[beacon.Slot(5)]
	require.True(t, ok)
	_, ok = a.PossibleSlots[beacon.Slot(6)]
	require.True(t, ok)
}

func TestTable_InsertPeerCollapsesToRequesting(t *testing.T) {
	table := New()
	root := beacon.Root{2}
	table.Add(beacon.Slot(1), root)

	p1 := beacon.PeerId("peer-1")
	require.True(t, table.InsertPeer(root, p1))
	require.False(t, table.InsertPeer(root, p1), "re-inserting the same peer is a no-op")

	a := table.Get(root)
	require.Equal(t, Requesting, a.State)
}

func TestTable_InsertPeerUnknownRoot(t *testing.T) {
	table := New()
	require.False(t, table.InsertPeer(beacon.Root{9}, beacon.PeerId("ghost")))
}

func TestTable_RemovePeerCollapsesBackToAwaitingPeer(t *testing.T) {
	table := New()
	root := beacon.Root{3}
	table.Add(beacon.Slot(1), root)
	p1, p2 := beacon.PeerId("p1"), beacon.PeerId("p2")
	table.InsertPeer(root, p1)
	table.InsertPeer(root, p2)

	table.RemovePeer(root, p1)
	require.Equal(t, Requesting, table.Get(root).State, "still has p2 outstanding")

	table.RemovePeer(root, p2)
	require.Equal(t, AwaitingPeer, table.Get(root).State)
}

func TestTable_RemovePeerOnFoundAttemptIsNoOp(t *testing.T) {
	table := New()
	root := beacon.Root{4}
	p := beacon.PeerId("p1")
	table.Add(beacon.Slot(1), root)
	table.InsertPeer(root, p)
	table.SetAsFound(root, p)

	table.RemovePeer(root, p)
	require.Equal(t, Found, table.Get(root).State)
}

func TestTable_RemovePeerEverywhere(t *testing.T) {
	table := New()
	p := beacon.PeerId("p1")
	rootA, rootB := beacon.Root{5}, beacon.Root{6}
	table.Add(beacon.Slot(1), rootA)
	table.Add(beacon.Slot(2), rootB)
	table.InsertPeer(rootA, p)
	table.InsertPeer(rootB, p)

	table.RemovePeerEverywhere(p)

	require.Equal(t, AwaitingPeer, table.Get(rootA).State)
	require.Equal(t, AwaitingPeer, table.Get(rootB).State)
}

func TestTable_SetAsFoundIsCAS(t *testing.T) {
	table := New()
	root := beacon.Root{7}
	p1, p2 := beacon.PeerId("p1"), beacon.PeerId("p2")

	require.True(t, table.SetAsFound(root, p1))
	require.False(t, table.SetAsFound(root, p2), "second caller for the same root loses the race")

	a := table.Get(root)
	require.Equal(t, Found, a.State)
	require.NotNil(t, a.FoundBy)
	require.Equal(t, p1, *a.FoundBy)
}

func TestTable_SetAsFoundCreatesMissingAttempt(t *testing.T) {
	table := New()
	root := beacon.Root{8}
	p := beacon.PeerId("p1")

	require.True(t, table.SetAsFound(root, p))
	require.True(t, table.Exists(root))
}

func TestTable_PendingEachSkipsFound(t *testing.T) {
	table := New()
	rootA, rootB := beacon.Root{9}, beacon.Root{10}
	table.Add(beacon.Slot(1), rootA)
	table.Add(beacon.Slot(2), rootB)
	table.SetAsFound(rootB, beacon.PeerId("p1"))

	var seen []beacon.Root
	table.PendingEach(func(root beacon.Root, a *Attempt) {
		seen = append(seen, root)
	})

	require.Equal(t, []beacon.Root{rootA}, seen)
}

func TestTable_IncrementCounters(t *testing.T) {
	table := New()
	root := beacon.Root{11}
	table.Add(beacon.Slot(1), root)

	table.IncrementFailed(root)
	table.IncrementFailed(root)
	table.IncrementNotFound(root)

	a := table.Get(root)
	require.Equal(t, uint64(2), a.FailedCount)
	require.Equal(t, uint64(1), a.NotFoundCount)

	// Unknown roots are no-ops, not panics.
	table.IncrementFailed(beacon.Root{99})
}

func TestTable_SnapshotAndRestore(t *testing.T) {
	table := New()
	root := beacon.Root{12}
	table.Add(beacon.Slot(3), root)
	table.InsertPeer(root, beacon.PeerId("p1"))

	snap := table.Snapshot()
	require.Len(t, snap, 1)

	restored := make(map[beacon.Root]*Attempt, len(snap))
	for root, a := range snap {
		coerced := a
		coerced.State = AwaitingPeer
		restored[root] = &coerced
	}

	other := New()
	other.Restore(restored)
	require.Equal(t, AwaitingPeer, other.Get(root).State)
}
