package catalog

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/beaconindexer/indexer/indexer/beacon"
	"github.com/beaconindexer/indexer/indexer/store/blockrequests"
	"github.com/beaconindexer/indexer/indexer/store/peerregistry"
	"github.com/beaconindexer/indexer/shared/fileutil"
)

func TestEnsureLayoutCreatesEveryDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, EnsureLayout(dir, []string{"aggregated_participation", "attestations_count"}))

	for _, d := range []string{
		"blocks", "blocks/e", "blocks/a", "blocks/c", "blocks/v", "blocks/root",
		"epochs", "epochs/e", "epochs/s/aggregated_participation", "epochs/s/attestations_count",
		blockRequestsDir, goodPeersDir, "validators",
	} {
		ok, err := fileutil.HasDir(filepath.Join(dir, d))
		require.NoError(t, err)
		require.True(t, ok, "expected directory %s to exist", d)
	}
}

func TestHydrateBlockRequestsOnEmptyBaseDirIsEmpty(t *testing.T) {
	dir := t.TempDir()
	attempts, err := HydrateBlockRequests(dir)
	require.NoError(t, err)
	require.Empty(t, attempts)
}

func TestBlockRequestsFlushAndHydrateRoundTrip(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, EnsureLayout(dir, nil))

	table := blockrequests.New()
	root := beacon.Root{1, 2, 3}
	table.Add(beacon.Slot(5), root)
	table.InsertPeer(root, beacon.PeerId("p1"))
	table.IncrementFailed(root)

	require.NoError(t, FlushBlockRequests(dir, table))

	attempts, err := HydrateBlockRequests(dir)
	require.NoError(t, err)
	require.Len(t, attempts, 1)

	a, ok := attempts[root]
	require.True(t, ok)
	require.Equal(t, blockrequests.AwaitingPeer, a.State, "rehydrated attempts must coerce back to AwaitingPeer")
	require.Equal(t, uint64(1), a.FailedCount)
	_, hasSlot := a.PossibleSlots[beacon.Slot(5)]
	require.True(t, hasSlot)
}

func TestPersistFoundBlockRequestPersistsFoundByImmediately(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, EnsureLayout(dir, nil))

	root := beacon.Root{9}
	foundBy := beacon.PeerId("p1")
	attempt := blockrequests.Attempt{
		PossibleSlots: map[beacon.Slot]struct{}{5: {}},
		State:         blockrequests.Found,
		FoundBy:       &foundBy,
	}
	require.NoError(t, PersistFoundBlockRequest(dir, root, attempt))

	attempts, err := HydrateBlockRequests(dir)
	require.NoError(t, err)
	require.Contains(t, attempts, root)
}

func TestGoodPeersFlushAndHydrateRoundTrip(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, EnsureLayout(dir, nil))

	registry := peerregistry.New(&noopNetwork{}, nil)
	registry.AddGoodPeer(beacon.PeerId("p1"))
	registry.AddGoodPeer(beacon.PeerId("p2"))

	require.NoError(t, FlushGoodPeers(dir, registry))

	peers, err := HydrateGoodPeers(dir)
	require.NoError(t, err)
	require.Len(t, peers, 2)
	_, ok := peers[beacon.PeerId("p1")]
	require.True(t, ok)
}

func TestPersistGoodPeerSingle(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, EnsureLayout(dir, nil))

	require.NoError(t, PersistGoodPeer(dir, beacon.PeerId("solo")))

	peers, err := HydrateGoodPeers(dir)
	require.NoError(t, err)
	require.Contains(t, peers, beacon.PeerId("solo"))
}

func TestHydrateGoodPeersOnMissingDirIsEmpty(t *testing.T) {
	dir := t.TempDir()
	peers, err := HydrateGoodPeers(dir)
	require.NoError(t, err)
	require.Empty(t, peers)
}

func TestStateSnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, EnsureLayout(dir, nil))

	_, ok, err := HydrateStateSnapshot(dir)
	require.NoError(t, err)
	require.False(t, ok, "no snapshot exists on a first-ever run")

	want := []byte{1, 2, 3, 4}
	require.NoError(t, PersistStateSnapshot(dir, want))

	got, ok, err := HydrateStateSnapshot(dir)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, want, got)
}

func TestHydrateResumeEpochOnFirstRunIsNotOk(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, EnsureLayout(dir, nil))

	_, ok, err := HydrateResumeEpoch(dir)
	require.NoError(t, err)
	require.False(t, ok)
}

type noopNetwork struct{}

func (noopNetwork) IsConnected(beacon.PeerId) bool     { return false }
func (noopNetwork) ConnectedPeers() []beacon.PeerId     { return nil }
