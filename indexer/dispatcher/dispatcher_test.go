package dispatcher

import (
	"context"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/beaconindexer/indexer/indexer/beacon"
	"github.com/beaconindexer/indexer/indexer/cache"
	"github.com/beaconindexer/indexer/indexer/catalog"
	"github.com/beaconindexer/indexer/indexer/eventadapter"
	"github.com/beaconindexer/indexer/indexer/network"
	"github.com/beaconindexer/indexer/indexer/network/simnet"
	"github.com/beaconindexer/indexer/indexer/persist"
	"github.com/beaconindexer/indexer/indexer/statemachine"
	"github.com/beaconindexer/indexer/indexer/store/accumulator"
	"github.com/beaconindexer/indexer/indexer/store/blockrequests"
	"github.com/beaconindexer/indexer/indexer/store/peerregistry"
	"github.com/beaconindexer/indexer/indexer/store/rangerequest"
	"github.com/beaconindexer/indexer/indexer/transition"
	"github.com/beaconindexer/indexer/shared/fileutil"
)

const testSlotsPerEpoch = 4

type harness struct {
	net *simnet.Simnet
	d   *Dispatcher
}

func newHarness(t *testing.T, goodPeers ...beacon.PeerId) harness {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, catalog.EnsureLayout(dir, nil))

	net := simnet.New()
	roots, err := cache.New()
	require.NoError(t, err)

	seed := make(map[beacon.PeerId]struct{}, len(goodPeers))
	for _, p := range goodPeers {
		seed[p] = struct{}{}
	}

	requests := blockrequests.New()
	ranges := rangerequest.New()
	peers := peerregistry.New(net, seed)
	accum := accumulator.New(testSlotsPerEpoch)
	machine := statemachine.New(
		transition.NewReferenceTransition(testSlotsPerEpoch),
		transition.NewReferenceState(testSlotsPerEpoch, 4),
		testSlotsPerEpoch,
	)
	adapter := eventadapter.New(roots, requests)

	blockPersister, err := persist.NewBlockPersister(dir, roots)
	require.NoError(t, err)
	epochPersister := persist.NewEpochPersister(dir)

	d := New(net, adapter, requests, ranges, peers, accum, machine, blockPersister, epochPersister, dir)
	return harness{net: net, d: d}
}

func (h harness) baseDir() string { return h.d.baseDir }

func TestDispatcher_PeerConnectTriggersRangeRequest(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.d.Run(ctx)

	h.net.ConnectPeer("p1")

	require.Eventually(t, func() bool {
		return len(h.net.SentRequests()) == 1
	}, time.Second, time.Millisecond)

	sent := h.net.SentRequests()[0]
	require.Equal(t, network.BlocksByRange, sent.Request.Kind)
	require.Equal(t, beacon.Slot(0), sent.Request.StartSlot)
	require.Equal(t, beacon.PeerId("p1"), sent.Peer)
}

func TestDispatcher_FullEpochPersistsBlocksAndEpochSummary(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.d.Run(ctx)

	h.net.ConnectPeer("p1")
	require.Eventually(t, func() bool { return len(h.net.SentRequests()) == 1 }, time.Second, time.Millisecond)

	for slot := beacon.Slot(0); slot < testSlotsPerEpoch; slot++ {
		h.net.DeliverRangeBlock("p1", &beacon.SignedBlock{Slot: slot, Root: beacon.Root{byte(slot) + 1}})
	}

	require.Eventually(t, func() bool {
		for slot := beacon.Slot(0); slot < testSlotsPerEpoch; slot++ {
			name := filepath.Join(h.baseDir(), "blocks", "e", strconv.FormatUint(uint64(slot), 10)+".msg")
			if !fileutil.FileExists(name) {
				return false
			}
		}
		epochFile := filepath.Join(h.baseDir(), "epochs", "e", "0.msg")
		return fileutil.FileExists(epochFile)
	}, 2*time.Second, 5*time.Millisecond)
}

func TestDispatcher_UnknownBlockRootFansOutToGoodPeers(t *testing.T) {
	h := newHarness(t, beacon.PeerId("p1"))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.d.Run(ctx)

	h.net.ConnectPeer("p1")
	require.Eventually(t, func() bool { return len(h.net.SentRequests()) == 1 }, time.Second, time.Millisecond)

	unknownRoot := beacon.Root{42}
	block := &beacon.SignedBlock{
		Slot:         0,
		Attestations: []beacon.Attestation{{Slot: 0, BeaconBlockRoot: unknownRoot}},
	}
	h.net.DeliverRangeBlock("p1", block)

	require.Eventually(t, func() bool {
		for _, r := range h.net.SentRequests() {
			if r.Request.Kind == network.BlocksByRoot {
				return true
			}
		}
		return false
	}, time.Second, time.Millisecond)
}
