// Package indexer wires every component (A-J) into a single runnable
// service: the Consensus Network, the stores (peer registry, block-by-root
// table, range driver, epoch accumulator), the indexing state machine, the
// two persister workers, the resumable catalogs, and the dispatcher.
//
// Grounded on original_source/indexer/src/direct_indexer.rs.
package indexer

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/beaconindexer/indexer/indexer/cache"
	"github.com/beaconindexer/indexer/indexer/catalog"
	"github.com/beaconindexer/indexer/indexer/dispatcher"
	"github.com/beaconindexer/indexer/indexer/eventadapter"
	"github.com/beaconindexer/indexer/indexer/network/libp2p"
	"github.com/beaconindexer/indexer/indexer/persist"
	"github.com/beaconindexer/indexer/indexer/statemachine"
	"github.com/beaconindexer/indexer/indexer/store/accumulator"
	"github.com/beaconindexer/indexer/indexer/store/blockrequests"
	"github.com/beaconindexer/indexer/indexer/store/peerregistry"
	"github.com/beaconindexer/indexer/indexer/store/rangerequest"
	"github.com/beaconindexer/indexer/indexer/transition"
	"github.com/beaconindexer/indexer/shared/params"
)

var log = logrus.WithField("prefix", "indexer")

// Config carries everything needed to start an Indexer. Transition is
// pluggable so a real beacon-state implementation can replace
// transition.ReferenceTransition without touching wiring.
type Config struct {
	BaseDir      string
	P2PPort      int
	ForkDigest   [4]byte
	BootAddrs    []string
	IndexerCfg   *params.IndexerConfig
	Transition   transition.Transition
	GenesisState transition.BeaconState
}

// Indexer is the fully-wired, runnable service.
type Indexer struct {
	host       *libp2p.Host
	dispatcher *dispatcher.Dispatcher
}

// New hydrates the resumable catalogs from baseDir, builds every
// component, and dials any configured boot peers.
func New(ctx context.Context, cfg Config) (*Indexer, error) {
	if err := catalog.EnsureLayout(cfg.BaseDir, sortedFields()); err != nil {
		return nil, err
	}

	host, err := libp2p.New(ctx, cfg.P2PPort, cfg.ForkDigest)
	if err != nil {
		return nil, errors.Wrap(err, "could not start network")
	}

	roots, err := cache.New()
	if err != nil {
		return nil, errors.Wrap(err, "could not allocate root cache")
	}

	attempts, err := catalog.HydrateBlockRequests(cfg.BaseDir)
	if err != nil {
		return nil, errors.Wrap(err, "could not hydrate block requests catalog")
	}
	requests := blockrequests.New()
	requests.Restore(attempts)

	goodPeers, err := catalog.HydrateGoodPeers(cfg.BaseDir)
	if err != nil {
		return nil, errors.Wrap(err, "could not hydrate good peers catalog")
	}
	peers := peerregistry.New(host, goodPeers)

	ranges := rangerequest.New()
	accum := accumulator.New(cfg.IndexerCfg.SlotsPerEpoch)

	machine, err := resumeOrNewMachine(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "could not build indexing state machine")
	}

	if resumeEpoch, ok, err := catalog.HydrateResumeEpoch(cfg.BaseDir); err != nil {
		return nil, errors.Wrap(err, "could not hydrate resume epoch")
	} else if ok {
		accum.SetWatermark(resumeEpoch)
	}

	adapter := eventadapter.New(roots, requests)

	blockPersister, err := persist.NewBlockPersister(cfg.BaseDir, roots)
	if err != nil {
		return nil, errors.Wrap(err, "could not build block persister")
	}
	epochPersister := persist.NewEpochPersister(cfg.BaseDir)

	d := dispatcher.New(host, adapter, requests, ranges, peers, accum, machine, blockPersister, epochPersister, cfg.BaseDir)

	if err := host.DialBootAddrs(ctx, cfg.BootAddrs); err != nil {
		log.WithError(err).Warn("could not dial every boot peer")
	}

	return &Indexer{host: host, dispatcher: d}, nil
}

// Run blocks until ctx is canceled, then tears down the network after the
// dispatcher has flushed its catalogs.
func (i *Indexer) Run(ctx context.Context) error {
	err := i.dispatcher.Run(ctx)
	if closeErr := i.host.Close(); closeErr != nil {
		log.WithError(closeErr).Warn("error closing network")
	}
	return err
}

func sortedFields() []string {
	return []string{"aggregated_participation", "attestations_count"}
}

// resumeOrNewMachine rebuilds the indexing state machine from the last
// persisted beacon-state snapshot when one exists, so a restart continues
// from the last completed epoch instead of re-deriving genesis state and
// reprocessing the whole chain (spec §6.4 restart resumability).
func resumeOrNewMachine(cfg Config) (*statemachine.StateMachine, error) {
	snapshot, ok, err := catalog.HydrateStateSnapshot(cfg.BaseDir)
	if err != nil {
		return nil, err
	}
	if !ok {
		return statemachine.New(cfg.Transition, cfg.GenesisState, cfg.IndexerCfg.SlotsPerEpoch), nil
	}
	return statemachine.Resume(cfg.Transition, snapshot, cfg.IndexerCfg.SlotsPerEpoch)
}
