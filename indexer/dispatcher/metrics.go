package dispatcher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	blocksProcessedCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "indexer_blocks_processed_total",
			Help: "Count of ConsolidatedBlocks handed to the block persister.",
		},
	)
	epochsProcessedCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "indexer_epochs_processed_total",
			Help: "Count of ConsolidatedEpochs handed to the epoch persister.",
		},
	)
	unknownBlockRootsCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "indexer_unknown_block_roots_total",
			Help: "Count of UnknownBlockRoot events (attested roots not yet known) fanned out for recovery; a root reported again is counted again.",
		},
	)
	blockRootsFoundCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "indexer_block_roots_found_total",
			Help: "Count of block-by-root recoveries that completed successfully.",
		},
	)
	rpcFailuresCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexer_rpc_failures_total",
			Help: "Count of RPC failures by request kind.",
		},
		[]string{"kind"},
	)
	connectedPeersGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "indexer_connected_peers",
			Help: "Number of peers currently connected.",
		},
	)
)
