package params

import "time"

// NetworkConfig defines the spec based network parameters. The libp2p
// transport in indexer/network/libp2p does not read it; it uses its own
// constants.
type NetworkConfig struct {
	GossipMaxSize                   uint64        `yaml:"GOSSIP_MAX_SIZE"`                    // GossipMaxSize is the maximum allowed size of uncompressed gossip messages.
	MaxChunkSize                    uint64        `yaml:"MAX_CHUNK_SIZE"`                     // MaxChunkSize is the the maximum allowed size of uncompressed req/resp chunked responses.
	AttestationSubnetCount          uint64        `yaml:"ATTESTATION_SUBNET_COUNT"`           // AttestationSubnetCount is the number of attestation subnets used in the gossipsub protocol.
	AttestationPropagationSlotRange uint64        `yaml:"ATTESTATION_PROPAGATION_SLOT_RANGE"` // AttestationPropagationSlotRange is the maximum number of slots during which an attestation can be propagated.
	TtfbTimeout                     time.Duration `yaml:"TTFB_TIMEOUT"`                       // TtfbTimeout is the maximum time to wait for first byte of request response (time-to-first-byte).
	RespTimeout                     time.Duration `yaml:"RESP_TIMEOUT"`                       // RespTimeout is the maximum time for complete response transfer.
	MaximumGossipClockDisparity     time.Duration `yaml:"MAXIMUM_GOSSIP_CLOCK_DISPARITY"`     // MaximumGossipClockDisparity is the maximum milliseconds of clock disparity assumed between honest nodes.

	// DiscoveryV5 Config
	ETH2Key      string // ETH2Key is the ENR key of the eth2 object in an enr.
	AttSubnetKey string // AttSubnetKey is the ENR key of the subnet bitfield in the enr.
}

var defaultNetworkConfig = &NetworkConfig{
	GossipMaxSize:                   1 << 20, // 1 MiB
	MaxChunkSize:                    1 << 20, // 1 MiB
	AttestationSubnetCount:          64,
	AttestationPropagationSlotRange: 32,
	TtfbTimeout:                     5 * time.Second,
	RespTimeout:                     10 * time.Second,
	MaximumGossipClockDisparity:     500 * time.Millisecond,
	ETH2Key:                         "eth2",
	AttSubnetKey:                    "attnets",
}

// BeaconNetworkConfig returns the current network config for the beacon
// chain transport.
func BeaconNetworkConfig() *NetworkConfig {
	return defaultNetworkConfig
}

// IndexerConfig carries the indexing parameters that the original EthSpec
// polymorphism would otherwise hide behind a compile-time type parameter.
// Every component that needs one of these values takes an IndexerConfig
// explicitly rather than reading a package global, so a single process can
// in principle run more than one network's parameters side by side.
type IndexerConfig struct {
	// SlotsPerEpoch is the number of slots the epoch accumulator buffers
	// before a PersistEpoch is triggered.
	SlotsPerEpoch uint64
	// NotFoundForgetThreshold is the configured number of "not found"
	// responses for a block-by-root request. The dispatcher only counts
	// not-found responses per request; it does not read this value and
	// never gives up on a request because of that count.
	NotFoundForgetThreshold uint64
	// RangeRequestCount is the configured number of slots per
	// BlocksByRange call. The dispatcher does not read it; it always
	// requests its fixed 32-slot window (rangeRequestWindow).
	RangeRequestCount uint64
}

// DefaultIndexerConfig returns the mainnet-shaped indexer parameters.
func DefaultIndexerConfig() *IndexerConfig {
	return &IndexerConfig{
		SlotsPerEpoch:           32,
		NotFoundForgetThreshold: 10,
		RangeRequestCount:       32,
	}
}
