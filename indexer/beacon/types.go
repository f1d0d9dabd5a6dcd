// Package beacon defines the indexer's domain types: the chain coordinates
// (Slot, Epoch, Root), the wire payloads it consumes (SignedBlock,
// Attestation), and the derived records the indexing state machine
// produces (BlockState, ConsolidatedBlock, ConsolidatedEpoch).
//
// Grounded on original_source's indexer/src/types/*.rs; field names follow
// that source, expressed as Go value/interface types instead of Rust enums.
package beacon

import (
	"github.com/libp2p/go-libp2p-core/peer"
	"github.com/prysmaticlabs/go-bitfield"
)

// Slot is a discrete chain tick; SlotsPerEpoch consecutive slots make an
// epoch.
type Slot uint64

// Epoch is a state-transition boundary: Epoch(s) = Slot(s) / slotsPerEpoch.
func (s Slot) Epoch(slotsPerEpoch uint64) Epoch {
	return Epoch(uint64(s) / slotsPerEpoch)
}

// Epoch identifies a 32-slot (by default) window.
type Epoch uint64

// Root is a block's canonical 256-bit hash.
type Root [32]byte

// PeerId is the libp2p peer identity used throughout the indexer; aliasing
// it keeps every package from importing go-libp2p-core directly.
type PeerId = peer.ID

// SignedBlock is the opaque wire payload the Consensus Network delivers.
// The indexer never verifies its signature (spec Non-goal); it only reads
// the fields needed to drive state transition and persistence.
type SignedBlock struct {
	Slot        Slot
	ParentRoot  Root
	Root        Root
	Attestations []Attestation
}

// Attestation carries the fields the indexer needs to resolve orphaned
// blocks and to compute per-slot vote counts. AggregationBits uses the
// same bitlist representation as the wire format (MSB sentinel bit).
type Attestation struct {
	Slot              Slot
	BeaconBlockRoot   Root
	CommitteeIndex    uint64
	AggregationBits   bitfield.Bitlist
	SourceEpoch       Epoch
	TargetEpoch       Epoch
}

// BlockStateKind discriminates the three ways a slot can be observed.
type BlockStateKind int

const (
	// Proposed means the block was observed via a range response.
	Proposed BlockStateKind = iota
	// Orphaned means the block was observed via a block-by-root response
	// for a root that never appeared on the canonical chain.
	Orphaned
	// Missed means no block was ever delivered for the slot; it is
	// synthesized once the chain advances past it.
	Missed
)

func (k BlockStateKind) String() string {
	switch k {
	case Proposed:
		return "Proposed"
	case Orphaned:
		return "Orphaned"
	case Missed:
		return "Missed"
	default:
		return "Unknown"
	}
}

// BlockState is the tagged union consumed by the indexing state machine.
// Block is nil when Kind is Missed.
type BlockState struct {
	Kind  BlockStateKind
	Slot  Slot
	Block *SignedBlock
}

// NewProposed builds a Proposed BlockState for an in-range block.
func NewProposed(b *SignedBlock) BlockState {
	return BlockState{Kind: Proposed, Slot: b.Slot, Block: b}
}

// NewOrphaned builds an Orphaned BlockState for a block-by-root recovery.
func NewOrphaned(b *SignedBlock) BlockState {
	return BlockState{Kind: Orphaned, Slot: b.Slot, Block: b}
}

// NewMissed builds a Missed BlockState for a slot the chain advanced past
// without ever receiving a block.
func NewMissed(slot Slot) BlockState {
	return BlockState{Kind: Missed, Slot: slot}
}

// ConsolidatedBlock is the indexer's enriched view of a single slot,
// carrying fields derived by the state machine that a raw block doesn't.
type ConsolidatedBlock struct {
	State          BlockState
	ProposerIndex  uint64
	CommitteesAtSlot [][]uint64
}

// ConsolidatedEpoch is the indexer's enriched view of a completed epoch.
type ConsolidatedEpoch struct {
	Epoch                 Epoch
	AggregatedParticipation float64
	Summary               EpochSummary
	ValidatorBalances     []uint64
}

// EpochSummary is the subset of a per_epoch() transition result the
// indexer persists; it is intentionally small since the authoritative
// state lives inside the (out of scope) beacon state object.
type EpochSummary struct {
	AttestationsCount uint64
	DepositsCount     uint64
}
