// Package transition defines the beacon state-transition contract (spec
// §6.3): per_slot, per_block and per_epoch are treated as pure functions
// over an opaque mutable BeaconState, supplied by an external collaborator
// the indexer never implements itself. This package only defines the
// boundary interface plus a minimal deterministic reference
// implementation used by tests, grounded loosely on the shape (not the
// cryptographic substance) of the teacher's beacon-chain/core/state and
// core/epoch packages.
package transition

import (
	"github.com/pkg/errors"

	"github.com/beaconindexer/indexer/indexer/beacon"
)

// ErrSlotNotMonotone is returned when a caller tries to process a slot at
// or before the state's current slot (spec precondition for 4.E).
var ErrSlotNotMonotone = errors.New("transition: slot is not greater than the current state slot")

// BeaconState is the mutable object the three transition functions operate
// on. The indexer never inspects its internals beyond the accessors below;
// ownership rules are spelled out in spec §9 ("beacon state ownership").
type BeaconState interface {
	// Slot returns the state's current slot.
	Slot() beacon.Slot
	// Clone returns a deep copy, used so speculative application can be
	// rolled back on failure by simply discarding the clone (spec §4.E:
	// "work on a clone, commit on success").
	Clone() BeaconState
	// CommitteesAtSlot returns the committees assigned to slot, or an
	// empty slice at slot 0.
	CommitteesAtSlot(slot beacon.Slot) ([][]uint64, error)
	// Balances returns the current validator balance table.
	Balances() []uint64
	// ProposerIndex returns the proposer scheduled for the state's
	// current slot.
	ProposerIndex() (uint64, error)
}

// Summary is the non-nil return value of PerSlot exactly when a slot
// transition crossed an epoch boundary; its presence is the sole signal
// used by the indexing state machine to know an epoch just completed.
type Summary struct {
	AttestationsCount uint64
	DepositsCount     uint64
}

// Transition is the pure-function contract the indexing state machine
// depends on (spec §6.3). A production binding wraps the actual consensus
// client's state-transition crate/library; see DESIGN.md for why this
// indexer does not reimplement Ethereum consensus itself.
type Transition interface {
	// PerSlot advances state by exactly one slot, returning a Summary iff
	// this slot transition crossed an epoch boundary.
	PerSlot(state BeaconState) (*Summary, error)
	// PerBlock applies block's effects to state. Signature verification
	// and block-root verification are always disabled, matching the
	// indexer's trust model (spec §4.E, §7: "this indexer trusts the wire
	// because it does not vote").
	PerBlock(state BeaconState, block *beacon.SignedBlock) error
	// PerEpoch runs the epoch-boundary transition once, used only to seed
	// genesis (slot 0) without an accompanying block.
	PerEpoch(state BeaconState) (Summary, error)
	// SaveState serializes state to a byte form this Transition can later
	// reconstruct with LoadState, the resume/checkpoint mechanism a real
	// consensus client already exposes (e.g. checkpoint-sync state
	// snapshots); the indexer persists the bytes but never interprets them.
	SaveState(state BeaconState) ([]byte, error)
	// LoadState reconstructs a BeaconState previously produced by
	// SaveState, used to resume the indexing state machine on restart
	// instead of replaying every historical block from genesis.
	LoadState(data []byte) (BeaconState, error)
}
