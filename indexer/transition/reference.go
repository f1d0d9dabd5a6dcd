package transition

import (
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/beaconindexer/indexer/indexer/beacon"
)

var errNotReferenceState = errors.New("transition: BeaconState is not a *referenceState")

// referenceState is a deterministic, non-cryptographic stand-in for a real
// consensus client's beacon state, used by tests that exercise the
// indexing state machine without pulling in an actual state-transition
// library. It tracks just enough to satisfy BeaconState: a slot counter,
// a synthetic balance table, and per-epoch counters bumped on every
// PerEpoch call.
type referenceState struct {
	slotsPerEpoch     uint64
	slot              beacon.Slot
	balances          []uint64
	attestationsCount uint64
	depositsCount     uint64
}

// NewReferenceState returns a genesis-slot reference state for the given
// number of validators.
func NewReferenceState(slotsPerEpoch uint64, numValidators int) BeaconState {
	balances := make([]uint64, numValidators)
	for i := range balances {
		balances[i] = 32_000_000_000 // 32 ETH in Gwei, the default validator balance
	}
	return &referenceState{slotsPerEpoch: slotsPerEpoch, balances: balances}
}

func (s *referenceState) Slot() beacon.Slot { return s.slot }

func (s *referenceState) Clone() BeaconState {
	balances := make([]uint64, len(s.balances))
	copy(balances, s.balances)
	return &referenceState{
		slotsPerEpoch:     s.slotsPerEpoch,
		slot:              s.slot,
		balances:          balances,
		attestationsCount: s.attestationsCount,
		depositsCount:     s.depositsCount,
	}
}

func (s *referenceState) CommitteesAtSlot(slot beacon.Slot) ([][]uint64, error) {
	if slot == 0 {
		return nil, nil
	}
	// One synthetic committee of every validator index, enough to
	// exercise callers without modeling real shuffling.
	committee := make([]uint64, len(s.balances))
	for i := range committee {
		committee[i] = uint64(i)
	}
	return [][]uint64{committee}, nil
}

func (s *referenceState) Balances() []uint64 { return s.balances }

func (s *referenceState) ProposerIndex() (uint64, error) {
	if len(s.balances) == 0 {
		return 0, nil
	}
	return uint64(s.slot) % uint64(len(s.balances)), nil
}

// ReferenceTransition implements Transition deterministically: per-slot
// advances the slot counter and returns a Summary exactly at epoch
// boundaries; per-block counts its attestations into the running summary;
// per-epoch returns and resets the accumulated counters.
type ReferenceTransition struct {
	slotsPerEpoch uint64
}

// NewReferenceTransition returns a transition implementation parameterized
// by slots-per-epoch.
func NewReferenceTransition(slotsPerEpoch uint64) *ReferenceTransition {
	return &ReferenceTransition{slotsPerEpoch: slotsPerEpoch}
}

func (t *ReferenceTransition) PerSlot(bs BeaconState) (*Summary, error) {
	s, ok := bs.(*referenceState)
	if !ok {
		return nil, errNotReferenceState
	}
	s.slot++
	// A summary is produced on the last slot of an epoch (slot+1 divides
	// evenly into slotsPerEpoch), mirroring process_epoch firing at the
	// end of an epoch's final slot rather than the start of the next one
	// — so it lands on the same epoch number the accumulator completes.
	if (uint64(s.slot)+1)%t.slotsPerEpoch != 0 {
		return nil, nil
	}
	summary := Summary{AttestationsCount: s.attestationsCount, DepositsCount: s.depositsCount}
	s.attestationsCount, s.depositsCount = 0, 0
	return &summary, nil
}

func (t *ReferenceTransition) PerBlock(bs BeaconState, block *beacon.SignedBlock) error {
	s, ok := bs.(*referenceState)
	if !ok {
		return errNotReferenceState
	}
	s.attestationsCount += uint64(len(block.Attestations))
	return nil
}

func (t *ReferenceTransition) PerEpoch(bs BeaconState) (Summary, error) {
	s, ok := bs.(*referenceState)
	if !ok {
		return Summary{}, errNotReferenceState
	}
	summary := Summary{AttestationsCount: s.attestationsCount, DepositsCount: s.depositsCount}
	s.attestationsCount, s.depositsCount = 0, 0
	return summary, nil
}

// referenceSnapshot is the exported, MessagePack-friendly mirror of
// referenceState that SaveState/LoadState round-trip through.
type referenceSnapshot struct {
	SlotsPerEpoch     uint64
	Slot              uint64
	Balances          []uint64
	AttestationsCount uint64
	DepositsCount     uint64
}

func (t *ReferenceTransition) SaveState(bs BeaconState) ([]byte, error) {
	s, ok := bs.(*referenceState)
	if !ok {
		return nil, errNotReferenceState
	}
	data, err := msgpack.Marshal(referenceSnapshot{
		SlotsPerEpoch:     s.slotsPerEpoch,
		Slot:              uint64(s.slot),
		Balances:          s.balances,
		AttestationsCount: s.attestationsCount,
		DepositsCount:     s.depositsCount,
	})
	return data, errors.Wrap(err, "could not encode reference state snapshot")
}

func (t *ReferenceTransition) LoadState(data []byte) (BeaconState, error) {
	var snap referenceSnapshot
	if err := msgpack.Unmarshal(data, &snap); err != nil {
		return nil, errors.Wrap(err, "could not decode reference state snapshot")
	}
	return &referenceState{
		slotsPerEpoch:     snap.SlotsPerEpoch,
		slot:              beacon.Slot(snap.Slot),
		balances:          snap.Balances,
		attestationsCount: snap.AttestationsCount,
		depositsCount:     snap.DepositsCount,
	}, nil
}
