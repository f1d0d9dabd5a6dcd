// Package statemachine owns the beacon state and turns a stream of
// BlockStates into ConsolidatedBlocks and, at epoch boundaries,
// ConsolidatedEpochs (spec §4.E).
//
// Grounded on
// original_source/indexer/src/db/indexing_state.rs.
package statemachine

import (
	"context"

	"go.opencensus.io/trace"

	"github.com/beaconindexer/indexer/indexer/beacon"
	"github.com/beaconindexer/indexer/indexer/transition"
)

// StateMachine owns the mutable BeaconState exclusively; nothing else in
// the process may write to it (spec §5 rule 1, §9 "beacon state
// ownership").
type StateMachine struct {
	transition    transition.Transition
	state         transition.BeaconState
	isGenesis     bool
	slotsPerEpoch uint64
}

// New returns a state machine seeded at genesis with the given transition
// implementation, initial state, and slots-per-epoch parameter.
func New(t transition.Transition, genesisState transition.BeaconState, slotsPerEpoch uint64) *StateMachine {
	return &StateMachine{transition: t, state: genesisState, isGenesis: true, slotsPerEpoch: slotsPerEpoch}
}

// Resume reconstructs a state machine from a snapshot previously returned
// by Snapshot, letting a restart continue from its last persisted slot
// instead of re-deriving genesis state and reprocessing the whole chain
// (spec §6.4, "an indexer restart on the same directory is equivalent to
// a continuation").
func Resume(t transition.Transition, snapshot []byte, slotsPerEpoch uint64) (*StateMachine, error) {
	state, err := t.LoadState(snapshot)
	if err != nil {
		return nil, err
	}
	return &StateMachine{transition: t, state: state, isGenesis: false, slotsPerEpoch: slotsPerEpoch}, nil
}

// Snapshot serializes the current beacon state for catalog persistence, ok
// is false at genesis (nothing has been committed yet, so there is nothing
// a restart needs to resume from).
func (m *StateMachine) Snapshot() (data []byte, ok bool, err error) {
	if m.isGenesis {
		return nil, false, nil
	}
	data, err = m.transition.SaveState(m.state)
	return data, true, err
}

// LatestSlot returns the state's current slot; ok is false while still at
// genesis (mirrors the original's Option<Slot>).
func (m *StateMachine) LatestSlot() (slot beacon.Slot, ok bool) {
	if m.isGenesis {
		return 0, false
	}
	return m.state.Slot(), true
}

// CanProcessSlot reports whether slot is strictly greater than the current
// state slot (or the state is still at genesis), the monotone precondition
// spec §4.E requires of every input.
func (m *StateMachine) CanProcessSlot(slot beacon.Slot) bool {
	latest, ok := m.LatestSlot()
	if !ok {
		return true
	}
	return slot > latest
}

// Result is what ProcessBlock emits for one input BlockState.
type Result struct {
	Block *beacon.ConsolidatedBlock
	Epoch *beacon.ConsolidatedEpoch
}

// ProcessBlock runs one BlockState through the state machine (spec §4.E
// cases 1-4). On failure the beacon state is left untouched: processing
// always happens on a clone, committed only once every step succeeds
// (spec §4.E, §9 "work on a clone, commit on success").
func (m *StateMachine) ProcessBlock(ctx context.Context, input beacon.BlockState) (Result, error) {
	_, span := trace.StartSpan(ctx, "statemachine.ProcessBlock")
	defer span.End()

	if input.Kind != beacon.Orphaned && !m.CanProcessSlot(input.Slot) {
		return Result{}, transition.ErrSlotNotMonotone
	}

	switch input.Kind {
	case beacon.Orphaned:
		// Orphaned blocks never touch chain state (spec §4.E case 4).
		return Result{Block: &beacon.ConsolidatedBlock{State: input}}, nil
	case beacon.Missed:
		return m.processMissed(input)
	default:
		return m.processProposed(input)
	}
}

func (m *StateMachine) processMissed(input beacon.BlockState) (Result, error) {
	working := m.state.Clone()
	summary, err := m.transition.PerSlot(working)
	if err != nil {
		return Result{}, err
	}
	proposerIndex, err := working.ProposerIndex()
	if err != nil {
		return Result{}, err
	}
	m.commit(working)

	cb := &beacon.ConsolidatedBlock{
		State:         input,
		ProposerIndex: proposerIndex,
	}
	return m.finishWithSummary(cb, summary)
}

func (m *StateMachine) processProposed(input beacon.BlockState) (Result, error) {
	working := m.state.Clone()

	var summary *transition.Summary
	if input.Slot > 0 {
		s, err := m.transition.PerSlot(working)
		if err != nil {
			return Result{}, err
		}
		if err := m.transition.PerBlock(working, input.Block); err != nil {
			return Result{}, err
		}
		summary = s
	} else {
		// Genesis: seed with a single per_epoch run, no block applied
		// (spec §4.E case 2, §9 "proposer-index derivation at slot 0").
		s, err := m.transition.PerEpoch(working)
		if err != nil {
			return Result{}, err
		}
		summary = &s
	}

	proposerIndex, err := working.ProposerIndex()
	if err != nil {
		return Result{}, err
	}
	committees, err := working.CommitteesAtSlot(input.Slot)
	if err != nil {
		return Result{}, err
	}

	m.commit(working)

	cb := &beacon.ConsolidatedBlock{
		State:            input,
		ProposerIndex:    proposerIndex,
		CommitteesAtSlot: committees,
	}
	return m.finishWithSummary(cb, summary)
}

func (m *StateMachine) commit(working transition.BeaconState) {
	m.state = working
	m.isGenesis = false
}

func (m *StateMachine) finishWithSummary(cb *beacon.ConsolidatedBlock, summary *transition.Summary) (Result, error) {
	if summary == nil {
		return Result{Block: cb}, nil
	}
	epoch := &beacon.ConsolidatedEpoch{
		Epoch: cb.State.Slot.Epoch(m.slotsPerEpoch),
		Summary: beacon.EpochSummary{
			AttestationsCount: summary.AttestationsCount,
			DepositsCount:     summary.DepositsCount,
		},
		ValidatorBalances: m.state.Balances(),
	}
	return Result{Block: cb, Epoch: epoch}, nil
}
