package transition

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/beaconindexer/indexer/indexer/beacon"
)

const slotsPerEpoch = 4

func TestReferenceState_ProposerIndexCyclesThroughValidators(t *testing.T) {
	state := NewReferenceState(slotsPerEpoch, 3).(*referenceState)

	idx, err := state.ProposerIndex()
	require.NoError(t, err)
	require.Equal(t, uint64(0), idx)

	state.slot = 4
	idx, err = state.ProposerIndex()
	require.NoError(t, err)
	require.Equal(t, uint64(1), idx)
}

func TestReferenceState_ProposerIndexEmptyValidatorSet(t *testing.T) {
	state := NewReferenceState(slotsPerEpoch, 0).(*referenceState)
	idx, err := state.ProposerIndex()
	require.NoError(t, err)
	require.Equal(t, uint64(0), idx)
}

func TestReferenceState_CommitteesAtSlotZeroIsEmpty(t *testing.T) {
	state := NewReferenceState(slotsPerEpoch, 4).(*referenceState)
	committees, err := state.CommitteesAtSlot(0)
	require.NoError(t, err)
	require.Nil(t, committees)
}

func TestReferenceState_CloneIsIndependent(t *testing.T) {
	original := NewReferenceState(slotsPerEpoch, 2).(*referenceState)
	original.balances[0] = 1

	clone := original.Clone().(*referenceState)
	clone.balances[0] = 2

	require.Equal(t, uint64(1), original.balances[0])
	require.Equal(t, uint64(2), clone.balances[0])
}

func TestReferenceTransition_PerSlotSummaryOnLastSlotOfEpoch(t *testing.T) {
	tr := NewReferenceTransition(slotsPerEpoch)
	state := NewReferenceState(slotsPerEpoch, 1)

	for i := 0; i < int(slotsPerEpoch)-2; i++ {
		summary, err := tr.PerSlot(state)
		require.NoError(t, err)
		require.Nil(t, summary, "no summary before the epoch's last slot")
	}

	summary, err := tr.PerSlot(state)
	require.NoError(t, err)
	require.NotNil(t, summary, "summary must land on the epoch's own last slot")
	require.Equal(t, beacon.Slot(slotsPerEpoch-1), state.Slot())
}

func TestReferenceTransition_PerSlotResetsCountersAfterSummary(t *testing.T) {
	tr := NewReferenceTransition(slotsPerEpoch)
	state := NewReferenceState(slotsPerEpoch, 1)
	block := &beacon.SignedBlock{Attestations: []beacon.Attestation{{}, {}}}

	require.NoError(t, tr.PerBlock(state, block))
	for i := 0; i < int(slotsPerEpoch)-2; i++ {
		_, err := tr.PerSlot(state)
		require.NoError(t, err)
	}
	summary, err := tr.PerSlot(state)
	require.NoError(t, err)
	require.Equal(t, uint64(2), summary.AttestationsCount)

	// The running counters reset once collected into a summary.
	nextSummary, err := tr.PerEpoch(state)
	require.NoError(t, err)
	require.Equal(t, uint64(0), nextSummary.AttestationsCount)
}

func TestReferenceTransition_WrongStateTypeErrors(t *testing.T) {
	tr := NewReferenceTransition(slotsPerEpoch)
	_, err := tr.PerSlot(&fakeBeaconState{})
	require.ErrorIs(t, err, errNotReferenceState)

	err = tr.PerBlock(&fakeBeaconState{}, nil)
	require.ErrorIs(t, err, errNotReferenceState)

	_, err = tr.PerEpoch(&fakeBeaconState{})
	require.ErrorIs(t, err, errNotReferenceState)
}

type fakeBeaconState struct{}

func (f *fakeBeaconState) Slot() beacon.Slot                               { return 0 }
func (f *fakeBeaconState) Clone() BeaconState                              { return f }
func (f *fakeBeaconState) CommitteesAtSlot(beacon.Slot) ([][]uint64, error) { return nil, nil }
func (f *fakeBeaconState) Balances() []uint64                              { return nil }
func (f *fakeBeaconState) ProposerIndex() (uint64, error)                  { return 0, nil }
