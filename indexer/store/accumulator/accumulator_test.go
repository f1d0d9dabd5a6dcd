package accumulator

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/beaconindexer/indexer/indexer/beacon"
)

const slotsPerEpoch = 4

func signedBlock(slot beacon.Slot) *beacon.SignedBlock {
	return &beacon.SignedBlock{Slot: slot}
}

func TestAccumulator_DrainsExactlyAtEpochBoundary(t *testing.T) {
	a := New(slotsPerEpoch)

	for slot := beacon.Slot(0); slot < slotsPerEpoch-1; slot++ {
		work := a.Insert(beacon.NewProposed(signedBlock(slot)))
		require.Equal(t, NoWork, work.Kind)
	}

	work := a.Insert(beacon.NewProposed(signedBlock(slotsPerEpoch - 1)))
	require.Equal(t, PersistEpoch, work.Kind)
	require.Equal(t, beacon.Epoch(0), work.Epoch.Number)
	require.Len(t, work.Epoch.Slots, slotsPerEpoch)
	require.Equal(t, beacon.Epoch(1), a.Watermark())
}

func TestAccumulator_ProposedWinsOverMissed(t *testing.T) {
	a := New(slotsPerEpoch)

	a.Insert(beacon.NewMissed(beacon.Slot(0)))
	work := a.Insert(beacon.NewProposed(signedBlock(beacon.Slot(0))))
	require.Equal(t, NoWork, work.Kind)

	// Drain the rest of the epoch and inspect what slot 0 resolved to.
	a.Insert(beacon.NewProposed(signedBlock(beacon.Slot(1))))
	a.Insert(beacon.NewProposed(signedBlock(beacon.Slot(2))))
	final := a.Insert(beacon.NewProposed(signedBlock(beacon.Slot(3))))

	require.Equal(t, PersistEpoch, final.Kind)
	require.Equal(t, beacon.Proposed, final.Epoch.Slots[beacon.Slot(0)].Kind)
}

func TestAccumulator_MissedNeverOverwritesProposed(t *testing.T) {
	a := New(slotsPerEpoch)

	a.Insert(beacon.NewProposed(signedBlock(beacon.Slot(0))))
	a.Insert(beacon.NewMissed(beacon.Slot(0)))
	a.Insert(beacon.NewProposed(signedBlock(beacon.Slot(1))))
	a.Insert(beacon.NewProposed(signedBlock(beacon.Slot(2))))
	final := a.Insert(beacon.NewProposed(signedBlock(beacon.Slot(3))))

	require.Equal(t, beacon.Proposed, final.Epoch.Slots[beacon.Slot(0)].Kind)
}

func TestAccumulator_BelowWatermarkOrphanForwardsDirectly(t *testing.T) {
	a := New(slotsPerEpoch)
	a.SetWatermark(beacon.Epoch(2))

	block := signedBlock(beacon.Slot(1))
	work := a.Insert(beacon.NewOrphaned(block))

	require.Equal(t, PersistBlock, work.Kind)
	require.Same(t, block, work.Block)
}

func TestAccumulator_BelowWatermarkNonOrphanIsDropped(t *testing.T) {
	a := New(slotsPerEpoch)
	a.SetWatermark(beacon.Epoch(2))

	work := a.Insert(beacon.NewMissed(beacon.Slot(1)))
	require.Equal(t, NoWork, work.Kind)
}

func TestAccumulator_FutureEpochsAccumulateIndependently(t *testing.T) {
	a := New(slotsPerEpoch)

	// Out-of-order arrival from a later epoch should not disturb epoch 0's
	// bookkeeping or drain prematurely.
	a.Insert(beacon.NewProposed(signedBlock(beacon.Slot(10))))
	work := a.Insert(beacon.NewProposed(signedBlock(beacon.Slot(0))))
	require.Equal(t, NoWork, work.Kind)
}
