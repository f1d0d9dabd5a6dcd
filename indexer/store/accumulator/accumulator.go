// Package accumulator buffers one epoch's worth of slots until it is
// complete, then hands it off for persistence exactly once, in epoch
// order (spec §4.F). This ordering guarantee is what lets the persister's
// sort-index pager assume monotonic epoch arrival.
//
// Grounded on original_source/indexer/src/db/blocks_by_epoch.rs.
package accumulator

import (
	"github.com/beaconindexer/indexer/indexer/beacon"
)

// Work is the item the accumulator hands to the dispatcher once enough
// information has arrived to act on.
type Work struct {
	// Epoch is set when Kind is PersistEpoch.
	Epoch Epoch
	// Block is set when Kind is PersistBlock (an orphan that arrived
	// below the watermark and bypasses the epoch pipeline entirely).
	Block *beacon.SignedBlock
	Kind  WorkKind
}

// WorkKind discriminates the two things the accumulator can ask for.
type WorkKind int

const (
	// NoWork means the insert did not complete or bypass anything.
	NoWork WorkKind = iota
	// PersistEpoch means a full epoch of slots is ready to flush.
	PersistEpoch
	// PersistBlock means a single orphaned block below the watermark
	// should be persisted directly, skipping the epoch pipeline.
	PersistBlock
)

// Epoch is a completed epoch's slot map, handed off by value.
type Epoch struct {
	Number beacon.Epoch
	Slots  map[beacon.Slot]beacon.BlockState
}

// Accumulator is the map epoch -> (map slot -> BlockState) described by
// spec §4.F, with a floor watermark of "last fully-persisted epoch + 1".
type Accumulator struct {
	slotsPerEpoch uint64
	watermark     beacon.Epoch
	byEpoch       map[beacon.Epoch]map[beacon.Slot]beacon.BlockState
}

// New returns an accumulator for the given slots-per-epoch parameter,
// starting at watermark 0 (nothing persisted yet).
func New(slotsPerEpoch uint64) *Accumulator {
	return &Accumulator{
		slotsPerEpoch: slotsPerEpoch,
		byEpoch:       make(map[beacon.Epoch]map[beacon.Slot]beacon.BlockState),
	}
}

// SetWatermark is used by the catalog to seed the watermark from disk on
// startup (last persisted epoch + 1).
func (a *Accumulator) SetWatermark(w beacon.Epoch) {
	a.watermark = w
}

// Watermark returns the current watermark.
func (a *Accumulator) Watermark() beacon.Epoch {
	return a.watermark
}

// Insert folds state into the accumulator. If state's epoch is below the
// watermark, an Orphaned block is forwarded directly for persistence
// (PersistBlock); anything else below the watermark is dropped. Otherwise
// the slot is upserted (Proposed/Orphaned wins over an existing Missed,
// never the reverse) and, if that completes the current epoch exactly,
// the whole epoch is drained and returned as PersistEpoch, advancing the
// watermark.
func (a *Accumulator) Insert(state beacon.BlockState) Work {
	epoch := state.Slot.Epoch(a.slotsPerEpoch)

	if epoch < a.watermark {
		if state.Kind == beacon.Orphaned {
			return Work{Kind: PersistBlock, Block: state.Block}
		}
		return Work{Kind: NoWork}
	}

	bySlot, ok := a.byEpoch[epoch]
	if !ok {
		bySlot = make(map[beacon.Slot]beacon.BlockState)
		a.byEpoch[epoch] = bySlot
	}

	if existing, present := bySlot[state.Slot]; !present || existing.Kind == beacon.Missed {
		bySlot[state.Slot] = state
	}

	if epoch == a.watermark && uint64(len(bySlot)) == a.slotsPerEpoch {
		delete(a.byEpoch, epoch)
		a.watermark++
		return Work{Kind: PersistEpoch, Epoch: Epoch{Number: epoch, Slots: bySlot}}
	}
	return Work{Kind: NoWork}
}
