// Package persist implements the two persisters (spec §4.I): the block
// persister and the epoch persister. Each exposes a synchronous Persist
// method that writes on the caller's goroutine and returns once its files
// are on disk; neither runs a queue or goroutine of its own, and neither
// has a shutdown channel.
//
// Grounded on
// original_source/indexer/src/network/workers/persist_block_worker.rs and
// persist_epoch_worker.rs.
package persist

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opencensus.io/trace"

	"github.com/beaconindexer/indexer/indexer/beacon"
	"github.com/beaconindexer/indexer/indexer/cache"
	"github.com/beaconindexer/indexer/indexer/persist/models"
	"github.com/beaconindexer/indexer/shared/persistable"
)

var log = logrus.WithField("prefix", "persist")

// BlockPersister writes ConsolidatedBlocks to the five blocks/* files,
// keeps the root->slot cache populated for the event adapter's benefit,
// and lazily maintains each voted-for slot's votes_count (spec's
// supplemented "votes-count extended field").
type BlockPersister struct {
	baseDir string
	roots   *cache.RootCache
	votes   *votesCache
	count   uint64
}

// NewBlockPersister returns a block persister rooted at baseDir, sharing
// roots with the event adapter (passed in, never stored back into it —
// spec §9's cyclic-look-alike guidance).
func NewBlockPersister(baseDir string, roots *cache.RootCache) (*BlockPersister, error) {
	votes, err := newVotesCache()
	if err != nil {
		return nil, err
	}
	return &BlockPersister{baseDir: baseDir, roots: roots, votes: votes}, nil
}

// Persist writes one ConsolidatedBlock and returns once every file touched
// by it is on disk.
func (p *BlockPersister) Persist(ctx context.Context, cb *beacon.ConsolidatedBlock) error {
	_, span := trace.StartSpan(ctx, "persist.Block")
	defer span.End()

	slot := cb.State.Slot
	log.WithField("slot", uint64(slot)).Debug("persisting block")

	if err := p.persistCore(cb); err != nil {
		return err
	}

	if cb.State.Block != nil {
		p.roots.Put(cb.State.Block.Root, slot)
		if err := p.persistAttestationsAndCommittees(cb); err != nil {
			return err
		}
		p.recordVotes(cb.State.Block)
	}

	if err := p.flushDirtyVotes(); err != nil {
		return err
	}

	if uint64(slot)+1 > p.count {
		p.count = uint64(slot) + 1
	}
	return persistable.Write(p.baseDir, models.BlocksMeta{Count: p.count})
}

func (p *BlockPersister) persistCore(cb *beacon.ConsolidatedBlock) error {
	status := cb.State.Kind.String()
	if err := persistable.Write(p.baseDir, models.BlockModel{
		Slot:     uint64(cb.State.Slot),
		Status:   status,
		Proposer: cb.ProposerIndex,
	}); err != nil {
		return errors.Wrap(err, "could not persist block model")
	}

	ext := models.BlockExtendedModel{Slot: uint64(cb.State.Slot)}
	if cb.State.Block != nil {
		ext.Root = models.HexRoot(cb.State.Block.Root)
		ext.ParentRoot = models.HexRoot(cb.State.Block.ParentRoot)
	}
	if err := persistable.Write(p.baseDir, ext); err != nil {
		return errors.Wrap(err, "could not persist extended block model")
	}

	committees := models.CommitteesModel{Slot: uint64(cb.State.Slot), Committees: cb.CommitteesAtSlot}
	if err := persistable.Write(p.baseDir, committees); err != nil {
		return errors.Wrap(err, "could not persist committees model")
	}
	return nil
}

func (p *BlockPersister) persistAttestationsAndCommittees(cb *beacon.ConsolidatedBlock) error {
	block := cb.State.Block
	atts := make([]models.AttestationModel, 0, len(block.Attestations))
	for _, a := range block.Attestations {
		atts = append(atts, models.AttestationModel{
			CommitteeIndex:  a.CommitteeIndex,
			BeaconBlockRoot: models.HexRoot(a.BeaconBlockRoot),
			SourceEpoch:     uint64(a.SourceEpoch),
			TargetEpoch:     uint64(a.TargetEpoch),
		})
	}
	sort.SliceStable(atts, func(i, j int) bool { return atts[i].CommitteeIndex < atts[j].CommitteeIndex })
	if err := persistable.Write(p.baseDir, models.AttestationsModel{
		Slot:         uint64(block.Slot),
		Attestations: atts,
	}); err != nil {
		return errors.Wrap(err, "could not persist attestations model")
	}

	return errors.Wrap(persistable.Write(p.baseDir, models.BlockRootModel{
		Root: models.HexRoot(block.Root),
		Slot: uint64(block.Slot),
	}), "could not persist block root model")
}

// recordVotes appends each attestation into the votes cache keyed by the
// slot it voted for (attestation.Slot), not the including block's slot.
func (p *BlockPersister) recordVotes(block *beacon.SignedBlock) {
	for _, a := range block.Attestations {
		p.votes.Append(a.Slot, models.VoteModel{
			CommitteeIndex:  a.CommitteeIndex,
			BeaconBlockRoot: models.HexRoot(a.BeaconBlockRoot),
			SourceEpoch:     uint64(a.SourceEpoch),
			TargetEpoch:     uint64(a.TargetEpoch),
		})
	}
}

// flushDirtyVotes writes votes/<slot>.msg and updates blocks/e/<slot>.msg
// votes_count for every slot touched since the last flush.
func (p *BlockPersister) flushDirtyVotes() error {
	for _, slot := range p.votes.DrainDirty() {
		votes := p.votes.Votes(slot)
		if err := persistable.Write(p.baseDir, models.VotesModel{Slot: uint64(slot), Votes: votes}); err != nil {
			return errors.Wrapf(err, "could not persist votes for slot %d", slot)
		}
		if err := p.updateVotesCount(slot, len(votes)); err != nil {
			return err
		}
	}
	return nil
}

func (p *BlockPersister) updateVotesCount(slot beacon.Slot, count int) error {
	var ext models.BlockExtendedModel
	relPath := (models.BlockExtendedModel{Slot: uint64(slot)}).RelPath()
	if persistable.Exists(p.baseDir, relPath) {
		if err := persistable.Read(p.baseDir, relPath, &ext); err != nil {
			return errors.Wrapf(err, "could not read extended block model for slot %d", slot)
		}
	} else {
		ext.Slot = uint64(slot)
	}
	ext.VotesCount = count
	return errors.Wrapf(persistable.Write(p.baseDir, ext), "could not update votes_count for slot %d", slot)
}
