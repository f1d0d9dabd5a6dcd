package persist

import (
	"context"

	"github.com/pkg/errors"
	"go.opencensus.io/trace"

	"github.com/beaconindexer/indexer/indexer/beacon"
	"github.com/beaconindexer/indexer/indexer/persist/models"
	"github.com/beaconindexer/indexer/shared/persistable"
)

// sortedFields lists the epoch fields spec's supplemented sort-index
// feature maintains a page index for: readers can ask for "epochs sorted
// by participation" or "by attestations count" without a full table scan.
var sortedFields = []string{"aggregated_participation", "attestations_count"}

// EpochPersister writes ConsolidatedEpochs to the epochs/* files and
// maintains one SortIndex per field in sortedFields, rewriting only the
// pages an insert actually touches.
//
// Grounded on
// original_source/indexer/src/network/workers/persist_epoch_worker.rs and
// indexer/src/epoch_retriever.rs (the sort-index pager it feeds).
type EpochPersister struct {
	baseDir string
	count   uint64
	indexes map[string]*SortIndex
}

// NewEpochPersister returns an epoch persister rooted at baseDir with a
// fresh (empty) set of sort indexes; a resumable catalog is responsible
// for replaying prior epochs into it on startup before first use.
func NewEpochPersister(baseDir string) *EpochPersister {
	indexes := make(map[string]*SortIndex, len(sortedFields))
	for _, field := range sortedFields {
		indexes[field] = NewSortIndex(field)
	}
	return &EpochPersister{baseDir: baseDir, indexes: indexes}
}

// Persist writes one ConsolidatedEpoch and returns once every file it
// touches, including any rewritten sort-index pages, is on disk.
func (p *EpochPersister) Persist(ctx context.Context, ce *beacon.ConsolidatedEpoch) error {
	_, span := trace.StartSpan(ctx, "persist.Epoch")
	defer span.End()

	if err := persistable.Write(p.baseDir, models.EpochModel{
		Epoch:                   uint64(ce.Epoch),
		AggregatedParticipation: ce.AggregatedParticipation,
	}); err != nil {
		return errors.Wrap(err, "could not persist epoch model")
	}

	ext := models.EpochExtendedModel{
		Epoch:             uint64(ce.Epoch),
		AttestationsCount: ce.Summary.AttestationsCount,
		DepositsCount:     ce.Summary.DepositsCount,
		ValidatorBalances: ce.ValidatorBalances,
	}
	if err := persistable.Write(p.baseDir, ext); err != nil {
		return errors.Wrap(err, "could not persist extended epoch model")
	}

	if err := p.updateSortIndexes(ce); err != nil {
		return err
	}

	if uint64(ce.Epoch)+1 > p.count {
		p.count = uint64(ce.Epoch) + 1
	}
	return errors.Wrap(persistable.Write(p.baseDir, models.EpochsMeta{Count: p.count}), "could not persist epochs meta")
}

func (p *EpochPersister) updateSortIndexes(ce *beacon.ConsolidatedEpoch) error {
	values := map[string]float64{
		"aggregated_participation": ce.AggregatedParticipation,
		"attestations_count":       float64(ce.Summary.AttestationsCount),
	}
	for _, field := range sortedFields {
		pages := p.indexes[field].Insert(uint64(ce.Epoch), values[field])
		for _, page := range pages {
			model := p.indexes[field].Page(page)
			if err := persistable.Write(p.baseDir, model); err != nil {
				return errors.Wrapf(err, "could not persist sort index page %s/%d", field, page)
			}
		}
	}
	return nil
}
