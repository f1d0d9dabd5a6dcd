package persist

import (
	"sync"

	"github.com/dgraph-io/ristretto"
	"github.com/pkg/errors"

	"github.com/beaconindexer/indexer/indexer/beacon"
	"github.com/beaconindexer/indexer/indexer/persist/models"
)

// votesCacheNumCounters and votesCacheMaxCost size ristretto's admission
// policy for the votes write-back cache; the values mirror the teacher's
// beacon-chain/db/kv validatorCache sizing (NumOfVotes-scale key
// cardinality, single-digit-MB cost budget), scaled down for this
// indexer. Draining the dirty set does not remove votes, so the cache
// keeps every voted-for slot's votes until ristretto evicts them under
// this cost budget.
const (
	votesCacheNumCounters = 100_000
	votesCacheMaxCost     = 8 << 20
)

// votesCache is the dirty-tracking write-back cache described in spec
// §4.I / "votes-count extended field": every attestation in a persisted
// block is appended to the entry for the slot it voted for, and the set
// of touched slots is drained (and the corresponding blocks/e/<slot>.msg
// votes_count updated) once per block.
//
// Grounded on
// original_source/indexer/src/network/workers/persist_block_worker.rs's
// PersistableCache/votes_cache, adapted to use ristretto (the teacher's
// cache library) for storage with an explicit dirty set layered on top,
// since ristretto itself has no iteration API to discover what changed.
type votesCache struct {
	store *ristretto.Cache

	mu    sync.Mutex
	dirty map[beacon.Slot]struct{}
}

func newVotesCache() (*votesCache, error) {
	store, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: votesCacheNumCounters,
		MaxCost:     votesCacheMaxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, errors.Wrap(err, "could not allocate votes cache")
	}
	return &votesCache{store: store, dirty: make(map[beacon.Slot]struct{})}, nil
}

// Append adds vote to the entry for votedSlot, marking it dirty.
func (c *votesCache) Append(votedSlot beacon.Slot, vote models.VoteModel) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var votes []models.VoteModel
	if v, ok := c.store.Get(uint64(votedSlot)); ok {
		votes = v.([]models.VoteModel)
	}
	votes = append(votes, vote)
	c.store.Set(uint64(votedSlot), votes, int64(len(votes)))
	c.store.Wait()
	c.dirty[votedSlot] = struct{}{}
}

// Count returns the number of votes currently cached for slot.
func (c *votesCache) Count(slot beacon.Slot) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.store.Get(uint64(slot)); ok {
		return len(v.([]models.VoteModel))
	}
	return 0
}

// Votes returns a copy of the votes cached for slot.
func (c *votesCache) Votes(slot beacon.Slot) []models.VoteModel {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.store.Get(uint64(slot))
	if !ok {
		return nil
	}
	votes := v.([]models.VoteModel)
	out := make([]models.VoteModel, len(votes))
	copy(out, votes)
	return out
}

// DrainDirty returns every slot touched since the last drain and clears
// the dirty set; it does not evict the underlying votes themselves.
func (c *votesCache) DrainDirty() []beacon.Slot {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]beacon.Slot, 0, len(c.dirty))
	for slot := range c.dirty {
		out = append(out, slot)
	}
	c.dirty = make(map[beacon.Slot]struct{})
	return out
}
