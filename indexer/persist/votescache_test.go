package persist

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/beaconindexer/indexer/indexer/beacon"
	"github.com/beaconindexer/indexer/indexer/persist/models"
)

func TestVotesCache_AppendMarksDirtyAndAccumulates(t *testing.T) {
	c, err := newVotesCache()
	require.NoError(t, err)

	slot := beacon.Slot(3)
	c.Append(slot, models.VoteModel{CommitteeIndex: 1})
	c.Append(slot, models.VoteModel{CommitteeIndex: 2})
	c.store.Wait()

	require.Equal(t, 2, c.Count(slot))
	require.ElementsMatch(t, []beacon.Slot{slot}, c.DrainDirty())
}

func TestVotesCache_DrainDirtyClearsTheSet(t *testing.T) {
	c, err := newVotesCache()
	require.NoError(t, err)

	c.Append(beacon.Slot(1), models.VoteModel{CommitteeIndex: 1})
	c.store.Wait()

	first := c.DrainDirty()
	require.Len(t, first, 1)

	second := c.DrainDirty()
	require.Empty(t, second, "nothing touched since the last drain")
}

func TestVotesCache_CountUnknownSlotIsZero(t *testing.T) {
	c, err := newVotesCache()
	require.NoError(t, err)
	require.Equal(t, 0, c.Count(beacon.Slot(99)))
}

func TestVotesCache_VotesReturnsACopy(t *testing.T) {
	c, err := newVotesCache()
	require.NoError(t, err)

	slot := beacon.Slot(1)
	c.Append(slot, models.VoteModel{CommitteeIndex: 1})
	c.store.Wait()

	votes := c.Votes(slot)
	require.Len(t, votes, 1)
	votes[0].CommitteeIndex = 999

	require.Equal(t, uint64(1), c.Votes(slot)[0].CommitteeIndex, "mutating the returned slice must not affect the cache")
}
