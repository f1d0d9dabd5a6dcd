package persist

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSortIndex_InsertOrdersByValueThenId(t *testing.T) {
	idx := NewSortIndex("attestations_count")

	idx.Insert(1, 5.0)
	idx.Insert(2, 1.0)
	idx.Insert(3, 3.0)

	page := idx.Page(0)
	require.Equal(t, []uint64{2, 3, 1}, page.Ids)
}

func TestSortIndex_TiesBrokenById(t *testing.T) {
	idx := NewSortIndex("attestations_count")

	idx.Insert(5, 1.0)
	idx.Insert(2, 1.0)
	idx.Insert(9, 1.0)

	page := idx.Page(0)
	require.Equal(t, []uint64{2, 5, 9}, page.Ids)
}

func TestSortIndex_InsertReturnsAffectedPages(t *testing.T) {
	idx := NewSortIndex("attestations_count")

	for i := uint64(0); i < 9; i++ {
		idx.Insert(i, float64(i))
	}
	// The 10th entry still fits on page 0.
	pages := idx.Insert(9, 9.0)
	require.Equal(t, []uint64{0}, pages)

	// The 11th entry spills onto page 1.
	pages = idx.Insert(10, 10.0)
	require.Equal(t, []uint64{1}, pages)

	// Inserting a value lower than everything shifts every page's tail.
	pages = idx.Insert(11, -1.0)
	require.Equal(t, []uint64{0, 1}, pages)
}

func TestSortIndex_PageOutOfRangeIsEmpty(t *testing.T) {
	idx := NewSortIndex("attestations_count")
	idx.Insert(1, 1.0)

	page := idx.Page(5)
	require.Empty(t, page.Ids)
	require.Equal(t, uint64(5), page.Page)
}
