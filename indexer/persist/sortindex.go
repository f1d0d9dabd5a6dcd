package persist

import (
	"container/heap"

	"github.com/beaconindexer/indexer/indexer/persist/models"
)

// idsPerPage matches spec §3's `epochs/s/<field>/<page>.msg` layout: 10
// ids per page.
const idsPerPage = 10

// sortEntry is one id ordered by its field value, ties broken by id so the
// ordering is stable (spec P6: "epoch sort-indexes stable by
// (field-value, epoch)").
type sortEntry struct {
	value float64
	id    uint64
}

// entryHeap is a min-heap of sortEntry, ordered so popping yields ids from
// lowest field-value to highest.
type entryHeap []sortEntry

func (h entryHeap) Len() int { return len(h) }
func (h entryHeap) Less(i, j int) bool {
	if h[i].value != h[j].value {
		return h[i].value < h[j].value
	}
	return h[i].id < h[j].id
}
func (h entryHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *entryHeap) Push(x interface{}) { *h = append(*h, x.(sortEntry)) }
func (h *entryHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// SortIndex maintains one field's full ordering in memory as a binary
// heap, the structure spec's supplemented "sort-index pages" feature
// names explicitly: an epoch persister inserts each new epoch's id, then
// rewrites only the pages whose membership changed.
//
// Grounded on original_source/indexer/src/field_binary_heap.rs and
// indexer/src/epoch_retriever.rs.
type SortIndex struct {
	field string
	all   []sortEntry
}

// NewSortIndex returns an empty index for the named field.
func NewSortIndex(field string) *SortIndex {
	return &SortIndex{field: field}
}

// Insert adds id with the given field value and returns the page numbers
// that need to be rewritten as a result (the page the new entry landed on,
// plus every page after it whose membership shifted).
func (s *SortIndex) Insert(id uint64, value float64) []uint64 {
	h := entryHeap(append([]sortEntry(nil), s.all...))
	heap.Init(&h)
	heap.Push(&h, sortEntry{value: value, id: id})

	sorted := make([]sortEntry, h.Len())
	for i := range sorted {
		sorted[i] = heap.Pop(&h).(sortEntry)
	}
	s.all = sorted

	insertedAt := 0
	for i, e := range sorted {
		if e.id == id && e.value == value {
			insertedAt = i
			break
		}
	}

	firstPage := uint64(insertedAt / idsPerPage)
	lastPage := uint64((len(sorted) - 1) / idsPerPage)
	pages := make([]uint64, 0, lastPage-firstPage+1)
	for p := firstPage; p <= lastPage; p++ {
		pages = append(pages, p)
	}
	return pages
}

// Page renders page p as the on-disk model, ready for persistable.Write.
func (s *SortIndex) Page(page uint64) models.SortIndexPage {
	start := int(page) * idsPerPage
	end := start + idsPerPage
	if start > len(s.all) {
		start = len(s.all)
	}
	if end > len(s.all) {
		end = len(s.all)
	}
	ids := make([]uint64, 0, end-start)
	for _, e := range s.all[start:end] {
		ids = append(ids, e.id)
	}
	return models.SortIndexPage{Field: s.field, Page: page, Ids: ids}
}
