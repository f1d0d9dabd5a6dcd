// Package blockrequests implements the block-by-root request table (spec
// §4.C): one RequestAttempt per root an attestation referenced but that
// never arrived in a range response, fanned out across peers until a block
// is found.
//
// Grounded on original_source/indexer/src/db/block_by_root_requests.rs,
// adapted from a HashMap-with-interior-Entry-API style to an explicit
// mutex-guarded map, since Go has no borrow checker to make concurrent
// mutation through iterators safe.
package blockrequests

import (
	"sync"

	"github.com/beaconindexer/indexer/indexer/beacon"
)

// State is the lifecycle of a single root's recovery attempt.
type State int

const (
	// AwaitingPeer means no peer is currently being asked for this root.
	AwaitingPeer State = iota
	// Requesting means at least one peer has an outstanding BlocksByRoot
	// request for this root.
	Requesting
	// Found is terminal: the block was retrieved and the record is
	// immutable except for serialization.
	Found
)

// Attempt is the per-root request record. PossibleSlots is append-only;
// once State is Found the attempt must not be mutated further.
type Attempt struct {
	PossibleSlots  map[beacon.Slot]struct{}
	State          State
	RequestingPeers map[beacon.PeerId]struct{}
	FailedCount    uint64
	NotFoundCount  uint64
	FoundBy        *beacon.PeerId
}

func newAttempt() *Attempt {
	return &Attempt{
		PossibleSlots:   make(map[beacon.Slot]struct{}),
		State:           AwaitingPeer,
		RequestingPeers: make(map[beacon.PeerId]struct{}),
	}
}

// Table is the concurrency-safe collection of per-root Attempts. The
// dispatcher (the sole writer, per spec §5) still takes the mutex so tests
// and future multi-writer callers stay safe without re-deriving this.
type Table struct {
	mu    sync.Mutex
	byRoot map[beacon.Root]*Attempt
}

// New returns an empty table.
func New() *Table {
	return &Table{byRoot: make(map[beacon.Root]*Attempt)}
}

// Exists reports whether root already has an attempt record.
func (t *Table) Exists(root beacon.Root) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.byRoot[root]
	return ok
}

// Get returns a copy-free pointer to root's attempt, or nil.
func (t *Table) Get(root beacon.Root) *Attempt {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.byRoot[root]
}

// Add creates an attempt for root if missing (AwaitingPeer) and records
// slot as one of the slots that referenced it. PossibleSlots is
// append-only: existing slots are never removed.
func (t *Table) Add(slot beacon.Slot, root beacon.Root) {
	t.mu.Lock()
	defer t.mu.Unlock()
	a, ok := t.byRoot[root]
	if !ok {
		a = newAttempt()
		t.byRoot[root] = a
	}
	a.PossibleSlots[slot] = struct{}{}
}

// Update applies f to root's attempt in place. No-op if root is unknown.
func (t *Table) Update(root beacon.Root, f func(*Attempt)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if a, ok := t.byRoot[root]; ok {
		f(a)
	}
}

// PendingEach invokes f for every attempt whose state is not Found, the
// set that new peer connections fan out to (spec §4.C: "for
// connection-join fan-out"); disconnections go through
// RemovePeerEverywhere instead.
func (t *Table) PendingEach(f func(root beacon.Root, a *Attempt)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for root, a := range t.byRoot {
		if a.State != Found {
			f(root, a)
		}
	}
}

// InsertPeer adds peer to root's requesting set, collapsing AwaitingPeer
// into Requesting. Returns true iff the peer was not already present,
// which is the signal callers use to decide whether to dispatch a new
// BlocksByRoot RPC for this (root, peer) pair.
func (t *Table) InsertPeer(root beacon.Root, p beacon.PeerId) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	a, ok := t.byRoot[root]
	if !ok {
		return false
	}
	if _, present := a.RequestingPeers[p]; present {
		return false
	}
	a.RequestingPeers[p] = struct{}{}
	a.State = Requesting
	return true
}

// RemovePeer removes peer from root's requesting set, wherever present. If
// the set becomes empty the state collapses back to AwaitingPeer (the
// illegal Requesting(∅) state is never observable).
func (t *Table) RemovePeer(root beacon.Root, p beacon.PeerId) {
	t.mu.Lock()
	defer t.mu.Unlock()
	a, ok := t.byRoot[root]
	if !ok || a.State == Found {
		return
	}
	delete(a.RequestingPeers, p)
	if len(a.RequestingPeers) == 0 {
		a.State = AwaitingPeer
	}
}

// RemovePeerEverywhere removes p from every pending attempt, used when a
// peer disconnects.
func (t *Table) RemovePeerEverywhere(p beacon.PeerId) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, a := range t.byRoot {
		if a.State == Found {
			continue
		}
		delete(a.RequestingPeers, p)
		if len(a.RequestingPeers) == 0 {
			a.State = AwaitingPeer
		}
	}
}

// SetAsFound is the CAS-style terminal transition (spec P4): it returns
// true iff FoundBy was previously unset, assigning foundBy and
// transitioning to Found exactly once. A later call for the same root
// always returns false and never changes FoundBy.
func (t *Table) SetAsFound(root beacon.Root, foundBy beacon.PeerId) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	a, ok := t.byRoot[root]
	if !ok {
		a = newAttempt()
		t.byRoot[root] = a
	}
	if a.FoundBy != nil {
		return false
	}
	p := foundBy
	a.FoundBy = &p
	a.State = Found
	return true
}

// IncrementNotFound bumps root's not-found counter, a no-op if unknown.
func (t *Table) IncrementNotFound(root beacon.Root) {
	t.Update(root, func(a *Attempt) { a.NotFoundCount++ })
}

// IncrementFailed bumps root's failed-RPC counter, a no-op if unknown.
func (t *Table) IncrementFailed(root beacon.Root) {
	t.Update(root, func(a *Attempt) { a.FailedCount++ })
}

// Snapshot returns a copy of every attempt, keyed by root, for persistence
// or rehydration-coercion (catalog.go coerces every state back to
// AwaitingPeer on load).
func (t *Table) Snapshot() map[beacon.Root]Attempt {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[beacon.Root]Attempt, len(t.byRoot))
	for root, a := range t.byRoot {
		out[root] = *a
	}
	return out
}

// Restore replaces the table's contents wholesale, used by the catalog on
// startup after coercing every attempt's state to AwaitingPeer.
func (t *Table) Restore(attempts map[beacon.Root]*Attempt) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byRoot = attempts
}
