// Package cache holds the root->slot lookup used to resolve an
// attestation's beacon_block_root without a disk read. It exists to break
// the look-alike cycle between the event adapter (which needs to know
// whether a root is already known) and the block persister (which
// populates the cache): both take the cache as an inbound parameter, never
// as a stored back-pointer (spec §9).
package cache

import (
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"

	"github.com/beaconindexer/indexer/indexer/beacon"
)

// defaultSize bounds memory use; a root only needs to stay resolvable for
// as long as attestations referencing it can still arrive, which in
// practice is a handful of epochs.
const defaultSize = 1 << 16

// RootCache maps a canonical block root to the slot it was proposed at.
type RootCache struct {
	lru *lru.Cache
}

// New returns a root cache with the default capacity.
func New() (*RootCache, error) {
	c, err := lru.New(defaultSize)
	if err != nil {
		return nil, errors.Wrap(err, "could not allocate root cache")
	}
	return &RootCache{lru: c}, nil
}

// Put records that root was proposed at slot.
func (c *RootCache) Put(root beacon.Root, slot beacon.Slot) {
	c.lru.Add(root, slot)
}

// Get returns the slot root was proposed at, if known.
func (c *RootCache) Get(root beacon.Root) (beacon.Slot, bool) {
	v, ok := c.lru.Get(root)
	if !ok {
		return 0, false
	}
	return v.(beacon.Slot), true
}

// Has reports whether root is resolvable without returning its slot.
func (c *RootCache) Has(root beacon.Root) bool {
	return c.lru.Contains(root)
}
