package cache

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/beaconindexer/indexer/indexer/beacon"
)

func TestRootCache_PutAndGet(t *testing.T) {
	c, err := New()
	require.NoError(t, err)

	root := beacon.Root{1}
	_, ok := c.Get(root)
	require.False(t, ok)
	require.False(t, c.Has(root))

	c.Put(root, beacon.Slot(42))

	slot, ok := c.Get(root)
	require.True(t, ok)
	require.Equal(t, beacon.Slot(42), slot)
	require.True(t, c.Has(root))
}

func TestRootCache_UnknownRoot(t *testing.T) {
	c, err := New()
	require.NoError(t, err)

	_, ok := c.Get(beacon.Root{9})
	require.False(t, ok)
}
