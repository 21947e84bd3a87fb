package cache

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_InsertRetrieve(t *testing.T) {
	c := NewCache(10)

	require.NoError(t, c.Insert("a", 1, 1))
	assert.Equal(t, ErrExists, c.Insert("a", 2, 1))

	val, ok := c.Retrieve("a")
	require.True(t, ok)
	assert.Equal(t, 1, val)

	_, ok = c.Retrieve("missing")
	assert.False(t, ok)
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewCache(3)

	for i := 0; i < 3; i++ {
		require.NoError(t, c.Insert(fmt.Sprintf("key%d", i), i, 1))
	}

	// Touch key0 so key1 becomes the eviction candidate.
	_, ok := c.Retrieve("key0")
	require.True(t, ok)

	require.NoError(t, c.Insert("key3", 3, 1))

	_, ok = c.Retrieve("key1")
	assert.False(t, ok)
	_, ok = c.Retrieve("key0")
	assert.True(t, ok)
}

func TestCache_Clear(t *testing.T) {
	c := NewCache(10)
	require.NoError(t, c.Insert("a", 1, 1))

	c.Clear()

	_, ok := c.Retrieve("a")
	assert.False(t, ok)
	require.NoError(t, c.Insert("a", 1, 1))
}
