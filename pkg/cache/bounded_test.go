package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoundedCache_GetSet(t *testing.T) {
	c := NewBoundedCache(10, time.Minute)

	c.Set("a", "alpha")
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "alpha", v)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestBoundedCache_TTLExpiry(t *testing.T) {
	c := NewBoundedCache(10, time.Minute)
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return current }

	c.Set("a", "alpha")
	current = current.Add(61 * time.Second)

	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len(), "expired entry is removed on read")
}

func TestBoundedCache_EvictsOldestInserted(t *testing.T) {
	c := NewBoundedCache(2, time.Minute)

	c.Set("first", 1)
	c.Set("second", 2)

	// Reading "first" must not protect it: eviction is insertion-ordered
	_, ok := c.Get("first")
	require.True(t, ok)

	c.Set("third", 3)

	_, ok = c.Get("first")
	assert.False(t, ok, "oldest-inserted entry should be evicted")
	_, ok = c.Get("second")
	assert.True(t, ok)
	_, ok = c.Get("third")
	assert.True(t, ok)
}

func TestBoundedCache_OverwriteRefreshesPosition(t *testing.T) {
	c := NewBoundedCache(2, time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("a", 10) // re-insert, "b" becomes oldest
	c.Set("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 10, v)
}

func TestBoundedCache_Clear(t *testing.T) {
	c := NewBoundedCache(5, time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Clear()

	assert.Equal(t, 0, c.Len())
	_, ok := c.Get("a")
	assert.False(t, ok)
}
