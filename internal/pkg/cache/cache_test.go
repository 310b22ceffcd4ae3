package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTTLCache_SetAndGet(t *testing.T) {
	t.Parallel()

	c := NewTTL[string](4, time.Minute)

	c.Set("a", "alpha")

	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "alpha", got)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestTTLCache_Expiry(t *testing.T) {
	t.Parallel()

	c := NewTTL[int](4, time.Minute)

	current := time.Now()
	c.now = func() time.Time { return current }

	c.Set("a", 1)

	current = current.Add(2 * time.Minute)

	_, ok := c.Get("a")
	assert.False(t, ok, "entry should expire after the TTL")
	assert.Equal(t, 0, c.Len())
}

func TestTTLCache_BoundedEviction(t *testing.T) {
	t.Parallel()

	c := NewTTL[int](2, time.Minute)

	current := time.Now()
	c.now = func() time.Time { return current }

	c.Set("a", 1)
	current = current.Add(time.Second)
	c.Set("b", 2)
	current = current.Add(time.Second)

	// Cache is full; "a" is closest to expiry and should be evicted.
	c.Set("c", 3)

	assert.Equal(t, 2, c.Len())

	_, ok := c.Get("a")
	assert.False(t, ok, "oldest entry should have been evicted")

	_, ok = c.Get("b")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestTTLCache_OverwriteDoesNotEvict(t *testing.T) {
	t.Parallel()

	c := NewTTL[int](2, time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("a", 10)

	assert.Equal(t, 2, c.Len())

	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 10, got)
}
