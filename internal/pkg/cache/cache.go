/*
Package cache provides a small bounded cache with explicit time- and size-based
eviction.

Entries expire after a fixed TTL, and when the cache is full the entry closest
to expiry is evicted to make room. Eviction is explicit rather than relying on
garbage-collector-driven reclamation, so memory use stays predictable.
*/
package cache

import (
	"sync"
	"time"
)

// entry is one cached value together with its expiry deadline.
type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTLCache is a concurrency-safe bounded cache keyed by string.
type TTLCache[V any] struct {
	// mu protects concurrent access to the entries map.
	mu sync.Mutex

	// entries stores the cached values keyed by caller-supplied string keys.
	entries map[string]entry[V]

	// maxEntries is the capacity ceiling. At capacity, adding a new key evicts
	// the entry closest to expiry.
	maxEntries int

	// ttl is the lifetime of each entry from the moment it is set.
	ttl time.Duration

	// now is the clock function, replaceable in tests.
	now func() time.Time
}

// NewTTL creates a TTLCache holding at most maxEntries values, each valid for ttl.
func NewTTL[V any](maxEntries int, ttl time.Duration) *TTLCache[V] {
	return &TTLCache[V]{
		entries:    make(map[string]entry[V], maxEntries),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
	}
}

// Get returns the cached value for key and whether a live entry was found.
// Expired entries are removed on access.
func (c *TTLCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}

	if c.now().After(e.expiresAt) {
		delete(c.entries, key)
		var zero V
		return zero, false
	}

	return e.value, true
}

// Set stores value under key, overwriting any previous entry. When the cache is
// at capacity, expired entries are dropped first; if none are expired, the
// entry closest to expiry is evicted.
func (c *TTLCache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictOneLocked()
	}

	c.entries[key] = entry[V]{
		value:     value,
		expiresAt: c.now().Add(c.ttl),
	}
}

// Len returns the number of entries currently held, including entries that are
// expired but not yet collected.
func (c *TTLCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

// evictOneLocked removes all expired entries, or failing that, the single entry
// closest to expiry. Callers must hold mu.
func (c *TTLCache[V]) evictOneLocked() {
	now := c.now()

	removed := false
	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
			removed = true
		}
	}
	if removed {
		return
	}

	var oldestKey string
	var oldestExpiry time.Time
	first := true
	for key, e := range c.entries {
		if first || e.expiresAt.Before(oldestExpiry) {
			oldestKey = key
			oldestExpiry = e.expiresAt
			first = false
		}
	}
	if !first {
		delete(c.entries, oldestKey)
	}
}
