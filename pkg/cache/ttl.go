// Package cache provides a thread-safe in-memory TTL cache.
package cache

import (
	"sync"
	"time"
)

// entry holds a cached value with a timestamp for TTL expiration.
type entry[V any] struct {
	value    V
	storedAt time.Time
}

// TTL is a thread-safe in-memory cache with per-cache TTL expiration.
// Expired entries are cleaned up lazily on Get — no background goroutine.
// Caches are ephemeral: nothing is flushed or persisted on shutdown.
type TTL[V any] struct {
	mu      sync.RWMutex
	entries map[string]*entry[V]
	ttl     time.Duration
}

// NewTTL creates a new cache with the given TTL.
func NewTTL[V any](ttl time.Duration) *TTL[V] {
	return &TTL[V]{
		entries: make(map[string]*entry[V]),
		ttl:     ttl,
	}
}

// Get returns the cached value if present and not expired.
func (c *TTL[V]) Get(key string) (V, bool) {
	var zero V

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return zero, false
	}

	if time.Since(e.storedAt) > c.ttl {
		// Expired — clean up lazily.
		// Re-check under write lock: a concurrent Set may have replaced
		// the entry with a fresh one between RUnlock and Lock.
		c.mu.Lock()
		if current, ok := c.entries[key]; ok && time.Since(current.storedAt) > c.ttl {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return zero, false
	}

	return e.value, true
}

// Set stores a value with the current timestamp.
func (c *TTL[V]) Set(key string, value V) {
	c.mu.Lock()
	c.entries[key] = &entry[V]{
		value:    value,
		storedAt: time.Now(),
	}
	c.mu.Unlock()
}

// Evict removes a single key.
func (c *TTL[V]) Evict(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Clear removes every entry.
func (c *TTL[V]) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*entry[V])
	c.mu.Unlock()
}

// Len returns the number of entries, expired or not.
func (c *TTL[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
