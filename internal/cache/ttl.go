// Package cache provides a small thread-safe in-memory key-value store with
// per-entry TTL expiry. It backs the places response cache, the geocode
// cache, and the identify-result cache.
package cache

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// TTL is a thread-safe string-keyed store whose entries expire after their
// individual TTL. Expired entries are dropped lazily on read and swept when
// the store grows past maxEntries.
type TTL[V any] struct {
	maxEntries int
	clock      clockwork.Clock

	mu      sync.Mutex
	entries map[string]ttlEntry[V]
}

type ttlEntry[V any] struct {
	value     V
	expiresAt time.Time
}

// New creates a TTL store holding at most maxEntries live entries.
func New[V any](maxEntries int) *TTL[V] {
	return NewWithClock[V](maxEntries, clockwork.NewRealClock())
}

// NewWithClock creates a TTL store with an injected clock, for tests that
// need to advance time deterministically.
func NewWithClock[V any](maxEntries int, clock clockwork.Clock) *TTL[V] {
	return &TTL[V]{
		maxEntries: maxEntries,
		clock:      clock,
		entries:    make(map[string]ttlEntry[V]),
	}
}

// Get returns the live value for key. An expired entry counts as a miss and
// is removed.
func (c *TTL[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if !c.clock.Now().Before(e.expiresAt) {
		delete(c.entries, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value under key for ttl. A non-positive ttl removes the key.
func (c *TTL[V]) Set(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ttl <= 0 {
		delete(c.entries, key)
		return
	}
	c.entries[key] = ttlEntry[V]{value: value, expiresAt: c.clock.Now().Add(ttl)}

	if len(c.entries) > c.maxEntries {
		c.sweepLocked()
	}
}

// Len returns the number of stored entries, expired ones included until the
// next sweep.
func (c *TTL[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// sweepLocked drops all expired entries. If the store is still over
// capacity afterwards, the soonest-to-expire entries go first.
func (c *TTL[V]) sweepLocked() {
	now := c.clock.Now()
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
		}
	}
	for len(c.entries) > c.maxEntries {
		var oldestKey string
		var oldest time.Time
		first := true
		for k, e := range c.entries {
			if first || e.expiresAt.Before(oldest) {
				oldestKey, oldest = k, e.expiresAt
				first = false
			}
		}
		delete(c.entries, oldestKey)
	}
}
