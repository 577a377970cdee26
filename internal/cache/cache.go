package cache

import (
	"sync"
	"time"
)

const DefaultTTL = 5 * time.Minute

type entry[V any] struct {
	value    V
	storedAt time.Time
}

// TTL is an in-process key/value cache whose entries stop being returned
// once they are older than ttl. Stale entries are kept until overwritten.
type TTL[V any] struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]entry[V]
}

func New[V any](ttl time.Duration, now func() time.Time) *TTL[V] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}

	return &TTL[V]{
		ttl:     ttl,
		now:     now,
		entries: make(map[string]entry[V]),
	}
}

func (c *TTL[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || c.now().Sub(e.storedAt) >= c.ttl {
		var zero V
		return zero, false
	}

	return e.value, true
}

func (c *TTL[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry[V]{value: value, storedAt: c.now()}
}

func (c *TTL[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}
