// Package ratecache is a tiny TTL memoizer for expensive per-key lookups
// (process metrics sampling, Java discovery scans) that callers otherwise
// repeat far more often than the underlying data changes.
package ratecache

import (
	"sync"
	"time"
)

// TimedCache memoizes the result of fn for ttl per key.
type TimedCache[K comparable, V any] struct {
	ttl   time.Duration
	mu    sync.Mutex
	cache map[K]entry[V]
}

type entry[V any] struct {
	value V
	at    time.Time
}

// New creates a TimedCache with the given time-to-live.
func New[K comparable, V any](ttl time.Duration) *TimedCache[K, V] {
	return &TimedCache[K, V]{ttl: ttl, cache: make(map[K]entry[V])}
}

// Get returns the cached value for key if still fresh, otherwise calls fn,
// caches, and returns its result.
func (c *TimedCache[K, V]) Get(key K, fn func() (V, error)) (V, error) {
	c.mu.Lock()
	if e, ok := c.cache[key]; ok && time.Since(e.at) < c.ttl {
		c.mu.Unlock()
		return e.value, nil
	}
	c.mu.Unlock()

	v, err := fn()
	if err != nil {
		var zero V
		return zero, err
	}

	c.mu.Lock()
	c.cache[key] = entry[V]{value: v, at: time.Now()}
	c.mu.Unlock()
	return v, nil
}

// Invalidate drops a cached key.
func (c *TimedCache[K, V]) Invalidate(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cache, key)
}
