// Package iocache is for caching I/O calls: statement results, table metadata
// and complexity scores.
package iocache

import (
	"errors"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"github.com/huangsam/querymancer/internal/contract"
	"github.com/huangsam/querymancer/internal/telemetry"
	"github.com/huangsam/querymancer/schema"
)

// ErrMiss is returned by Lookup when the key was never stored or already evicted.
var ErrMiss = errors.New("cache miss")

// ErrExpired is returned by Lookup when the entry was present but outlived its TTL.
var ErrExpired = errors.New("cache entry expired")

// entry is a cached value with its insertion time.
type entry[V any] struct {
	value    V
	storedAt time.Time
}

// TTLCache is a mutex-guarded LRU cache whose entries expire lazily.
// An entry is visible only while now - storedAt < ttl. Reads move the entry
// to the most recently used position; overflow evicts the least recently used.
type TTLCache[V any] struct {
	name     string
	capacity int
	ttl      time.Duration
	now      func() time.Time
	metrics  *telemetry.Metrics

	mu          sync.Mutex
	lru         *simplelru.LRU[string, entry[V]]
	hits        int64
	misses      int64
	evictions   int64
	expirations int64
}

// NewTTLCache creates a cache holding at most capacity entries for ttl each.
func NewTTLCache[V any](name string, capacity int, ttl time.Duration, metrics *telemetry.Metrics) *TTLCache[V] {
	if capacity <= 0 {
		capacity = 1
	}
	// NewLRU only fails for a non-positive size.
	lru, _ := simplelru.NewLRU[string, entry[V]](capacity, nil)
	return &TTLCache[V]{
		name:     name,
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
		metrics:  metrics,
		lru:      lru,
	}
}

// SetClock replaces the time source. Used by tests.
func (c *TTLCache[V]) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Name returns the cache name used in logs and metrics.
func (c *TTLCache[V]) Name() string { return c.name }

// Get returns the live value for key, or the zero value and false.
func (c *TTLCache[V]) Get(key string) (V, bool) {
	v, err := c.Lookup(key)
	return v, err == nil
}

// Lookup is Get with the reason for a miss: ErrMiss or ErrExpired.
func (c *TTLCache[V]) Lookup(key string) (V, error) {
	var zero V

	c.mu.Lock()
	e, ok := c.lru.Get(key)
	if !ok {
		c.misses++
		c.mu.Unlock()
		c.metrics.CacheMiss(c.name)
		return zero, ErrMiss
	}
	if c.ttl > 0 && c.now().Sub(e.storedAt) >= c.ttl {
		c.lru.Remove(key)
		c.expirations++
		c.misses++
		c.mu.Unlock()
		c.metrics.CacheExpiration(c.name)
		c.metrics.CacheMiss(c.name)
		return zero, ErrExpired
	}
	c.hits++
	c.mu.Unlock()
	c.metrics.CacheHit(c.name)
	return e.value, nil
}

// Set stores value under key, refreshing its timestamp and recency.
func (c *TTLCache[V]) Set(key string, value V) {
	c.mu.Lock()
	evicted := c.lru.Add(key, entry[V]{value: value, storedAt: c.now()})
	if evicted {
		c.evictions++
	}
	c.mu.Unlock()

	if evicted {
		c.metrics.CacheEviction(c.name)
		contract.Logger().Debug().Str("cache", c.name).Int("capacity", c.capacity).Msg("evicted least recently used entry")
	}
}

// Delete removes key and reports whether it was present.
func (c *TTLCache[V]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Remove(key)
}

// Clear drops every entry. Counters are kept.
func (c *TTLCache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}

// Len returns the number of stored entries, including expired ones not yet touched.
func (c *TTLCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Keys returns the stored keys from least to most recently used.
func (c *TTLCache[V]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Keys()
}

// Stats returns a snapshot of the cache counters.
func (c *TTLCache[V]) Stats() schema.CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return schema.CacheStats{
		Name:        c.name,
		Entries:     c.lru.Len(),
		Capacity:    c.capacity,
		TTL:         c.ttl,
		Hits:        c.hits,
		Misses:      c.misses,
		Evictions:   c.evictions,
		Expirations: c.expirations,
	}
}
