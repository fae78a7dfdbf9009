package internal

import (
	"sync"

	"github.com/golang/groupcache/lru"
)

// CacheStats is a point-in-time view of cache usage.
type CacheStats struct {
	Size      int     `json:"size" yaml:"size"`
	Capacity  int     `json:"capacity" yaml:"capacity"`
	Hits      uint64  `json:"hits" yaml:"hits"`
	Misses    uint64  `json:"misses" yaml:"misses"`
	Evictions uint64  `json:"evictions" yaml:"evictions"`
	HitRatio  float64 `json:"hit_ratio" yaml:"hit_ratio"`
}

// MemoryCache is a bounded LRU cache safe for concurrent use. Every operation
// holds the same mutex, so operations are atomic with respect to each other.
type MemoryCache[V any] struct {
	mu        sync.Mutex
	lru       *lru.Cache
	capacity  int
	hits      uint64
	misses    uint64
	evictions uint64
	dropped   bool
}

func NewMemoryCache[V any](capacity int) (*MemoryCache[V], error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}

	c := &MemoryCache[V]{capacity: capacity}
	c.lru = lru.New(capacity)
	c.lru.OnEvicted = func(lru.Key, interface{}) { c.dropped = true }
	return c, nil
}

// Get returns the cached value and promotes it to most recently used.
func (c *MemoryCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := c.lru.Get(key); ok {
		c.hits++
		return v.(V), true
	}
	c.misses++
	var zero V
	return zero, false
}

// Put inserts or replaces key as most recently used, evicting the least
// recently used entry when the cache is full.
func (c *MemoryCache[V]) Put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.dropped = false
	c.lru.Add(key, value)
	if c.dropped {
		c.evictions++
	}
}

// Remove evicts key and reports whether it was present.
func (c *MemoryCache[V]) Remove(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.dropped = false
	c.lru.Remove(key)
	return c.dropped
}

// Clear drops every entry and resets the counters.
func (c *MemoryCache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Clear()
	c.hits = 0
	c.misses = 0
	c.evictions = 0
}

func (c *MemoryCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

func (c *MemoryCache[V]) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := CacheStats{
		Size:      c.lru.Len(),
		Capacity:  c.capacity,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
	if total := c.hits + c.misses; total > 0 {
		stats.HitRatio = float64(c.hits) / float64(total)
	}
	return stats
}
