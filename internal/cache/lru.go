// Package cache provides in-memory caches for query results
package cache

import (
	"container/list"
	"sync"
	"sync/atomic"

	"github.com/truongthanh96/Word2Vec/pkg/types"
)

// LRU implements a thread-safe LRU cache with generics
type LRU[K comparable, V any] struct {
	mu       sync.RWMutex
	capacity int
	items    map[K]*list.Element
	order    *list.List

	// Stats
	hits   atomic.Int64
	misses atomic.Int64
}

type entry[K comparable, V any] struct {
	key   K
	value V
}

// NewLRU creates a new LRU cache with the specified capacity
func NewLRU[K comparable, V any](capacity int) *LRU[K, V] {
	if capacity < 1 {
		capacity = 1
	}
	return &LRU[K, V]{
		capacity: capacity,
		items:    make(map[K]*list.Element),
		order:    list.New(),
	}
}

// Get retrieves a value from the cache, returning (value, true) if found
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.misses.Add(1)
		var zero V
		return zero, false
	}

	c.hits.Add(1)
	c.order.MoveToFront(elem)
	return elem.Value.(*entry[K, V]).value, true
}

// Put adds or updates a value in the cache
func (c *LRU[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Update existing entry
	if elem, ok := c.items[key]; ok {
		c.order.MoveToFront(elem)
		elem.Value.(*entry[K, V]).value = value
		return
	}

	// Evict oldest if at capacity
	if c.order.Len() >= c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			delete(c.items, oldest.Value.(*entry[K, V]).key)
			c.order.Remove(oldest)
		}
	}

	// Add new entry
	elem := c.order.PushFront(&entry[K, V]{key: key, value: value})
	c.items[key] = elem
}

// Len returns the current number of items in the cache
func (c *LRU[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Stats returns cache hit/miss statistics
func (c *LRU[K, V]) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// HitRate returns the cache hit rate as a percentage
func (c *LRU[K, V]) HitRate() float64 {
	hits := c.hits.Load()
	misses := c.misses.Load()
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total) * 100
}

// NeighborKey identifies a nearest-neighbor query
type NeighborKey struct {
	Word string
	TopK int
}

// NeighborCache caches nearest-neighbor listings per (word, k)
type NeighborCache struct {
	cache *LRU[NeighborKey, []types.Neighbor]
}

// NewNeighborCache creates a cache holding at most capacity listings
func NewNeighborCache(capacity int) *NeighborCache {
	return &NeighborCache{
		cache: NewLRU[NeighborKey, []types.Neighbor](capacity),
	}
}

// Get retrieves a copy of the cached listing for word and k
func (c *NeighborCache) Get(word string, k int) ([]types.Neighbor, bool) {
	ns, ok := c.cache.Get(NeighborKey{Word: word, TopK: k})
	if !ok {
		return nil, false
	}
	out := make([]types.Neighbor, len(ns))
	copy(out, ns)
	return out, true
}

// Put stores a copy of the listing for word and k
func (c *NeighborCache) Put(word string, k int, neighbors []types.Neighbor) {
	// Store a copy to prevent external modification
	nsCopy := make([]types.Neighbor, len(neighbors))
	copy(nsCopy, neighbors)
	c.cache.Put(NeighborKey{Word: word, TopK: k}, nsCopy)
}

// Len returns the number of cached listings
func (c *NeighborCache) Len() int {
	return c.cache.Len()
}

// Stats returns cache statistics
func (c *NeighborCache) Stats() (hits, misses int64, hitRate float64) {
	hits, misses = c.cache.Stats()
	hitRate = c.cache.HitRate()
	return
}
