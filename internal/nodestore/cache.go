package nodestore

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Cache is an LRU+TTL cache of recently touched nodes, keyed by hash.
type Cache struct {
	mu      sync.Mutex
	inner   *expirable.LRU[Hash256, *Node]
	maxSize int
	hits    uint64
	misses  uint64
	evicted uint64
}

// NewCache constructs a cache holding up to maxSize entries, evicting
// entries older than ttl (ttl<=0 disables expiration).
func NewCache(maxSize int, ttl time.Duration) *Cache {
	c := &Cache{maxSize: maxSize}
	c.inner = expirable.NewLRU[Hash256, *Node](maxSize, func(Hash256, *Node) {
		c.evicted++
	}, ttl)
	return c
}

// Get returns the cached node for hash, if present and unexpired.
func (c *Cache) Get(hash Hash256) (*Node, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	node, ok := c.inner.Get(hash)
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return node, ok
}

// Put inserts or refreshes a node in the cache.
func (c *Cache) Put(node *Node) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inner.Add(node.Hash, node)
}

// Sweep drops expired entries. expirable.LRU expires lazily on access, so
// this walks every key to force eviction of anything past its ttl.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	before := c.inner.Len()
	for _, key := range c.inner.Keys() {
		c.inner.Get(key)
	}
	return before - c.inner.Len()
}

// Len returns the number of entries currently cached.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inner.Len()
}

type cacheStats struct {
	hits, misses, evicted uint64
	size, maxSize         int
}

func (c *Cache) stats() cacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cacheStats{
		hits:    c.hits,
		misses:  c.misses,
		evicted: c.evicted,
		size:    c.inner.Len(),
		maxSize: c.maxSize,
	}
}
