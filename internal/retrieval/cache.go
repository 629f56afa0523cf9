package retrieval

import (
	"fmt"
	"sync"
	"time"
)

// ResultCache caches search results per (query, k) with a TTL and a
// capacity bound. Repeated dashboard questions skip re-ranking entirely.
type ResultCache struct {
	entries map[string]*cacheEntry
	mu      sync.RWMutex
	maxSize int
	ttl     time.Duration
}

type cacheEntry struct {
	hits      []Hit
	timestamp time.Time
}

// NewResultCache creates a cache holding up to maxSize entries for ttl.
func NewResultCache(maxSize int, ttl time.Duration) *ResultCache {
	return &ResultCache{
		entries: make(map[string]*cacheEntry),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

func cacheKey(query string, k int) string {
	return fmt.Sprintf("%d|%s", k, query)
}

// Get retrieves cached hits for a query.
func (c *ResultCache) Get(query string, k int) ([]Hit, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[cacheKey(query, k)]
	if !ok {
		return nil, false
	}
	if time.Since(entry.timestamp) > c.ttl {
		return nil, false
	}
	return entry.hits, true
}

// Set stores hits for a query.
func (c *ResultCache) Set(query string, k int, hits []Hit) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	c.entries[cacheKey(query, k)] = &cacheEntry{
		hits:      hits,
		timestamp: time.Now(),
	}
}

// evictOldest removes the oldest cache entry.
func (c *ResultCache) evictOldest() {
	var oldestKey string
	var oldestTime time.Time

	for key, entry := range c.entries {
		if oldestKey == "" || entry.timestamp.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.timestamp
		}
	}

	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

// Clear empties the cache.
func (c *ResultCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cacheEntry)
}

// Len returns the number of cached entries.
func (c *ResultCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
