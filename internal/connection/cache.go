package connection

import (
	"sync"
	"time"

	"github.com/huggingduck/huggingduck/internal/store"
)

// CacheKey identifies a cached result by exact query text and duration.
type CacheKey struct {
	SQL string
	TTL time.Duration
}

// Cache stores query results until they expire.
type Cache interface {
	Get(key CacheKey, now time.Time) (QueryResult, bool)
	Set(key CacheKey, result QueryResult, now, expiresAt time.Time)
	Len() int
	Clear()
}

type cacheEntry struct {
	result    QueryResult
	expiresAt time.Time
}

// MemoryCache is an in-process Cache. Results are copied in and out, so
// callers may modify what they get back. Expired entries are dropped on
// read and swept on write.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[CacheKey]cacheEntry
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[CacheKey]cacheEntry)}
}

func (c *MemoryCache) Get(key CacheKey, now time.Time) (QueryResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return QueryResult{}, false
	}
	if !now.Before(entry.expiresAt) {
		delete(c.entries, key)
		return QueryResult{}, false
	}
	return cloneResult(entry.result), true
}

func (c *MemoryCache) Set(key CacheKey, result QueryResult, now, expiresAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for existing, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			delete(c.entries, existing)
		}
	}
	c.entries[key] = cacheEntry{result: cloneResult(result), expiresAt: expiresAt}
}

func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[CacheKey]cacheEntry)
}

func cloneResult(result QueryResult) QueryResult {
	result.Columns = append([]store.Column(nil), result.Columns...)
	if result.Rows != nil {
		rows := make([][]any, len(result.Rows))
		for i, row := range result.Rows {
			rows[i] = append([]any(nil), row...)
		}
		result.Rows = rows
	}
	return result
}
