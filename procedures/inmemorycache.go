package procedures

import (
	"context"
	"sync"
	"time"
)

// InMemoryCache is a simple in-memory implementation of Cache.
// Thread-safe for concurrent access.
type InMemoryCache struct {
	procedures []*Procedure
	cachedAt   time.Time
	config     CacheConfig
	mu         sync.RWMutex
	isValid    bool
}

// NewInMemoryCache creates a new in-memory procedure cache
func NewInMemoryCache(config CacheConfig) *InMemoryCache {
	return &InMemoryCache{
		config: config,
	}
}

// Get retrieves cached procedures.
// Misses if the cache is invalid or expired.
func (c *InMemoryCache) Get(ctx context.Context) ([]*Procedure, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.valid() {
		return nil, false
	}

	// Return copies to prevent external modifications
	return cloneAll(c.procedures), true
}

// Set stores procedures in cache
func (c *InMemoryCache) Set(ctx context.Context, ps []*Procedure) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.procedures = cloneAll(ps)
	c.cachedAt = time.Now()
	c.isValid = true
}

// Invalidate clears the cache
func (c *InMemoryCache) Invalidate(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.isValid = false
	c.procedures = nil
}

// IsValid returns true if cache contains valid data
func (c *InMemoryCache) IsValid() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.valid()
}

func (c *InMemoryCache) valid() bool {
	if !c.isValid {
		return false
	}
	if c.config.TTL > 0 {
		return time.Since(c.cachedAt) <= c.config.TTL
	}
	return true
}
