package procedures

import (
	"context"
	"time"
)

// Cache holds the full procedure list between mutations.
// This allows swapping between in-memory, Redis, or other caching implementations.
type Cache interface {
	// Get retrieves cached procedures; ok is false on a miss or expiry
	Get(ctx context.Context) (ps []*Procedure, ok bool)

	// Set stores procedures in cache
	Set(ctx context.Context, ps []*Procedure)

	// Invalidate clears the cache, forcing a refresh on next Get
	Invalidate(ctx context.Context)
}

// CacheConfig holds configuration for cache behavior
type CacheConfig struct {
	// TTL is the time-to-live for cached entries
	// Set to 0 for no expiration (manual invalidation only)
	TTL time.Duration
}

// DefaultCacheConfig returns the defaults for the procedure list cache
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		TTL: 5 * time.Minute,
	}
}

// NoCache is a Cache that never holds anything
type NoCache struct{}

func (NoCache) Get(context.Context) ([]*Procedure, bool) { return nil, false }

func (NoCache) Set(context.Context, []*Procedure) {}

func (NoCache) Invalidate(context.Context) {}

func cloneAll(ps []*Procedure) []*Procedure {
	out := make([]*Procedure, len(ps))
	for i, p := range ps {
		out[i] = p.clone()
	}
	return out
}
