package procedures

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/liamcoop/marches/internal/logger"
)

// DefaultRedisCacheKey is the key holding the cached procedure list
const DefaultRedisCacheKey = "marches:procedures:all"

// RedisCache implements Cache on a Redis string holding the JSON-encoded
// list. Redis failures are logged and treated as misses.
type RedisCache struct {
	client *redis.Client
	key    string
	config CacheConfig
}

// NewRedisCache creates a Redis-backed procedure cache
func NewRedisCache(client *redis.Client, config CacheConfig) *RedisCache {
	return &RedisCache{
		client: client,
		key:    DefaultRedisCacheKey,
		config: config,
	}
}

// Get retrieves cached procedures
func (c *RedisCache) Get(ctx context.Context) ([]*Procedure, bool) {
	data, err := c.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		logger.Warn("procedure cache read failed", "key", c.key, "error", err)
		return nil, false
	}

	var ps []*Procedure
	if err := json.Unmarshal(data, &ps); err != nil {
		logger.Warn("procedure cache holds invalid data", "key", c.key, "error", err)
		return nil, false
	}
	return ps, true
}

// Set stores procedures in cache with the configured TTL
func (c *RedisCache) Set(ctx context.Context, ps []*Procedure) {
	if ps == nil {
		ps = []*Procedure{}
	}
	data, err := json.Marshal(ps)
	if err != nil {
		logger.Warn("procedure cache encode failed", "error", err)
		return
	}

	if err := c.client.Set(ctx, c.key, data, c.config.TTL).Err(); err != nil {
		logger.Warn("procedure cache write failed", "key", c.key, "error", err)
	}
}

// Invalidate deletes the cached list
func (c *RedisCache) Invalidate(ctx context.Context) {
	if err := c.client.Del(ctx, c.key).Err(); err != nil {
		logger.Warn("procedure cache invalidation failed", "key", c.key, "error", err)
	}
}
