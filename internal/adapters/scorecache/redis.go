package scorecache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/soundscene/pulse/internal/domain/ranking"
	"github.com/soundscene/pulse/pkg/logger"
)

const redisKeyPattern = "trending:*"

// RedisCache implements Cache on a Redis backend so multiple service
// replicas share one trending page cache. Pages are stored as JSON with a
// server-side TTL.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
	log logger.Logger
}

// RedisOption applies a configuration option to the RedisCache.
type RedisOption func(*RedisCache)

// WithRedisTTL sets the page TTL.
func WithRedisTTL(ttl time.Duration) RedisOption {
	return func(c *RedisCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// NewRedisCache creates a cache on an existing Redis client.
func NewRedisCache(rdb *redis.Client, opts ...RedisOption) *RedisCache {
	c := &RedisCache{
		rdb: rdb,
		ttl: defaultTTL,
		log: logger.Named("scorecache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OpenRedis dials a Redis server with conservative timeouts.
func OpenRedis(ctx context.Context, addr string, opts ...RedisOption) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return NewRedisCache(rdb, opts...), nil
}

// Get returns a cached page when present. Backend failures degrade to a
// cache miss; the caller recomputes.
func (c *RedisCache) Get(ctx context.Context, key Key) ([]ranking.Ranked, bool) {
	raw, err := c.rdb.Get(ctx, key.String()).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn(ctx, "cache read failed", logger.Error(err))
		}
		return nil, false
	}

	var page []ranking.Ranked
	if err := json.Unmarshal(raw, &page); err != nil {
		c.log.Warn(ctx, "cache payload corrupt", logger.Error(err))
		return nil, false
	}
	return page, true
}

// Set stores a page under the TTL. Failures are logged, not surfaced: the
// cache is advisory.
func (c *RedisCache) Set(ctx context.Context, key Key, page []ranking.Ranked) {
	raw, err := json.Marshal(page)
	if err != nil {
		c.log.Warn(ctx, "cache payload marshal failed", logger.Error(err))
		return
	}
	if err := c.rdb.Set(ctx, key.String(), raw, c.ttl).Err(); err != nil {
		c.log.Warn(ctx, "cache write failed", logger.Error(err))
	}
}

// Invalidate drops every cached trending page.
func (c *RedisCache) Invalidate(ctx context.Context) {
	iter := c.rdb.Scan(ctx, 0, redisKeyPattern, 0).Iterator()
	for iter.Next(ctx) {
		if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			c.log.Warn(ctx, "cache invalidate failed", logger.Error(err))
			return
		}
	}
	if err := iter.Err(); err != nil {
		c.log.Warn(ctx, "cache scan failed", logger.Error(err))
	}
}

// Close closes the Redis client.
func (c *RedisCache) Close() error {
	return c.rdb.Close()
}
