// Package cache provides a small Redis-backed read cache. The ward bed board
// is the one hot read in the system (polled by every ward dashboard), so its
// query results are cached here and invalidated by ADT mutations.
//
// A nil *Cache is valid and disables caching, so the service runs without
// Redis configured.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

const defaultTTL = 30 * time.Second

type Cache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// New connects to Redis at redisURL ("redis://host:port/db"). It pings the
// server so a misconfigured cache fails at startup, not on first request.
func New(ctx context.Context, redisURL string, logger zerolog.Logger) (*Cache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Cache{rdb: rdb, ttl: defaultTTL, logger: logger}, nil
}

// GetJSON loads the value at key into dest. The bool reports a cache hit.
// Cache errors are logged and reported as misses; the caller falls through
// to the database.
func (c *Cache) GetJSON(ctx context.Context, key string, dest interface{}) bool {
	if c == nil {
		return false
	}
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false
	}
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("cache get failed")
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("cache entry corrupt")
		return false
	}
	return true
}

// SetJSON stores val at key with the cache TTL. Failures are logged only.
func (c *Cache) SetJSON(ctx context.Context, key string, val interface{}) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(val)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("cache marshal failed")
		return
	}
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("cache set failed")
	}
}

// DeletePrefix drops every key under prefix. Used to invalidate the bed
// board after an admit, discharge, transfer or manual bed override.
func (c *Cache) DeletePrefix(ctx context.Context, prefix string) {
	if c == nil {
		return
	}
	iter := c.rdb.Scan(ctx, 0, prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.logger.Warn().Err(err).Str("prefix", prefix).Msg("cache scan failed")
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn().Err(err).Str("prefix", prefix).Msg("cache invalidation failed")
	}
}

// Close releases the underlying connection.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.rdb.Close()
}
