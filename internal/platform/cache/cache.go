// Package cache provides a small keyed cache over Redis, used for
// read-through caching of catalog reads and for the fixed-window rate
// limit counters. Redis keeps the cached state shared across replicas.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrMiss is returned when a key is not present in the cache.
var ErrMiss = errors.New("cache miss")

// Cache wraps a Redis client with JSON serialization and a key prefix.
type Cache struct {
	client *redis.Client
	prefix string
}

// New creates a Cache over the given Redis client. All keys are stored
// under the prefix so multiple applications can share one Redis.
func New(client *redis.Client, prefix string) *Cache {
	return &Cache{
		client: client,
		prefix: prefix,
	}
}

func (c *Cache) key(k string) string {
	return c.prefix + ":" + k
}

// Get loads the value stored under key into dest. Returns ErrMiss when
// the key does not exist.
func (c *Cache) Get(ctx context.Context, key string, dest any) error {
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrMiss
		}
		return fmt.Errorf("cache get failed: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("cache value corrupt: %w", err)
	}
	return nil
}

// Set stores value under key with the given TTL.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache value not serializable: %w", err)
	}

	if err := c.client.Set(ctx, c.key(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("cache set failed: %w", err)
	}
	return nil
}

// Delete removes one or more keys. Missing keys are not an error.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.key(k)
	}
	if err := c.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("cache delete failed: %w", err)
	}
	return nil
}

// Incr increments the counter under key and sets its expiry when the
// counter is new. Used for fixed-window rate limiting.
func (c *Cache) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	full := c.key(key)

	count, err := c.client.Incr(ctx, full).Result()
	if err != nil {
		return 0, fmt.Errorf("counter increment failed: %w", err)
	}
	if count == 1 {
		if err := c.client.Expire(ctx, full, window).Err(); err != nil {
			return count, fmt.Errorf("counter expire failed: %w", err)
		}
	}
	return count, nil
}

// Ping checks connectivity to Redis, used by the readiness probe.
func (c *Cache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis unreachable: %w", err)
	}
	return nil
}
