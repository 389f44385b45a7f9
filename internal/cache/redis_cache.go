package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"stroymarket/pos/internal/domain"
)

// ErrCorruptEntry marks a cached value that no longer decodes as stats.
// Get drops such entries so the next read recomputes them.
var ErrCorruptEntry = errors.New("corrupt cache entry")

// RedisStatsCache keeps the catalog summary in Redis as JSON with a TTL.
type RedisStatsCache struct {
	client *redis.Client
}

func NewRedisStatsCache(addr string, password string, db int) *RedisStatsCache {
	return &RedisStatsCache{client: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

func (c *RedisStatsCache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping %s: %w", c.client.Options().Addr, err)
	}
	return nil
}

func (c *RedisStatsCache) Close() error {
	return c.client.Close()
}

func (c *RedisStatsCache) Get(ctx context.Context, key string) (*domain.ProductStats, bool, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, false, nil
	case err != nil:
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}

	var stats domain.ProductStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		_ = c.client.Del(ctx, key).Err()
		return nil, false, fmt.Errorf("%w %s: %v", ErrCorruptEntry, key, err)
	}
	return &stats, true, nil
}

// Set stores value under key. A nil value is ignored and a non-positive ttl
// stores nothing, so stale stats never outlive their window.
func (c *RedisStatsCache) Set(ctx context.Context, key string, value *domain.ProductStats, ttl time.Duration) error {
	if value == nil || ttl <= 0 {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode stats for %s: %w", key, err)
	}
	if err := c.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (c *RedisStatsCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}
