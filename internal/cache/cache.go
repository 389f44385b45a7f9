package cache

import (
	"context"
	"time"

	"stroymarket/pos/internal/domain"
)

// StatsKey is the single key under which the catalog summary is cached.
const StatsKey = "stroypos:products:stats"

type StatsCache interface {
	Get(ctx context.Context, key string) (*domain.ProductStats, bool, error)
	Set(ctx context.Context, key string, value *domain.ProductStats, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type NoopStatsCache struct{}

func (NoopStatsCache) Get(_ context.Context, _ string) (*domain.ProductStats, bool, error) {
	return nil, false, nil
}

func (NoopStatsCache) Set(_ context.Context, _ string, _ *domain.ProductStats, _ time.Duration) error {
	return nil
}

func (NoopStatsCache) Delete(_ context.Context, _ string) error {
	return nil
}
