package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stroymarket/pos/internal/domain"
)

func newTestCache(t *testing.T) (*RedisStatsCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := NewRedisStatsCache(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestRedisStatsCacheRoundTrip(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	require.NoError(t, c.Ping(ctx))

	_, ok, err := c.Get(ctx, StatsKey)
	require.NoError(t, err)
	assert.False(t, ok)

	stats := &domain.ProductStats{TotalProducts: 12, TotalValueCents: 987654321, LowStockCount: 3, AvgMargin: 21.4}
	require.NoError(t, c.Set(ctx, StatsKey, stats, 30*time.Second))

	got, ok, err := c.Get(ctx, StatsKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, stats, got)

	mr.FastForward(31 * time.Second)
	_, ok, err = c.Get(ctx, StatsKey)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStatsCacheDelete(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, StatsKey, &domain.ProductStats{TotalProducts: 1}, time.Minute))
	require.NoError(t, c.Delete(ctx, StatsKey))

	_, ok, err := c.Get(ctx, StatsKey)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, c.Set(ctx, StatsKey, nil, time.Minute))
}

func TestRedisStatsCacheCorruptValue(t *testing.T) {
	c, mr := newTestCache(t)
	require.NoError(t, mr.Set(StatsKey, "{not json"))

	_, ok, err := c.Get(context.Background(), StatsKey)
	require.ErrorIs(t, err, ErrCorruptEntry)
	assert.Contains(t, err.Error(), StatsKey)
	assert.False(t, ok)
	assert.False(t, mr.Exists(StatsKey), "corrupt entry should be dropped")
}

func TestRedisStatsCacheSkipsNonPositiveTTL(t *testing.T) {
	c, mr := newTestCache(t)
	require.NoError(t, c.Set(context.Background(), StatsKey, &domain.ProductStats{TotalProducts: 2}, 0))
	assert.False(t, mr.Exists(StatsKey))
}

func TestRedisStatsCacheErrorsNameTheKey(t *testing.T) {
	c, mr := newTestCache(t)
	mr.Close()

	_, _, err := c.Get(context.Background(), StatsKey)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis get "+StatsKey)

	err = c.Set(context.Background(), StatsKey, &domain.ProductStats{}, time.Minute)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis set "+StatsKey)
}

func TestNoopStatsCache(t *testing.T) {
	var c StatsCache = NoopStatsCache{}
	_, ok, err := c.Get(context.Background(), StatsKey)
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, c.Delete(context.Background(), StatsKey))
}
