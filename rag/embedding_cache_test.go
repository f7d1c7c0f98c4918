package rag

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/ragcore/internal/cache"
	"github.com/BaSui01/ragcore/testutil/mocks"
)

func TestCachedEmbedder_LRU(t *testing.T) {
	inner := mocks.NewMockEmbedder(16).WithEmbedFunc(NewHashingEmbedder(16, nil).Embed)
	var lookups []bool
	c := NewCachedEmbedder(inner, "hash-16", 8, time.Minute, nil, nil)
	c.OnLookup = func(hit bool) { lookups = append(lookups, hit) }
	ctx := context.Background()

	first, err := c.Embed(ctx, "shipment delayed")
	require.NoError(t, err)
	second, err := c.Embed(ctx, "shipment delayed")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.CallCount())
	assert.Equal(t, CacheStats{Hits: 1, Misses: 1}, c.Stats())
	assert.Equal(t, []bool{false, true}, lookups)

	// 返回值是副本
	second[0] = 42
	third, err := c.Embed(ctx, "shipment delayed")
	require.NoError(t, err)
	assert.NotEqual(t, 42.0, third[0])
}

func TestCachedEmbedder_Batch(t *testing.T) {
	inner := mocks.NewMockEmbedder(16).WithEmbedFunc(NewHashingEmbedder(16, nil).Embed)
	c := NewCachedEmbedder(inner, "m", 8, time.Minute, nil, nil)
	ctx := context.Background()

	_, err := c.Embed(ctx, "b")
	require.NoError(t, err)

	out, err := c.EmbedBatch(ctx, []string{"a", "b", "c"})

	require.NoError(t, err)
	require.Len(t, out, 3)
	// MockEmbedder 不支持批量，逐条调用未命中的 a 与 c
	assert.Equal(t, 3, inner.CallCount())
	want, _ := NewHashingEmbedder(16, nil).Embed(ctx, "c")
	assert.Equal(t, want, out[2])

	out, err = c.EmbedBatch(ctx, []string{"a", "c"})
	require.NoError(t, err)
	assert.Len(t, out, 2)
	assert.Equal(t, 3, inner.CallCount())
}

func TestCachedEmbedder_ErrorNotCached(t *testing.T) {
	c := NewCachedEmbedder(failingEmbedder{errBoom}, "m", 8, time.Minute, nil, nil)

	_, err := c.Embed(context.Background(), "x")
	assert.ErrorIs(t, err, errBoom)
	_, err = c.EmbedBatch(context.Background(), []string{"x"})
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, int64(0), c.Stats().Hits)
}

func TestCachedEmbedder_KeyIncludesModel(t *testing.T) {
	a := NewCachedEmbedder(NewHashingEmbedder(4, nil), "model-a", 1, time.Minute, nil, nil)
	b := NewCachedEmbedder(NewHashingEmbedder(4, nil), "", 1, time.Minute, nil, nil)

	assert.True(t, strings.HasPrefix(a.cacheKey("t"), "embed:model-a:"))
	assert.True(t, strings.HasPrefix(b.cacheKey("t"), "embed:unknown:"))
	assert.NotEqual(t, a.cacheKey("t"), a.cacheKey("u"))
}

func newMiniredisCache(t *testing.T) (*miniredis.Miniredis, *cache.Manager) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	cfg := cache.DefaultConfig()
	cfg.Addr = mr.Addr()
	cfg.KeyPrefix = "test:"
	cfg.HealthCheckInterval = 0
	m, err := cache.NewManager(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = m.Close()
		mr.Close()
	})
	return mr, m
}

func TestCachedEmbedder_RedisSecondLevel(t *testing.T) {
	mr, remote := newMiniredisCache(t)
	ctx := context.Background()

	inner := mocks.NewMockEmbedder(16).WithEmbedFunc(NewHashingEmbedder(16, nil).Embed)
	writer := NewCachedEmbedder(inner, "hash-16", 0, time.Minute, remote, nil)
	vec, err := writer.Embed(ctx, "strike in germany")
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:"+writer.cacheKey("strike in germany")))

	// 另一个进程：LRU 为空，命中 Redis
	other := mocks.NewMockEmbedder(16).WithEmbedFunc(NewHashingEmbedder(16, nil).Embed)
	reader := NewCachedEmbedder(other, "hash-16", 8, time.Minute, remote, nil)
	got, err := reader.Embed(ctx, "strike in germany")

	require.NoError(t, err)
	assert.Equal(t, 0, other.CallCount())
	assert.InDeltaSlice(t, vec, got, 1e-12)
	assert.Equal(t, int64(1), reader.Stats().Hits)

	// 回填到 LRU 后 Redis 不可用也能命中
	mr.FlushAll()
	_, err = reader.Embed(ctx, "strike in germany")
	require.NoError(t, err)
	assert.Equal(t, 0, other.CallCount())
}

func TestCachedEmbedder_RedisDown(t *testing.T) {
	mr, remote := newMiniredisCache(t)
	mr.Close()

	inner := mocks.NewMockEmbedder(16).WithEmbedFunc(NewHashingEmbedder(16, nil).Embed)
	c := NewCachedEmbedder(inner, "m", 0, time.Minute, remote, nil)

	_, err := c.Embed(context.Background(), "still works")

	require.NoError(t, err)
	assert.Equal(t, 1, inner.CallCount())
}
