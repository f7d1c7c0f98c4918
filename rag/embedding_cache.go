package rag

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
)

// VectorCache 二级向量缓存（如 internal/cache.Manager）
type VectorCache interface {
	GetVector(ctx context.Context, key string) ([]float64, error)
	SetVector(ctx context.Context, key string, vec []float64, ttl time.Duration) error
}

// CacheStats 命中统计
type CacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

// CachedEmbedder 进程内 LRU + 可选的远端缓存，包装任意 Embedder
type CachedEmbedder struct {
	next   Embedder
	model  string
	lru    *expirable.LRU[string, []float64]
	remote VectorCache
	ttl    time.Duration
	hits   atomic.Int64
	misses atomic.Int64
	logger *zap.Logger

	// OnLookup 每次查找后回调，供指标采集
	OnLookup func(hit bool)
}

// NewCachedEmbedder 创建缓存向量器；size 或 ttl 非正时只使用远端缓存
func NewCachedEmbedder(next Embedder, model string, size int, ttl time.Duration, remote VectorCache, logger *zap.Logger) *CachedEmbedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if model == "" {
		model = "unknown"
	}
	c := &CachedEmbedder{
		next:   next,
		model:  model,
		remote: remote,
		ttl:    ttl,
		logger: logger.With(zap.String("component", "embedding_cache")),
	}
	if size > 0 && ttl > 0 {
		c.lru = expirable.NewLRU[string, []float64](size, nil, ttl)
	}
	return c
}

// Embed 先查 LRU，再查远端，最后调用下游并回填两级缓存
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	key := c.cacheKey(text)
	if vec, ok := c.lookup(ctx, key); ok {
		return vec, nil
	}

	vec, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, vec)
	return vec, nil
}

// EmbedBatch 只对未命中的文本调用下游
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	var missIdx []int
	var missTexts []string
	for i, t := range texts {
		if vec, ok := c.lookup(ctx, c.cacheKey(t)); ok {
			out[i] = vec
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	var vecs [][]float64
	if be, ok := c.next.(BatchEmbedder); ok {
		var err error
		if vecs, err = be.EmbedBatch(ctx, missTexts); err != nil {
			return nil, err
		}
	} else {
		vecs = make([][]float64, len(missTexts))
		for i, t := range missTexts {
			v, err := c.next.Embed(ctx, t)
			if err != nil {
				return nil, err
			}
			vecs[i] = v
		}
	}
	for j, i := range missIdx {
		out[i] = vecs[j]
		c.store(ctx, c.cacheKey(texts[i]), vecs[j])
	}
	return out, nil
}

// Stats 命中统计
func (c *CachedEmbedder) Stats() CacheStats {
	return CacheStats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}

// HealthCheck 透传下游健康检查
func (c *CachedEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := c.next.(HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}

func (c *CachedEmbedder) lookup(ctx context.Context, key string) ([]float64, bool) {
	if c.lru != nil {
		if v, ok := c.lru.Get(key); ok {
			c.record(true)
			return cloneVector(v), true
		}
	}
	if c.remote != nil {
		v, err := c.remote.GetVector(ctx, key)
		if err == nil {
			if c.lru != nil {
				c.lru.Add(key, cloneVector(v))
			}
			c.record(true)
			return v, true
		}
	}
	c.record(false)
	return nil, false
}

func (c *CachedEmbedder) store(ctx context.Context, key string, vec []float64) {
	if c.lru != nil {
		c.lru.Add(key, cloneVector(vec))
	}
	if c.remote != nil {
		if err := c.remote.SetVector(ctx, key, vec, c.ttl); err != nil {
			c.logger.Warn("failed to cache embedding", zap.Error(err))
		}
	}
}

func (c *CachedEmbedder) record(hit bool) {
	if hit {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	if c.OnLookup != nil {
		c.OnLookup(hit)
	}
}

func (c *CachedEmbedder) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "embed:" + c.model + ":" + hex.EncodeToString(sum[:])
}

func cloneVector(v []float64) []float64 {
	if v == nil {
		return nil
	}
	out := make([]float64, len(v))
	copy(out, v)
	return out
}
