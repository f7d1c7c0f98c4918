// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器。所有 Record 方法对 nil 接收者安全，未启用指标时可直接传 nil。
type Collector struct {
	// 检索指标
	searchRequestsTotal *prometheus.CounterVec
	searchDuration      *prometheus.HistogramVec
	stageDuration       *prometheus.HistogramVec
	stageDegradations   *prometheus.CounterVec
	candidatesReturned  *prometheus.HistogramVec

	// 索引指标
	indexedChunks        *prometheus.CounterVec
	indexDuration        prometheus.Histogram
	generationsPublished prometheus.Counter
	removedChunks        prometheus.Counter

	// 图遍历指标
	traversalPaths   prometheus.Histogram
	traversalPartial prometheus.Counter

	// 模型调用指标
	llmRequestsTotal   *prometheus.CounterVec
	llmRequestDuration *prometheus.HistogramVec
	llmTokensUsed      *prometheus.CounterVec

	// 缓存指标
	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	// 数据库指标
	dbConnectionsOpen *prometheus.GaugeVec
	dbConnectionsIdle *prometheus.GaugeVec
	dbQueryDuration   *prometheus.HistogramVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// 检索指标
	c.searchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_requests_total",
			Help:      "Total number of search requests",
		},
		[]string{"pipeline", "status"},
	)

	c.searchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "End-to-end search duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"pipeline"},
	)

	c.stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	c.stageDegradations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_degradations_total",
			Help:      "Total number of skipped pipeline stages",
		},
		[]string{"stage", "reason"},
	)

	c.candidatesReturned = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "candidates_returned",
			Help:      "Number of candidates returned per signal",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		},
		[]string{"signal"},
	)

	// 索引指标
	c.indexedChunks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "indexed_chunks_total",
			Help:      "Total number of indexed chunks",
		},
		[]string{"strategy"},
	)

	c.indexDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "index_duration_seconds",
			Help:      "Duration of a full indexing run in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		},
	)

	c.generationsPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_published_total",
			Help:      "Total number of published chunk generations",
		},
	)

	c.removedChunks = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "removed_chunks_total",
			Help:      "Total number of chunks removed from the active generation",
		},
	)

	// 图遍历指标
	c.traversalPaths = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "traversal_paths",
			Help:      "Number of paths returned per traversal",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		},
	)

	c.traversalPartial = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "traversal_partial_total",
			Help:      "Total number of traversals truncated by the path cap",
		},
	)

	// 模型调用指标
	c.llmRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of model API requests",
		},
		[]string{"provider", "model", "status"},
	)

	c.llmRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Model API request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"provider", "model"},
	)

	c.llmTokensUsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_used_total",
			Help:      "Total number of tokens used",
		},
		[]string{"provider", "model", "type"}, // type: prompt, completion
	)

	// 缓存指标
	c.cacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	c.cacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	// 数据库指标
	c.dbConnectionsOpen = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_open",
			Help:      "Number of open database connections",
		},
		[]string{"database"},
	)

	c.dbConnectionsIdle = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_idle",
			Help:      "Number of idle database connections",
		},
		[]string{"database"},
	)

	c.dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "db_query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"database", "operation"},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🔎 检索指标记录
// =============================================================================

// RecordSearch 记录一次检索请求，pipeline 为 hybrid / graph / answer
func (c *Collector) RecordSearch(pipeline, status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.searchRequestsTotal.WithLabelValues(pipeline, status).Inc()
	c.searchDuration.WithLabelValues(pipeline).Observe(duration.Seconds())
}

// RecordStage 记录阶段耗时；reason 非空表示该阶段被跳过
func (c *Collector) RecordStage(stage, reason string, duration time.Duration) {
	if c == nil {
		return
	}
	c.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
	if reason != "" {
		c.stageDegradations.WithLabelValues(stage, reason).Inc()
	}
}

// RecordCandidates 记录单路召回的候选数
func (c *Collector) RecordCandidates(signal string, n int) {
	if c == nil {
		return
	}
	c.candidatesReturned.WithLabelValues(signal).Observe(float64(n))
}

// =============================================================================
// 🗂️ 索引与图遍历
// =============================================================================

// RecordIndexRun 记录一次完整索引
func (c *Collector) RecordIndexRun(chunksByStrategy map[string]int, duration time.Duration) {
	if c == nil {
		return
	}
	for strategy, n := range chunksByStrategy {
		c.indexedChunks.WithLabelValues(strategy).Add(float64(n))
	}
	c.indexDuration.Observe(duration.Seconds())
	c.generationsPublished.Inc()
}

// RecordIndexRemoval 记录一次文档删除，删除同样发布新一代
func (c *Collector) RecordIndexRemoval(removedChunks int, duration time.Duration) {
	if c == nil {
		return
	}
	c.removedChunks.Add(float64(removedChunks))
	c.indexDuration.Observe(duration.Seconds())
	c.generationsPublished.Inc()
}

// RecordTraversal 记录图遍历
func (c *Collector) RecordTraversal(paths int, partial bool) {
	if c == nil {
		return
	}
	c.traversalPaths.Observe(float64(paths))
	if partial {
		c.traversalPartial.Inc()
	}
}

// =============================================================================
// 🤖 模型调用指标
// =============================================================================

// RecordLLMRequest 记录模型 API 请求
func (c *Collector) RecordLLMRequest(provider, model, status string, duration time.Duration, promptTokens, completionTokens int) {
	if c == nil {
		return
	}
	c.llmRequestsTotal.WithLabelValues(provider, model, status).Inc()
	c.llmRequestDuration.WithLabelValues(provider, model).Observe(duration.Seconds())
	c.llmTokensUsed.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	c.llmTokensUsed.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
}

// =============================================================================
// 💾 缓存指标记录
// =============================================================================

// RecordCacheHit 记录缓存命中
func (c *Collector) RecordCacheHit(cacheType string) {
	if c == nil {
		return
	}
	c.cacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss 记录缓存未命中
func (c *Collector) RecordCacheMiss(cacheType string) {
	if c == nil {
		return
	}
	c.cacheMisses.WithLabelValues(cacheType).Inc()
}

// =============================================================================
// 🗄️ 数据库指标记录
// =============================================================================

// RecordDBConnections 记录数据库连接数
func (c *Collector) RecordDBConnections(database string, open, idle int) {
	if c == nil {
		return
	}
	c.dbConnectionsOpen.WithLabelValues(database).Set(float64(open))
	c.dbConnectionsIdle.WithLabelValues(database).Set(float64(idle))
}

// RecordDBQuery 记录数据库查询
func (c *Collector) RecordDBQuery(database, operation string, duration time.Duration) {
	if c == nil {
		return
	}
	c.dbQueryDuration.WithLabelValues(database, operation).Observe(duration.Seconds())
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// Status 把错误转换为 status 标签
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
