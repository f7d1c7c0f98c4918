// Config → 运行时桥接层。
//
// 把全局 config.Config 映射为 rag 包的组件，并组装出可直接使用的 Runtime。
package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/ragcore/config"
	"github.com/BaSui01/ragcore/internal/database"
	"github.com/BaSui01/ragcore/internal/metrics"
	"github.com/BaSui01/ragcore/llm/completion"
	"github.com/BaSui01/ragcore/llm/embedding"
	"github.com/BaSui01/ragcore/llm/rerank"
	"github.com/BaSui01/ragcore/types"
)

// VectorStoreType 稠密索引后端
type VectorStoreType string

const (
	VectorStoreMemory   VectorStoreType = "memory"
	VectorStoreQdrant   VectorStoreType = "qdrant"
	VectorStorePGVector VectorStoreType = "pgvector"
)

const defaultOpenAIBaseURL = "https://api.openai.com"

// RuntimeOptions 外部注入的资源；为空时按配置自行创建
type RuntimeOptions struct {
	// DB pgvector 与 SQL 图存储共用的连接
	DB *gorm.DB
	// VectorCache 二级向量缓存，通常为 internal/cache.Manager
	VectorCache VectorCache
	Metrics     *metrics.Collector
	// 以下用于替换配置出的模型能力，主要供测试使用
	Embedder  Embedder
	Generator Generator
	Encoder   CrossEncoder
}

// Runtime 由配置组装的完整运行时
type Runtime struct {
	Pipeline *Pipeline
	Indexer  *Indexer
	Graph    GraphStore
	Embedder Embedder
	Dense    DenseIndex
	Sparse   *BM25Index
	Chunks   *InMemoryChunkStore
	Registry *GenerationRegistry

	closers []func() error
}

// Close 释放运行时自己创建的资源
func (r *Runtime) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

// NewRuntimeFromConfig 按配置组装分块、索引、召回、精排、HyDE、图与编排器
func NewRuntimeFromConfig(cfg *config.Config, opts RuntimeOptions, logger *zap.Logger) (rt *Runtime, err error) {
	if cfg == nil {
		return nil, types.ConfigError("config is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, types.ConfigError("invalid config: %v", err)
	}

	rt = &Runtime{}
	defer func() {
		if err != nil {
			_ = rt.Close()
		}
	}()

	db := opts.DB
	needsDB := VectorStoreType(cfg.VectorStore.Backend) == VectorStorePGVector || cfg.Graph.Store == "sql"
	if db == nil && needsDB {
		if db, err = openDatabase(cfg.Database, opts.Metrics, logger, rt); err != nil {
			return nil, err
		}
	}

	// 分块
	tok, err := NewTokenizer(cfg.Chunking.Tokenizer, cfg.Chunking.TokenizerModel, logger)
	if err != nil {
		return nil, err
	}
	chunkCfg, err := ChunkingConfigFrom(cfg.Chunking)
	if err != nil {
		return nil, err
	}
	chunker, err := NewDocumentChunker(chunkCfg, tok, logger)
	if err != nil {
		return nil, err
	}

	// 向量化
	rt.Embedder = opts.Embedder
	if rt.Embedder == nil {
		if rt.Embedder, err = NewEmbedderFromConfig(cfg, opts.VectorCache, opts.Metrics, logger); err != nil {
			return nil, err
		}
	}

	// 索引
	if rt.Dense, err = NewDenseIndexFromConfig(cfg, db, logger); err != nil {
		return nil, err
	}
	rt.Sparse = NewBM25Index(BM25Config{K1: cfg.Retrieval.BM25K1, B: cfg.Retrieval.BM25B}, logger)
	rt.Chunks = NewInMemoryChunkStore()
	rt.Registry = NewGenerationRegistry()

	rt.Indexer, err = NewIndexer(IndexerDeps{
		Chunker:  chunker,
		Embedder: rt.Embedder,
		Dense:    rt.Dense,
		Sparse:   rt.Sparse,
		Chunks:   rt.Chunks,
		Registry: rt.Registry,
		Metrics:  opts.Metrics,
	}, IndexerConfig{
		BatchSize:    DefaultIndexerConfig().BatchSize,
		Workers:      cfg.Embedding.Workers,
		AutoStrategy: true,
	}, logger)
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, func() error {
		rt.Indexer.Close()
		return nil
	})

	// 召回
	dense := NewDenseRetriever(rt.Dense, rt.Embedder, cfg.Timeouts.Dense, logger)
	sparse := NewSparseRetriever(rt.Sparse, cfg.Timeouts.Sparse, logger)
	retriever, err := NewCandidateRetriever(dense, sparse, cfg.Retrieval.CandidatesMultiplier, logger)
	if err != nil {
		return nil, err
	}

	// 生成与 HyDE
	gen := opts.Generator
	if gen == nil {
		if gen, err = NewGeneratorFromConfig(cfg, opts.Metrics, logger); err != nil {
			return nil, err
		}
	}
	var expander *QueryExpander
	if gen != nil {
		expander, err = NewQueryExpander(gen, rt.Embedder, HyDEConfig{
			Enabled:      true,
			DocumentType: DocumentType(cfg.HyDE.DocumentType),
			BlendWeight:  cfg.HyDE.BlendWeight,
			MaxTokens:    cfg.HyDE.MaxTokens,
			Timeout:      cfg.Timeouts.HyDE,
		}, logger)
		if err != nil {
			return nil, err
		}
	}

	// 精排
	var reranker *RerankStage
	if cfg.Reranker.Enabled {
		encoder := opts.Encoder
		if encoder == nil {
			if encoder, err = NewCrossEncoderFromConfig(cfg, opts.Metrics, logger); err != nil {
				return nil, err
			}
		}
		reranker = NewRerankStage(encoder, RerankConfig{
			Enabled:   true,
			BatchSize: cfg.Reranker.BatchSize,
			MaxLength: DefaultRerankConfig().MaxLength,
			Timeout:   cfg.Timeouts.Rerank,
		}, logger)
	}

	// 图
	if rt.Graph, err = NewGraphStoreFromConfig(cfg, db, logger); err != nil {
		return nil, err
	}
	pcfg, err := PipelineConfigFrom(cfg)
	if err != nil {
		return nil, err
	}
	traverser, err := NewGraphTraverser(rt.Graph, pcfg.Traversal, logger)
	if err != nil {
		return nil, err
	}

	probes := map[string]HealthChecker{}
	for name, c := range map[string]any{"dense_index": rt.Dense, "graph_store": rt.Graph, "embedder": rt.Embedder} {
		if hc, ok := c.(HealthChecker); ok {
			probes[name] = hc
		}
	}
	if hc, ok := opts.VectorCache.(HealthChecker); ok {
		probes["vector_cache"] = hc
	}

	rt.Pipeline, err = NewPipeline(PipelineDeps{
		Retriever: retriever,
		Expander:  expander,
		Reranker:  reranker,
		Chunks:    rt.Chunks,
		Registry:  rt.Registry,
		Traverser: traverser,
		Resolver:  NewEntityResolver(rt.Graph, cfg.Graph.MaxSeeds, logger),
		Generator: gen,
		Metrics:   opts.Metrics,
		Probes:    probes,
	}, pcfg, logger)
	if err != nil {
		return nil, err
	}

	logger.Info("rag runtime assembled",
		zap.String("embedding", cfg.Embedding.Provider),
		zap.String("vector_store", cfg.VectorStore.Backend),
		zap.String("graph_store", cfg.Graph.Store),
		zap.Bool("reranker", reranker != nil),
		zap.Bool("generator", gen != nil))
	return rt, nil
}

func openDatabase(cfg config.DatabaseConfig, m *metrics.Collector, logger *zap.Logger, rt *Runtime) (*gorm.DB, error) {
	db, err := database.Open(cfg, logger)
	if err != nil {
		return nil, types.Unavailable("database", err)
	}
	pm, err := database.NewPoolManager(db, database.PoolConfigFrom(cfg), logger)
	if err != nil {
		return nil, types.ConfigError("database pool: %v", err)
	}
	pm.WithMetrics(m).Start()
	rt.closers = append(rt.closers, pm.Close)
	return pm.DB(), nil
}

// ChunkingConfigFrom 映射分块配置
func ChunkingConfigFrom(c config.ChunkingConfig) (ChunkingConfig, error) {
	strategy, err := ParseChunkingStrategy(c.Strategy)
	if err != nil {
		return ChunkingConfig{}, err
	}
	return ChunkingConfig{
		Strategy:        strategy,
		ChunkSize:       c.ChunkSize,
		ChunkOverlap:    c.ChunkOverlap,
		MaxTableRows:    c.MaxTableRows,
		StripSignatures: c.StripSignatures,
	}, nil
}

// PipelineConfigFrom 映射融合、阈值与遍历配置
func PipelineConfigFrom(cfg *config.Config) (PipelineConfig, error) {
	pc := DefaultPipelineConfig()
	pc.Fusion = FusionConfig{
		DenseWeight:          cfg.Retrieval.DenseWeight,
		SparseWeight:         cfg.Retrieval.SparseWeight,
		TopK:                 cfg.Retrieval.TopK,
		CandidatesMultiplier: cfg.Retrieval.CandidatesMultiplier,
	}
	pc.UseHyDE = cfg.Retrieval.UseHyDE
	pc.MinScore = cfg.Retrieval.MinScore
	pc.Traversal = TraversalOptions{
		MaxHops:   cfg.Graph.MaxHops,
		MaxPaths:  cfg.Graph.MaxPaths,
		Direction: DirectionOutgoing,
	}
	if cfg.Graph.Bidirectional {
		pc.Traversal.Direction = DirectionBoth
	}
	if cfg.Timeouts.Graph > 0 {
		pc.GraphTimeout = cfg.Timeouts.Graph
	}
	if cfg.Timeouts.Generation > 0 {
		pc.GenerationTimeout = cfg.Timeouts.Generation
	}
	if err := pc.Fusion.Validate(); err != nil {
		return PipelineConfig{}, err
	}
	return pc, nil
}

// NewEmbedderFromConfig 创建向量器并按配置包上缓存
func NewEmbedderFromConfig(cfg *config.Config, remote VectorCache, m *metrics.Collector, logger *zap.Logger) (Embedder, error) {
	var base Embedder
	switch strings.ToLower(cfg.Embedding.Provider) {
	case "", "hashing":
		base = NewHashingEmbedder(cfg.Embedding.Dimensions, logger)
	case "openai":
		ec := embedding.DefaultOpenAIConfig()
		ec.APIKey = cfg.Embedding.APIKey
		if cfg.Embedding.BaseURL != "" {
			ec.BaseURL = cfg.Embedding.BaseURL
		}
		if cfg.Embedding.Model != "" {
			ec.Model = cfg.Embedding.Model
		}
		if cfg.Embedding.Dimensions > 0 {
			ec.Dimensions = cfg.Embedding.Dimensions
		}
		if cfg.Embedding.Timeout > 0 {
			ec.Timeout = cfg.Embedding.Timeout
		}
		ec.RateLimitRPS = cfg.Embedding.RateLimitRPS
		base = NewProviderEmbedder(embedding.NewOpenAIProvider(ec, m, logger))
	default:
		return nil, types.ConfigError("unsupported embedding provider: %s", cfg.Embedding.Provider)
	}

	ec := cfg.EmbeddingCache
	if !cfg.EmbeddingCache.UseRedis {
		remote = nil
	}
	if !ec.Enabled && remote == nil {
		return base, nil
	}
	size := 0
	if ec.Enabled {
		size = ec.Size
	}
	cached := NewCachedEmbedder(base, cfg.Embedding.Provider+":"+cfg.Embedding.Model, size, ec.TTL, remote, logger)
	if m != nil {
		cached.OnLookup = func(hit bool) {
			if hit {
				m.RecordCacheHit("embedding")
			} else {
				m.RecordCacheMiss("embedding")
			}
		}
	}
	return cached, nil
}

// NewDenseIndexFromConfig 创建稠密索引后端
func NewDenseIndexFromConfig(cfg *config.Config, db *gorm.DB, logger *zap.Logger) (DenseIndex, error) {
	switch VectorStoreType(strings.ToLower(cfg.VectorStore.Backend)) {
	case VectorStoreMemory, "":
		return NewInMemoryVectorStore(logger), nil
	case VectorStoreQdrant:
		return NewQdrantStore(QdrantConfig{
			Host:                 cfg.Qdrant.Host,
			Port:                 cfg.Qdrant.Port,
			APIKey:               cfg.Qdrant.APIKey,
			Collection:           cfg.Qdrant.Collection,
			Timeout:              cfg.Qdrant.Timeout,
			AutoCreateCollection: true,
		}, logger)
	case VectorStorePGVector:
		if db == nil {
			return nil, types.ConfigError("pgvector backend requires a database connection")
		}
		return NewPGVectorStore(db, "", logger)
	default:
		return nil, types.ConfigError("unsupported vector store backend: %s", cfg.VectorStore.Backend)
	}
}

// NewGraphStoreFromConfig 创建图存储；sql 存储在 sqlite 上自动建表
func NewGraphStoreFromConfig(cfg *config.Config, db *gorm.DB, logger *zap.Logger) (GraphStore, error) {
	switch strings.ToLower(cfg.Graph.Store) {
	case "", "memory":
		return NewInMemoryGraph(logger), nil
	case "sql":
		if db == nil {
			return nil, types.ConfigError("sql graph store requires a database connection")
		}
		store, err := NewSQLGraphStore(db, logger)
		if err != nil {
			return nil, err
		}
		if db.Dialector.Name() == "sqlite" {
			if err := store.AutoMigrate(context.Background()); err != nil {
				return nil, err
			}
		}
		return store, nil
	default:
		return nil, types.ConfigError("unsupported graph store: %s", cfg.Graph.Store)
	}
}

// NewCrossEncoderFromConfig 创建精排打分器
func NewCrossEncoderFromConfig(cfg *config.Config, m *metrics.Collector, logger *zap.Logger) (CrossEncoder, error) {
	name := strings.ToLower(cfg.Reranker.Provider)
	if name == "" || name == "lexical" {
		return LexicalCrossEncoder{}, nil
	}
	p, err := rerank.New(name, rerank.Config{
		APIKey:  cfg.Reranker.APIKey,
		BaseURL: cfg.Reranker.BaseURL,
		Model:   cfg.Reranker.Model,
		Timeout: cfg.Timeouts.Rerank,
	}, m, logger)
	if err != nil {
		return nil, types.ConfigError("reranker: %v", err)
	}
	return NewProviderCrossEncoder(p), nil
}

// NewGeneratorFromConfig 创建生成模型。
// 默认 OpenAI 端点且未配置 API Key 时返回 nil，HyDE 与回答生成记为 not_configured。
func NewGeneratorFromConfig(cfg *config.Config, m *metrics.Collector, logger *zap.Logger) (Generator, error) {
	g := cfg.Generation
	baseURL := strings.TrimRight(g.BaseURL, "/")
	if g.APIKey == "" && (baseURL == "" || baseURL == defaultOpenAIBaseURL) {
		return nil, nil
	}
	gen, err := completion.New(completion.Config{
		APIKey:       g.APIKey,
		BaseURL:      baseURL,
		Model:        g.Model,
		Temperature:  g.Temperature,
		MaxTokens:    g.MaxTokens,
		Timeout:      g.Timeout,
		RateLimitRPS: g.RateLimitRPS,
	}, m, logger)
	if err != nil {
		return nil, fmt.Errorf("create generator: %w", err)
	}
	return gen, nil
}
