// =============================================================================
// 📦 ragcore 默认配置
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Chunking:       DefaultChunkingConfig(),
		Retrieval:      DefaultRetrievalConfig(),
		Reranker:       DefaultRerankerConfig(),
		HyDE:           DefaultHyDEConfig(),
		Graph:          DefaultGraphConfig(),
		Timeouts:       DefaultTimeoutConfig(),
		Embedding:      DefaultEmbeddingConfig(),
		Generation:     DefaultGenerationConfig(),
		VectorStore:    VectorStoreConfig{Backend: "memory"},
		Qdrant:         DefaultQdrantConfig(),
		Database:       DefaultDatabaseConfig(),
		Redis:          DefaultRedisConfig(),
		EmbeddingCache: DefaultEmbeddingCacheConfig(),
		Log:            DefaultLogConfig(),
		Telemetry:      DefaultTelemetryConfig(),
		Metrics:        DefaultMetricsConfig(),
	}
}

// DefaultChunkingConfig 返回默认分块配置
func DefaultChunkingConfig() ChunkingConfig {
	return ChunkingConfig{
		Strategy:        "recursive",
		ChunkSize:       1000,
		ChunkOverlap:    200,
		MaxTableRows:    50,
		StripSignatures: true,
		Tokenizer:       "estimator",
		TokenizerModel:  "gpt-4o",
	}
}

// DefaultRetrievalConfig 返回默认召回配置
func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		TopK:                 5,
		CandidatesMultiplier: 3,
		DenseWeight:          0.7,
		SparseWeight:         0.3,
		BM25K1:               1.5,
		BM25B:                0.75,
		MinScore:             0,
		UseHyDE:              false,
	}
}

// DefaultRerankerConfig 返回默认重排序配置
func DefaultRerankerConfig() RerankerConfig {
	return RerankerConfig{
		Enabled:   true,
		Provider:  "lexical",
		Model:     "cross-encoder/ms-marco-MiniLM-L-6-v2",
		BatchSize: 32,
	}
}

// DefaultHyDEConfig 返回默认 HyDE 配置
func DefaultHyDEConfig() HyDEConfig {
	return HyDEConfig{
		DocumentType: "generic",
		BlendWeight:  0,
		MaxTokens:    300,
	}
}

// DefaultGraphConfig 返回默认图配置
func DefaultGraphConfig() GraphConfig {
	return GraphConfig{
		Store:         "memory",
		MaxHops:       2,
		MaxPaths:      100,
		MaxSeeds:      3,
		Bidirectional: false,
	}
}

// DefaultTimeoutConfig 返回默认阶段超时
func DefaultTimeoutConfig() TimeoutConfig {
	return TimeoutConfig{
		Dense:      5 * time.Second,
		Sparse:     2 * time.Second,
		Rerank:     10 * time.Second,
		HyDE:       15 * time.Second,
		Graph:      5 * time.Second,
		Generation: 60 * time.Second,
	}
}

// DefaultEmbeddingConfig 返回默认向量化配置
func DefaultEmbeddingConfig() EmbeddingConfig {
	return EmbeddingConfig{
		Provider:   "hashing",
		Model:      "text-embedding-3-small",
		Dimensions: 384,
		Timeout:    30 * time.Second,
		Workers:    4,
	}
}

// DefaultGenerationConfig 返回默认生成配置
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		BaseURL:     "https://api.openai.com",
		Model:       "gpt-4o-mini",
		Temperature: 0.2,
		MaxTokens:   1024,
		Timeout:     2 * time.Minute,
	}
}

// DefaultQdrantConfig 返回默认 Qdrant 配置
func DefaultQdrantConfig() QdrantConfig {
	return QdrantConfig{
		Host:       "localhost",
		Port:       6333,
		APIKey:     "",
		Collection: "ragcore_chunks",
		Timeout:    30 * time.Second,
	}
}

// DefaultDatabaseConfig 返回默认数据库配置
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "postgres",
		Host:            "localhost",
		Port:            5432,
		User:            "ragcore",
		Password:        "",
		Name:            "ragcore",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// DefaultEmbeddingCacheConfig 返回默认向量缓存配置
func DefaultEmbeddingCacheConfig() EmbeddingCacheConfig {
	return EmbeddingCacheConfig{
		Enabled:  true,
		Size:     4096,
		TTL:      time.Hour,
		UseRedis: false,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "ragcore",
		SampleRate:   0.1,
	}
}

// DefaultMetricsConfig 返回默认指标配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:   true,
		Namespace: "ragcore",
	}
}
