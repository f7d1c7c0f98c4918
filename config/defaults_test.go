package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- DefaultConfig aggregate ---

func TestDefaultConfig_ContainsAllSubConfigs(t *testing.T) {
	cfg := DefaultConfig()
	require.NotNil(t, cfg)

	assert.NotEqual(t, ChunkingConfig{}, cfg.Chunking)
	assert.NotEqual(t, RetrievalConfig{}, cfg.Retrieval)
	assert.NotEqual(t, RerankerConfig{}, cfg.Reranker)
	assert.NotEqual(t, HyDEConfig{}, cfg.HyDE)
	assert.NotEqual(t, GraphConfig{}, cfg.Graph)
	assert.NotEqual(t, TimeoutConfig{}, cfg.Timeouts)
	assert.NotEqual(t, EmbeddingConfig{}, cfg.Embedding)
	assert.NotEqual(t, GenerationConfig{}, cfg.Generation)
	assert.NotEqual(t, QdrantConfig{}, cfg.Qdrant)
	assert.NotEqual(t, DatabaseConfig{}, cfg.Database)
	assert.NotEqual(t, RedisConfig{}, cfg.Redis)
	assert.NotEqual(t, TelemetryConfig{}, cfg.Telemetry)
}

// --- Individual Default*Config functions ---

func TestDefaultChunkingConfig(t *testing.T) {
	cfg := DefaultChunkingConfig()
	assert.Equal(t, "recursive", cfg.Strategy)
	assert.Equal(t, 1000, cfg.ChunkSize)
	assert.Equal(t, 200, cfg.ChunkOverlap)
	assert.True(t, cfg.StripSignatures)
}

func TestDefaultRetrievalConfig(t *testing.T) {
	cfg := DefaultRetrievalConfig()
	assert.InDelta(t, 0.7, cfg.DenseWeight, 1e-9)
	assert.InDelta(t, 0.3, cfg.SparseWeight, 1e-9)
	assert.Equal(t, 3, cfg.CandidatesMultiplier)
	assert.InDelta(t, 1.5, cfg.BM25K1, 1e-9)
	assert.InDelta(t, 0.75, cfg.BM25B, 1e-9)
}

func TestDefaultRerankerConfig(t *testing.T) {
	cfg := DefaultRerankerConfig()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "lexical", cfg.Provider)
	assert.Equal(t, 32, cfg.BatchSize)
}

func TestDefaultGraphConfig(t *testing.T) {
	cfg := DefaultGraphConfig()
	assert.Equal(t, 2, cfg.MaxHops)
	assert.Equal(t, 100, cfg.MaxPaths)
	assert.Equal(t, 3, cfg.MaxSeeds)
	assert.False(t, cfg.Bidirectional)
}

func TestDefaultTimeoutConfig(t *testing.T) {
	cfg := DefaultTimeoutConfig()
	assert.Equal(t, 5*time.Second, cfg.Dense)
	assert.Equal(t, 10*time.Second, cfg.Rerank)
	assert.Equal(t, 60*time.Second, cfg.Generation)
}

func TestDefaultLogConfig(t *testing.T) {
	cfg := DefaultLogConfig()
	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, []string{"stdout"}, cfg.OutputPaths)
}
