// 配置加载器测试。
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Loader 测试 ---

func TestLoader_LoadDefaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "recursive", cfg.Chunking.Strategy)
	assert.Equal(t, 3, cfg.Retrieval.CandidatesMultiplier)
	assert.NoError(t, cfg.Validate())
}

func TestLoader_LoadFromYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "ragcore.yaml")

	yamlContent := `
chunking:
  strategy: "hierarchical"
  chunk_size: 800
  chunk_overlap: 80

retrieval:
  top_k: 10
  dense_weight: 0.5
  sparse_weight: 0.5

graph:
  max_hops: 3
  bidirectional: true

timeouts:
  rerank: 3s

redis:
  addr: "redis.example.com:6379"
  db: 1

log:
  level: "debug"
  format: "console"
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0644))

	cfg, err := NewLoader().
		WithConfigPath(configPath).
		Load()
	require.NoError(t, err)

	assert.Equal(t, "hierarchical", cfg.Chunking.Strategy)
	assert.Equal(t, 800, cfg.Chunking.ChunkSize)
	assert.Equal(t, 80, cfg.Chunking.ChunkOverlap)
	assert.Equal(t, 10, cfg.Retrieval.TopK)
	assert.Equal(t, 0.5, cfg.Retrieval.DenseWeight)
	assert.Equal(t, 3, cfg.Graph.MaxHops)
	assert.True(t, cfg.Graph.Bidirectional)
	assert.Equal(t, 3*time.Second, cfg.Timeouts.Rerank)
	assert.Equal(t, "redis.example.com:6379", cfg.Redis.Addr)
	assert.Equal(t, 1, cfg.Redis.DB)
	assert.Equal(t, "debug", cfg.Log.Level)

	// 未出现在 YAML 中的字段保持默认值
	assert.Equal(t, 3, cfg.Retrieval.CandidatesMultiplier)
	assert.Equal(t, 100, cfg.Graph.MaxPaths)
}

func TestLoader_LoadFromEnv(t *testing.T) {
	t.Setenv("RAGCORE_CHUNKING_CHUNK_SIZE", "512")
	t.Setenv("RAGCORE_RETRIEVAL_DENSE_WEIGHT", "0.6")
	t.Setenv("RAGCORE_RERANKER_ENABLED", "false")
	t.Setenv("RAGCORE_TIMEOUTS_DENSE", "750ms")
	t.Setenv("RAGCORE_LOG_OUTPUT_PATHS", "stdout, /tmp/ragcore.log")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 512, cfg.Chunking.ChunkSize)
	assert.Equal(t, 0.6, cfg.Retrieval.DenseWeight)
	assert.False(t, cfg.Reranker.Enabled)
	assert.Equal(t, 750*time.Millisecond, cfg.Timeouts.Dense)
	assert.Equal(t, []string{"stdout", "/tmp/ragcore.log"}, cfg.Log.OutputPaths)
}

func TestLoader_EnvOverridesYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "ragcore.yaml")

	yamlContent := `
graph:
  max_hops: 4
  max_paths: 20
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0644))
	t.Setenv("RAGCORE_GRAPH_MAX_HOPS", "1")

	cfg, err := NewLoader().
		WithConfigPath(configPath).
		Load()
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.Graph.MaxHops)
	assert.Equal(t, 20, cfg.Graph.MaxPaths)
}

func TestLoader_CustomEnvPrefix(t *testing.T) {
	t.Setenv("MYAPP_RETRIEVAL_TOP_K", "7")

	cfg, err := NewLoader().
		WithEnvPrefix("MYAPP").
		Load()
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Retrieval.TopK)
}

func TestLoader_InvalidEnvValue(t *testing.T) {
	t.Setenv("RAGCORE_RETRIEVAL_TOP_K", "many")

	_, err := NewLoader().Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RAGCORE_RETRIEVAL_TOP_K")
}

func TestLoader_WithValidator(t *testing.T) {
	t.Setenv("RAGCORE_CHUNKING_CHUNK_OVERLAP", "5000")

	_, err := NewLoader().
		WithValidator(func(c *Config) error { return c.Validate() }).
		Load()
	assert.Error(t, err)
}

func TestLoader_NonExistentFile(t *testing.T) {
	cfg, err := NewLoader().
		WithConfigPath("/non/existent/path/ragcore.yaml").
		Load()
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.Chunking.ChunkSize)
}

func TestLoader_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	invalidYAML := `
chunking:
  chunk_size: [invalid
  this is not valid yaml
`
	require.NoError(t, os.WriteFile(configPath, []byte(invalidYAML), 0644))

	_, err := NewLoader().
		WithConfigPath(configPath).
		Load()
	assert.Error(t, err)
}

// --- Config 方法测试 ---

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{name: "valid default config", modify: func(c *Config) {}},
		{name: "unknown strategy", modify: func(c *Config) { c.Chunking.Strategy = "semantic" }, wantErr: true},
		{name: "overlap equals size", modify: func(c *Config) { c.Chunking.ChunkOverlap = c.Chunking.ChunkSize }, wantErr: true},
		{name: "negative overlap", modify: func(c *Config) { c.Chunking.ChunkOverlap = -1 }, wantErr: true},
		{name: "zero multiplier", modify: func(c *Config) { c.Retrieval.CandidatesMultiplier = 0 }, wantErr: true},
		{name: "negative weight", modify: func(c *Config) { c.Retrieval.SparseWeight = -0.1 }, wantErr: true},
		{name: "weights need not sum to one", modify: func(c *Config) { c.Retrieval.DenseWeight = 2 }},
		{name: "unknown document type", modify: func(c *Config) { c.HyDE.DocumentType = "contract" }, wantErr: true},
		{name: "blend weight too high", modify: func(c *Config) { c.HyDE.BlendWeight = 1.5 }, wantErr: true},
		{name: "zero hops allowed", modify: func(c *Config) { c.Graph.MaxHops = 0 }},
		{name: "negative hops", modify: func(c *Config) { c.Graph.MaxHops = -1 }, wantErr: true},
		{name: "unknown backend", modify: func(c *Config) { c.VectorStore.Backend = "faiss" }, wantErr: true},
		{name: "unknown tokenizer", modify: func(c *Config) { c.Chunking.Tokenizer = "bpe" }, wantErr: true},
		{name: "unknown embedding provider", modify: func(c *Config) { c.Embedding.Provider = "voyage" }, wantErr: true},
		{name: "unknown graph store", modify: func(c *Config) { c.Graph.Store = "neo4j" }, wantErr: true},
		{name: "unknown reranker ignored when disabled", modify: func(c *Config) { c.Reranker.Provider = "x" }},
		{name: "unknown reranker", modify: func(c *Config) { c.Reranker.Enabled = true; c.Reranker.Provider = "x" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	tests := []struct {
		name     string
		config   DatabaseConfig
		expected string
	}{
		{
			name: "postgres DSN",
			config: DatabaseConfig{
				Driver: "postgres", Host: "localhost", Port: 5432,
				User: "user", Password: "pass", Name: "dbname", SSLMode: "disable",
			},
			expected: "host=localhost port=5432 user=user password=pass dbname=dbname sslmode=disable",
		},
		{
			name: "mysql DSN",
			config: DatabaseConfig{
				Driver: "mysql", Host: "localhost", Port: 3306,
				User: "user", Password: "pass", Name: "dbname",
			},
			expected: "user:pass@tcp(localhost:3306)/dbname?parseTime=true",
		},
		{
			name:     "sqlite DSN",
			config:   DatabaseConfig{Driver: "sqlite", Name: "/path/to/db.sqlite"},
			expected: "/path/to/db.sqlite",
		},
		{
			name:     "unknown driver",
			config:   DatabaseConfig{Driver: "unknown"},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.config.DSN())
		})
	}
}

func TestDatabaseConfig_URL(t *testing.T) {
	pg := DatabaseConfig{Driver: "postgres", Host: "db", Port: 5432, User: "u", Password: "p", Name: "rag", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@db:5432/rag?sslmode=disable", pg.URL())

	sqlite := DatabaseConfig{Driver: "sqlite", Name: "x.db"}
	assert.Empty(t, sqlite.URL())
}

// --- MustLoad 测试 ---

func TestMustLoad_Panics(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "bad.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("chunking: [oops"), 0644))

	assert.Panics(t, func() { MustLoad(configPath) })
}
