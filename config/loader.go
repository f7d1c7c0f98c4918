// =============================================================================
// 📦 ragcore 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("ragcore.yaml").
//	    WithEnvPrefix("RAGCORE").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 ragcore 的完整配置结构
type Config struct {
	// Chunking 分块配置
	Chunking ChunkingConfig `yaml:"chunking" env:"CHUNKING"`

	// Retrieval 召回与融合配置
	Retrieval RetrievalConfig `yaml:"retrieval" env:"RETRIEVAL"`

	// Reranker 重排序配置
	Reranker RerankerConfig `yaml:"reranker" env:"RERANKER"`

	// HyDE 假设文档扩展配置
	HyDE HyDEConfig `yaml:"hyde" env:"HYDE"`

	// Graph 图遍历配置
	Graph GraphConfig `yaml:"graph" env:"GRAPH"`

	// Timeouts 各阶段超时
	Timeouts TimeoutConfig `yaml:"timeouts" env:"TIMEOUTS"`

	// Embedding 向量化模型
	Embedding EmbeddingConfig `yaml:"embedding" env:"EMBEDDING"`

	// Generation 文本生成模型
	Generation GenerationConfig `yaml:"generation" env:"GENERATION"`

	// VectorStore 向量索引后端
	VectorStore VectorStoreConfig `yaml:"vector_store" env:"VECTOR_STORE"`

	// Qdrant 向量存储配置
	Qdrant QdrantConfig `yaml:"qdrant" env:"QDRANT"`

	// Database 数据库配置（pgvector / 图存储）
	Database DatabaseConfig `yaml:"database" env:"DATABASE"`

	// Redis 缓存配置
	Redis RedisConfig `yaml:"redis" env:"REDIS"`

	// EmbeddingCache 向量缓存
	EmbeddingCache EmbeddingCacheConfig `yaml:"embedding_cache" env:"EMBEDDING_CACHE"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry 遥测配置
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`

	// Metrics 指标配置
	Metrics MetricsConfig `yaml:"metrics" env:"METRICS"`
}

// ChunkingConfig 分块配置
type ChunkingConfig struct {
	// 策略: fixed, recursive, email_thread_aware, hierarchical, table_aware
	Strategy string `yaml:"strategy" env:"STRATEGY"`
	// 目标块大小（字符）
	ChunkSize int `yaml:"chunk_size" env:"CHUNK_SIZE"`
	// 相邻块重叠（字符）
	ChunkOverlap int `yaml:"chunk_overlap" env:"CHUNK_OVERLAP"`
	// 表格分块时每块最大行数
	MaxTableRows int `yaml:"max_table_rows" env:"MAX_TABLE_ROWS"`
	// 是否剥离邮件签名
	StripSignatures bool `yaml:"strip_signatures" env:"STRIP_SIGNATURES"`
	// 分词器: estimator, tiktoken
	Tokenizer string `yaml:"tokenizer" env:"TOKENIZER"`
	// tiktoken 编码对应的模型名
	TokenizerModel string `yaml:"tokenizer_model" env:"TOKENIZER_MODEL"`
}

// RetrievalConfig 召回与融合配置
type RetrievalConfig struct {
	// 最终返回数量
	TopK int `yaml:"top_k" env:"TOP_K"`
	// 召回放大倍数
	CandidatesMultiplier int `yaml:"candidates_multiplier" env:"CANDIDATES_MULTIPLIER"`
	// 稠密信号权重
	DenseWeight float64 `yaml:"dense_weight" env:"DENSE_WEIGHT"`
	// 稀疏信号权重
	SparseWeight float64 `yaml:"sparse_weight" env:"SPARSE_WEIGHT"`
	// BM25 参数
	BM25K1 float64 `yaml:"bm25_k1" env:"BM25_K1"`
	BM25B  float64 `yaml:"bm25_b" env:"BM25_B"`
	// 最低分阈值（0 表示不过滤）
	MinScore float64 `yaml:"min_score" env:"MIN_SCORE"`
	// 是否启用 HyDE
	UseHyDE bool `yaml:"use_hyde" env:"USE_HYDE"`
}

// RerankerConfig 重排序配置
type RerankerConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// 提供者: lexical, cohere, jina
	Provider string `yaml:"provider" env:"PROVIDER"`
	// 模型名
	Model string `yaml:"model" env:"MODEL"`
	// API Key
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// 基础 URL（可选）
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// 批大小
	BatchSize int `yaml:"batch_size" env:"BATCH_SIZE"`
}

// HyDEConfig 假设文档配置
type HyDEConfig struct {
	// 默认文档类型: generic, email, sop, invoice, master_data
	DocumentType string `yaml:"document_type" env:"DOCUMENT_TYPE"`
	// 与原始查询向量的混合权重，0 表示只用 HyDE 向量
	BlendWeight float64 `yaml:"blend_weight" env:"BLEND_WEIGHT"`
	// 生成长度上限
	MaxTokens int `yaml:"max_tokens" env:"MAX_TOKENS"`
}

// GraphConfig 图遍历配置
type GraphConfig struct {
	// 存储: memory, sql
	Store string `yaml:"store" env:"STORE"`
	// 最大跳数
	MaxHops int `yaml:"max_hops" env:"MAX_HOPS"`
	// 最大路径数
	MaxPaths int `yaml:"max_paths" env:"MAX_PATHS"`
	// 查询解析出的最大种子实体数
	MaxSeeds int `yaml:"max_seeds" env:"MAX_SEEDS"`
	// 是否沿反向关系扩展
	Bidirectional bool `yaml:"bidirectional" env:"BIDIRECTIONAL"`
}

// TimeoutConfig 阶段超时
type TimeoutConfig struct {
	Dense      time.Duration `yaml:"dense" env:"DENSE"`
	Sparse     time.Duration `yaml:"sparse" env:"SPARSE"`
	Rerank     time.Duration `yaml:"rerank" env:"RERANK"`
	HyDE       time.Duration `yaml:"hyde" env:"HYDE"`
	Graph      time.Duration `yaml:"graph" env:"GRAPH"`
	Generation time.Duration `yaml:"generation" env:"GENERATION"`
}

// EmbeddingConfig 向量化配置
type EmbeddingConfig struct {
	// 提供者: hashing, openai
	Provider string `yaml:"provider" env:"PROVIDER"`
	// API Key
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// 基础 URL（可选）
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// 模型名
	Model string `yaml:"model" env:"MODEL"`
	// 维度
	Dimensions int `yaml:"dimensions" env:"DIMENSIONS"`
	// 每秒请求数限制（0 不限制）
	RateLimitRPS float64 `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	// 请求超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// 索引时并发 worker 数
	Workers int `yaml:"workers" env:"WORKERS"`
}

// GenerationConfig 生成模型配置
type GenerationConfig struct {
	// API Key
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// 基础 URL（OpenAI 兼容）
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// 模型名
	Model string `yaml:"model" env:"MODEL"`
	// 温度参数
	Temperature float64 `yaml:"temperature" env:"TEMPERATURE"`
	// 最大 Token 数
	MaxTokens int `yaml:"max_tokens" env:"MAX_TOKENS"`
	// 请求超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// 每秒请求数限制（0 不限制）
	RateLimitRPS float64 `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
}

// VectorStoreConfig 向量索引后端
type VectorStoreConfig struct {
	// 后端: memory, qdrant, pgvector
	Backend string `yaml:"backend" env:"BACKEND"`
}

// QdrantConfig Qdrant 向量存储配置
type QdrantConfig struct {
	// 主机
	Host string `yaml:"host" env:"HOST"`
	// REST 端口
	Port int `yaml:"port" env:"PORT"`
	// API Key（可选）
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// 默认集合名
	Collection string `yaml:"collection" env:"COLLECTION"`
	// 请求超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// 驱动类型: postgres, mysql, sqlite
	Driver string `yaml:"driver" env:"DRIVER"`
	// 主机
	Host string `yaml:"host" env:"HOST"`
	// 端口
	Port int `yaml:"port" env:"PORT"`
	// 用户名
	User string `yaml:"user" env:"USER"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库名
	Name string `yaml:"name" env:"NAME"`
	// SSL 模式
	SSLMode string `yaml:"ssl_mode" env:"SSL_MODE"`
	// 最大连接数
	MaxOpenConns int `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	// 最大空闲连接
	MaxIdleConns int `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	// 连接最大生命周期
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	// 地址
	Addr string `yaml:"addr" env:"ADDR"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库编号
	DB int `yaml:"db" env:"DB"`
	// 连接池大小
	PoolSize int `yaml:"pool_size" env:"POOL_SIZE"`
	// 最小空闲连接
	MinIdleConns int `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
}

// EmbeddingCacheConfig 向量缓存配置
type EmbeddingCacheConfig struct {
	// 是否启用进程内 LRU
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// LRU 容量
	Size int `yaml:"size" env:"SIZE"`
	// 过期时间
	TTL time.Duration `yaml:"ttl" env:"TTL"`
	// 是否启用 Redis 二级缓存
	UseRedis bool `yaml:"use_redis" env:"USE_REDIS"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// 是否启用堆栈跟踪
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OTLP 端点
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// 服务名称
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// 采样率
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// MetricsConfig Prometheus 指标配置
type MetricsConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// 指标命名空间
	Namespace string `yaml:"namespace" env:"NAMESPACE"`
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "RAGCORE",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
// 优先级: 默认值 → YAML 文件 → 环境变量
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile 从 YAML 文件加载配置
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// 文件不存在，使用默认值
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// loadFromEnv 从环境变量加载配置
func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv 递归设置结构体字段
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

// setFieldValue 设置字段值
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// time.Duration 按字符串解析
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// 逗号分隔的字符串切片
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// =============================================================================
// 🔍 辅助函数
// =============================================================================

// MustLoad 加载配置，失败时 panic
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

var validStrategies = map[string]bool{
	"fixed": true, "recursive": true, "email_thread_aware": true,
	"hierarchical": true, "table_aware": true,
}

var validDocTypes = map[string]bool{
	"generic": true, "email": true, "sop": true, "invoice": true, "master_data": true,
}

// Validate 验证配置
func (c *Config) Validate() error {
	var errs []string

	if !validStrategies[c.Chunking.Strategy] {
		errs = append(errs, fmt.Sprintf("unknown chunking strategy %q", c.Chunking.Strategy))
	}
	if c.Chunking.ChunkSize <= 0 {
		errs = append(errs, "chunk_size must be positive")
	}
	if c.Chunking.ChunkOverlap < 0 || c.Chunking.ChunkOverlap >= c.Chunking.ChunkSize {
		errs = append(errs, "chunk_overlap must be in [0, chunk_size)")
	}

	if c.Retrieval.TopK <= 0 {
		errs = append(errs, "top_k must be positive")
	}
	if c.Retrieval.CandidatesMultiplier < 1 {
		errs = append(errs, "candidates_multiplier must be >= 1")
	}
	if c.Retrieval.DenseWeight < 0 || c.Retrieval.SparseWeight < 0 {
		errs = append(errs, "fusion weights must be non-negative")
	}

	if !validDocTypes[c.HyDE.DocumentType] {
		errs = append(errs, fmt.Sprintf("unknown hyde document type %q", c.HyDE.DocumentType))
	}
	if c.HyDE.BlendWeight < 0 || c.HyDE.BlendWeight > 1 {
		errs = append(errs, "hyde blend_weight must be between 0 and 1")
	}

	if c.Graph.MaxHops < 0 {
		errs = append(errs, "graph max_hops must be non-negative")
	}
	if c.Graph.MaxPaths <= 0 {
		errs = append(errs, "graph max_paths must be positive")
	}

	switch c.VectorStore.Backend {
	case "memory", "qdrant", "pgvector":
	default:
		errs = append(errs, fmt.Sprintf("unknown vector store backend %q", c.VectorStore.Backend))
	}
	switch c.Chunking.Tokenizer {
	case "", "estimator", "tiktoken":
	default:
		errs = append(errs, fmt.Sprintf("unknown tokenizer %q", c.Chunking.Tokenizer))
	}
	switch c.Embedding.Provider {
	case "hashing", "openai":
	default:
		errs = append(errs, fmt.Sprintf("unknown embedding provider %q", c.Embedding.Provider))
	}
	switch c.Graph.Store {
	case "memory", "sql":
	default:
		errs = append(errs, fmt.Sprintf("unknown graph store %q", c.Graph.Store))
	}
	if c.Reranker.Enabled {
		switch c.Reranker.Provider {
		case "lexical", "cohere", "jina":
		default:
			errs = append(errs, fmt.Sprintf("unknown reranker provider %q", c.Reranker.Provider))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// DSN 返回数据库连接字符串
func (d *DatabaseConfig) DSN() string {
	switch d.Driver {
	case "postgres":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
		)
	case "mysql":
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?parseTime=true",
			d.User, d.Password, d.Host, d.Port, d.Name,
		)
	case "sqlite":
		return d.Name
	default:
		return ""
	}
}

// URL 返回 golang-migrate 使用的连接 URL
func (d *DatabaseConfig) URL() string {
	switch d.Driver {
	case "postgres":
		return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
			d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
	case "mysql":
		return fmt.Sprintf("mysql://%s:%s@tcp(%s:%d)/%s?multiStatements=true",
			d.User, d.Password, d.Host, d.Port, d.Name)
	default:
		return ""
	}
}
