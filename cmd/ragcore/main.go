// =============================================================================
// ragcore 主入口
// =============================================================================
// 命令行工具：分块预览、目录入库检索、图遍历、数据库迁移
//
// 使用方法:
//
//	ragcore chunk docs/manual.md                      # 预览分块结果
//	ragcore index-search --dir docs --query "..."     # 入库并检索
//	ragcore graph --file graph.yaml --seeds acme      # 图遍历
//	ragcore migrate up                                # 运行数据库迁移
//	ragcore version                                   # 显示版本信息
// =============================================================================
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/ragcore/config"
	"github.com/BaSui01/ragcore/internal/cache"
	"github.com/BaSui01/ragcore/internal/metrics"
	"github.com/BaSui01/ragcore/internal/telemetry"
	"github.com/BaSui01/ragcore/rag"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// =============================================================================
// 🎯 主函数
// =============================================================================

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run 执行子命令并返回进程退出码
func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch args[0] {
	case "chunk":
		err = runChunk(ctx, args[1:], stdout, stderr)
	case "index-search":
		err = runIndexSearch(ctx, args[1:], stdout, stderr)
	case "graph":
		err = runGraph(ctx, args[1:], stdout, stderr)
	case "migrate":
		err = runMigrate(ctx, args[1:], stdout, stderr)
	case "version":
		printVersion(stdout)
	case "help", "-h", "--help":
		printUsage(stdout)
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		printUsage(stderr)
		return 1
	}

	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// =============================================================================
// 🧰 公共运行环境
// =============================================================================

// app 单次命令共享的配置、日志与外部资源
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	otel    *telemetry.Providers
	cache   *cache.Manager
	metrics *metrics.Collector
}

// newApp 加载配置并初始化日志、遥测、指标与可选的 Redis 向量缓存
func newApp(configPath string) (*app, error) {
	loader := config.NewLoader()
	if configPath != "" {
		loader = loader.WithConfigPath(configPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	// 命令结果写 stdout，日志改到 stderr
	logCfg := cfg.Log
	logCfg.OutputPaths = redirectStdout(logCfg.OutputPaths)
	logger := initLogger(logCfg)

	a := &app{cfg: cfg, logger: logger}
	if a.otel, err = telemetry.Init(cfg.Telemetry, logger); err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}
	a.metrics = metricsCollector(cfg.Metrics, logger)

	if cfg.EmbeddingCache.Enabled && cfg.EmbeddingCache.UseRedis {
		cc := cache.DefaultConfig()
		cc.Addr = cfg.Redis.Addr
		cc.Password = cfg.Redis.Password
		cc.DB = cfg.Redis.DB
		cc.PoolSize = cfg.Redis.PoolSize
		cc.MinIdleConns = cfg.Redis.MinIdleConns
		cc.DefaultTTL = cfg.EmbeddingCache.TTL
		cc.HealthCheckInterval = 0
		if a.cache, err = cache.NewManager(cc, logger); err != nil {
			// 二级缓存不可用时只用进程内缓存
			logger.Warn("redis vector cache unavailable", zap.Error(err))
		}
	}
	return a, nil
}

// runtime 按配置组装检索运行时
func (a *app) runtime() (*rag.Runtime, error) {
	opts := rag.RuntimeOptions{Metrics: a.metrics}
	if a.cache != nil {
		opts.VectorCache = a.cache
	}
	return rag.NewRuntimeFromConfig(a.cfg, opts, a.logger)
}

func (a *app) close() {
	if a.cache != nil {
		_ = a.cache.Close()
	}
	if a.otel != nil {
		_ = a.otel.Shutdown(context.Background())
	}
	_ = a.logger.Sync()
}

var (
	collectorOnce sync.Once
	collector     *metrics.Collector
)

// metricsCollector 进程内只注册一次 Prometheus 指标
func metricsCollector(cfg config.MetricsConfig, logger *zap.Logger) *metrics.Collector {
	if !cfg.Enabled {
		return nil
	}
	collectorOnce.Do(func() {
		collector = metrics.NewCollector(cfg.Namespace, logger)
	})
	return collector
}

func redirectStdout(paths []string) []string {
	if len(paths) == 0 {
		return []string{"stderr"}
	}
	out := make([]string, len(paths))
	for i, p := range paths {
		if p == "stdout" {
			p = "stderr"
		}
		out[i] = p
	}
	return out
}

// =============================================================================
// 🔧 日志初始化
// =============================================================================

func initLogger(cfg config.LogConfig) *zap.Logger {
	// 解析日志级别
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	// 配置编码器
	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if cfg.Format == "console" {
		encoding = "console"
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	zapConfig := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       encoding == "console",
		DisableCaller:     !cfg.EnableCaller,
		DisableStacktrace: !cfg.EnableStacktrace,
		Encoding:          encoding,
		EncoderConfig:     encoderConfig,
		OutputPaths:       cfg.OutputPaths,
		ErrorOutputPaths:  []string{"stderr"},
	}

	logger, err := zapConfig.Build()
	if err != nil {
		// 回退到基本 logger
		logger, _ = zap.NewProduction()
	}
	return logger
}

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "ragcore %s\n", Version)
	fmt.Fprintf(w, "  Build Time: %s\n", BuildTime)
	fmt.Fprintf(w, "  Git Commit: %s\n", GitCommit)
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `ragcore - retrieval and ranking engine for business documents

Usage:
  ragcore <command> [options]

Commands:
  chunk          Chunk files and print the resulting chunks
  index-search   Index a directory and run a hybrid search or answer
  graph          Load a YAML graph and run a bounded traversal
  migrate        Database migration commands
  version        Show version information
  help           Show this help message

Common options:
  --config <path>   Path to configuration file (YAML)
  --json            Print machine-readable JSON

Examples:
  ragcore chunk --strategy hierarchical docs/returns.md
  ragcore index-search --dir docs --query "refund deadline" --top-k 3
  ragcore index-search --dir docs --query "why is shipment 123 late" --graph graph.yaml --answer
  ragcore graph --file graph.yaml --seeds supplier_acme --hops 2
  ragcore migrate up --config /etc/ragcore/config.yaml
  ragcore migrate status`)
}
