package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BaSui01/ragcore/internal/metrics"
	"github.com/BaSui01/ragcore/internal/tlsutil"
	"github.com/BaSui01/ragcore/types"
)

// =============================================================================
// 上游模型服务的公共 HTTP 客户端：限流、鉴权、错误映射与指标
// =============================================================================

// ClientConfig 客户端配置
type ClientConfig struct {
	// Provider 提供者名称，用于错误与指标标签
	Provider string
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
	// RateLimitRPS 每秒请求数，0 不限流
	RateLimitRPS float64
	// Burst 突发请求数，<=0 时取 1
	Burst int
	// Headers 额外请求头
	Headers map[string]string
}

// Client 对 OpenAI 兼容风格 JSON API 的薄封装
type Client struct {
	cfg     ClientConfig
	http    *http.Client
	limiter *rate.Limiter
	metrics *metrics.Collector
	logger  *zap.Logger
}

// NewClient 创建客户端
func NewClient(cfg ClientConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	c := &Client{
		cfg:    cfg,
		http:   tlsutil.SecureHTTPClient(cfg.Timeout),
		logger: logger.With(zap.String("component", "llm_client"), zap.String("provider", cfg.Provider)),
	}
	if cfg.RateLimitRPS > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), burst)
	}
	return c
}

// WithMetrics 设置指标采集器
func (c *Client) WithMetrics(m *metrics.Collector) *Client {
	c.metrics = m
	return c
}

// WithHTTPClient 替换底层 HTTP 客户端（测试用）
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc
	return c
}

// Provider 提供者名称
func (c *Client) Provider() string { return c.cfg.Provider }

// Usage 一次调用的 token 用量
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// PostJSON 发送 JSON 请求并把响应解码到 out。usage 可为 nil。
func (c *Client) PostJSON(ctx context.Context, endpoint, model string, body, out any, usage func() Usage) (err error) {
	start := time.Now()
	defer func() {
		var u Usage
		if err == nil && usage != nil {
			u = usage()
		}
		c.metrics.RecordLLMRequest(c.cfg.Provider, model, metrics.Status(err), time.Since(start), u.PromptTokens, u.CompletionTokens)
	}()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%s rate limiter: %w", c.cfg.Provider, err)
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		code := types.ErrUpstreamError
		if errors.Is(err, context.DeadlineExceeded) {
			code = types.ErrUpstreamTimeout
		}
		return types.NewError(code, err.Error()).
			WithCause(err).
			WithRetryable(true).
			WithProvider(c.cfg.Provider)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg := ReadErrorMessage(resp.Body)
		c.logger.Warn("upstream request failed",
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode),
			zap.String("message", msg))
		return types.FromHTTPStatus(resp.StatusCode, msg, c.cfg.Provider)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return types.NewError(types.ErrUpstreamError, "decode response").
			WithCause(err).
			WithProvider(c.cfg.Provider)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	for k, v := range c.cfg.Headers {
		req.Header.Set(k, v)
	}
}

// ReadErrorMessage 解析 {"error":{"message":...}} 形式的错误体，失败时返回原文
func ReadErrorMessage(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 64<<10))
	if err != nil {
		return "failed to read error response"
	}

	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &errResp); err == nil {
		if errResp.Error.Message != "" {
			if errResp.Error.Type != "" {
				return fmt.Sprintf("%s (type: %s)", errResp.Error.Message, errResp.Error.Type)
			}
			return errResp.Error.Message
		}
		if errResp.Message != "" {
			return errResp.Message
		}
	}
	return strings.TrimSpace(string(data))
}
