// Package completion 提供 OpenAI 兼容的 Chat Completions 文本生成，
// 用于 HyDE 假设文档与最终回答。
package completion

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/ragcore/internal/metrics"
	"github.com/BaSui01/ragcore/llm"
	"github.com/BaSui01/ragcore/types"
)

// Config 生成模型配置
type Config struct {
	APIKey       string        `json:"api_key" yaml:"api_key"`
	BaseURL      string        `json:"base_url" yaml:"base_url"`
	Model        string        `json:"model" yaml:"model"`
	SystemPrompt string        `json:"system_prompt,omitempty" yaml:"system_prompt,omitempty"`
	Temperature  float64       `json:"temperature" yaml:"temperature"`
	MaxTokens    int           `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	Timeout      time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	RateLimitRPS float64       `json:"rate_limit_rps,omitempty" yaml:"rate_limit_rps,omitempty"`
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		BaseURL:     "https://api.openai.com",
		Model:       "gpt-4o-mini",
		Temperature: 0.2,
		MaxTokens:   1024,
		Timeout:     60 * time.Second,
	}
}

// Generator 单轮文本生成
type Generator struct {
	client *llm.Client
	cfg    Config
	logger *zap.Logger
}

// New 创建生成器
func New(cfg Config, m *metrics.Collector, logger *zap.Logger) (*Generator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Model == "" {
		return nil, types.ConfigError("generation model is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.Temperature < 0 || cfg.Temperature > 2 {
		return nil, types.ConfigError("temperature must be in [0, 2], got %v", cfg.Temperature)
	}

	client := llm.NewClient(llm.ClientConfig{
		Provider:     "openai-chat",
		BaseURL:      cfg.BaseURL,
		APIKey:       cfg.APIKey,
		Timeout:      cfg.Timeout,
		RateLimitRPS: cfg.RateLimitRPS,
	}, logger).WithMetrics(m)

	return &Generator{
		client: client,
		cfg:    cfg,
		logger: logger.With(zap.String("component", "generator")),
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Generate 发送单条用户消息并返回第一个候选
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	messages := make([]chatMessage, 0, 2)
	if g.cfg.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: g.cfg.SystemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: prompt})

	body := chatRequest{
		Model:       g.cfg.Model,
		Messages:    messages,
		Temperature: g.cfg.Temperature,
		MaxTokens:   g.cfg.MaxTokens,
	}
	var resp chatResponse
	err := g.client.PostJSON(ctx, "/v1/chat/completions", g.cfg.Model, body, &resp, func() llm.Usage {
		return llm.Usage{PromptTokens: resp.Usage.PromptTokens, CompletionTokens: resp.Usage.CompletionTokens}
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", types.NewError(types.ErrUpstreamError, "no choices returned").WithProvider(g.client.Provider())
	}

	choice := resp.Choices[0]
	if choice.FinishReason == "length" {
		g.logger.Debug("generation truncated by max_tokens", zap.Int("max_tokens", g.cfg.MaxTokens))
	}
	return strings.TrimSpace(choice.Message.Content), nil
}
