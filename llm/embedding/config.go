package embedding

import "time"

// OpenAIConfig OpenAI 兼容的 /v1/embeddings 接口配置
type OpenAIConfig struct {
	APIKey       string        `json:"api_key" yaml:"api_key"`
	BaseURL      string        `json:"base_url" yaml:"base_url"`
	Model        string        `json:"model,omitempty" yaml:"model,omitempty"`
	Dimensions   int           `json:"dimensions,omitempty" yaml:"dimensions,omitempty"`
	MaxBatch     int           `json:"max_batch,omitempty" yaml:"max_batch,omitempty"`
	Timeout      time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	RateLimitRPS float64       `json:"rate_limit_rps,omitempty" yaml:"rate_limit_rps,omitempty"`
}

// DefaultOpenAIConfig 默认配置
func DefaultOpenAIConfig() OpenAIConfig {
	return OpenAIConfig{
		BaseURL:    "https://api.openai.com",
		Model:      "text-embedding-3-small",
		Dimensions: 1536,
		MaxBatch:   256,
		Timeout:    30 * time.Second,
	}
}
