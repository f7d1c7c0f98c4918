package embedding

import (
	"context"
	"time"
)

// EmbeddingRequest 向量化请求
type EmbeddingRequest struct {
	Input      []string  `json:"input"`
	Model      string    `json:"model,omitempty"`
	Dimensions int       `json:"dimensions,omitempty"` // 支持可变维度的模型才生效
	InputType  InputType `json:"input_type,omitempty"`
}

// InputType 输入用途；部分模型对查询与文档使用不同前缀
type InputType string

const (
	InputTypeQuery    InputType = "query"
	InputTypeDocument InputType = "document"
)

// EmbeddingResponse 向量化响应，Embeddings 按输入顺序排列
type EmbeddingResponse struct {
	Provider   string          `json:"provider"`
	Model      string          `json:"model"`
	Embeddings []EmbeddingData `json:"embeddings"`
	Usage      EmbeddingUsage  `json:"usage"`
	CreatedAt  time.Time       `json:"created_at,omitempty"`
}

// EmbeddingData 单条向量
type EmbeddingData struct {
	Index     int       `json:"index"`
	Embedding []float64 `json:"embedding"`
}

// EmbeddingUsage token 用量
type EmbeddingUsage struct {
	PromptTokens int `json:"prompt_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Provider 向量化提供者
type Provider interface {
	Embed(ctx context.Context, req *EmbeddingRequest) (*EmbeddingResponse, error)

	// EmbedQuery 单条查询
	EmbedQuery(ctx context.Context, query string) ([]float64, error)

	// EmbedDocuments 批量文档，超过 MaxBatchSize 时分批请求
	EmbedDocuments(ctx context.Context, documents []string) ([][]float64, error)

	Name() string
	Dimensions() int
	MaxBatchSize() int
}
