package rerank

import (
	"context"
	"time"
)

// RerankRequest 精排请求
type RerankRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	Model     string   `json:"model,omitempty"`
	TopN      int      `json:"top_n,omitempty"` // 0 表示返回全部
}

// RerankResult 单条结果，Index 指向输入中的位置
type RerankResult struct {
	Index          int     `json:"index"`
	RelevanceScore float64 `json:"relevance_score"`
}

// RerankResponse 精排响应
type RerankResponse struct {
	Provider  string         `json:"provider"`
	Model     string         `json:"model"`
	Results   []RerankResult `json:"results"`
	Usage     RerankUsage    `json:"usage"`
	CreatedAt time.Time      `json:"created_at,omitempty"`
}

// RerankUsage 计费信息
type RerankUsage struct {
	SearchUnits int `json:"search_units,omitempty"`
	TotalTokens int `json:"total_tokens,omitempty"`
}

// Provider 精排提供者
type Provider interface {
	Rerank(ctx context.Context, req *RerankRequest) (*RerankResponse, error)

	// RerankSimple 只返回结果列表
	RerankSimple(ctx context.Context, query string, documents []string, topN int) ([]RerankResult, error)

	Name() string

	// MaxDocuments 单次请求的文档上限
	MaxDocuments() int
}
