package rag

import (
	"context"
	"fmt"

	"github.com/BaSui01/ragcore/llm/embedding"
	"github.com/BaSui01/ragcore/llm/rerank"
	"github.com/BaSui01/ragcore/types"
)

// =============================================================================
// 外部模型适配：llm 子包 → 管线能力接口
// =============================================================================

// ProviderEmbedder 把 embedding.Provider 适配为 Embedder 与 BatchEmbedder
type ProviderEmbedder struct {
	provider embedding.Provider
}

// NewProviderEmbedder 创建适配器
func NewProviderEmbedder(p embedding.Provider) *ProviderEmbedder {
	return &ProviderEmbedder{provider: p}
}

// Embed 查询向量
func (e *ProviderEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	vec, err := e.provider.EmbedQuery(ctx, text)
	if err != nil {
		return nil, types.Unavailable("embedder", err)
	}
	return vec, nil
}

// EmbedBatch 文档向量，提供者内部按批上限拆分
func (e *ProviderEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	vecs, err := e.provider.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, types.Unavailable("embedder", err)
	}
	if len(vecs) != len(texts) {
		return nil, types.Unavailable("embedder", fmt.Errorf("got %d vectors for %d texts", len(vecs), len(texts)))
	}
	return vecs, nil
}

// Dimensions 向量维度，0 表示由模型决定
func (e *ProviderEmbedder) Dimensions() int { return e.provider.Dimensions() }

// ProviderCrossEncoder 把 rerank.Provider 适配为 CrossEncoder。
// 同一批次内的查询相同，结果按 Index 写回输入位置。
type ProviderCrossEncoder struct {
	provider rerank.Provider
}

// NewProviderCrossEncoder 创建适配器
func NewProviderCrossEncoder(p rerank.Provider) *ProviderCrossEncoder {
	return &ProviderCrossEncoder{provider: p}
}

// Score 实现 CrossEncoder；未被返回的文档得 0 分
func (c *ProviderCrossEncoder) Score(ctx context.Context, pairs []QueryDocPair) ([]float64, error) {
	scores := make([]float64, len(pairs))
	if len(pairs) == 0 {
		return scores, nil
	}
	query := pairs[0].Query
	docs := make([]string, len(pairs))
	for i, p := range pairs {
		if p.Query != query {
			return nil, types.ConfigError("cross-encoder batch mixes queries")
		}
		docs[i] = p.Document
	}

	results, err := c.provider.RerankSimple(ctx, query, docs, len(docs))
	if err != nil {
		return nil, types.Unavailable("reranker", err)
	}
	for _, r := range results {
		if r.Index >= 0 && r.Index < len(scores) {
			scores[r.Index] = r.RelevanceScore
		}
	}
	return scores, nil
}
