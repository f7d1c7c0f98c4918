package rag

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/ragcore/llm/embedding"
	"github.com/BaSui01/ragcore/llm/rerank"
	"github.com/BaSui01/ragcore/types"
)

// fakeEmbeddingProvider 向量为 [len(text), index]
type fakeEmbeddingProvider struct {
	err  error
	drop bool // 少返回一条
}

func (p *fakeEmbeddingProvider) Embed(ctx context.Context, req *embedding.EmbeddingRequest) (*embedding.EmbeddingResponse, error) {
	return nil, p.err
}

func (p *fakeEmbeddingProvider) EmbedQuery(ctx context.Context, query string) ([]float64, error) {
	if p.err != nil {
		return nil, p.err
	}
	return []float64{float64(len(query)), 0}, nil
}

func (p *fakeEmbeddingProvider) EmbedDocuments(ctx context.Context, documents []string) ([][]float64, error) {
	if p.err != nil {
		return nil, p.err
	}
	out := make([][]float64, 0, len(documents))
	for i, d := range documents {
		out = append(out, []float64{float64(len(d)), float64(i)})
	}
	if p.drop && len(out) > 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (p *fakeEmbeddingProvider) Name() string      { return "fake" }
func (p *fakeEmbeddingProvider) Dimensions() int   { return 2 }
func (p *fakeEmbeddingProvider) MaxBatchSize() int { return 8 }

// fakeRerankProvider 只返回部分文档，顺序与输入相反
type fakeRerankProvider struct {
	err error
}

func (p *fakeRerankProvider) Rerank(ctx context.Context, req *rerank.RerankRequest) (*rerank.RerankResponse, error) {
	return nil, p.err
}

func (p *fakeRerankProvider) RerankSimple(ctx context.Context, query string, documents []string, topN int) ([]rerank.RerankResult, error) {
	if p.err != nil {
		return nil, p.err
	}
	var out []rerank.RerankResult
	for i := len(documents) - 1; i >= 1; i-- {
		out = append(out, rerank.RerankResult{Index: i, RelevanceScore: float64(i) / 10})
	}
	out = append(out, rerank.RerankResult{Index: 99, RelevanceScore: 1})
	return out, nil
}

func (p *fakeRerankProvider) Name() string      { return "fake" }
func (p *fakeRerankProvider) MaxDocuments() int { return 100 }

func TestProviderEmbedder(t *testing.T) {
	ctx := context.Background()
	e := NewProviderEmbedder(&fakeEmbeddingProvider{})

	vec, err := e.Embed(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 0}, vec)

	vecs, err := e.EmbedBatch(ctx, []string{"a", "bb"})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1, 0}, {2, 1}}, vecs)
	assert.Equal(t, 2, e.Dimensions())
}

func TestProviderEmbedder_Errors(t *testing.T) {
	ctx := context.Background()

	failing := NewProviderEmbedder(&fakeEmbeddingProvider{err: errBoom})
	_, err := failing.Embed(ctx, "abc")
	assert.True(t, types.IsCode(err, types.ErrCapabilityUnavailable))
	assert.ErrorIs(t, err, errBoom)
	_, err = failing.EmbedBatch(ctx, []string{"abc"})
	assert.True(t, types.IsCode(err, types.ErrCapabilityUnavailable))

	short := NewProviderEmbedder(&fakeEmbeddingProvider{drop: true})
	_, err = short.EmbedBatch(ctx, []string{"a", "b"})
	assert.True(t, types.IsCode(err, types.ErrCapabilityUnavailable))
}

func TestProviderCrossEncoder(t *testing.T) {
	ctx := context.Background()
	c := NewProviderCrossEncoder(&fakeRerankProvider{})

	scores, err := c.Score(ctx, []QueryDocPair{
		{Query: "q", Document: "a"},
		{Query: "q", Document: "b"},
		{Query: "q", Document: "c"},
	})

	require.NoError(t, err)
	// 下标 0 未返回，越界下标被忽略
	assert.Equal(t, []float64{0, 0.1, 0.2}, scores)

	empty, err := c.Score(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestProviderCrossEncoder_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := NewProviderCrossEncoder(&fakeRerankProvider{}).Score(ctx, []QueryDocPair{
		{Query: "q1", Document: "a"},
		{Query: "q2", Document: "b"},
	})
	assert.True(t, types.IsCode(err, types.ErrConfiguration))

	_, err = NewProviderCrossEncoder(&fakeRerankProvider{err: errBoom}).Score(ctx, []QueryDocPair{{Query: "q", Document: "a"}})
	assert.True(t, types.IsCode(err, types.ErrCapabilityUnavailable))
	assert.ErrorIs(t, err, errBoom)
}

func TestProviderCrossEncoder_InRerankStage(t *testing.T) {
	stage := NewRerankStage(NewProviderCrossEncoder(&fakeRerankProvider{}), DefaultRerankConfig(), nil)
	fused := []FusedResult{
		{ChunkID: "a", FusedScore: 0.9},
		{ChunkID: "b", FusedScore: 0.8},
		{ChunkID: "c", FusedScore: 0.7},
	}
	texts := map[string]string{"a": "alpha", "b": "beta", "c": "gamma"}

	ranked, outcome := stage.Rerank(context.Background(), "q", fused, texts, 3)

	assert.Equal(t, StatusUsed, outcome.Status)
	require.Len(t, ranked, 3)
	assert.Equal(t, "c", ranked[0].ChunkID)
	assert.Equal(t, "b", ranked[1].ChunkID)
	assert.Equal(t, "a", ranked[2].ChunkID)
}
