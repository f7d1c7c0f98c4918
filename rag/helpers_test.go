package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

// ====== 测试替身 ======

// failingEmbedder 始终返回错误
type failingEmbedder struct{ err error }

func (e failingEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	return nil, e.err
}

// failingDenseIndex 检索时失败
type failingDenseIndex struct {
	*InMemoryVectorStore
	err error
}

func (f failingDenseIndex) Search(ctx context.Context, vector []float64, topK int) ([]ScoredID, error) {
	return nil, f.err
}

// failingSparseIndex 检索时失败
type failingSparseIndex struct {
	*BM25Index
	err error
}

func (f failingSparseIndex) Search(ctx context.Context, tokens []string, topK int) ([]ScoredID, error) {
	return nil, f.err
}

// scriptedEncoder 返回固定分数或错误
type scriptedEncoder struct {
	scores map[string]float64 // 文档内容 → 分数
	err    error
}

func (e scriptedEncoder) Score(ctx context.Context, pairs []QueryDocPair) ([]float64, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([]float64, len(pairs))
	for i, p := range pairs {
		out[i] = e.scores[p.Document]
	}
	return out, nil
}

var errBoom = errors.New("boom")

// seedSupplyChain 写入
// supplier_acme -[disrupted_by]-> strike_germany -[affects]-> shipment_123
func seedSupplyChain(t *testing.T, store GraphStore) {
	t.Helper()
	ctx := context.Background()
	for _, e := range []Entity{
		{ID: "supplier_acme", Type: "supplier", Name: "ACME Corp"},
		{ID: "strike_germany", Type: "event", Name: "Strike in Germany"},
		{ID: "shipment_123", Type: "shipment", Name: "Shipment 123"},
	} {
		require.NoError(t, store.UpsertEntity(ctx, e))
	}
	require.NoError(t, store.CreateRelationship(ctx, Relationship{Source: "supplier_acme", Target: "strike_germany", Type: "disrupted_by"}))
	require.NoError(t, store.CreateRelationship(ctx, Relationship{Source: "strike_germany", Target: "shipment_123", Type: "affects"}))
}

func pathEntities(paths []TraversalPath) [][]string {
	out := make([][]string, len(paths))
	for i, p := range paths {
		out[i] = p.Entities()
	}
	return out
}
