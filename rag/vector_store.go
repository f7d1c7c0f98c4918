package rag

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// ====== 内存向量索引（用于测试和小规模应用）======

type storedVector struct {
	vector   []float64
	metadata map[string]any
}

// InMemoryVectorStore 内存向量索引，暴力余弦检索
type InMemoryVectorStore struct {
	vectors map[string]storedVector
	mu      sync.RWMutex
	logger  *zap.Logger
}

// NewInMemoryVectorStore 创建内存向量索引
func NewInMemoryVectorStore(logger *zap.Logger) *InMemoryVectorStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InMemoryVectorStore{
		vectors: make(map[string]storedVector),
		logger:  logger.With(zap.String("component", "memory_vector_store")),
	}
}

// Upsert 写入或覆盖向量
func (s *InMemoryVectorStore) Upsert(ctx context.Context, chunkID string, vector []float64, metadata map[string]any) error {
	if len(vector) == 0 {
		return fmt.Errorf("chunk %s has no embedding", chunkID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vectors[chunkID] = storedVector{vector: append([]float64(nil), vector...), metadata: metadata}
	return nil
}

// UpsertBatch 批量写入，整批校验通过后才生效
func (s *InMemoryVectorStore) UpsertBatch(ctx context.Context, records []VectorRecord) error {
	for _, r := range records {
		if len(r.Vector) == 0 {
			return fmt.Errorf("chunk %s has no embedding", r.ChunkID)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		s.vectors[r.ChunkID] = storedVector{vector: append([]float64(nil), r.Vector...), metadata: r.Metadata}
	}
	return nil
}

// Search 余弦相似度检索，分数范围 [-1, 1]
func (s *InMemoryVectorStore) Search(ctx context.Context, vector []float64, topK int) ([]ScoredID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]ScoredID, 0, len(s.vectors))
	for id, v := range s.vectors {
		results = append(results, ScoredID{ID: id, Score: cosineSimilarity(vector, v.vector)})
	}
	sortScoredIDs(results)

	if topK > 0 && topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

// Delete 删除向量
func (s *InMemoryVectorStore) Delete(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := len(s.vectors)
	for _, id := range ids {
		delete(s.vectors, id)
	}
	s.logger.Debug("vectors deleted",
		zap.Int("deleted", before-len(s.vectors)),
		zap.Int("remaining", len(s.vectors)))
	return nil
}

// Count 向量数量
func (s *InMemoryVectorStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vectors)
}

// 功用函数

// cosineSimilarity 余弦相似度，维度不一致或零向量返回 0
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0.0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// sortScoredIDs 分数降序，同分按 ID 升序
func sortScoredIDs(results []ScoredID) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
}
