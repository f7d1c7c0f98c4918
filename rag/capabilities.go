package rag

import "context"

// =============================================================================
// 外部能力接口：模型、索引与图存储均通过这些接口接入
// =============================================================================

// Embedder 文本 → 向量
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// BatchEmbedder 可选的批量向量化能力
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)
}

// Generator 文本 → 文本
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// DenseIndex 稠密向量索引
type DenseIndex interface {
	Upsert(ctx context.Context, chunkID string, vector []float64, metadata map[string]any) error
	Search(ctx context.Context, vector []float64, topK int) ([]ScoredID, error)
	Delete(ctx context.Context, ids []string) error
}

// VectorRecord 批量写入的一条向量记录
type VectorRecord struct {
	ChunkID  string
	Vector   []float64
	Metadata map[string]any
}

// BatchDenseIndex 可选的批量写入能力
type BatchDenseIndex interface {
	UpsertBatch(ctx context.Context, records []VectorRecord) error
}

// SparseIndex 稀疏词项索引
type SparseIndex interface {
	Index(ctx context.Context, chunkID string, tokens []string) error
	Search(ctx context.Context, tokens []string, topK int) ([]ScoredID, error)
	Delete(ctx context.Context, ids []string) error
}

// GraphStore 实体关系存储。遍历只调用读方法。
type GraphStore interface {
	UpsertEntity(ctx context.Context, e Entity) error
	CreateRelationship(ctx context.Context, r Relationship) error
	GetEntity(ctx context.Context, id string) (*Entity, error)
	Relationships(ctx context.Context, entityID string, dir Direction) ([]Neighbor, error)
	FindEntities(ctx context.Context, pattern string, limit int) ([]Entity, error)
}

// HealthChecker 可选的健康检查
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// ChunkStore 按 ID 读取块原文，供重排序与上下文拼装使用
type ChunkStore interface {
	GetChunks(ctx context.Context, ids []string) (map[string]Chunk, error)
}

// MutableChunkStore 索引器写入块原文
type MutableChunkStore interface {
	ChunkStore
	PutChunks(ctx context.Context, chunks []Chunk) error
	DeleteChunks(ctx context.Context, ids []string) error
}
