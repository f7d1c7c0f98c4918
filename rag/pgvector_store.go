package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/ragcore/types"
)

// PGVectorStore 基于 PostgreSQL + pgvector 的稠密索引，表结构见 internal/migration
type PGVectorStore struct {
	db     *gorm.DB
	table  string
	logger *zap.Logger
}

// NewPGVectorStore 创建 pgvector 索引，table 为空时使用 chunk_embeddings
func NewPGVectorStore(db *gorm.DB, table string, logger *zap.Logger) (*PGVectorStore, error) {
	if db == nil {
		return nil, types.ConfigError("pgvector database not configured")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if table == "" {
		table = "chunk_embeddings"
	}
	return &PGVectorStore{
		db:     db,
		table:  table,
		logger: logger.With(zap.String("component", "pgvector_store")),
	}, nil
}

// Upsert 写入单个块向量
func (s *PGVectorStore) Upsert(ctx context.Context, chunkID string, vector []float64, metadata map[string]any) error {
	return s.UpsertBatch(ctx, []VectorRecord{{ChunkID: chunkID, Vector: vector, Metadata: metadata}})
}

// UpsertBatch 在一个事务里写入整批记录
func (s *PGVectorStore) UpsertBatch(ctx context.Context, records []VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	query := fmt.Sprintf(`INSERT INTO %s (chunk_id, embedding, metadata, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT (chunk_id) DO UPDATE SET embedding = EXCLUDED.embedding, metadata = EXCLUDED.metadata, updated_at = EXCLUDED.updated_at`, s.table)

	now := time.Now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, r := range records {
			if len(r.Vector) == 0 {
				return fmt.Errorf("chunk %s has no embedding", r.ChunkID)
			}
			meta, err := json.Marshal(r.Metadata)
			if err != nil {
				return fmt.Errorf("marshal metadata of %s: %w", r.ChunkID, err)
			}
			if err := tx.Exec(query, r.ChunkID, pgvector.NewVector(toFloat32(r.Vector)), string(meta), now).Error; err != nil {
				return fmt.Errorf("upsert embedding %s: %w", r.ChunkID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Debug("pgvector upsert completed", zap.Int("count", len(records)))
	return nil
}

type pgvectorHit struct {
	ChunkID string
	Score   float64
}

// Search 余弦距离检索，分数为 1 - distance
func (s *PGVectorStore) Search(ctx context.Context, vector []float64, topK int) ([]ScoredID, error) {
	if topK <= 0 {
		return []ScoredID{}, nil
	}
	v := pgvector.NewVector(toFloat32(vector))
	query := fmt.Sprintf(`SELECT chunk_id, 1 - (embedding <=> ?) AS score FROM %s ORDER BY embedding <=> ? LIMIT ?`, s.table)

	var rows []pgvectorHit
	if err := s.db.WithContext(ctx).Raw(query, v, v, topK).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("pgvector search: %w", err)
	}
	out := make([]ScoredID, len(rows))
	for i, r := range rows {
		out[i] = ScoredID{ID: r.ChunkID, Score: r.Score}
	}
	sortScoredIDs(out)
	return out, nil
}

// Delete 删除块向量
func (s *PGVectorStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE chunk_id IN ?`, s.table)
	if err := s.db.WithContext(ctx).Exec(query, ids).Error; err != nil {
		return fmt.Errorf("pgvector delete: %w", err)
	}
	return nil
}

// HealthCheck 探活
func (s *PGVectorStore) HealthCheck(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
