package rag

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var (
	_ DenseIndex      = (*PGVectorStore)(nil)
	_ BatchDenseIndex = (*PGVectorStore)(nil)
	_ HealthChecker   = (*PGVectorStore)(nil)
)

func setupPGVectorStore(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *PGVectorStore) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDB}), &gorm.Config{})
	require.NoError(t, err)

	store, err := NewPGVectorStore(gormDB, "", zap.NewNop())
	require.NoError(t, err)
	return mockDB, mock, store
}

func TestPGVectorStore_UpsertBatch(t *testing.T) {
	_, mock, store := setupPGVectorStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO chunk_embeddings (chunk_id, embedding, metadata, updated_at)`)).
		WithArgs("doc#0000", sqlmock.AnyArg(), `{"document_id":"doc"}`, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO chunk_embeddings`)).
		WithArgs("doc#0001", sqlmock.AnyArg(), "null", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := store.UpsertBatch(context.Background(), []VectorRecord{
		{ChunkID: "doc#0000", Vector: []float64{0.1, 0.2}, Metadata: map[string]any{"document_id": "doc"}},
		{ChunkID: "doc#0001", Vector: []float64{0.3, 0.4}},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGVectorStore_UpsertRollsBack(t *testing.T) {
	_, mock, store := setupPGVectorStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO chunk_embeddings`)).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := store.Upsert(context.Background(), "doc#0000", []float64{1}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGVectorStore_Search(t *testing.T) {
	_, mock, store := setupPGVectorStore(t)

	rows := sqlmock.NewRows([]string{"chunk_id", "score"}).
		AddRow("doc#0001", 0.75).
		AddRow("doc#0000", 0.75).
		AddRow("doc#0002", 0.5)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT chunk_id, 1 - (embedding <=> $1) AS score FROM chunk_embeddings ORDER BY embedding <=> $2 LIMIT $3`)).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), 3).
		WillReturnRows(rows)

	hits, err := store.Search(context.Background(), []float64{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, "doc#0000", hits[0].ID)
	assert.Equal(t, "doc#0001", hits[1].ID)
	assert.Equal(t, "doc#0002", hits[2].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGVectorStore_SearchZeroTopK(t *testing.T) {
	_, mock, store := setupPGVectorStore(t)
	hits, err := store.Search(context.Background(), []float64{1}, 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGVectorStore_Delete(t *testing.T) {
	_, mock, store := setupPGVectorStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM chunk_embeddings WHERE chunk_id IN ($1,$2)`)).
		WithArgs("a", "b").
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, store.Delete(context.Background(), []string{"a", "b"}))
	require.NoError(t, store.Delete(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGVectorStore_RequiresDB(t *testing.T) {
	_, err := NewPGVectorStore(nil, "", nil)
	assert.Error(t, err)
}
