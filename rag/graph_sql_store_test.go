package rag

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/BaSui01/ragcore/types"
)

func newSQLiteGraphStore(t *testing.T) *SQLGraphStore {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	store, err := NewSQLGraphStore(db, nil)
	require.NoError(t, err)
	require.NoError(t, store.AutoMigrate(context.Background()))
	return store
}

func TestSQLGraphStore_EntitiesRoundTrip(t *testing.T) {
	store := newSQLiteGraphStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertEntity(ctx, Entity{ID: "supplier_acme", Type: "supplier", Name: "ACME Corp", Attributes: map[string]any{"country": "DE"}}))
	require.NoError(t, store.UpsertEntity(ctx, Entity{ID: "supplier_acme", Type: "supplier", Name: "ACME Corporation"}))

	e, err := store.GetEntity(ctx, "supplier_acme")
	require.NoError(t, err)
	assert.Equal(t, "ACME Corporation", e.Name)
	assert.Equal(t, "supplier", e.Type)
	assert.False(t, e.CreatedAt.IsZero())

	_, err = store.GetEntity(ctx, "ghost")
	assert.True(t, types.IsCode(err, types.ErrNotFound))

	assert.True(t, types.IsCode(store.UpsertEntity(ctx, Entity{}), types.ErrConfiguration))
}

func TestSQLGraphStore_Relationships(t *testing.T) {
	store := newSQLiteGraphStore(t)
	ctx := context.Background()
	seedSupplyChain(t, store)

	err := store.CreateRelationship(ctx, Relationship{Source: "supplier_acme", Target: "ghost", Type: "owns"})
	assert.True(t, types.IsCode(err, types.ErrNotFound))

	// 同键关系更新权重而不是新增
	require.NoError(t, store.CreateRelationship(ctx, Relationship{Source: "supplier_acme", Target: "strike_germany", Type: "disrupted_by", Weight: 0.8}))

	out, err := store.Relationships(ctx, "supplier_acme", DirectionOutgoing)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "strike_germany", out[0].EntityID)
	assert.InDelta(t, 0.8, out[0].Relationship.Weight, 1e-9)

	both, err := store.Relationships(ctx, "strike_germany", DirectionBoth)
	require.NoError(t, err)
	require.Len(t, both, 2)
	assert.Equal(t, "supplier_acme", both[0].EntityID)
	assert.True(t, both[0].Reverse)
	assert.Equal(t, "shipment_123", both[1].EntityID)
	assert.False(t, both[1].Reverse)

	_, err = store.Relationships(ctx, "strike_germany", Direction(9))
	assert.True(t, types.IsCode(err, types.ErrConfiguration))
}

func TestSQLGraphStore_FindEntities(t *testing.T) {
	store := newSQLiteGraphStore(t)
	seedSupplyChain(t, store)

	got, err := store.FindEntities(context.Background(), "Germany", 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "strike_germany", got[0].ID)

	got, err = store.FindEntities(context.Background(), "", 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSQLGraphStore_TraversalMatchesInMemory(t *testing.T) {
	store := newSQLiteGraphStore(t)
	seedSupplyChain(t, store)
	mem := NewInMemoryGraph(nil)
	seedSupplyChain(t, mem)

	for _, hops := range []int{1, 2} {
		sqlTr, err := NewGraphTraverser(store, opts(hops, 100, DirectionOutgoing), nil)
		require.NoError(t, err)
		memTr, err := NewGraphTraverser(mem, opts(hops, 100, DirectionOutgoing), nil)
		require.NoError(t, err)

		a, err := sqlTr.Traverse(context.Background(), []string{"supplier_acme"})
		require.NoError(t, err)
		b, err := memTr.Traverse(context.Background(), []string{"supplier_acme"})
		require.NoError(t, err)

		assert.Equal(t, pathEntities(b.Paths), pathEntities(a.Paths), "hops=%d", hops)
	}
	assert.NoError(t, store.HealthCheck(context.Background()))
}

func TestSQLGraphStore_QueryErrorWrapped(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	store, err := NewSQLGraphStore(db, nil)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT .* FROM "graph_relationships"`).WillReturnError(errBoom)

	_, err = store.Relationships(context.Background(), "supplier_acme", DirectionOutgoing)

	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewSQLGraphStore_NilDB(t *testing.T) {
	_, err := NewSQLGraphStore(nil, nil)
	assert.True(t, types.IsCode(err, types.ErrConfiguration))
}
