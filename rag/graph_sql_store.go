package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/BaSui01/ragcore/types"
)

// graphEntityRow 实体表
type graphEntityRow struct {
	ID         string         `gorm:"primaryKey;size:191"`
	Type       string         `gorm:"size:64;index"`
	Name       string         `gorm:"size:255;index"`
	Attributes map[string]any `gorm:"type:text;serializer:json"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TableName 指定表名
func (graphEntityRow) TableName() string { return "graph_entities" }

// graphRelationshipRow 关系表，(source, type, target) 唯一
type graphRelationshipRow struct {
	ID         string         `gorm:"primaryKey;size:64"`
	SourceID   string         `gorm:"size:191;not null;uniqueIndex:idx_graph_rel_key,priority:1;index:idx_graph_rel_source"`
	RelType    string         `gorm:"size:64;not null;uniqueIndex:idx_graph_rel_key,priority:2"`
	TargetID   string         `gorm:"size:191;not null;uniqueIndex:idx_graph_rel_key,priority:3;index:idx_graph_rel_target"`
	Weight     float64        `gorm:"default:0"`
	Attributes map[string]any `gorm:"type:text;serializer:json"`
	CreatedAt  time.Time
}

// TableName 指定表名
func (graphRelationshipRow) TableName() string { return "graph_relationships" }

// SQLGraphStore 基于 GORM 的图存储，支持 PostgreSQL、MySQL 与 SQLite
type SQLGraphStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewSQLGraphStore 创建 SQL 图存储
func NewSQLGraphStore(db *gorm.DB, logger *zap.Logger) (*SQLGraphStore, error) {
	if db == nil {
		return nil, types.ConfigError("graph database not configured")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLGraphStore{
		db:     db,
		logger: logger.With(zap.String("component", "sql_graph_store")),
	}, nil
}

// AutoMigrate 建表；生产环境使用 internal/migration 的版本化迁移
func (s *SQLGraphStore) AutoMigrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&graphEntityRow{}, &graphRelationshipRow{}); err != nil {
		return fmt.Errorf("failed to auto migrate graph tables: %w", err)
	}
	return nil
}

// UpsertEntity 创建或更新实体
func (s *SQLGraphStore) UpsertEntity(ctx context.Context, e Entity) error {
	if e.ID == "" {
		return types.ConfigError("entity id is required")
	}
	row := graphEntityRow{ID: e.ID, Type: e.Type, Name: e.Name, Attributes: e.Attributes}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"type", "name", "attributes", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert entity %s: %w", e.ID, err)
	}
	return nil
}

// CreateRelationship 创建关系，两端实体必须已存在
func (s *SQLGraphStore) CreateRelationship(ctx context.Context, r Relationship) error {
	if r.Source == "" || r.Target == "" || r.Type == "" {
		return types.ConfigError("relationship requires source, target and type")
	}
	db := s.db.WithContext(ctx)

	var count int64
	ids := []string{r.Source, r.Target}
	if r.Source == r.Target {
		ids = ids[:1]
	}
	if err := db.Model(&graphEntityRow{}).Where("id IN ?", ids).Count(&count).Error; err != nil {
		return fmt.Errorf("check relationship endpoints: %w", err)
	}
	if int(count) != len(ids) {
		return types.Errorf(types.ErrNotFound, "relationship endpoint not found: %s -> %s", r.Source, r.Target)
	}

	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	row := graphRelationshipRow{
		ID:         r.ID,
		SourceID:   r.Source,
		RelType:    r.Type,
		TargetID:   r.Target,
		Weight:     r.Weight,
		Attributes: r.Attributes,
	}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "source_id"}, {Name: "rel_type"}, {Name: "target_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"weight", "attributes"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("create relationship %s -[%s]-> %s: %w", r.Source, r.Type, r.Target, err)
	}
	return nil
}

// GetEntity 按 ID 读取实体
func (s *SQLGraphStore) GetEntity(ctx context.Context, id string) (*Entity, error) {
	var row graphEntityRow
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.Errorf(types.ErrNotFound, "entity %q not found", id)
		}
		return nil, fmt.Errorf("get entity %s: %w", id, err)
	}
	e := row.toEntity()
	return &e, nil
}

// Relationships 单条查询读取关系集合，保证一个实体的关系是一致快照
func (s *SQLGraphStore) Relationships(ctx context.Context, entityID string, dir Direction) ([]Neighbor, error) {
	q := s.db.WithContext(ctx).Model(&graphRelationshipRow{})
	switch dir {
	case DirectionOutgoing:
		q = q.Where("source_id = ?", entityID)
	case DirectionIncoming:
		q = q.Where("target_id = ?", entityID)
	case DirectionBoth:
		q = q.Where("source_id = ? OR target_id = ?", entityID, entityID)
	default:
		return nil, types.ConfigError("unknown direction %d", dir)
	}

	var rows []graphRelationshipRow
	if err := q.Order("rel_type, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list relationships of %s: %w", entityID, err)
	}

	out := make([]Neighbor, 0, len(rows))
	for _, row := range rows {
		rel := row.toRelationship()
		if (dir == DirectionOutgoing || dir == DirectionBoth) && row.SourceID == entityID {
			out = append(out, Neighbor{Relationship: rel, EntityID: row.TargetID})
		}
		if (dir == DirectionIncoming || dir == DirectionBoth) && row.TargetID == entityID {
			out = append(out, Neighbor{Relationship: rel, EntityID: row.SourceID, Reverse: true})
		}
	}
	sortNeighbors(out)
	return out, nil
}

// FindEntities 名称或 ID 包含 pattern（不区分大小写）的实体
func (s *SQLGraphStore) FindEntities(ctx context.Context, pattern string, limit int) ([]Entity, error) {
	pattern = strings.ToLower(strings.TrimSpace(pattern))
	if pattern == "" {
		return []Entity{}, nil
	}
	like := "%" + pattern + "%"
	q := s.db.WithContext(ctx).
		Where("LOWER(name) LIKE ? OR LOWER(id) LIKE ?", like, like).
		Order("id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []graphEntityRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find entities %q: %w", pattern, err)
	}
	out := make([]Entity, len(rows))
	for i, row := range rows {
		out[i] = row.toEntity()
	}
	return out, nil
}

// HealthCheck 探活
func (s *SQLGraphStore) HealthCheck(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (r graphEntityRow) toEntity() Entity {
	return Entity{
		ID:         r.ID,
		Type:       r.Type,
		Name:       r.Name,
		Attributes: r.Attributes,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

func (r graphRelationshipRow) toRelationship() Relationship {
	return Relationship{
		ID:         r.ID,
		Source:     r.SourceID,
		Target:     r.TargetID,
		Type:       r.RelType,
		Weight:     r.Weight,
		Attributes: r.Attributes,
	}
}
