package rag

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/ragcore/types"
)

// Entity 图中的实体
type Entity struct {
	ID         string         `json:"id" yaml:"id"`
	Type       string         `json:"type" yaml:"type"`
	Name       string         `json:"name" yaml:"name"`
	Attributes map[string]any `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	CreatedAt  time.Time      `json:"created_at" yaml:"-"`
	UpdatedAt  time.Time      `json:"updated_at" yaml:"-"`
}

// DisplayName 名称为空时退回 ID
func (e Entity) DisplayName() string {
	if e.Name != "" {
		return e.Name
	}
	return e.ID
}

// Relationship 有向关系 Source -[Type]-> Target
type Relationship struct {
	ID         string         `json:"id" yaml:"id,omitempty"`
	Source     string         `json:"source" yaml:"source"`
	Target     string         `json:"target" yaml:"target"`
	Type       string         `json:"type" yaml:"type"`
	Weight     float64        `json:"weight,omitempty" yaml:"weight,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

// Direction 关系方向
type Direction int

const (
	DirectionOutgoing Direction = iota
	DirectionIncoming
	DirectionBoth
)

// ParseDirection 解析 outgoing / incoming / both，空串为 outgoing
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "outgoing", "out":
		return DirectionOutgoing, nil
	case "incoming", "in":
		return DirectionIncoming, nil
	case "both", "bidirectional":
		return DirectionBoth, nil
	default:
		return DirectionOutgoing, types.ConfigError("unknown traversal direction %q", s)
	}
}

func (d Direction) String() string {
	switch d {
	case DirectionIncoming:
		return "incoming"
	case DirectionBoth:
		return "both"
	default:
		return "outgoing"
	}
}

// Neighbor 关系及其另一端的实体 ID；Reverse 表示沿入边到达
type Neighbor struct {
	Relationship Relationship `json:"relationship"`
	EntityID     string       `json:"entity_id"`
	Reverse      bool         `json:"reverse,omitempty"`
}

// relationshipKey 同一对实体间同类型的关系只保留一条
func relationshipKey(r Relationship) string {
	return r.Source + "\x00" + r.Type + "\x00" + r.Target
}

// InMemoryGraph 内存图存储
type InMemoryGraph struct {
	entities map[string]*Entity
	rels     map[string]*Relationship // id -> rel
	byKey    map[string]string        // relationshipKey -> id
	outRels  map[string][]string      // entityID -> relIDs
	inRels   map[string][]string      // entityID -> relIDs
	logger   *zap.Logger
	mu       sync.RWMutex
}

// NewInMemoryGraph 创建内存图
func NewInMemoryGraph(logger *zap.Logger) *InMemoryGraph {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InMemoryGraph{
		entities: make(map[string]*Entity),
		rels:     make(map[string]*Relationship),
		byKey:    make(map[string]string),
		outRels:  make(map[string][]string),
		inRels:   make(map[string][]string),
		logger:   logger.With(zap.String("component", "memory_graph")),
	}
}

// UpsertEntity 创建或更新实体
func (g *InMemoryGraph) UpsertEntity(ctx context.Context, e Entity) error {
	if e.ID == "" {
		return types.ConfigError("entity id is required")
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	if old, ok := g.entities[e.ID]; ok {
		e.CreatedAt = old.CreatedAt
	} else if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	e.Attributes = cloneAttrs(e.Attributes)
	g.entities[e.ID] = &e
	return nil
}

// CreateRelationship 创建关系，两端实体必须已存在；同键关系覆盖属性
func (g *InMemoryGraph) CreateRelationship(ctx context.Context, r Relationship) error {
	if r.Source == "" || r.Target == "" || r.Type == "" {
		return types.ConfigError("relationship requires source, target and type")
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, id := range []string{r.Source, r.Target} {
		if _, ok := g.entities[id]; !ok {
			return types.Errorf(types.ErrNotFound, "entity %q not found", id)
		}
	}

	r.Attributes = cloneAttrs(r.Attributes)
	key := relationshipKey(r)
	if id, ok := g.byKey[key]; ok {
		r.ID = id
		g.rels[id] = &r
		return nil
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	g.rels[r.ID] = &r
	g.byKey[key] = r.ID
	g.outRels[r.Source] = append(g.outRels[r.Source], r.ID)
	g.inRels[r.Target] = append(g.inRels[r.Target], r.ID)
	return nil
}

// GetEntity 按 ID 读取实体
func (g *InMemoryGraph) GetEntity(ctx context.Context, id string) (*Entity, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	e, ok := g.entities[id]
	if !ok {
		return nil, types.Errorf(types.ErrNotFound, "entity %q not found", id)
	}
	cp := *e
	cp.Attributes = cloneAttrs(e.Attributes)
	return &cp, nil
}

// Relationships 返回实体关系集合的一致快照，按关系类型和对端 ID 排序
func (g *InMemoryGraph) Relationships(ctx context.Context, entityID string, dir Direction) ([]Neighbor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []Neighbor
	if dir == DirectionOutgoing || dir == DirectionBoth {
		for _, id := range g.outRels[entityID] {
			r := *g.rels[id]
			out = append(out, Neighbor{Relationship: r, EntityID: r.Target})
		}
	}
	if dir == DirectionIncoming || dir == DirectionBoth {
		for _, id := range g.inRels[entityID] {
			r := *g.rels[id]
			out = append(out, Neighbor{Relationship: r, EntityID: r.Source, Reverse: true})
		}
	}
	sortNeighbors(out)
	return out, nil
}

// FindEntities 名称或 ID 包含 pattern（不区分大小写）的实体，按 ID 排序
func (g *InMemoryGraph) FindEntities(ctx context.Context, pattern string, limit int) ([]Entity, error) {
	pattern = strings.ToLower(strings.TrimSpace(pattern))
	if pattern == "" {
		return []Entity{}, nil
	}
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := []Entity{}
	for _, e := range g.entities {
		if strings.Contains(strings.ToLower(e.Name), pattern) || strings.Contains(strings.ToLower(e.ID), pattern) {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Stats 实体数与关系数
func (g *InMemoryGraph) Stats() (entities, relationships int) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.entities), len(g.rels)
}

// HealthCheck 内存图始终可用
func (g *InMemoryGraph) HealthCheck(ctx context.Context) error {
	return nil
}

func sortNeighbors(ns []Neighbor) {
	sort.SliceStable(ns, func(i, j int) bool {
		a, b := ns[i], ns[j]
		if a.Relationship.Type != b.Relationship.Type {
			return a.Relationship.Type < b.Relationship.Type
		}
		if a.EntityID != b.EntityID {
			return a.EntityID < b.EntityID
		}
		return !a.Reverse && b.Reverse
	})
}

func cloneAttrs(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
