package rag

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/ragcore/types"
)

// TraversalOptions 遍历限制
type TraversalOptions struct {
	MaxHops   int       `json:"max_hops"`
	MaxPaths  int       `json:"max_paths"`
	Direction Direction `json:"direction"`
}

// DefaultTraversalOptions 默认两跳、最多 100 条路径、只沿出边
func DefaultTraversalOptions() TraversalOptions {
	return TraversalOptions{MaxHops: 2, MaxPaths: 100, Direction: DirectionOutgoing}
}

// Validate 校验限制
func (o TraversalOptions) Validate() error {
	if o.MaxHops < 0 {
		return types.ConfigError("max_hops must be >= 0, got %d", o.MaxHops)
	}
	if o.MaxPaths <= 0 {
		return types.ConfigError("max_paths must be > 0, got %d", o.MaxPaths)
	}
	return nil
}

// PathStep 路径中的一跳
type PathStep struct {
	Relationship Relationship `json:"relationship"`
	EntityID     string       `json:"entity_id"`
	Reverse      bool         `json:"reverse,omitempty"`
}

// TraversalPath 从种子实体出发的无环路径
type TraversalPath struct {
	Seed  string     `json:"seed"`
	Steps []PathStep `json:"steps"`
}

// Hops 关系跳数
func (p TraversalPath) Hops() int { return len(p.Steps) }

// Entities 路径上的实体序列，种子在首位
func (p TraversalPath) Entities() []string {
	out := make([]string, 0, len(p.Steps)+1)
	out = append(out, p.Seed)
	for _, s := range p.Steps {
		out = append(out, s.EntityID)
	}
	return out
}

// Signature 去重键：实体序列
func (p TraversalPath) Signature() string {
	return strings.Join(p.Entities(), "\x1f")
}

// TraversalResult 遍历结果。Partial 表示达到路径上限后仍有未展开的分支。
type TraversalResult struct {
	Paths        []TraversalPath   `json:"paths"`
	Seeds        []string          `json:"seeds"`
	MissingSeeds []string          `json:"missing_seeds,omitempty"`
	Entities     map[string]Entity `json:"entities"`
	Partial      bool              `json:"partial"`
	Explored     int               `json:"explored"`
}

// Relationships 路径中出现过的关系，按首次出现顺序去重
func (r *TraversalResult) Relationships() []Relationship {
	seen := make(map[string]bool)
	var out []Relationship
	for _, p := range r.Paths {
		for _, s := range p.Steps {
			key := relationshipKey(s.Relationship)
			if !seen[key] {
				seen[key] = true
				out = append(out, s.Relationship)
			}
		}
	}
	return out
}

// GraphTraverser 广度优先、有界的多跳遍历，只读图
type GraphTraverser struct {
	store   GraphStore
	options TraversalOptions
	logger  *zap.Logger
}

// NewGraphTraverser 创建遍历器
func NewGraphTraverser(store GraphStore, options TraversalOptions, logger *zap.Logger) (*GraphTraverser, error) {
	if store == nil {
		return nil, types.ConfigError("graph store not configured")
	}
	if err := options.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GraphTraverser{
		store:   store,
		options: options,
		logger:  logger.With(zap.String("component", "graph_traverser")),
	}, nil
}

// Options 当前限制
func (t *GraphTraverser) Options() TraversalOptions { return t.options }

// arenaNode 路径树上的一个节点；parent 为 -1 表示种子
type arenaNode struct {
	entityID string
	rel      Relationship
	reverse  bool
	parent   int
	depth    int
}

// Traverse 使用默认限制遍历
func (t *GraphTraverser) Traverse(ctx context.Context, seeds []string) (*TraversalResult, error) {
	return t.TraverseWith(ctx, seeds, t.options)
}

// TraverseWith 从种子实体出发广度优先展开。
// 返回所有 1..MaxHops 跳的路径（包括更长路径的前缀），MaxHops=0 时只返回种子。
func (t *GraphTraverser) TraverseWith(ctx context.Context, seeds []string, opts TraversalOptions) (*TraversalResult, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	result := &TraversalResult{
		Paths:    []TraversalPath{},
		Seeds:    []string{},
		Entities: make(map[string]Entity),
	}

	var arena []arenaNode
	var queue []int
	seenSeed := make(map[string]bool, len(seeds))
	for _, id := range seeds {
		if id == "" || seenSeed[id] {
			continue
		}
		seenSeed[id] = true
		e, err := t.store.GetEntity(ctx, id)
		if err != nil {
			if types.IsCode(err, types.ErrNotFound) {
				result.MissingSeeds = append(result.MissingSeeds, id)
				continue
			}
			return nil, types.Unavailable("graph store", err)
		}
		result.Seeds = append(result.Seeds, id)
		result.Entities[id] = *e
		arena = append(arena, arenaNode{entityID: id, parent: -1})
		queue = append(queue, len(arena)-1)
	}

	seenSig := make(map[string]bool)
	for head := 0; head < len(queue); head++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		idx := queue[head]
		node := arena[idx]
		if node.depth >= opts.MaxHops {
			continue
		}

		neighbors, err := t.store.Relationships(ctx, node.entityID, opts.Direction)
		if err != nil {
			return nil, types.Unavailable("graph store", err)
		}
		result.Explored++

		for _, nb := range neighbors {
			if onPath(arena, idx, nb.EntityID) {
				continue
			}
			if len(result.Paths) >= opts.MaxPaths {
				result.Partial = true
				break
			}
			arena = append(arena, arenaNode{
				entityID: nb.EntityID,
				rel:      nb.Relationship,
				reverse:  nb.Reverse,
				parent:   idx,
				depth:    node.depth + 1,
			})
			child := len(arena) - 1
			path := buildPath(arena, child)
			sig := path.Signature()
			if seenSig[sig] {
				// 同一实体序列只保留第一条；其后续展开与首条路径的展开签名相同，不再入队
				arena = arena[:child]
				continue
			}
			seenSig[sig] = true
			result.Paths = append(result.Paths, path)
			queue = append(queue, child)
		}
		if result.Partial {
			break
		}
	}

	if err := t.resolveEntities(ctx, result); err != nil {
		return nil, err
	}

	t.logger.Debug("graph traversal completed",
		zap.Int("seeds", len(result.Seeds)),
		zap.Int("paths", len(result.Paths)),
		zap.Bool("partial", result.Partial),
		zap.Duration("duration", time.Since(start)))
	if result.Partial {
		t.logger.Info("traversal path cap reached", zap.Int("max_paths", opts.MaxPaths))
	}
	return result, nil
}

// onPath 沿父指针检查实体是否已在当前路径上
func onPath(arena []arenaNode, idx int, entityID string) bool {
	for i := idx; i >= 0; i = arena[i].parent {
		if arena[i].entityID == entityID {
			return true
		}
	}
	return false
}

// buildPath 从叶子回溯出完整路径
func buildPath(arena []arenaNode, leaf int) TraversalPath {
	depth := arena[leaf].depth
	steps := make([]PathStep, depth)
	i := leaf
	for d := depth - 1; d >= 0; d-- {
		n := arena[i]
		steps[d] = PathStep{Relationship: n.rel, EntityID: n.entityID, Reverse: n.reverse}
		i = n.parent
	}
	return TraversalPath{Seed: arena[i].entityID, Steps: steps}
}

// resolveEntities 读取路径上出现的实体；已删除的实体只保留 ID
func (t *GraphTraverser) resolveEntities(ctx context.Context, result *TraversalResult) error {
	for _, p := range result.Paths {
		for _, s := range p.Steps {
			if _, ok := result.Entities[s.EntityID]; ok {
				continue
			}
			e, err := t.store.GetEntity(ctx, s.EntityID)
			switch {
			case err == nil:
				result.Entities[s.EntityID] = *e
			case types.IsCode(err, types.ErrNotFound):
				result.Entities[s.EntityID] = Entity{ID: s.EntityID}
			default:
				return types.Unavailable("graph store", err)
			}
		}
	}
	return nil
}
