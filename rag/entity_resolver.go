package rag

import (
	"context"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/BaSui01/ragcore/types"
)

// EntityResolver 把查询映射为种子实体
type EntityResolver struct {
	store    GraphStore
	maxSeeds int
	logger   *zap.Logger
}

// NewEntityResolver 创建解析器，maxSeeds<=0 时取 3
func NewEntityResolver(store GraphStore, maxSeeds int, logger *zap.Logger) *EntityResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxSeeds <= 0 {
		maxSeeds = 3
	}
	return &EntityResolver{
		store:    store,
		maxSeeds: maxSeeds,
		logger:   logger.With(zap.String("component", "entity_resolver")),
	}
}

// Resolve 显式 ID 优先；否则用查询中长度大于 3 的词按名称匹配实体。结果去重并截断。
func (r *EntityResolver) Resolve(ctx context.Context, query string, explicit []string) ([]string, error) {
	if r == nil || r.store == nil {
		return nil, types.ConfigError("graph store not configured")
	}
	seeds := make([]string, 0, r.maxSeeds)
	seen := make(map[string]bool)
	add := func(id string) bool {
		if id != "" && !seen[id] {
			seen[id] = true
			seeds = append(seeds, id)
		}
		return len(seeds) >= r.maxSeeds
	}

	for _, id := range explicit {
		if add(id) {
			return seeds, nil
		}
	}
	if len(seeds) > 0 {
		return seeds, nil
	}

	for _, word := range uniqueTokens(Tokenize(query)) {
		if utf8.RuneCountInString(word) <= 3 {
			continue
		}
		matches, err := r.store.FindEntities(ctx, word, r.maxSeeds)
		if err != nil {
			return nil, types.Unavailable("graph store", err)
		}
		for _, e := range matches {
			if add(e.ID) {
				return seeds, nil
			}
		}
	}
	r.logger.Debug("seed entities resolved", zap.Strings("seeds", seeds))
	return seeds, nil
}
