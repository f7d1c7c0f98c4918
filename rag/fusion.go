package rag

import (
	"math"
	"sort"

	"github.com/BaSui01/ragcore/types"
)

// FusionConfig 融合配置
type FusionConfig struct {
	DenseWeight          float64 `json:"dense_weight"`
	SparseWeight         float64 `json:"sparse_weight"`
	TopK                 int     `json:"top_k"`
	CandidatesMultiplier int     `json:"candidates_multiplier"`
}

// DefaultFusionConfig 默认融合配置
func DefaultFusionConfig() FusionConfig {
	return FusionConfig{
		DenseWeight:          0.7,
		SparseWeight:         0.3,
		TopK:                 5,
		CandidatesMultiplier: 3,
	}
}

// Validate 权重非负，放大倍数至少为 1；权重之和不要求为 1
func (c FusionConfig) Validate() error {
	if c.DenseWeight < 0 || c.SparseWeight < 0 {
		return types.ConfigError("fusion weights must be non-negative, got dense=%v sparse=%v", c.DenseWeight, c.SparseWeight)
	}
	if c.CandidatesMultiplier < 1 {
		return types.ConfigError("candidates_multiplier must be >= 1, got %d", c.CandidatesMultiplier)
	}
	return nil
}

// Limit 融合后保留的候选数，TopK<=0 表示不截断
func (c FusionConfig) Limit() int {
	if c.TopK <= 0 {
		return 0
	}
	return c.TopK * max(c.CandidatesMultiplier, 1)
}

// NormalizeMinMax Min-Max 归一化到 [0,1]。
// 只有一个元素或所有分数相同时归一化为 1.0；同一 ID 重复出现时取最高分。
func NormalizeMinMax(cands []Candidate) map[string]float64 {
	best := make(map[string]float64, len(cands))
	for _, c := range cands {
		if s, ok := best[c.ChunkID]; !ok || c.Score > s {
			best[c.ChunkID] = c.Score
		}
	}
	if len(best) == 0 {
		return best
	}

	minScore := math.MaxFloat64
	maxScore := -math.MaxFloat64
	for _, s := range best {
		minScore = math.Min(minScore, s)
		maxScore = math.Max(maxScore, s)
	}

	normalized := make(map[string]float64, len(best))
	scoreRange := maxScore - minScore
	for id, s := range best {
		if scoreRange == 0 {
			normalized[id] = 1.0
		} else {
			normalized[id] = (s - minScore) / scoreRange
		}
	}
	return normalized
}

// Fuse 归一化后线性加权融合两路候选。
// fused = wd*nd + ws*ns，缺失的信号记 0；按分数降序、ID 升序排列并截断到 TopK*multiplier。
func Fuse(dense, sparse []Candidate, cfg FusionConfig) ([]FusedResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	nd := NormalizeMinMax(dense)
	ns := NormalizeMinMax(sparse)

	merged := make(map[string]*FusedResult, len(nd)+len(ns))
	get := func(id string) *FusedResult {
		r, ok := merged[id]
		if !ok {
			r = &FusedResult{ChunkID: id}
			merged[id] = r
		}
		return r
	}
	for id, s := range nd {
		r := get(id)
		r.DenseScore = s
		r.Sources = append(r.Sources, SourceDense)
	}
	for id, s := range ns {
		r := get(id)
		r.SparseScore = s
		r.Sources = append(r.Sources, SourceSparse)
	}

	results := make([]FusedResult, 0, len(merged))
	for _, r := range merged {
		r.FusedScore = cfg.DenseWeight*r.DenseScore + cfg.SparseWeight*r.SparseScore
		results = append(results, *r)
	}
	sortFused(results)

	if limit := cfg.Limit(); limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func sortFused(results []FusedResult) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].FusedScore != results[j].FusedScore {
			return results[i].FusedScore > results[j].FusedScore
		}
		return results[i].ChunkID < results[j].ChunkID
	})
}

// toCandidates 把索引命中转换为带名次的候选
func toCandidates(hits []ScoredID, source SignalSource) []Candidate {
	out := make([]Candidate, len(hits))
	for i, h := range hits {
		out[i] = Candidate{ChunkID: h.ID, Score: h.Score, Source: source, Rank: i + 1}
	}
	return out
}
