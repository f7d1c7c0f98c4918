package rag

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"
)

// CrossEncoder 计算查询-文档对的相关性分数
type CrossEncoder interface {
	Score(ctx context.Context, pairs []QueryDocPair) ([]float64, error)
}

// QueryDocPair 查询-文档对
type QueryDocPair struct {
	Query    string
	Document string
}

// RerankConfig 重排序配置
type RerankConfig struct {
	Enabled   bool          `json:"enabled"`
	BatchSize int           `json:"batch_size"`
	MaxLength int           `json:"max_length"` // 文档截断长度（字符），0 不截断
	Timeout   time.Duration `json:"timeout"`
}

// DefaultRerankConfig 默认配置
func DefaultRerankConfig() RerankConfig {
	return RerankConfig{
		Enabled:   true,
		BatchSize: 32,
		MaxLength: 2048,
		Timeout:   10 * time.Second,
	}
}

// RerankStage 精排阶段：交叉编码器分数替换融合分数；关闭或失败时透传融合顺序
type RerankStage struct {
	encoder CrossEncoder
	config  RerankConfig
	logger  *zap.Logger
}

// NewRerankStage 创建精排阶段，encoder 为 nil 时始终透传
func NewRerankStage(encoder CrossEncoder, config RerankConfig, logger *zap.Logger) *RerankStage {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 32
	}
	return &RerankStage{
		encoder: encoder,
		config:  config,
		logger:  logger.With(zap.String("component", "reranker")),
	}
}

// Rerank 对融合结果精排并截断到 topK。texts 中找不到的块以空文本打分，不会被丢弃。
func (s *RerankStage) Rerank(ctx context.Context, query string, fused []FusedResult, texts map[string]string, topK int) ([]RerankedResult, StageOutcome) {
	if s == nil || !s.config.Enabled {
		return PassThrough(fused, topK), Skipped(StageRerank, ReasonDisabled, nil)
	}
	if s.encoder == nil {
		return PassThrough(fused, topK), Skipped(StageRerank, ReasonNotConfigured, nil)
	}
	if len(fused) == 0 {
		return []RerankedResult{}, Skipped(StageRerank, ReasonNoCandidates, nil)
	}

	start := time.Now()
	ctx, cancel := withStageTimeout(ctx, s.config.Timeout)
	defer cancel()

	pairs := make([]QueryDocPair, len(fused))
	for i, f := range fused {
		doc := texts[f.ChunkID]
		if s.config.MaxLength > 0 {
			if r := []rune(doc); len(r) > s.config.MaxLength {
				doc = string(r[:s.config.MaxLength])
			}
		}
		pairs[i] = QueryDocPair{Query: query, Document: doc}
	}

	scores, err := s.batchScore(ctx, pairs)
	if err != nil {
		s.logger.Warn("reranking failed, keeping fused order", zap.Error(err))
		o := Skipped(StageRerank, skipReason(err), err)
		o.Duration = time.Since(start)
		return PassThrough(fused, topK), o
	}

	results := make([]RerankedResult, len(fused))
	for i, f := range fused {
		results[i] = RerankedResult{ChunkID: f.ChunkID, Score: scores[i], FusedScore: f.FusedScore}
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ChunkID < results[j].ChunkID
	})
	results = truncateRanked(results, topK)

	s.logger.Debug("reranking completed",
		zap.Int("candidates", len(fused)),
		zap.Int("returned", len(results)))
	return results, Used(StageRerank, time.Since(start))
}

// batchScore 分批计算分数
func (s *RerankStage) batchScore(ctx context.Context, pairs []QueryDocPair) ([]float64, error) {
	scores := make([]float64, len(pairs))
	for i := 0; i < len(pairs); i += s.config.BatchSize {
		end := min(i+s.config.BatchSize, len(pairs))
		batch, err := s.encoder.Score(ctx, pairs[i:end])
		if err != nil {
			return nil, err
		}
		if len(batch) != end-i {
			return nil, fmt.Errorf("cross-encoder returned %d scores for %d pairs", len(batch), end-i)
		}
		copy(scores[i:end], batch)
	}
	return scores, nil
}

// PassThrough 保持融合顺序，分数取融合分数
func PassThrough(fused []FusedResult, topK int) []RerankedResult {
	results := make([]RerankedResult, len(fused))
	for i, f := range fused {
		results[i] = RerankedResult{ChunkID: f.ChunkID, Score: f.FusedScore, FusedScore: f.FusedScore}
	}
	return truncateRanked(results, topK)
}

func truncateRanked(results []RerankedResult, topK int) []RerankedResult {
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	for i := range results {
		results[i].Rank = i + 1
	}
	return results
}

// ====== 词法交叉编码器 ======

// LexicalCrossEncoder 进程内打分：精确匹配、词频与邻近度，经 sigmoid 压缩到 (0,1)
type LexicalCrossEncoder struct{}

// Score 实现 CrossEncoder
func (LexicalCrossEncoder) Score(ctx context.Context, pairs []QueryDocPair) ([]float64, error) {
	scores := make([]float64, len(pairs))
	for i, p := range pairs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		q := uniqueTokens(Tokenize(p.Query))
		d := Tokenize(p.Document)
		raw := 0.4*exactMatchScore(q, d) + 0.4*termFrequencyScore(q, d) + 0.2*proximityScore(q, d)
		// 映射到 logit 区间后做 sigmoid
		scores[i] = sigmoid(8*raw - 4)
	}
	return scores, nil
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

func uniqueTokens(tokens []string) []string {
	seen := make(map[string]bool, len(tokens))
	out := tokens[:0:0]
	for _, t := range tokens {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// exactMatchScore 查询词命中比例
func exactMatchScore(queryTerms, docTerms []string) float64 {
	if len(queryTerms) == 0 {
		return 0.0
	}
	present := make(map[string]bool, len(docTerms))
	for _, t := range docTerms {
		present[t] = true
	}
	matched := 0
	for _, q := range queryTerms {
		if present[q] {
			matched++
		}
	}
	return float64(matched) / float64(len(queryTerms))
}

// termFrequencyScore 词频分数
func termFrequencyScore(queryTerms, docTerms []string) float64 {
	if len(queryTerms) == 0 {
		return 0.0
	}
	termFreq := make(map[string]int)
	for _, dt := range docTerms {
		termFreq[dt]++
	}
	totalFreq := 0
	for _, qt := range queryTerms {
		totalFreq += termFreq[qt]
	}
	return math.Min(float64(totalFreq)/float64(len(queryTerms)*3), 1.0)
}

// proximityScore 不同查询词在文档中的最小距离，越近分数越高
func proximityScore(queryTerms, docTerms []string) float64 {
	if len(queryTerms) <= 1 {
		return 1.0
	}
	isQuery := make(map[string]bool, len(queryTerms))
	for _, q := range queryTerms {
		isQuery[q] = true
	}

	lastPos := make(map[string]int)
	minSpan := -1
	for i, t := range docTerms {
		if !isQuery[t] {
			continue
		}
		for other, p := range lastPos {
			if other == t {
				continue
			}
			if span := i - p; minSpan < 0 || span < minSpan {
				minSpan = span
			}
		}
		lastPos[t] = i
	}
	if minSpan < 0 {
		return 0.0
	}
	return 1.0 / (1.0 + float64(minSpan)/10.0)
}
