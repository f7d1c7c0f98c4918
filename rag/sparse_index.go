package rag

import (
	"context"
	"math"
	"strings"
	"sync"
	"unicode"

	"go.uber.org/zap"
)

// BM25Config BM25 参数
type BM25Config struct {
	K1 float64 `json:"k1"` // 词频饱和度 (1.2-2.0)
	B  float64 `json:"b"`  // 长度归一化
}

// DefaultBM25Config 默认 BM25 参数
func DefaultBM25Config() BM25Config {
	return BM25Config{K1: 1.5, B: 0.75}
}

// BM25Index 内存倒排索引
type BM25Index struct {
	config   BM25Config
	postings map[string]map[string]int // term -> chunkID -> tf
	docTerms map[string]map[string]int // chunkID -> term -> tf
	docLen   map[string]int
	totalLen int
	mu       sync.RWMutex
	logger   *zap.Logger
}

// NewBM25Index 创建 BM25 索引
func NewBM25Index(config BM25Config, logger *zap.Logger) *BM25Index {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.K1 <= 0 {
		config.K1 = 1.5
	}
	if config.B < 0 || config.B > 1 {
		config.B = 0.75
	}
	return &BM25Index{
		config:   config,
		postings: make(map[string]map[string]int),
		docTerms: make(map[string]map[string]int),
		docLen:   make(map[string]int),
		logger:   logger.With(zap.String("component", "bm25_index")),
	}
}

// Index 写入块的词项；已存在的块先移除再写入
func (x *BM25Index) Index(ctx context.Context, chunkID string, tokens []string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.removeLocked(chunkID)

	tf := make(map[string]int)
	for _, t := range tokens {
		tf[t]++
	}
	x.docTerms[chunkID] = tf
	x.docLen[chunkID] = len(tokens)
	x.totalLen += len(tokens)
	for term, n := range tf {
		p, ok := x.postings[term]
		if !ok {
			p = make(map[string]int)
			x.postings[term] = p
		}
		p[chunkID] = n
	}
	return nil
}

// Search BM25 打分，只返回正分结果
func (x *BM25Index) Search(ctx context.Context, tokens []string, topK int) ([]ScoredID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	x.mu.RLock()
	defer x.mu.RUnlock()

	n := float64(len(x.docTerms))
	if n == 0 || len(tokens) == 0 {
		return []ScoredID{}, nil
	}
	avgDocLen := float64(x.totalLen) / n
	if avgDocLen == 0 {
		avgDocLen = 1
	}

	seen := make(map[string]bool, len(tokens))
	scores := make(map[string]float64)
	for _, term := range tokens {
		if seen[term] {
			continue
		}
		seen[term] = true
		p := x.postings[term]
		if len(p) == 0 {
			continue
		}
		df := float64(len(p))
		idf := math.Log((n-df+0.5)/(df+0.5) + 1.0)
		for id, tf := range p {
			docLen := float64(x.docLen[id])
			numerator := float64(tf) * (x.config.K1 + 1)
			denominator := float64(tf) + x.config.K1*(1.0-x.config.B+x.config.B*(docLen/avgDocLen))
			scores[id] += idf * (numerator / denominator)
		}
	}

	results := make([]ScoredID, 0, len(scores))
	for id, s := range scores {
		if s > 0 {
			results = append(results, ScoredID{ID: id, Score: s})
		}
	}
	sortScoredIDs(results)
	if topK > 0 && topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

// Delete 移除块
func (x *BM25Index) Delete(ctx context.Context, ids []string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, id := range ids {
		x.removeLocked(id)
	}
	return nil
}

// Len 已索引的块数
func (x *BM25Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.docTerms)
}

func (x *BM25Index) removeLocked(chunkID string) {
	tf, ok := x.docTerms[chunkID]
	if !ok {
		return
	}
	for term := range tf {
		if p := x.postings[term]; p != nil {
			delete(p, chunkID)
			if len(p) == 0 {
				delete(x.postings, term)
			}
		}
	}
	x.totalLen -= x.docLen[chunkID]
	delete(x.docTerms, chunkID)
	delete(x.docLen, chunkID)
}

// Tokenize 词项切分：小写化，字母数字连续段为一个词，汉字逐字切分
func Tokenize(text string) []string {
	var tokens []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.Is(unicode.Han, r):
			flush()
			tokens = append(tokens, string(r))
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			cur.WriteRune(r)
		default:
			flush()
		}
	}
	flush()
	return tokens
}
