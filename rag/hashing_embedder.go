package rag

import (
	"context"
	"hash/fnv"
	"math"

	"go.uber.org/zap"
)

// HashingEmbedder 基于特征哈希的本地向量化器。
// 不依赖外部嵌入服务，同一文本在任何进程中得到相同向量，
// 适用于本地开发、测试和离线索引。
type HashingEmbedder struct {
	dimension int
	logger    *zap.Logger
}

// NewHashingEmbedder 创建哈希向量化器，维度默认 384。
func NewHashingEmbedder(dimension int, logger *zap.Logger) *HashingEmbedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dimension <= 0 {
		dimension = 384
	}
	return &HashingEmbedder{
		dimension: dimension,
		logger:    logger.With(zap.String("component", "hashing_embedder")),
	}
}

// Dimension 向量维度
func (e *HashingEmbedder) Dimension() int { return e.dimension }

// Embed 词项哈希到固定维度，符号位由第二个哈希决定，最后做 L2 归一化。
func (e *HashingEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec := make([]float64, e.dimension)
	tokens := Tokenize(text)
	for _, tok := range tokens {
		idx, sign := e.bucket(tok)
		vec[idx] += sign
	}
	// 相邻词对提供少量词序信息
	for i := 1; i < len(tokens); i++ {
		idx, sign := e.bucket(tokens[i-1] + " " + tokens[i])
		vec[idx] += 0.5 * sign
	}
	normalize(vec)
	return vec, nil
}

// EmbedBatch 批量向量化
func (e *HashingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *HashingEmbedder) bucket(feature string) (int, float64) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	sign := 1.0
	if sum>>63 == 1 {
		sign = -1.0
	}
	return int(sum % uint64(e.dimension)), sign
}

// normalize L2 归一化，零向量保持不变
func normalize(vec []float64) {
	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] /= norm
	}
}
