package rag

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/ragcore/types"
)

// DenseRetriever 稠密信号：向量化查询（或直接使用 HyDE 向量）后检索向量索引
type DenseRetriever struct {
	index    DenseIndex
	embedder Embedder
	timeout  time.Duration
	logger   *zap.Logger
}

// NewDenseRetriever 创建稠密召回器
func NewDenseRetriever(index DenseIndex, embedder Embedder, timeout time.Duration, logger *zap.Logger) *DenseRetriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DenseRetriever{
		index:    index,
		embedder: embedder,
		timeout:  timeout,
		logger:   logger.With(zap.String("component", "dense_retriever")),
	}
}

// Retrieve 返回至多 limit 个候选；vector 非空时跳过查询向量化
func (r *DenseRetriever) Retrieve(ctx context.Context, query string, vector []float64, limit int) ([]Candidate, error) {
	if r == nil || r.index == nil {
		return nil, types.ConfigError("dense index not configured")
	}
	ctx, cancel := withStageTimeout(ctx, r.timeout)
	defer cancel()

	if len(vector) == 0 {
		if r.embedder == nil {
			return nil, types.ConfigError("embedder not configured")
		}
		v, err := r.embedder.Embed(ctx, query)
		if err != nil {
			return nil, types.Unavailable("embedder", err)
		}
		vector = v
	}

	hits, err := r.index.Search(ctx, vector, limit)
	if err != nil {
		return nil, types.Unavailable("dense index", err)
	}
	return toCandidates(hits, SourceDense), nil
}

// SparseRetriever 稀疏信号：BM25 风格的词项检索
type SparseRetriever struct {
	index   SparseIndex
	timeout time.Duration
	logger  *zap.Logger
}

// NewSparseRetriever 创建稀疏召回器
func NewSparseRetriever(index SparseIndex, timeout time.Duration, logger *zap.Logger) *SparseRetriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SparseRetriever{
		index:   index,
		timeout: timeout,
		logger:  logger.With(zap.String("component", "sparse_retriever")),
	}
}

// Retrieve 返回至多 limit 个候选
func (r *SparseRetriever) Retrieve(ctx context.Context, query string, limit int) ([]Candidate, error) {
	if r == nil || r.index == nil {
		return nil, types.ConfigError("sparse index not configured")
	}
	ctx, cancel := withStageTimeout(ctx, r.timeout)
	defer cancel()

	hits, err := r.index.Search(ctx, Tokenize(query), limit)
	if err != nil {
		return nil, types.Unavailable("sparse index", err)
	}
	return toCandidates(hits, SourceSparse), nil
}

// CandidateSet 两路召回结果与各自的状态
type CandidateSet struct {
	Dense         []Candidate
	Sparse        []Candidate
	DenseOutcome  StageOutcome
	SparseOutcome StageOutcome
}

// CandidateRetriever 并发执行两路召回；单路失败降级为空列表
type CandidateRetriever struct {
	dense      *DenseRetriever
	sparse     *SparseRetriever
	multiplier int
	logger     *zap.Logger
}

// NewCandidateRetriever 创建组合召回器，dense 或 sparse 可为 nil
func NewCandidateRetriever(dense *DenseRetriever, sparse *SparseRetriever, multiplier int, logger *zap.Logger) (*CandidateRetriever, error) {
	if multiplier < 1 {
		return nil, types.ConfigError("candidates_multiplier must be >= 1, got %d", multiplier)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CandidateRetriever{
		dense:      dense,
		sparse:     sparse,
		multiplier: multiplier,
		logger:     logger.With(zap.String("component", "candidate_retriever")),
	}, nil
}

// Retrieve 两路各取 topK*multiplier；两路都失败时返回 CapabilityUnavailable
func (r *CandidateRetriever) Retrieve(ctx context.Context, query string, vector []float64, topK int) (*CandidateSet, error) {
	if topK <= 0 {
		return nil, types.ConfigError("top_k must be positive, got %d", topK)
	}
	limit := topK * r.multiplier
	set := &CandidateSet{}

	var denseErr, sparseErr error
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		start := time.Now()
		set.Dense, denseErr = r.dense.Retrieve(gctx, query, vector, limit)
		set.DenseOutcome = r.outcome(StageDense, denseErr, time.Since(start))
		return nil
	})
	g.Go(func() error {
		start := time.Now()
		set.Sparse, sparseErr = r.sparse.Retrieve(gctx, query, limit)
		set.SparseOutcome = r.outcome(StageSparse, sparseErr, time.Since(start))
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if denseErr != nil && sparseErr != nil {
		return nil, types.Unavailable("retrieval", fmt.Errorf("dense: %v; sparse: %w", denseErr, sparseErr))
	}
	if set.Dense == nil {
		set.Dense = []Candidate{}
	}
	if set.Sparse == nil {
		set.Sparse = []Candidate{}
	}
	return set, nil
}

func (r *CandidateRetriever) outcome(stage StageName, err error, d time.Duration) StageOutcome {
	if err == nil {
		return Used(stage, d)
	}
	o := Skipped(stage, skipReason(err), err)
	o.Duration = d
	if o.Reason != ReasonNotConfigured {
		r.logger.Warn("retrieval signal degraded",
			zap.String("signal", string(stage)),
			zap.String("reason", o.Reason),
			zap.Error(err))
	}
	return o
}

// withStageTimeout timeout<=0 时不设超时
func withStageTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
