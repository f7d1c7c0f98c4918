package rag

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/ragcore/internal/ctxkeys"
	"github.com/BaSui01/ragcore/internal/metrics"
	"github.com/BaSui01/ragcore/internal/pool"
	"github.com/BaSui01/ragcore/types"
)

// =============================================================================
// 代（Generation）：一次索引产出的完整块集合，发布后只读
// =============================================================================

// Generation 已发布的一代块
type Generation struct {
	ID          string
	PublishedAt time.Time

	documents map[string][]string // 文档 ID → 块 ID
	chunks    map[string]struct{}
}

func newGeneration(id string) *Generation {
	return &Generation{
		ID:        id,
		documents: make(map[string][]string),
		chunks:    make(map[string]struct{}),
	}
}

func (g *Generation) add(docID string, chunkIDs []string) {
	g.documents[docID] = chunkIDs
	for _, id := range chunkIDs {
		g.chunks[id] = struct{}{}
	}
}

// Contains 块是否属于这一代
func (g *Generation) Contains(chunkID string) bool {
	if g == nil {
		return false
	}
	_, ok := g.chunks[chunkID]
	return ok
}

// ChunkCount 块数量
func (g *Generation) ChunkCount() int {
	if g == nil {
		return 0
	}
	return len(g.chunks)
}

// Documents 已排序的文档 ID
func (g *Generation) Documents() []string {
	if g == nil {
		return nil
	}
	out := make([]string, 0, len(g.documents))
	for id := range g.documents {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// DocumentChunks 文档在这一代中的块 ID
func (g *Generation) DocumentChunks(docID string) []string {
	if g == nil {
		return nil
	}
	return append([]string(nil), g.documents[docID]...)
}

// GenerationRegistry 以原子指针持有当前代，读者不会看到构建中的代
type GenerationRegistry struct {
	current atomic.Pointer[Generation]
}

// NewGenerationRegistry 创建空注册表
func NewGenerationRegistry() *GenerationRegistry {
	return &GenerationRegistry{}
}

// Active 当前代，尚未发布时为 nil
func (r *GenerationRegistry) Active() *Generation {
	return r.current.Load()
}

// Publish 原子替换当前代并返回上一代
func (r *GenerationRegistry) Publish(g *Generation) *Generation {
	g.PublishedAt = time.Now()
	return r.current.Swap(g)
}

// =============================================================================
// 索引器
// =============================================================================

// IndexerConfig 索引配置
type IndexerConfig struct {
	// BatchSize 每批向量化的块数
	BatchSize int `json:"batch_size"`
	// Workers 向量化并发数
	Workers int `json:"workers"`
	// AutoStrategy 按文档类型选择分块策略，否则使用分块器配置的策略
	AutoStrategy bool `json:"auto_strategy"`
}

// DefaultIndexerConfig 默认配置
func DefaultIndexerConfig() IndexerConfig {
	return IndexerConfig{BatchSize: 32, Workers: 4, AutoStrategy: true}
}

// IndexerDeps 索引器依赖；Dense 与 Sparse 至少需要一个
type IndexerDeps struct {
	Chunker  *DocumentChunker
	Embedder Embedder
	Dense    DenseIndex
	Sparse   SparseIndex
	Chunks   MutableChunkStore
	Registry *GenerationRegistry
	Pool     *pool.GoroutinePool
	Metrics  *metrics.Collector
}

// IndexReport 一次索引的结果
type IndexReport struct {
	Generation string         `json:"generation"`
	Previous   string         `json:"previous,omitempty"`
	Documents  int            `json:"documents"`
	Chunks     int            `json:"chunks"`
	ByStrategy map[string]int `json:"by_strategy"`
	Removed    int            `json:"removed"`
	Duration   time.Duration  `json:"duration"`
}

// Indexer 分块、向量化并写入索引，最后原子发布新一代
type Indexer struct {
	deps     IndexerDeps
	config   IndexerConfig
	ownsPool bool
	runMu    sync.Mutex
	logger   *zap.Logger
}

// NewIndexer 创建索引器
func NewIndexer(deps IndexerDeps, config IndexerConfig, logger *zap.Logger) (*Indexer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Chunker == nil {
		return nil, types.ConfigError("indexer requires a chunker")
	}
	if deps.Dense == nil && deps.Sparse == nil {
		return nil, types.ConfigError("indexer requires a dense or sparse index")
	}
	if deps.Dense != nil && deps.Embedder == nil {
		return nil, types.ConfigError("dense index requires an embedder")
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultIndexerConfig().BatchSize
	}
	if config.Workers <= 0 {
		config.Workers = DefaultIndexerConfig().Workers
	}
	if deps.Chunks == nil {
		deps.Chunks = NewInMemoryChunkStore()
	}
	if deps.Registry == nil {
		deps.Registry = NewGenerationRegistry()
	}

	ix := &Indexer{
		deps:   deps,
		config: config,
		logger: logger.With(zap.String("component", "indexer")),
	}
	if deps.Pool == nil {
		ix.deps.Pool = pool.NewGoroutinePool(pool.GoroutinePoolConfig{
			MaxWorkers: config.Workers,
			QueueSize:  config.Workers * 2,
			PanicHandler: func(r any) {
				ix.logger.Error("embedding worker panicked", zap.Any("panic", r))
			},
		})
		ix.ownsPool = true
	}
	return ix, nil
}

// Registry 当前代注册表
func (ix *Indexer) Registry() *GenerationRegistry { return ix.deps.Registry }

// Chunks 块存储
func (ix *Indexer) Chunks() MutableChunkStore { return ix.deps.Chunks }

// Close 释放自建的 worker 池
func (ix *Indexer) Close() {
	if ix.ownsPool {
		ix.deps.Pool.Close()
	}
}

// Index 增量索引：给定文档替换其旧块，其余文档沿用上一代
func (ix *Indexer) Index(ctx context.Context, docs []Document) (*IndexReport, error) {
	return ix.run(ctx, docs, false)
}

// Rebuild 全量索引：新一代只包含给定文档
func (ix *Indexer) Rebuild(ctx context.Context, docs []Document) (*IndexReport, error) {
	return ix.run(ctx, docs, true)
}

// Remove 发布不含指定文档的新一代
func (ix *Indexer) Remove(ctx context.Context, docIDs []string) (*IndexReport, error) {
	ix.runMu.Lock()
	defer ix.runMu.Unlock()

	start := time.Now()
	prev := ix.deps.Registry.Active()
	drop := make(map[string]bool, len(docIDs))
	for _, id := range docIDs {
		drop[id] = true
	}

	next := newGeneration(uuid.NewString())
	var stale []string
	if prev != nil {
		for docID, ids := range prev.documents {
			if drop[docID] {
				stale = append(stale, ids...)
				continue
			}
			next.add(docID, ids)
		}
	}
	ix.deps.Registry.Publish(next)
	ix.purge(ctx, stale)

	report := &IndexReport{
		Generation: next.ID,
		ByStrategy: map[string]int{},
		Removed:    len(stale),
		Duration:   time.Since(start),
	}
	if prev != nil {
		report.Previous = prev.ID
	}
	ix.deps.Metrics.RecordIndexRemoval(report.Removed, report.Duration)
	ix.logger.Info("documents removed",
		zap.String("generation", next.ID),
		zap.Int("removed_chunks", len(stale)))
	return report, nil
}

func (ix *Indexer) run(ctx context.Context, docs []Document, replace bool) (*IndexReport, error) {
	ix.runMu.Lock()
	defer ix.runMu.Unlock()

	start := time.Now()
	genID := uuid.NewString()
	ctx = ctxkeys.WithIndexRun(ctx, genID)
	prev := ix.deps.Registry.Active()

	next := newGeneration(genID)
	byStrategy := make(map[string]int)
	var chunks []Chunk
	for _, doc := range docs {
		if doc.ID == "" {
			return nil, types.NewError(types.ErrInvalidRequest, "document id is required")
		}
		if _, dup := next.documents[doc.ID]; dup {
			return nil, types.Errorf(types.ErrInvalidRequest, "document %s appears twice in one index run", doc.ID)
		}
		strategy := ix.strategyFor(doc)
		docChunks, err := ix.deps.Chunker.ChunkWith(ctx, doc, strategy)
		if err != nil {
			return nil, fmt.Errorf("index document %s: %w", doc.ID, err)
		}
		docChunks = assignGeneration(docChunks, genID)
		ids := make([]string, len(docChunks))
		for i, c := range docChunks {
			ids[i] = c.ID
		}
		next.add(doc.ID, ids)
		byStrategy[string(strategy)] += len(docChunks)
		chunks = append(chunks, docChunks...)
	}

	if err := ix.write(ctx, chunks); err != nil {
		ix.logger.Warn("index run failed, discarding new generation",
			zap.String("generation", genID), zap.Error(err))
		ix.purge(context.WithoutCancel(ctx), chunkIDs(chunks))
		return nil, err
	}

	var stale []string
	if prev != nil {
		for docID, ids := range prev.documents {
			if _, reindexed := next.documents[docID]; reindexed || replace {
				stale = append(stale, ids...)
				continue
			}
			next.add(docID, ids)
		}
	}
	ix.deps.Registry.Publish(next)
	ix.purge(ctx, stale)

	report := &IndexReport{
		Generation: genID,
		Documents:  len(docs),
		Chunks:     len(chunks),
		ByStrategy: byStrategy,
		Removed:    len(stale),
		Duration:   time.Since(start),
	}
	if prev != nil {
		report.Previous = prev.ID
	}
	ix.deps.Metrics.RecordIndexRun(byStrategy, report.Duration)
	ix.logger.Info("generation published",
		zap.String("generation", genID),
		zap.Int("documents", report.Documents),
		zap.Int("chunks", report.Chunks),
		zap.Int("removed", report.Removed),
		zap.Duration("duration", report.Duration))
	return report, nil
}

func (ix *Indexer) strategyFor(doc Document) ChunkingStrategy {
	if ix.config.AutoStrategy {
		return StrategyForDocumentType(doc.Type)
	}
	return ix.deps.Chunker.Config().Strategy
}

// write 向量化并写入三处存储；任一失败则整批失败
func (ix *Indexer) write(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := ix.deps.Chunks.PutChunks(ctx, chunks); err != nil {
		return fmt.Errorf("store chunks: %w", err)
	}

	if ix.deps.Sparse != nil {
		for _, c := range chunks {
			if err := ix.deps.Sparse.Index(ctx, c.ID, Tokenize(c.Content)); err != nil {
				return types.Unavailable("sparse index", err)
			}
		}
	}

	if ix.deps.Dense != nil {
		vectors, err := ix.embedAll(ctx, chunks)
		if err != nil {
			return err
		}
		records := make([]VectorRecord, len(chunks))
		for i, c := range chunks {
			records[i] = VectorRecord{ChunkID: c.ID, Vector: vectors[i], Metadata: vectorMetadata(c)}
		}
		if err := ix.upsertVectors(ctx, records); err != nil {
			return types.Unavailable("dense index", err)
		}
	}
	return nil
}

// embedAll 分批并发向量化，结果与 chunks 一一对应
func (ix *Indexer) embedAll(ctx context.Context, chunks []Chunk) ([][]float64, error) {
	vectors := make([][]float64, len(chunks))
	var tasks []pool.Task
	for start := 0; start < len(chunks); start += ix.config.BatchSize {
		start, end := start, min(start+ix.config.BatchSize, len(chunks))
		tasks = append(tasks, func(ctx context.Context) error {
			texts := make([]string, end-start)
			for i := range texts {
				texts[i] = chunks[start+i].Content
			}
			vecs, err := embedTexts(ctx, ix.deps.Embedder, texts)
			if err != nil {
				return types.Unavailable("embedder", err)
			}
			copy(vectors[start:end], vecs)
			return nil
		})
	}
	if err := ix.deps.Pool.RunAll(ctx, tasks); err != nil {
		return nil, err
	}
	return vectors, nil
}

func (ix *Indexer) upsertVectors(ctx context.Context, records []VectorRecord) error {
	if batch, ok := ix.deps.Dense.(BatchDenseIndex); ok {
		for start := 0; start < len(records); start += ix.config.BatchSize {
			end := min(start+ix.config.BatchSize, len(records))
			if err := batch.UpsertBatch(ctx, records[start:end]); err != nil {
				return err
			}
		}
		return nil
	}
	for _, r := range records {
		if err := ix.deps.Dense.Upsert(ctx, r.ChunkID, r.Vector, r.Metadata); err != nil {
			return err
		}
	}
	return nil
}

// purge 删除过期块；失败只记日志，过期块已不在当前代中，不会被检索到
func (ix *Indexer) purge(ctx context.Context, ids []string) {
	if len(ids) == 0 {
		return
	}
	if ix.deps.Dense != nil {
		if err := ix.deps.Dense.Delete(ctx, ids); err != nil {
			ix.logger.Warn("failed to purge dense vectors", zap.Int("count", len(ids)), zap.Error(err))
		}
	}
	if ix.deps.Sparse != nil {
		if err := ix.deps.Sparse.Delete(ctx, ids); err != nil {
			ix.logger.Warn("failed to purge sparse postings", zap.Int("count", len(ids)), zap.Error(err))
		}
	}
	if err := ix.deps.Chunks.DeleteChunks(ctx, ids); err != nil {
		ix.logger.Warn("failed to purge chunks", zap.Int("count", len(ids)), zap.Error(err))
	}
}

// assignGeneration 块 ID 追加代标识，父块引用同步改写
func assignGeneration(chunks []Chunk, genID string) []Chunk {
	for i := range chunks {
		chunks[i].ID = chunks[i].ID + "@" + genID
		if chunks[i].ParentID != "" {
			chunks[i].ParentID = chunks[i].ParentID + "@" + genID
		}
		chunks[i].Generation = genID
	}
	return chunks
}

func vectorMetadata(c Chunk) map[string]any {
	return map[string]any{
		"document_id": c.DocumentID,
		"position":    c.Position,
		"strategy":    string(c.Strategy),
		"generation":  c.Generation,
	}
}

func chunkIDs(chunks []Chunk) []string {
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}
	return ids
}

// embedTexts 优先使用批量接口
func embedTexts(ctx context.Context, e Embedder, texts []string) ([][]float64, error) {
	if be, ok := e.(BatchEmbedder); ok {
		vecs, err := be.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, err
		}
		if len(vecs) != len(texts) {
			return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), len(texts))
		}
		return vecs, nil
	}
	vecs := make([][]float64, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		vecs[i] = v
	}
	return vecs, nil
}
