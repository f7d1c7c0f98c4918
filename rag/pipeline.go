package rag

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/BaSui01/ragcore/internal/ctxkeys"
	"github.com/BaSui01/ragcore/internal/metrics"
	"github.com/BaSui01/ragcore/internal/telemetry"
	"github.com/BaSui01/ragcore/types"
)

// =============================================================================
// 编排器：混合检索、Graph RAG 与回答生成
// =============================================================================

// PipelineConfig 编排配置
type PipelineConfig struct {
	Fusion    FusionConfig     `json:"fusion"`
	UseHyDE   bool             `json:"use_hyde"`
	MinScore  float64          `json:"min_score"`
	Traversal TraversalOptions `json:"traversal"`
	// GraphContextPaths 拼进提示的最大路径数
	GraphContextPaths int `json:"graph_context_paths"`
	// MaxContextChars 文档上下文的最大字符数，0 不限制
	MaxContextChars   int           `json:"max_context_chars"`
	GraphTimeout      time.Duration `json:"graph_timeout"`
	GenerationTimeout time.Duration `json:"generation_timeout"`
}

// DefaultPipelineConfig 默认配置
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Fusion:            DefaultFusionConfig(),
		Traversal:         DefaultTraversalOptions(),
		GraphContextPaths: 5,
		GraphTimeout:      5 * time.Second,
		GenerationTimeout: 60 * time.Second,
	}
}

// PipelineDeps 编排依赖。Retriever 必需，其余缺失时对应阶段记为 not_configured。
type PipelineDeps struct {
	Retriever *CandidateRetriever
	Expander  *QueryExpander
	Reranker  *RerankStage
	Chunks    ChunkStore
	Registry  *GenerationRegistry
	Traverser *GraphTraverser
	Resolver  *EntityResolver
	Generator Generator
	Metrics   *metrics.Collector
	// Probes 额外的健康检查项，键为组件名
	Probes map[string]HealthChecker
}

// SearchRequest 混合检索请求
type SearchRequest struct {
	Query        string         `json:"query"`
	TopK         int            `json:"top_k,omitempty"`
	DocumentType DocumentType   `json:"document_type,omitempty"` // HyDE 模板提示
	UseHyDE      *bool          `json:"use_hyde,omitempty"`
	UseReranker  *bool          `json:"use_reranker,omitempty"`
	Filters      map[string]any `json:"filters,omitempty"`
	MinScore     *float64       `json:"min_score,omitempty"`
}

// SearchHit 一条检索结果
type SearchHit struct {
	ChunkID     string         `json:"chunk_id"`
	DocumentID  string         `json:"document_id"`
	Content     string         `json:"content"`
	Score       float64        `json:"score"`
	Rank        int            `json:"rank"`
	FusedScore  float64        `json:"fused_score"`
	DenseScore  float64        `json:"dense_score"`
	SparseScore float64        `json:"sparse_score"`
	Sources     []SignalSource `json:"sources"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// SearchResponse 混合检索响应
type SearchResponse struct {
	RequestID            string        `json:"request_id"`
	Query                string        `json:"query"`
	Results              []SearchHit   `json:"results"`
	HypotheticalDocument string        `json:"hypothetical_document,omitempty"`
	Report               SignalReport  `json:"report"`
	Duration             time.Duration `json:"duration"`
}

// GraphRequest Graph RAG 请求；Seeds 为空时从查询解析实体
type GraphRequest struct {
	Query     string     `json:"query"`
	Seeds     []string   `json:"seeds,omitempty"`
	MaxHops   *int       `json:"max_hops,omitempty"`
	MaxPaths  int        `json:"max_paths,omitempty"`
	Direction *Direction `json:"direction,omitempty"`
}

// GraphResponse Graph RAG 响应
type GraphResponse struct {
	RequestID     string          `json:"request_id"`
	Query         string          `json:"query"`
	Seeds         []string        `json:"seeds"`
	MissingSeeds  []string        `json:"missing_seeds,omitempty"`
	Paths         []TraversalPath `json:"paths"`
	Entities      []Entity        `json:"entities"`
	Relationships []Relationship  `json:"relationships"`
	Context       string          `json:"context"`
	Partial       bool            `json:"partial"`
	Report        SignalReport    `json:"report"`
}

// AnswerRequest 回答请求
type AnswerRequest struct {
	Search   SearchRequest `json:"search"`
	UseGraph bool          `json:"use_graph"`
	Seeds    []string      `json:"seeds,omitempty"`
}

// AnswerResponse 回答与证据
type AnswerResponse struct {
	RequestID string         `json:"request_id"`
	Answer    string         `json:"answer"`
	Sources   []SearchHit    `json:"sources"`
	Graph     *GraphResponse `json:"graph,omitempty"`
	Report    SignalReport   `json:"report"`
}

// HealthReport 健康状态，Components 中 "ok" 表示正常
type HealthReport struct {
	Healthy    bool              `json:"healthy"`
	Components map[string]string `json:"components"`
}

// Pipeline 检索编排器
type Pipeline struct {
	deps   PipelineDeps
	config PipelineConfig
	logger *zap.Logger
}

// NewPipeline 创建编排器
func NewPipeline(deps PipelineDeps, config PipelineConfig, logger *zap.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Retriever == nil {
		return nil, types.ConfigError("pipeline requires a candidate retriever")
	}
	if err := config.Fusion.Validate(); err != nil {
		return nil, err
	}
	if err := config.Traversal.Validate(); err != nil {
		return nil, err
	}
	if config.Fusion.TopK <= 0 {
		config.Fusion.TopK = DefaultFusionConfig().TopK
	}
	if config.GraphContextPaths <= 0 {
		config.GraphContextPaths = DefaultPipelineConfig().GraphContextPaths
	}
	return &Pipeline{
		deps:   deps,
		config: config,
		logger: logger.With(zap.String("component", "pipeline")),
	}, nil
}

// Config 返回编排配置
func (p *Pipeline) Config() PipelineConfig { return p.config }

// HybridSearch 扩展 → 双路召回 → 融合 → 过滤 → 精排
func (p *Pipeline) HybridSearch(ctx context.Context, req SearchRequest) (resp *SearchResponse, err error) {
	start := time.Now()
	ctx, requestID := withRequestID(ctx)
	ctx, span := telemetry.StartSpan(ctx, "rag.hybrid_search",
		attribute.String("request_id", requestID),
		attribute.Int("top_k", req.TopK))
	defer func() {
		telemetry.EndSpan(span, err)
		p.deps.Metrics.RecordSearch("hybrid", metrics.Status(err), time.Since(start))
	}()

	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, types.NewError(types.ErrInvalidRequest, "query is required")
	}
	topK := req.TopK
	if topK <= 0 {
		topK = p.config.Fusion.TopK
	}
	resp = &SearchResponse{RequestID: requestID, Query: query, Results: []SearchHit{}}
	log := p.logger.With(zap.String("request_id", requestID))

	// 1. HyDE
	var vector []float64
	useHyDE := p.config.UseHyDE
	if req.UseHyDE != nil {
		useHyDE = *req.UseHyDE
	}
	switch {
	case !useHyDE:
		p.record(&resp.Report, Skipped(StageHyDE, ReasonDisabled, nil))
	case p.deps.Expander == nil:
		p.record(&resp.Report, Skipped(StageHyDE, ReasonNotConfigured, nil))
	default:
		expanded, outcome, err := p.deps.Expander.Expand(ctx, query, req.DocumentType)
		p.record(&resp.Report, outcome)
		if err != nil {
			if types.IsCode(err, types.ErrConfiguration) {
				return nil, err
			}
			// 查询本身也无法向量化，稠密召回会自行降级
			log.Warn("query expansion unavailable", zap.Error(err))
		} else {
			vector = expanded.Vector
			resp.HypotheticalDocument = expanded.HypotheticalDocument
		}
	}

	// 2. 双路召回
	set, err := p.deps.Retriever.Retrieve(ctx, query, vector, topK)
	if err != nil {
		return nil, err
	}
	p.record(&resp.Report, set.DenseOutcome)
	p.record(&resp.Report, set.SparseOutcome)
	dense := p.activeOnly(set.Dense)
	sparse := p.activeOnly(set.Sparse)
	p.deps.Metrics.RecordCandidates(string(SourceDense), len(dense))
	p.deps.Metrics.RecordCandidates(string(SourceSparse), len(sparse))

	// 3. 融合
	fusion := p.config.Fusion
	fusion.TopK = topK
	fused, err := Fuse(dense, sparse, fusion)
	if err != nil {
		return nil, err
	}

	chunks, err := p.loadChunks(ctx, fused)
	if err != nil {
		log.Warn("chunk store unavailable, results will carry no text", zap.Error(err))
		chunks = map[string]Chunk{}
	}

	// 4. 元数据过滤
	if len(req.Filters) > 0 {
		fused = filterFused(fused, chunks, req.Filters)
	}

	// 5. 精排
	useReranker := p.deps.Reranker != nil
	if req.UseReranker != nil {
		useReranker = useReranker && *req.UseReranker
	}
	var ranked []RerankedResult
	if useReranker {
		texts := make(map[string]string, len(chunks))
		for id, c := range chunks {
			texts[id] = c.Content
		}
		var outcome StageOutcome
		ranked, outcome = p.deps.Reranker.Rerank(ctx, query, fused, texts, topK)
		p.record(&resp.Report, outcome)
	} else {
		ranked = PassThrough(fused, topK)
		reason := ReasonDisabled
		if p.deps.Reranker == nil && req.UseReranker == nil {
			reason = ReasonNotConfigured
		}
		p.record(&resp.Report, Skipped(StageRerank, reason, nil))
	}

	// 6. 阈值
	minScore := p.config.MinScore
	if req.MinScore != nil {
		minScore = *req.MinScore
	}
	fusedByID := make(map[string]FusedResult, len(fused))
	for _, f := range fused {
		fusedByID[f.ChunkID] = f
	}
	for _, r := range ranked {
		if minScore > 0 && r.Score < minScore {
			continue
		}
		resp.Results = append(resp.Results, newSearchHit(r, fusedByID[r.ChunkID], chunks[r.ChunkID]))
	}

	resp.Duration = time.Since(start)
	log.Debug("hybrid search completed",
		zap.Int("dense", len(dense)),
		zap.Int("sparse", len(sparse)),
		zap.Int("fused", len(fused)),
		zap.Int("returned", len(resp.Results)),
		zap.Duration("duration", resp.Duration))
	return resp, nil
}

// GraphRAG 实体解析 → 有界遍历 → 证据拼装。图存储不可用时返回 CapabilityUnavailable。
func (p *Pipeline) GraphRAG(ctx context.Context, req GraphRequest) (resp *GraphResponse, err error) {
	start := time.Now()
	ctx, requestID := withRequestID(ctx)
	ctx, span := telemetry.StartSpan(ctx, "rag.graph_rag", attribute.String("request_id", requestID))
	defer func() {
		telemetry.EndSpan(span, err)
		p.deps.Metrics.RecordSearch("graph", metrics.Status(err), time.Since(start))
	}()

	resp, outcome, err := p.graphEvidence(ctx, requestID, req)
	if err != nil {
		return nil, err
	}
	if outcome.Status == StatusSkipped && outcome.Err != nil {
		return nil, outcome.Err
	}
	return resp, nil
}

func (p *Pipeline) graphEvidence(ctx context.Context, requestID string, req GraphRequest) (*GraphResponse, StageOutcome, error) {
	resp := &GraphResponse{
		RequestID:     requestID,
		Query:         req.Query,
		Seeds:         []string{},
		Paths:         []TraversalPath{},
		Entities:      []Entity{},
		Relationships: []Relationship{},
		Context:       noGraphContext,
	}
	if p.deps.Traverser == nil || p.deps.Resolver == nil {
		o := Skipped(StageGraph, ReasonNotConfigured, nil)
		p.record(&resp.Report, o)
		return resp, o, nil
	}

	opts := p.config.Traversal
	if req.MaxHops != nil {
		opts.MaxHops = *req.MaxHops
	}
	if req.MaxPaths > 0 {
		opts.MaxPaths = req.MaxPaths
	}
	if req.Direction != nil {
		opts.Direction = *req.Direction
	}
	if err := opts.Validate(); err != nil {
		return nil, StageOutcome{}, err
	}

	start := time.Now()
	gctx, cancel := withStageTimeout(ctx, p.config.GraphTimeout)
	defer cancel()

	seeds, err := p.deps.Resolver.Resolve(gctx, req.Query, req.Seeds)
	if err != nil {
		o := Skipped(StageGraph, skipReason(err), types.Unavailable("graph store", err))
		o.Duration = time.Since(start)
		p.record(&resp.Report, o)
		return resp, o, nil
	}
	if len(seeds) == 0 {
		o := Skipped(StageGraph, ReasonNoSeeds, nil)
		o.Duration = time.Since(start)
		p.record(&resp.Report, o)
		return resp, o, nil
	}

	result, err := p.deps.Traverser.TraverseWith(gctx, seeds, opts)
	if err != nil {
		if types.IsCode(err, types.ErrConfiguration) {
			return nil, StageOutcome{}, err
		}
		o := Skipped(StageGraph, skipReason(err), err)
		o.Duration = time.Since(start)
		p.record(&resp.Report, o)
		return resp, o, nil
	}
	if len(result.Seeds) == 0 {
		resp.MissingSeeds = result.MissingSeeds
		o := Skipped(StageGraph, ReasonNoSeeds, nil)
		o.Duration = time.Since(start)
		p.record(&resp.Report, o)
		return resp, o, nil
	}

	resp.Seeds = result.Seeds
	resp.MissingSeeds = result.MissingSeeds
	resp.Paths = result.Paths
	resp.Partial = result.Partial
	resp.Relationships = result.Relationships()
	resp.Entities = sortedEntities(result.Entities)
	resp.Context = BuildGraphContext(result, p.config.GraphContextPaths)
	if resp.Relationships == nil {
		resp.Relationships = []Relationship{}
	}

	p.deps.Metrics.RecordTraversal(len(result.Paths), result.Partial)
	o := Used(StageGraph, time.Since(start))
	p.record(&resp.Report, o)
	return resp, o, nil
}

// Answer 合并文档与图证据后调用生成模型；生成失败时仍返回证据，并在报告中标记跳过
func (p *Pipeline) Answer(ctx context.Context, req AnswerRequest) (resp *AnswerResponse, err error) {
	start := time.Now()
	ctx, requestID := withRequestID(ctx)
	ctx, span := telemetry.StartSpan(ctx, "rag.answer", attribute.String("request_id", requestID))
	defer func() {
		telemetry.EndSpan(span, err)
		p.deps.Metrics.RecordSearch("answer", metrics.Status(err), time.Since(start))
	}()

	resp = &AnswerResponse{RequestID: requestID, Sources: []SearchHit{}}
	log := p.logger.With(zap.String("request_id", requestID))

	search, searchErr := p.HybridSearch(ctx, req.Search)
	switch {
	case searchErr == nil:
		resp.Sources = search.Results
		resp.Report.Stages = append(resp.Report.Stages, search.Report.Stages...)
	case !req.UseGraph || !types.IsCode(searchErr, types.ErrCapabilityUnavailable):
		return nil, searchErr
	default:
		log.Warn("document retrieval unavailable, answering from graph only", zap.Error(searchErr))
		p.record(&resp.Report, Skipped(StageDense, ReasonUnavailable, searchErr))
		p.record(&resp.Report, Skipped(StageSparse, ReasonUnavailable, searchErr))
	}

	graphContext := ""
	if req.UseGraph {
		graph, _, err := p.graphEvidence(ctx, requestID, GraphRequest{Query: req.Search.Query, Seeds: req.Seeds})
		if err != nil {
			return nil, err
		}
		resp.Graph = graph
		resp.Report.Stages = append(resp.Report.Stages, graph.Report.Stages...)
		if len(graph.Paths) > 0 {
			graphContext = graph.Context
		}
	}
	if searchErr != nil && graphContext == "" {
		return nil, searchErr
	}

	if p.deps.Generator == nil {
		p.record(&resp.Report, Skipped(StageGeneration, ReasonNotConfigured, nil))
		return resp, nil
	}

	prompt := BuildAnswerPrompt(req.Search.Query, BuildContext(resp.Sources, p.config.MaxContextChars), graphContext)
	genStart := time.Now()
	gctx, cancel := withStageTimeout(ctx, p.config.GenerationTimeout)
	defer cancel()
	answer, err := p.deps.Generator.Generate(gctx, prompt)
	if err != nil {
		log.Warn("answer generation failed, returning evidence only", zap.Error(err))
		o := Skipped(StageGeneration, skipReason(err), types.Unavailable("generator", err))
		o.Duration = time.Since(genStart)
		p.record(&resp.Report, o)
		return resp, nil
	}
	resp.Answer = strings.TrimSpace(answer)
	p.record(&resp.Report, Used(StageGeneration, time.Since(genStart)))
	return resp, nil
}

// Health 逐项探测实现了 HealthChecker 的依赖
func (p *Pipeline) Health(ctx context.Context) HealthReport {
	report := HealthReport{Healthy: true, Components: make(map[string]string)}
	probes := make(map[string]HealthChecker, len(p.deps.Probes)+1)
	for name, hc := range p.deps.Probes {
		probes[name] = hc
	}
	if hc, ok := p.deps.Chunks.(HealthChecker); ok {
		probes["chunk_store"] = hc
	}
	if hc, ok := p.deps.Generator.(HealthChecker); ok {
		probes["generator"] = hc
	}

	names := make([]string, 0, len(probes))
	for name := range probes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := probes[name].HealthCheck(ctx); err != nil {
			report.Healthy = false
			report.Components[name] = err.Error()
			p.logger.Warn("health check failed", zap.String("component_name", name), zap.Error(err))
			continue
		}
		report.Components[name] = "ok"
	}
	return report
}

// record 追加阶段结果并上报指标
func (p *Pipeline) record(report *SignalReport, o StageOutcome) {
	report.Add(o)
	reason := ""
	if o.Status == StatusSkipped {
		reason = o.Reason
	}
	p.deps.Metrics.RecordStage(string(o.Stage), reason, o.Duration)
}

// activeOnly 只保留当前代的候选；未配置注册表时不过滤
func (p *Pipeline) activeOnly(cands []Candidate) []Candidate {
	if p.deps.Registry == nil {
		return cands
	}
	gen := p.deps.Registry.Active()
	out := cands[:0:0]
	for _, c := range cands {
		if gen.Contains(c.ChunkID) {
			out = append(out, c)
		}
	}
	return out
}

func (p *Pipeline) loadChunks(ctx context.Context, fused []FusedResult) (map[string]Chunk, error) {
	if p.deps.Chunks == nil || len(fused) == 0 {
		return map[string]Chunk{}, nil
	}
	ids := make([]string, len(fused))
	for i, f := range fused {
		ids[i] = f.ChunkID
	}
	chunks, err := p.deps.Chunks.GetChunks(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load chunks: %w", err)
	}
	return chunks, nil
}

// filterFused 元数据精确匹配；document_id 同时匹配块的 DocumentID
func filterFused(fused []FusedResult, chunks map[string]Chunk, filters map[string]any) []FusedResult {
	out := make([]FusedResult, 0, len(fused))
	for _, f := range fused {
		c, ok := chunks[f.ChunkID]
		if ok && matchFilters(c, filters) {
			out = append(out, f)
		}
	}
	return out
}

func matchFilters(c Chunk, filters map[string]any) bool {
	for k, want := range filters {
		var got any
		switch k {
		case "document_id":
			got = c.DocumentID
		case "strategy":
			got = string(c.Strategy)
		default:
			v, ok := c.Metadata[k]
			if !ok {
				return false
			}
			got = v
		}
		if !valuesEqual(got, want) {
			return false
		}
	}
	return true
}

// valuesEqual 数值按 float64 比较，其余用深比较
func valuesEqual(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func newSearchHit(r RerankedResult, f FusedResult, c Chunk) SearchHit {
	return SearchHit{
		ChunkID:     r.ChunkID,
		DocumentID:  c.DocumentID,
		Content:     c.Content,
		Score:       r.Score,
		Rank:        r.Rank,
		FusedScore:  r.FusedScore,
		DenseScore:  f.DenseScore,
		SparseScore: f.SparseScore,
		Sources:     f.Sources,
		Metadata:    c.Metadata,
	}
}

func sortedEntities(m map[string]Entity) []Entity {
	out := make([]Entity, 0, len(m))
	for _, e := range m {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// withRequestID 复用上游的请求 ID，没有时生成一个
func withRequestID(ctx context.Context) (context.Context, string) {
	if id, ok := ctxkeys.RequestID(ctx); ok {
		return ctx, id
	}
	id := uuid.NewString()
	return ctxkeys.WithRequestID(ctx, id), id
}
