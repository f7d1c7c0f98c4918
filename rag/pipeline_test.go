package rag

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/ragcore/internal/ctxkeys"
	"github.com/BaSui01/ragcore/internal/metrics"
	"github.com/BaSui01/ragcore/testutil/mocks"
	"github.com/BaSui01/ragcore/types"
)

type pipelineFixture struct {
	ix       *Indexer
	embedder *HashingEmbedder
	dense    *InMemoryVectorStore
	sparse   *BM25Index
	graph    *InMemoryGraph
}

func newPipelineFixture(t *testing.T) pipelineFixture {
	t.Helper()
	f := pipelineFixture{
		embedder: NewHashingEmbedder(256, nil),
		dense:    NewInMemoryVectorStore(nil),
		sparse:   NewBM25Index(DefaultBM25Config(), nil),
		graph:    NewInMemoryGraph(nil),
	}
	chunker, err := NewDocumentChunker(DefaultChunkingConfig(), nil, nil)
	require.NoError(t, err)
	f.ix, err = NewIndexer(IndexerDeps{
		Chunker:  chunker,
		Embedder: f.embedder,
		Dense:    f.dense,
		Sparse:   f.sparse,
		Chunks:   NewInMemoryChunkStore(),
	}, DefaultIndexerConfig(), nil)
	require.NoError(t, err)
	t.Cleanup(f.ix.Close)

	docs := make([]Document, 0, len(retrievalCorpus))
	for id, text := range retrievalCorpus {
		docs = append(docs, Document{ID: id, Content: text})
	}
	_, err = f.ix.Index(context.Background(), docs)
	require.NoError(t, err)
	seedSupplyChain(t, f.graph)
	return f
}

// pipeline 组装编排器；deps 与 cfg 可在回调中修改
func (f pipelineFixture) pipeline(t *testing.T, mutateDeps func(*PipelineDeps), mutateCfg func(*PipelineConfig)) *Pipeline {
	t.Helper()
	retriever, err := NewCandidateRetriever(
		NewDenseRetriever(f.dense, f.embedder, time.Second, nil),
		NewSparseRetriever(f.sparse, time.Second, nil),
		3, nil)
	require.NoError(t, err)
	traverser, err := NewGraphTraverser(f.graph, DefaultTraversalOptions(), nil)
	require.NoError(t, err)

	deps := PipelineDeps{
		Retriever: retriever,
		Chunks:    f.ix.Chunks(),
		Registry:  f.ix.Registry(),
		Traverser: traverser,
		Resolver:  NewEntityResolver(f.graph, 3, nil),
	}
	if mutateDeps != nil {
		mutateDeps(&deps)
	}
	cfg := DefaultPipelineConfig()
	if mutateCfg != nil {
		mutateCfg(&cfg)
	}
	p, err := NewPipeline(deps, cfg, nil)
	require.NoError(t, err)
	return p
}

func hitDocuments(hits []SearchHit) []string {
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.DocumentID
	}
	return out
}

func boolPtr(b bool) *bool { return &b }

func floatPtr(f float64) *float64 { return &f }

func TestPipeline_HybridSearchRanksFoxFirst(t *testing.T) {
	f := newPipelineFixture(t)
	p := f.pipeline(t, nil, nil)

	resp, err := p.HybridSearch(context.Background(), SearchRequest{Query: "quick brown fox", TopK: 3})

	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	top := resp.Results[0]
	assert.Equal(t, "fox", top.DocumentID)
	assert.Equal(t, retrievalCorpus["fox"], top.Content)
	assert.Equal(t, 1, top.Rank)
	assert.InDelta(t, 1.0, top.FusedScore, 1e-9)
	assert.ElementsMatch(t, []SignalSource{SourceDense, SourceSparse}, top.Sources)
	assert.LessOrEqual(t, len(resp.Results), 3)
	assert.NotEmpty(t, resp.RequestID)

	assert.True(t, resp.Report.Used(StageDense))
	assert.True(t, resp.Report.Used(StageSparse))
	hyde, _ := resp.Report.Get(StageHyDE)
	assert.Equal(t, ReasonDisabled, hyde.Reason)
	rerank, _ := resp.Report.Get(StageRerank)
	assert.Equal(t, ReasonNotConfigured, rerank.Reason)
}

func TestPipeline_HybridSearchWithReranker(t *testing.T) {
	f := newPipelineFixture(t)
	p := f.pipeline(t, func(d *PipelineDeps) {
		d.Reranker = NewRerankStage(LexicalCrossEncoder{}, DefaultRerankConfig(), nil)
	}, nil)

	resp, err := p.HybridSearch(context.Background(), SearchRequest{Query: "quick brown fox", TopK: 2})

	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "fox", resp.Results[0].DocumentID)
	assert.True(t, resp.Report.Used(StageRerank))

	resp, err = p.HybridSearch(context.Background(), SearchRequest{Query: "quick brown fox", UseReranker: boolPtr(false)})
	require.NoError(t, err)
	rerank, _ := resp.Report.Get(StageRerank)
	assert.Equal(t, ReasonDisabled, rerank.Reason)
}

func TestPipeline_HybridSearchFilters(t *testing.T) {
	f := newPipelineFixture(t)
	p := f.pipeline(t, nil, nil)
	ctx := context.Background()

	resp, err := p.HybridSearch(ctx, SearchRequest{
		Query:   "invoice steel bolts fox",
		Filters: map[string]any{"document_id": "invoice"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	for _, h := range resp.Results {
		assert.Equal(t, "invoice", h.DocumentID)
	}

	resp, err = p.HybridSearch(ctx, SearchRequest{
		Query:   "quick brown fox",
		Filters: map[string]any{"customer": "acme"},
	})
	require.NoError(t, err)
	assert.NotNil(t, resp.Results)
	assert.Empty(t, resp.Results)
}

func TestPipeline_HybridSearchMinScore(t *testing.T) {
	f := newPipelineFixture(t)
	p := f.pipeline(t, nil, func(c *PipelineConfig) { c.MinScore = 0.5 })
	ctx := context.Background()

	resp, err := p.HybridSearch(ctx, SearchRequest{Query: "quick brown fox"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	for _, h := range resp.Results {
		assert.GreaterOrEqual(t, h.Score, 0.5)
	}

	resp, err = p.HybridSearch(ctx, SearchRequest{Query: "quick brown fox", MinScore: floatPtr(2)})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
}

func TestPipeline_HybridSearchIgnoresStaleCandidates(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()
	// 不属于当前代的残留条目
	v, err := f.embedder.Embed(ctx, retrievalCorpus["fox"])
	require.NoError(t, err)
	require.NoError(t, f.dense.Upsert(ctx, "orphan", v, nil))
	require.NoError(t, f.sparse.Index(ctx, "orphan", Tokenize(retrievalCorpus["fox"])))
	p := f.pipeline(t, nil, nil)

	resp, err := p.HybridSearch(ctx, SearchRequest{Query: "quick brown fox", TopK: 10})

	require.NoError(t, err)
	for _, h := range resp.Results {
		assert.NotEqual(t, "orphan", h.ChunkID)
	}
	assert.Equal(t, "fox", resp.Results[0].DocumentID)
}

func TestPipeline_HybridSearchDegradation(t *testing.T) {
	f := newPipelineFixture(t)
	p := f.pipeline(t, func(d *PipelineDeps) {
		r, err := NewCandidateRetriever(
			NewDenseRetriever(failingDenseIndex{f.dense, errBoom}, f.embedder, time.Second, nil),
			NewSparseRetriever(f.sparse, time.Second, nil),
			3, nil)
		require.NoError(t, err)
		d.Retriever = r
	}, nil)

	resp, err := p.HybridSearch(context.Background(), SearchRequest{Query: "quick brown fox"})

	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "fox", resp.Results[0].DocumentID)
	assert.Equal(t, []SignalSource{SourceSparse}, resp.Results[0].Sources)
	dense, ok := resp.Report.Get(StageDense)
	require.True(t, ok)
	assert.Equal(t, StatusSkipped, dense.Status)
	assert.Equal(t, ReasonUnavailable, dense.Reason)
	assert.True(t, resp.Report.Used(StageSparse))
}

func TestPipeline_HybridSearchBothSignalsFail(t *testing.T) {
	f := newPipelineFixture(t)
	p := f.pipeline(t, func(d *PipelineDeps) {
		r, err := NewCandidateRetriever(
			NewDenseRetriever(failingDenseIndex{f.dense, errBoom}, f.embedder, time.Second, nil),
			NewSparseRetriever(failingSparseIndex{f.sparse, errBoom}, time.Second, nil),
			3, nil)
		require.NoError(t, err)
		d.Retriever = r
	}, nil)

	_, err := p.HybridSearch(context.Background(), SearchRequest{Query: "quick brown fox"})

	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrCapabilityUnavailable))
}

func TestPipeline_HybridSearchRejectsEmptyQuery(t *testing.T) {
	f := newPipelineFixture(t)
	p := f.pipeline(t, nil, nil)

	_, err := p.HybridSearch(context.Background(), SearchRequest{Query: "   "})

	assert.True(t, types.IsCode(err, types.ErrInvalidRequest))
}

func TestPipeline_HybridSearchHyDE(t *testing.T) {
	f := newPipelineFixture(t)
	gen := mocks.NewMockGenerator().WithResponse("A quick brown fox leaps over a sleeping dog in the meadow.")
	p := f.pipeline(t, func(d *PipelineDeps) {
		d.Expander = newTestExpander(t, gen, f.embedder, nil)
	}, nil)

	resp, err := p.HybridSearch(context.Background(), SearchRequest{Query: "quick brown fox", UseHyDE: boolPtr(true)})

	require.NoError(t, err)
	assert.True(t, resp.Report.Used(StageHyDE))
	assert.Contains(t, resp.HypotheticalDocument, "sleeping dog")
	assert.Contains(t, gen.LastPrompt(), "quick brown fox")
	assert.Equal(t, "fox", resp.Results[0].DocumentID)
}

func TestPipeline_HybridSearchHyDENotConfigured(t *testing.T) {
	f := newPipelineFixture(t)
	p := f.pipeline(t, nil, func(c *PipelineConfig) { c.UseHyDE = true })

	resp, err := p.HybridSearch(context.Background(), SearchRequest{Query: "quick brown fox"})

	require.NoError(t, err)
	hyde, _ := resp.Report.Get(StageHyDE)
	assert.Equal(t, ReasonNotConfigured, hyde.Reason)
	assert.Empty(t, resp.HypotheticalDocument)
}

func TestPipeline_ReusesRequestID(t *testing.T) {
	f := newPipelineFixture(t)
	p := f.pipeline(t, nil, nil)
	ctx := ctxkeys.WithRequestID(context.Background(), "req-42")

	resp, err := p.HybridSearch(ctx, SearchRequest{Query: "fox"})

	require.NoError(t, err)
	assert.Equal(t, "req-42", resp.RequestID)
}

func TestPipeline_GraphRAGResolvesSeedsFromQuery(t *testing.T) {
	f := newPipelineFixture(t)
	p := f.pipeline(t, nil, nil)

	resp, err := p.GraphRAG(context.Background(), GraphRequest{Query: "What happened to ACME?"})

	require.NoError(t, err)
	assert.Equal(t, []string{"supplier_acme"}, resp.Seeds)
	assert.Equal(t, [][]string{
		{"supplier_acme", "strike_germany"},
		{"supplier_acme", "strike_germany", "shipment_123"},
	}, pathEntities(resp.Paths))
	require.Len(t, resp.Entities, 3)
	assert.Equal(t, "shipment_123", resp.Entities[0].ID)
	assert.Len(t, resp.Relationships, 2)
	assert.False(t, resp.Partial)
	assert.Contains(t, resp.Context, "Path 2: ACME Corp → disrupted_by → Strike in Germany → affects → Shipment 123")
	assert.True(t, resp.Report.Used(StageGraph))
}

func TestPipeline_GraphRAGOverrides(t *testing.T) {
	f := newPipelineFixture(t)
	p := f.pipeline(t, nil, nil)
	ctx := context.Background()

	oneHop := 1
	resp, err := p.GraphRAG(ctx, GraphRequest{Seeds: []string{"supplier_acme"}, MaxHops: &oneHop})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"supplier_acme", "strike_germany"}}, pathEntities(resp.Paths))

	incoming := DirectionIncoming
	resp, err = p.GraphRAG(ctx, GraphRequest{Seeds: []string{"shipment_123"}, Direction: &incoming})
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"shipment_123", "strike_germany"},
		{"shipment_123", "strike_germany", "supplier_acme"},
	}, pathEntities(resp.Paths))
	assert.Contains(t, resp.Context, "Shipment 123 ← affects ← Strike in Germany")

	resp, err = p.GraphRAG(ctx, GraphRequest{Seeds: []string{"supplier_acme"}, MaxPaths: 1})
	require.NoError(t, err)
	assert.Len(t, resp.Paths, 1)
	assert.True(t, resp.Partial)

	negative := -1
	_, err = p.GraphRAG(ctx, GraphRequest{Seeds: []string{"supplier_acme"}, MaxHops: &negative})
	assert.True(t, types.IsCode(err, types.ErrConfiguration))
}

func TestPipeline_GraphRAGNoSeeds(t *testing.T) {
	f := newPipelineFixture(t)
	p := f.pipeline(t, nil, nil)
	ctx := context.Background()

	resp, err := p.GraphRAG(ctx, GraphRequest{Query: "rain tomorrow"})
	require.NoError(t, err)
	assert.Empty(t, resp.Paths)
	assert.Equal(t, noGraphContext, resp.Context)
	graph, _ := resp.Report.Get(StageGraph)
	assert.Equal(t, ReasonNoSeeds, graph.Reason)

	resp, err = p.GraphRAG(ctx, GraphRequest{Seeds: []string{"ghost"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"ghost"}, resp.MissingSeeds)
	assert.True(t, resp.Report.Skipped(StageGraph))
}

func TestPipeline_GraphRAGNotConfigured(t *testing.T) {
	f := newPipelineFixture(t)
	p := f.pipeline(t, func(d *PipelineDeps) {
		d.Traverser = nil
		d.Resolver = nil
	}, nil)

	resp, err := p.GraphRAG(context.Background(), GraphRequest{Query: "ACME"})

	require.NoError(t, err)
	graph, _ := resp.Report.Get(StageGraph)
	assert.Equal(t, ReasonNotConfigured, graph.Reason)
}

func TestPipeline_GraphRAGStoreUnavailable(t *testing.T) {
	f := newPipelineFixture(t)
	p := f.pipeline(t, func(d *PipelineDeps) {
		tr, err := NewGraphTraverser(brokenGraph{f.graph}, DefaultTraversalOptions(), nil)
		require.NoError(t, err)
		d.Traverser = tr
	}, nil)

	_, err := p.GraphRAG(context.Background(), GraphRequest{Seeds: []string{"supplier_acme"}})

	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrCapabilityUnavailable))
}

func TestPipeline_AnswerWithoutGenerator(t *testing.T) {
	f := newPipelineFixture(t)
	p := f.pipeline(t, nil, nil)

	resp, err := p.Answer(context.Background(), AnswerRequest{Search: SearchRequest{Query: "quick brown fox"}})

	require.NoError(t, err)
	assert.Empty(t, resp.Answer)
	require.NotEmpty(t, resp.Sources)
	assert.Equal(t, "fox", resp.Sources[0].DocumentID)
	gen, _ := resp.Report.Get(StageGeneration)
	assert.Equal(t, ReasonNotConfigured, gen.Reason)
	assert.True(t, resp.Report.Used(StageDense))
}

func TestPipeline_AnswerWithGraphEvidence(t *testing.T) {
	f := newPipelineFixture(t)
	gen := mocks.NewMockGenerator().WithResponse("  The strike in Germany delays shipment 123.  ")
	p := f.pipeline(t, func(d *PipelineDeps) { d.Generator = gen }, nil)

	resp, err := p.Answer(context.Background(), AnswerRequest{
		Search:   SearchRequest{Query: "Why is shipment 123 late for ACME?"},
		UseGraph: true,
		Seeds:    []string{"supplier_acme"},
	})

	require.NoError(t, err)
	assert.Equal(t, "The strike in Germany delays shipment 123.", resp.Answer)
	require.NotNil(t, resp.Graph)
	assert.Len(t, resp.Graph.Paths, 2)
	assert.True(t, resp.Report.Used(StageGraph))
	assert.True(t, resp.Report.Used(StageGeneration))

	prompt := gen.LastPrompt()
	assert.Contains(t, prompt, "=== Knowledge Graph Context ===")
	assert.Contains(t, prompt, "ACME Corp → disrupted_by → Strike in Germany → affects → Shipment 123")
	assert.Contains(t, prompt, "[Source 1]")
	assert.True(t, strings.HasSuffix(prompt, "Please answer the question based on the context provided."))
}

func TestPipeline_AnswerGeneratorFailureKeepsEvidence(t *testing.T) {
	f := newPipelineFixture(t)

	tests := []struct {
		name      string
		generator Generator
		reason    string
	}{
		{"error", mocks.NewMockGenerator().WithError(errBoom), ReasonUnavailable},
		{"timeout", mocks.NewMockGenerator().WithDelay(time.Minute), ReasonTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := f.pipeline(t, func(d *PipelineDeps) { d.Generator = tt.generator },
				func(c *PipelineConfig) { c.GenerationTimeout = 20 * time.Millisecond })

			resp, err := p.Answer(context.Background(), AnswerRequest{Search: SearchRequest{Query: "quick brown fox"}})

			require.NoError(t, err)
			assert.Empty(t, resp.Answer)
			assert.NotEmpty(t, resp.Sources)
			gen, ok := resp.Report.Get(StageGeneration)
			require.True(t, ok)
			assert.Equal(t, StatusSkipped, gen.Status)
			assert.Equal(t, tt.reason, gen.Reason)
			assert.True(t, types.IsCode(gen.Err, types.ErrCapabilityUnavailable))
		})
	}
}

func TestPipeline_AnswerFallsBackToGraph(t *testing.T) {
	f := newPipelineFixture(t)
	gen := mocks.NewMockGenerator().WithResponse("Shipment 123 is delayed by a strike.")
	p := f.pipeline(t, func(d *PipelineDeps) {
		r, err := NewCandidateRetriever(
			NewDenseRetriever(failingDenseIndex{f.dense, errBoom}, f.embedder, time.Second, nil),
			NewSparseRetriever(failingSparseIndex{f.sparse, errBoom}, time.Second, nil),
			3, nil)
		require.NoError(t, err)
		d.Retriever = r
		d.Generator = gen
	}, nil)
	ctx := context.Background()

	resp, err := p.Answer(ctx, AnswerRequest{
		Search:   SearchRequest{Query: "shipment status"},
		UseGraph: true,
		Seeds:    []string{"supplier_acme"},
	})
	require.NoError(t, err)
	assert.Empty(t, resp.Sources)
	assert.Equal(t, "Shipment 123 is delayed by a strike.", resp.Answer)
	assert.True(t, resp.Report.Skipped(StageDense))
	assert.Contains(t, gen.LastPrompt(), noDocumentContext)

	_, err = p.Answer(ctx, AnswerRequest{Search: SearchRequest{Query: "shipment status"}})
	assert.True(t, types.IsCode(err, types.ErrCapabilityUnavailable))

	_, err = p.Answer(ctx, AnswerRequest{
		Search:   SearchRequest{Query: "shipment status"},
		UseGraph: true,
		Seeds:    []string{"ghost"},
	})
	assert.True(t, types.IsCode(err, types.ErrCapabilityUnavailable))
}

// staticProbe 固定返回的健康检查
type staticProbe struct{ err error }

func (p staticProbe) HealthCheck(ctx context.Context) error { return p.err }

func TestPipeline_Health(t *testing.T) {
	f := newPipelineFixture(t)
	p := f.pipeline(t, func(d *PipelineDeps) {
		d.Probes = map[string]HealthChecker{
			"graph":        f.graph,
			"vector_store": staticProbe{err: errBoom},
		}
	}, nil)

	report := p.Health(context.Background())

	assert.False(t, report.Healthy)
	assert.Equal(t, "ok", report.Components["graph"])
	assert.Equal(t, "boom", report.Components["vector_store"])

	healthy := f.pipeline(t, func(d *PipelineDeps) {
		d.Probes = map[string]HealthChecker{"graph": f.graph}
	}, nil)
	assert.True(t, healthy.Health(context.Background()).Healthy)
}

func TestNewPipeline_Validation(t *testing.T) {
	f := newPipelineFixture(t)
	retriever, err := NewCandidateRetriever(nil, NewSparseRetriever(f.sparse, time.Second, nil), 3, nil)
	require.NoError(t, err)

	_, err = NewPipeline(PipelineDeps{}, DefaultPipelineConfig(), nil)
	assert.True(t, types.IsCode(err, types.ErrConfiguration))

	cfg := DefaultPipelineConfig()
	cfg.Fusion.DenseWeight = -1
	_, err = NewPipeline(PipelineDeps{Retriever: retriever}, cfg, nil)
	assert.True(t, types.IsCode(err, types.ErrConfiguration))

	cfg = DefaultPipelineConfig()
	cfg.Traversal.MaxPaths = 0
	_, err = NewPipeline(PipelineDeps{Retriever: retriever}, cfg, nil)
	assert.True(t, types.IsCode(err, types.ErrConfiguration))

	cfg = DefaultPipelineConfig()
	cfg.Fusion.TopK = 0
	cfg.GraphContextPaths = 0
	p, err := NewPipeline(PipelineDeps{Retriever: retriever}, cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultFusionConfig().TopK, p.Config().Fusion.TopK)
	assert.Equal(t, 5, p.Config().GraphContextPaths)
}

func TestPipeline_RecordsMetrics(t *testing.T) {
	f := newPipelineFixture(t)
	m := metrics.NewCollector("pipeline_test", nil)
	p := f.pipeline(t, func(d *PipelineDeps) { d.Metrics = m }, nil)

	_, err := p.HybridSearch(context.Background(), SearchRequest{Query: "quick brown fox"})
	require.NoError(t, err)

	n, err := testutil.GatherAndCount(prometheus.DefaultGatherer, "pipeline_test_search_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	// hyde 关闭、reranker 未配置
	n, err = testutil.GatherAndCount(prometheus.DefaultGatherer, "pipeline_test_stage_degradations_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestPipeline_SingleFoxDocumentRanksFirstUnderAnyWeights(t *testing.T) {
	ctx := context.Background()
	embedder := NewHashingEmbedder(256, nil)
	dense := NewInMemoryVectorStore(nil)
	sparse := NewBM25Index(DefaultBM25Config(), nil)
	ix, err := NewIndexer(IndexerDeps{
		Chunker:  newTestChunker(t, 1000, 200),
		Embedder: embedder,
		Dense:    dense,
		Sparse:   sparse,
		Chunks:   NewInMemoryChunkStore(),
	}, DefaultIndexerConfig(), nil)
	require.NoError(t, err)
	t.Cleanup(ix.Close)

	report, err := ix.Index(ctx, []Document{{ID: "fox", Content: foxText}})
	require.NoError(t, err)
	require.Equal(t, 1, report.Chunks)

	retriever, err := NewCandidateRetriever(
		NewDenseRetriever(dense, embedder, time.Second, nil),
		NewSparseRetriever(sparse, time.Second, nil),
		3, nil)
	require.NoError(t, err)

	for _, w := range [][2]float64{{0.7, 0.3}, {0.95, 0.05}, {0.1, 0.9}} {
		cfg := DefaultPipelineConfig()
		cfg.Fusion.DenseWeight, cfg.Fusion.SparseWeight = w[0], w[1]
		p, err := NewPipeline(PipelineDeps{Retriever: retriever, Chunks: ix.Chunks(), Registry: ix.Registry()}, cfg, nil)
		require.NoError(t, err)

		resp, err := p.HybridSearch(ctx, SearchRequest{Query: "Tell me about foxes", TopK: 3})

		require.NoError(t, err)
		require.Len(t, resp.Results, 1, "weights %v", w)
		assert.Equal(t, "fox", resp.Results[0].DocumentID)
		assert.Equal(t, 1, resp.Results[0].Rank)
		assert.Equal(t, foxText, resp.Results[0].Content)
	}
}
