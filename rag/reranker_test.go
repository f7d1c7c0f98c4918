package rag

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fusedFixture() ([]FusedResult, map[string]string) {
	fused := []FusedResult{
		{ChunkID: "a", FusedScore: 0.9},
		{ChunkID: "b", FusedScore: 0.6},
		{ChunkID: "c", FusedScore: 0.3},
	}
	texts := map[string]string{
		"a": "alpha text",
		"b": "bravo text",
		"c": "charlie text",
	}
	return fused, texts
}

func rankedIDs(rs []RerankedResult) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.ChunkID
	}
	return out
}

func TestDefaultRerankConfig(t *testing.T) {
	cfg := DefaultRerankConfig()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 32, cfg.BatchSize)
	assert.Equal(t, 2048, cfg.MaxLength)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
}

func TestRerankStage_ReordersByEncoderScore(t *testing.T) {
	fused, texts := fusedFixture()
	enc := scriptedEncoder{scores: map[string]float64{"alpha text": 0.1, "bravo text": 0.8, "charlie text": 0.5}}
	stage := NewRerankStage(enc, DefaultRerankConfig(), nil)

	got, outcome := stage.Rerank(context.Background(), "q", fused, texts, 2)

	assert.Equal(t, StatusUsed, outcome.Status)
	assert.Equal(t, []string{"b", "c"}, rankedIDs(got))
	assert.Equal(t, 1, got[0].Rank)
	assert.Equal(t, 2, got[1].Rank)
	assert.InDelta(t, 0.8, got[0].Score, 1e-9)
	assert.InDelta(t, 0.6, got[0].FusedScore, 1e-9)
}

func TestRerankStage_TiesByID(t *testing.T) {
	fused := []FusedResult{{ChunkID: "z", FusedScore: 1}, {ChunkID: "m", FusedScore: 0.5}, {ChunkID: "a", FusedScore: 0.1}}
	stage := NewRerankStage(scriptedEncoder{scores: map[string]float64{}}, DefaultRerankConfig(), nil)

	got, outcome := stage.Rerank(context.Background(), "q", fused, nil, 0)

	assert.Equal(t, StatusUsed, outcome.Status)
	assert.Equal(t, []string{"a", "m", "z"}, rankedIDs(got))
}

func TestRerankStage_PassThroughCases(t *testing.T) {
	fused, texts := fusedFixture()
	disabled := DefaultRerankConfig()
	disabled.Enabled = false

	tests := []struct {
		name   string
		stage  *RerankStage
		reason string
	}{
		{"nil stage", nil, ReasonDisabled},
		{"disabled", NewRerankStage(scriptedEncoder{}, disabled, nil), ReasonDisabled},
		{"no encoder", NewRerankStage(nil, DefaultRerankConfig(), nil), ReasonNotConfigured},
		{"encoder fails", NewRerankStage(scriptedEncoder{err: errBoom}, DefaultRerankConfig(), nil), ReasonUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, outcome := tt.stage.Rerank(context.Background(), "q", fused, texts, 2)

			assert.Equal(t, StatusSkipped, outcome.Status)
			assert.Equal(t, tt.reason, outcome.Reason)
			assert.Equal(t, []string{"a", "b"}, rankedIDs(got))
			assert.InDelta(t, 0.9, got[0].Score, 1e-9)
			assert.Equal(t, 2, got[1].Rank)
		})
	}
}

// slowEncoder 阻塞到上下文结束
type slowEncoder struct{}

func (slowEncoder) Score(ctx context.Context, pairs []QueryDocPair) ([]float64, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestRerankStage_TimeoutPassesThrough(t *testing.T) {
	fused, texts := fusedFixture()
	cfg := DefaultRerankConfig()
	cfg.Timeout = 20 * time.Millisecond

	got, outcome := NewRerankStage(slowEncoder{}, cfg, nil).Rerank(context.Background(), "q", fused, texts, 0)

	assert.Equal(t, ReasonTimeout, outcome.Reason)
	assert.Equal(t, []string{"a", "b", "c"}, rankedIDs(got))
}

func TestRerankStage_EmptyInput(t *testing.T) {
	got, outcome := NewRerankStage(LexicalCrossEncoder{}, DefaultRerankConfig(), nil).Rerank(context.Background(), "q", nil, nil, 5)

	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Equal(t, ReasonNoCandidates, outcome.Reason)
}

// recordingEncoder 记录每批大小与文档
type recordingEncoder struct {
	mu      sync.Mutex
	batches []int
	docs    []string
	short   bool
}

func (e *recordingEncoder) Score(ctx context.Context, pairs []QueryDocPair) ([]float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.batches = append(e.batches, len(pairs))
	for _, p := range pairs {
		e.docs = append(e.docs, p.Document)
	}
	n := len(pairs)
	if e.short {
		n--
	}
	return make([]float64, n), nil
}

func TestRerankStage_BatchingAndTruncation(t *testing.T) {
	fused := make([]FusedResult, 5)
	texts := map[string]string{}
	for i := range fused {
		id := string(rune('a' + i))
		fused[i] = FusedResult{ChunkID: id, FusedScore: float64(5 - i)}
		texts[id] = strings.Repeat("é", 10)
	}
	enc := &recordingEncoder{}
	cfg := DefaultRerankConfig()
	cfg.BatchSize = 2
	cfg.MaxLength = 4

	got, outcome := NewRerankStage(enc, cfg, nil).Rerank(context.Background(), "q", fused, texts, 0)

	assert.Equal(t, StatusUsed, outcome.Status)
	assert.Len(t, got, 5)
	assert.Equal(t, []int{2, 2, 1}, enc.batches)
	for _, d := range enc.docs {
		assert.Equal(t, "éééé", d)
	}
}

func TestRerankStage_ScoreCountMismatch(t *testing.T) {
	fused, texts := fusedFixture()

	got, outcome := NewRerankStage(&recordingEncoder{short: true}, DefaultRerankConfig(), nil).Rerank(context.Background(), "q", fused, texts, 0)

	assert.Equal(t, StatusSkipped, outcome.Status)
	assert.Equal(t, []string{"a", "b", "c"}, rankedIDs(got))
}

func TestRerankStage_MissingTextStillScored(t *testing.T) {
	fused, texts := fusedFixture()
	delete(texts, "c")
	enc := &recordingEncoder{}

	got, _ := NewRerankStage(enc, DefaultRerankConfig(), nil).Rerank(context.Background(), "q", fused, texts, 0)

	assert.Len(t, got, 3)
	assert.Contains(t, enc.docs, "")
}

func TestLexicalCrossEncoder(t *testing.T) {
	pairs := []QueryDocPair{
		{Query: "quick brown fox", Document: "The quick brown fox jumps over the lazy dog."},
		{Query: "quick brown fox", Document: "A fox was seen near the barn, it was brown."},
		{Query: "quick brown fox", Document: "Invoice total due 1200 EUR."},
	}

	scores, err := LexicalCrossEncoder{}.Score(context.Background(), pairs)

	require.NoError(t, err)
	require.Len(t, scores, 3)
	for _, s := range scores {
		assert.Greater(t, s, 0.0)
		assert.Less(t, s, 1.0)
	}
	assert.Greater(t, scores[0], scores[1])
	assert.Greater(t, scores[1], scores[2])
}

func TestLexicalCrossEncoder_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := LexicalCrossEncoder{}.Score(ctx, []QueryDocPair{{Query: "q", Document: "d"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProximityScore(t *testing.T) {
	assert.Equal(t, 1.0, proximityScore([]string{"one"}, []string{"x"}))
	assert.Equal(t, 0.0, proximityScore([]string{"a", "b"}, []string{"a", "x"}))
	assert.InDelta(t, 1/1.1, proximityScore([]string{"a", "b"}, []string{"a", "b"}), 1e-9)
	assert.Greater(t,
		proximityScore([]string{"a", "b"}, []string{"a", "b", "x", "x"}),
		proximityScore([]string{"a", "b"}, []string{"a", "x", "x", "b"}))
}
