package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/ragcore/rag"
	"github.com/BaSui01/ragcore/testutil"
	"github.com/BaSui01/ragcore/testutil/fixtures"
)

// quietConfig 只输出错误日志的配置文件，extra 追加在末尾
func quietConfig(t *testing.T, extra string) string {
	t.Helper()
	return testutil.WriteFile(t, t.TempDir(), "ragcore.yaml", "log:\n  level: error\nmetrics:\n  enabled: false\n"+extra)
}

func corpusDir(t *testing.T) string {
	t.Helper()
	return testutil.WriteFiles(t, map[string]string{
		"fox.txt":     fixtures.FoxText,
		"returns.md":  fixtures.ReturnsMarkdown,
		"weather.txt": fixtures.WeatherText,
		"notes.bin":   "ignored",
	})
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_VersionAndHelp(t *testing.T) {
	code, out, _ := runCLI(t, "version")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "ragcore dev")

	code, out, _ = runCLI(t, "help")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "index-search")

	code, _, errOut := runCLI(t, "bogus")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "Unknown command: bogus")

	code, _, _ = runCLI(t)
	assert.Equal(t, 2, code)
}

func TestRun_Chunk(t *testing.T) {
	cfg := quietConfig(t, "chunking:\n  chunk_size: 500\n  chunk_overlap: 100\n")
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "long.txt", strings.Repeat("a", 1000))

	code, out, errOut := runCLI(t, "chunk", "--config", cfg, "--strategy", "fixed", "--json", path)

	require.Equal(t, 0, code, errOut)
	var chunks []rag.Chunk
	require.NoError(t, json.Unmarshal([]byte(out), &chunks))
	require.Len(t, chunks, 3)
	for i, c := range chunks {
		assert.Equal(t, "long", c.DocumentID)
		assert.Equal(t, i, c.Position)
		assert.Equal(t, rag.ChunkingFixed, c.Strategy)
	}
}

func TestRun_ChunkTable(t *testing.T) {
	cfg := quietConfig(t, "")
	path := testutil.WriteFile(t, t.TempDir(), "returns.md", fixtures.ReturnsMarkdown)

	code, out, errOut := runCLI(t, "chunk", "--config", cfg, path)

	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "DOCUMENT")
	assert.Contains(t, out, string(rag.ChunkingHierarchical))
	assert.Contains(t, out, "returns")
}

func TestRun_ChunkErrors(t *testing.T) {
	code, _, errOut := runCLI(t, "chunk")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "at least one file")

	code, _, errOut = runCLI(t, "chunk", "--strategy", "semantic", "x.txt")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "semantic")

	code, _, _ = runCLI(t, "chunk", "--config", quietConfig(t, ""), filepath.Join(t.TempDir(), "missing.txt"))
	assert.Equal(t, 1, code)
}

func TestRun_IndexSearch(t *testing.T) {
	cfg := quietConfig(t, "")
	dir := corpusDir(t)

	code, out, errOut := runCLI(t, "index-search", "--config", cfg, "--dir", dir, "--query", "quick brown fox", "--top-k", "2", "--json")

	require.Equal(t, 0, code, errOut)
	var resp rag.SearchResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotEmpty(t, resp.Results)
	assert.LessOrEqual(t, len(resp.Results), 2)
	assert.Equal(t, "fox", resp.Results[0].DocumentID)
	assert.True(t, resp.Report.Used(rag.StageDense))
	assert.True(t, resp.Report.Used(rag.StageSparse))
}

func TestRun_IndexSearchText(t *testing.T) {
	cfg := quietConfig(t, "")

	code, out, errOut := runCLI(t, "index-search", "--config", cfg, "--dir", corpusDir(t), "--query", "refund", "--rerank=false")

	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "Query: refund")
	assert.Contains(t, out, "returns")
	assert.Regexp(t, `reranker\s+skipped\s+disabled`, out)
}

func TestRun_IndexSearchErrors(t *testing.T) {
	cfg := quietConfig(t, "")

	code, _, errOut := runCLI(t, "index-search", "--config", cfg, "--query", "fox")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "--dir")

	code, _, errOut = runCLI(t, "index-search", "--config", cfg, "--dir", t.TempDir(), "--query", "fox")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "no supported documents")
}

func TestRun_IndexSearchAnswerWithGraph(t *testing.T) {
	var prompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		if assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) && len(req.Messages) > 0 {
			prompt = req.Messages[len(req.Messages)-1].Content
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"The strike delays shipment 123."},"finish_reason":"stop"}],"usage":{"prompt_tokens":10,"completion_tokens":5}}`))
	}))
	defer srv.Close()

	cfg := quietConfig(t, "generation:\n  base_url: "+srv.URL+"\n  api_key: test\n")
	graph := testutil.WriteFile(t, t.TempDir(), "graph.yaml", fixtures.SupplyChainYAML)

	code, out, errOut := runCLI(t, "index-search", "--config", cfg, "--dir", corpusDir(t),
		"--query", "why is the shipment late", "--graph", graph, "--seeds", "supplier_acme", "--answer")

	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "Answer:\nThe strike delays shipment 123.")
	assert.Contains(t, out, "ACME Corp → disrupted_by → Strike in Germany → affects → Shipment 123")
	assert.Contains(t, prompt, "=== Knowledge Graph Context ===")
}

func TestRun_IndexSearchAnswerWithoutGenerator(t *testing.T) {
	cfg := quietConfig(t, "")

	code, out, errOut := runCLI(t, "index-search", "--config", cfg, "--dir", corpusDir(t), "--query", "fox", "--answer")

	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "No answer generated")
	assert.Regexp(t, `generation\s+skipped\s+not_configured`, out)
}

func TestRun_GraphHops(t *testing.T) {
	cfg := quietConfig(t, "")
	graph := testutil.WriteFile(t, t.TempDir(), "graph.yaml", fixtures.SupplyChainYAML)

	code, out, errOut := runCLI(t, "graph", "--config", cfg, "--file", graph, "--seeds", "supplier_acme", "--hops", "2")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "Path 1: ACME Corp → disrupted_by → Strike in Germany\n")
	assert.Contains(t, out, "Path 2: ACME Corp → disrupted_by → Strike in Germany → affects → Shipment 123")

	code, out, errOut = runCLI(t, "graph", "--config", cfg, "--file", graph, "--seeds", "supplier_acme", "--hops", "1")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "Path 1: ACME Corp → disrupted_by → Strike in Germany")
	assert.NotContains(t, out, "Path 2")
}

func TestRun_GraphJSONFromQuery(t *testing.T) {
	cfg := quietConfig(t, "")
	graph := testutil.WriteFile(t, t.TempDir(), "graph.yaml", fixtures.SupplyChainYAML)

	code, out, errOut := runCLI(t, "graph", "--config", cfg, "--file", graph, "--query", "what about shipment 123", "--direction", "incoming", "--json")

	require.Equal(t, 0, code, errOut)
	var resp rag.GraphResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, []string{"shipment_123"}, resp.Seeds)
	require.Len(t, resp.Paths, 2)
	assert.Equal(t, []string{"shipment_123", "strike_germany", "supplier_acme"}, resp.Paths[1].Entities())
}

func TestRun_GraphErrors(t *testing.T) {
	cfg := quietConfig(t, "")
	dir := t.TempDir()

	code, _, errOut := runCLI(t, "graph", "--config", cfg, "--seeds", "a")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "--file")

	bad := testutil.WriteFile(t, dir, "bad.yaml", "relationships:\n  - source: a\n    target: b\n    type: knows\n")
	code, _, errOut = runCLI(t, "graph", "--config", cfg, "--file", bad, "--seeds", "a")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "relationship a -[knows]-> b")

	good := testutil.WriteFile(t, dir, "graph.yaml", fixtures.SupplyChainYAML)
	code, _, errOut = runCLI(t, "graph", "--config", cfg, "--file", good, "--seeds", "supplier_acme", "--direction", "sideways")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "sideways")
}

func TestRun_MigrateUsageAndBadDriver(t *testing.T) {
	code, out, _ := runCLI(t, "migrate")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "Database Migration Commands")

	code, _, errOut := runCLI(t, "migrate", "status", "--db-type", "oracle", "--db-url", "oracle://x")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "unsupported database type")
}

func TestLeadingPositional(t *testing.T) {
	pos, rest := leadingPositional([]string{"-1", "--config", "x.yaml"})
	assert.Equal(t, []string{"-1"}, pos)
	assert.Equal(t, []string{"--config", "x.yaml"}, rest)

	pos, rest = leadingPositional([]string{"3"})
	assert.Equal(t, []string{"3"}, pos)
	assert.Empty(t, rest)
}

func TestRedirectStdout(t *testing.T) {
	assert.Equal(t, []string{"stderr", "/var/log/ragcore.log"}, redirectStdout([]string{"stdout", "/var/log/ragcore.log"}))
	assert.Equal(t, []string{"stderr"}, redirectStdout(nil))
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "a b c", preview("a\n\n b\tc"))
	long := preview(strings.Repeat("x", 200))
	assert.Len(t, []rune(long), previewRunes)
	assert.True(t, strings.HasSuffix(long, "..."))
}
