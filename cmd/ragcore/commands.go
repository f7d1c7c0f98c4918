package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/BaSui01/ragcore/rag"
	"github.com/BaSui01/ragcore/rag/loader"
)

// =============================================================================
// ✂️ chunk 命令
// =============================================================================

func runChunk(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("chunk", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to config file")
	strategyName := fs.String("strategy", "", "Chunking strategy (default: by document type)")
	asJSON := fs.Bool("json", false, "Print chunks as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("chunk requires at least one file")
	}

	var strategy rag.ChunkingStrategy
	if *strategyName != "" {
		s, err := rag.ParseChunkingStrategy(*strategyName)
		if err != nil {
			return err
		}
		strategy = s
	}

	a, err := newApp(*configPath)
	if err != nil {
		return err
	}
	defer a.close()

	tok, err := rag.NewTokenizer(a.cfg.Chunking.Tokenizer, a.cfg.Chunking.TokenizerModel, a.logger)
	if err != nil {
		return err
	}
	chunkCfg, err := rag.ChunkingConfigFrom(a.cfg.Chunking)
	if err != nil {
		return err
	}
	chunker, err := rag.NewDocumentChunker(chunkCfg, tok, a.logger)
	if err != nil {
		return err
	}

	registry := loader.NewLoaderRegistry()
	var all []rag.Chunk
	for _, path := range fs.Args() {
		docs, err := registry.Load(ctx, path)
		if err != nil {
			return err
		}
		for _, doc := range docs {
			s := strategy
			if s == "" {
				s = rag.StrategyForDocumentType(doc.Type)
			}
			chunks, err := chunker.ChunkWith(ctx, doc, s)
			if err != nil {
				return fmt.Errorf("chunk %s: %w", doc.ID, err)
			}
			all = append(all, chunks...)
		}
	}

	if *asJSON {
		return writeJSON(stdout, all)
	}
	printChunks(stdout, all)
	return nil
}

// =============================================================================
// 🔎 index-search 命令
// =============================================================================

func runIndexSearch(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("index-search", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to config file")
	dir := fs.String("dir", "", "Directory of documents to index")
	query := fs.String("query", "", "Search query")
	topK := fs.Int("top-k", 0, "Number of results (default: from config)")
	hyde := fs.Bool("hyde", false, "Expand the query with a hypothetical document")
	docType := fs.String("doc-type", "", "Document type used for the HyDE template")
	rerank := fs.Bool("rerank", true, "Apply the cross-encoder reranker")
	answer := fs.Bool("answer", false, "Generate an answer from the retrieved evidence")
	graphFile := fs.String("graph", "", "YAML graph file; enables graph evidence with --answer")
	seeds := fs.String("seeds", "", "Comma-separated seed entity IDs")
	asJSON := fs.Bool("json", false, "Print the response as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dir == "" || strings.TrimSpace(*query) == "" {
		return fmt.Errorf("index-search requires --dir and --query")
	}

	a, err := newApp(*configPath)
	if err != nil {
		return err
	}
	defer a.close()

	rt, err := a.runtime()
	if err != nil {
		return err
	}
	defer rt.Close()

	docs, err := loader.NewLoaderRegistry().LoadDir(ctx, *dir)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return fmt.Errorf("no supported documents found in %s", *dir)
	}
	report, err := rt.Indexer.Index(ctx, docs)
	if err != nil {
		return err
	}
	a.logger.Info("documents indexed",
		zap.Int("documents", report.Documents),
		zap.Int("chunks", report.Chunks),
		zap.String("generation", report.Generation))

	req := rag.SearchRequest{
		Query:        *query,
		TopK:         *topK,
		DocumentType: rag.DocumentType(*docType),
	}
	if flagSet(fs, "hyde") {
		req.UseHyDE = hyde
	}
	if flagSet(fs, "rerank") {
		req.UseReranker = rerank
	}

	useGraph := *graphFile != ""
	if useGraph {
		if _, _, err := loadGraph(ctx, rt.Graph, *graphFile); err != nil {
			return err
		}
	}

	if *answer {
		resp, err := rt.Pipeline.Answer(ctx, rag.AnswerRequest{
			Search:   req,
			UseGraph: useGraph,
			Seeds:    splitList(*seeds),
		})
		if err != nil {
			return err
		}
		if *asJSON {
			return writeJSON(stdout, resp)
		}
		printAnswer(stdout, resp)
		return nil
	}

	resp, err := rt.Pipeline.HybridSearch(ctx, req)
	if err != nil {
		return err
	}
	if *asJSON {
		return writeJSON(stdout, resp)
	}
	printSearch(stdout, resp)
	return nil
}

// =============================================================================
// 🕸️ graph 命令
// =============================================================================

// graphFile YAML 图文件
type graphFile struct {
	Entities      []rag.Entity       `yaml:"entities"`
	Relationships []rag.Relationship `yaml:"relationships"`
}

func runGraph(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("graph", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to config file")
	file := fs.String("file", "", "YAML file with entities and relationships")
	seeds := fs.String("seeds", "", "Comma-separated seed entity IDs")
	query := fs.String("query", "", "Query used to resolve seeds when --seeds is empty")
	hops := fs.Int("hops", -1, "Maximum hops (default: from config)")
	maxPaths := fs.Int("max-paths", 0, "Maximum paths (default: from config)")
	direction := fs.String("direction", "", "outgoing, incoming or both (default: from config)")
	asJSON := fs.Bool("json", false, "Print the response as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return fmt.Errorf("graph requires --file")
	}
	if *seeds == "" && strings.TrimSpace(*query) == "" {
		return fmt.Errorf("graph requires --seeds or --query")
	}

	a, err := newApp(*configPath)
	if err != nil {
		return err
	}
	defer a.close()

	rt, err := a.runtime()
	if err != nil {
		return err
	}
	defer rt.Close()

	entities, rels, err := loadGraph(ctx, rt.Graph, *file)
	if err != nil {
		return err
	}
	a.logger.Info("graph loaded", zap.Int("entities", entities), zap.Int("relationships", rels))

	req := rag.GraphRequest{Query: *query, Seeds: splitList(*seeds), MaxPaths: *maxPaths}
	if *hops >= 0 {
		req.MaxHops = hops
	}
	if *direction != "" {
		d, err := rag.ParseDirection(*direction)
		if err != nil {
			return err
		}
		req.Direction = &d
	}

	resp, err := rt.Pipeline.GraphRAG(ctx, req)
	if err != nil {
		return err
	}
	if *asJSON {
		return writeJSON(stdout, resp)
	}
	printGraph(stdout, resp)
	return nil
}

// loadGraph 把 YAML 图文件写入图存储，返回实体数与关系数
func loadGraph(ctx context.Context, store rag.GraphStore, path string) (int, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, 0, fmt.Errorf("read graph file: %w", err)
	}
	var g graphFile
	if err := yaml.Unmarshal(data, &g); err != nil {
		return 0, 0, fmt.Errorf("parse graph file %s: %w", path, err)
	}
	for _, e := range g.Entities {
		if err := store.UpsertEntity(ctx, e); err != nil {
			return 0, 0, fmt.Errorf("entity %q: %w", e.ID, err)
		}
	}
	for _, r := range g.Relationships {
		if err := store.CreateRelationship(ctx, r); err != nil {
			return 0, 0, fmt.Errorf("relationship %s -[%s]-> %s: %w", r.Source, r.Type, r.Target, err)
		}
	}
	return len(g.Entities), len(g.Relationships), nil
}

// flagSet 参数是否在命令行上显式给出
func flagSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
