package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/BaSui01/ragcore/rag"
)

const previewRunes = 72

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printChunks(w io.Writer, chunks []rag.Chunk) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DOCUMENT\tPOS\tSTRATEGY\tCHARS\tTOKENS\tPREVIEW")
	for _, c := range chunks {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%d\t%d\t%s\n",
			c.DocumentID, c.Position, c.Strategy, utf8.RuneCountInString(c.Content), c.TokenCount, preview(c.Content))
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d chunks\n", len(chunks))
}

func printSearch(w io.Writer, resp *rag.SearchResponse) {
	fmt.Fprintf(w, "Query: %s\n", resp.Query)
	if resp.HypotheticalDocument != "" {
		fmt.Fprintf(w, "Hypothetical document: %s\n", preview(resp.HypotheticalDocument))
	}
	fmt.Fprintln(w)
	printHits(w, resp.Results)
	fmt.Fprintln(w)
	printReport(w, resp.Report)
}

func printHits(w io.Writer, hits []rag.SearchHit) {
	if len(hits) == 0 {
		fmt.Fprintln(w, "No results.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tSCORE\tFUSED\tDOCUMENT\tSOURCES\tPREVIEW")
	for _, h := range hits {
		sources := make([]string, len(h.Sources))
		for i, s := range h.Sources {
			sources[i] = string(s)
		}
		fmt.Fprintf(tw, "%d\t%.3f\t%.3f\t%s\t%s\t%s\n",
			h.Rank, h.Score, h.FusedScore, h.DocumentID, strings.Join(sources, "+"), preview(h.Content))
	}
	tw.Flush()
}

func printReport(w io.Writer, report rag.SignalReport) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STAGE\tSTATUS\tREASON\tDURATION")
	for _, o := range report.Stages {
		reason := o.Reason
		if reason == "" {
			reason = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", o.Stage, o.Status, reason, o.Duration)
	}
	tw.Flush()
}

func printGraph(w io.Writer, resp *rag.GraphResponse) {
	fmt.Fprintf(w, "Seeds: %s\n", strings.Join(resp.Seeds, ", "))
	if len(resp.MissingSeeds) > 0 {
		fmt.Fprintf(w, "Missing seeds: %s\n", strings.Join(resp.MissingSeeds, ", "))
	}
	if resp.Partial {
		fmt.Fprintln(w, "Traversal stopped at the path limit; results are partial.")
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, resp.Context)
	fmt.Fprintln(w)
	printReport(w, resp.Report)
}

func printAnswer(w io.Writer, resp *rag.AnswerResponse) {
	if resp.Answer != "" {
		fmt.Fprintf(w, "Answer:\n%s\n\n", resp.Answer)
	} else {
		fmt.Fprintln(w, "No answer generated; showing evidence only.")
		fmt.Fprintln(w)
	}
	printHits(w, resp.Sources)
	if resp.Graph != nil && len(resp.Graph.Paths) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, resp.Graph.Context)
	}
	fmt.Fprintln(w)
	printReport(w, resp.Report)
}

// preview 单行预览，超长截断
func preview(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= previewRunes {
		return s
	}
	r := []rune(s)
	return string(r[:previewRunes-3]) + "..."
}
