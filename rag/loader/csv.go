package loader

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/BaSui01/ragcore/rag"
)

// CSVLoaderConfig configures the CSV loader.
type CSVLoaderConfig struct {
	// Delimiter is the field separator. Defaults to ','.
	Delimiter rune
	// DocType is the type given to loaded documents. Defaults to invoice, which
	// routes them to the table-aware chunker.
	DocType rag.DocumentType
	// ContentColumns lists column names (from the header) to keep.
	// If empty, all columns are kept.
	ContentColumns []string
}

// CSVLoader loads a CSV file as one Document holding a pipe table. The first
// row is the header. The table region and its parsed rows are passed on as a
// table hint, so cells containing pipes survive chunking intact.
type CSVLoader struct {
	config CSVLoaderConfig
}

// NewCSVLoader creates a CSVLoader with the given config.
func NewCSVLoader(config CSVLoaderConfig) *CSVLoader {
	if config.Delimiter == 0 {
		config.Delimiter = ','
	}
	if config.DocType == "" {
		config.DocType = rag.DocTypeInvoice
	}
	return &CSVLoader{config: config}
}

// Load reads a CSV file and returns a single Document.
func (l *CSVLoader) Load(ctx context.Context, source string) ([]rag.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(source)
	if err != nil {
		return nil, fmt.Errorf("csv loader: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.Comma = l.config.Delimiter
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csv loader: parsing %s: %w", source, err)
	}
	if len(records) < 2 {
		// Only header or empty file.
		return []rag.Document{}, nil
	}

	indices := l.resolveContentColumns(records[0])
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		row := make([]string, len(indices))
		for i, idx := range indices {
			if idx < len(rec) {
				row[i] = strings.TrimSpace(rec[idx])
			}
		}
		rows = append(rows, row)
	}

	content := renderPipeTable(rows)
	meta := sourceMetadata(source, "text/csv", "csv")
	meta["columns"] = rows[0]
	meta["row_count"] = len(rows) - 1

	doc := rag.Document{
		ID:      documentID(source),
		Content: content,
		Type:    l.config.DocType,
		Hints: rag.StructuralHints{Tables: []rag.TableHint{{
			Start: 0,
			End:   utf8.RuneCountInString(content),
			Rows:  rows,
		}}},
		Metadata: meta,
	}
	return []rag.Document{doc}, nil
}

// renderPipeTable writes rows as a markdown table; rows[0] is the header.
func renderPipeTable(rows [][]string) string {
	var b strings.Builder
	writeRow := func(cells []string) {
		b.WriteString("|")
		for _, c := range cells {
			c = strings.ReplaceAll(c, "\n", " ")
			c = strings.ReplaceAll(c, "|", "\\|")
			b.WriteString(" " + c + " |")
		}
		b.WriteString("\n")
	}
	writeRow(rows[0])
	sep := make([]string, len(rows[0]))
	for i := range sep {
		sep[i] = "---"
	}
	writeRow(sep)
	for _, r := range rows[1:] {
		writeRow(r)
	}
	return b.String()
}

// resolveContentColumns returns column indices to include in content.
func (l *CSVLoader) resolveContentColumns(header []string) []int {
	all := func() []int {
		indices := make([]int, len(header))
		for i := range header {
			indices[i] = i
		}
		return indices
	}
	if len(l.config.ContentColumns) == 0 {
		return all()
	}

	wanted := make(map[string]bool, len(l.config.ContentColumns))
	for _, col := range l.config.ContentColumns {
		wanted[strings.ToLower(col)] = true
	}

	var indices []int
	for i, h := range header {
		if wanted[strings.ToLower(strings.TrimSpace(h))] {
			indices = append(indices, i)
		}
	}
	// Fallback: if no columns matched, use all.
	if len(indices) == 0 {
		return all()
	}
	return indices
}

// SupportedTypes returns the extensions handled by CSVLoader.
func (l *CSVLoader) SupportedTypes() []string {
	return []string{".csv"}
}
