package loader

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/BaSui01/ragcore/rag"
)

// MarkdownLoader loads a Markdown file as one Document and records every ATX
// heading as a header hint, so the hierarchical chunker can build its section
// tree without re-parsing. An optional YAML front matter block may set "id",
// "type" and arbitrary metadata.
//
// Documents with headings default to the SOP type; flat files are generic.
type MarkdownLoader struct{}

// NewMarkdownLoader creates a MarkdownLoader.
func NewMarkdownLoader() *MarkdownLoader {
	return &MarkdownLoader{}
}

// Load reads a Markdown file.
func (l *MarkdownLoader) Load(ctx context.Context, source string) ([]rag.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("markdown loader: %w", err)
	}

	front, body, err := splitFrontMatter(string(data))
	if err != nil {
		return nil, fmt.Errorf("markdown loader: front matter in %s: %w", source, err)
	}
	if strings.TrimSpace(body) == "" {
		return []rag.Document{}, nil
	}

	meta := sourceMetadata(source, "text/markdown", "markdown")
	doc := rag.Document{
		ID:      documentID(source),
		Content: body,
		Hints:   rag.StructuralHints{Headers: headerHints(body)},
	}
	if len(doc.Hints.Headers) > 0 {
		doc.Type = rag.DocTypeSOP
	} else {
		doc.Type = rag.DocTypeGeneric
	}

	for k, v := range front {
		switch k {
		case "id":
			if s := fmt.Sprint(v); s != "" {
				doc.ID = s
			}
		case "type":
			t, err := rag.ParseDocumentType(fmt.Sprint(v))
			if err != nil {
				return nil, fmt.Errorf("markdown loader: %s: %w", source, err)
			}
			doc.Type = t
		default:
			meta[k] = v
		}
	}
	doc.Metadata = meta

	return []rag.Document{doc}, nil
}

// splitFrontMatter separates a leading "---" delimited YAML block.
func splitFrontMatter(text string) (map[string]any, string, error) {
	if !strings.HasPrefix(text, "---\n") && !strings.HasPrefix(text, "---\r\n") {
		return nil, text, nil
	}
	rest := text[strings.Index(text, "\n")+1:]
	end := -1
	for pos := 0; pos < len(rest); {
		nl := strings.IndexByte(rest[pos:], '\n')
		line := rest[pos:]
		if nl >= 0 {
			line = rest[pos : pos+nl]
		}
		if strings.TrimRight(line, "\r") == "---" {
			end = pos
			break
		}
		if nl < 0 {
			break
		}
		pos += nl + 1
	}
	if end < 0 {
		return nil, text, nil
	}

	var front map[string]any
	if err := yaml.Unmarshal([]byte(rest[:end]), &front); err != nil {
		return nil, "", err
	}
	body := rest[end:]
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		body = body[nl+1:]
	} else {
		body = ""
	}
	return front, body, nil
}

// headerHints returns ATX headings outside fenced code blocks, with rune offsets.
func headerHints(body string) []rag.HeaderHint {
	var hints []rag.HeaderHint
	offset := 0
	fenced := false
	for _, line := range strings.SplitAfter(body, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~"):
			fenced = !fenced
		case !fenced:
			if heading, level := parseHeading(line); heading != "" {
				hints = append(hints, rag.HeaderHint{Offset: offset, Level: level, Title: heading})
			}
		}
		offset += utf8.RuneCountInString(line)
	}
	return hints
}

// parseHeading detects ATX-style headings (# Heading).
// Returns the heading text and level (1-6), or ("", 0) if not a heading.
func parseHeading(line string) (heading string, level int) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "#") {
		return "", 0
	}
	for _, ch := range trimmed {
		if ch != '#' {
			break
		}
		level++
	}
	if level < 1 || level > 6 {
		return "", 0
	}
	rest := trimmed[level:]
	if rest != "" && rest[0] != ' ' && rest[0] != '\t' {
		return "", 0
	}
	heading = strings.TrimSpace(strings.TrimRight(strings.TrimSpace(rest), "#"))
	if heading == "" {
		return "", 0
	}
	return heading, level
}

// SupportedTypes returns the extensions handled by MarkdownLoader.
func (l *MarkdownLoader) SupportedTypes() []string {
	return []string{".md", ".markdown"}
}
