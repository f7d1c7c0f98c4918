package rag

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"
)

var (
	tableSeparatorRow = regexp.MustCompile(`^\s*\|?\s*:?-{3,}:?\s*(\|\s*:?-{3,}:?\s*)*\|?\s*$`)
	multiSpace        = regexp.MustCompile(`\t+| {2,}`)

	invoiceNumberRe = regexp.MustCompile(`(?i)invoice\s*(?:no\.?|number|#)\s*[:#]?\s*([A-Z0-9][A-Z0-9-]*)`)
	invoiceTotalRe  = regexp.MustCompile(`(?i)\btotal(?:\s+amount)?(?:\s+due)?\s*:?\s*([$€£]?\s?\d[\d,]*(?:\.\d{2})?)`)
	invoiceDateRe   = regexp.MustCompile(`(?i)\b(?:invoice\s+)?date\s*:?\s*(\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2}/\d{2,4})`)
	invoiceVendorRe = regexp.MustCompile(`(?im)^\s*(?:vendor|supplier|bill from)\s*:\s*(.+?)\s*$`)
)

// tableRegion 表格区域（字符偏移）与解析出的行；rows[0] 为表头
type tableRegion struct {
	span Span
	rows [][]string
}

// tableAwareChunking 表格与正文分开成块，跨块的表格在每块重复表头
func (c *DocumentChunker) tableAwareChunking(doc Document) []chunkDraft {
	runes := []rune(doc.Content)
	tables := c.detectTables(doc)
	invoice := ExtractInvoiceMetadata(doc.Content)

	var drafts []chunkDraft
	emitProse := func(start, end int) {
		if end <= start || isBlank(runes[start:end]) {
			return
		}
		for _, d := range c.applyOverlap(runes, c.splitRecursive(runes, start, end, 0)) {
			if strings.TrimSpace(d.content) == "" {
				continue
			}
			d.meta = map[string]any{"content_type": "text"}
			drafts = append(drafts, d)
		}
	}

	cursor := 0
	for ti, t := range tables {
		emitProse(cursor, t.span.Start)
		drafts = append(drafts, c.tableDrafts(ti, t)...)
		cursor = t.span.End
	}
	emitProse(cursor, len(runes))

	if len(invoice) > 0 {
		for i := range drafts {
			drafts[i].meta["invoice"] = invoice
		}
	}
	return drafts
}

// tableDrafts 按 size 与 MaxTableRows 把表格分组，保持行序
func (c *DocumentChunker) tableDrafts(index int, t tableRegion) []chunkDraft {
	if len(t.rows) == 0 {
		return nil
	}
	header, body := t.rows[0], t.rows[1:]
	maxRows := c.config.MaxTableRows
	if maxRows <= 0 {
		maxRows = len(body) + 1
	}

	newDraft := func(rowStart, rowEnd int, rows [][]string) chunkDraft {
		return chunkDraft{
			content: renderMarkdownTable(header, rows),
			span:    t.span,
			parent:  -1,
			meta: map[string]any{
				"content_type": "table",
				"table_index":  index,
				"row_start":    rowStart,
				"row_end":      rowEnd,
				"columns":      header,
			},
		}
	}

	if len(body) == 0 {
		return []chunkDraft{newDraft(0, 0, nil)}
	}

	var drafts []chunkDraft
	start := 0
	for start < len(body) {
		end := start + 1
		for end < len(body) && end-start < maxRows &&
			len([]rune(renderMarkdownTable(header, body[start:end+1]))) <= c.config.ChunkSize {
			end++
		}
		drafts = append(drafts, newDraft(start+1, end, body[start:end]))
		start = end
	}
	return drafts
}

// renderMarkdownTable 渲染为 markdown 表格
func renderMarkdownTable(header []string, rows [][]string) string {
	var b strings.Builder
	writeRow := func(cells []string) {
		b.WriteString("|")
		for i := range header {
			cell := ""
			if i < len(cells) {
				cell = strings.ReplaceAll(cells[i], "|", "\\|")
			}
			b.WriteString(" ")
			b.WriteString(cell)
			b.WriteString(" |")
		}
		b.WriteString("\n")
	}
	writeRow(header)
	b.WriteString("|")
	for range header {
		b.WriteString(" --- |")
	}
	b.WriteString("\n")
	for _, r := range rows {
		writeRow(r)
	}
	return strings.TrimRight(b.String(), "\n")
}

// detectTables 使用结构提示；没有提示或提示非法时扫描 markdown 管道表格
func (c *DocumentChunker) detectTables(doc Document) []tableRegion {
	runes := []rune(doc.Content)
	if len(doc.Hints.Tables) > 0 {
		if regions, err := tablesFromHints(runes, doc.Hints.Tables); err != nil {
			c.logger.Warn("table hints ignored",
				zap.Error(errMalformed(doc.ID, "%v", err)))
		} else {
			return regions
		}
	}
	return detectMarkdownTables(doc.Content)
}

func tablesFromHints(runes []rune, hints []TableHint) ([]tableRegion, error) {
	sorted := append([]TableHint(nil), hints...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	regions := make([]tableRegion, 0, len(sorted))
	prevEnd := 0
	for _, h := range sorted {
		if h.Start < prevEnd || h.End <= h.Start || h.End > len(runes) {
			return nil, fmt.Errorf("table region [%d, %d) invalid", h.Start, h.End)
		}
		rows := h.Rows
		if len(rows) == 0 {
			rows = parseTableText(string(runes[h.Start:h.End]))
		}
		regions = append(regions, tableRegion{span: Span{Start: h.Start, End: h.End}, rows: rows})
		prevEnd = h.End
	}
	return regions, nil
}

// detectMarkdownTables 连续的管道行且第二行为分隔行时视为表格
func detectMarkdownTables(text string) []tableRegion {
	lines := strings.SplitAfter(text, "\n")
	var regions []tableRegion

	pos := 0
	starts := make([]int, len(lines))
	for i, l := range lines {
		starts[i] = pos
		pos += len([]rune(l))
	}

	for i := 0; i+1 < len(lines); i++ {
		if !isPipeRow(lines[i]) || !tableSeparatorRow.MatchString(strings.TrimRight(lines[i+1], "\r\n")) {
			continue
		}
		j := i + 2
		for j < len(lines) && isPipeRow(lines[j]) {
			j++
		}
		var block strings.Builder
		for _, l := range lines[i:j] {
			block.WriteString(l)
		}
		end := pos
		if j < len(lines) {
			end = starts[j]
		}
		regions = append(regions, tableRegion{
			span: Span{Start: starts[i], End: end},
			rows: parseTableText(block.String()),
		})
		i = j - 1
	}
	return regions
}

func isPipeRow(line string) bool {
	return strings.Count(strings.TrimSpace(line), "|") >= 2
}

// parseTableText 解析表格文本：管道行按 | 拆分，其余按制表符或多个空格拆分
func parseTableText(text string) [][]string {
	var rows [][]string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || tableSeparatorRow.MatchString(line) {
			continue
		}
		var cells []string
		if strings.Contains(line, "|") {
			line = strings.TrimSuffix(strings.TrimPrefix(line, "|"), "|")
			cells = strings.Split(line, "|")
		} else {
			cells = multiSpace.Split(line, -1)
		}
		for i := range cells {
			cells[i] = strings.TrimSpace(cells[i])
		}
		rows = append(rows, cells)
	}
	return rows
}

// ExtractInvoiceMetadata 提取发票号、总额、日期与供应商
func ExtractInvoiceMetadata(text string) map[string]string {
	out := make(map[string]string)
	if m := invoiceNumberRe.FindStringSubmatch(text); m != nil {
		out["invoice_number"] = m[1]
	}
	if m := invoiceTotalRe.FindStringSubmatch(text); m != nil {
		out["total"] = strings.TrimSpace(m[1])
	}
	if m := invoiceDateRe.FindStringSubmatch(text); m != nil {
		out["date"] = m[1]
	}
	if m := invoiceVendorRe.FindStringSubmatch(text); m != nil {
		out["vendor"] = m[1]
	}
	return out
}
