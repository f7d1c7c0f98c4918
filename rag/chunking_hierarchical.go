package rag

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"go.uber.org/zap"
)

var (
	markdownHeader = regexp.MustCompile(`^(#{1,6})[ \t]+(.+?)[ \t#]*$`)
	numberedHeader = regexp.MustCompile(`^(\d+(?:\.\d+)*)\.?[ \t]+(\S.*)$`)
)

// headerLine 识别出的标题行，偏移为字符偏移
type headerLine struct {
	start, end int // 标题行区间（不含换行）
	level      int
	title      string
}

// section 标题树节点
type section struct {
	header    headerLine
	bodyStart int
	bodyEnd   int
	parent    int
}

// hierarchicalChunking 标题层级分块：每节输出一个标题块，正文块带祖先路径
func (c *DocumentChunker) hierarchicalChunking(doc Document) []chunkDraft {
	runes := []rune(doc.Content)
	headers := c.detectHeaders(doc)
	if len(headers) == 0 {
		return c.applyOverlap(runes, c.splitRecursive(runes, 0, len(runes), 0))
	}

	sections := make([]section, len(headers))
	var stack []int
	for i, h := range headers {
		for len(stack) > 0 && headers[stack[len(stack)-1]].level >= h.level {
			stack = stack[:len(stack)-1]
		}
		parent := -1
		if len(stack) > 0 {
			parent = stack[len(stack)-1]
		}
		bodyEnd := len(runes)
		if i+1 < len(headers) {
			bodyEnd = headers[i+1].start
		}
		sections[i] = section{header: h, bodyStart: h.end, bodyEnd: bodyEnd, parent: parent}
		stack = append(stack, i)
	}

	var drafts []chunkDraft

	// 第一个标题之前的引言
	if first := headers[0].start; first > 0 && !isBlank(runes[:first]) {
		for _, d := range trimDrafts(runes, c.applyOverlap(runes, c.splitRecursive(runes, 0, first, 0))) {
			d.meta = map[string]any{"content_type": "text", "section": "", "level": 0}
			drafts = append(drafts, d)
		}
	}

	headerDraft := make([]int, len(sections))
	for i, s := range sections {
		ancestors := sectionPath(sections, s.parent)
		parentDraft := -1
		if s.parent >= 0 {
			parentDraft = headerDraft[s.parent]
		}

		headerDraft[i] = len(drafts)
		drafts = append(drafts, chunkDraft{
			content:   strings.TrimSpace(string(runes[s.header.start:s.header.end])),
			span:      Span{Start: s.header.start, End: s.header.end},
			parent:    parentDraft,
			ancestors: ancestors,
			meta: map[string]any{
				"content_type": "header",
				"section":      s.header.title,
				"level":        s.header.level,
			},
		})

		if s.bodyEnd <= s.bodyStart || isBlank(runes[s.bodyStart:s.bodyEnd]) {
			continue
		}

		path := append(append([]string{}, ancestors...), s.header.title)
		prefix := "Context: " + strings.Join(path, " > ") + "\n\n"
		for _, d := range trimDrafts(runes, c.applyOverlap(runes, c.splitRecursive(runes, s.bodyStart, s.bodyEnd, 0))) {
			d.content = prefix + d.content
			d.parent = headerDraft[i]
			d.ancestors = path
			d.meta = map[string]any{
				"content_type": "text",
				"section":      s.header.title,
				"level":        s.header.level,
			}
			drafts = append(drafts, d)
		}
	}
	return drafts
}

// trimDrafts 去掉块首尾空白并同步收缩区间，重叠量按收缩后的区间与前一块重算
func trimDrafts(runes []rune, drafts []chunkDraft) []chunkDraft {
	out := drafts[:0]
	prevEnd := -1
	for _, d := range drafts {
		start, end := d.span.Start, d.span.End
		for start < end && unicode.IsSpace(runes[start]) {
			start++
		}
		for end > start && unicode.IsSpace(runes[end-1]) {
			end--
		}
		if start == end {
			continue
		}
		d.span = Span{Start: start, End: end}
		d.content = string(runes[start:end])
		d.overlap = 0
		if prevEnd > start {
			d.overlap = min(prevEnd, end) - start
		}
		prevEnd = end
		out = append(out, d)
	}
	return out
}

func sectionPath(sections []section, idx int) []string {
	var path []string
	for idx >= 0 {
		path = append([]string{sections[idx].header.title}, path...)
		idx = sections[idx].parent
	}
	return path
}

// detectHeaders 优先使用结构提示，提示越界时回退到启发式识别
func (c *DocumentChunker) detectHeaders(doc Document) []headerLine {
	if len(doc.Hints.Headers) > 0 {
		total := len([]rune(doc.Content))
		offsets := make([]int, len(doc.Hints.Headers))
		for i, h := range doc.Hints.Headers {
			offsets[i] = h.Offset
		}
		if err := validateOffsets(offsets, total-1); err != nil {
			c.logger.Warn("header hints ignored",
				zap.Error(errMalformed(doc.ID, "%v", err)))
		} else {
			return headersFromHints(doc.Content, doc.Hints.Headers)
		}
	}
	return detectHeadersHeuristic(doc.Content)
}

func headersFromHints(text string, hints []HeaderHint) []headerLine {
	runes := []rune(text)
	sorted := append([]HeaderHint(nil), hints...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Offset < sorted[j].Offset })

	var out []headerLine
	last := -1
	for _, h := range sorted {
		start := h.Offset
		for start > 0 && runes[start-1] != '\n' {
			start--
		}
		end := start
		for end < len(runes) && runes[end] != '\n' {
			end++
		}
		if start <= last { // 同一行的多个提示只取第一个
			continue
		}
		title := strings.TrimSpace(h.Title)
		if title == "" {
			title = strings.TrimSpace(strings.TrimLeft(string(runes[start:end]), "# "))
		}
		level := h.Level
		if level < 1 {
			level = 1
		}
		out = append(out, headerLine{start: start, end: end, level: level, title: title})
		last = start
	}
	return out
}

// detectHeadersHeuristic 识别 markdown 标题、编号标题与全大写标题；跳过代码块
func detectHeadersHeuristic(text string) []headerLine {
	var out []headerLine
	inFence := false
	pos := 0 // 字符偏移
	for _, line := range strings.SplitAfter(text, "\n") {
		lineLen := len([]rune(line))
		content := strings.TrimRight(line, "\r\n")
		trimmed := strings.TrimSpace(content)

		if strings.HasPrefix(trimmed, "```") {
			inFence = !inFence
		} else if !inFence && trimmed != "" {
			if level, title, ok := classifyHeader(trimmed); ok {
				out = append(out, headerLine{
					start: pos,
					end:   pos + len([]rune(content)),
					level: level,
					title: title,
				})
			}
		}
		pos += lineLen
	}
	return out
}

func classifyHeader(line string) (int, string, bool) {
	if m := markdownHeader.FindStringSubmatch(line); m != nil {
		return len(m[1]), strings.TrimSpace(m[2]), true
	}
	if m := numberedHeader.FindStringSubmatch(line); m != nil {
		title := m[2]
		if len(title) <= 80 && !strings.ContainsAny(title[len(title)-1:], ".:;,") &&
			unicode.IsUpper([]rune(title)[0]) {
			return strings.Count(m[1], ".") + 1, m[1] + " " + title, true
		}
		return 0, "", false
	}
	if isCapsHeading(line) {
		return 1, line, true
	}
	return 0, "", false
}

func isCapsHeading(line string) bool {
	if len(line) < 3 || len(line) > 80 || strings.HasPrefix(line, "|") || strings.HasSuffix(line, ".") {
		return false
	}
	upper := 0
	for _, r := range line {
		if unicode.IsLetter(r) && !unicode.IsUpper(r) {
			return false
		}
		if unicode.IsUpper(r) {
			upper++
		}
	}
	return upper >= 3
}
