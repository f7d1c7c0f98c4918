package rag

// recursiveSeparators 分隔符优先级：段落 > 句子 > 行 > 单词
var recursiveSeparators = [][]string{
	{"\n\n"},
	{". ", "! ", "? ", "。", "！", "？"},
	{"\n"},
	{" ", "\t"},
}

// recursiveChunking 递归分块
func (c *DocumentChunker) recursiveChunking(doc Document) []chunkDraft {
	runes := []rune(doc.Content)
	spans := c.splitRecursive(runes, 0, len(runes), 0)
	return c.applyOverlap(runes, spans)
}

// splitRecursive 切分 runes[start:end]，返回首尾相接的区间。
// 超长片段使用下一级分隔符继续切；所有分隔符用尽后原样输出。
func (c *DocumentChunker) splitRecursive(runes []rune, start, end, level int) []Span {
	size := c.config.ChunkSize
	if end-start <= size {
		return []Span{{Start: start, End: end}}
	}
	if level >= len(recursiveSeparators) {
		if c.config.HardSplit {
			return hardSplit(start, end, size)
		}
		return []Span{{Start: start, End: end}}
	}

	pieces := splitKeepSeparators(runes, start, end, recursiveSeparators[level])
	if len(pieces) <= 1 {
		return c.splitRecursive(runes, start, end, level+1)
	}

	out := make([]Span, 0, len(pieces))
	for _, p := range pieces {
		if p.Len() > size {
			out = append(out, c.splitRecursive(runes, p.Start, p.End, level+1)...)
		} else {
			out = append(out, p)
		}
	}
	return c.mergeSpans(runes, out)
}

// mergeSpans 合并相邻小片段直到接近 size；纯空白片段并入前一块
func (c *DocumentChunker) mergeSpans(runes []rune, spans []Span) []Span {
	var out []Span
	var cur Span
	has := false
	for _, s := range spans {
		if !has {
			cur, has = s, true
			continue
		}
		if s.End-cur.Start <= c.config.ChunkSize ||
			isBlank(runes[s.Start:s.End]) ||
			isBlank(runes[cur.Start:cur.End]) {
			cur.End = s.End
			continue
		}
		out = append(out, cur)
		cur = s
	}
	if has {
		out = append(out, cur)
	}
	return out
}

// splitKeepSeparators 在任一分隔符之后切开，分隔符留在前一片段末尾
func splitKeepSeparators(runes []rune, start, end int, seps []string) []Span {
	sepRunes := make([][]rune, len(seps))
	for i, s := range seps {
		sepRunes[i] = []rune(s)
	}

	var out []Span
	pieceStart := start
	for i := start; i < end; {
		matched := 0
		for _, sep := range sepRunes {
			if hasRunePrefix(runes[i:end], sep) {
				matched = len(sep)
				break
			}
		}
		if matched == 0 {
			i++
			continue
		}
		i += matched
		// 连续分隔符归入同一片段
		for i < end {
			more := 0
			for _, sep := range sepRunes {
				if hasRunePrefix(runes[i:end], sep) {
					more = len(sep)
					break
				}
			}
			if more == 0 {
				break
			}
			i += more
		}
		out = append(out, Span{Start: pieceStart, End: i})
		pieceStart = i
	}
	if pieceStart < end {
		out = append(out, Span{Start: pieceStart, End: end})
	}
	return out
}

func hasRunePrefix(r, prefix []rune) bool {
	if len(prefix) > len(r) {
		return false
	}
	for i := range prefix {
		if r[i] != prefix[i] {
			return false
		}
	}
	return true
}

func hardSplit(start, end, size int) []Span {
	var out []Span
	for s := start; s < end; s += size {
		out = append(out, Span{Start: s, End: min(s+size, end)})
	}
	return out
}
