package rag

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"
)

var (
	// 回复分隔符：Outlook 原始邮件块、Gmail "On ... wrote:"、转发头
	replyDelimiters = []*regexp.Regexp{
		regexp.MustCompile(`(?m)^[ \t]*-{2,}[ \t]*Original Message[ \t]*-{2,}[ \t]*$`),
		regexp.MustCompile(`(?m)^[ \t]*On [^\n]{1,200}wrote:[ \t]*$`),
		regexp.MustCompile(`(?m)^From:[ \t][^\n]+$`),
	}

	emailHeaderLine = regexp.MustCompile(`^(?i)(from|to|cc|sent|date|subject):[ \t]*(.*)$`)

	signaturePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?m)^--[ \t]*$`),
		regexp.MustCompile(`(?m)^Sent from my \w+`),
		regexp.MustCompile(`(?mi)^[ \t]*(best regards|kind regards|regards|sincerely|thanks|thank you|cheers),?[ \t]*$`),
		regexp.MustCompile(`(?m)^_{3,}[ \t]*$`),
	}

	extraBlankLines = regexp.MustCompile(`\n{3,}`)
)

// emailMessage 线程中的一封邮件
type emailMessage struct {
	span    Span // 原文字符区间
	headers map[string]string
	body    string
}

// emailThreadChunking 每封邮件一个块，块首注入 [Subject/From/Date] 上下文头
func (c *DocumentChunker) emailThreadChunking(doc Document) []chunkDraft {
	messages := c.splitThread(doc)

	var drafts []chunkDraft
	for i, msg := range messages {
		if msg.body == "" {
			continue
		}
		header := emailContextHeader(doc, msg, i == 0)
		meta := map[string]any{
			"content_type":  "email_message",
			"message_index": i,
		}
		for _, k := range []string{"from", "subject"} {
			if v := msg.headers[k]; v != "" {
				meta[k] = v
			}
		}
		if d := firstNonEmpty(msg.headers["date"], msg.headers["sent"]); d != "" {
			meta["date"] = d
		}

		bodyRunes := []rune(msg.body)
		if len(bodyRunes) <= c.config.ChunkSize {
			drafts = append(drafts, chunkDraft{
				content: header + msg.body,
				span:    msg.span,
				parent:  -1,
				meta:    meta,
			})
			continue
		}

		// 超长邮件在正文内递归切分，每段保留上下文头
		spans := c.splitRecursive(bodyRunes, 0, len(bodyRunes), 0)
		for j, piece := range c.applyOverlap(bodyRunes, spans) {
			pm := make(map[string]any, len(meta)+1)
			for k, v := range meta {
				pm[k] = v
			}
			pm["part"] = j
			drafts = append(drafts, chunkDraft{
				content: header + piece.content,
				span:    msg.span,
				overlap: piece.overlap,
				parent:  -1,
				meta:    pm,
			})
		}
	}
	return drafts
}

// splitThread 按线程边界切分；结构提示优先，越界时回退到正则
func (c *DocumentChunker) splitThread(doc Document) []emailMessage {
	text := doc.Content
	total := len([]rune(text))

	var bounds []int // 字节偏移
	if len(doc.Hints.ThreadBoundaries) > 0 {
		if err := validateOffsets(doc.Hints.ThreadBoundaries, total); err != nil {
			c.logger.Warn("thread boundary hints ignored",
				zap.Error(errMalformed(doc.ID, "%v", err)))
		} else {
			for _, b := range doc.Hints.ThreadBoundaries {
				bounds = append(bounds, byteIndex(text, b))
			}
		}
	}
	if bounds == nil {
		for _, re := range replyDelimiters {
			for _, loc := range re.FindAllStringIndex(text, -1) {
				bounds = append(bounds, loc[0])
			}
		}
	}

	bounds = append(bounds, 0, len(text))
	sort.Ints(bounds)
	bounds = uniqueInts(bounds)

	var messages []emailMessage
	for i := 0; i+1 < len(bounds); i++ {
		seg := text[bounds[i]:bounds[i+1]]
		headers, body := parseEmailSegment(seg)
		if c.config.StripSignatures {
			body = stripSignature(body)
		}
		body = strings.TrimSpace(extraBlankLines.ReplaceAllString(body, "\n\n"))
		messages = append(messages, emailMessage{
			span:    Span{Start: runeIndex(text, bounds[i]), End: runeIndex(text, bounds[i+1])},
			headers: headers,
			body:    body,
		})
	}
	return messages
}

// parseEmailSegment 读取段首的邮件头，并去掉引用行与分隔行
func parseEmailSegment(seg string) (map[string]string, string) {
	headers := make(map[string]string)
	lines := strings.Split(seg, "\n")

	i := 0
	for ; i < len(lines); i++ {
		line := strings.TrimRight(lines[i], "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" && len(headers) == 0 {
			continue
		}
		if isDelimiterLine(line) {
			continue
		}
		m := emailHeaderLine.FindStringSubmatch(line)
		if m == nil {
			break
		}
		key := strings.ToLower(m[1])
		if _, seen := headers[key]; !seen {
			headers[key] = strings.TrimSpace(m[2])
		}
	}

	var body []string
	for _, line := range lines[i:] {
		line = strings.TrimRight(line, "\r")
		if strings.HasPrefix(strings.TrimLeft(line, " \t"), ">") {
			continue
		}
		if isDelimiterLine(line) {
			continue
		}
		body = append(body, line)
	}
	return headers, strings.Join(body, "\n")
}

func isDelimiterLine(line string) bool {
	return replyDelimiters[0].MatchString(line) || replyDelimiters[1].MatchString(line)
}

// stripSignature 从最早出现的签名标记处截断
func stripSignature(body string) string {
	cut := len(body)
	for _, re := range signaturePatterns {
		if loc := re.FindStringIndex(body); loc != nil && loc[0] < cut {
			cut = loc[0]
		}
	}
	return body[:cut]
}

func emailContextHeader(doc Document, msg emailMessage, first bool) string {
	subject := msg.headers["subject"]
	if subject == "" {
		subject = metaString(doc.Metadata, "subject")
	}
	from := msg.headers["from"]
	date := firstNonEmpty(msg.headers["date"], msg.headers["sent"])
	if first {
		from = firstNonEmpty(from, metaString(doc.Metadata, "sender"))
		date = firstNonEmpty(date, metaString(doc.Metadata, "timestamp"))
	}

	var parts []string
	if subject != "" {
		parts = append(parts, fmt.Sprintf("[Subject: %s]", subject))
	}
	if from != "" {
		parts = append(parts, fmt.Sprintf("[From: %s]", from))
	}
	if date != "" {
		parts = append(parts, fmt.Sprintf("[Date: %s]", date))
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, " ") + "\n\n"
}

func metaString(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	if v, ok := m[key]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return ""
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func validateOffsets(offsets []int, total int) error {
	for _, o := range offsets {
		if o < 0 || o > total {
			return fmt.Errorf("offset %d outside [0, %d]", o, total)
		}
	}
	return nil
}

// byteIndex 把字符偏移转换为字节偏移
func byteIndex(s string, runeOff int) int {
	n := 0
	for i := range s {
		if n == runeOff {
			return i
		}
		n++
	}
	return len(s)
}

func uniqueInts(sorted []int) []int {
	out := sorted[:0]
	for i, v := range sorted {
		if i == 0 || v != sorted[i-1] {
			out = append(out, v)
		}
	}
	return out
}
