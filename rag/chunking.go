package rag

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/BaSui01/ragcore/types"
)

// ChunkingStrategy 分块策略
type ChunkingStrategy string

const (
	ChunkingFixed        ChunkingStrategy = "fixed"              // 固定窗口
	ChunkingRecursive    ChunkingStrategy = "recursive"          // 递归分隔符
	ChunkingEmailThread  ChunkingStrategy = "email_thread_aware" // 邮件线程
	ChunkingHierarchical ChunkingStrategy = "hierarchical"       // 标题层级（SOP）
	ChunkingTableAware   ChunkingStrategy = "table_aware"        // 表格感知（发票）
)

// ParseChunkingStrategy 解析策略名
func ParseChunkingStrategy(s string) (ChunkingStrategy, error) {
	switch st := ChunkingStrategy(s); st {
	case ChunkingFixed, ChunkingRecursive, ChunkingEmailThread, ChunkingHierarchical, ChunkingTableAware:
		return st, nil
	default:
		return "", errUnknownStrategy(st)
	}
}

// StrategyForDocumentType 文档类型对应的默认分块策略
func StrategyForDocumentType(t DocumentType) ChunkingStrategy {
	switch t {
	case DocTypeEmail:
		return ChunkingEmailThread
	case DocTypeSOP:
		return ChunkingHierarchical
	case DocTypeInvoice:
		return ChunkingTableAware
	default:
		return ChunkingRecursive
	}
}

// ChunkingConfig 分块配置，大小与重叠均按字符计
type ChunkingConfig struct {
	Strategy        ChunkingStrategy `json:"strategy"`
	ChunkSize       int              `json:"chunk_size"`
	ChunkOverlap    int              `json:"chunk_overlap"`
	MaxTableRows    int              `json:"max_table_rows"`
	StripSignatures bool             `json:"strip_signatures"`
	// HardSplit 为 true 时，无分隔符的超长单元按字符切开；默认整块输出
	HardSplit bool `json:"hard_split"`
}

// DefaultChunkingConfig 默认分块配置
func DefaultChunkingConfig() ChunkingConfig {
	return ChunkingConfig{
		Strategy:        ChunkingRecursive,
		ChunkSize:       1000,
		ChunkOverlap:    200,
		MaxTableRows:    50,
		StripSignatures: true,
	}
}

// Validate 校验大小与重叠
func (c ChunkingConfig) Validate() error {
	if c.ChunkSize <= 0 {
		return types.ConfigError("chunk_size must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return types.ConfigError("chunk_overlap %d must be in [0, %d)", c.ChunkOverlap, c.ChunkSize)
	}
	if c.MaxTableRows < 0 {
		return types.ConfigError("max_table_rows must be non-negative, got %d", c.MaxTableRows)
	}
	return nil
}

// Tokenizer 分词器接口，只用于填充 Chunk.TokenCount
type Tokenizer interface {
	CountTokens(text string) int
}

// DocumentChunker 文档分块器
type DocumentChunker struct {
	config    ChunkingConfig
	tokenizer Tokenizer
	logger    *zap.Logger
}

// NewDocumentChunker 创建文档分块器
func NewDocumentChunker(config ChunkingConfig, tokenizer Tokenizer, logger *zap.Logger) (*DocumentChunker, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if tokenizer == nil {
		tokenizer = &SimpleTokenizer{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentChunker{
		config:    config,
		tokenizer: tokenizer,
		logger:    logger.With(zap.String("component", "chunker")),
	}, nil
}

// Config 返回分块配置
func (c *DocumentChunker) Config() ChunkingConfig { return c.config }

// ChunkDocument 使用配置中的策略分块
func (c *DocumentChunker) ChunkDocument(ctx context.Context, doc Document) ([]Chunk, error) {
	return c.ChunkWith(ctx, doc, c.config.Strategy)
}

// ChunkWith 使用指定策略分块。结果只取决于输入，空文档返回空切片。
func (c *DocumentChunker) ChunkWith(ctx context.Context, doc Document, strategy ChunkingStrategy) ([]Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(doc.Content) == "" {
		return []Chunk{}, nil
	}

	var drafts []chunkDraft
	switch strategy {
	case ChunkingFixed:
		drafts = c.fixedSizeChunking(doc)
	case ChunkingRecursive:
		drafts = c.recursiveChunking(doc)
	case ChunkingEmailThread:
		drafts = c.emailThreadChunking(doc)
	case ChunkingHierarchical:
		drafts = c.hierarchicalChunking(doc)
	case ChunkingTableAware:
		drafts = c.tableAwareChunking(doc)
	default:
		return nil, fmt.Errorf("chunk document %s: %w", doc.ID, errUnknownStrategy(strategy))
	}

	chunks := c.finalize(doc, strategy, drafts)

	c.logger.Debug("document chunked",
		zap.String("document_id", doc.ID),
		zap.String("strategy", string(strategy)),
		zap.Int("chunks", len(chunks)),
		zap.Int("chunk_size", c.config.ChunkSize),
		zap.Int("overlap", c.config.ChunkOverlap))

	return chunks, nil
}

// chunkDraft 策略输出的中间结果，parent 为 drafts 下标（-1 表示无）
type chunkDraft struct {
	content   string
	span      Span
	overlap   int
	parent    int
	ancestors []string
	meta      map[string]any
}

// ChunkID 块 ID，序号补零以保证字典序与位置一致
func ChunkID(docID string, position int) string {
	return fmt.Sprintf("%s#%04d", docID, position)
}

func (c *DocumentChunker) finalize(doc Document, strategy ChunkingStrategy, drafts []chunkDraft) []Chunk {
	chunks := make([]Chunk, 0, len(drafts))
	for i, d := range drafts {
		meta := make(map[string]any, len(d.meta)+len(doc.Metadata))
		for k, v := range doc.Metadata {
			meta[k] = v
		}
		for k, v := range d.meta {
			meta[k] = v
		}
		ch := Chunk{
			ID:         ChunkID(doc.ID, i),
			DocumentID: doc.ID,
			Position:   i,
			Content:    d.content,
			Span:       d.span,
			Strategy:   strategy,
			Ancestors:  d.ancestors,
			Overlap:    d.overlap,
			TokenCount: c.tokenizer.CountTokens(d.content),
			Metadata:   meta,
		}
		if d.parent >= 0 && d.parent < i {
			ch.ParentID = ChunkID(doc.ID, d.parent)
		}
		chunks = append(chunks, ch)
	}
	return chunks
}

// fixedSizeChunking 固定窗口分块，步长 size-overlap
func (c *DocumentChunker) fixedSizeChunking(doc Document) []chunkDraft {
	runes := []rune(doc.Content)
	size, overlap := c.config.ChunkSize, c.config.ChunkOverlap
	step := size - overlap

	var drafts []chunkDraft
	for start := 0; start < len(runes); start += step {
		end := min(start+size, len(runes))
		ov := 0
		if start > 0 {
			ov = overlap
		}
		drafts = append(drafts, chunkDraft{
			content: string(runes[start:end]),
			span:    Span{Start: start, End: end},
			overlap: ov,
			parent:  -1,
		})
		if end >= len(runes) {
			break
		}
	}
	return drafts
}

// applyOverlap 把前一块末尾的字符复制到当前块头部。
// 重叠量不超过两块中较短者，起点尽量对齐到词边界。
func (c *DocumentChunker) applyOverlap(runes []rune, spans []Span) []chunkDraft {
	drafts := make([]chunkDraft, 0, len(spans))
	for i, s := range spans {
		d := chunkDraft{span: s, parent: -1}
		if i > 0 && c.config.ChunkOverlap > 0 {
			prev := spans[i-1]
			ov := min(c.config.ChunkOverlap, prev.Len(), s.Len())
			start := snapToWordStart(runes, s.Start-ov, s.Start)
			d.span.Start = start
			d.overlap = s.Start - start
		}
		d.content = string(runes[d.span.Start:d.span.End])
		drafts = append(drafts, d)
	}
	return drafts
}

// snapToWordStart 在 [start, limit) 内找到第一个词首；找不到时保留原位置
func snapToWordStart(runes []rune, start, limit int) int {
	if start <= 0 || unicode.IsSpace(runes[start-1]) {
		return start
	}
	for j := start; j < limit; j++ {
		if unicode.IsSpace(runes[j]) {
			return j + 1
		}
	}
	return start
}

func isBlank(runes []rune) bool {
	for _, r := range runes {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

// runeIndex 把字节偏移转换为字符偏移
func runeIndex(s string, byteOff int) int {
	return utf8.RuneCountInString(s[:byteOff])
}

// SimpleTokenizer 简单分词器：英文约 4 字符 / token，CJK 按字计
type SimpleTokenizer struct{}

func (t *SimpleTokenizer) CountTokens(text string) int {
	cjk, other := 0, 0
	for _, r := range text {
		if unicode.Is(unicode.Han, r) {
			cjk++
		} else {
			other++
		}
	}
	return cjk + (other+3)/4
}
