package rag

import "fmt"

// DocumentType 文档类型，决定 HyDE 模板与默认分块策略
type DocumentType string

const (
	DocTypeGeneric    DocumentType = "generic"
	DocTypeEmail      DocumentType = "email"
	DocTypeSOP        DocumentType = "sop"
	DocTypeInvoice    DocumentType = "invoice"
	DocTypeMasterData DocumentType = "master_data"
)

// ParseDocumentType 解析文档类型，空字符串视为 generic
func ParseDocumentType(s string) (DocumentType, error) {
	switch DocumentType(s) {
	case "", DocTypeGeneric:
		return DocTypeGeneric, nil
	case DocTypeEmail, DocTypeSOP, DocTypeInvoice, DocTypeMasterData:
		return DocumentType(s), nil
	default:
		return "", fmt.Errorf("parse document type: %w", errUnknownDocType(s))
	}
}

// Document 入库后的只读文档
type Document struct {
	ID       string          `json:"id"`
	Content  string          `json:"content"`
	Type     DocumentType    `json:"type"`
	Hints    StructuralHints `json:"hints"`
	Metadata map[string]any  `json:"metadata,omitempty"`
}

// StructuralHints 解析阶段给出的结构提示，偏移量均为字符（rune）偏移
type StructuralHints struct {
	Headers          []HeaderHint `json:"headers,omitempty"`
	Tables           []TableHint  `json:"tables,omitempty"`
	ThreadBoundaries []int        `json:"thread_boundaries,omitempty"`
}

// HeaderHint 标题位置
type HeaderHint struct {
	Offset int    `json:"offset"` // 标题行起始偏移
	Level  int    `json:"level"`
	Title  string `json:"title"`
}

// TableHint 表格区域；Rows 为空时从区域文本解析
type TableHint struct {
	Start int        `json:"start"`
	End   int        `json:"end"`
	Rows  [][]string `json:"rows,omitempty"`
}

// Span 字符区间 [Start, End)
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len 区间长度
func (s Span) Len() int { return s.End - s.Start }

// Chunk 文档块
type Chunk struct {
	ID         string           `json:"id"`
	DocumentID string           `json:"document_id"`
	Position   int              `json:"position"`
	Content    string           `json:"content"`
	Span       Span             `json:"span"`
	Strategy   ChunkingStrategy `json:"strategy"`
	ParentID   string           `json:"parent_id,omitempty"`
	Ancestors  []string         `json:"ancestors,omitempty"`
	Overlap    int              `json:"overlap"`
	TokenCount int              `json:"token_count"`
	Metadata   map[string]any   `json:"metadata,omitempty"`
	Generation string           `json:"generation,omitempty"`
}

// SignalSource 召回信号来源
type SignalSource string

const (
	SourceDense  SignalSource = "dense"
	SourceSparse SignalSource = "sparse"
)

// Candidate 单一信号的召回候选
type Candidate struct {
	ChunkID string       `json:"chunk_id"`
	Score   float64      `json:"score"`
	Source  SignalSource `json:"source"`
	Rank    int          `json:"rank"`
}

// FusedResult 融合后的候选
type FusedResult struct {
	ChunkID     string         `json:"chunk_id"`
	DenseScore  float64        `json:"dense_score"`
	SparseScore float64        `json:"sparse_score"`
	FusedScore  float64        `json:"fused_score"`
	Sources     []SignalSource `json:"sources"`
}

// RerankedResult 最终排序结果
type RerankedResult struct {
	ChunkID    string  `json:"chunk_id"`
	Score      float64 `json:"score"`
	Rank       int     `json:"rank"`
	FusedScore float64 `json:"fused_score"`
}

// ScoredID 索引返回的原始命中
type ScoredID struct {
	ID    string
	Score float64
}
