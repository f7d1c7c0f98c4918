package tokenizer

import (
	"strings"
)

// Tokenizer 统一的 token 计数接口
type Tokenizer interface {
	// CountTokens 返回文本的 token 数
	CountTokens(text string) (int, error)

	// Encode 将文本转换为 token ID 列表
	Encode(text string) ([]int, error)

	// Decode 将 token ID 转换回文本
	Decode(tokens []int) (string, error)

	// MaxTokens 模型的最大上下文长度
	MaxTokens() int

	// Name 分词器名称
	Name() string
}

// 分词器种类
const (
	KindTiktoken  = "tiktoken"
	KindEstimator = "estimator"
)

// New 按种类创建分词器。空种类或 estimator 返回 CJK 感知的估算器，
// tiktoken 按模型选择编码，未知模型回退到 cl100k_base。
func New(kind, model string) (Tokenizer, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", KindEstimator:
		return NewEstimatorTokenizer(model, 0), nil
	case KindTiktoken:
		return NewTiktokenTokenizer(model)
	default:
		return nil, &UnknownKindError{Kind: kind}
	}
}

// UnknownKindError 不支持的分词器种类
type UnknownKindError struct {
	Kind string
}

func (e *UnknownKindError) Error() string {
	return "unknown tokenizer kind: " + e.Kind
}
