package rag

import (
	"fmt"

	"go.uber.org/zap"

	lltok "github.com/BaSui01/ragcore/llm/tokenizer"
)

// LLMTokenizerAdapter 将 llm/tokenizer.Tokenizer 适配为分块使用的 Tokenizer。
// 底层出错时回退到 SimpleTokenizer 并记录警告。
type LLMTokenizerAdapter struct {
	inner    lltok.Tokenizer
	fallback SimpleTokenizer
	logger   *zap.Logger
}

// NewLLMTokenizerAdapter 创建适配器
func NewLLMTokenizerAdapter(inner lltok.Tokenizer, logger *zap.Logger) *LLMTokenizerAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMTokenizerAdapter{inner: inner, logger: logger.With(zap.String("component", "tokenizer"))}
}

// CountTokens 返回文本的 token 数
func (a *LLMTokenizerAdapter) CountTokens(text string) int {
	count, err := a.inner.CountTokens(text)
	if err != nil {
		a.logger.Warn("token count failed, falling back to estimate",
			zap.String("tokenizer", a.inner.Name()),
			zap.Error(err))
		return a.fallback.CountTokens(text)
	}
	return count
}

// NewTokenizer 按种类（estimator / tiktoken）创建分块分词器
func NewTokenizer(kind, model string, logger *zap.Logger) (Tokenizer, error) {
	tok, err := lltok.New(kind, model)
	if err != nil {
		return nil, fmt.Errorf("create tokenizer: %w", err)
	}
	return NewLLMTokenizerAdapter(tok, logger), nil
}
