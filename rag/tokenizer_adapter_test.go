package rag

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type stubLLMTokenizer struct {
	count int
	err   error
}

func (s *stubLLMTokenizer) CountTokens(string) (int, error) { return s.count, s.err }
func (s *stubLLMTokenizer) Encode(string) ([]int, error)    { return nil, s.err }
func (s *stubLLMTokenizer) Decode([]int) (string, error)    { return "", s.err }
func (s *stubLLMTokenizer) MaxTokens() int                  { return 4096 }
func (s *stubLLMTokenizer) Name() string                    { return "stub" }

var _ Tokenizer = (*LLMTokenizerAdapter)(nil)

func TestLLMTokenizerAdapter_CountTokens(t *testing.T) {
	a := NewLLMTokenizerAdapter(&stubLLMTokenizer{count: 42}, zaptest.NewLogger(t))
	assert.Equal(t, 42, a.CountTokens("hello world"))
}

func TestLLMTokenizerAdapter_FallsBackOnError(t *testing.T) {
	a := NewLLMTokenizerAdapter(&stubLLMTokenizer{err: errors.New("encoding download failed")}, nil)
	// 8 个非 CJK 字符 → 2 tokens
	assert.Equal(t, 2, a.CountTokens("abcdefgh"))
}

func TestNewTokenizer(t *testing.T) {
	tok, err := NewTokenizer("estimator", "gpt-4o", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, tok.CountTokens("abcdefgh"))

	_, err = NewTokenizer("wordpiece", "", nil)
	assert.Error(t, err)
}
