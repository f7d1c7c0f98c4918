package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Kinds(t *testing.T) {
	tok, err := New("", "gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, "estimator", tok.Name())

	tok, err = New("tiktoken", "gpt-4o-mini")
	require.NoError(t, err)
	assert.Equal(t, "tiktoken[o200k_base]", tok.Name())
	assert.Equal(t, 128000, tok.MaxTokens())

	_, err = New("sentencepiece", "x")
	var kindErr *UnknownKindError
	require.ErrorAs(t, err, &kindErr)
	assert.Equal(t, "sentencepiece", kindErr.Kind)
}

func TestNewTiktokenTokenizer_PrefixMatch(t *testing.T) {
	tok, err := NewTiktokenTokenizer("gpt-4o-2024-08-06")
	require.NoError(t, err)
	assert.Equal(t, "o200k_base", tok.encoding)

	tok, err = NewTiktokenTokenizer("gpt-4-0613")
	require.NoError(t, err)
	assert.Equal(t, "cl100k_base", tok.encoding)
	assert.Equal(t, 8192, tok.MaxTokens())

	tok, err = NewTiktokenTokenizer("some-local-model")
	require.NoError(t, err)
	assert.Equal(t, "cl100k_base", tok.encoding)
}

func TestEstimatorTokenizer_CountTokens(t *testing.T) {
	est := NewEstimatorTokenizer("any", 0)
	assert.Equal(t, 4096, est.MaxTokens())

	n, err := est.CountTokens("")
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = est.CountTokens("abcdefgh")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = est.CountTokens("供应商罢工")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = est.CountTokens("a")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestEstimatorTokenizer_EncodeDecode(t *testing.T) {
	est := NewEstimatorTokenizer("any", 100)
	ids, err := est.Encode("abcdefghijkl")
	require.NoError(t, err)
	assert.Len(t, ids, 3)

	_, err = est.Decode(ids)
	assert.Error(t, err)
}
