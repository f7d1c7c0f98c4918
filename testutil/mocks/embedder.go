// MockEmbedder 向量化能力的测试模拟实现。
package mocks

import (
	"context"
	"hash/fnv"
	"sync"
)

// MockEmbedder 是 Embedder 的模拟实现。
// 默认按文本哈希生成确定性向量；也可委托给真实实现只做计数。
type MockEmbedder struct {
	mu sync.Mutex

	dim       int
	vectors   map[string][]float64
	err       error
	failAfter int
	embedFunc func(ctx context.Context, text string) ([]float64, error)

	texts []string
}

// NewMockEmbedder 创建 dim 维的 MockEmbedder
func NewMockEmbedder(dim int) *MockEmbedder {
	if dim <= 0 {
		dim = 8
	}
	return &MockEmbedder{dim: dim, vectors: make(map[string][]float64)}
}

// WithVector 为指定文本设置固定向量
func (m *MockEmbedder) WithVector(text string, vec []float64) *MockEmbedder {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vectors[text] = vec
	return m
}

// WithError 设置返回错误
func (m *MockEmbedder) WithError(err error) *MockEmbedder {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithFailAfter 前 n 次调用成功，之后返回 ErrFailAfter
func (m *MockEmbedder) WithFailAfter(n int) *MockEmbedder {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAfter = n
	return m
}

// WithEmbedFunc 委托给自定义函数，例如真实 Embedder 的 Embed 方法
func (m *MockEmbedder) WithEmbedFunc(fn func(ctx context.Context, text string) ([]float64, error)) *MockEmbedder {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.embedFunc = fn
	return m
}

// Embed 返回文本向量
func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	m.mu.Lock()
	m.texts = append(m.texts, text)
	n := len(m.texts)
	err, fn := m.err, m.embedFunc
	fixed, ok := m.vectors[text]
	failed := m.failAfter > 0 && n > m.failAfter
	m.mu.Unlock()

	switch {
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case failed:
		return nil, ErrFailAfter
	case err != nil:
		return nil, err
	case ok:
		return append([]float64(nil), fixed...), nil
	case fn != nil:
		return fn(ctx, text)
	}
	return hashVector(text, m.dim), nil
}

// CallCount 返回调用次数
func (m *MockEmbedder) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.texts)
}

// Texts 返回按调用顺序记录的输入文本
func (m *MockEmbedder) Texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.texts...)
}

// hashVector 同一文本总是得到同一向量
func hashVector(text string, dim int) []float64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()
	vec := make([]float64, dim)
	for i := range vec {
		seed ^= seed << 13
		seed ^= seed >> 7
		seed ^= seed << 17
		vec[i] = float64(seed%2000)/1000 - 1
	}
	return vec
}
