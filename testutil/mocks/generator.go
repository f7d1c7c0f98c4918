// MockGenerator 文本生成能力的测试模拟实现。
//
// 支持固定回复、延迟、错误注入与调用记录。
package mocks

import (
	"context"
	"errors"
	"sync"
	"time"
)

// MockGenerator 是 Generator 的模拟实现
type MockGenerator struct {
	mu sync.Mutex

	response     string
	err          error
	delay        time.Duration
	failAfter    int
	generateFunc func(ctx context.Context, prompt string) (string, error)

	calls []MockGeneratorCall
}

// MockGeneratorCall 记录单次调用
type MockGeneratorCall struct {
	Prompt   string
	Response string
	Error    error
}

// ErrFailAfter FailAfter 次数用尽后返回的错误
var ErrFailAfter = errors.New("mock: configured to fail after N calls")

// NewMockGenerator 创建新的 MockGenerator
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{response: "Mock response"}
}

// WithResponse 设置固定回复
func (m *MockGenerator) WithResponse(response string) *MockGenerator {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.response = response
	return m
}

// WithError 设置返回错误
func (m *MockGenerator) WithError(err error) *MockGenerator {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithDelay 设置响应延迟，期间响应上下文取消
func (m *MockGenerator) WithDelay(d time.Duration) *MockGenerator {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// WithFailAfter 前 n 次调用成功，之后返回 ErrFailAfter
func (m *MockGenerator) WithFailAfter(n int) *MockGenerator {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAfter = n
	return m
}

// WithGenerateFunc 设置自定义生成函数
func (m *MockGenerator) WithGenerateFunc(fn func(ctx context.Context, prompt string) (string, error)) *MockGenerator {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generateFunc = fn
	return m
}

// Generate 返回预设回复
func (m *MockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	delay, fn := m.delay, m.generateFunc
	n := len(m.calls) + 1
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
		}
	}

	var (
		resp string
		err  error
	)
	m.mu.Lock()
	switch {
	case ctx.Err() != nil:
		err = ctx.Err()
	case m.failAfter > 0 && n > m.failAfter:
		err = ErrFailAfter
	case m.err != nil:
		err = m.err
	case fn != nil:
		m.mu.Unlock()
		resp, err = fn(ctx, prompt)
		m.mu.Lock()
	default:
		resp = m.response
	}
	m.calls = append(m.calls, MockGeneratorCall{Prompt: prompt, Response: resp, Error: err})
	m.mu.Unlock()
	return resp, err
}

// Calls 返回调用记录副本
func (m *MockGenerator) Calls() []MockGeneratorCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockGeneratorCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount 返回调用次数
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// LastPrompt 返回最后一次调用的提示，没有调用时为空
func (m *MockGenerator) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return ""
	}
	return m.calls[len(m.calls)-1].Prompt
}

// Reset 清空调用记录
func (m *MockGenerator) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}
