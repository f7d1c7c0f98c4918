package rag

import (
	"context"
	"sync"
)

// InMemoryChunkStore 进程内块存储，供精排与上下文拼装按 ID 取原文
type InMemoryChunkStore struct {
	mu     sync.RWMutex
	chunks map[string]Chunk
}

// NewInMemoryChunkStore 创建块存储
func NewInMemoryChunkStore() *InMemoryChunkStore {
	return &InMemoryChunkStore{chunks: make(map[string]Chunk)}
}

// PutChunks 写入或覆盖
func (s *InMemoryChunkStore) PutChunks(ctx context.Context, chunks []Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range chunks {
		s.chunks[c.ID] = c
	}
	return nil
}

// GetChunks 返回存在的块，缺失的 ID 不报错
func (s *InMemoryChunkStore) GetChunks(ctx context.Context, ids []string) (map[string]Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Chunk, len(ids))
	for _, id := range ids {
		if c, ok := s.chunks[id]; ok {
			out[id] = c
		}
	}
	return out, nil
}

// DeleteChunks 删除块
func (s *InMemoryChunkStore) DeleteChunks(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.chunks, id)
	}
	return nil
}

// Len 块数量
func (s *InMemoryChunkStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}
