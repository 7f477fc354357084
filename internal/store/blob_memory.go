package store

import (
	"context"
	"sync"
)

// MemoryBlob is the in-process blob backend used by tests.
type MemoryBlob struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryBlob() *MemoryBlob {
	return &MemoryBlob{data: map[string][]byte{}}
}

func (m *MemoryBlob) Driver() BlobDriver { return BlobMemory }

func (m *MemoryBlob) Put(_ context.Context, key string, data []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	m.data[key] = cp
	return nil
}

func (m *MemoryBlob) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	return cp, nil
}

func (m *MemoryBlob) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}
