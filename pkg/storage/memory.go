package storage

import (
	"context"
	"sync"
)

// MemoryStore keeps blobs in process memory
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

// Load returns a copy of the stored payload
func (m *MemoryStore) Load(ctx context.Context, name string) ([]byte, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	payload, ok := m.blobs[name]
	if !ok {
		return nil, ErrBlobNotFound
	}
	return append([]byte(nil), payload...), nil
}

// Save stores a copy of payload
func (m *MemoryStore) Save(ctx context.Context, name string, payload []byte) error {
	if err := validateName(name); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[name] = append([]byte(nil), payload...)
	return nil
}

// Close is a no-op
func (m *MemoryStore) Close() error {
	return nil
}
