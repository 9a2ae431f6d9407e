package persist

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrNotFound = errors.New("no persisted state")
	ErrRead     = errors.New("persistence read failure")
	ErrWrite    = errors.New("persistence write failure")
)

// Backend stores one opaque blob.
type Backend interface {
	// Read returns ErrNotFound when nothing has been written yet.
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, blob []byte) error
}

type MemoryBackend struct {
	mu   sync.Mutex
	blob []byte
	set  bool
}

func NewMemoryBackend() *MemoryBackend { return &MemoryBackend{} }

func (m *MemoryBackend) Read(ctx context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.set {
		return nil, ErrNotFound
	}
	return append([]byte(nil), m.blob...), nil
}

func (m *MemoryBackend) Write(ctx context.Context, blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blob = append(m.blob[:0], blob...)
	m.set = true
	return nil
}
