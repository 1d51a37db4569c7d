package assets

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// MemorySource holds artifacts in memory.
// It is safe for concurrent use by multiple goroutines.
//
// It is mainly useful for tests and for embedding artifacts that were
// obtained some other way (e.g. compiled in with go:embed).
type MemorySource struct {
	mu     sync.RWMutex
	assets map[string][]byte
}

// NewMemorySource creates an empty in-memory source.
func NewMemorySource() *MemorySource {
	return &MemorySource{
		assets: make(map[string][]byte),
	}
}

func (s *MemorySource) Name() string { return "memory" }

// Put stores a copy of data under name, replacing any existing artifact.
func (s *MemorySource) Put(name string, data []byte) error {
	if name == "" {
		return errors.New("asset name required")
	}

	buf := make([]byte, len(data))
	copy(buf, data)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.assets[name] = buf
	return nil
}

// Load returns a copy of the artifact stored under name.
//
// Returns ErrNotFound if nothing is stored under name, or the context error
// if ctx is already canceled.
func (s *MemorySource) Load(ctx context.Context, name string) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, found := s.assets[name]
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}
