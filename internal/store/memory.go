package store

import (
	"context"
	"sync"

	"github.com/zamdevio/mdviewer-sub000/internal/share"
)

// MemoryStore is an in-memory implementation of share.Repository.
type MemoryStore struct {
	mu     sync.RWMutex
	shares map[share.ID]share.Share
}

// NewMemoryStore creates a new in-memory share store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		shares: make(map[share.ID]share.Share),
	}
}

func (m *MemoryStore) Create(_ context.Context, s *share.Share) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.shares[s.ID]; ok {
		return share.ErrAlreadyExists
	}

	stored := *s
	stored.Content = append([]byte(nil), s.Content...)
	m.shares[s.ID] = stored

	return nil
}

func (m *MemoryStore) Get(_ context.Context, id share.ID) (*share.Share, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.shares[id]
	if !ok {
		return nil, share.ErrNotFound
	}

	s.Content = append([]byte(nil), s.Content...)

	return &s, nil
}

// Compile-time check.
var _ share.Repository = (*MemoryStore)(nil)
