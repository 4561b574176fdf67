package store

import (
	"context"
	"sync"
	"time"

	"github.com/zamdevio/mdviewer-sub000/internal/ratelimit"
)

// RateLimitMemoryStore is an in-memory implementation of ratelimit.Store.
// Every key owns a cell with its own lock, so unrelated clients never wait on each other.
type RateLimitMemoryStore struct {
	mu    sync.Mutex
	cells map[string]*rateLimitCell
	stop  chan struct{}
	once  sync.Once
}

type rateLimitCell struct {
	mu      sync.Mutex
	entry   ratelimit.Entry
	found   bool
	removed bool
}

// NewRateLimitMemoryStore creates a new in-memory rate limit store.
func NewRateLimitMemoryStore() *RateLimitMemoryStore {
	return &RateLimitMemoryStore{
		cells: make(map[string]*rateLimitCell),
		stop:  make(chan struct{}),
	}
}

func (s *RateLimitMemoryStore) Update(ctx context.Context, key string, fn ratelimit.Mutation) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		cell := s.cell(key)

		cell.mu.Lock()

		// The cell was swept between lookup and lock; take the fresh one.
		if cell.removed {
			cell.mu.Unlock()

			continue
		}

		next, write := fn(cell.entry, cell.found)
		if write {
			cell.entry = next
			cell.found = true
		}

		cell.mu.Unlock()

		return nil
	}
}

func (s *RateLimitMemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cell, ok := s.cells[key]
	if !ok {
		return nil
	}

	cell.mu.Lock()
	cell.removed = true
	delete(s.cells, key)
	cell.mu.Unlock()

	return nil
}

// Sweep removes entries whose window ended at or before now.
func (s *RateLimitMemoryStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0

	for key, cell := range s.cells {
		cell.mu.Lock()

		if !cell.found || !cell.entry.ResetAt.After(now) {
			cell.removed = true
			delete(s.cells, key)

			removed++
		}

		cell.mu.Unlock()
	}

	return removed
}

// Len returns the number of tracked keys.
func (s *RateLimitMemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.cells)
}

// StartJanitor sweeps expired entries every interval until Shutdown is called.
func (s *RateLimitMemoryStore) StartJanitor(every time.Duration) {
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()

		for {
			select {
			case <-s.stop:
				return
			case now := <-ticker.C:
				s.Sweep(now)
			}
		}
	}()
}

// Shutdown stops the janitor.
func (s *RateLimitMemoryStore) Shutdown() error {
	s.once.Do(func() { close(s.stop) })

	return nil
}

func (s *RateLimitMemoryStore) cell(key string) *rateLimitCell {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.cells[key]
	if !ok {
		c = &rateLimitCell{}
		s.cells[key] = c
	}

	return c
}

// Compile-time check.
var _ ratelimit.Store = (*RateLimitMemoryStore)(nil)
