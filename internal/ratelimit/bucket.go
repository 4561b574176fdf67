package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// BucketStore hands out one token bucket per key and forgets keys that
// stay idle longer than idleTTL.
type BucketStore struct {
	mu      sync.Mutex
	entries map[string]*bucketEntry
	rps     rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

type bucketEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// BucketOption configures a BucketStore.
type BucketOption func(*BucketStore)

// WithIdleTTL sets how long an unused bucket is kept.
func WithIdleTTL(d time.Duration) BucketOption {
	return func(s *BucketStore) { s.idleTTL = d }
}

// WithBucketClock replaces the time source used for idle tracking and token accounting.
func WithBucketClock(now func() time.Time) BucketOption {
	return func(s *BucketStore) { s.now = now }
}

// NewBucketStore creates a store of buckets refilling rps tokens per second up to burst.
func NewBucketStore(rps float64, burst int, opts ...BucketOption) *BucketStore {
	s := &BucketStore{
		entries: make(map[string]*bucketEntry),
		rps:     rate.Limit(rps),
		burst:   burst,
		idleTTL: 15 * time.Minute,
		now:     time.Now,
		stop:    make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Reserve takes a token for key. When none is available it returns false and
// the delay until the next token.
func (s *BucketStore) Reserve(key string) (bool, time.Duration) {
	now := s.now()

	s.mu.Lock()

	ent, ok := s.entries[key]
	if !ok {
		ent = &bucketEntry{lim: rate.NewLimiter(s.rps, s.burst)}
		s.entries[key] = ent
	}

	ent.lastSeen = now
	s.mu.Unlock()

	r := ent.lim.ReserveN(now, 1)
	if !r.OK() {
		return false, 0
	}

	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)

		return false, delay
	}

	return true, 0
}

// Cleanup drops buckets idle for longer than the idle TTL.
func (s *BucketStore) Cleanup() {
	cutoff := s.now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ent := range s.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(s.entries, k)
		}
	}
}

// Len returns the number of tracked keys.
func (s *BucketStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.entries)
}

// StartJanitor runs Cleanup every interval until Shutdown is called.
func (s *BucketStore) StartJanitor(every time.Duration) {
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()

		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				s.Cleanup()
			}
		}
	}()
}

// Shutdown stops the janitor.
func (s *BucketStore) Shutdown() error {
	if s == nil {
		return nil
	}

	s.once.Do(func() { close(s.stop) })

	return nil
}
