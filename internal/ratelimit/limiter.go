package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	// DefaultLimit is the number of accepted requests per window.
	DefaultLimit int64 = 10
	// DefaultWindow is the length of a fixed window.
	DefaultWindow = 60 * time.Second
)

// ErrUnavailable is returned when the backing store cannot be consulted.
// Callers must treat it as "not allowed".
var ErrUnavailable = errors.New("rate limit store unavailable")

// Result describes the outcome of a single check.
type Result struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   time.Time
}

// RetryAfter returns the number of whole seconds, rounded up, until the window resets.
func (r Result) RetryAfter(now time.Time) int64 {
	ms := r.ResetAt.UnixMilli() - now.UnixMilli()
	if ms <= 0 {
		return 0
	}

	return int64(math.Ceil(float64(ms) / 1000))
}

// Limiter defines the interface for rate limiting.
type Limiter interface {
	// CheckAndConsume checks whether key may make another request and, if so, records it.
	CheckAndConsume(ctx context.Context, key string) (Result, error)
	// Reset discards the state of key.
	Reset(ctx context.Context, key string) error
}

// Option configures a FixedWindowLimiter.
type Option func(*FixedWindowLimiter)

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(l *FixedWindowLimiter) {
		l.now = now
	}
}

// FixedWindowLimiter implements rate limiting using a fixed window counter.
type FixedWindowLimiter struct {
	store  Store
	limit  int64
	window time.Duration
	now    func() time.Time
}

// NewFixedWindowLimiter creates a new fixed window rate limiter.
func NewFixedWindowLimiter(store Store, limit int64, window time.Duration, opts ...Option) *FixedWindowLimiter {
	if limit < 1 {
		limit = DefaultLimit
	}

	if window <= 0 {
		window = DefaultWindow
	}

	l := &FixedWindowLimiter{
		store:  store,
		limit:  limit,
		window: window,
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Limit returns the number of requests allowed per window.
func (l *FixedWindowLimiter) Limit() int64 {
	return l.limit
}

func (l *FixedWindowLimiter) CheckAndConsume(ctx context.Context, key string) (Result, error) {
	now := l.now()

	var res Result

	err := l.store.Update(ctx, key, func(cur Entry, found bool) (Entry, bool) {
		// An entry whose window has passed is treated as absent.
		if !found || !cur.ResetAt.After(now) {
			next := Entry{Count: 1, ResetAt: now.Add(l.window)}
			res = Result{Allowed: true, Limit: l.limit, Remaining: l.limit - 1, ResetAt: next.ResetAt}

			return next, true
		}

		if cur.Count >= l.limit {
			res = Result{Allowed: false, Limit: l.limit, Remaining: 0, ResetAt: cur.ResetAt}

			return cur, false
		}

		cur.Count++
		res = Result{Allowed: true, Limit: l.limit, Remaining: l.limit - cur.Count, ResetAt: cur.ResetAt}

		return cur, true
	})
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	return res, nil
}

func (l *FixedWindowLimiter) Reset(ctx context.Context, key string) error {
	if err := l.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	return nil
}

// Compile-time check.
var _ Limiter = (*FixedWindowLimiter)(nil)
