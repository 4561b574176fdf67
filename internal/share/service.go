package share

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zamdevio/mdviewer-sub000/internal/ratelimit"
)

const (
	// DefaultStorageTimeout bounds every storage call.
	DefaultStorageTimeout = 10 * time.Second

	maxIDAttempts = 3
	mib           = 1024 * 1024
)

// Receipt is the outcome of a successful upload.
type Receipt struct {
	Share *Share
	Quota ratelimit.Result
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces the time source used for upload timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator replaces the id source.
func WithIDGenerator(gen IDGenerator) Option {
	return func(s *Service) { s.newID = gen }
}

// WithStorageTimeout sets the deadline applied to each storage call.
func WithStorageTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// Service implements uploading and fetching shares.
type Service struct {
	repo    Repository
	limiter ratelimit.Limiter
	newID   IDGenerator
	now     func() time.Time
	timeout time.Duration
}

// NewService creates a new share service.
func NewService(repo Repository, limiter ratelimit.Limiter, opts ...Option) *Service {
	s := &Service{
		repo:    repo,
		limiter: limiter,
		newID:   NewID,
		now:     time.Now,
		timeout: DefaultStorageTimeout,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Upload stores content on behalf of clientKey.
// Checks run in order: rate limit, size, emptiness. Nothing is written when one fails.
func (s *Service) Upload(ctx context.Context, clientKey string, content []byte) (*Receipt, error) {
	quota, err := s.checkQuota(ctx, clientKey)
	if err != nil {
		return nil, &Error{Kind: ErrStorage, Message: "Failed to upload file", Err: err}
	}

	if !quota.Allowed {
		return nil, &Error{
			Kind:    ErrRateLimited,
			Message: "Too many uploads. Please try again later.",
			Quota:   &quota,
		}
	}

	size := int64(len(content))

	if size > MaxSize {
		return nil, &Error{
			Kind:    ErrTooLarge,
			Message: fmt.Sprintf("File size (%.2f MB) exceeds the maximum of %d MB", float64(size)/mib, MaxSize/mib),
			Quota:   &quota,
		}
	}

	if size == 0 {
		return nil, &Error{Kind: ErrEmptyContent, Message: "Cannot share an empty document", Quota: &quota}
	}

	sh := &Share{
		Content:     content,
		ContentType: ContentType,
		Size:        size,
		UploadedAt:  s.now().UTC(),
	}

	if err = s.create(ctx, sh); err != nil {
		return nil, &Error{Kind: ErrStorage, Message: "Failed to upload file", Quota: &quota, Err: err}
	}

	return &Receipt{Share: sh, Quota: quota}, nil
}

// Fetch returns the share stored under id.
func (s *Service) Fetch(ctx context.Context, id string) (*Share, error) {
	if !ValidID(id) {
		return nil, notFound()
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	sh, err := s.repo.Get(ctx, ID(id))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, notFound()
		}

		return nil, &Error{Kind: ErrStorage, Message: "Failed to retrieve file", Err: err}
	}

	return sh, nil
}

func (s *Service) checkQuota(ctx context.Context, clientKey string) (ratelimit.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	return s.limiter.CheckAndConsume(ctx, clientKey)
}

// create assigns an id to sh and stores it, drawing a new id on collision.
func (s *Service) create(ctx context.Context, sh *Share) error {
	for attempt := 1; ; attempt++ {
		id, err := s.newID()
		if err != nil {
			return fmt.Errorf("generate id: %w", err)
		}

		sh.ID = id

		err = s.put(ctx, sh)
		if err == nil {
			return nil
		}

		if !errors.Is(err, ErrAlreadyExists) || attempt >= maxIDAttempts {
			return err
		}
	}
}

func (s *Service) put(ctx context.Context, sh *Share) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	return s.repo.Create(ctx, sh)
}

func notFound() error {
	return &Error{Kind: ErrNotFound, Message: "Shared document not found or has expired"}
}
