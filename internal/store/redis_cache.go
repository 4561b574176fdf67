package store

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/zamdevio/mdviewer-sub000/internal/share"
)

// RedisCacheRepository wraps a Repository with Redis caching for reads.
// Shares never change once created, so cached entries need no invalidation.
type RedisCacheRepository struct {
	store  share.Repository
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCacheRepository creates a new Redis-cached repository decorator.
func NewRedisCacheRepository(
	store share.Repository, client *redis.Client, ttl time.Duration,
) *RedisCacheRepository {
	return &RedisCacheRepository{
		store:  store,
		client: client,
		prefix: "share-cache:",
		ttl:    ttl,
	}
}

// Create stores a share in the underlying store and then caches it.
func (r *RedisCacheRepository) Create(ctx context.Context, s *share.Share) error {
	if err := r.store.Create(ctx, s); err != nil {
		return err
	}

	r.cacheShare(ctx, s)

	return nil
}

// Get retrieves a share by id, checking the cache first.
func (r *RedisCacheRepository) Get(ctx context.Context, id share.ID) (*share.Share, error) {
	if s, err := r.getFromCache(ctx, id); err == nil {
		return s, nil
	}

	s, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	r.cacheShare(ctx, s)

	return s, nil
}

func (r *RedisCacheRepository) getFromCache(ctx context.Context, id share.ID) (*share.Share, error) {
	result, err := r.client.HGetAll(ctx, r.prefix+string(id)).Result()
	if err != nil {
		return nil, err
	}

	if len(result) == 0 {
		return nil, share.ErrNotFound
	}

	size, err := strconv.ParseInt(result["size"], 10, 64)
	if err != nil {
		return nil, err
	}

	nanos, err := strconv.ParseInt(result["uploaded_at"], 10, 64)
	if err != nil {
		return nil, err
	}

	return &share.Share{
		ID:          id,
		Content:     []byte(result["content"]),
		ContentType: result["content_type"],
		Size:        size,
		UploadedAt:  time.Unix(0, nanos).UTC(),
	}, nil
}

func (r *RedisCacheRepository) cacheShare(ctx context.Context, s *share.Share) {
	pipe := r.client.Pipeline()
	key := r.prefix + string(s.ID)

	pipe.HSet(ctx, key, map[string]interface{}{
		"content":      s.Content,
		"content_type": s.ContentType,
		"size":         s.Size,
		"uploaded_at":  s.UploadedAt.UnixNano(),
	})

	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}

	_, _ = pipe.Exec(ctx)
}

// Shutdown is a no-op for RedisCacheRepository (client managed externally).
func (r *RedisCacheRepository) Shutdown() error {
	return nil
}

// Compile-time check.
var _ share.Repository = (*RedisCacheRepository)(nil)
