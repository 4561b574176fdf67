package store

import (
	"context"
	"errors"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/redis/go-redis/v9"
	"github.com/zamdevio/mdviewer-sub000/internal/share"
)

// redisShare is the CBOR document stored under share:<id>.
type redisShare struct {
	Content     []byte `cbor:"1,keyasint"`
	ContentType string `cbor:"2,keyasint"`
	Size        int64  `cbor:"3,keyasint"`
	UploadedAt  int64  `cbor:"4,keyasint"` // unix nanoseconds
}

// RedisStore is a Redis implementation of share.Repository.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a new Redis-backed share store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "share:",
	}
}

func (r *RedisStore) Create(ctx context.Context, s *share.Share) error {
	payload, err := cbor.Marshal(redisShare{
		Content:     s.Content,
		ContentType: s.ContentType,
		Size:        s.Size,
		UploadedAt:  s.UploadedAt.UnixNano(),
	})
	if err != nil {
		return err
	}

	ok, err := r.client.SetNX(ctx, r.prefix+string(s.ID), payload, 0).Result()
	if err != nil {
		return err
	}

	if !ok {
		return share.ErrAlreadyExists
	}

	return nil
}

func (r *RedisStore) Get(ctx context.Context, id share.ID) (*share.Share, error) {
	payload, err := r.client.Get(ctx, r.prefix+string(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, share.ErrNotFound
		}

		return nil, err
	}

	var doc redisShare
	if err := cbor.Unmarshal(payload, &doc); err != nil {
		return nil, err
	}

	return &share.Share{
		ID:          id,
		Content:     doc.Content,
		ContentType: doc.ContentType,
		Size:        doc.Size,
		UploadedAt:  time.Unix(0, doc.UploadedAt).UTC(),
	}, nil
}

// Compile-time check.
var _ share.Repository = (*RedisStore)(nil)
