package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/zamdevio/mdviewer-sub000/internal/ratelimit"
)

// ErrContention is returned when an optimistic update kept losing to concurrent writers.
var ErrContention = errors.New("too much contention on rate limit key")

const defaultTxRetries = 16

// RateLimitRedisStore keeps one hash per key and serializes updates with WATCH/MULTI.
type RateLimitRedisStore struct {
	client     *redis.Client
	prefix     string
	maxRetries int
}

// NewRateLimitRedisStore creates a new Redis-backed rate limit store.
func NewRateLimitRedisStore(client *redis.Client) *RateLimitRedisStore {
	return &RateLimitRedisStore{
		client:     client,
		prefix:     "ratelimit:",
		maxRetries: defaultTxRetries,
	}
}

func (r *RateLimitRedisStore) Update(ctx context.Context, key string, fn ratelimit.Mutation) error {
	k := r.prefix + key

	txf := func(tx *redis.Tx) error {
		vals, err := tx.HMGet(ctx, k, "count", "reset_at").Result()
		if err != nil {
			return err
		}

		cur, found, err := parseRateLimitEntry(vals)
		if err != nil {
			return fmt.Errorf("decode %s: %w", k, err)
		}

		next, write := fn(cur, found)
		if !write {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, k, "count", next.Count, "reset_at", next.ResetAt.UnixMilli())
			pipe.PExpireAt(ctx, k, next.ResetAt)

			return nil
		})

		return err
	}

	for range r.maxRetries {
		err := r.client.Watch(ctx, txf, k)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}

		return err
	}

	return ErrContention
}

func (r *RateLimitRedisStore) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefix+key).Err()
}

func parseRateLimitEntry(vals []interface{}) (ratelimit.Entry, bool, error) {
	if len(vals) != 2 || vals[0] == nil || vals[1] == nil {
		return ratelimit.Entry{}, false, nil
	}

	count, err := strconv.ParseInt(fmt.Sprint(vals[0]), 10, 64)
	if err != nil {
		return ratelimit.Entry{}, false, err
	}

	resetMs, err := strconv.ParseInt(fmt.Sprint(vals[1]), 10, 64)
	if err != nil {
		return ratelimit.Entry{}, false, err
	}

	return ratelimit.Entry{Count: count, ResetAt: time.UnixMilli(resetMs)}, true, nil
}

// Compile-time check.
var _ ratelimit.Store = (*RateLimitRedisStore)(nil)
