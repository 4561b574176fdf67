package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/zamdevio/mdviewer-sub000/internal/analytics"
)

const statsKeyPrefix = "share-stats:"

// Stats is the aggregate view of one shared document.
type Stats struct {
	Size           int64
	UploadedAt     time.Time
	Views          int64
	UniqueVisitors int64
	LastAccessedAt time.Time
}

// Redis keeps per-share counters in a hash and unique visitors in a HyperLogLog.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func statsKey(id string) string {
	return statsKeyPrefix + id
}

func visitorsKey(id string) string {
	return statsKeyPrefix + id + ":visitors"
}

func (r *Redis) SaveShareCreated(ctx context.Context, event *analytics.ShareCreatedEvent) error {
	err := r.client.HSet(ctx, statsKey(event.ID),
		"size", event.Size,
		"uploaded_at", event.UploadedAt.UnixMilli(),
	).Err()
	if err != nil {
		return fmt.Errorf("save share created: %w", err)
	}

	return nil
}

func (r *Redis) SaveShareAccessed(ctx context.Context, event *analytics.ShareAccessedEvent) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HIncrBy(ctx, statsKey(event.ID), "views", 1)
		pipe.HSet(ctx, statsKey(event.ID), "last_accessed_at", event.AccessedAt.UnixMilli())

		if event.ClientIP != "" {
			pipe.PFAdd(ctx, visitorsKey(event.ID), event.ClientIP)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("save share accessed: %w", err)
	}

	return nil
}

// Stats returns the recorded counters for id. Unknown ids yield zero stats.
func (r *Redis) Stats(ctx context.Context, id string) (Stats, error) {
	fields, err := r.client.HGetAll(ctx, statsKey(id)).Result()
	if err != nil {
		return Stats{}, fmt.Errorf("read stats: %w", err)
	}

	visitors, err := r.client.PFCount(ctx, visitorsKey(id)).Result()
	if err != nil {
		return Stats{}, fmt.Errorf("count visitors: %w", err)
	}

	stats := Stats{
		Size:           parseInt(fields["size"]),
		Views:          parseInt(fields["views"]),
		UniqueVisitors: visitors,
	}

	if ms := parseInt(fields["uploaded_at"]); ms > 0 {
		stats.UploadedAt = time.UnixMilli(ms).UTC()
	}

	if ms := parseInt(fields["last_accessed_at"]); ms > 0 {
		stats.LastAccessedAt = time.UnixMilli(ms).UTC()
	}

	return stats, nil
}

func parseInt(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)

	return n
}

var _ analytics.Store = (*Redis)(nil)
