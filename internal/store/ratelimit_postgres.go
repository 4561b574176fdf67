package store

import (
	"context"
	"fmt"
	"time"

	"github.com/zamdevio/mdviewer-sub000/internal/ratelimit"
)

// RateLimitPostgresStore keeps one row per key in rate_limits. The row lock
// taken by SELECT ... FOR UPDATE serializes concurrent updates of a key.
type RateLimitPostgresStore struct {
	pool PgxPool
}

// NewRateLimitPostgresStore creates a new PostgreSQL-backed rate limit store.
func NewRateLimitPostgresStore(pool PgxPool) *RateLimitPostgresStore {
	return &RateLimitPostgresStore{pool: pool}
}

func (p *RateLimitPostgresStore) Update(ctx context.Context, key string, fn ratelimit.Mutation) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	// Make sure a row exists so the lock below has something to hold.
	_, err = tx.Exec(ctx, `
		INSERT INTO rate_limits (client_key, count, reset_at)
		VALUES ($1, 0, to_timestamp(0))
		ON CONFLICT (client_key) DO NOTHING
	`, key)
	if err != nil {
		_ = tx.Rollback(ctx)

		return fmt.Errorf("ensure row: %w", err)
	}

	var (
		count   int64
		resetAt time.Time
	)

	err = tx.QueryRow(ctx, `
		SELECT count, reset_at
		FROM rate_limits
		WHERE client_key = $1
		FOR UPDATE
	`, key).Scan(&count, &resetAt)
	if err != nil {
		_ = tx.Rollback(ctx)

		return fmt.Errorf("lock row: %w", err)
	}

	next, write := fn(ratelimit.Entry{Count: count, ResetAt: resetAt}, count > 0)
	if !write {
		return tx.Commit(ctx)
	}

	_, err = tx.Exec(ctx, `
		UPDATE rate_limits
		SET count = $2, reset_at = $3
		WHERE client_key = $1
	`, key, next.Count, next.ResetAt)
	if err != nil {
		_ = tx.Rollback(ctx)

		return fmt.Errorf("update row: %w", err)
	}

	return tx.Commit(ctx)
}

func (p *RateLimitPostgresStore) Delete(ctx context.Context, key string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM rate_limits WHERE client_key = $1`, key)

	return err
}

// Compile-time check.
var _ ratelimit.Store = (*RateLimitPostgresStore)(nil)
