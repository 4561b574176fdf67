package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/zamdevio/mdviewer-sub000/internal/share"
)

// PgxPool is the subset of *pgxpool.Pool the Postgres stores use.
type PgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore is a PostgreSQL implementation of share.Repository.
type PostgresStore struct {
	pool PgxPool
}

// NewPostgresStore creates a new PostgreSQL-backed share store.
func NewPostgresStore(pool PgxPool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (p *PostgresStore) Create(ctx context.Context, s *share.Share) error {
	query := `
		INSERT INTO shares (id, content, content_type, size, uploaded_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`

	tag, err := p.pool.Exec(ctx, query,
		string(s.ID),
		s.Content,
		s.ContentType,
		s.Size,
		s.UploadedAt,
	)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return share.ErrAlreadyExists
	}

	return nil
}

func (p *PostgresStore) Get(ctx context.Context, id share.ID) (*share.Share, error) {
	query := `
		SELECT id, content, content_type, size, uploaded_at
		FROM shares
		WHERE id = $1
	`

	var (
		s   share.Share
		sid string
	)

	err := p.pool.QueryRow(ctx, query, string(id)).Scan(
		&sid,
		&s.Content,
		&s.ContentType,
		&s.Size,
		&s.UploadedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, share.ErrNotFound
		}

		return nil, err
	}

	s.ID = share.ID(sid)
	s.UploadedAt = s.UploadedAt.UTC()

	return &s, nil
}

// Compile-time check.
var _ share.Repository = (*PostgresStore)(nil)
