// Package pgstore is a cache model backed by a PostgreSQL table.
package pgstore

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/leonardomso/shortener/internal/cache"
)

// Schema creates the records table. The long_link index is deliberately
// not unique: duplicate records are tolerated and resolved by the adapter.
const Schema = `
CREATE TABLE IF NOT EXISTS cached_links (
	id         BIGSERIAL PRIMARY KEY,
	long_link  TEXT        NOT NULL,
	short_link TEXT        NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS cached_links_long_link_idx ON cached_links (long_link);
`

// DB is the subset of *pgxpool.Pool the store uses.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store reads and writes cached_links rows.
type Store struct {
	db      DB
	timeout time.Duration
}

// New creates a Store. Each query is bounded by a 3 second timeout.
func New(db DB) *Store {
	return &Store{db: db, timeout: 3 * time.Second}
}

// Connect opens a pool for dsn and verifies it with a ping.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// Migrate creates the table and index if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	_, err := s.db.Exec(ctx, Schema)
	return err
}

// NewRecord implements cache.Schema.
func (*Store) NewRecord() any {
	return &cache.Entry{}
}

// FindByLongLink implements cache.Finder. Rows come back oldest first.
func (s *Store) FindByLongLink(ctx context.Context, longLink string) ([]cache.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.db.Query(ctx,
		"SELECT long_link, short_link FROM cached_links WHERE long_link=$1 ORDER BY id", longLink)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []cache.Record
	for rows.Next() {
		e := &cache.Entry{}
		if err := rows.Scan(&e.Long, &e.Short); err != nil {
			return nil, err
		}
		records = append(records, e)
	}
	return records, rows.Err()
}

// Create implements cache.Creator.
func (s *Store) Create(ctx context.Context, longLink, shortLink string) (cache.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	e := &cache.Entry{}
	err := s.db.QueryRow(ctx,
		"INSERT INTO cached_links (long_link, short_link) VALUES ($1, $2) RETURNING long_link, short_link",
		longLink, shortLink).Scan(&e.Long, &e.Short)
	if err != nil {
		return nil, err
	}
	return e, nil
}
