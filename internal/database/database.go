package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pgx connection pool using the provided DSN.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 8
	cfg.MaxConnIdleTime = 5 * time.Minute
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// EnsureSchema creates the draft, application and review tables if needed.
// The draft table holds at most one row. Its payload stays TEXT so an
// undecodable draft is reported by the reader rather than rejected on write.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	const stmt = `
CREATE TABLE IF NOT EXISTS license_drafts (
	slot SMALLINT PRIMARY KEY DEFAULT 1 CHECK (slot = 1),
	payload TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS license_applications (
	seq BIGSERIAL UNIQUE,
	id TEXT PRIMARY KEY,
	owner_name TEXT NOT NULL,
	owner_address TEXT NOT NULL,
	owner_phone TEXT NOT NULL,
	dog_name TEXT NOT NULL,
	dog_breed TEXT NOT NULL,
	dog_age TEXT NOT NULL,
	dog_color TEXT NOT NULL,
	last_rabies_shot TEXT NOT NULL,
	certificate_name TEXT,
	certificate_size BIGINT,
	certificate_type TEXT,
	certificate_key TEXT,
	status TEXT NOT NULL,
	submitted_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS certificate_reviews (
	application_id TEXT PRIMARY KEY,
	status TEXT NOT NULL,
	message TEXT NOT NULL DEFAULT '',
	content TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_certificate_reviews_status ON certificate_reviews(status);`
	_, err := pool.Exec(ctx, stmt)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
