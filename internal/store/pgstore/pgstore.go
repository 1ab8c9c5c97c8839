// Package pgstore implements store.KV on a PostgreSQL table, for devices
// that share a database server instead of a file.
package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roach88/comande/internal/store"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS comande_kv (
    key        TEXT        PRIMARY KEY,
    value      BYTEA       NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Store is a PostgreSQL-backed KV.
type Store struct {
	pool *pgxpool.Pool
}

var _ store.KV = (*Store)(nil)

// Open connects to dsn, verifies the connection and creates the table
// if needed.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool.
func (s *Store) Close() error {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// Get returns the value stored under key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.pool.QueryRow(ctx, `SELECT value FROM comande_kv WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %q: %w", key, err)
	}
	return value, true, nil
}

// Put upserts a single key.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	return s.PutAll(ctx, []store.Entry{{Key: key, Value: value}})
}

// PutAll upserts every entry in one transaction.
func (s *Store) PutAll(ctx context.Context, entries []store.Entry) error {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for _, e := range entries {
			value := e.Value
			if value == nil {
				value = []byte{}
			}
			_, err := tx.Exec(ctx, `
				INSERT INTO comande_kv (key, value, updated_at)
				VALUES ($1, $2, now())
				ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
			`, e.Key, value)
			if err != nil {
				return fmt.Errorf("write %q: %w", e.Key, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("put all: %w", err)
	}
	return nil
}
