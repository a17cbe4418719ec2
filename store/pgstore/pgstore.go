// Package pgstore is the PostgreSQL implementation of store.Store, built on
// database/sql with the pgx driver and goose migrations.
package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/MrEthical07/goTrust/internal/dbx"
	"github.com/MrEthical07/goTrust/store"
	"github.com/MrEthical07/goTrust/store/pgstore/migrations"
)

const (
	uniqueViolation           = "23505"
	invalidTextRepresentation = "22P02"
)

// Store wraps a *sql.DB. Its embedded queries run outside any transaction.
type Store struct {
	*queries
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// Open connects with the pgx driver. It does not ping; callers decide how to
// retry the first connection.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return New(db), nil
}

// New wraps an existing handle.
func New(db *sql.DB) *Store {
	return &Store{queries: &queries{db: db}, db: db}
}

// DB exposes the underlying handle for pool tuning.
func (s *Store) DB() *sql.DB { return s.db }

// gooseUpContext is a seam for tests.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Migrate applies the embedded migrations.
func (s *Store) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := gooseUpContext(ctx, s.db, "."); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// WithTx runs fn in a read-committed transaction; row locks taken through
// LockAccount serialise competing writers.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx store.Repository) error) error {
	return dbx.WithTx(ctx, s.db, &sql.TxOptions{Isolation: sql.LevelReadCommitted}, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, &queries{db: tx})
	})
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolation:
			return store.ErrDuplicate
		case invalidTextRepresentation:
			// An id that is not a UUID cannot name any row.
			return store.ErrNotFound
		}
	}
	return fmt.Errorf("db error: %w", err)
}
