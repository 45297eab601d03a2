// Package pgstore implements store.Store on PostgreSQL. It is deliberately
// Postgres-only: the realtime relay depends on LISTEN/NOTIFY and a
// transactional insert trigger, which no other backend in reach provides.
package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // Postgres driver
	"github.com/pairchat/server/internal/store/pgstore/migrations"
	"github.com/pressly/goose/v3"
)

const (
	maxPoolConns   = 5
	acquireTimeout = 5 * time.Second
)

type PGStore struct {
	db      *sql.DB
	timeout time.Duration
}

// New wraps an existing database handle. Used by tests.
func New(db *sql.DB) *PGStore {
	return &PGStore{db: db, timeout: acquireTimeout}
}

// Open connects to Postgres, bounds the shared pool and applies migrations.
func Open(ctx context.Context, dsn string) (*PGStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	db.SetMaxOpenConns(maxPoolConns)
	db.SetMaxIdleConns(maxPoolConns)

	pingCtx, cancel := context.WithTimeout(ctx, acquireTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	s := &PGStore{db: db, timeout: acquireTimeout}
	if err := s.runMigrations(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}
	return s, nil
}

// opCtx bounds a single store operation. With the pool exhausted,
// database/sql queues the caller on the free-connection list until its
// context ends; without a deadline that wait is as long as the client's
// patience, so every method gets one here.
func (s *PGStore) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

func (s *PGStore) runMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.UpContext(ctx, s.db, ".")
}

func (s *PGStore) Close() error { return s.db.Close() }

// isUniqueViolation reports whether err is a Postgres unique constraint error.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
