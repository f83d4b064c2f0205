// Package postgres implements the engine's IdentityStore, TokenStore,
// and role source over PostgreSQL through database/sql with the pgx
// driver. Schema management lives in Migrate, backed by embedded goose
// migrations.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver "pgx"
)

// ErrNotFound is an exported constant or variable used by the authentication engine.
var ErrNotFound = sql.ErrNoRows

// Store defines a public type used by authrbac APIs.
//
// Store instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open connects to the database and verifies the connection.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return New(db), nil
}

// New wraps an existing database handle.
func New(db *sql.DB) *Store {
	return NewWithClock(db, time.Now)
}

// NewWithClock is New with an injected clock. Test hook.
func NewWithClock(db *sql.DB, now func() time.Time) *Store {
	return &Store{db: db, now: now}
}

// Close describes the close operation and its observable behavior.
//
// Close may return an error when input validation, dependency calls, or security checks fail.
// Close does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for migrations and health checks.
func (s *Store) DB() *sql.DB {
	return s.db
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type txContextKey struct{}

// q returns the transaction bound to ctx by WithinTx, or the pool.
func (s *Store) q(ctx context.Context) querier {
	if tx, ok := ctx.Value(txContextKey{}).(*sql.Tx); ok {
		return tx
	}
	return s.db
}

// WithinTx runs fn inside one database transaction. Store calls made
// with the ctx passed to fn join it; an error rolls everything back.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txContextKey{}).(*sql.Tx); ok {
		// Already inside a transaction; join it.
		return fn(ctx)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if err := fn(context.WithValue(ctx, txContextKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, rbErr)
		}
		return err
	}
	return tx.Commit()
}
