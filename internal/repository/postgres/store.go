// Package postgres implements repository.Store on PostgreSQL through pgx.
// A partial unique index over confirmed reservations enforces one confirmed
// reservation per (show, seat).
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iliyamo/ticket-booking/internal/repository"
)

// PostgreSQL SQLSTATE codes the store translates.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type queries struct {
	q querier
}

// Store is a PostgreSQL-backed repository.Store.
type Store struct {
	queries
	pool *pgxpool.Pool
}

var _ repository.Store = (*Store)(nil)

// New wraps a connection pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{queries: queries{q: pool}, pool: pool}
}

// Pool returns the underlying pgxpool.Pool.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// WithTx runs fn inside a transaction.
func (s *Store) WithTx(ctx context.Context, fn func(tx repository.Repository) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&queries{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return mapErr(err, nil)
	}
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// Close closes all connections in the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// mapErr translates pgx errors into repository sentinels.  missing replaces
// pgx.ErrNoRows and, on inserts, a foreign key violation; with missing nil a
// foreign key violation means the row is still referenced.
func mapErr(err error, missing error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) && missing != nil {
		return missing
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return repository.ErrConflict
		case pgForeignKeyViolation:
			if missing != nil {
				return missing
			}
			return repository.ErrConflict
		}
	}
	return err
}

// nullID maps the zero id to NULL.
func nullID(id uint64) any {
	if id == 0 {
		return nil
	}
	return int64(id)
}

func fromNullID(id *int64) uint64 {
	if id == nil {
		return 0
	}
	return uint64(*id)
}
