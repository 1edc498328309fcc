// Package postgres provides a PostgreSQL-backed store on grove's pgdriver.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	_ "github.com/xraph/grove/drivers/pgdriver/pgmigrate" // registers the "pg" migration executor

	tfstore "github.com/xraph/tradefin/store"
	"github.com/xraph/tradefin/store/sqlstore"
)

// compile-time interface check
var _ tfstore.Store = (*Store)(nil)

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// Dialect describes PostgreSQL to the shared SQL store.
var Dialect = sqlstore.Dialect{
	Name:              "postgres",
	Numbered:          true,
	ForUpdate:         " FOR UPDATE",
	Migrations:        Migrations,
	IsUniqueViolation: isUniqueViolation,
}

// Store implements store.Store using PostgreSQL via Grove.
type Store struct {
	*sqlstore.Store
	pg *pgdriver.PgDB
}

// New creates a store on a grove database opened with pgdriver.
func New(db *grove.DB) *Store {
	return &Store{
		Store: sqlstore.New(db, Dialect),
		pg:    pgdriver.Unwrap(db),
	}
}

// Open connects to dsn and verifies the connection.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pg := pgdriver.New()
	if err := pg.Open(ctx, dsn); err != nil {
		return nil, fmt.Errorf("tradefin/postgres: open: %w", err)
	}
	db, err := grove.Open(pg)
	if err != nil {
		_ = pg.Close()
		return nil, fmt.Errorf("tradefin/postgres: open: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("tradefin/postgres: ping: %w", err)
	}
	return New(db), nil
}

// PgDB returns the pgdriver handle for direct access.
func (s *Store) PgDB() *pgdriver.PgDB { return s.pg }

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
