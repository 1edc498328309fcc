// Package sqlstore implements store.Store on a grove SQL driver. The sqlite
// and postgres packages supply a Dialect, a driver and a migration group;
// every query and the transaction boundary live here.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/xraph/grove"
	"github.com/xraph/grove/driver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/tradefin"
	"github.com/xraph/tradefin/store"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

// Dialect captures what differs between SQL engines.
type Dialect struct {
	// Name prefixes wrapped errors, e.g. "sqlite".
	Name string
	// Numbered selects $1, $2, ... placeholders instead of ?.
	Numbered bool
	// ForUpdate is appended to row reads that must lock the row until the
	// transaction ends. Empty for engines that lock the whole database.
	ForUpdate string
	// Migrations is the grove migration group applied by Migrate.
	Migrations *migrate.Group
	// IsUniqueViolation reports whether err is a unique constraint failure.
	IsUniqueViolation func(err error) bool
}

// Conn runs statements. Grove SQL drivers and their transactions satisfy it.
type Conn interface {
	Exec(ctx context.Context, query string, args ...any) (driver.Result, error)
	Query(ctx context.Context, query string, args ...any) (driver.Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) driver.Row
}

// Store implements store.Store. A Store returned to an Atomic callback is
// bound to the running transaction.
type Store struct {
	db      *grove.DB
	q       Conn
	dialect Dialect
}

// New wraps an open grove database. It panics if the driver cannot run SQL.
func New(db *grove.DB, dialect Dialect) *Store {
	conn, ok := db.Driver().(Conn)
	if !ok {
		panic(fmt.Sprintf("sqlstore: driver %q does not execute SQL", db.Driver().Name()))
	}
	return &Store{db: db, q: conn, dialect: dialect}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Atomic runs fn inside a database transaction.
func (s *Store) Atomic(ctx context.Context, fn store.TxFunc) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", tradefin.ErrTransactionFailed, err)
	}
	conn, ok := tx.Raw().(driver.Tx)
	if !ok {
		_ = tx.Rollback()
		return fmt.Errorf("%w: begin: %T is not a SQL transaction", tradefin.ErrTransactionFailed, tx.Raw())
	}

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()
			panic(r)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if cerr := tx.Commit(); cerr != nil {
			err = fmt.Errorf("%w: commit: %w", tradefin.ErrTransactionFailed, cerr)
		}
	}()

	return fn(ctx, &Store{db: s.db, q: conn, dialect: s.dialect})
}

// Migrate applies the dialect's migration group with the grove orchestrator.
// The executor is looked up by driver name, so the driver's migrate package
// must be registered.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.db.Driver())
	if err != nil {
		return fmt.Errorf("%w: %s: create migration executor: %w", tradefin.ErrMigrationFailed, s.dialect.Name, err)
	}
	orch := migrate.NewOrchestrator(executor, s.dialect.Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("%w: %s: %w", tradefin.ErrMigrationFailed, s.dialect.Name, err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (driver.Result, error) {
	return s.q.Exec(ctx, s.rebind(query), args...)
}

func (s *Store) query(ctx context.Context, query string, args ...any) (driver.Rows, error) {
	return s.q.Query(ctx, s.rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) driver.Row {
	return s.q.QueryRow(ctx, s.rebind(query), args...)
}

// rebind rewrites ? placeholders for dialects that number them.
func (s *Store) rebind(query string) string {
	if !s.dialect.Numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// expectOne maps a conditional update that touched no rows to notFound when
// the row is missing and to ErrConcurrentUpdate when it is in another state.
func (s *Store) expectOne(ctx context.Context, res driver.Result, table, key string, notFound error) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 1 {
		return nil
	}
	var one int
	err = s.queryRow(ctx, "SELECT 1 FROM "+table+" WHERE id = ?", key).Scan(&one)
	if isNoRows(err) {
		return notFound
	}
	if err != nil {
		return err
	}
	return tradefin.ErrConcurrentUpdate
}

func (s *Store) wrap(op string, err error) error {
	return fmt.Errorf("tradefin/%s: %s: %w", s.dialect.Name, op, err)
}

func (s *Store) unique(err error) bool {
	return err != nil && s.dialect.IsUniqueViolation != nil && s.dialect.IsUniqueViolation(err)
}

// isNoRows checks for sql.ErrNoRows, which pgx.ErrNoRows also matches.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// filter accumulates WHERE conditions and their arguments.
type filter struct {
	conds []string
	args  []any
}

func (f *filter) where(cond string, args ...any) {
	f.conds = append(f.conds, cond)
	f.args = append(f.args, args...)
}

func (f *filter) sql() string {
	if len(f.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(f.conds, " AND ")
}

// paginate appends LIMIT/OFFSET. A non-positive limit means no limit.
func (f *filter) paginate(limit, offset int) string {
	if limit <= 0 && offset <= 0 {
		return ""
	}
	if limit <= 0 {
		limit = math.MaxInt32
	}
	f.args = append(f.args, limit, max(offset, 0))
	return " LIMIT ? OFFSET ?"
}
