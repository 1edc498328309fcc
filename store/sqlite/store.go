// Package sqlite provides a SQLite-backed store using the pure-Go
// modernc.org/sqlite driver behind grove.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/xraph/grove"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	tfstore "github.com/xraph/tradefin/store"
	"github.com/xraph/tradefin/store/sqlstore"
)

// compile-time interface check
var _ tfstore.Store = (*Store)(nil)

// DriverName is the database/sql driver registered by modernc.org/sqlite.
// It also names the grove driver and its migration executor.
const DriverName = "sqlite"

// connParams apply to every pooled connection. Transactions take the write
// lock at BEGIN, so two processes sharing a file queue on busy_timeout
// instead of failing a deferred lock upgrade with SQLITE_BUSY.
var connParams = []string{
	"_pragma=busy_timeout(5000)",
	"_pragma=foreign_keys(1)",
	"_txlock=immediate",
}

// Dialect describes SQLite to the shared SQL store.
var Dialect = sqlstore.Dialect{
	Name:              "sqlite",
	Migrations:        Migrations,
	IsUniqueViolation: isUniqueViolation,
}

// Store implements store.Store using SQLite.
type Store struct {
	*sqlstore.Store
	drv *Driver
}

// New creates a store on a grove database opened with the SQLite Driver.
// Writers in this process are serialized through a single connection.
func New(db *grove.DB) *Store {
	drv, ok := db.Driver().(*Driver)
	if !ok {
		panic("tradefin/sqlite: driver is not a *sqlite.Driver")
	}
	drv.db.SetMaxOpenConns(1)
	drv.db.SetMaxIdleConns(1)
	return &Store{Store: sqlstore.New(db, Dialect), drv: drv}
}

// Open opens the database at dsn (a file path, a file: URI or ":memory:")
// with foreign keys, a busy timeout and immediate transactions.
func Open(ctx context.Context, dsn string) (*Store, error) {
	sdb, err := sql.Open(DriverName, withConnParams(dsn))
	if err != nil {
		return nil, fmt.Errorf("tradefin/sqlite: open: %w", err)
	}
	db, err := grove.Open(NewDriver(sdb))
	if err != nil {
		_ = sdb.Close()
		return nil, fmt.Errorf("tradefin/sqlite: open: %w", err)
	}
	s := New(db)
	if err := s.Ping(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("tradefin/sqlite: ping: %w", err)
	}
	return s, nil
}

// Driver returns the grove driver for direct access.
func (s *Store) Driver() *Driver { return s.drv }

func withConnParams(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(connParams, "&")
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
