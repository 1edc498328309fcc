package sqlite

import (
	"context"
	"database/sql"

	"github.com/xraph/grove"
	"github.com/xraph/grove/driver"

	"github.com/xraph/tradefin/store/sqlstore"
)

var (
	_ grove.GroveDriver = (*Driver)(nil)
	_ sqlstore.Conn     = (*Driver)(nil)
	_ driver.Tx         = (*sqliteTx)(nil)
)

// Driver adapts a modernc.org/sqlite pool to grove: statements, transactions
// through grove.DB.BeginTx, and migrations through the executor registered
// under DriverName.
type Driver struct {
	db *sql.DB
}

// NewDriver wraps an open SQLite pool.
func NewDriver(db *sql.DB) *Driver {
	return &Driver{db: db}
}

// Name returns the driver identifier.
func (d *Driver) Name() string { return DriverName }

// SQLDB returns the underlying database/sql pool.
func (d *Driver) SQLDB() *sql.DB { return d.db }

// Ping verifies the database is reachable.
func (d *Driver) Ping(ctx context.Context) error { return d.db.PingContext(ctx) }

// Close closes the pool.
func (d *Driver) Close() error { return d.db.Close() }

func (d *Driver) Exec(ctx context.Context, query string, args ...any) (driver.Result, error) {
	res, err := d.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (d *Driver) Query(ctx context.Context, query string, args ...any) (driver.Rows, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (d *Driver) QueryRow(ctx context.Context, query string, args ...any) driver.Row {
	return d.db.QueryRowContext(ctx, query, args...)
}

// BeginTx starts a transaction. SQLite is always serializable, so only the
// read-only hint is passed on.
func (d *Driver) BeginTx(ctx context.Context, opts *driver.TxOptions) (driver.Tx, error) {
	var txOpts *sql.TxOptions
	if opts != nil && opts.ReadOnly {
		txOpts = &sql.TxOptions{ReadOnly: true}
	}
	tx, err := d.db.BeginTx(ctx, txOpts)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx}, nil
}

// GroveTx is the adapter method behind grove.DB.BeginTx.
func (d *Driver) GroveTx(ctx context.Context, _ int, readOnly bool) (any, error) {
	return d.BeginTx(ctx, &driver.TxOptions{ReadOnly: readOnly})
}

type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) Exec(ctx context.Context, query string, args ...any) (driver.Result, error) {
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (t *sqliteTx) Query(ctx context.Context, query string, args ...any) (driver.Rows, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (t *sqliteTx) QueryRow(ctx context.Context, query string, args ...any) driver.Row {
	return t.tx.QueryRowContext(ctx, query, args...)
}

func (t *sqliteTx) Commit() error { return t.tx.Commit() }

func (t *sqliteTx) Rollback() error { return t.tx.Rollback() }
