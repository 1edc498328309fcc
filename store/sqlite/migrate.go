package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove/driver"
	"github.com/xraph/grove/migrate"
)

func init() {
	migrate.RegisterExecutor(DriverName, func(drv any) migrate.Executor {
		return NewExecutor(drv.(*Driver))
	})
}

const (
	migrationTableName = "grove_migrations"
	lockTableName      = "grove_migration_locks"

	// staleLockAfter frees a lock left behind by a process that died
	// mid-migration.
	staleLockAfter = 10 * time.Minute

	stampLayout = "2006-01-02T15:04:05.000000000Z"
)

var (
	_ migrate.Executor      = (*Executor)(nil)
	_ migrate.LockInspector = (*Executor)(nil)
)

// Executor implements migrate.Executor for SQLite. The migration lock is a
// row in grove_migration_locks claimed with a conditional upsert.
type Executor struct {
	drv *Driver
	now func() time.Time
}

// NewExecutor creates a migration executor on drv.
func NewExecutor(drv *Driver) *Executor {
	return &Executor{drv: drv, now: time.Now}
}

func (e *Executor) stamp() string {
	return e.now().UTC().Format(stampLayout)
}

// Exec executes a SQL statement that does not return rows.
func (e *Executor) Exec(ctx context.Context, query string, args ...any) (driver.Result, error) {
	return e.drv.Exec(ctx, query, args...)
}

// Query executes a SQL statement that returns rows.
func (e *Executor) Query(ctx context.Context, query string, args ...any) (driver.Rows, error) {
	return e.drv.Query(ctx, query, args...)
}

// EnsureMigrationTable creates the grove_migrations table if it doesn't exist.
func (e *Executor) EnsureMigrationTable(ctx context.Context) error {
	_, err := e.drv.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+migrationTableName+` (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    version     TEXT NOT NULL,
    name        TEXT NOT NULL,
    "group"     TEXT NOT NULL,
    migrated_at TEXT NOT NULL,
    UNIQUE (version, "group")
)`)
	return err
}

// EnsureLockTable creates the grove_migration_locks table if it doesn't exist.
func (e *Executor) EnsureLockTable(ctx context.Context) error {
	_, err := e.drv.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+lockTableName+` (
    id        INTEGER PRIMARY KEY CHECK (id = 1),
    locked_at TEXT,
    locked_by TEXT
)`)
	return err
}

// AcquireLock claims the lock row when it is free or stale. It returns
// migrate.ErrLockHeld otherwise, which the orchestrator retries.
func (e *Executor) AcquireLock(ctx context.Context, lockedBy string) error {
	now := e.now()
	res, err := e.drv.Exec(ctx, `INSERT INTO `+lockTableName+` (id, locked_at, locked_by) VALUES (1, ?, ?)
ON CONFLICT (id) DO UPDATE SET locked_at = excluded.locked_at, locked_by = excluded.locked_by
WHERE `+lockTableName+`.locked_by IS NULL OR `+lockTableName+`.locked_at < ?`,
		now.UTC().Format(stampLayout), lockedBy, now.Add(-staleLockAfter).UTC().Format(stampLayout))
	if err != nil {
		return fmt.Errorf("sqlite migrate: acquire lock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite migrate: acquire lock: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("sqlite migrate: %w", migrate.ErrLockHeld)
	}
	return nil
}

// ReleaseLock clears the lock row.
func (e *Executor) ReleaseLock(ctx context.Context) error {
	_, err := e.drv.Exec(context.WithoutCancel(ctx),
		`UPDATE `+lockTableName+` SET locked_at = NULL, locked_by = NULL WHERE id = 1`)
	return err
}

// LockInfo reports the current holder of the lock row.
func (e *Executor) LockInfo(ctx context.Context) (*migrate.LockInfo, error) {
	var by, at sql.NullString
	err := e.drv.QueryRow(ctx, `SELECT locked_by, locked_at FROM `+lockTableName+` WHERE id = 1`).Scan(&by, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return &migrate.LockInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite migrate: read lock info: %w", err)
	}
	return &migrate.LockInfo{Held: by.Valid, LockedBy: by.String, LockedAt: at.String}, nil
}

// ListApplied returns all applied migrations in the order they ran.
func (e *Executor) ListApplied(ctx context.Context) ([]*migrate.AppliedMigration, error) {
	rows, err := e.drv.Query(ctx,
		`SELECT id, version, name, "group", migrated_at FROM `+migrationTableName+` ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var applied []*migrate.AppliedMigration
	for rows.Next() {
		a := &migrate.AppliedMigration{}
		if err := rows.Scan(&a.ID, &a.Version, &a.Name, &a.Group, &a.MigratedAt); err != nil {
			return nil, fmt.Errorf("sqlite migrate: scan applied: %w", err)
		}
		applied = append(applied, a)
	}
	return applied, rows.Err()
}

// RecordApplied records that a migration was successfully applied.
func (e *Executor) RecordApplied(ctx context.Context, m *migrate.Migration) error {
	_, err := e.drv.Exec(ctx,
		`INSERT INTO `+migrationTableName+` (version, name, "group", migrated_at) VALUES (?, ?, ?, ?)`,
		m.Version, m.Name, m.Group, e.stamp())
	return err
}

// RemoveApplied removes the record of an applied migration.
func (e *Executor) RemoveApplied(ctx context.Context, m *migrate.Migration) error {
	_, err := e.drv.Exec(ctx,
		`DELETE FROM `+migrationTableName+` WHERE version = ? AND "group" = ?`,
		m.Version, m.Group)
	return err
}
