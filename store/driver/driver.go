// Package driver opens a tradefin store by driver name, for callers that
// pick a backend from configuration.
package driver

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/xraph/tradefin/store"
	"github.com/xraph/tradefin/store/memory"
	"github.com/xraph/tradefin/store/mongo"
	"github.com/xraph/tradefin/store/postgres"
	"github.com/xraph/tradefin/store/sqlite"
)

// Supported driver names.
const (
	Memory   = "memory"
	SQLite   = "sqlite"
	Postgres = "postgres"
	Mongo    = "mongo"
)

// DefaultMongoDatabase is used when a mongo driver is opened without a
// database name.
const DefaultMongoDatabase = "tradefin"

// Names lists every supported driver.
func Names() []string {
	return []string{Memory, SQLite, Postgres, Mongo}
}

// Valid reports whether name is a supported driver.
func Valid(name string) bool {
	return slices.Contains(Names(), normalize(name))
}

// IsEphemeral reports whether the named driver keeps no state between
// processes.
func IsEphemeral(name string) bool {
	return normalize(name) == Memory
}

// Open connects to the named backend. dsn is ignored for memory; database
// is used only by mongo.
func Open(ctx context.Context, name, dsn, database string) (store.Store, error) {
	switch normalize(name) {
	case Memory:
		return memory.New(), nil
	case SQLite:
		if dsn == "" {
			return nil, fmt.Errorf("driver: sqlite requires a dsn")
		}
		return sqlite.Open(ctx, dsn)
	case Postgres:
		if dsn == "" {
			return nil, fmt.Errorf("driver: postgres requires a dsn")
		}
		return postgres.Open(ctx, dsn)
	case Mongo:
		if dsn == "" {
			return nil, fmt.Errorf("driver: mongo requires a connection uri")
		}
		if database == "" {
			database = DefaultMongoDatabase
		}
		return mongo.Open(ctx, dsn, database)
	default:
		return nil, fmt.Errorf("driver: unknown driver %q (want one of %s)", name, strings.Join(Names(), ", "))
	}
}

func normalize(name string) string {
	switch n := strings.ToLower(strings.TrimSpace(name)); n {
	case "", "mem":
		return Memory
	case "sqlite3":
		return SQLite
	case "pg", "postgresql", "pgx":
		return Postgres
	case "mongodb":
		return Mongo
	default:
		return n
	}
}
