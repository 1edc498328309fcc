// Package store defines the unified persistence contract for tradefin.
package store

import (
	"context"

	"github.com/xraph/tradefin/invoice"
	"github.com/xraph/tradefin/journal"
	"github.com/xraph/tradefin/loan"
	"github.com/xraph/tradefin/order"
)

// Repository groups every aggregate store. Inside Atomic it is bound to the
// running transaction.
type Repository interface {
	order.Store
	invoice.Store
	loan.ApplicationStore
	loan.Store
	journal.Store
}

// TxFunc is the body of an atomic unit of work. Returning an error rolls
// back every write made through tx.
type TxFunc func(ctx context.Context, tx Repository) error

// Store is the unified storage interface for all tradefin records.
type Store interface {
	Repository

	// Atomic runs fn in a single transaction: either every write made
	// through tx commits, or none does.
	Atomic(ctx context.Context, fn TxFunc) error

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
