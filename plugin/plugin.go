// Package plugin provides an extensible plugin system for tradefin.
// Plugins hook into lifecycle events after the underlying transition has
// committed; they observe the workflow but can never veto or undo it.
package plugin

import (
	"context"

	"github.com/xraph/tradefin/id"
	"github.com/xraph/tradefin/invoice"
	"github.com/xraph/tradefin/journal"
	"github.com/xraph/tradefin/loan"
	"github.com/xraph/tradefin/order"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the engine starts. engine is the *tradefin.Engine.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine any) error
}

// OnShutdown is called when the engine stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Order and invoice hooks
// ──────────────────────────────────────────────────

// OnOrderCreated is called when a supplier raises an order.
type OnOrderCreated interface {
	Plugin
	OnOrderCreated(ctx context.Context, o *order.Order) error
}

// OnOrderConfirmed is called when an order is confirmed and its invoice issued.
type OnOrderConfirmed interface {
	Plugin
	OnOrderConfirmed(ctx context.Context, o *order.Order, inv *invoice.Invoice) error
}

// OnOrderDeleted is called when a pending order is removed.
type OnOrderDeleted interface {
	Plugin
	OnOrderDeleted(ctx context.Context, o *order.Order) error
}

// OnInvoicePaid is called when an invoice and its order are settled.
type OnInvoicePaid interface {
	Plugin
	OnInvoicePaid(ctx context.Context, inv *invoice.Invoice) error
}

// ──────────────────────────────────────────────────
// Loan workflow hooks
// ──────────────────────────────────────────────────

// OnLoanApplied is called when an application passes the eligibility gate.
type OnLoanApplied interface {
	Plugin
	OnLoanApplied(ctx context.Context, app *loan.Application) error
}

// OnApplicationRefused is called when the eligibility gate refuses an
// application. reason is a *tradefin.EligibilityError.
type OnApplicationRefused interface {
	Plugin
	OnApplicationRefused(ctx context.Context, invoiceID id.InvoiceID, applicantID id.EntityID, reason error) error
}

// OnApplicationRejected is called when a lender rejects an application.
type OnApplicationRejected interface {
	Plugin
	OnApplicationRejected(ctx context.Context, app *loan.Application) error
}

// OnLoanApproved is called when an application is approved and the loan disbursed.
type OnLoanApproved interface {
	Plugin
	OnLoanApproved(ctx context.Context, app *loan.Application, l *loan.Loan) error
}

// OnLoanRepaid is called when a loan is repaid in full.
type OnLoanRepaid interface {
	Plugin
	OnLoanRepaid(ctx context.Context, r *loan.Repayment) error
}

// OnLoanDefaulted is called when a lender marks a loan as defaulted.
type OnLoanDefaulted interface {
	Plugin
	OnLoanDefaulted(ctx context.Context, l *loan.Loan) error
}

// ──────────────────────────────────────────────────
// Journal hooks
// ──────────────────────────────────────────────────

// OnEntriesPosted is called once per committed posting with every entry it
// appended, in append order.
type OnEntriesPosted interface {
	Plugin
	OnEntriesPosted(ctx context.Context, entries []*journal.Entry) error
}
