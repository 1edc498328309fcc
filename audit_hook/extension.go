// Package audithook bridges tradefin workflow events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not import any
// audit product directly. Callers inject a RecorderFunc adapter at wiring
// time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/tradefin/id"
	"github.com/xraph/tradefin/invoice"
	"github.com/xraph/tradefin/journal"
	"github.com/xraph/tradefin/loan"
	"github.com/xraph/tradefin/order"
	"github.com/xraph/tradefin/plugin"
	"github.com/xraph/tradefin/types"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                = (*Extension)(nil)
	_ plugin.OnOrderCreated        = (*Extension)(nil)
	_ plugin.OnOrderConfirmed      = (*Extension)(nil)
	_ plugin.OnOrderDeleted        = (*Extension)(nil)
	_ plugin.OnInvoicePaid         = (*Extension)(nil)
	_ plugin.OnLoanApplied         = (*Extension)(nil)
	_ plugin.OnApplicationRefused  = (*Extension)(nil)
	_ plugin.OnApplicationRejected = (*Extension)(nil)
	_ plugin.OnLoanApproved        = (*Extension)(nil)
	_ plugin.OnLoanRepaid          = (*Extension)(nil)
	_ plugin.OnLoanDefaulted       = (*Extension)(nil)
	_ plugin.OnEntriesPosted       = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a backend-neutral audit record.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	ActorID    string         `json:"actor_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges tradefin workflow events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	currency string
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Order and invoice hooks
// ──────────────────────────────────────────────────

// OnOrderCreated implements plugin.OnOrderCreated.
func (e *Extension) OnOrderCreated(ctx context.Context, o *order.Order) error {
	return e.record(ctx, ActionOrderCreated, SeverityInfo, OutcomeSuccess,
		ResourceOrder, o.ID.String(), CategoryTrade, nil,
		"supplier_id", o.SupplierID.String(),
		"buyer_id", o.BuyerID.String(),
		"amount", e.money(o.Amount),
	)
}

// OnOrderConfirmed records the confirmation and the invoice it issued.
func (e *Extension) OnOrderConfirmed(ctx context.Context, o *order.Order, inv *invoice.Invoice) error {
	_ = e.record(ctx, ActionOrderConfirmed, SeverityInfo, OutcomeSuccess,
		ResourceOrder, o.ID.String(), CategoryTrade, nil,
		"invoice_id", inv.ID.String(),
	)
	return e.record(ctx, ActionInvoiceIssued, SeverityInfo, OutcomeSuccess,
		ResourceInvoice, inv.ID.String(), CategoryTrade, nil,
		"order_id", o.ID.String(),
		"number", inv.Number,
		"amount", e.money(inv.Amount),
		"due_date", inv.DueDate,
	)
}

// OnOrderDeleted implements plugin.OnOrderDeleted.
func (e *Extension) OnOrderDeleted(ctx context.Context, o *order.Order) error {
	return e.record(ctx, ActionOrderDeleted, SeverityWarning, OutcomeSuccess,
		ResourceOrder, o.ID.String(), CategoryTrade, nil,
		"amount", e.money(o.Amount),
	)
}

// OnInvoicePaid implements plugin.OnInvoicePaid.
func (e *Extension) OnInvoicePaid(ctx context.Context, inv *invoice.Invoice) error {
	return e.record(ctx, ActionInvoicePaid, SeverityInfo, OutcomeSuccess,
		ResourceInvoice, inv.ID.String(), CategoryPayment, nil,
		"number", inv.Number,
		"buyer_id", inv.BuyerID.String(),
		"supplier_id", inv.SupplierID.String(),
		"amount", e.money(inv.Amount),
	)
}

// ──────────────────────────────────────────────────
// Financing hooks
// ──────────────────────────────────────────────────

// OnLoanApplied implements plugin.OnLoanApplied.
func (e *Extension) OnLoanApplied(ctx context.Context, app *loan.Application) error {
	kv := []any{
		"invoice_id", app.InvoiceID.String(),
		"amount", e.money(app.Amount),
	}
	if app.RiskScore != nil {
		kv = append(kv, "risk_score", *app.RiskScore)
	}
	return e.record(ctx, ActionApplicationSubmitted, SeverityInfo, OutcomeSuccess,
		ResourceApplication, app.ID.String(), CategoryFinancing, nil, kv...)
}

// OnApplicationRefused implements plugin.OnApplicationRefused.
func (e *Extension) OnApplicationRefused(ctx context.Context, invoiceID id.InvoiceID, applicantID id.EntityID, reason error) error {
	return e.record(ctx, ActionApplicationRefused, SeverityWarning, OutcomeFailure,
		ResourceInvoice, invoiceID.String(), CategoryFinancing, reason,
		"applicant_id", applicantID.String(),
	)
}

// OnApplicationRejected implements plugin.OnApplicationRejected.
func (e *Extension) OnApplicationRejected(ctx context.Context, app *loan.Application) error {
	return e.record(ctx, ActionApplicationRejected, SeverityInfo, OutcomeSuccess,
		ResourceApplication, app.ID.String(), CategoryFinancing, nil,
		"invoice_id", app.InvoiceID.String(),
		"decided_by", app.DecidedBy.String(),
	)
}

// OnLoanApproved implements plugin.OnLoanApproved.
func (e *Extension) OnLoanApproved(ctx context.Context, app *loan.Application, l *loan.Loan) error {
	return e.record(ctx, ActionLoanApproved, SeverityInfo, OutcomeSuccess,
		ResourceLoan, l.ID.String(), CategoryFinancing, nil,
		"application_id", app.ID.String(),
		"lender_id", l.LenderID.String(),
		"borrower_id", l.BorrowerID.String(),
		"principal", e.money(l.Principal),
		"interest_rate", l.InterestRate.String(),
		"repayment_date", l.RepaymentDate,
	)
}

// OnLoanRepaid implements plugin.OnLoanRepaid.
func (e *Extension) OnLoanRepaid(ctx context.Context, rep *loan.Repayment) error {
	return e.record(ctx, ActionLoanRepaid, SeverityInfo, OutcomeSuccess,
		ResourceLoan, rep.Loan.ID.String(), CategoryPayment, nil,
		"principal", e.money(rep.Principal),
		"interest", e.money(rep.Interest),
		"total", e.money(rep.Total),
	)
}

// OnLoanDefaulted implements plugin.OnLoanDefaulted.
func (e *Extension) OnLoanDefaulted(ctx context.Context, l *loan.Loan) error {
	return e.record(ctx, ActionLoanDefaulted, SeverityCritical, OutcomeFailure,
		ResourceLoan, l.ID.String(), CategoryFinancing, nil,
		"borrower_id", l.BorrowerID.String(),
		"principal", e.money(l.Principal),
	)
}

// OnEntriesPosted records one event per posting batch.
func (e *Extension) OnEntriesPosted(ctx context.Context, entries []*journal.Entry) error {
	ids := make([]string, len(entries))
	amount := types.Zero()
	for i, entry := range entries {
		ids[i] = entry.ID.String()
		if entry.Direction == journal.Debit {
			amount = amount.Add(entry.Amount)
		}
	}

	resourceID := ""
	if len(entries) > 0 && entries[0].Reference != nil {
		resourceID = string(entries[0].Reference.Type) + ":" + entries[0].Reference.ID
	}
	return e.record(ctx, ActionEntriesPosted, SeverityInfo, OutcomeSuccess,
		ResourceJournal, resourceID, CategoryLedger, nil,
		"entry_ids", ids,
		"amount", e.money(amount),
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

func (e *Extension) money(m types.Money) string {
	return m.Format(e.currency)
}

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}
	if actor := plugin.ActorFrom(ctx); !actor.IsNil() {
		evt.ActorID = actor.String()
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
