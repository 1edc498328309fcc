// Package observability provides a metrics extension for tradefin that
// records workflow event counts and amounts via a MetricFactory.
package observability

import (
	"context"
	"errors"

	"github.com/xraph/tradefin"
	"github.com/xraph/tradefin/id"
	"github.com/xraph/tradefin/invoice"
	"github.com/xraph/tradefin/journal"
	"github.com/xraph/tradefin/loan"
	"github.com/xraph/tradefin/order"
	"github.com/xraph/tradefin/plugin"
	"github.com/xraph/tradefin/types"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                = (*MetricsExtension)(nil)
	_ plugin.OnOrderCreated        = (*MetricsExtension)(nil)
	_ plugin.OnOrderConfirmed      = (*MetricsExtension)(nil)
	_ plugin.OnOrderDeleted        = (*MetricsExtension)(nil)
	_ plugin.OnInvoicePaid         = (*MetricsExtension)(nil)
	_ plugin.OnLoanApplied         = (*MetricsExtension)(nil)
	_ plugin.OnApplicationRefused  = (*MetricsExtension)(nil)
	_ plugin.OnApplicationRejected = (*MetricsExtension)(nil)
	_ plugin.OnLoanApproved        = (*MetricsExtension)(nil)
	_ plugin.OnLoanRepaid          = (*MetricsExtension)(nil)
	_ plugin.OnLoanDefaulted       = (*MetricsExtension)(nil)
	_ plugin.OnEntriesPosted       = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide workflow metrics.
// Register it as a tradefin plugin to track trade and financing volume.
type MetricsExtension struct {
	// Order metrics
	OrderCreated   Counter
	OrderConfirmed Counter
	OrderDeleted   Counter
	OrderAmount    Histogram

	// Invoice metrics
	InvoicePaid   Counter
	InvoiceAmount Histogram

	// Application metrics
	ApplicationSubmitted Counter
	ApplicationRejected  Counter
	ApplicationRiskScore Histogram

	// Refusals by eligibility outcome
	RefusedNotFound   Counter
	RefusedNotUnpaid  Counter
	RefusedCeiling    Counter
	RefusedAmount     Counter
	RefusedDuplicate  Counter
	RefusedUnexpected Counter

	// Loan metrics
	LoanApproved  Counter
	LoanRepaid    Counter
	LoanDefaulted Counter
	LoanPrincipal Histogram
	LoanInterest  Histogram

	// Journal metrics
	EntriesPosted Counter
	JournalVolume Histogram
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		OrderCreated:   factory.Counter("tradefin.order.created"),
		OrderConfirmed: factory.Counter("tradefin.order.confirmed"),
		OrderDeleted:   factory.Counter("tradefin.order.deleted"),
		OrderAmount:    factory.Histogram("tradefin.order.amount"),

		InvoicePaid:   factory.Counter("tradefin.invoice.paid"),
		InvoiceAmount: factory.Histogram("tradefin.invoice.paid_amount"),

		ApplicationSubmitted: factory.Counter("tradefin.application.submitted"),
		ApplicationRejected:  factory.Counter("tradefin.application.rejected"),
		ApplicationRiskScore: factory.Histogram("tradefin.application.risk_score"),

		RefusedNotFound:   factory.Counter("tradefin.application.refused.invoice_not_found"),
		RefusedNotUnpaid:  factory.Counter("tradefin.application.refused.not_eligible"),
		RefusedCeiling:    factory.Counter("tradefin.application.refused.ceiling"),
		RefusedAmount:     factory.Counter("tradefin.application.refused.invalid_amount"),
		RefusedDuplicate:  factory.Counter("tradefin.application.refused.duplicate"),
		RefusedUnexpected: factory.Counter("tradefin.application.refused.other"),

		LoanApproved:  factory.Counter("tradefin.loan.approved"),
		LoanRepaid:    factory.Counter("tradefin.loan.repaid"),
		LoanDefaulted: factory.Counter("tradefin.loan.defaulted"),
		LoanPrincipal: factory.Histogram("tradefin.loan.principal"),
		LoanInterest:  factory.Histogram("tradefin.loan.interest"),

		EntriesPosted: factory.Counter("tradefin.journal.entries"),
		JournalVolume: factory.Histogram("tradefin.journal.posted_amount"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// ──────────────────────────────────────────────────
// Order and invoice hooks
// ──────────────────────────────────────────────────

// OnOrderCreated implements plugin.OnOrderCreated.
func (m *MetricsExtension) OnOrderCreated(_ context.Context, o *order.Order) error {
	m.OrderCreated.Inc()
	m.OrderAmount.Observe(major(o.Amount))
	return nil
}

// OnOrderConfirmed implements plugin.OnOrderConfirmed.
func (m *MetricsExtension) OnOrderConfirmed(_ context.Context, _ *order.Order, _ *invoice.Invoice) error {
	m.OrderConfirmed.Inc()
	return nil
}

// OnOrderDeleted implements plugin.OnOrderDeleted.
func (m *MetricsExtension) OnOrderDeleted(_ context.Context, _ *order.Order) error {
	m.OrderDeleted.Inc()
	return nil
}

// OnInvoicePaid implements plugin.OnInvoicePaid.
func (m *MetricsExtension) OnInvoicePaid(_ context.Context, inv *invoice.Invoice) error {
	m.InvoicePaid.Inc()
	m.InvoiceAmount.Observe(major(inv.Amount))
	return nil
}

// ──────────────────────────────────────────────────
// Financing hooks
// ──────────────────────────────────────────────────

// OnLoanApplied implements plugin.OnLoanApplied.
func (m *MetricsExtension) OnLoanApplied(_ context.Context, app *loan.Application) error {
	m.ApplicationSubmitted.Inc()
	if app.RiskScore != nil {
		m.ApplicationRiskScore.Observe(float64(*app.RiskScore))
	}
	return nil
}

// OnApplicationRefused implements plugin.OnApplicationRefused.
func (m *MetricsExtension) OnApplicationRefused(_ context.Context, _ id.InvoiceID, _ id.EntityID, reason error) error {
	switch {
	case errors.Is(reason, tradefin.ErrInvoiceNotFound):
		m.RefusedNotFound.Inc()
	case errors.Is(reason, tradefin.ErrInvoiceNotEligible):
		m.RefusedNotUnpaid.Inc()
	case errors.Is(reason, tradefin.ErrAmountExceedsCeiling):
		m.RefusedCeiling.Inc()
	case errors.Is(reason, tradefin.ErrInvalidAmount):
		m.RefusedAmount.Inc()
	case errors.Is(reason, tradefin.ErrDuplicatePendingApplication):
		m.RefusedDuplicate.Inc()
	default:
		m.RefusedUnexpected.Inc()
	}
	return nil
}

// OnApplicationRejected implements plugin.OnApplicationRejected.
func (m *MetricsExtension) OnApplicationRejected(_ context.Context, _ *loan.Application) error {
	m.ApplicationRejected.Inc()
	return nil
}

// OnLoanApproved implements plugin.OnLoanApproved.
func (m *MetricsExtension) OnLoanApproved(_ context.Context, _ *loan.Application, l *loan.Loan) error {
	m.LoanApproved.Inc()
	m.LoanPrincipal.Observe(major(l.Principal))
	return nil
}

// OnLoanRepaid implements plugin.OnLoanRepaid.
func (m *MetricsExtension) OnLoanRepaid(_ context.Context, r *loan.Repayment) error {
	m.LoanRepaid.Inc()
	m.LoanInterest.Observe(major(r.Interest))
	return nil
}

// OnLoanDefaulted implements plugin.OnLoanDefaulted.
func (m *MetricsExtension) OnLoanDefaulted(_ context.Context, _ *loan.Loan) error {
	m.LoanDefaulted.Inc()
	return nil
}

// OnEntriesPosted implements plugin.OnEntriesPosted.
func (m *MetricsExtension) OnEntriesPosted(_ context.Context, entries []*journal.Entry) error {
	m.EntriesPosted.Add(float64(len(entries)))
	for _, e := range entries {
		if e.Direction == journal.Debit {
			m.JournalVolume.Observe(major(e.Amount))
		}
	}
	return nil
}

// major converts cents to a float in major units for histogram buckets.
func major(m types.Money) float64 {
	f, _ := m.Decimal().Float64()
	return f
}
