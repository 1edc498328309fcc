package tradefin

import (
	"context"
	"fmt"

	"github.com/xraph/tradefin/invoice"
	"github.com/xraph/tradefin/loan"
	"github.com/xraph/tradefin/order"
	"github.com/xraph/tradefin/risk"
	"github.com/xraph/tradefin/types"
)

// Stats counts workflow records by status.
type Stats struct {
	Orders       map[order.Status]int           `json:"orders"`
	Invoices     map[invoice.Status]int         `json:"invoices"`
	Applications map[loan.ApplicationStatus]int `json:"applications"`
	Loans        map[loan.Status]int            `json:"loans"`
}

// TotalOrders returns the number of orders in any status.
func (s *Stats) TotalOrders() int { return total(s.Orders) }

// TotalInvoices returns the number of invoices in any status.
func (s *Stats) TotalInvoices() int { return total(s.Invoices) }

// TotalLoans returns the number of loans in any status.
func (s *Stats) TotalLoans() int { return total(s.Loans) }

// PendingApplications returns the number of undecided applications.
func (s *Stats) PendingApplications() int { return s.Applications[loan.ApplicationPending] }

func total[K comparable](m map[K]int) int {
	n := 0
	for _, v := range m {
		n += v
	}
	return n
}

// Stats returns record counts across the system.
func (e *Engine) Stats(ctx context.Context) (*Stats, error) {
	orders, err := e.store.CountOrders(ctx)
	if err != nil {
		return nil, err
	}
	invoices, err := e.store.CountInvoices(ctx)
	if err != nil {
		return nil, err
	}
	apps, err := e.store.CountApplications(ctx)
	if err != nil {
		return nil, err
	}
	loans, err := e.store.CountLoans(ctx)
	if err != nil {
		return nil, err
	}
	return &Stats{Orders: orders, Invoices: invoices, Applications: apps, Loans: loans}, nil
}

// RiskBucket aggregates applications sharing a risk level.
type RiskBucket struct {
	Count     int         `json:"count"`
	Requested types.Money `json:"requested"`
}

// RiskReport buckets every application, in any status, by risk level.
type RiskReport struct {
	Levels map[risk.Level]RiskBucket `json:"levels"`
	Total  int                       `json:"total"`
}

// Bucket returns the aggregate for one level.
func (r *RiskReport) Bucket(level risk.Level) RiskBucket { return r.Levels[level] }

const riskReportPage = 500

// RiskReport scores the whole application book. Unscored applications
// count as score 0. Pages are walked by key, so applications submitted
// while the report runs are either counted once or not at all.
func (e *Engine) RiskReport(ctx context.Context) (*RiskReport, error) {
	report := &RiskReport{Levels: map[risk.Level]RiskBucket{
		risk.LevelLow:    {},
		risk.LevelMedium: {},
		risk.LevelHigh:   {},
	}}

	var cursor *loan.Cursor
	for {
		page, err := e.store.ListApplications(ctx, loan.ApplicationListOpts{Before: cursor, Limit: riskReportPage})
		if err != nil {
			return nil, err
		}
		for _, app := range page {
			level := risk.LevelOf(app.RiskScore)
			b := report.Levels[level]
			b.Count++
			if b.Requested, err = b.Requested.CheckedAdd(app.Amount); err != nil {
				return nil, fmt.Errorf("%w: risk report: %w", ErrInvalidAmount, err)
			}
			report.Levels[level] = b
			report.Total++
		}
		if len(page) < riskReportPage {
			return report, nil
		}
		cursor = loan.CursorAfter(page[len(page)-1])
	}
}
