package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/xraph/tradefin"
	"github.com/xraph/tradefin/id"
	"github.com/xraph/tradefin/invoice"
	"github.com/xraph/tradefin/journal"
	"github.com/xraph/tradefin/loan"
	"github.com/xraph/tradefin/order"
	"github.com/xraph/tradefin/types"
)

// data holds every record and implements store.Repository without locking.
// While a transaction runs, undo collects the inverse of each write.
type data struct {
	orders       map[string]*order.Order
	invoices     map[string]*invoice.Invoice
	applications map[string]*loan.Application
	loans        map[string]*loan.Loan
	entries      []*journal.Entry

	undo *[]func()
}

func newData() *data {
	return &data{
		orders:       make(map[string]*order.Order),
		invoices:     make(map[string]*invoice.Invoice),
		applications: make(map[string]*loan.Application),
		loans:        make(map[string]*loan.Loan),
	}
}

func (d *data) onUndo(fn func()) {
	if d.undo != nil {
		*d.undo = append(*d.undo, fn)
	}
}

// Order Store implementation

func (d *data) CreateOrder(_ context.Context, o *order.Order) error {
	key := o.ID.String()
	if _, exists := d.orders[key]; exists {
		return tradefin.ErrAlreadyExists
	}
	d.orders[key] = cloneOrder(o)
	d.onUndo(func() { delete(d.orders, key) })
	return nil
}

func (d *data) GetOrder(_ context.Context, orderID id.OrderID) (*order.Order, error) {
	if o, ok := d.orders[orderID.String()]; ok {
		return cloneOrder(o), nil
	}
	return nil, tradefin.ErrOrderNotFound
}

func (d *data) ListOrders(_ context.Context, opts order.ListOpts) ([]*order.Order, error) {
	result := make([]*order.Order, 0)
	for _, o := range d.orders {
		if !matchID(opts.SupplierID, o.SupplierID) || !matchID(opts.BuyerID, o.BuyerID) {
			continue
		}
		if opts.Status != "" && o.Status != opts.Status {
			continue
		}
		result = append(result, cloneOrder(o))
	}
	sortNewest(result, func(o *order.Order) (time.Time, string) { return o.CreatedAt, o.ID.String() })
	return page(result, opts.Limit, opts.Offset), nil
}

func (d *data) TransitionOrder(_ context.Context, orderID id.OrderID, from, to order.Status, at time.Time) error {
	key := orderID.String()
	o, ok := d.orders[key]
	if !ok {
		return tradefin.ErrOrderNotFound
	}
	if o.Status != from {
		return tradefin.ErrConcurrentUpdate
	}
	prev := cloneOrder(o)
	next := cloneOrder(o)
	next.Status = to
	next.TouchAt(at)
	stamp := at.UTC()
	switch to {
	case order.StatusConfirmed:
		next.ConfirmedAt = &stamp
	case order.StatusPaid:
		next.PaidAt = &stamp
	}
	d.orders[key] = next
	d.onUndo(func() { d.orders[key] = prev })
	return nil
}

func (d *data) DeleteOrder(_ context.Context, orderID id.OrderID, status order.Status) error {
	key := orderID.String()
	o, ok := d.orders[key]
	if !ok {
		return tradefin.ErrOrderNotFound
	}
	if o.Status != status {
		return tradefin.ErrConcurrentUpdate
	}
	delete(d.orders, key)
	d.onUndo(func() { d.orders[key] = o })
	return nil
}

func (d *data) CountOrders(_ context.Context) (map[order.Status]int, error) {
	counts := make(map[order.Status]int)
	for _, o := range d.orders {
		counts[o.Status]++
	}
	return counts, nil
}

// Invoice Store implementation

func (d *data) CreateInvoice(_ context.Context, inv *invoice.Invoice) error {
	key := inv.ID.String()
	if _, exists := d.invoices[key]; exists {
		return tradefin.ErrAlreadyExists
	}
	for _, existing := range d.invoices {
		if existing.OrderID.String() == inv.OrderID.String() || existing.Number == inv.Number {
			return tradefin.ErrAlreadyExists
		}
	}
	d.invoices[key] = cloneInvoice(inv)
	d.onUndo(func() { delete(d.invoices, key) })
	return nil
}

func (d *data) GetInvoice(_ context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	if inv, ok := d.invoices[invID.String()]; ok {
		return cloneInvoice(inv), nil
	}
	return nil, tradefin.ErrInvoiceNotFound
}

// GetInvoiceForUpdate is GetInvoice; Atomic already holds the write lock.
func (d *data) GetInvoiceForUpdate(ctx context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	return d.GetInvoice(ctx, invID)
}

func (d *data) GetInvoiceByOrder(_ context.Context, orderID id.OrderID) (*invoice.Invoice, error) {
	for _, inv := range d.invoices {
		if inv.OrderID.String() == orderID.String() {
			return cloneInvoice(inv), nil
		}
	}
	return nil, tradefin.ErrInvoiceNotFound
}

func (d *data) ListInvoices(_ context.Context, opts invoice.ListOpts) ([]*invoice.Invoice, error) {
	result := make([]*invoice.Invoice, 0)
	for _, inv := range d.invoices {
		if !matchID(opts.SupplierID, inv.SupplierID) || !matchID(opts.BuyerID, inv.BuyerID) {
			continue
		}
		if opts.Status != "" && inv.Status != opts.Status {
			continue
		}
		result = append(result, cloneInvoice(inv))
	}
	sortNewest(result, func(inv *invoice.Invoice) (time.Time, string) { return inv.CreatedAt, inv.ID.String() })
	return page(result, opts.Limit, opts.Offset), nil
}

func (d *data) MarkInvoicePaid(_ context.Context, invID id.InvoiceID, from invoice.Status, paidAt time.Time) error {
	key := invID.String()
	inv, ok := d.invoices[key]
	if !ok {
		return tradefin.ErrInvoiceNotFound
	}
	if inv.Status != from {
		return tradefin.ErrConcurrentUpdate
	}
	next := cloneInvoice(inv)
	stamp := paidAt.UTC()
	next.Status = invoice.StatusPaid
	next.RemainingAmount = types.Zero()
	next.PaidAt = &stamp
	next.TouchAt(paidAt)
	d.invoices[key] = next
	d.onUndo(func() { d.invoices[key] = inv })
	return nil
}

func (d *data) CountInvoices(_ context.Context) (map[invoice.Status]int, error) {
	counts := make(map[invoice.Status]int)
	for _, inv := range d.invoices {
		counts[inv.Status]++
	}
	return counts, nil
}

// Application Store implementation

func (d *data) CreateApplication(_ context.Context, app *loan.Application) error {
	key := app.ID.String()
	if _, exists := d.applications[key]; exists {
		return tradefin.ErrAlreadyExists
	}
	if app.Status == loan.ApplicationPending && d.hasPending(app.InvoiceID) {
		return tradefin.ErrDuplicatePendingApplication
	}
	d.applications[key] = cloneApplication(app)
	d.onUndo(func() { delete(d.applications, key) })
	return nil
}

func (d *data) GetApplication(_ context.Context, appID id.ApplicationID) (*loan.Application, error) {
	if app, ok := d.applications[appID.String()]; ok {
		return cloneApplication(app), nil
	}
	return nil, tradefin.ErrApplicationNotFound
}

func (d *data) ListApplications(_ context.Context, opts loan.ApplicationListOpts) ([]*loan.Application, error) {
	result := make([]*loan.Application, 0)
	for _, app := range d.applications {
		if !matchID(opts.InvoiceID, app.InvoiceID) || !matchID(opts.ApplicantID, app.ApplicantID) {
			continue
		}
		if opts.Status != "" && app.Status != opts.Status {
			continue
		}
		if c := opts.Before; c != nil && !olderThan(app.CreatedAt, app.ID.String(), c.CreatedAt, c.ID.String()) {
			continue
		}
		result = append(result, cloneApplication(app))
	}
	sortNewest(result, func(app *loan.Application) (time.Time, string) { return app.CreatedAt, app.ID.String() })
	return page(result, opts.Limit, opts.Offset), nil
}

func (d *data) HasPendingApplication(_ context.Context, invID id.InvoiceID) (bool, error) {
	return d.hasPending(invID), nil
}

func (d *data) hasPending(invID id.InvoiceID) bool {
	for _, app := range d.applications {
		if app.Status == loan.ApplicationPending && app.InvoiceID.String() == invID.String() {
			return true
		}
	}
	return false
}

func (d *data) DecideApplication(_ context.Context, appID id.ApplicationID, to loan.ApplicationStatus, lenderID id.EntityID, riskScore *int, at time.Time) error {
	key := appID.String()
	app, ok := d.applications[key]
	if !ok {
		return tradefin.ErrApplicationNotFound
	}
	if app.Status != loan.ApplicationPending {
		return tradefin.ErrConcurrentUpdate
	}
	next := cloneApplication(app)
	stamp := at.UTC()
	next.Status = to
	next.DecidedBy = lenderID
	next.DecidedAt = &stamp
	if riskScore != nil {
		score := *riskScore
		next.RiskScore = &score
	}
	next.TouchAt(at)
	d.applications[key] = next
	d.onUndo(func() { d.applications[key] = app })
	return nil
}

func (d *data) CountApplications(_ context.Context) (map[loan.ApplicationStatus]int, error) {
	counts := make(map[loan.ApplicationStatus]int)
	for _, app := range d.applications {
		counts[app.Status]++
	}
	return counts, nil
}

// Loan Store implementation

func (d *data) CreateLoan(_ context.Context, l *loan.Loan) error {
	key := l.ID.String()
	if _, exists := d.loans[key]; exists {
		return tradefin.ErrAlreadyExists
	}
	for _, existing := range d.loans {
		if existing.ApplicationID.String() == l.ApplicationID.String() {
			return tradefin.ErrAlreadyExists
		}
	}
	d.loans[key] = cloneLoan(l)
	d.onUndo(func() { delete(d.loans, key) })
	return nil
}

func (d *data) GetLoan(_ context.Context, loanID id.LoanID) (*loan.Loan, error) {
	if l, ok := d.loans[loanID.String()]; ok {
		return cloneLoan(l), nil
	}
	return nil, tradefin.ErrLoanNotFound
}

func (d *data) GetLoanByApplication(_ context.Context, appID id.ApplicationID) (*loan.Loan, error) {
	for _, l := range d.loans {
		if l.ApplicationID.String() == appID.String() {
			return cloneLoan(l), nil
		}
	}
	return nil, tradefin.ErrLoanNotFound
}

func (d *data) ListLoans(_ context.Context, opts loan.ListOpts) ([]*loan.Loan, error) {
	result := make([]*loan.Loan, 0)
	for _, l := range d.loans {
		if !matchID(opts.LenderID, l.LenderID) || !matchID(opts.BorrowerID, l.BorrowerID) {
			continue
		}
		if opts.Status != "" && l.Status != opts.Status {
			continue
		}
		result = append(result, cloneLoan(l))
	}
	sortNewest(result, func(l *loan.Loan) (time.Time, string) { return l.CreatedAt, l.ID.String() })
	return page(result, opts.Limit, opts.Offset), nil
}

func (d *data) CloseLoan(_ context.Context, loanID id.LoanID, to loan.Status, amountRepaid types.Money, at time.Time) error {
	key := loanID.String()
	l, ok := d.loans[key]
	if !ok {
		return tradefin.ErrLoanNotFound
	}
	if l.Status != loan.StatusActive {
		return tradefin.ErrConcurrentUpdate
	}
	next := cloneLoan(l)
	stamp := at.UTC()
	next.Status = to
	next.AmountRepaid = amountRepaid
	next.ClosedAt = &stamp
	next.TouchAt(at)
	d.loans[key] = next
	d.onUndo(func() { d.loans[key] = l })
	return nil
}

func (d *data) CountLoans(_ context.Context) (map[loan.Status]int, error) {
	counts := make(map[loan.Status]int)
	for _, l := range d.loans {
		counts[l.Status]++
	}
	return counts, nil
}

// Journal Store implementation

func (d *data) AppendEntries(_ context.Context, entries ...*journal.Entry) error {
	n := len(d.entries)
	for _, e := range entries {
		d.entries = append(d.entries, cloneEntry(e))
	}
	d.onUndo(func() { d.entries = d.entries[:n] })
	return nil
}

func (d *data) ListEntries(_ context.Context, entityID id.EntityID, opts journal.ListOpts) ([]*journal.Entry, error) {
	key := entityID.String()
	return d.newestEntries(opts, func(e *journal.Entry) bool { return e.EntityID.String() == key }), nil
}

func (d *data) ListEntriesByReference(_ context.Context, ref journal.Reference, opts journal.ListOpts) ([]*journal.Entry, error) {
	return d.newestEntries(opts, func(e *journal.Entry) bool {
		return e.Reference != nil && *e.Reference == ref
	}), nil
}

func (d *data) newestEntries(opts journal.ListOpts, match func(*journal.Entry) bool) []*journal.Entry {
	opts = opts.Normalize()
	result := make([]*journal.Entry, 0)
	skipped := 0
	for i := len(d.entries) - 1; i >= 0 && len(result) < opts.Limit; i-- {
		e := d.entries[i]
		if !match(e) {
			continue
		}
		if skipped < opts.Offset {
			skipped++
			continue
		}
		result = append(result, cloneEntry(e))
	}
	return result
}

func (d *data) EntityTotals(_ context.Context, entityID id.EntityID) (journal.Totals, error) {
	key := entityID.String()
	var totals journal.Totals
	for _, e := range d.entries {
		if e.EntityID.String() != key {
			continue
		}
		totals.Count++
		var err error
		if e.Direction == journal.Debit {
			totals.Debits, err = totals.Debits.CheckedAdd(e.Amount)
		} else {
			totals.Credits, err = totals.Credits.CheckedAdd(e.Amount)
		}
		if err != nil {
			return journal.Totals{}, fmt.Errorf("%w: entity totals: %w", tradefin.ErrInvalidAmount, err)
		}
	}
	return totals, nil
}

// helpers

func matchID(filter, value id.ID) bool {
	return filter.IsNil() || filter.String() == value.String()
}

func sortNewest[T any](items []T, key func(T) (time.Time, string)) {
	sort.Slice(items, func(i, j int) bool {
		ti, idi := key(items[i])
		tj, idj := key(items[j])
		return olderThan(tj, idj, ti, idi)
	})
}

// olderThan reports whether (t, key) sorts after (ct, ckey) newest first.
func olderThan(t time.Time, key string, ct time.Time, ckey string) bool {
	if !t.Equal(ct) {
		return t.Before(ct)
	}
	return key < ckey
}

func page[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset > len(items) {
		offset = len(items)
	}
	end := offset + limit
	if limit <= 0 || end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

func cloneOrder(o *order.Order) *order.Order {
	c := *o
	return &c
}

func cloneInvoice(inv *invoice.Invoice) *invoice.Invoice {
	c := *inv
	return &c
}

func cloneApplication(app *loan.Application) *loan.Application {
	c := *app
	if app.RiskScore != nil {
		score := *app.RiskScore
		c.RiskScore = &score
	}
	return &c
}

func cloneLoan(l *loan.Loan) *loan.Loan {
	c := *l
	return &c
}

func cloneEntry(e *journal.Entry) *journal.Entry {
	c := *e
	if e.Reference != nil {
		ref := *e.Reference
		c.Reference = &ref
	}
	return &c
}
