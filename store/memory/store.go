// Package memory provides an in-process store for tests and single-node use.
//
// Atomic holds the write lock for the whole unit of work and keeps an undo
// log, so a failed unit leaves no trace and readers never observe partial
// writes.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/xraph/tradefin"
	"github.com/xraph/tradefin/id"
	"github.com/xraph/tradefin/invoice"
	"github.com/xraph/tradefin/journal"
	"github.com/xraph/tradefin/loan"
	"github.com/xraph/tradefin/order"
	"github.com/xraph/tradefin/store"
	"github.com/xraph/tradefin/types"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	mu     sync.RWMutex
	d      *data
	closed bool
}

func New() *Store {
	return &Store{d: newData()}
}

// Atomic runs fn against the store while holding the write lock. fn must use
// only the tx it is given; calling back into the Store deadlocks.
func (s *Store) Atomic(ctx context.Context, fn store.TxFunc) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return tradefin.ErrStoreClosed
	}

	var undo []func()
	s.d.undo = &undo
	defer func() {
		s.d.undo = nil
		if r := recover(); r != nil {
			rollback(undo)
			err = fmt.Errorf("%w: panic: %v", tradefin.ErrTransactionFailed, r)
			return
		}
		if err != nil {
			rollback(undo)
		}
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx, s.d)
}

func rollback(undo []func()) {
	for i := len(undo) - 1; i >= 0; i-- {
		undo[i]()
	}
}

// Order Store implementation
func (s *Store) CreateOrder(ctx context.Context, o *order.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.CreateOrder(ctx, o)
}

func (s *Store) GetOrder(ctx context.Context, orderID id.OrderID) (*order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.d.GetOrder(ctx, orderID)
}

func (s *Store) ListOrders(ctx context.Context, opts order.ListOpts) ([]*order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.d.ListOrders(ctx, opts)
}

func (s *Store) TransitionOrder(ctx context.Context, orderID id.OrderID, from, to order.Status, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.TransitionOrder(ctx, orderID, from, to, at)
}

func (s *Store) DeleteOrder(ctx context.Context, orderID id.OrderID, status order.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.DeleteOrder(ctx, orderID, status)
}

func (s *Store) CountOrders(ctx context.Context) (map[order.Status]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.d.CountOrders(ctx)
}

// Invoice Store implementation
func (s *Store) CreateInvoice(ctx context.Context, inv *invoice.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.CreateInvoice(ctx, inv)
}

func (s *Store) GetInvoice(ctx context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.d.GetInvoice(ctx, invID)
}

func (s *Store) GetInvoiceForUpdate(ctx context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.d.GetInvoiceForUpdate(ctx, invID)
}

func (s *Store) GetInvoiceByOrder(ctx context.Context, orderID id.OrderID) (*invoice.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.d.GetInvoiceByOrder(ctx, orderID)
}

func (s *Store) ListInvoices(ctx context.Context, opts invoice.ListOpts) ([]*invoice.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.d.ListInvoices(ctx, opts)
}

func (s *Store) MarkInvoicePaid(ctx context.Context, invID id.InvoiceID, from invoice.Status, paidAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.MarkInvoicePaid(ctx, invID, from, paidAt)
}

func (s *Store) CountInvoices(ctx context.Context) (map[invoice.Status]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.d.CountInvoices(ctx)
}

// Application Store implementation
func (s *Store) CreateApplication(ctx context.Context, app *loan.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.CreateApplication(ctx, app)
}

func (s *Store) GetApplication(ctx context.Context, appID id.ApplicationID) (*loan.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.d.GetApplication(ctx, appID)
}

func (s *Store) ListApplications(ctx context.Context, opts loan.ApplicationListOpts) ([]*loan.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.d.ListApplications(ctx, opts)
}

func (s *Store) HasPendingApplication(ctx context.Context, invID id.InvoiceID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.d.HasPendingApplication(ctx, invID)
}

func (s *Store) DecideApplication(ctx context.Context, appID id.ApplicationID, to loan.ApplicationStatus, lenderID id.EntityID, riskScore *int, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.DecideApplication(ctx, appID, to, lenderID, riskScore, at)
}

func (s *Store) CountApplications(ctx context.Context) (map[loan.ApplicationStatus]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.d.CountApplications(ctx)
}

// Loan Store implementation
func (s *Store) CreateLoan(ctx context.Context, l *loan.Loan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.CreateLoan(ctx, l)
}

func (s *Store) GetLoan(ctx context.Context, loanID id.LoanID) (*loan.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.d.GetLoan(ctx, loanID)
}

func (s *Store) GetLoanByApplication(ctx context.Context, appID id.ApplicationID) (*loan.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.d.GetLoanByApplication(ctx, appID)
}

func (s *Store) ListLoans(ctx context.Context, opts loan.ListOpts) ([]*loan.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.d.ListLoans(ctx, opts)
}

func (s *Store) CloseLoan(ctx context.Context, loanID id.LoanID, to loan.Status, amountRepaid types.Money, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.CloseLoan(ctx, loanID, to, amountRepaid, at)
}

func (s *Store) CountLoans(ctx context.Context) (map[loan.Status]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.d.CountLoans(ctx)
}

// Journal Store implementation
func (s *Store) AppendEntries(ctx context.Context, entries ...*journal.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.AppendEntries(ctx, entries...)
}

func (s *Store) ListEntries(ctx context.Context, entityID id.EntityID, opts journal.ListOpts) ([]*journal.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.d.ListEntries(ctx, entityID, opts)
}

func (s *Store) ListEntriesByReference(ctx context.Context, ref journal.Reference, opts journal.ListOpts) ([]*journal.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.d.ListEntriesByReference(ctx, ref, opts)
}

func (s *Store) EntityTotals(ctx context.Context, entityID id.EntityID) (journal.Totals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.d.EntityTotals(ctx, entityID)
}

// Core methods
func (s *Store) Migrate(_ context.Context) error {
	return nil
}

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return tradefin.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
