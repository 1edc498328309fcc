// Package storetest holds the behaviour every store.Store backend must share.
// Backend packages call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/tradefin"
	"github.com/xraph/tradefin/id"
	"github.com/xraph/tradefin/invoice"
	"github.com/xraph/tradefin/journal"
	"github.com/xraph/tradefin/loan"
	"github.com/xraph/tradefin/order"
	"github.com/xraph/tradefin/store"
	"github.com/xraph/tradefin/types"
)

// Factory returns a migrated, empty store. It should register cleanup on t.
type Factory func(t *testing.T) store.Store

var epoch = time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

// Run executes the conformance suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("Orders", func(t *testing.T) { testOrders(t, newStore(t)) })
	t.Run("Invoices", func(t *testing.T) { testInvoices(t, newStore(t)) })
	t.Run("InvoiceForUpdate", func(t *testing.T) { testInvoiceForUpdate(t, newStore(t)) })
	t.Run("Applications", func(t *testing.T) { testApplications(t, newStore(t)) })
	t.Run("ApplicationCursor", func(t *testing.T) { testApplicationCursor(t, newStore(t)) })
	t.Run("Loans", func(t *testing.T) { testLoans(t, newStore(t)) })
	t.Run("Journal", func(t *testing.T) { testJournal(t, newStore(t)) })
	t.Run("TotalsOverflow", func(t *testing.T) { testTotalsOverflow(t, newStore(t)) })
	t.Run("AtomicCommit", func(t *testing.T) { testAtomicCommit(t, newStore(t)) })
	t.Run("AtomicRollback", func(t *testing.T) { testAtomicRollback(t, newStore(t)) })
	t.Run("Ping", func(t *testing.T) { require.NoError(t, newStore(t).Ping(context.Background())) })
}

// NewOrder builds a pending order created at the given offset from a fixed epoch.
func NewOrder(offset time.Duration, cents int64) *order.Order {
	return &order.Order{
		Entity:      types.NewEntityAt(epoch.Add(offset)),
		ID:          id.NewOrderID(),
		SupplierID:  id.NewEntityID(),
		BuyerID:     id.NewEntityID(),
		Amount:      types.Cents(cents),
		Status:      order.StatusPending,
		Description: "steel coils",
		PONumber:    "PO-1",
	}
}

// NewInvoice builds an unpaid invoice for o.
func NewInvoice(o *order.Order) *invoice.Invoice {
	at := epoch.Add(time.Hour)
	return &invoice.Invoice{
		Entity:          types.NewEntityAt(at),
		ID:              id.NewInvoiceID(),
		OrderID:         o.ID,
		Number:          invoice.NewNumber(at, o.ID),
		SupplierID:      o.SupplierID,
		BuyerID:         o.BuyerID,
		Amount:          o.Amount,
		RemainingAmount: o.Amount,
		Status:          invoice.StatusUnpaid,
		DueDate:         at.Add(30 * 24 * time.Hour),
	}
}

// NewApplication builds a pending application against inv.
func NewApplication(inv *invoice.Invoice, cents int64) *loan.Application {
	score := 80
	return &loan.Application{
		Entity:      types.NewEntityAt(epoch.Add(2 * time.Hour)),
		ID:          id.NewApplicationID(),
		InvoiceID:   inv.ID,
		ApplicantID: inv.SupplierID,
		Amount:      types.Cents(cents),
		Status:      loan.ApplicationPending,
		Reason:      "working capital",
		RiskScore:   &score,
	}
}

func testOrders(t *testing.T, s store.Store) {
	ctx := context.Background()

	first := NewOrder(0, 100000)
	second := NewOrder(time.Minute, 250000)
	second.SupplierID = first.SupplierID
	require.NoError(t, s.CreateOrder(ctx, first))
	require.NoError(t, s.CreateOrder(ctx, second))
	assert.ErrorIs(t, s.CreateOrder(ctx, first), tradefin.ErrAlreadyExists)

	got, err := s.GetOrder(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID.String(), got.ID.String())
	assert.Equal(t, first.Amount, got.Amount)
	assert.Equal(t, "steel coils", got.Description)
	assert.Equal(t, "PO-1", got.PONumber)
	assert.True(t, got.CreatedAt.Equal(first.CreatedAt))
	assert.Nil(t, got.ConfirmedAt)

	_, err = s.GetOrder(ctx, id.NewOrderID())
	assert.ErrorIs(t, err, tradefin.ErrOrderNotFound)

	list, err := s.ListOrders(ctx, order.ListOpts{SupplierID: first.SupplierID})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID.String(), list[0].ID.String(), "newest first")

	list, err = s.ListOrders(ctx, order.ListOpts{SupplierID: first.SupplierID, Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, first.ID.String(), list[0].ID.String())

	confirmAt := epoch.Add(time.Hour)
	require.NoError(t, s.TransitionOrder(ctx, first.ID, order.StatusPending, order.StatusConfirmed, confirmAt))
	err = s.TransitionOrder(ctx, first.ID, order.StatusPending, order.StatusConfirmed, confirmAt)
	assert.ErrorIs(t, err, tradefin.ErrConcurrentUpdate)
	err = s.TransitionOrder(ctx, id.NewOrderID(), order.StatusPending, order.StatusConfirmed, confirmAt)
	assert.ErrorIs(t, err, tradefin.ErrOrderNotFound)

	got, err = s.GetOrder(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusConfirmed, got.Status)
	require.NotNil(t, got.ConfirmedAt)
	assert.True(t, got.ConfirmedAt.Equal(confirmAt))

	list, err = s.ListOrders(ctx, order.ListOpts{Status: order.StatusConfirmed})
	require.NoError(t, err)
	require.Len(t, list, 1)

	assert.ErrorIs(t, s.DeleteOrder(ctx, first.ID, order.StatusPending), tradefin.ErrConcurrentUpdate)
	require.NoError(t, s.DeleteOrder(ctx, second.ID, order.StatusPending))
	_, err = s.GetOrder(ctx, second.ID)
	assert.ErrorIs(t, err, tradefin.ErrOrderNotFound)

	counts, err := s.CountOrders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[order.StatusConfirmed])
	assert.Equal(t, 0, counts[order.StatusPending])
}

func testInvoices(t *testing.T, s store.Store) {
	ctx := context.Background()

	o := NewOrder(0, 1000000)
	require.NoError(t, s.CreateOrder(ctx, o))
	inv := NewInvoice(o)
	require.NoError(t, s.CreateInvoice(ctx, inv))

	dup := NewInvoice(o)
	assert.ErrorIs(t, s.CreateInvoice(ctx, dup), tradefin.ErrAlreadyExists, "one invoice per order")

	got, err := s.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, inv.Number, got.Number)
	assert.Equal(t, inv.Amount, got.RemainingAmount)
	assert.Equal(t, invoice.StatusUnpaid, got.Status)
	assert.True(t, got.DueDate.Equal(inv.DueDate))

	byOrder, err := s.GetInvoiceByOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, inv.ID.String(), byOrder.ID.String())

	_, err = s.GetInvoice(ctx, id.NewInvoiceID())
	assert.ErrorIs(t, err, tradefin.ErrInvoiceNotFound)
	_, err = s.GetInvoiceByOrder(ctx, id.NewOrderID())
	assert.ErrorIs(t, err, tradefin.ErrInvoiceNotFound)

	paidAt := epoch.Add(48 * time.Hour)
	require.NoError(t, s.MarkInvoicePaid(ctx, inv.ID, invoice.StatusUnpaid, paidAt))
	assert.ErrorIs(t, s.MarkInvoicePaid(ctx, inv.ID, invoice.StatusUnpaid, paidAt), tradefin.ErrConcurrentUpdate)

	got, err = s.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, invoice.StatusPaid, got.Status)
	assert.True(t, got.RemainingAmount.IsZero())
	require.NotNil(t, got.PaidAt)
	assert.True(t, got.PaidAt.Equal(paidAt))
	assert.Equal(t, inv.Amount, got.Amount, "face amount is immutable")

	list, err := s.ListInvoices(ctx, invoice.ListOpts{BuyerID: o.BuyerID, Status: invoice.StatusPaid})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	counts, err := s.CountInvoices(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[invoice.StatusPaid])
}

// testInvoiceForUpdate checks the locking read returns the same invoice as
// GetInvoice, inside and outside a transaction, and leaves it writable by the
// transaction holding it.
func testInvoiceForUpdate(t *testing.T, s store.Store) {
	ctx := context.Background()

	o := NewOrder(0, 250000)
	require.NoError(t, s.CreateOrder(ctx, o))
	inv := NewInvoice(o)
	require.NoError(t, s.CreateInvoice(ctx, inv))

	got, err := s.GetInvoiceForUpdate(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, inv.Number, got.Number)
	assert.Equal(t, inv.Amount, got.Amount)

	_, err = s.GetInvoiceForUpdate(ctx, id.NewInvoiceID())
	assert.ErrorIs(t, err, tradefin.ErrInvoiceNotFound)

	paidAt := epoch.Add(24 * time.Hour)
	err = s.Atomic(ctx, func(ctx context.Context, tx store.Repository) error {
		locked, err := tx.GetInvoiceForUpdate(ctx, inv.ID)
		if err != nil {
			return err
		}
		if locked.Status != invoice.StatusUnpaid {
			return errors.New("locked invoice is not unpaid")
		}
		return tx.MarkInvoicePaid(ctx, locked.ID, locked.Status, paidAt)
	})
	require.NoError(t, err)

	got, err = s.GetInvoiceForUpdate(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, invoice.StatusPaid, got.Status)
	assert.True(t, got.RemainingAmount.IsZero())
}

func testApplications(t *testing.T, s store.Store) {
	ctx := context.Background()

	o := NewOrder(0, 1000000)
	inv := NewInvoice(o)
	require.NoError(t, s.CreateOrder(ctx, o))
	require.NoError(t, s.CreateInvoice(ctx, inv))

	pending, err := s.HasPendingApplication(ctx, inv.ID)
	require.NoError(t, err)
	assert.False(t, pending)

	app := NewApplication(inv, 500000)
	require.NoError(t, s.CreateApplication(ctx, app))

	pending, err = s.HasPendingApplication(ctx, inv.ID)
	require.NoError(t, err)
	assert.True(t, pending)

	err = s.CreateApplication(ctx, NewApplication(inv, 400000))
	assert.ErrorIs(t, err, tradefin.ErrDuplicatePendingApplication)

	got, err := s.GetApplication(ctx, app.ID)
	require.NoError(t, err)
	require.NotNil(t, got.RiskScore)
	assert.Equal(t, 80, *got.RiskScore)
	assert.True(t, got.DecidedBy.IsNil())

	lender := id.NewEntityID()
	decidedAt := epoch.Add(3 * time.Hour)
	require.NoError(t, s.DecideApplication(ctx, app.ID, loan.ApplicationRejected, lender, nil, decidedAt))
	err = s.DecideApplication(ctx, app.ID, loan.ApplicationApproved, lender, nil, decidedAt)
	assert.ErrorIs(t, err, tradefin.ErrConcurrentUpdate)
	err = s.DecideApplication(ctx, id.NewApplicationID(), loan.ApplicationApproved, lender, nil, decidedAt)
	assert.ErrorIs(t, err, tradefin.ErrApplicationNotFound)

	got, err = s.GetApplication(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, loan.ApplicationRejected, got.Status)
	assert.Equal(t, lender.String(), got.DecidedBy.String())
	require.NotNil(t, got.DecidedAt)
	require.NotNil(t, got.RiskScore)
	assert.Equal(t, 80, *got.RiskScore, "score kept when no override given")

	// A decided application frees the invoice for a new one.
	next := NewApplication(inv, 300000)
	require.NoError(t, s.CreateApplication(ctx, next))
	override := 42
	require.NoError(t, s.DecideApplication(ctx, next.ID, loan.ApplicationApproved, lender, &override, decidedAt))
	got, err = s.GetApplication(ctx, next.ID)
	require.NoError(t, err)
	require.NotNil(t, got.RiskScore)
	assert.Equal(t, 42, *got.RiskScore)

	list, err := s.ListApplications(ctx, loan.ApplicationListOpts{InvoiceID: inv.ID})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = s.ListApplications(ctx, loan.ApplicationListOpts{Status: loan.ApplicationApproved})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, next.ID.String(), list[0].ID.String())

	counts, err := s.CountApplications(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[loan.ApplicationApproved])
	assert.Equal(t, 1, counts[loan.ApplicationRejected])
}

func testApplicationCursor(t *testing.T, s store.Store) {
	ctx := context.Background()

	for i := range 5 {
		app := NewApplication(NewInvoice(NewOrder(0, 100000)), 50000)
		// Pairs share a timestamp so the id breaks the tie.
		app.CreatedAt = epoch.Add(time.Duration(i/2) * time.Minute)
		app.UpdatedAt = app.CreatedAt
		require.NoError(t, s.CreateApplication(ctx, app))
	}
	all, err := s.ListApplications(ctx, loan.ApplicationListOpts{})
	require.NoError(t, err)
	require.Len(t, all, 5)

	var (
		walked []string
		cursor *loan.Cursor
	)
	for {
		page, err := s.ListApplications(ctx, loan.ApplicationListOpts{Before: cursor, Limit: 2})
		require.NoError(t, err)
		for _, app := range page {
			walked = append(walked, app.ID.String())
		}
		if len(page) < 2 {
			break
		}
		cursor = loan.CursorAfter(page[len(page)-1])

		if len(walked) == 2 {
			late := NewApplication(NewInvoice(NewOrder(0, 100000)), 50000)
			late.CreatedAt = epoch.Add(time.Hour)
			late.UpdatedAt = late.CreatedAt
			require.NoError(t, s.CreateApplication(ctx, late))
		}
	}

	want := make([]string, 0, len(all))
	for _, app := range all {
		want = append(want, app.ID.String())
	}
	assert.Equal(t, want, walked, "each application exactly once, newest first")
}

// testTotalsOverflow checks that a balance beyond int64 fails instead of
// wrapping negative.
func testTotalsOverflow(t *testing.T, s store.Store) {
	ctx := context.Background()
	debtor, creditor := id.NewEntityID(), id.NewEntityID()

	half := types.Cents(math.MaxInt64/2 + 1)
	for i := range 2 {
		ref := journal.Reference{ID: id.NewInvoiceID().String(), Type: journal.RefManual}
		legs := journal.Pair{DebitEntity: debtor, CreditEntity: creditor, Amount: half, Reference: ref}.
			Entries(epoch.Add(time.Duration(i) * time.Second))
		require.NoError(t, s.AppendEntries(ctx, legs[0], legs[1]))
	}

	_, err := s.EntityTotals(ctx, debtor)
	assert.Error(t, err)
	_, err = s.EntityTotals(ctx, creditor)
	assert.Error(t, err)
}

func testLoans(t *testing.T, s store.Store) {
	ctx := context.Background()

	o := NewOrder(0, 1000000)
	inv := NewInvoice(o)
	app := NewApplication(inv, 100000)
	l := &loan.Loan{
		Entity:        types.NewEntityAt(epoch.Add(4 * time.Hour)),
		ID:            id.NewLoanID(),
		ApplicationID: app.ID,
		InvoiceID:     inv.ID,
		BorrowerID:    app.ApplicantID,
		LenderID:      id.NewEntityID(),
		Principal:     app.Amount,
		InterestRate:  decimal.RequireFromString("5.25"),
		RepaymentDate: epoch.Add(31 * 24 * time.Hour),
		Status:        loan.StatusActive,
	}
	require.NoError(t, s.CreateLoan(ctx, l))

	dup := *l
	dup.ID = id.NewLoanID()
	assert.ErrorIs(t, s.CreateLoan(ctx, &dup), tradefin.ErrAlreadyExists, "one loan per application")

	got, err := s.GetLoan(ctx, l.ID)
	require.NoError(t, err)
	assert.True(t, got.InterestRate.Equal(l.InterestRate))
	assert.Equal(t, l.Principal, got.Principal)
	assert.True(t, got.RepaymentDate.Equal(l.RepaymentDate))
	assert.Equal(t, loan.StatusActive, got.Status)

	byApp, err := s.GetLoanByApplication(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, l.ID.String(), byApp.ID.String())

	_, err = s.GetLoan(ctx, id.NewLoanID())
	assert.ErrorIs(t, err, tradefin.ErrLoanNotFound)

	closedAt := epoch.Add(10 * 24 * time.Hour)
	total, err := l.TotalDue()
	require.NoError(t, err)
	require.NoError(t, s.CloseLoan(ctx, l.ID, loan.StatusRepaid, total, closedAt))
	assert.ErrorIs(t, s.CloseLoan(ctx, l.ID, loan.StatusDefaulted, types.Zero(), closedAt), tradefin.ErrConcurrentUpdate)

	got, err = s.GetLoan(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, loan.StatusRepaid, got.Status)
	assert.Equal(t, total, got.AmountRepaid)
	require.NotNil(t, got.ClosedAt)

	list, err := s.ListLoans(ctx, loan.ListOpts{LenderID: l.LenderID})
	require.NoError(t, err)
	assert.Len(t, list, 1)
	list, err = s.ListLoans(ctx, loan.ListOpts{Status: loan.StatusActive})
	require.NoError(t, err)
	assert.Empty(t, list)

	counts, err := s.CountLoans(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[loan.StatusRepaid])
}

func testJournal(t *testing.T, s store.Store) {
	ctx := context.Background()
	buyer, supplier := id.NewEntityID(), id.NewEntityID()

	totals, err := s.EntityTotals(ctx, buyer)
	require.NoError(t, err)
	assert.True(t, totals.Balance().IsZero())
	assert.Equal(t, 0, totals.Count)

	refA := journal.Reference{ID: id.NewInvoiceID().String(), Type: journal.RefInvoice}
	refB := journal.Reference{ID: id.NewLoanID().String(), Type: journal.RefLoan}

	pairA := journal.Pair{DebitEntity: buyer, CreditEntity: supplier, Amount: types.Cents(1000000), Reference: refA}.Entries(epoch)
	pairB := journal.Pair{DebitEntity: supplier, CreditEntity: buyer, Amount: types.Cents(250), Reference: refB}.Entries(epoch.Add(time.Second))
	require.NoError(t, s.AppendEntries(ctx, pairA[0], pairA[1]))
	require.NoError(t, s.AppendEntries(ctx, pairB[0], pairB[1]))

	manual := &journal.Entry{
		ID:          id.NewEntryID(),
		EntityID:    buyer,
		Direction:   journal.Debit,
		Amount:      types.Cents(1),
		Description: "adjustment",
		CreatedAt:   epoch.Add(2 * time.Second),
	}
	require.NoError(t, s.AppendEntries(ctx, manual))

	entries, err := s.ListEntries(ctx, buyer, journal.ListOpts{})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, manual.ID.String(), entries[0].ID.String(), "newest first")
	assert.Nil(t, entries[0].Reference)
	assert.Equal(t, pairB[1].ID.String(), entries[1].ID.String())
	assert.Equal(t, pairA[0].ID.String(), entries[2].ID.String())
	require.NotNil(t, entries[2].Reference)
	assert.Equal(t, refA, *entries[2].Reference)

	page, err := s.ListEntries(ctx, buyer, journal.ListOpts{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, pairB[1].ID.String(), page[0].ID.String())

	byRef, err := s.ListEntriesByReference(ctx, refA, journal.ListOpts{})
	require.NoError(t, err)
	require.Len(t, byRef, 2)
	assert.True(t, byRef[0].Signed().Add(byRef[1].Signed()).IsZero())

	totals, err = s.EntityTotals(ctx, buyer)
	require.NoError(t, err)
	assert.Equal(t, types.Cents(1000001), totals.Debits)
	assert.Equal(t, types.Cents(250), totals.Credits)
	assert.Equal(t, 3, totals.Count)
	assert.Equal(t, types.Cents(999751), totals.Balance())

	totals, err = s.EntityTotals(ctx, supplier)
	require.NoError(t, err)
	assert.Equal(t, types.Cents(-999750), totals.Balance())
}

func testAtomicCommit(t *testing.T, s store.Store) {
	ctx := context.Background()
	o := NewOrder(0, 5000)
	entity := id.NewEntityID()

	err := s.Atomic(ctx, func(ctx context.Context, tx store.Repository) error {
		if err := tx.CreateOrder(ctx, o); err != nil {
			return err
		}
		got, err := tx.GetOrder(ctx, o.ID)
		if err != nil {
			return err
		}
		if got.ID.String() != o.ID.String() {
			return errors.New("read-your-writes failed")
		}
		return tx.AppendEntries(ctx, &journal.Entry{
			ID: id.NewEntryID(), EntityID: entity, Direction: journal.Credit,
			Amount: types.Cents(5000), CreatedAt: epoch,
		})
	})
	require.NoError(t, err)

	_, err = s.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	totals, err := s.EntityTotals(ctx, entity)
	require.NoError(t, err)
	assert.Equal(t, types.Cents(-5000), totals.Balance())
}

func testAtomicRollback(t *testing.T, s store.Store) {
	ctx := context.Background()
	o := NewOrder(0, 5000)
	require.NoError(t, s.CreateOrder(ctx, o))
	entity := id.NewEntityID()
	boom := errors.New("boom")

	err := s.Atomic(ctx, func(ctx context.Context, tx store.Repository) error {
		if err := tx.TransitionOrder(ctx, o.ID, order.StatusPending, order.StatusConfirmed, epoch); err != nil {
			return err
		}
		if err := tx.CreateInvoice(ctx, NewInvoice(o)); err != nil {
			return err
		}
		if err := tx.AppendEntries(ctx, &journal.Entry{
			ID: id.NewEntryID(), EntityID: entity, Direction: journal.Debit,
			Amount: types.Cents(5000), CreatedAt: epoch,
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusPending, got.Status)
	assert.Nil(t, got.ConfirmedAt)

	_, err = s.GetInvoiceByOrder(ctx, o.ID)
	assert.ErrorIs(t, err, tradefin.ErrInvoiceNotFound)

	totals, err := s.EntityTotals(ctx, entity)
	require.NoError(t, err)
	assert.Equal(t, 0, totals.Count)
}
