package tradefin_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/tradefin"
	"github.com/xraph/tradefin/id"
	"github.com/xraph/tradefin/invoice"
	"github.com/xraph/tradefin/journal"
	"github.com/xraph/tradefin/loan"
	"github.com/xraph/tradefin/order"
	"github.com/xraph/tradefin/plugin"
	"github.com/xraph/tradefin/store"
	"github.com/xraph/tradefin/store/memory"
	"github.com/xraph/tradefin/store/sqlite"
	"github.com/xraph/tradefin/types"
)

var start = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	eng      *tradefin.Engine
	clock    *clock
	supplier id.EntityID
	buyer    id.EntityID
	lender   id.EntityID
}

var backends = map[string]func(t *testing.T) store.Store{
	"memory": func(*testing.T) store.Store { return memory.New() },
	"sqlite": func(t *testing.T) store.Store {
		s, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "tradefin.db"))
		require.NoError(t, err)
		return s
	},
}

// eachBackend runs fn once per in-process store.
func eachBackend(t *testing.T, fn func(t *testing.T, f *fixture), opts ...tradefin.Option) {
	t.Helper()
	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			fn(t, newFixture(t, open(t), opts...))
		})
	}
}

func newFixture(t *testing.T, s store.Store, opts ...tradefin.Option) *fixture {
	t.Helper()
	c := &clock{t: start}
	base := []tradefin.Option{
		tradefin.WithClock(c.Now),
		tradefin.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	eng := tradefin.New(s, append(base, opts...)...)
	require.NoError(t, eng.Start(context.Background()))
	t.Cleanup(func() { _ = eng.Stop() })

	return &fixture{
		eng:      eng,
		clock:    c,
		supplier: id.NewEntityID(),
		buyer:    id.NewEntityID(),
		lender:   id.NewEntityID(),
	}
}

func (f *fixture) order(t *testing.T, amount string) *order.Order {
	t.Helper()
	o := &order.Order{
		SupplierID:  f.supplier,
		BuyerID:     f.buyer,
		Amount:      types.MustParse(amount),
		Description: "steel coils",
	}
	require.NoError(t, f.eng.CreateOrder(context.Background(), o))
	return o
}

func (f *fixture) invoice(t *testing.T, amount string) *invoice.Invoice {
	t.Helper()
	o := f.order(t, amount)
	inv, err := f.eng.ConfirmOrder(context.Background(), o.ID, f.buyer)
	require.NoError(t, err)
	return inv
}

func (f *fixture) apply(t *testing.T, inv *invoice.Invoice, amount string) *loan.Application {
	t.Helper()
	app, err := f.eng.ApplyForLoan(context.Background(), inv.ID, f.supplier, types.MustParse(amount), "working capital")
	require.NoError(t, err)
	return app
}

func (f *fixture) balance(t *testing.T, entity id.EntityID) types.Money {
	t.Helper()
	bal, err := f.eng.GetBalance(context.Background(), entity)
	require.NoError(t, err)
	return bal
}

func TestStartStop(t *testing.T) {
	rec := &recorder{}
	s := memory.New()
	eng := tradefin.New(s,
		tradefin.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		tradefin.WithPlugin(rec),
	)

	require.NoError(t, eng.Start(context.Background()))
	require.NoError(t, eng.Stop())

	assert.Equal(t, []string{"init", "shutdown"}, rec.events())
	assert.ErrorIs(t, s.Ping(context.Background()), tradefin.ErrStoreClosed)
}

// recorder captures lifecycle hooks in order, with the acting entity.
type recorder struct {
	mu     sync.Mutex
	log    []string
	actors []string
}

func (r *recorder) add(ctx context.Context, event string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log = append(r.log, event)
	if actor := plugin.ActorFrom(ctx); !actor.IsNil() {
		r.actors = append(r.actors, event+":"+actor.String())
	}
	return nil
}

func (r *recorder) events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.log...)
}

func (r *recorder) Name() string { return "recorder" }

func (r *recorder) OnInit(ctx context.Context, _ any) error { return r.add(ctx, "init") }
func (r *recorder) OnShutdown(ctx context.Context) error    { return r.add(ctx, "shutdown") }

func (r *recorder) OnOrderCreated(ctx context.Context, _ *order.Order) error {
	return r.add(ctx, "order.created")
}

func (r *recorder) OnOrderConfirmed(ctx context.Context, _ *order.Order, _ *invoice.Invoice) error {
	return r.add(ctx, "order.confirmed")
}

func (r *recorder) OnInvoicePaid(ctx context.Context, _ *invoice.Invoice) error {
	return r.add(ctx, "invoice.paid")
}

func (r *recorder) OnLoanApplied(ctx context.Context, _ *loan.Application) error {
	return r.add(ctx, "loan.applied")
}

func (r *recorder) OnApplicationRefused(ctx context.Context, _ id.InvoiceID, _ id.EntityID, _ error) error {
	return r.add(ctx, "application.refused")
}

func (r *recorder) OnLoanApproved(ctx context.Context, _ *loan.Application, _ *loan.Loan) error {
	return r.add(ctx, "loan.approved")
}

func (r *recorder) OnLoanRepaid(ctx context.Context, _ *loan.Repayment) error {
	return r.add(ctx, "loan.repaid")
}

func (r *recorder) OnEntriesPosted(ctx context.Context, entries []*journal.Entry) error {
	if len(entries) != 2 {
		return r.add(ctx, "entries.unpaired")
	}
	return r.add(ctx, "entries.posted")
}

func TestPluginEventsFollowWorkflow(t *testing.T) {
	rec := &recorder{}
	f := newFixture(t, memory.New(), tradefin.WithPlugin(rec))
	ctx := context.Background()

	inv := f.invoice(t, "1000")
	_, err := f.eng.ApplyForLoan(ctx, inv.ID, f.supplier, types.MustParse("5000"), "")
	require.Error(t, err)
	app := f.apply(t, inv, "800")
	l, err := f.eng.ApproveApplication(ctx, app.ID, f.lender, nil, nil)
	require.NoError(t, err)
	_, err = f.eng.RepayLoan(ctx, l.ID, f.supplier)
	require.NoError(t, err)
	_, err = f.eng.PayInvoice(ctx, inv.ID, f.buyer)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"init",
		"order.created",
		"order.confirmed",
		"application.refused",
		"loan.applied",
		"loan.approved",
		"entries.posted",
		"loan.repaid",
		"entries.posted",
		"invoice.paid",
		"entries.posted",
	}, rec.events())

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Contains(t, rec.actors, "loan.approved:"+f.lender.String())
	assert.Contains(t, rec.actors, "invoice.paid:"+f.buyer.String())
}

// failingAppends wraps a store so every journal append inside a
// transaction fails.
type failingAppends struct {
	store.Store
}

type failingRepo struct {
	store.Repository
}

var errJournalDown = assert.AnError

func (failingRepo) AppendEntries(context.Context, ...*journal.Entry) error { return errJournalDown }

func (f failingAppends) Atomic(ctx context.Context, fn store.TxFunc) error {
	return f.Store.Atomic(ctx, func(ctx context.Context, tx store.Repository) error {
		return fn(ctx, failingRepo{tx})
	})
}

func TestFailedPostingLeavesNoPartialState(t *testing.T) {
	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)
			f := newFixture(t, failingAppends{Store: s})

			inv := f.invoice(t, "10000")
			_, err := f.eng.PayInvoice(ctx, inv.ID, f.buyer)
			require.ErrorIs(t, err, errJournalDown)

			got, err := f.eng.GetInvoice(ctx, inv.ID)
			require.NoError(t, err)
			assert.Equal(t, invoice.StatusUnpaid, got.Status)
			assert.Equal(t, inv.Amount, got.RemainingAmount)

			o, err := f.eng.GetOrder(ctx, inv.OrderID)
			require.NoError(t, err)
			assert.Equal(t, order.StatusConfirmed, o.Status)

			app := f.apply(t, inv, "1000")
			_, err = f.eng.ApproveApplication(ctx, app.ID, f.lender, nil, nil)
			require.ErrorIs(t, err, errJournalDown)

			got2, err := f.eng.GetApplication(ctx, app.ID)
			require.NoError(t, err)
			assert.Equal(t, loan.ApplicationPending, got2.Status)
			_, err = f.eng.GetLoanByApplication(ctx, app.ID)
			assert.ErrorIs(t, err, tradefin.ErrLoanNotFound)

			assert.True(t, f.balance(t, f.buyer).IsZero())
			assert.True(t, f.balance(t, f.lender).IsZero())
		})
	}
}

// flakyStore fails the next n transactions as if a concurrent writer had
// won the race.
type flakyStore struct {
	store.Store

	mu    sync.Mutex
	fail  int
	calls int
}

func (s *flakyStore) failNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail, s.calls = n, 0
}

func (s *flakyStore) attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *flakyStore) Atomic(ctx context.Context, fn store.TxFunc) error {
	s.mu.Lock()
	s.calls++
	lose := s.fail > 0
	if lose {
		s.fail--
	}
	s.mu.Unlock()

	if lose {
		return fmt.Errorf("flaky: %w", tradefin.ErrConcurrentUpdate)
	}
	return s.Store.Atomic(ctx, fn)
}

func TestTransactionsRetryLostRaces(t *testing.T) {
	ctx := context.Background()
	s := &flakyStore{Store: memory.New()}
	f := newFixture(t, s)

	inv := f.invoice(t, "100")
	s.failNext(2)
	paid, err := f.eng.PayInvoice(ctx, inv.ID, f.buyer)
	require.NoError(t, err)
	assert.Equal(t, invoice.StatusPaid, paid.Status)
	assert.Equal(t, 3, s.attempts())

	inv = f.invoice(t, "100")
	s.failNext(5)
	_, err = f.eng.PayInvoice(ctx, inv.ID, f.buyer)
	require.ErrorIs(t, err, tradefin.ErrConcurrentUpdate)
	assert.True(t, tradefin.IsRetryable(err))
	assert.Equal(t, 3, s.attempts(), "attempts are bounded")

	s.failNext(0)
	_, err = f.eng.PayInvoice(ctx, inv.ID, f.buyer)
	require.NoError(t, err)
	_, err = f.eng.PayInvoice(ctx, inv.ID, f.buyer)
	require.ErrorIs(t, err, tradefin.ErrAlreadyPaid)
	assert.False(t, tradefin.IsRetryable(err))
	assert.Equal(t, 2, s.attempts(), "refusals are not retried")
}
