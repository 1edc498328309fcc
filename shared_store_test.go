package tradefin_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/tradefin"
	"github.com/xraph/tradefin/id"
	"github.com/xraph/tradefin/invoice"
	"github.com/xraph/tradefin/loan"
	"github.com/xraph/tradefin/order"
	"github.com/xraph/tradefin/store"
	"github.com/xraph/tradefin/store/sqlite"
	"github.com/xraph/tradefin/types"
)

// sharedEngines starts n engines, each with its own connection pool and
// per-invoice locks, on one SQLite file. They behave like separate
// processes.
func sharedEngines(t *testing.T, n int) []*tradefin.Engine {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "shared.db")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	engines := make([]*tradefin.Engine, n)
	for i := range engines {
		s, err := sqlite.Open(ctx, path)
		require.NoError(t, err)
		eng := tradefin.New(s, tradefin.WithLogger(logger))
		require.NoError(t, eng.Start(ctx))
		t.Cleanup(func() { _ = eng.Stop() })
		engines[i] = eng
	}
	return engines
}

func sharedInvoice(t *testing.T, eng *tradefin.Engine, supplier, buyer id.EntityID) *invoice.Invoice {
	t.Helper()
	ctx := context.Background()
	o := &order.Order{
		SupplierID:  supplier,
		BuyerID:     buyer,
		Amount:      types.MustParse("10000"),
		Description: "steel coils",
	}
	require.NoError(t, eng.CreateOrder(ctx, o))
	inv, err := eng.ConfirmOrder(ctx, o.ID, buyer)
	require.NoError(t, err)
	return inv
}

func TestSharedStoreAdmitsOnePendingApplication(t *testing.T) {
	const (
		engines = 8
		rounds  = 20
	)
	ctx := context.Background()
	engs := sharedEngines(t, engines)
	supplier, buyer := id.NewEntityID(), id.NewEntityID()

	for round := range rounds {
		inv := sharedInvoice(t, engs[round%engines], supplier, buyer)

		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			admitted int
			refused  []error
		)
		for _, eng := range engs {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := eng.ApplyForLoan(ctx, inv.ID, supplier, types.MustParse("5000"), "")
				mu.Lock()
				defer mu.Unlock()
				if err == nil {
					admitted++
					return
				}
				refused = append(refused, err)
			}()
		}
		wg.Wait()

		require.Equal(t, 1, admitted, "round %d", round)
		require.Len(t, refused, engines-1, "round %d", round)
		for _, err := range refused {
			var elig *tradefin.EligibilityError
			require.ErrorAs(t, err, &elig, "round %d", round)
			assert.ErrorIs(t, elig.Kind, tradefin.ErrDuplicatePendingApplication, "round %d", round)
		}

		pending, err := engs[0].ListApplications(ctx, loan.ApplicationListOpts{
			InvoiceID: inv.ID,
			Status:    loan.ApplicationPending,
		})
		require.NoError(t, err)
		assert.Len(t, pending, 1, "round %d", round)
	}
}

func TestSharedStorePayAndApplyExclude(t *testing.T) {
	const rounds = 20
	ctx := context.Background()
	engs := sharedEngines(t, 2)
	payer, applier := engs[0], engs[1]
	supplier, buyer := id.NewEntityID(), id.NewEntityID()

	for round := range rounds {
		inv := sharedInvoice(t, payer, supplier, buyer)

		var (
			wg               sync.WaitGroup
			payErr, applyErr error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, payErr = payer.PayInvoice(ctx, inv.ID, buyer)
		}()
		go func() {
			defer wg.Done()
			_, applyErr = applier.ApplyForLoan(ctx, inv.ID, supplier, types.MustParse("5000"), "")
		}()
		wg.Wait()

		got, err := payer.GetInvoice(ctx, inv.ID)
		require.NoError(t, err)
		pending, err := payer.ListApplications(ctx, loan.ApplicationListOpts{
			InvoiceID: inv.ID,
			Status:    loan.ApplicationPending,
		})
		require.NoError(t, err)

		if payErr == nil {
			assert.ErrorIs(t, applyErr, tradefin.ErrInvoiceNotEligible, "round %d", round)
			assert.Equal(t, invoice.StatusPaid, got.Status, "round %d", round)
			assert.Empty(t, pending, "round %d", round)
			continue
		}
		require.NoError(t, applyErr, "round %d", round)
		assert.ErrorIs(t, payErr, tradefin.ErrBlockedByPendingLoan, "round %d", round)
		assert.Equal(t, invoice.StatusUnpaid, got.Status, "round %d", round)
		assert.Len(t, pending, 1, "round %d", round)
	}
}

// blindStore hides pending applications from the eligibility gate, so a
// second submission reaches the store's uniqueness guarantee.
type blindStore struct {
	store.Store
}

func (s blindStore) HasPendingApplication(context.Context, id.InvoiceID) (bool, error) {
	return false, nil
}

func (s blindStore) Atomic(ctx context.Context, fn store.TxFunc) error {
	return s.Store.Atomic(ctx, func(ctx context.Context, tx store.Repository) error {
		return fn(ctx, blindRepo{tx})
	})
}

type blindRepo struct {
	store.Repository
}

func (blindRepo) HasPendingApplication(context.Context, id.InvoiceID) (bool, error) {
	return false, nil
}

func TestStoreConstraintBecomesEligibilityError(t *testing.T) {
	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, blindStore{open(t)})
			ctx := context.Background()
			inv := f.invoice(t, "10000")
			f.apply(t, inv, "5000")

			_, err := f.eng.ApplyForLoan(ctx, inv.ID, f.supplier, types.MustParse("4000"), "")
			var elig *tradefin.EligibilityError
			require.ErrorAs(t, err, &elig)
			assert.ErrorIs(t, elig.Kind, tradefin.ErrDuplicatePendingApplication)
			assert.Contains(t, elig.Reason, inv.Number)
			assert.False(t, errors.Is(err, tradefin.ErrConcurrentUpdate))

			apps, err := f.eng.ListApplications(ctx, loan.ApplicationListOpts{InvoiceID: inv.ID})
			require.NoError(t, err)
			assert.Len(t, apps, 1)
		})
	}
}
