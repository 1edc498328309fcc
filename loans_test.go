package tradefin_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/tradefin"
	"github.com/xraph/tradefin/id"
	"github.com/xraph/tradefin/journal"
	"github.com/xraph/tradefin/loan"
	"github.com/xraph/tradefin/order"
	"github.com/xraph/tradefin/types"
)

func TestEligibilityCeiling(t *testing.T) {
	eachBackend(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		inv := f.invoice(t, "10000.00")

		ok, err := f.eng.CheckEligibility(ctx, inv.ID, types.MustParse("11999.99"))
		require.NoError(t, err)
		assert.Equal(t, types.MustParse("12000.00"), ok.Ceiling)

		_, err = f.eng.CheckEligibility(ctx, inv.ID, types.MustParse("12000.00"))
		require.NoError(t, err)

		_, err = f.eng.ApplyForLoan(ctx, inv.ID, f.supplier, types.MustParse("12000.01"), "")
		require.ErrorIs(t, err, tradefin.ErrAmountExceedsCeiling)
		var refused *tradefin.EligibilityError
		require.ErrorAs(t, err, &refused)
		require.NotNil(t, refused.Ceiling)
		assert.Equal(t, types.MustParse("12000.00"), *refused.Ceiling)

		apps, err := f.eng.ListApplications(ctx, loan.ApplicationListOpts{InvoiceID: inv.ID})
		require.NoError(t, err)
		assert.Empty(t, apps)

		app := f.apply(t, inv, "11999.99")
		assert.Equal(t, loan.ApplicationPending, app.Status)
	})
}

func TestEligibilityGateOrder(t *testing.T) {
	eachBackend(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()

		_, err := f.eng.CheckEligibility(ctx, id.NewInvoiceID(), types.Cents(100))
		assert.ErrorIs(t, err, tradefin.ErrInvoiceNotFound)
		assert.True(t, tradefin.IsEligibilityError(err))

		paid := f.invoice(t, "100")
		_, err = f.eng.PayInvoice(ctx, paid.ID, f.buyer)
		require.NoError(t, err)
		// A paid invoice is refused before the amount is looked at.
		_, err = f.eng.CheckEligibility(ctx, paid.ID, types.Cents(-5))
		assert.ErrorIs(t, err, tradefin.ErrInvoiceNotEligible)

		inv := f.invoice(t, "100")
		_, err = f.eng.CheckEligibility(ctx, inv.ID, types.Zero())
		assert.ErrorIs(t, err, tradefin.ErrInvalidAmount)
		_, err = f.eng.CheckEligibility(ctx, inv.ID, types.Cents(-1))
		assert.ErrorIs(t, err, tradefin.ErrInvalidAmount)

		f.apply(t, inv, "50")
		// The ceiling check runs before the duplicate check.
		_, err = f.eng.CheckEligibility(ctx, inv.ID, types.MustParse("500"))
		assert.ErrorIs(t, err, tradefin.ErrAmountExceedsCeiling)
		_, err = f.eng.CheckEligibility(ctx, inv.ID, types.MustParse("50"))
		assert.ErrorIs(t, err, tradefin.ErrDuplicatePendingApplication)
	})
}

func TestApplyAttachesRiskScore(t *testing.T) {
	f := newFixture(t, backends["memory"](t))
	inv := f.invoice(t, "10000")

	// 30 days to due and 80% of the invoice amount.
	app := f.apply(t, inv, "8000")
	require.NotNil(t, app.RiskScore)
	assert.Equal(t, 90, *app.RiskScore)

	got, err := f.eng.GetApplication(context.Background(), app.ID)
	require.NoError(t, err)
	require.NotNil(t, got.RiskScore)
	assert.Equal(t, 90, *got.RiskScore)
	assert.Equal(t, "working capital", got.Reason)
}

func TestLoanRepayment(t *testing.T) {
	eachBackend(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		inv := f.invoice(t, "10000")
		app := f.apply(t, inv, "1000.00")

		rate := decimal.NewFromInt(5)
		due := start.Add(60 * 24 * time.Hour)
		l, err := f.eng.ApproveApplication(ctx, app.ID, f.lender, &rate, &due)
		require.NoError(t, err)
		assert.Equal(t, loan.StatusActive, l.Status)
		assert.Equal(t, types.MustParse("1000.00"), l.Principal)
		assert.True(t, l.RepaymentDate.Equal(due))

		assert.Equal(t, types.MustParse("1000.00"), f.balance(t, f.lender))
		assert.Equal(t, types.MustParse("-1000.00"), f.balance(t, f.supplier))

		decided, err := f.eng.GetApplication(ctx, app.ID)
		require.NoError(t, err)
		assert.Equal(t, loan.ApplicationApproved, decided.Status)
		assert.Equal(t, f.lender.String(), decided.DecidedBy.String())

		receipt, err := f.eng.RepayLoan(ctx, l.ID, f.supplier)
		require.NoError(t, err)
		assert.Equal(t, types.MustParse("1050.00"), receipt.Total)
		assert.Equal(t, types.MustParse("50.00"), receipt.Interest)
		assert.Equal(t, loan.StatusRepaid, receipt.Loan.Status)

		// Disbursement 1000 then repayment 1050, each as a matched pair.
		assert.Equal(t, types.MustParse("-50.00"), f.balance(t, f.lender))
		assert.Equal(t, types.MustParse("50.00"), f.balance(t, f.supplier))

		stored, err := f.eng.GetLoan(ctx, l.ID)
		require.NoError(t, err)
		assert.Equal(t, loan.StatusRepaid, stored.Status)
		assert.Equal(t, types.MustParse("1050.00"), stored.AmountRepaid)
		require.NotNil(t, stored.ClosedAt)

		_, err = f.eng.RepayLoan(ctx, l.ID, f.supplier)
		assert.ErrorIs(t, err, tradefin.ErrInvalidLoanState)
		_, err = f.eng.DefaultLoan(ctx, l.ID, f.lender)
		assert.ErrorIs(t, err, tradefin.ErrInvalidLoanState)

		entries, err := f.eng.ListLedgerEntriesByReference(ctx, l.ID.String(), journal.RefLoan, 0, 0)
		require.NoError(t, err)
		assert.Len(t, entries, 4)
	})
}

func TestRepaymentRoundsHalfEven(t *testing.T) {
	f := newFixture(t, backends["memory"](t))
	ctx := context.Background()
	inv := f.invoice(t, "100")
	app := f.apply(t, inv, "0.50")

	// 0.50 × 1.05 = 0.525, which rounds to the even cent.
	l, err := f.eng.ApproveApplication(ctx, app.ID, f.lender, nil, nil)
	require.NoError(t, err)
	receipt, err := f.eng.RepayLoan(ctx, l.ID, f.supplier)
	require.NoError(t, err)
	assert.Equal(t, types.MustParse("0.52"), receipt.Total)
}

func TestAmountOverflow(t *testing.T) {
	eachBackend(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()

		err := f.eng.CreateOrder(ctx, &order.Order{
			SupplierID: f.supplier,
			BuyerID:    f.buyer,
			Amount:     types.MustParse("83010348331692982.20"),
		})
		require.ErrorIs(t, err, tradefin.ErrInvalidAmount)

		_, err = f.eng.RecordLedgerEntry(ctx, f.buyer, journal.Debit, types.MaxAmount.Add(types.Cents(1)), "", nil)
		require.ErrorIs(t, err, tradefin.ErrInvalidAmount)

		// The largest accepted invoice still has a representable ceiling.
		inv := f.invoice(t, types.MaxAmount.String())
		app := f.apply(t, inv, types.MaxAmount.String())

		rate := decimal.NewFromInt(1_000_000)
		due := start.Add(24 * time.Hour)
		_, err = f.eng.ApproveApplication(ctx, app.ID, f.lender, &rate, &due)
		require.ErrorIs(t, err, tradefin.ErrInvalidLoanTerms)

		got, err := f.eng.GetApplication(ctx, app.ID)
		require.NoError(t, err)
		assert.Equal(t, loan.ApplicationPending, got.Status)
		assert.True(t, f.balance(t, f.lender).IsZero())
	})
}

func TestConcurrentApplications(t *testing.T) {
	eachBackend(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		inv := f.invoice(t, "10000")

		const workers = 8
		var (
			wg         sync.WaitGroup
			mu         sync.Mutex
			admitted   int
			duplicates int
			others     []error
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := f.eng.ApplyForLoan(ctx, inv.ID, f.supplier, types.MustParse("5000"), "")
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					admitted++
				case errors.Is(err, tradefin.ErrDuplicatePendingApplication):
					duplicates++
				default:
					others = append(others, err)
				}
			}()
		}
		wg.Wait()

		assert.Empty(t, others)
		assert.Equal(t, 1, admitted)
		assert.Equal(t, workers-1, duplicates)

		apps, err := f.eng.ListApplications(ctx, loan.ApplicationListOpts{
			InvoiceID: inv.ID,
			Status:    loan.ApplicationPending,
		})
		require.NoError(t, err)
		assert.Len(t, apps, 1)
	})
}

func TestDecisionsAreFinal(t *testing.T) {
	eachBackend(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		inv := f.invoice(t, "1000")

		rejected := f.apply(t, inv, "500")
		app, err := f.eng.RejectApplication(ctx, rejected.ID, f.lender)
		require.NoError(t, err)
		assert.Equal(t, loan.ApplicationRejected, app.Status)
		require.NotNil(t, app.DecidedAt)

		_, err = f.eng.ApproveApplication(ctx, rejected.ID, f.lender, nil, nil)
		assert.ErrorIs(t, err, tradefin.ErrAlreadyDecided)
		_, err = f.eng.GetLoanByApplication(ctx, rejected.ID)
		assert.ErrorIs(t, err, tradefin.ErrLoanNotFound)

		// A rejection frees the invoice for a new application.
		approved := f.apply(t, inv, "600")
		_, err = f.eng.ApproveApplication(ctx, approved.ID, f.lender, nil, nil)
		require.NoError(t, err)
		_, err = f.eng.RejectApplication(ctx, approved.ID, f.lender)
		assert.ErrorIs(t, err, tradefin.ErrAlreadyDecided)

		loans, err := f.eng.ListLoans(ctx, loan.ListOpts{LenderID: f.lender})
		require.NoError(t, err)
		assert.Len(t, loans, 1)
	})
}

func TestDecisionValidation(t *testing.T) {
	f := newFixture(t, backends["memory"](t))
	ctx := context.Background()
	inv := f.invoice(t, "1000")
	app := f.apply(t, inv, "500")

	_, _, err := f.eng.DecideApplication(ctx, app.ID, loan.Decision{Approve: true})
	assert.ErrorIs(t, err, tradefin.ErrInvalidInput)

	score := 101
	_, _, err = f.eng.DecideApplication(ctx, app.ID, loan.Decision{LenderID: f.lender, RiskScore: &score})
	assert.ErrorIs(t, err, tradefin.ErrInvalidInput)

	_, err = f.eng.ApproveApplication(ctx, app.ID, f.supplier, nil, nil)
	assert.ErrorIs(t, err, tradefin.ErrInvalidInput)

	_, _, err = f.eng.DecideApplication(ctx, id.NewApplicationID(), loan.Decision{LenderID: f.lender})
	assert.ErrorIs(t, err, tradefin.ErrApplicationNotFound)

	got, err := f.eng.GetApplication(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, loan.ApplicationPending, got.Status)
}

func TestDecisionOverridesRiskScore(t *testing.T) {
	f := newFixture(t, backends["memory"](t))
	ctx := context.Background()
	inv := f.invoice(t, "1000")
	app := f.apply(t, inv, "500")

	score := 35
	decided, l, err := f.eng.DecideApplication(ctx, app.ID, loan.Decision{LenderID: f.lender, RiskScore: &score})
	require.NoError(t, err)
	assert.Nil(t, l)
	require.NotNil(t, decided.RiskScore)
	assert.Equal(t, 35, *decided.RiskScore)
}

func TestLoanTerms(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		f := newFixture(t, backends["memory"](t))
		inv := f.invoice(t, "1000")
		app := f.apply(t, inv, "100")

		l, err := f.eng.ApproveApplication(context.Background(), app.ID, f.lender, nil, nil)
		require.NoError(t, err)
		assert.True(t, l.InterestRate.Equal(decimal.NewFromInt(5)))
		assert.True(t, l.RepaymentDate.Equal(start.Add(30*24*time.Hour)))
	})

	t.Run("custom defaults", func(t *testing.T) {
		f := newFixture(t, backends["memory"](t),
			tradefin.WithLoanDefaults(decimal.RequireFromString("7.5"), 90*24*time.Hour))
		inv := f.invoice(t, "1000")
		app := f.apply(t, inv, "200")

		l, err := f.eng.ApproveApplication(context.Background(), app.ID, f.lender, nil, nil)
		require.NoError(t, err)
		total, err := l.TotalDue()
		require.NoError(t, err)
		assert.Equal(t, types.MustParse("215.00"), total)
		assert.True(t, l.RepaymentDate.Equal(start.Add(90*24*time.Hour)))
	})

	t.Run("strict", func(t *testing.T) {
		f := newFixture(t, backends["memory"](t), tradefin.WithStrictLoanTerms())
		ctx := context.Background()
		inv := f.invoice(t, "1000")
		app := f.apply(t, inv, "100")

		_, err := f.eng.ApproveApplication(ctx, app.ID, f.lender, nil, nil)
		assert.ErrorIs(t, err, tradefin.ErrInvalidLoanTerms)

		rate := decimal.NewFromInt(4)
		due := start.Add(10 * 24 * time.Hour)
		l, err := f.eng.ApproveApplication(ctx, app.ID, f.lender, &rate, &due)
		require.NoError(t, err)
		total, err := l.TotalDue()
		require.NoError(t, err)
		assert.Equal(t, types.MustParse("104.00"), total)
	})

	t.Run("invalid", func(t *testing.T) {
		f := newFixture(t, backends["memory"](t))
		ctx := context.Background()
		inv := f.invoice(t, "1000")
		app := f.apply(t, inv, "100")

		negative := decimal.NewFromInt(-1)
		_, err := f.eng.ApproveApplication(ctx, app.ID, f.lender, &negative, nil)
		assert.ErrorIs(t, err, tradefin.ErrInvalidLoanTerms)

		past := start.Add(-time.Hour)
		_, err = f.eng.ApproveApplication(ctx, app.ID, f.lender, nil, &past)
		assert.ErrorIs(t, err, tradefin.ErrInvalidLoanTerms)

		got, err := f.eng.GetApplication(ctx, app.ID)
		require.NoError(t, err)
		assert.Equal(t, loan.ApplicationPending, got.Status)
	})
}

func TestDefaultLoan(t *testing.T) {
	eachBackend(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		inv := f.invoice(t, "1000")
		app := f.apply(t, inv, "400")
		l, err := f.eng.ApproveApplication(ctx, app.ID, f.lender, nil, nil)
		require.NoError(t, err)

		defaulted, err := f.eng.DefaultLoan(ctx, l.ID, f.lender)
		require.NoError(t, err)
		assert.Equal(t, loan.StatusDefaulted, defaulted.Status)

		_, err = f.eng.RepayLoan(ctx, l.ID, f.supplier)
		assert.ErrorIs(t, err, tradefin.ErrInvalidLoanState)

		// Only the disbursement was posted.
		assert.Equal(t, types.MustParse("400"), f.balance(t, f.lender))
	})
}

func TestApplicationSummary(t *testing.T) {
	f := newFixture(t, backends["memory"](t))
	ctx := context.Background()
	inv := f.invoice(t, "1000")
	app := f.apply(t, inv, "300")

	summary, err := f.eng.ApplicationSummary(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, inv.Number, summary.InvoiceNumber)
	assert.Equal(t, inv.Amount, summary.InvoiceAmount)
	assert.Nil(t, summary.Loan)

	l, err := f.eng.ApproveApplication(ctx, app.ID, f.lender, nil, nil)
	require.NoError(t, err)

	summary, err = f.eng.ApplicationSummary(ctx, app.ID)
	require.NoError(t, err)
	require.NotNil(t, summary.Loan)
	assert.Equal(t, l.ID.String(), summary.Loan.ID.String())
}
