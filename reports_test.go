package tradefin_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/tradefin/invoice"
	"github.com/xraph/tradefin/loan"
	"github.com/xraph/tradefin/order"
	"github.com/xraph/tradefin/risk"
	"github.com/xraph/tradefin/types"
)

func TestStats(t *testing.T) {
	eachBackend(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()

		f.order(t, "10")
		paid := f.invoice(t, "20")
		_, err := f.eng.PayInvoice(ctx, paid.ID, f.buyer)
		require.NoError(t, err)

		financed := f.invoice(t, "1000")
		app := f.apply(t, financed, "100")
		_, err = f.eng.ApproveApplication(ctx, app.ID, f.lender, nil, nil)
		require.NoError(t, err)
		f.apply(t, financed, "200")

		stats, err := f.eng.Stats(ctx)
		require.NoError(t, err)

		assert.Equal(t, 3, stats.TotalOrders())
		assert.Equal(t, 1, stats.Orders[order.StatusPending])
		assert.Equal(t, 1, stats.Orders[order.StatusConfirmed])
		assert.Equal(t, 1, stats.Orders[order.StatusPaid])

		assert.Equal(t, 2, stats.TotalInvoices())
		assert.Equal(t, 1, stats.Invoices[invoice.StatusUnpaid])

		assert.Equal(t, 1, stats.PendingApplications())
		assert.Equal(t, 1, stats.Applications[loan.ApplicationApproved])

		assert.Equal(t, 1, stats.TotalLoans())
		assert.Equal(t, 1, stats.Loans[loan.StatusActive])
	})
}

func TestRiskReport(t *testing.T) {
	eachBackend(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()

		// 30 days out: 80% of the invoice scores 90, 120% scores 75.
		low := f.invoice(t, "1000")
		f.apply(t, low, "800")
		edge := f.invoice(t, "1000")
		f.apply(t, edge, "1200")

		// Overriding at decision time moves the application between buckets.
		overridden := f.invoice(t, "1000")
		app := f.apply(t, overridden, "500")
		score := 20
		_, _, err := f.eng.DecideApplication(ctx, app.ID, loan.Decision{LenderID: f.lender, RiskScore: &score})
		require.NoError(t, err)

		report, err := f.eng.RiskReport(ctx)
		require.NoError(t, err)

		assert.Equal(t, 3, report.Total)
		assert.Equal(t, 2, report.Bucket(risk.LevelLow).Count)
		assert.Equal(t, types.MustParse("2000"), report.Bucket(risk.LevelLow).Requested)
		assert.Equal(t, 0, report.Bucket(risk.LevelMedium).Count)
		assert.Equal(t, 1, report.Bucket(risk.LevelHigh).Count)
		assert.Equal(t, types.MustParse("500"), report.Bucket(risk.LevelHigh).Requested)
	})
}

func TestRiskReportEmpty(t *testing.T) {
	f := newFixture(t, backends["memory"](t))
	report, err := f.eng.RiskReport(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Total)
	assert.Len(t, report.Levels, 3)
}

func TestRiskReportSpansPages(t *testing.T) {
	f := newFixture(t, backends["memory"](t))
	const apps = 1201
	for range apps {
		f.apply(t, f.invoice(t, "1000"), "800")
	}

	report, err := f.eng.RiskReport(context.Background())
	require.NoError(t, err)
	assert.Equal(t, apps, report.Total)
	assert.Equal(t, apps, report.Bucket(risk.LevelLow).Count)
	assert.Equal(t, types.MustParse("960800"), report.Bucket(risk.LevelLow).Requested)
}
