package observability_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/tradefin"
	"github.com/xraph/tradefin/id"
	"github.com/xraph/tradefin/observability"
	"github.com/xraph/tradefin/order"
	"github.com/xraph/tradefin/store/memory"
	"github.com/xraph/tradefin/types"
)

type metric struct {
	mu           sync.Mutex
	count        float64
	observations []float64
}

func (m *metric) Inc() { m.Add(1) }

func (m *metric) Add(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.count += v
}

func (m *metric) Observe(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observations = append(m.observations, v)
}

type factory struct {
	metrics map[string]*metric
}

func newFactory() *factory { return &factory{metrics: make(map[string]*metric)} }

func (f *factory) get(name string) *metric {
	m, ok := f.metrics[name]
	if !ok {
		m = &metric{}
		f.metrics[name] = m
	}
	return m
}

func (f *factory) Counter(name string) observability.Counter     { return f.get(name) }
func (f *factory) Histogram(name string) observability.Histogram { return f.get(name) }

func (f *factory) count(name string) float64 {
	m := f.get(name)
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

func (f *factory) observed(name string) []float64 {
	m := f.get(name)
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]float64(nil), m.observations...)
}

func TestMetricsFollowWorkflow(t *testing.T) {
	f := newFactory()
	eng := tradefin.New(memory.New(), tradefin.WithPlugin(observability.NewMetricsExtension(f)))
	ctx := context.Background()
	require.NoError(t, eng.Start(ctx))
	defer eng.Stop()

	supplier, buyer, lender := id.NewEntityID(), id.NewEntityID(), id.NewEntityID()
	o := &order.Order{SupplierID: supplier, BuyerID: buyer, Amount: types.MustParse("2000")}
	require.NoError(t, eng.CreateOrder(ctx, o))
	inv, err := eng.ConfirmOrder(ctx, o.ID, buyer)
	require.NoError(t, err)

	_, err = eng.ApplyForLoan(ctx, inv.ID, supplier, types.MustParse("5000"), "")
	require.Error(t, err)
	app, err := eng.ApplyForLoan(ctx, inv.ID, supplier, types.MustParse("1000"), "")
	require.NoError(t, err)
	_, err = eng.ApplyForLoan(ctx, inv.ID, supplier, types.MustParse("1000"), "")
	require.Error(t, err)

	l, err := eng.ApproveApplication(ctx, app.ID, lender, nil, nil)
	require.NoError(t, err)
	_, err = eng.RepayLoan(ctx, l.ID, supplier)
	require.NoError(t, err)
	_, err = eng.PayInvoice(ctx, inv.ID, buyer)
	require.NoError(t, err)

	assert.Equal(t, float64(1), f.count("tradefin.order.created"))
	assert.Equal(t, float64(1), f.count("tradefin.order.confirmed"))
	assert.Equal(t, float64(1), f.count("tradefin.invoice.paid"))
	assert.Equal(t, float64(1), f.count("tradefin.application.submitted"))
	assert.Equal(t, float64(1), f.count("tradefin.application.refused.ceiling"))
	assert.Equal(t, float64(1), f.count("tradefin.application.refused.duplicate"))
	assert.Equal(t, float64(1), f.count("tradefin.loan.approved"))
	assert.Equal(t, float64(1), f.count("tradefin.loan.repaid"))
	assert.Equal(t, float64(6), f.count("tradefin.journal.entries"))

	assert.Equal(t, []float64{2000}, f.observed("tradefin.order.amount"))
	assert.Equal(t, []float64{1000}, f.observed("tradefin.loan.principal"))
	assert.Equal(t, []float64{50}, f.observed("tradefin.loan.interest"))
	assert.Equal(t, []float64{1000, 1050, 2000}, f.observed("tradefin.journal.posted_amount"))
}
