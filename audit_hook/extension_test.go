package audithook_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/tradefin"
	audithook "github.com/xraph/tradefin/audit_hook"
	"github.com/xraph/tradefin/id"
	"github.com/xraph/tradefin/order"
	"github.com/xraph/tradefin/store/memory"
	"github.com/xraph/tradefin/types"
)

type sink struct {
	mu     sync.Mutex
	events []*audithook.AuditEvent
}

func (s *sink) Record(_ context.Context, evt *audithook.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
	return nil
}

func (s *sink) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	for i, e := range s.events {
		out[i] = e.Action
	}
	return out
}

func (s *sink) find(action string) *audithook.AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.events {
		if e.Action == action {
			return e
		}
	}
	return nil
}

func TestAuditTrailFollowsWorkflow(t *testing.T) {
	rec := &sink{}
	eng := tradefin.New(memory.New(), tradefin.WithPlugin(audithook.New(rec, audithook.WithCurrency("USD"))))
	ctx := context.Background()
	require.NoError(t, eng.Start(ctx))
	defer eng.Stop()

	supplier, buyer, lender := id.NewEntityID(), id.NewEntityID(), id.NewEntityID()
	o := &order.Order{SupplierID: supplier, BuyerID: buyer, Amount: types.MustParse("10000")}
	require.NoError(t, eng.CreateOrder(ctx, o))
	inv, err := eng.ConfirmOrder(ctx, o.ID, buyer)
	require.NoError(t, err)

	_, err = eng.ApplyForLoan(ctx, inv.ID, supplier, types.MustParse("20000"), "")
	require.Error(t, err)
	app, err := eng.ApplyForLoan(ctx, inv.ID, supplier, types.MustParse("8000"), "")
	require.NoError(t, err)
	l, err := eng.ApproveApplication(ctx, app.ID, lender, nil, nil)
	require.NoError(t, err)
	_, err = eng.RepayLoan(ctx, l.ID, supplier)
	require.NoError(t, err)

	assert.Equal(t, []string{
		audithook.ActionOrderCreated,
		audithook.ActionOrderConfirmed,
		audithook.ActionInvoiceIssued,
		audithook.ActionApplicationRefused,
		audithook.ActionApplicationSubmitted,
		audithook.ActionLoanApproved,
		audithook.ActionEntriesPosted,
		audithook.ActionLoanRepaid,
		audithook.ActionEntriesPosted,
	}, rec.actions())

	created := rec.find(audithook.ActionOrderCreated)
	require.NotNil(t, created)
	assert.Equal(t, "$10,000.00", created.Metadata["amount"])
	assert.Equal(t, supplier.String(), created.ActorID)

	refused := rec.find(audithook.ActionApplicationRefused)
	require.NotNil(t, refused)
	assert.Equal(t, audithook.OutcomeFailure, refused.Outcome)
	assert.Contains(t, refused.Reason, "exceeds ceiling")

	approved := rec.find(audithook.ActionLoanApproved)
	require.NotNil(t, approved)
	assert.Equal(t, lender.String(), approved.ActorID)
	assert.Equal(t, l.ID.String(), approved.ResourceID)

	repaid := rec.find(audithook.ActionLoanRepaid)
	require.NotNil(t, repaid)
	assert.Equal(t, "$400.00", repaid.Metadata["interest"])
}

func TestAuditActionFilters(t *testing.T) {
	ctx := context.Background()
	o := &order.Order{ID: id.NewOrderID(), Amount: types.Cents(100)}

	t.Run("enabled", func(t *testing.T) {
		rec := &sink{}
		ext := audithook.New(rec, audithook.WithEnabledActions(audithook.ActionOrderDeleted))
		require.NoError(t, ext.OnOrderCreated(ctx, o))
		require.NoError(t, ext.OnOrderDeleted(ctx, o))
		assert.Equal(t, []string{audithook.ActionOrderDeleted}, rec.actions())
	})

	t.Run("disabled", func(t *testing.T) {
		rec := &sink{}
		ext := audithook.New(rec, audithook.WithDisabledActions(audithook.ActionOrderCreated))
		require.NoError(t, ext.OnOrderCreated(ctx, o))
		require.NoError(t, ext.OnOrderDeleted(ctx, o))
		assert.Equal(t, []string{audithook.ActionOrderDeleted}, rec.actions())
	})
}

func TestRecorderFailureIsSwallowed(t *testing.T) {
	ext := audithook.New(audithook.RecorderFunc(func(context.Context, *audithook.AuditEvent) error {
		return errors.New("audit backend down")
	}))
	assert.NoError(t, ext.OnOrderCreated(context.Background(), &order.Order{Amount: types.Cents(1)}))
}
