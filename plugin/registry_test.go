package plugin_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/tradefin/id"
	"github.com/xraph/tradefin/invoice"
	"github.com/xraph/tradefin/journal"
	"github.com/xraph/tradefin/order"
	"github.com/xraph/tradefin/plugin"
)

type counting struct {
	name string
	mu   sync.Mutex
	seen []string
	fail bool
}

func (c *counting) Name() string { return c.name }

func (c *counting) record(event string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen = append(c.seen, event)
	if c.fail {
		return errors.New("boom")
	}
	return nil
}

func (c *counting) events() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.seen...)
}

func (c *counting) OnOrderCreated(context.Context, *order.Order) error {
	return c.record("order.created")
}

func (c *counting) OnInvoicePaid(context.Context, *invoice.Invoice) error {
	return c.record("invoice.paid")
}

func (c *counting) OnEntriesPosted(_ context.Context, entries []*journal.Entry) error {
	return c.record("entries.posted")
}

type panicking struct{}

func (panicking) Name() string { return "panicking" }

func (panicking) OnOrderCreated(context.Context, *order.Order) error { panic("bad plugin") }

type slow struct{ release chan struct{} }

func (slow) Name() string { return "slow" }

func (s slow) OnOrderCreated(context.Context, *order.Order) error {
	<-s.release
	return nil
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	r := plugin.NewRegistry()
	require.NoError(t, r.Register(&counting{name: "audit"}))
	assert.Error(t, r.Register(&counting{name: "audit"}))
	assert.Equal(t, 1, r.Count())
	assert.NotNil(t, r.Get("audit"))
	assert.Nil(t, r.Get("missing"))
}

func TestEmitReachesOnlyImplementers(t *testing.T) {
	r := plugin.NewRegistry()
	c := &counting{name: "c"}
	require.NoError(t, r.Register(c))
	require.NoError(t, r.Register(panicking{}))

	ctx := context.Background()
	r.EmitOrderCreated(ctx, &order.Order{})
	r.EmitOrderConfirmed(ctx, &order.Order{}, &invoice.Invoice{})
	r.EmitInvoicePaid(ctx, &invoice.Invoice{})
	r.EmitEntriesPosted(ctx, nil)
	r.EmitEntriesPosted(ctx, []*journal.Entry{{}, {}})

	assert.Equal(t, []string{"order.created", "invoice.paid", "entries.posted"}, c.events())
}

func TestFailingPluginDoesNotStopOthers(t *testing.T) {
	r := plugin.NewRegistry()
	first := &counting{name: "first", fail: true}
	second := &counting{name: "second"}
	require.NoError(t, r.Register(first))
	require.NoError(t, r.Register(second))

	r.EmitOrderCreated(context.Background(), &order.Order{})

	assert.Len(t, first.events(), 1)
	assert.Len(t, second.events(), 1)
}

func TestSlowPluginTimesOut(t *testing.T) {
	s := slow{release: make(chan struct{})}
	defer close(s.release)

	r := plugin.NewRegistry().WithTimeout(20 * time.Millisecond)
	require.NoError(t, r.Register(s))

	begin := time.Now()
	r.EmitOrderCreated(context.Background(), &order.Order{})
	assert.Less(t, time.Since(begin), time.Second)
}

func TestActorContext(t *testing.T) {
	assert.True(t, plugin.ActorFrom(context.Background()).IsNil())

	actor := id.NewEntityID()
	ctx := plugin.WithActor(context.Background(), actor)
	assert.Equal(t, actor.String(), plugin.ActorFrom(ctx).String())
}
