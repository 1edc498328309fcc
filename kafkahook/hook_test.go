package kafkahook_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/tradefin"
	"github.com/xraph/tradefin/id"
	"github.com/xraph/tradefin/journal"
	"github.com/xraph/tradefin/kafkahook"
	"github.com/xraph/tradefin/loan"
	"github.com/xraph/tradefin/order"
	"github.com/xraph/tradefin/store/memory"
	"github.com/xraph/tradefin/types"
)

type fakePublisher struct {
	mu       sync.Mutex
	messages []kafka.Message
	closed   bool
	err      error
}

func (p *fakePublisher) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, msgs...)
	return nil
}

func (p *fakePublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePublisher) snapshot() []kafka.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]kafka.Message(nil), p.messages...)
}

func header(m kafka.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestHookPublishesWorkflow(t *testing.T) {
	pub := &fakePublisher{}
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	hook := kafkahook.New(pub,
		kafkahook.WithTopicPrefix("scf"),
		kafkahook.WithClock(func() time.Time { return at }),
	)

	eng := tradefin.New(memory.New(), tradefin.WithPlugin(hook))
	ctx := context.Background()
	require.NoError(t, eng.Start(ctx))

	supplier, buyer, lender := id.NewEntityID(), id.NewEntityID(), id.NewEntityID()
	o := &order.Order{SupplierID: supplier, BuyerID: buyer, Amount: types.MustParse("1000")}
	require.NoError(t, eng.CreateOrder(ctx, o))
	inv, err := eng.ConfirmOrder(ctx, o.ID, buyer)
	require.NoError(t, err)
	app, err := eng.ApplyForLoan(ctx, inv.ID, supplier, types.MustParse("500"), "")
	require.NoError(t, err)
	l, err := eng.ApproveApplication(ctx, app.ID, lender, nil, nil)
	require.NoError(t, err)

	require.NoError(t, eng.Stop())
	assert.True(t, pub.closed)

	msgs := pub.snapshot()
	topics := make([]string, len(msgs))
	for i, m := range msgs {
		topics[i] = m.Topic
	}
	assert.Equal(t, []string{
		"scf.orders",
		"scf.orders",
		"scf.applications",
		"scf.loans",
		"scf.journal",
	}, topics)

	assert.Equal(t, o.ID.String(), string(msgs[0].Key))
	assert.Equal(t, kafkahook.EventOrderCreated, header(msgs[0], "event_type"))
	assert.Equal(t, inv.ID.String(), string(msgs[2].Key))
	assert.Equal(t, l.ID.String(), string(msgs[3].Key))
	assert.Equal(t, l.ID.String(), string(msgs[4].Key))

	evt, err := kafkahook.ParseEvent(msgs[3].Value)
	require.NoError(t, err)
	assert.Equal(t, kafkahook.EventLoanApproved, evt.Type)
	assert.Equal(t, header(msgs[3], "event_id"), evt.ID)
	assert.Equal(t, lender.String(), evt.ActorID)
	assert.True(t, evt.OccurredAt.Equal(at))

	var approved loan.Loan
	require.NoError(t, json.Unmarshal(evt.Payload, &approved))
	assert.Equal(t, l.ID.String(), approved.ID.String())
	assert.Equal(t, types.MustParse("500"), approved.Principal)

	posted, err := kafkahook.ParseEvent(msgs[4].Value)
	require.NoError(t, err)
	var entries []*journal.Entry
	require.NoError(t, json.Unmarshal(posted.Payload, &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, journal.Debit, entries[0].Direction)
	assert.Equal(t, lender.String(), entries[0].EntityID.String())
}

func TestHookPublishFailure(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker unavailable")}
	hook := kafkahook.New(pub)

	err := hook.OnOrderDeleted(context.Background(), &order.Order{ID: id.NewOrderID()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker unavailable")
	assert.Equal(t, "tradefin.orders", hook.Topic(kafkahook.TopicOrders))
}

func TestParseEventRejectsGarbage(t *testing.T) {
	_, err := kafkahook.ParseEvent([]byte("not json"))
	assert.Error(t, err)

	_, err = kafkahook.ParseEvent([]byte(`{"id":"nope","type":"order.created"}`))
	assert.Error(t, err)
}

func TestNewWriter(t *testing.T) {
	w := kafkahook.NewWriter("localhost:9092")
	assert.Empty(t, w.Topic)
	assert.True(t, w.AllowAutoTopicCreation)
}
