// Package kafkahook publishes tradefin workflow events to Kafka.
//
// Each event is a JSON envelope keyed by the aggregate it concerns, so all
// events of one order, invoice or loan land on the same partition in order.
package kafkahook

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/xraph/tradefin/invoice"
	"github.com/xraph/tradefin/journal"
	"github.com/xraph/tradefin/loan"
	"github.com/xraph/tradefin/order"
	"github.com/xraph/tradefin/plugin"
)

var (
	_ plugin.Plugin                = (*Hook)(nil)
	_ plugin.OnShutdown            = (*Hook)(nil)
	_ plugin.OnOrderCreated        = (*Hook)(nil)
	_ plugin.OnOrderConfirmed      = (*Hook)(nil)
	_ plugin.OnOrderDeleted        = (*Hook)(nil)
	_ plugin.OnInvoicePaid         = (*Hook)(nil)
	_ plugin.OnLoanApplied         = (*Hook)(nil)
	_ plugin.OnApplicationRejected = (*Hook)(nil)
	_ plugin.OnLoanApproved        = (*Hook)(nil)
	_ plugin.OnLoanRepaid          = (*Hook)(nil)
	_ plugin.OnLoanDefaulted       = (*Hook)(nil)
	_ plugin.OnEntriesPosted       = (*Hook)(nil)
)

// DefaultTopicPrefix prefixes every topic when no prefix is configured.
const DefaultTopicPrefix = "tradefin"

// Topic suffixes, one per aggregate stream.
const (
	TopicOrders       = "orders"
	TopicInvoices     = "invoices"
	TopicApplications = "applications"
	TopicLoans        = "loans"
	TopicJournal      = "journal"
)

// Event types carried in the envelope.
const (
	EventOrderCreated         = "order.created"
	EventOrderConfirmed       = "order.confirmed"
	EventOrderDeleted         = "order.deleted"
	EventInvoicePaid          = "invoice.paid"
	EventApplicationSubmitted = "application.submitted"
	EventApplicationRejected  = "application.rejected"
	EventLoanApproved         = "loan.approved"
	EventLoanRepaid           = "loan.repaid"
	EventLoanDefaulted        = "loan.defaulted"
	EventEntriesPosted        = "journal.posted"
)

// Publisher is the subset of *kafka.Writer the hook needs.
type Publisher interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Event is the JSON envelope written as the message value.
type Event struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	ActorID    string          `json:"actor_id,omitempty"`
	Payload    json.RawMessage `json:"payload"`
}

// Hook is a tradefin plugin that forwards workflow events to Kafka.
type Hook struct {
	publisher Publisher
	prefix    string
	clock     func() time.Time
	logger    *slog.Logger
}

// Option configures a Hook.
type Option func(*Hook)

// WithTopicPrefix sets the topic prefix; topics are "<prefix>.<stream>".
func WithTopicPrefix(prefix string) Option {
	return func(h *Hook) {
		if prefix != "" {
			h.prefix = prefix
		}
	}
}

// WithLogger sets the logger for the hook.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hook) { h.logger = logger }
}

// WithClock overrides the envelope timestamp source.
func WithClock(now func() time.Time) Option {
	return func(h *Hook) { h.clock = now }
}

// New creates a Hook writing through p.
func New(p Publisher, opts ...Option) *Hook {
	h := &Hook{
		publisher: p,
		prefix:    DefaultTopicPrefix,
		clock:     time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// NewWriter returns a Kafka writer suitable for New. Topics are set per
// message, so the writer itself carries none.
func NewWriter(brokers ...string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

// Name implements plugin.Plugin.
func (h *Hook) Name() string { return "kafka-hook" }

// Topic returns the full topic name for a stream.
func (h *Hook) Topic(stream string) string {
	return h.prefix + "." + stream
}

// OnShutdown closes the publisher.
func (h *Hook) OnShutdown(context.Context) error {
	return h.publisher.Close()
}

// OnOrderCreated implements plugin.OnOrderCreated.
func (h *Hook) OnOrderCreated(ctx context.Context, o *order.Order) error {
	return h.publish(ctx, TopicOrders, o.ID.String(), EventOrderCreated, o)
}

// OnOrderConfirmed implements plugin.OnOrderConfirmed.
func (h *Hook) OnOrderConfirmed(ctx context.Context, o *order.Order, inv *invoice.Invoice) error {
	return h.publish(ctx, TopicOrders, o.ID.String(), EventOrderConfirmed, struct {
		Order   *order.Order     `json:"order"`
		Invoice *invoice.Invoice `json:"invoice"`
	}{o, inv})
}

// OnOrderDeleted implements plugin.OnOrderDeleted.
func (h *Hook) OnOrderDeleted(ctx context.Context, o *order.Order) error {
	return h.publish(ctx, TopicOrders, o.ID.String(), EventOrderDeleted, o)
}

// OnInvoicePaid implements plugin.OnInvoicePaid.
func (h *Hook) OnInvoicePaid(ctx context.Context, inv *invoice.Invoice) error {
	return h.publish(ctx, TopicInvoices, inv.ID.String(), EventInvoicePaid, inv)
}

// OnLoanApplied implements plugin.OnLoanApplied.
func (h *Hook) OnLoanApplied(ctx context.Context, app *loan.Application) error {
	return h.publish(ctx, TopicApplications, app.InvoiceID.String(), EventApplicationSubmitted, app)
}

// OnApplicationRejected implements plugin.OnApplicationRejected.
func (h *Hook) OnApplicationRejected(ctx context.Context, app *loan.Application) error {
	return h.publish(ctx, TopicApplications, app.InvoiceID.String(), EventApplicationRejected, app)
}

// OnLoanApproved implements plugin.OnLoanApproved.
func (h *Hook) OnLoanApproved(ctx context.Context, _ *loan.Application, l *loan.Loan) error {
	return h.publish(ctx, TopicLoans, l.ID.String(), EventLoanApproved, l)
}

// OnLoanRepaid implements plugin.OnLoanRepaid.
func (h *Hook) OnLoanRepaid(ctx context.Context, r *loan.Repayment) error {
	return h.publish(ctx, TopicLoans, r.Loan.ID.String(), EventLoanRepaid, r)
}

// OnLoanDefaulted implements plugin.OnLoanDefaulted.
func (h *Hook) OnLoanDefaulted(ctx context.Context, l *loan.Loan) error {
	return h.publish(ctx, TopicLoans, l.ID.String(), EventLoanDefaulted, l)
}

// OnEntriesPosted publishes one message per posting batch, keyed by the
// shared reference.
func (h *Hook) OnEntriesPosted(ctx context.Context, entries []*journal.Entry) error {
	key := entries[0].ID.String()
	if entries[0].Reference != nil {
		key = entries[0].Reference.ID
	}
	return h.publish(ctx, TopicJournal, key, EventEntriesPosted, entries)
}

func (h *Hook) publish(ctx context.Context, stream, key, eventType string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("kafkahook: encode %s payload: %w", eventType, err)
	}

	evt := Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: h.clock().UTC(),
		Payload:    body,
	}
	if actor := plugin.ActorFrom(ctx); !actor.IsNil() {
		evt.ActorID = actor.String()
	}

	value, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("kafkahook: encode %s envelope: %w", eventType, err)
	}

	msg := kafka.Message{
		Topic: h.Topic(stream),
		Key:   []byte(key),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
			{Key: "event_id", Value: []byte(evt.ID)},
		},
	}
	if err := h.publisher.WriteMessages(ctx, msg); err != nil {
		h.logger.Warn("kafkahook: publish failed",
			"topic", msg.Topic,
			"event", eventType,
			"error", err,
		)
		return fmt.Errorf("kafkahook: publish %s: %w", eventType, err)
	}
	return nil
}

// ParseEvent decodes a message value written by the hook.
func ParseEvent(value []byte) (*Event, error) {
	var evt Event
	if err := json.Unmarshal(value, &evt); err != nil {
		return nil, fmt.Errorf("kafkahook: decode event: %w", err)
	}
	if _, err := uuid.Parse(evt.ID); err != nil {
		return nil, fmt.Errorf("kafkahook: event id: %w", err)
	}
	return &evt, nil
}
