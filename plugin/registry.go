package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/tradefin/id"
	"github.com/xraph/tradefin/invoice"
	"github.com/xraph/tradefin/journal"
	"github.com/xraph/tradefin/loan"
	"github.com/xraph/tradefin/order"
)

// DefaultTimeout bounds a single plugin call.
const DefaultTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// Hook implementations are discovered once at registration and cached per
// hook type.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	// Type-cached plugin lists for efficient dispatch
	onInit                []OnInit
	onShutdown            []OnShutdown
	onOrderCreated        []OnOrderCreated
	onOrderConfirmed      []OnOrderConfirmed
	onOrderDeleted        []OnOrderDeleted
	onInvoicePaid         []OnInvoicePaid
	onLoanApplied         []OnLoanApplied
	onApplicationRefused  []OnApplicationRefused
	onApplicationRejected []OnApplicationRejected
	onLoanApproved        []OnLoanApproved
	onLoanRepaid          []OnLoanRepaid
	onLoanDefaulted       []OnLoanDefaulted
	onEntriesPosted       []OnEntriesPosted
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-call plugin timeout. Non-positive values are ignored.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnOrderCreated); ok {
		r.onOrderCreated = append(r.onOrderCreated, v)
	}
	if v, ok := p.(OnOrderConfirmed); ok {
		r.onOrderConfirmed = append(r.onOrderConfirmed, v)
	}
	if v, ok := p.(OnOrderDeleted); ok {
		r.onOrderDeleted = append(r.onOrderDeleted, v)
	}
	if v, ok := p.(OnInvoicePaid); ok {
		r.onInvoicePaid = append(r.onInvoicePaid, v)
	}
	if v, ok := p.(OnLoanApplied); ok {
		r.onLoanApplied = append(r.onLoanApplied, v)
	}
	if v, ok := p.(OnApplicationRefused); ok {
		r.onApplicationRefused = append(r.onApplicationRefused, v)
	}
	if v, ok := p.(OnApplicationRejected); ok {
		r.onApplicationRejected = append(r.onApplicationRejected, v)
	}
	if v, ok := p.(OnLoanApproved); ok {
		r.onLoanApproved = append(r.onLoanApproved, v)
	}
	if v, ok := p.(OnLoanRepaid); ok {
		r.onLoanRepaid = append(r.onLoanRepaid, v)
	}
	if v, ok := p.(OnLoanDefaulted); ok {
		r.onLoanDefaulted = append(r.onLoanDefaulted, v)
	}
	if v, ok := p.(OnEntriesPosted); ok {
		r.onEntriesPosted = append(r.onEntriesPosted, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", implementedHooks(p),
	)

	return nil
}

var hookTypes = []struct {
	name string
	typ  reflect.Type
}{
	{"OnInit", reflect.TypeOf((*OnInit)(nil)).Elem()},
	{"OnShutdown", reflect.TypeOf((*OnShutdown)(nil)).Elem()},
	{"OnOrderCreated", reflect.TypeOf((*OnOrderCreated)(nil)).Elem()},
	{"OnOrderConfirmed", reflect.TypeOf((*OnOrderConfirmed)(nil)).Elem()},
	{"OnOrderDeleted", reflect.TypeOf((*OnOrderDeleted)(nil)).Elem()},
	{"OnInvoicePaid", reflect.TypeOf((*OnInvoicePaid)(nil)).Elem()},
	{"OnLoanApplied", reflect.TypeOf((*OnLoanApplied)(nil)).Elem()},
	{"OnApplicationRefused", reflect.TypeOf((*OnApplicationRefused)(nil)).Elem()},
	{"OnApplicationRejected", reflect.TypeOf((*OnApplicationRejected)(nil)).Elem()},
	{"OnLoanApproved", reflect.TypeOf((*OnLoanApproved)(nil)).Elem()},
	{"OnLoanRepaid", reflect.TypeOf((*OnLoanRepaid)(nil)).Elem()},
	{"OnLoanDefaulted", reflect.TypeOf((*OnLoanDefaulted)(nil)).Elem()},
	{"OnEntriesPosted", reflect.TypeOf((*OnEntriesPosted)(nil)).Elem()},
}

// implementedHooks returns the names of the hooks p implements.
func implementedHooks(p Plugin) []string {
	var names []string
	t := reflect.TypeOf(p)
	for _, h := range hookTypes {
		if t.Implements(h.typ) {
			names = append(names, h.name)
		}
	}
	return names
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine any) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	dispatch(ctx, r, "OnInit", plugins, func(p OnInit) error {
		return p.OnInit(ctx, engine)
	})
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	dispatch(ctx, r, "OnShutdown", plugins, func(p OnShutdown) error {
		return p.OnShutdown(ctx)
	})
}

// EmitOrderCreated emits an order created event.
func (r *Registry) EmitOrderCreated(ctx context.Context, o *order.Order) {
	r.mu.RLock()
	plugins := r.onOrderCreated
	r.mu.RUnlock()

	dispatch(ctx, r, "OnOrderCreated", plugins, func(p OnOrderCreated) error {
		return p.OnOrderCreated(ctx, o)
	})
}

// EmitOrderConfirmed emits an order confirmed event.
func (r *Registry) EmitOrderConfirmed(ctx context.Context, o *order.Order, inv *invoice.Invoice) {
	r.mu.RLock()
	plugins := r.onOrderConfirmed
	r.mu.RUnlock()

	dispatch(ctx, r, "OnOrderConfirmed", plugins, func(p OnOrderConfirmed) error {
		return p.OnOrderConfirmed(ctx, o, inv)
	})
}

// EmitOrderDeleted emits an order deleted event.
func (r *Registry) EmitOrderDeleted(ctx context.Context, o *order.Order) {
	r.mu.RLock()
	plugins := r.onOrderDeleted
	r.mu.RUnlock()

	dispatch(ctx, r, "OnOrderDeleted", plugins, func(p OnOrderDeleted) error {
		return p.OnOrderDeleted(ctx, o)
	})
}

// EmitInvoicePaid emits an invoice paid event.
func (r *Registry) EmitInvoicePaid(ctx context.Context, inv *invoice.Invoice) {
	r.mu.RLock()
	plugins := r.onInvoicePaid
	r.mu.RUnlock()

	dispatch(ctx, r, "OnInvoicePaid", plugins, func(p OnInvoicePaid) error {
		return p.OnInvoicePaid(ctx, inv)
	})
}

// EmitLoanApplied emits a loan applied event.
func (r *Registry) EmitLoanApplied(ctx context.Context, app *loan.Application) {
	r.mu.RLock()
	plugins := r.onLoanApplied
	r.mu.RUnlock()

	dispatch(ctx, r, "OnLoanApplied", plugins, func(p OnLoanApplied) error {
		return p.OnLoanApplied(ctx, app)
	})
}

// EmitApplicationRefused emits an eligibility refusal event.
func (r *Registry) EmitApplicationRefused(ctx context.Context, invoiceID id.InvoiceID, applicantID id.EntityID, reason error) {
	r.mu.RLock()
	plugins := r.onApplicationRefused
	r.mu.RUnlock()

	dispatch(ctx, r, "OnApplicationRefused", plugins, func(p OnApplicationRefused) error {
		return p.OnApplicationRefused(ctx, invoiceID, applicantID, reason)
	})
}

// EmitApplicationRejected emits an application rejected event.
func (r *Registry) EmitApplicationRejected(ctx context.Context, app *loan.Application) {
	r.mu.RLock()
	plugins := r.onApplicationRejected
	r.mu.RUnlock()

	dispatch(ctx, r, "OnApplicationRejected", plugins, func(p OnApplicationRejected) error {
		return p.OnApplicationRejected(ctx, app)
	})
}

// EmitLoanApproved emits a loan approved event.
func (r *Registry) EmitLoanApproved(ctx context.Context, app *loan.Application, l *loan.Loan) {
	r.mu.RLock()
	plugins := r.onLoanApproved
	r.mu.RUnlock()

	dispatch(ctx, r, "OnLoanApproved", plugins, func(p OnLoanApproved) error {
		return p.OnLoanApproved(ctx, app, l)
	})
}

// EmitLoanRepaid emits a loan repaid event.
func (r *Registry) EmitLoanRepaid(ctx context.Context, rep *loan.Repayment) {
	r.mu.RLock()
	plugins := r.onLoanRepaid
	r.mu.RUnlock()

	dispatch(ctx, r, "OnLoanRepaid", plugins, func(p OnLoanRepaid) error {
		return p.OnLoanRepaid(ctx, rep)
	})
}

// EmitLoanDefaulted emits a loan defaulted event.
func (r *Registry) EmitLoanDefaulted(ctx context.Context, l *loan.Loan) {
	r.mu.RLock()
	plugins := r.onLoanDefaulted
	r.mu.RUnlock()

	dispatch(ctx, r, "OnLoanDefaulted", plugins, func(p OnLoanDefaulted) error {
		return p.OnLoanDefaulted(ctx, l)
	})
}

// EmitEntriesPosted emits an entries posted event.
func (r *Registry) EmitEntriesPosted(ctx context.Context, entries []*journal.Entry) {
	if len(entries) == 0 {
		return
	}
	r.mu.RLock()
	plugins := r.onEntriesPosted
	r.mu.RUnlock()

	dispatch(ctx, r, "OnEntriesPosted", plugins, func(p OnEntriesPosted) error {
		return p.OnEntriesPosted(ctx, entries)
	})
}

// dispatch calls fn for every plugin, logging failures. A failing plugin
// never stops dispatch to the remaining ones.
func dispatch[T Plugin](ctx context.Context, r *Registry, hook string, plugins []T, fn func(T) error) {
	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return fn(p)
		}); err != nil {
			r.logger.Warn("plugin "+hook+" failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the workflow.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- fmt.Errorf("plugin panic: %s: %v", pluginName, rec)
			}
		}()
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
