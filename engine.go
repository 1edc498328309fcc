package tradefin

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/tradefin/plugin"
	"github.com/xraph/tradefin/store"
)

// Workflow defaults.
const (
	DefaultInvoiceTerm   = 30 * 24 * time.Hour
	DefaultRepaymentTerm = 30 * 24 * time.Hour
)

var (
	// DefaultInterestRate is the percentage applied when a lender approves
	// without naming a rate and strict terms are off.
	DefaultInterestRate = decimal.NewFromInt(5)

	// CeilingFactor caps a financing request relative to the invoice amount.
	CeilingFactor = decimal.RequireFromString("1.2")
)

// Engine runs the order/invoice and loan state machines over a store and
// posts every money movement to the journal in matched pairs.
type Engine struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger
	locks   *keyedLocks
	clock   func() time.Time

	// Configuration
	invoiceTerm   time.Duration
	defaultRate   decimal.Decimal
	repaymentTerm time.Duration
	strictTerms   bool
	entryPageSize int
	skipMigrate   bool
}

// New creates a new Engine instance.
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:         s,
		plugins:       plugin.NewRegistry(),
		logger:        slog.Default(),
		locks:         newKeyedLocks(),
		clock:         time.Now,
		invoiceTerm:   DefaultInvoiceTerm,
		defaultRate:   DefaultInterestRate,
		repaymentTerm: DefaultRepaymentTerm,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Option configures an Engine instance.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		if err := e.plugins.Register(p); err != nil {
			e.logger.Warn("plugin registration failed", "plugin", p.Name(), "error", err)
		}
	}
}

// WithPluginTimeout bounds each plugin call.
func WithPluginTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.plugins.WithTimeout(d)
	}
}

// WithClock replaces the time source. Timestamps are always stored in UTC.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.clock = now
		}
	}
}

// WithInvoiceTerm sets the offset from confirmation to invoice due date.
func WithInvoiceTerm(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.invoiceTerm = d
		}
	}
}

// WithLoanDefaults sets the interest rate (percent) and repayment term used
// when a lender approves without naming them.
func WithLoanDefaults(rate decimal.Decimal, term time.Duration) Option {
	return func(e *Engine) {
		if !rate.IsNegative() {
			e.defaultRate = rate
		}
		if term > 0 {
			e.repaymentTerm = term
		}
	}
}

// WithStrictLoanTerms requires lenders to supply both rate and repayment
// date on approval.
func WithStrictLoanTerms() Option {
	return func(e *Engine) {
		e.strictTerms = true
	}
}

// WithoutMigrations makes Start skip store migrations, for deployments
// that migrate out of band.
func WithoutMigrations() Option {
	return func(e *Engine) {
		e.skipMigrate = true
	}
}

// WithEntryPageSize sets the default page size for journal listings.
func WithEntryPageSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.entryPageSize = n
		}
	}
}

// Store returns the underlying store.
func (e *Engine) Store() store.Store { return e.store }

// Plugins returns the plugin registry.
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// Start migrates the store and initializes plugins.
func (e *Engine) Start(ctx context.Context) error {
	if !e.skipMigrate {
		if err := e.store.Migrate(ctx); err != nil {
			return err
		}
	}

	e.plugins.EmitInit(ctx, e)

	e.logger.Info("tradefin engine started",
		"plugins", e.plugins.Count(),
		"invoice_term", e.invoiceTerm,
		"default_rate", e.defaultRate.String(),
		"repayment_term", e.repaymentTerm,
		"strict_terms", e.strictTerms,
	)

	return nil
}

// Stop shuts down plugins and closes the store.
func (e *Engine) Stop() error {
	e.plugins.EmitShutdown(context.Background())
	e.logger.Info("tradefin engine stopped")
	return e.store.Close()
}

func (e *Engine) now() time.Time {
	return e.clock().UTC()
}

// txAttempts bounds how often atomic runs a transaction that lost a race.
const txAttempts = 3

// atomic runs fn in a store transaction. A retryable failure, such as a
// conditional write that found the row already moved, re-runs fn so it
// re-reads the current state.
func (e *Engine) atomic(ctx context.Context, fn store.TxFunc) error {
	for attempt := 1; ; attempt++ {
		err := e.store.Atomic(ctx, fn)
		if err == nil || attempt == txAttempts || !IsRetryable(err) || ctx.Err() != nil {
			return err
		}
		e.logger.Debug("tradefin: retrying transaction", "attempt", attempt, "error", err)
	}
}
