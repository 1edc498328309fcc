package extension

import (
	"time"

	"github.com/xraph/tradefin"
	"github.com/xraph/tradefin/plugin"
	"github.com/xraph/tradefin/store"
)

// Option configures the tradefin Forge extension.
type Option func(*Extension)

// WithStore sets the store for the engine. It takes precedence over the
// configured driver.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithEngineOption passes a tradefin.Option through to the underlying engine.
func WithEngineOption(opt tradefin.Option) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, opt)
	}
}

// WithPlugin registers a tradefin plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, tradefin.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithDriver selects the store backend by name and connection string.
func WithDriver(name, dsn string) Option {
	return func(e *Extension) {
		e.config.Driver = name
		e.config.DSN = dsn
	}
}

// WithInvoiceTermDays sets the invoice term in days.
func WithInvoiceTermDays(days int) Option {
	return func(e *Extension) { e.config.InvoiceTermDays = days }
}

// WithLoanDefaults sets the fallback interest rate and repayment term.
func WithLoanDefaults(ratePercent float64, repaymentDays int) Option {
	return func(e *Extension) {
		e.config.DefaultInterestRate = ratePercent
		e.config.DefaultRepaymentDays = repaymentDays
	}
}

// WithStrictLoanTerms requires explicit loan terms on approval.
func WithStrictLoanTerms() Option {
	return func(e *Extension) { e.config.StrictLoanTerms = true }
}

// WithPluginTimeout bounds each plugin hook call.
func WithPluginTimeout(d time.Duration) Option {
	return func(e *Extension) { e.config.PluginTimeout = d }
}
