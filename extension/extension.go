// Package extension provides the Forge extension adapter for tradefin.
//
// It implements the forge.Extension interface to integrate the tradefin
// engine into a Forge application with DI registration and lifecycle
// management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.tradefin" or "tradefin" keys.
package extension

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/tradefin"
	"github.com/xraph/tradefin/store"
	"github.com/xraph/tradefin/store/driver"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "tradefin"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Supply-chain finance ledger and credit workflow engine"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

const day = 24 * time.Hour

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts the tradefin engine as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *tradefin.Engine
	store      store.Store
	engineOpts []tradefin.Option
}

// New creates a new tradefin Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying engine.
// This is nil until Register is called.
func (e *Extension) Engine() *tradefin.Engine { return e.engine }

// Config returns the resolved configuration.
func (e *Extension) Config() Config { return e.config }

// Register implements [forge.Extension]. It loads configuration,
// opens the store, initializes the engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	if e.store == nil {
		s, err := driver.Open(context.Background(), e.config.Driver, e.config.DSN, e.config.MongoDatabase)
		if err != nil {
			return fmt.Errorf("tradefin: open %s store: %w", e.config.Driver, err)
		}
		e.store = s
	}

	e.engine = tradefin.New(e.store, e.buildEngineOpts()...)

	return vessel.Provide(fapp.Container(), func() (*tradefin.Engine, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("tradefin: extension not initialized")
	}

	if err := e.engine.Start(ctx); err != nil {
		return err
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("tradefin: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildEngineOpts constructs tradefin.Option values from the resolved config.
func (e *Extension) buildEngineOpts() []tradefin.Option {
	return buildEngineOpts(e.config, e.engineOpts)
}

func buildEngineOpts(cfg Config, passthrough []tradefin.Option) []tradefin.Option {
	opts := make([]tradefin.Option, 0, len(passthrough)+5)

	if cfg.InvoiceTermDays > 0 {
		opts = append(opts, tradefin.WithInvoiceTerm(time.Duration(cfg.InvoiceTermDays)*day))
	}
	if cfg.DefaultInterestRate > 0 || cfg.DefaultRepaymentDays > 0 {
		opts = append(opts, tradefin.WithLoanDefaults(
			decimal.NewFromFloat(cfg.DefaultInterestRate),
			time.Duration(cfg.DefaultRepaymentDays)*day,
		))
	}
	if cfg.StrictLoanTerms {
		opts = append(opts, tradefin.WithStrictLoanTerms())
	}
	if cfg.PluginTimeout > 0 {
		opts = append(opts, tradefin.WithPluginTimeout(cfg.PluginTimeout))
	}
	if cfg.DisableMigrate {
		opts = append(opts, tradefin.WithoutMigrations())
	}

	// Pass-through options last so they win over config.
	return append(opts, passthrough...)
}

// --- Config Loading ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("tradefin: configuration is required but not found in config files; " +
				"ensure 'extensions.tradefin' or 'tradefin' key exists in your config")
		}
		e.config = mergeWithDefaults(programmaticConfig)
	} else {
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	if !driver.Valid(e.config.Driver) {
		return fmt.Errorf("tradefin: unknown store driver %q", e.config.Driver)
	}

	e.Logger().Debug("tradefin: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("driver", e.config.Driver),
		forge.F("invoice_term_days", e.config.InvoiceTermDays),
		forge.F("default_interest_rate", e.config.DefaultInterestRate),
		forge.F("default_repayment_days", e.config.DefaultRepaymentDays),
		forge.F("strict_loan_terms", e.config.StrictLoanTerms),
		forge.F("plugin_timeout", e.config.PluginTimeout),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	for _, key := range []string{"extensions.tradefin", "tradefin"} {
		if !cm.IsSet(key) {
			continue
		}
		if err := cm.Bind(key, &cfg); err == nil {
			e.Logger().Debug("tradefin: loaded config from file",
				forge.F("key", key),
			)
			return cfg, true
		}
		e.Logger().Warn("tradefin: failed to bind config",
			forge.F("key", key),
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.Driver == "" {
		cfg.Driver = defaults.Driver
	}
	if cfg.InvoiceTermDays == 0 {
		cfg.InvoiceTermDays = defaults.InvoiceTermDays
	}
	if cfg.DefaultInterestRate == 0 {
		cfg.DefaultInterestRate = defaults.DefaultInterestRate
	}
	if cfg.DefaultRepaymentDays == 0 {
		cfg.DefaultRepaymentDays = defaults.DefaultRepaymentDays
	}
	if cfg.PluginTimeout == 0 {
		cfg.PluginTimeout = defaults.PluginTimeout
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic values fill gaps.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}
	if programmaticConfig.StrictLoanTerms {
		yamlConfig.StrictLoanTerms = true
	}

	// String fields: YAML takes precedence.
	if yamlConfig.Driver == "" {
		yamlConfig.Driver = programmaticConfig.Driver
	}
	if yamlConfig.DSN == "" {
		yamlConfig.DSN = programmaticConfig.DSN
	}
	if yamlConfig.MongoDatabase == "" {
		yamlConfig.MongoDatabase = programmaticConfig.MongoDatabase
	}

	// Numeric fields: YAML takes precedence, programmatic fills gaps.
	if yamlConfig.InvoiceTermDays == 0 {
		yamlConfig.InvoiceTermDays = programmaticConfig.InvoiceTermDays
	}
	if yamlConfig.DefaultInterestRate == 0 {
		yamlConfig.DefaultInterestRate = programmaticConfig.DefaultInterestRate
	}
	if yamlConfig.DefaultRepaymentDays == 0 {
		yamlConfig.DefaultRepaymentDays = programmaticConfig.DefaultRepaymentDays
	}
	if yamlConfig.PluginTimeout == 0 {
		yamlConfig.PluginTimeout = programmaticConfig.PluginTimeout
	}

	return mergeWithDefaults(yamlConfig)
}
