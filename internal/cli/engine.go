package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/xraph/tradefin"
	"github.com/xraph/tradefin/internal/config"
	"github.com/xraph/tradefin/kafkahook"
	"github.com/xraph/tradefin/store"
	"github.com/xraph/tradefin/store/driver"
)

const day = 24 * time.Hour

// loadConfig resolves configuration and applies command-line overrides.
func (g *globals) loadConfig() (config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if g.driver != "" {
		cfg.Driver = g.driver
	}
	if g.dsn != "" {
		cfg.DSN = g.dsn
	}
	if g.currency != "" {
		cfg.Currency = g.currency
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func newLogger(cmd *cobra.Command, cfg config.Config) *slog.Logger {
	lvl, _ := cfg.SlogLevel()
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: lvl}))
}

func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	s, err := driver.Open(ctx, cfg.Driver, cfg.DSN, cfg.MongoDatabase)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Driver, err)
	}
	return s, nil
}

// engineOptions maps configuration onto engine options.
func engineOptions(cfg config.Config, logger *slog.Logger) []tradefin.Option {
	opts := []tradefin.Option{
		tradefin.WithLogger(logger),
		tradefin.WithInvoiceTerm(time.Duration(cfg.InvoiceTermDays) * day),
		tradefin.WithLoanDefaults(
			decimal.NewFromFloat(cfg.DefaultInterestRate),
			time.Duration(cfg.DefaultRepaymentDays)*day,
		),
	}
	if cfg.StrictLoanTerms {
		opts = append(opts, tradefin.WithStrictLoanTerms())
	}
	if cfg.KafkaEnabled() {
		hook := kafkahook.New(
			kafkahook.NewWriter(cfg.Kafka.Brokers...),
			kafkahook.WithTopicPrefix(cfg.Kafka.TopicPrefix),
			kafkahook.WithLogger(logger),
		)
		opts = append(opts, tradefin.WithPlugin(hook))
	}
	return opts
}

// withEngine opens the configured store, starts an engine without running
// migrations, calls fn and stops the engine. Only the memory driver is
// migrated implicitly since it starts empty on every run.
func (g *globals) withEngine(cmd *cobra.Command, fn func(context.Context, *tradefin.Engine, config.Config) error) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	s, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}

	opts := engineOptions(cfg, newLogger(cmd, cfg))
	if !driver.IsEphemeral(cfg.Driver) {
		opts = append(opts, tradefin.WithoutMigrations())
	}

	eng := tradefin.New(s, opts...)
	if err := eng.Start(ctx); err != nil {
		_ = s.Close()
		return err
	}

	runErr := fn(ctx, eng, cfg)
	if err := eng.Stop(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}
