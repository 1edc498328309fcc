package extension

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/tradefin"
	"github.com/xraph/tradefin/store/memory"
)

func TestMergeWithDefaults(t *testing.T) {
	cfg := mergeWithDefaults(Config{InvoiceTermDays: 45})

	assert.Equal(t, "memory", cfg.Driver)
	assert.Equal(t, 45, cfg.InvoiceTermDays)
	assert.InDelta(t, 5.0, cfg.DefaultInterestRate, 0)
	assert.Equal(t, 30, cfg.DefaultRepaymentDays)
	assert.Equal(t, 5*time.Second, cfg.PluginTimeout)
}

func TestMergeConfigurations(t *testing.T) {
	file := Config{Driver: "sqlite", DSN: "file.db", DefaultInterestRate: 7.5}
	prog := Config{
		Driver:          "postgres",
		DSN:             "postgres://ignored",
		MongoDatabase:   "trade",
		InvoiceTermDays: 60,
		StrictLoanTerms: true,
		DisableMigrate:  true,
	}

	cfg := mergeConfigurations(file, prog)

	assert.Equal(t, "sqlite", cfg.Driver)
	assert.Equal(t, "file.db", cfg.DSN)
	assert.Equal(t, "trade", cfg.MongoDatabase)
	assert.Equal(t, 60, cfg.InvoiceTermDays)
	assert.InDelta(t, 7.5, cfg.DefaultInterestRate, 0)
	assert.Equal(t, 30, cfg.DefaultRepaymentDays)
	assert.True(t, cfg.StrictLoanTerms)
	assert.True(t, cfg.DisableMigrate)
}

func TestBuildEngineOpts(t *testing.T) {
	assert.Empty(t, buildEngineOpts(Config{}, nil))

	full := buildEngineOpts(Config{
		InvoiceTermDays:      30,
		DefaultInterestRate:  5,
		DefaultRepaymentDays: 30,
		StrictLoanTerms:      true,
		PluginTimeout:        time.Second,
		DisableMigrate:       true,
	}, []tradefin.Option{tradefin.WithEntryPageSize(10)})
	assert.Len(t, full, 6)

	// The options must be accepted by the engine.
	eng := tradefin.New(memory.New(), full...)
	require.NotNil(t, eng)
}

func TestOptions(t *testing.T) {
	s := memory.New()
	e := New(
		WithStore(s),
		WithDriver("sqlite", "tf.db"),
		WithInvoiceTermDays(14),
		WithLoanDefaults(6, 45),
		WithStrictLoanTerms(),
		WithPluginTimeout(2*time.Second),
		WithDisableMigrate(),
		WithRequireConfig(true),
		WithEngineOption(tradefin.WithEntryPageSize(25)),
	)

	assert.Same(t, s, e.store)
	assert.Len(t, e.engineOpts, 1)
	assert.Equal(t, Config{
		DisableMigrate:       true,
		Driver:               "sqlite",
		DSN:                  "tf.db",
		InvoiceTermDays:      14,
		DefaultInterestRate:  6,
		DefaultRepaymentDays: 45,
		StrictLoanTerms:      true,
		PluginTimeout:        2 * time.Second,
		RequireConfig:        true,
	}, e.Config())
	assert.Nil(t, e.Engine())
	assert.Equal(t, ExtensionName, e.Name())
}
