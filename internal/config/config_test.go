package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/tradefin/internal/config"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tradefin.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
	assert.False(t, cfg.KafkaEnabled())
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, `
driver: sqlite
dsn: /var/lib/tradefin.db
currency: EUR
invoice_term_days: 45
default_interest_rate: 7.5
strict_loan_terms: true
log_level: debug
kafka:
  brokers: [k1:9092, k2:9092]
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Driver)
	assert.Equal(t, "/var/lib/tradefin.db", cfg.DSN)
	assert.Equal(t, "EUR", cfg.Currency)
	assert.Equal(t, 45, cfg.InvoiceTermDays)
	assert.InDelta(t, 7.5, cfg.DefaultInterestRate, 0)
	assert.Equal(t, 30, cfg.DefaultRepaymentDays)
	assert.True(t, cfg.StrictLoanTerms)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "tradefin", cfg.Kafka.TopicPrefix)
	assert.True(t, cfg.KafkaEnabled())

	lvl, err := cfg.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeFile(t, "driver: sqlite\ndsn: file.db\n")
	t.Setenv("TRADEFIN_DRIVER", "postgres")
	t.Setenv("TRADEFIN_DSN", "postgres://localhost/tf")
	t.Setenv("TRADEFIN_DEFAULT_REPAYMENT_DAYS", "60")
	t.Setenv("TRADEFIN_STRICT_LOAN_TERMS", "true")
	t.Setenv("TRADEFIN_KAFKA_BROKERS", "a:9092, b:9092,")
	t.Setenv("TRADEFIN_KAFKA_TOPIC_PREFIX", "scf")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Driver)
	assert.Equal(t, "postgres://localhost/tf", cfg.DSN)
	assert.Equal(t, 60, cfg.DefaultRepaymentDays)
	assert.True(t, cfg.StrictLoanTerms)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "scf", cfg.Kafka.TopicPrefix)
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing explicit file", func(t *testing.T) {
		_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := config.Load(writeFile(t, "driver: [unclosed"))
		assert.ErrorContains(t, err, "parsing")
	})

	t.Run("bad env number", func(t *testing.T) {
		t.Setenv("TRADEFIN_INVOICE_TERM_DAYS", "thirty")
		_, err := config.Load(writeFile(t, ""))
		assert.ErrorContains(t, err, "TRADEFIN_INVOICE_TERM_DAYS")
	})

	t.Run("bad env bool", func(t *testing.T) {
		t.Setenv("TRADEFIN_STRICT_LOAN_TERMS", "sometimes")
		_, err := config.Load(writeFile(t, ""))
		assert.ErrorContains(t, err, "TRADEFIN_STRICT_LOAN_TERMS")
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"unknown driver", func(c *config.Config) { c.Driver = "redis" }, "unknown driver"},
		{"zero invoice term", func(c *config.Config) { c.InvoiceTermDays = 0 }, "invoice_term_days"},
		{"zero repayment term", func(c *config.Config) { c.DefaultRepaymentDays = 0 }, "default_repayment_days"},
		{"negative rate", func(c *config.Config) { c.DefaultInterestRate = -1 }, "default_interest_rate"},
		{"bad log level", func(c *config.Config) { c.LogLevel = "loud" }, "log_level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}

	assert.NoError(t, config.Default().Validate())
}
