// Package config loads operator configuration for the tradefin CLI.
//
// Values are resolved in order: built-in defaults, the YAML file, a .env
// file in the working directory, then TRADEFIN_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/xraph/tradefin/store/driver"
)

// DefaultFile is read when no explicit path is given. A missing default
// file is not an error.
const DefaultFile = "tradefin.yaml"

const envPrefix = "TRADEFIN_"

// Config holds CLI configuration.
type Config struct {
	Driver               string  `yaml:"driver"`
	DSN                  string  `yaml:"dsn"`
	MongoDatabase        string  `yaml:"mongo_database"`
	Currency             string  `yaml:"currency"`
	InvoiceTermDays      int     `yaml:"invoice_term_days"`
	DefaultInterestRate  float64 `yaml:"default_interest_rate"`
	DefaultRepaymentDays int     `yaml:"default_repayment_days"`
	StrictLoanTerms      bool    `yaml:"strict_loan_terms"`
	LogLevel             string  `yaml:"log_level"`
	Kafka                Kafka   `yaml:"kafka"`
}

// Kafka configures the optional event publisher. Publishing is off when
// Brokers is empty.
type Kafka struct {
	Brokers     []string `yaml:"brokers"`
	TopicPrefix string   `yaml:"topic_prefix"`
}

// Default returns the configuration used when nothing else is set.
func Default() Config {
	return Config{
		Driver:               driver.Memory,
		MongoDatabase:        driver.DefaultMongoDatabase,
		Currency:             "USD",
		InvoiceTermDays:      30,
		DefaultInterestRate:  5,
		DefaultRepaymentDays: 30,
		LogLevel:             "info",
		Kafka:                Kafka{TopicPrefix: "tradefin"},
	}
}

// Load resolves configuration from path (or DefaultFile when path is
// empty), .env and the environment.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	if err := readFile(path, &cfg); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			err = nil
		}
		if err != nil {
			return Config{}, err
		}
	}

	// A missing .env is normal.
	_ = godotenv.Load()

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func readFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Driver, "DRIVER")
	setString(&cfg.DSN, "DSN")
	setString(&cfg.MongoDatabase, "MONGO_DATABASE")
	setString(&cfg.Currency, "CURRENCY")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.Kafka.TopicPrefix, "KAFKA_TOPIC_PREFIX")

	if v, ok := lookup("KAFKA_BROKERS"); ok {
		cfg.Kafka.Brokers = splitList(v)
	}

	if err := setInt(&cfg.InvoiceTermDays, "INVOICE_TERM_DAYS"); err != nil {
		return err
	}
	if err := setInt(&cfg.DefaultRepaymentDays, "DEFAULT_REPAYMENT_DAYS"); err != nil {
		return err
	}
	if v, ok := lookup("DEFAULT_INTEREST_RATE"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%sDEFAULT_INTEREST_RATE: %w", envPrefix, err)
		}
		cfg.DefaultInterestRate = f
	}
	if v, ok := lookup("STRICT_LOAN_TERMS"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sSTRICT_LOAN_TERMS: %w", envPrefix, err)
		}
		cfg.StrictLoanTerms = b
	}
	return nil
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(envPrefix + key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func setString(dst *string, key string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s%s: %w", envPrefix, key, err)
	}
	*dst = n
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks that the configuration can open a store and build an
// engine.
func (c Config) Validate() error {
	if !driver.Valid(c.Driver) {
		return fmt.Errorf("unknown driver %q (want one of %s)", c.Driver, strings.Join(driver.Names(), ", "))
	}
	if c.InvoiceTermDays <= 0 {
		return fmt.Errorf("invoice_term_days must be positive, got %d", c.InvoiceTermDays)
	}
	if c.DefaultRepaymentDays <= 0 {
		return fmt.Errorf("default_repayment_days must be positive, got %d", c.DefaultRepaymentDays)
	}
	if c.DefaultInterestRate < 0 {
		return fmt.Errorf("default_interest_rate must not be negative, got %v", c.DefaultInterestRate)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel parses LogLevel.
func (c Config) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return lvl, nil
}

// KafkaEnabled reports whether events should be published.
func (c Config) KafkaEnabled() bool { return len(c.Kafka.Brokers) > 0 }
