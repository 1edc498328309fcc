package extension

import "time"

// Config holds the tradefin extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.tradefin" or "tradefin" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// Driver selects the store backend when no store is supplied
	// programmatically: memory, sqlite, postgres or mongo (default: memory).
	Driver string `json:"driver" mapstructure:"driver" yaml:"driver"`

	// DSN is the connection string for sqlite, postgres or mongo.
	DSN string `json:"dsn" mapstructure:"dsn" yaml:"dsn"`

	// MongoDatabase names the database used by the mongo driver.
	MongoDatabase string `json:"mongo_database" mapstructure:"mongo_database" yaml:"mongo_database"`

	// InvoiceTermDays is the number of days between confirmation and the
	// invoice due date (default: 30).
	InvoiceTermDays int `json:"invoice_term_days" mapstructure:"invoice_term_days" yaml:"invoice_term_days"`

	// DefaultInterestRate is the percentage applied when a lender approves
	// without naming a rate (default: 5).
	DefaultInterestRate float64 `json:"default_interest_rate" mapstructure:"default_interest_rate" yaml:"default_interest_rate"`

	// DefaultRepaymentDays is the loan term applied when a lender approves
	// without a repayment date (default: 30).
	DefaultRepaymentDays int `json:"default_repayment_days" mapstructure:"default_repayment_days" yaml:"default_repayment_days"`

	// StrictLoanTerms makes rate and repayment date mandatory on approval.
	StrictLoanTerms bool `json:"strict_loan_terms" mapstructure:"strict_loan_terms" yaml:"strict_loan_terms"`

	// PluginTimeout bounds each plugin hook call (default: 5s).
	PluginTimeout time.Duration `json:"plugin_timeout" mapstructure:"plugin_timeout" yaml:"plugin_timeout"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Driver:               "memory",
		InvoiceTermDays:      30,
		DefaultInterestRate:  5,
		DefaultRepaymentDays: 30,
		PluginTimeout:        5 * time.Second,
	}
}
