package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the tradefin store (PostgreSQL).
var Migrations = migrate.NewGroup("tradefin")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_tradefin_orders",
			Version: "20250101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tradefin_orders (
    id           TEXT PRIMARY KEY,
    supplier_id  TEXT NOT NULL,
    buyer_id     TEXT NOT NULL,
    amount       BIGINT NOT NULL CHECK (amount > 0),
    status       TEXT NOT NULL DEFAULT 'pending',
    description  TEXT NOT NULL DEFAULT '',
    po_number    TEXT NOT NULL DEFAULT '',
    confirmed_at TEXT,
    paid_at      TEXT,
    created_at   TEXT NOT NULL,
    updated_at   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tradefin_orders_supplier ON tradefin_orders (supplier_id, status);
CREATE INDEX IF NOT EXISTS idx_tradefin_orders_buyer ON tradefin_orders (buyer_id, status);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS tradefin_orders`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_tradefin_invoices",
			Version: "20250101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tradefin_invoices (
    id               TEXT PRIMARY KEY,
    order_id         TEXT NOT NULL UNIQUE,
    invoice_number   TEXT NOT NULL UNIQUE,
    supplier_id      TEXT NOT NULL,
    buyer_id         TEXT NOT NULL,
    amount           BIGINT NOT NULL,
    remaining_amount BIGINT NOT NULL,
    status           TEXT NOT NULL DEFAULT 'unpaid',
    due_date         TEXT NOT NULL,
    paid_at          TEXT,
    created_at       TEXT NOT NULL,
    updated_at       TEXT NOT NULL,
    CHECK (remaining_amount >= 0 AND remaining_amount <= amount)
);

CREATE INDEX IF NOT EXISTS idx_tradefin_invoices_status ON tradefin_invoices (status);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS tradefin_invoices`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_tradefin_loan_applications",
			Version: "20250101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tradefin_loan_applications (
    id           TEXT PRIMARY KEY,
    invoice_id   TEXT NOT NULL,
    applicant_id TEXT NOT NULL,
    amount       BIGINT NOT NULL CHECK (amount > 0),
    status       TEXT NOT NULL DEFAULT 'pending',
    reason       TEXT NOT NULL DEFAULT '',
    risk_score   INTEGER,
    decided_by   TEXT,
    decided_at   TEXT,
    created_at   TEXT NOT NULL,
    updated_at   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tradefin_applications_invoice ON tradefin_loan_applications (invoice_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_tradefin_applications_pending
    ON tradefin_loan_applications (invoice_id) WHERE status = 'pending';
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS tradefin_loan_applications`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_tradefin_loans",
			Version: "20250101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tradefin_loans (
    id             TEXT PRIMARY KEY,
    application_id TEXT NOT NULL UNIQUE,
    invoice_id     TEXT NOT NULL,
    borrower_id    TEXT NOT NULL,
    lender_id      TEXT NOT NULL,
    principal      BIGINT NOT NULL CHECK (principal > 0),
    interest_rate  TEXT NOT NULL,
    repayment_date TEXT NOT NULL,
    status         TEXT NOT NULL DEFAULT 'active',
    amount_repaid  BIGINT NOT NULL DEFAULT 0,
    closed_at      TEXT,
    created_at     TEXT NOT NULL,
    updated_at     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tradefin_loans_lender ON tradefin_loans (lender_id, status);
CREATE INDEX IF NOT EXISTS idx_tradefin_loans_borrower ON tradefin_loans (borrower_id, status);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS tradefin_loans`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_tradefin_ledger_entries",
			Version: "20250101000005",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tradefin_ledger_entries (
    seq         BIGSERIAL PRIMARY KEY,
    id          TEXT NOT NULL UNIQUE,
    entity_id   TEXT NOT NULL,
    direction   TEXT NOT NULL CHECK (direction IN ('debit', 'credit')),
    amount      BIGINT NOT NULL CHECK (amount > 0),
    description TEXT NOT NULL DEFAULT '',
    ref_id      TEXT,
    ref_type    TEXT,
    created_at  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tradefin_entries_entity ON tradefin_ledger_entries (entity_id, seq);
CREATE INDEX IF NOT EXISTS idx_tradefin_entries_ref ON tradefin_ledger_entries (ref_id, ref_type, seq);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS tradefin_ledger_entries`)
				return err
			},
		},
	)
}
