package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/xraph/tradefin"
	"github.com/xraph/tradefin/id"
	"github.com/xraph/tradefin/loan"
	"github.com/xraph/tradefin/types"
)

// ==================== Application Store ====================

const applicationColumns = `id, invoice_id, applicant_id, amount, status, reason, risk_score,
decided_by, decided_at, created_at, updated_at`

func (s *Store) CreateApplication(ctx context.Context, app *loan.Application) error {
	_, err := s.exec(ctx, `INSERT INTO tradefin_loan_applications (`+applicationColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		app.ID, app.InvoiceID, app.ApplicantID, app.Amount.Cents, string(app.Status), app.Reason,
		nullInt(app.RiskScore), app.DecidedBy, formatTimePtr(app.DecidedAt),
		formatTime(app.CreatedAt), formatTime(app.UpdatedAt))
	if s.unique(err) {
		// The only secondary unique index is the partial one on pending
		// applications per invoice.
		return tradefin.ErrDuplicatePendingApplication
	}
	if err != nil {
		return s.wrap("create application", err)
	}
	return nil
}

func (s *Store) GetApplication(ctx context.Context, appID id.ApplicationID) (*loan.Application, error) {
	row := s.queryRow(ctx, `SELECT `+applicationColumns+` FROM tradefin_loan_applications WHERE id = ?`, appID)
	app, err := scanApplication(row)
	if isNoRows(err) {
		return nil, tradefin.ErrApplicationNotFound
	}
	if err != nil {
		return nil, s.wrap("get application", err)
	}
	return app, nil
}

func (s *Store) ListApplications(ctx context.Context, opts loan.ApplicationListOpts) ([]*loan.Application, error) {
	var f filter
	if !opts.InvoiceID.IsNil() {
		f.where("invoice_id = ?", opts.InvoiceID)
	}
	if !opts.ApplicantID.IsNil() {
		f.where("applicant_id = ?", opts.ApplicantID)
	}
	if opts.Status != "" {
		f.where("status = ?", string(opts.Status))
	}
	if c := opts.Before; c != nil {
		at := formatTime(c.CreatedAt)
		f.where("(created_at < ? OR (created_at = ? AND id < ?))", at, at, c.ID)
	}
	q := `SELECT ` + applicationColumns + ` FROM tradefin_loan_applications` + f.sql() +
		` ORDER BY created_at DESC, id DESC` + f.paginate(opts.Limit, opts.Offset)

	rows, err := s.query(ctx, q, f.args...)
	if err != nil {
		return nil, s.wrap("list applications", err)
	}
	defer rows.Close()

	result := make([]*loan.Application, 0)
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, s.wrap("list applications", err)
		}
		result = append(result, app)
	}
	return result, rows.Err()
}

func (s *Store) HasPendingApplication(ctx context.Context, invID id.InvoiceID) (bool, error) {
	var n int
	err := s.queryRow(ctx, `SELECT COUNT(*) FROM tradefin_loan_applications WHERE invoice_id = ? AND status = ?`,
		invID, string(loan.ApplicationPending)).Scan(&n)
	if err != nil {
		return false, s.wrap("check pending application", err)
	}
	return n > 0, nil
}

func (s *Store) DecideApplication(ctx context.Context, appID id.ApplicationID, to loan.ApplicationStatus, lenderID id.EntityID, riskScore *int, at time.Time) error {
	stamp := formatTime(at)
	res, err := s.exec(ctx, `UPDATE tradefin_loan_applications
SET status = ?, decided_by = ?, decided_at = ?, risk_score = COALESCE(?, risk_score), updated_at = ?
WHERE id = ? AND status = ?`,
		string(to), lenderID, stamp, nullInt(riskScore), stamp, appID, string(loan.ApplicationPending))
	if err != nil {
		return s.wrap("decide application", err)
	}
	return s.expectOne(ctx, res, "tradefin_loan_applications", appID.String(), tradefin.ErrApplicationNotFound)
}

func (s *Store) CountApplications(ctx context.Context) (map[loan.ApplicationStatus]int, error) {
	counts := make(map[loan.ApplicationStatus]int)
	err := s.countByStatus(ctx, "tradefin_loan_applications", func(status string, n int) {
		counts[loan.ApplicationStatus(status)] = n
	})
	return counts, err
}

func scanApplication(sc scanner) (*loan.Application, error) {
	var (
		app                  loan.Application
		amount               int64
		status               string
		riskScore            sql.NullInt64
		decidedAt            sql.NullString
		createdAt, updatedAt string
	)
	err := sc.Scan(&app.ID, &app.InvoiceID, &app.ApplicantID, &amount, &status, &app.Reason, &riskScore,
		&app.DecidedBy, &decidedAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	app.Amount = types.Cents(amount)
	app.Status = loan.ApplicationStatus(status)
	app.RiskScore = intPtr(riskScore)
	if app.DecidedAt, err = parseTimePtr(decidedAt); err != nil {
		return nil, err
	}
	if app.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if app.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &app, nil
}

// ==================== Loan Store ====================

const loanColumns = `id, application_id, invoice_id, borrower_id, lender_id, principal, interest_rate,
repayment_date, status, amount_repaid, closed_at, created_at, updated_at`

func (s *Store) CreateLoan(ctx context.Context, l *loan.Loan) error {
	_, err := s.exec(ctx, `INSERT INTO tradefin_loans (`+loanColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.ApplicationID, l.InvoiceID, l.BorrowerID, l.LenderID, l.Principal.Cents, l.InterestRate.String(),
		formatTime(l.RepaymentDate), string(l.Status), l.AmountRepaid.Cents, formatTimePtr(l.ClosedAt),
		formatTime(l.CreatedAt), formatTime(l.UpdatedAt))
	if s.unique(err) {
		return tradefin.ErrAlreadyExists
	}
	if err != nil {
		return s.wrap("create loan", err)
	}
	return nil
}

func (s *Store) GetLoan(ctx context.Context, loanID id.LoanID) (*loan.Loan, error) {
	return s.getLoan(ctx, "id = ?", loanID)
}

func (s *Store) GetLoanByApplication(ctx context.Context, appID id.ApplicationID) (*loan.Loan, error) {
	return s.getLoan(ctx, "application_id = ?", appID)
}

func (s *Store) getLoan(ctx context.Context, cond string, arg any) (*loan.Loan, error) {
	row := s.queryRow(ctx, `SELECT `+loanColumns+` FROM tradefin_loans WHERE `+cond, arg)
	l, err := scanLoan(row)
	if isNoRows(err) {
		return nil, tradefin.ErrLoanNotFound
	}
	if err != nil {
		return nil, s.wrap("get loan", err)
	}
	return l, nil
}

func (s *Store) ListLoans(ctx context.Context, opts loan.ListOpts) ([]*loan.Loan, error) {
	var f filter
	if !opts.LenderID.IsNil() {
		f.where("lender_id = ?", opts.LenderID)
	}
	if !opts.BorrowerID.IsNil() {
		f.where("borrower_id = ?", opts.BorrowerID)
	}
	if opts.Status != "" {
		f.where("status = ?", string(opts.Status))
	}
	q := `SELECT ` + loanColumns + ` FROM tradefin_loans` + f.sql() +
		` ORDER BY created_at DESC, id DESC` + f.paginate(opts.Limit, opts.Offset)

	rows, err := s.query(ctx, q, f.args...)
	if err != nil {
		return nil, s.wrap("list loans", err)
	}
	defer rows.Close()

	result := make([]*loan.Loan, 0)
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, s.wrap("list loans", err)
		}
		result = append(result, l)
	}
	return result, rows.Err()
}

func (s *Store) CloseLoan(ctx context.Context, loanID id.LoanID, to loan.Status, amountRepaid types.Money, at time.Time) error {
	stamp := formatTime(at)
	res, err := s.exec(ctx, `UPDATE tradefin_loans
SET status = ?, amount_repaid = ?, closed_at = ?, updated_at = ?
WHERE id = ? AND status = ?`,
		string(to), amountRepaid.Cents, stamp, stamp, loanID, string(loan.StatusActive))
	if err != nil {
		return s.wrap("close loan", err)
	}
	return s.expectOne(ctx, res, "tradefin_loans", loanID.String(), tradefin.ErrLoanNotFound)
}

func (s *Store) CountLoans(ctx context.Context) (map[loan.Status]int, error) {
	counts := make(map[loan.Status]int)
	err := s.countByStatus(ctx, "tradefin_loans", func(status string, n int) {
		counts[loan.Status(status)] = n
	})
	return counts, err
}

func scanLoan(sc scanner) (*loan.Loan, error) {
	var (
		l                     loan.Loan
		principal, repaid     int64
		rate, status, repayBy string
		closedAt              sql.NullString
		createdAt, updatedAt  string
	)
	err := sc.Scan(&l.ID, &l.ApplicationID, &l.InvoiceID, &l.BorrowerID, &l.LenderID, &principal, &rate,
		&repayBy, &status, &repaid, &closedAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	l.Principal = types.Cents(principal)
	l.AmountRepaid = types.Cents(repaid)
	l.Status = loan.Status(status)
	if l.InterestRate, err = parseRate(rate); err != nil {
		return nil, err
	}
	if l.RepaymentDate, err = parseTime(repayBy); err != nil {
		return nil, err
	}
	if l.ClosedAt, err = parseTimePtr(closedAt); err != nil {
		return nil, err
	}
	if l.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if l.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &l, nil
}
