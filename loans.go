package tradefin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/tradefin/id"
	"github.com/xraph/tradefin/invoice"
	"github.com/xraph/tradefin/journal"
	"github.com/xraph/tradefin/loan"
	"github.com/xraph/tradefin/risk"
	"github.com/xraph/tradefin/store"
	"github.com/xraph/tradefin/types"
)

// Eligibility is the verdict of the loan eligibility gate for an admitted
// request.
type Eligibility struct {
	Invoice   *invoice.Invoice `json:"invoice"`
	Ceiling   types.Money      `json:"ceiling"`
	RiskScore int              `json:"risk_score"`
}

// ──────────────────────────────────────────────────
// Eligibility gate
// ──────────────────────────────────────────────────

// CheckEligibility runs the eligibility gate without submitting anything.
// A refusal is returned as an *EligibilityError.
func (e *Engine) CheckEligibility(ctx context.Context, invoiceID id.InvoiceID, amount types.Money) (*Eligibility, error) {
	inv, ceiling, err := checkEligibility(ctx, e.store, invoiceID, amount, false)
	if err != nil {
		return nil, err
	}
	return &Eligibility{
		Invoice:   inv,
		Ceiling:   ceiling,
		RiskScore: risk.Score(amount, inv.Amount, inv.DueDate, e.now()),
	}, nil
}

// checkEligibility applies the gate in order, stopping at the first failure:
// invoice exists, invoice unpaid, amount within ceiling, amount positive,
// no pending application on the invoice. With lock set the invoice is read
// for update, so a concurrent PayInvoice in another process waits for the
// caller's transaction.
func checkEligibility(
	ctx context.Context,
	repo store.Repository,
	invoiceID id.InvoiceID,
	amount types.Money,
	lock bool,
) (*invoice.Invoice, types.Money, error) {
	get := repo.GetInvoice
	if lock {
		get = repo.GetInvoiceForUpdate
	}
	inv, err := get(ctx, invoiceID)
	if errors.Is(err, ErrInvoiceNotFound) {
		return nil, types.Zero(), &EligibilityError{
			Kind:   ErrInvoiceNotFound,
			Reason: fmt.Sprintf("invoice %s does not exist", invoiceID),
		}
	}
	if err != nil {
		return nil, types.Zero(), err
	}

	if inv.Status != invoice.StatusUnpaid {
		return nil, types.Zero(), &EligibilityError{
			Kind:   ErrInvoiceNotEligible,
			Reason: fmt.Sprintf("only unpaid invoices may be financed; invoice %s is %s", inv.Number, inv.Status),
		}
	}

	ceiling, err := inv.Amount.ScaleDown(CeilingFactor)
	if err != nil {
		return nil, types.Zero(), &EligibilityError{
			Kind:   ErrInvalidAmount,
			Reason: fmt.Sprintf("invoice %s amount %s is out of range", inv.Number, inv.Amount),
		}
	}
	if amount.GreaterThan(ceiling) {
		return nil, types.Zero(), &EligibilityError{
			Kind:    ErrAmountExceedsCeiling,
			Reason:  fmt.Sprintf("requested %s exceeds ceiling %s", amount, ceiling),
			Ceiling: &ceiling,
		}
	}

	if !amount.IsPositive() {
		return nil, types.Zero(), &EligibilityError{
			Kind:   ErrInvalidAmount,
			Reason: fmt.Sprintf("requested amount %s must be positive", amount),
		}
	}

	pending, err := repo.HasPendingApplication(ctx, inv.ID)
	if err != nil {
		return nil, types.Zero(), err
	}
	if pending {
		return nil, types.Zero(), duplicatePending(inv)
	}

	return inv, ceiling, nil
}

func duplicatePending(inv *invoice.Invoice) *EligibilityError {
	return &EligibilityError{
		Kind:   ErrDuplicatePendingApplication,
		Reason: fmt.Sprintf("invoice %s already has a pending application", inv.Number),
	}
}

// ──────────────────────────────────────────────────
// Applications
// ──────────────────────────────────────────────────

// ApplyForLoan submits a financing request against an invoice. The request
// passes the eligibility gate, is stored Pending and is scored immediately.
// At most one Pending application per invoice is admitted, even under
// concurrent submissions.
func (e *Engine) ApplyForLoan(
	ctx context.Context,
	invoiceID id.InvoiceID,
	applicantID id.EntityID,
	amount types.Money,
	reason string,
) (*loan.Application, error) {
	if applicantID.IsNil() {
		return nil, ValidationError{Field: "applicant_id", Message: "required"}
	}

	unlock := e.locks.lock(invoiceID.String())
	defer unlock()

	var app *loan.Application
	err := e.atomic(ctx, func(ctx context.Context, tx store.Repository) error {
		inv, _, err := checkEligibility(ctx, tx, invoiceID, amount, true)
		if err != nil {
			return err
		}

		now := e.now()
		score := risk.Score(amount, inv.Amount, inv.DueDate, now)
		candidate := &loan.Application{
			Entity:      types.NewEntityAt(now),
			ID:          id.NewApplicationID(),
			InvoiceID:   inv.ID,
			ApplicantID: applicantID,
			Amount:      amount,
			Status:      loan.ApplicationPending,
			Reason:      reason,
			RiskScore:   &score,
		}
		err = tx.CreateApplication(ctx, candidate)
		if errors.Is(err, ErrDuplicatePendingApplication) {
			return duplicatePending(inv)
		}
		if err != nil {
			return err
		}
		app = candidate
		return nil
	})
	if err != nil {
		var refused *EligibilityError
		if errors.As(err, &refused) {
			e.plugins.EmitApplicationRefused(emitAs(ctx, applicantID), invoiceID, applicantID, refused)
		}
		return nil, err
	}

	e.plugins.EmitLoanApplied(emitAs(ctx, applicantID), app)
	return app, nil
}

// GetApplication retrieves a loan application by ID.
func (e *Engine) GetApplication(ctx context.Context, appID id.ApplicationID) (*loan.Application, error) {
	return e.store.GetApplication(ctx, appID)
}

// ListApplications lists loan applications newest first.
func (e *Engine) ListApplications(ctx context.Context, opts loan.ApplicationListOpts) ([]*loan.Application, error) {
	return e.store.ListApplications(ctx, opts)
}

// ApplicationSummary joins an application with the invoice it finances and,
// once approved, its loan.
func (e *Engine) ApplicationSummary(ctx context.Context, appID id.ApplicationID) (*loan.Summary, error) {
	app, err := e.store.GetApplication(ctx, appID)
	if err != nil {
		return nil, err
	}
	inv, err := e.store.GetInvoice(ctx, app.InvoiceID)
	if err != nil {
		return nil, err
	}

	summary := &loan.Summary{
		Application:   app,
		InvoiceNumber: inv.Number,
		InvoiceAmount: inv.Amount,
		InvoiceDue:    inv.DueDate,
	}
	if app.Status == loan.ApplicationApproved {
		l, err := e.store.GetLoanByApplication(ctx, app.ID)
		if err != nil && !errors.Is(err, ErrLoanNotFound) {
			return nil, err
		}
		summary.Loan = l
	}
	return summary, nil
}

// ──────────────────────────────────────────────────
// Decisions
// ──────────────────────────────────────────────────

// DecideApplication records a lender's verdict on a Pending application.
// Approval creates the loan and posts the disbursement (debit lender,
// credit applicant) atomically with the status change. The returned loan
// is nil for rejections.
func (e *Engine) DecideApplication(
	ctx context.Context,
	appID id.ApplicationID,
	d loan.Decision,
) (*loan.Application, *loan.Loan, error) {
	if d.LenderID.IsNil() {
		return nil, nil, ValidationError{Field: "lender_id", Message: "required"}
	}
	if d.RiskScore != nil && (*d.RiskScore < risk.MinScore || *d.RiskScore > risk.MaxScore) {
		return nil, nil, ValidationError{
			Field:   "risk_score",
			Message: fmt.Sprintf("must be between %d and %d", risk.MinScore, risk.MaxScore),
		}
	}

	// The invoice key serializes decisions with payment and admission on
	// the same invoice.
	current, err := e.store.GetApplication(ctx, appID)
	if err != nil {
		return nil, nil, err
	}
	unlock := e.locks.lock(current.InvoiceID.String(), appID.String())
	defer unlock()

	var (
		decided *loan.Application
		issued  *loan.Loan
		entries []*journal.Entry
	)
	err = e.atomic(ctx, func(ctx context.Context, tx store.Repository) error {
		app, err := tx.GetApplication(ctx, appID)
		if err != nil {
			return err
		}
		if app.Status != loan.ApplicationPending {
			return &TransitionError{
				Resource: "application",
				ID:       app.ID.String(),
				From:     string(app.Status),
				Action:   "decide",
				Kind:     ErrAlreadyDecided,
			}
		}

		now := e.now()
		to := loan.ApplicationRejected
		if d.Approve {
			to = loan.ApplicationApproved
		}

		var (
			rate    decimal.Decimal
			repayBy time.Time
		)
		if d.Approve {
			if app.ApplicantID.String() == d.LenderID.String() {
				return ValidationError{Field: "lender_id", Message: "lender cannot finance its own application"}
			}
			if rate, repayBy, err = e.loanTerms(d, now); err != nil {
				return err
			}
		}

		if err := tx.DecideApplication(ctx, app.ID, to, d.LenderID, d.RiskScore, now); err != nil {
			return err
		}
		app.Status = to
		app.DecidedBy = d.LenderID
		app.DecidedAt = &now
		if d.RiskScore != nil {
			score := *d.RiskScore
			app.RiskScore = &score
		}
		app.TouchAt(now)
		decided = app

		if !d.Approve {
			return nil
		}

		l := &loan.Loan{
			Entity:        types.NewEntityAt(now),
			ID:            id.NewLoanID(),
			ApplicationID: app.ID,
			InvoiceID:     app.InvoiceID,
			BorrowerID:    app.ApplicantID,
			LenderID:      d.LenderID,
			Principal:     app.Amount,
			InterestRate:  rate,
			RepaymentDate: repayBy,
			Status:        loan.StatusActive,
		}
		if _, err := l.TotalDue(); err != nil {
			return fmt.Errorf("%w: interest rate %s: %w", ErrInvalidLoanTerms, rate, err)
		}
		if err := tx.CreateLoan(ctx, l); err != nil {
			return err
		}

		entries, err = postPair(ctx, tx, journal.Pair{
			DebitEntity:  l.LenderID,
			CreditEntity: l.BorrowerID,
			Amount:       l.Principal,
			Reference:    journal.Reference{ID: l.ID.String(), Type: journal.RefLoan},
			DebitMemo:    "Loan disbursed: application " + app.ID.String(),
			CreditMemo:   "Loan received: application " + app.ID.String(),
		}, now)
		if err != nil {
			return err
		}
		issued = l
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	ctx = emitAs(ctx, d.LenderID)
	if issued == nil {
		e.plugins.EmitApplicationRejected(ctx, decided)
		return decided, nil, nil
	}
	e.plugins.EmitLoanApproved(ctx, decided, issued)
	e.plugins.EmitEntriesPosted(ctx, entries)
	return decided, issued, nil
}

// ApproveApplication approves a Pending application. A nil rate or
// repayment date falls back to the engine's loan defaults unless strict
// terms are enabled.
func (e *Engine) ApproveApplication(
	ctx context.Context,
	appID id.ApplicationID,
	lenderID id.EntityID,
	rate *decimal.Decimal,
	repayBy *time.Time,
) (*loan.Loan, error) {
	_, l, err := e.DecideApplication(ctx, appID, loan.Decision{
		LenderID:      lenderID,
		Approve:       true,
		InterestRate:  rate,
		RepaymentDate: repayBy,
	})
	return l, err
}

// RejectApplication rejects a Pending application.
func (e *Engine) RejectApplication(ctx context.Context, appID id.ApplicationID, lenderID id.EntityID) (*loan.Application, error) {
	app, _, err := e.DecideApplication(ctx, appID, loan.Decision{LenderID: lenderID})
	return app, err
}

// loanTerms resolves the rate and repayment date for an approval.
func (e *Engine) loanTerms(d loan.Decision, now time.Time) (decimal.Decimal, time.Time, error) {
	if e.strictTerms && (d.InterestRate == nil || d.RepaymentDate == nil) {
		return decimal.Zero, time.Time{}, fmt.Errorf("%w: interest rate and repayment date are required", ErrInvalidLoanTerms)
	}

	rate := e.defaultRate
	if d.InterestRate != nil {
		rate = *d.InterestRate
	}
	if rate.IsNegative() {
		return decimal.Zero, time.Time{}, fmt.Errorf("%w: interest rate %s is negative", ErrInvalidLoanTerms, rate)
	}

	repayBy := now.Add(e.repaymentTerm)
	if d.RepaymentDate != nil {
		repayBy = d.RepaymentDate.UTC()
	}
	if !repayBy.After(now) {
		return decimal.Zero, time.Time{}, fmt.Errorf("%w: repayment date %s is not in the future",
			ErrInvalidLoanTerms, repayBy.Format(time.RFC3339))
	}
	return rate, repayBy, nil
}

// ──────────────────────────────────────────────────
// Loans
// ──────────────────────────────────────────────────

// GetLoan retrieves a loan by ID.
func (e *Engine) GetLoan(ctx context.Context, loanID id.LoanID) (*loan.Loan, error) {
	return e.store.GetLoan(ctx, loanID)
}

// GetLoanByApplication retrieves the loan created by an approved application.
func (e *Engine) GetLoanByApplication(ctx context.Context, appID id.ApplicationID) (*loan.Loan, error) {
	return e.store.GetLoanByApplication(ctx, appID)
}

// ListLoans lists loans newest first.
func (e *Engine) ListLoans(ctx context.Context, opts loan.ListOpts) ([]*loan.Loan, error) {
	return e.store.ListLoans(ctx, opts)
}

// RepayLoan repays an Active loan in full. Interest is realized here:
// the borrower is debited and the lender credited principal × (1 + rate/100).
func (e *Engine) RepayLoan(ctx context.Context, loanID id.LoanID, actor id.EntityID) (*loan.Repayment, error) {
	unlock := e.locks.lock(loanID.String())
	defer unlock()

	var (
		receipt *loan.Repayment
		entries []*journal.Entry
	)
	err := e.atomic(ctx, func(ctx context.Context, tx store.Repository) error {
		l, err := tx.GetLoan(ctx, loanID)
		if err != nil {
			return err
		}
		if l.Status != loan.StatusActive {
			return loanStateError(l, "repay")
		}

		now := e.now()
		total, err := l.TotalDue()
		if err != nil {
			return fmt.Errorf("%w: loan %s total due: %w", ErrInvalidAmount, l.ID, err)
		}
		if err := tx.CloseLoan(ctx, l.ID, loan.StatusRepaid, total, now); err != nil {
			return err
		}

		entries, err = postPair(ctx, tx, journal.Pair{
			DebitEntity:  l.BorrowerID,
			CreditEntity: l.LenderID,
			Amount:       total,
			Reference:    journal.Reference{ID: l.ID.String(), Type: journal.RefLoan},
			DebitMemo:    "Loan repayment: loan " + l.ID.String(),
			CreditMemo:   "Loan repayment received: loan " + l.ID.String(),
		}, now)
		if err != nil {
			return err
		}

		l.Status = loan.StatusRepaid
		l.AmountRepaid = total
		l.ClosedAt = &now
		l.TouchAt(now)
		receipt = &loan.Repayment{
			Loan:      l,
			Principal: l.Principal,
			Interest:  total.Subtract(l.Principal),
			Total:     total,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx = emitAs(ctx, actor)
	e.plugins.EmitLoanRepaid(ctx, receipt)
	e.plugins.EmitEntriesPosted(ctx, entries)
	return receipt, nil
}

// DefaultLoan marks an Active loan as Defaulted. Nothing triggers this
// automatically and no entries are posted.
func (e *Engine) DefaultLoan(ctx context.Context, loanID id.LoanID, actor id.EntityID) (*loan.Loan, error) {
	unlock := e.locks.lock(loanID.String())
	defer unlock()

	var defaulted *loan.Loan
	err := e.atomic(ctx, func(ctx context.Context, tx store.Repository) error {
		l, err := tx.GetLoan(ctx, loanID)
		if err != nil {
			return err
		}
		if l.Status != loan.StatusActive {
			return loanStateError(l, "default")
		}

		now := e.now()
		if err := tx.CloseLoan(ctx, l.ID, loan.StatusDefaulted, l.AmountRepaid, now); err != nil {
			return err
		}
		l.Status = loan.StatusDefaulted
		l.ClosedAt = &now
		l.TouchAt(now)
		defaulted = l
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.plugins.EmitLoanDefaulted(emitAs(ctx, actor), defaulted)
	return defaulted, nil
}

func loanStateError(l *loan.Loan, action string) error {
	return &TransitionError{
		Resource: "loan",
		ID:       l.ID.String(),
		From:     string(l.Status),
		Action:   action,
		Kind:     ErrInvalidLoanState,
	}
}
