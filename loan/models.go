// Package loan defines loan applications raised against invoices and the
// loans materialized when a lender approves them.
package loan

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/tradefin/id"
	"github.com/xraph/tradefin/types"
)

type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "pending"
	ApplicationApproved ApplicationStatus = "approved"
	ApplicationRejected ApplicationStatus = "rejected"
)

// Terminal reports whether no further decision can be taken.
func (s ApplicationStatus) Terminal() bool {
	return s == ApplicationApproved || s == ApplicationRejected
}

type Status string

const (
	StatusActive    Status = "active"
	StatusRepaid    Status = "repaid"
	StatusDefaulted Status = "defaulted"
)

// Application is a financing request against a single invoice. At most one
// pending application may reference an invoice at any time.
type Application struct {
	types.Entity
	ID          id.ApplicationID  `json:"id"`
	InvoiceID   id.InvoiceID      `json:"invoice_id"`
	ApplicantID id.EntityID       `json:"applicant_id"`
	Amount      types.Money       `json:"amount_requested"`
	Status      ApplicationStatus `json:"status"`
	Reason      string            `json:"reason,omitempty"`
	RiskScore   *int              `json:"risk_score,omitempty"`
	DecidedBy   id.EntityID       `json:"decided_by,omitempty"`
	DecidedAt   *time.Time        `json:"decided_at,omitempty"`
}

// Loan exists only for an approved application. Principal is copied from the
// application's requested amount.
type Loan struct {
	types.Entity
	ID            id.LoanID        `json:"id"`
	ApplicationID id.ApplicationID `json:"application_id"`
	InvoiceID     id.InvoiceID     `json:"invoice_id"`
	BorrowerID    id.EntityID      `json:"borrower_id"`
	LenderID      id.EntityID      `json:"lender_id"`
	Principal     types.Money      `json:"principal"`
	InterestRate  decimal.Decimal  `json:"interest_rate"`
	RepaymentDate time.Time        `json:"repayment_date"`
	Status        Status           `json:"status"`
	AmountRepaid  types.Money      `json:"amount_repaid"`
	ClosedAt      *time.Time       `json:"closed_at,omitempty"`
}

// TotalDue is principal × (1 + rate/100), rounded half-to-even to the cent.
// It fails with types.ErrOverflow when the total does not fit.
func (l *Loan) TotalDue() (types.Money, error) {
	return l.Principal.WithInterest(l.InterestRate)
}

// Decision carries a lender's verdict on a pending application.
type Decision struct {
	LenderID id.EntityID
	Approve  bool
	// InterestRate is a percentage, e.g. 5 for 5%. Nil selects the workflow default.
	InterestRate *decimal.Decimal
	// RepaymentDate nil selects the workflow default.
	RepaymentDate *time.Time
	// RiskScore optionally replaces the score computed at submission.
	RiskScore *int
}

// Repayment is the receipt produced when a loan is repaid.
type Repayment struct {
	Loan      *Loan       `json:"loan"`
	Principal types.Money `json:"principal"`
	Interest  types.Money `json:"interest"`
	Total     types.Money `json:"total"`
}

// Summary is an application joined with the invoice it finances, as shown to
// lenders reviewing the queue.
type Summary struct {
	Application   *Application `json:"application"`
	InvoiceNumber string       `json:"invoice_number"`
	InvoiceAmount types.Money  `json:"invoice_amount"`
	InvoiceDue    time.Time    `json:"invoice_due_date"`
	Loan          *Loan        `json:"loan,omitempty"`
}
