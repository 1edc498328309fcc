package loan

import (
	"context"
	"time"

	"github.com/xraph/tradefin/id"
	"github.com/xraph/tradefin/types"
)

type ApplicationStore interface {
	// CreateApplication fails with ErrDuplicatePendingApplication when a
	// pending application already references the same invoice.
	CreateApplication(ctx context.Context, app *Application) error
	GetApplication(ctx context.Context, appID id.ApplicationID) (*Application, error)
	ListApplications(ctx context.Context, opts ApplicationListOpts) ([]*Application, error)
	HasPendingApplication(ctx context.Context, invID id.InvoiceID) (bool, error)
	// DecideApplication moves a pending application to a terminal status.
	DecideApplication(ctx context.Context, appID id.ApplicationID, to ApplicationStatus, lenderID id.EntityID, riskScore *int, at time.Time) error
	CountApplications(ctx context.Context) (map[ApplicationStatus]int, error)
}

type Store interface {
	CreateLoan(ctx context.Context, l *Loan) error
	GetLoan(ctx context.Context, loanID id.LoanID) (*Loan, error)
	GetLoanByApplication(ctx context.Context, appID id.ApplicationID) (*Loan, error)
	ListLoans(ctx context.Context, opts ListOpts) ([]*Loan, error)
	// CloseLoan moves an active loan to a terminal status.
	CloseLoan(ctx context.Context, loanID id.LoanID, to Status, amountRepaid types.Money, at time.Time) error
	CountLoans(ctx context.Context) (map[Status]int, error)
}

type ApplicationListOpts struct {
	InvoiceID   id.InvoiceID
	ApplicantID id.EntityID
	Status      ApplicationStatus
	// Before keeps only applications strictly older than the cursor in
	// newest-first order. Rows written after a scan starts sort ahead of
	// the cursor and are never returned twice.
	Before *Cursor
	Limit  int
	Offset int
}

// Cursor is a position in the newest-first (created_at, id) ordering.
type Cursor struct {
	CreatedAt time.Time
	ID        id.ApplicationID
}

// CursorAfter returns the cursor positioned just past app.
func CursorAfter(app *Application) *Cursor {
	return &Cursor{CreatedAt: app.CreatedAt, ID: app.ID}
}

type ListOpts struct {
	LenderID   id.EntityID
	BorrowerID id.EntityID
	Status     Status
	Limit      int
	Offset     int
}
