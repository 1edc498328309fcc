package tradefin

import (
	"errors"
	"fmt"

	"github.com/xraph/tradefin/types"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound      = errors.New("tradefin: not found")
	ErrAlreadyExists = errors.New("tradefin: already exists")
	ErrInvalidInput  = errors.New("tradefin: invalid input")

	// Amount errors
	ErrInvalidAmount = errors.New("tradefin: invalid amount")

	// State machine errors
	ErrInvalidTransition = errors.New("tradefin: invalid state transition")
	ErrAlreadyPaid       = errors.New("tradefin: invoice already paid")
	ErrAlreadyDecided    = errors.New("tradefin: application already decided")
	ErrInvalidLoanState  = errors.New("tradefin: loan is not active")
	ErrConcurrentUpdate  = errors.New("tradefin: record changed concurrently")

	// Order and invoice errors
	ErrOrderNotFound        = errors.New("tradefin: order not found")
	ErrInvoiceNotFound      = errors.New("tradefin: invoice not found")
	ErrBlockedByPendingLoan = errors.New("tradefin: invoice has a pending loan application")

	// Eligibility errors
	ErrInvoiceNotEligible          = errors.New("tradefin: invoice not eligible for financing")
	ErrAmountExceedsCeiling        = errors.New("tradefin: amount exceeds financing ceiling")
	ErrDuplicatePendingApplication = errors.New("tradefin: pending application already exists for invoice")

	// Loan errors
	ErrApplicationNotFound = errors.New("tradefin: loan application not found")
	ErrLoanNotFound        = errors.New("tradefin: loan not found")
	ErrInvalidLoanTerms    = errors.New("tradefin: invalid loan terms")

	// Store errors
	ErrStoreClosed       = errors.New("tradefin: store is closed")
	ErrTransactionFailed = errors.New("tradefin: transaction failed")
	ErrMigrationFailed   = errors.New("tradefin: migration failed")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("tradefin: validation failed for %s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is match ErrInvalidInput.
func (e ValidationError) Unwrap() error { return ErrInvalidInput }

// EligibilityError is returned by the loan eligibility gate. Kind is one of
// ErrInvoiceNotFound, ErrInvoiceNotEligible, ErrAmountExceedsCeiling,
// ErrInvalidAmount or ErrDuplicatePendingApplication.
type EligibilityError struct {
	Kind    error
	Reason  string
	Ceiling *types.Money
}

func (e *EligibilityError) Error() string {
	return fmt.Sprintf("%v: %s", e.Kind, e.Reason)
}

func (e *EligibilityError) Unwrap() error { return e.Kind }

// TransitionError reports a state machine transition attempted from an
// incompatible state.
type TransitionError struct {
	Resource string
	ID       string
	From     string
	Action   string
	Kind     error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%v: cannot %s %s %s in status %q", e.Kind, e.Action, e.Resource, e.ID, e.From)
}

func (e *TransitionError) Unwrap() error { return e.Kind }

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrInvoiceNotFound) ||
		errors.Is(err, ErrApplicationNotFound) ||
		errors.Is(err, ErrLoanNotFound)
}

// IsEligibilityError returns true if a loan application was refused admission.
func IsEligibilityError(err error) bool {
	var e *EligibilityError
	return errors.As(err, &e)
}

// IsStateError returns true if the error is a refused state transition.
func IsStateError(err error) bool {
	return errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrAlreadyPaid) ||
		errors.Is(err, ErrAlreadyDecided) ||
		errors.Is(err, ErrInvalidLoanState) ||
		errors.Is(err, ErrBlockedByPendingLoan)
}

// IsRetryable returns true if the error is temporary and the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentUpdate) ||
		errors.Is(err, ErrTransactionFailed)
}
