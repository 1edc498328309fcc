package audithook

// Action constants for audit events.
const (
	// Order actions
	ActionOrderCreated   = "order.created"
	ActionOrderConfirmed = "order.confirmed"
	ActionOrderDeleted   = "order.deleted"

	// Invoice actions
	ActionInvoiceIssued = "invoice.issued"
	ActionInvoicePaid   = "invoice.paid"

	// Application actions
	ActionApplicationSubmitted = "application.submitted"
	ActionApplicationRefused   = "application.refused"
	ActionApplicationRejected  = "application.rejected"

	// Loan actions
	ActionLoanApproved  = "loan.approved"
	ActionLoanRepaid    = "loan.repaid"
	ActionLoanDefaulted = "loan.defaulted"

	// Journal actions
	ActionEntriesPosted = "journal.posted"
)

// Resource constants for audit events.
const (
	ResourceOrder       = "order"
	ResourceInvoice     = "invoice"
	ResourceApplication = "application"
	ResourceLoan        = "loan"
	ResourceJournal     = "journal"
)

// Category constants for audit events.
const (
	CategoryTrade     = "trade"
	CategoryPayment   = "payment"
	CategoryFinancing = "financing"
	CategoryLedger    = "ledger"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
