package mongo

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/tradefin/id"
	"github.com/xraph/tradefin/invoice"
	"github.com/xraph/tradefin/journal"
	"github.com/xraph/tradefin/loan"
	"github.com/xraph/tradefin/order"
	"github.com/xraph/tradefin/types"
)

// ==================== Order models ====================

type orderModel struct {
	ID          string     `bson:"_id"`
	SupplierID  string     `bson:"supplier_id"`
	BuyerID     string     `bson:"buyer_id"`
	AmountCents int64      `bson:"amount_cents"`
	Status      string     `bson:"status"`
	Description string     `bson:"description"`
	PONumber    string     `bson:"po_number"`
	ConfirmedAt *time.Time `bson:"confirmed_at,omitempty"`
	PaidAt      *time.Time `bson:"paid_at,omitempty"`
	CreatedAt   time.Time  `bson:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at"`
}

func toOrderModel(o *order.Order) *orderModel {
	return &orderModel{
		ID:          o.ID.String(),
		SupplierID:  o.SupplierID.String(),
		BuyerID:     o.BuyerID.String(),
		AmountCents: o.Amount.Cents,
		Status:      string(o.Status),
		Description: o.Description,
		PONumber:    o.PONumber,
		ConfirmedAt: o.ConfirmedAt,
		PaidAt:      o.PaidAt,
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
	}
}

func fromOrderModel(m *orderModel) (*order.Order, error) {
	orderID, err := id.ParseOrderID(m.ID)
	if err != nil {
		return nil, err
	}
	supplierID, err := id.ParseEntityID(m.SupplierID)
	if err != nil {
		return nil, err
	}
	buyerID, err := id.ParseEntityID(m.BuyerID)
	if err != nil {
		return nil, err
	}
	return &order.Order{
		Entity:      entity(m.CreatedAt, m.UpdatedAt),
		ID:          orderID,
		SupplierID:  supplierID,
		BuyerID:     buyerID,
		Amount:      types.Cents(m.AmountCents),
		Status:      order.Status(m.Status),
		Description: m.Description,
		PONumber:    m.PONumber,
		ConfirmedAt: utcPtr(m.ConfirmedAt),
		PaidAt:      utcPtr(m.PaidAt),
	}, nil
}

// ==================== Invoice models ====================

type invoiceModel struct {
	ID             string     `bson:"_id"`
	OrderID        string     `bson:"order_id"`
	Number         string     `bson:"invoice_number"`
	SupplierID     string     `bson:"supplier_id"`
	BuyerID        string     `bson:"buyer_id"`
	AmountCents    int64      `bson:"amount_cents"`
	RemainingCents int64      `bson:"remaining_cents"`
	Status         string     `bson:"status"`
	DueDate        time.Time  `bson:"due_date"`
	PaidAt         *time.Time `bson:"paid_at,omitempty"`
	CreatedAt      time.Time  `bson:"created_at"`
	UpdatedAt      time.Time  `bson:"updated_at"`
	Version        int64      `bson:"version"`
}

func toInvoiceModel(inv *invoice.Invoice) *invoiceModel {
	return &invoiceModel{
		ID:             inv.ID.String(),
		OrderID:        inv.OrderID.String(),
		Number:         inv.Number,
		SupplierID:     inv.SupplierID.String(),
		BuyerID:        inv.BuyerID.String(),
		AmountCents:    inv.Amount.Cents,
		RemainingCents: inv.RemainingAmount.Cents,
		Status:         string(inv.Status),
		DueDate:        inv.DueDate,
		PaidAt:         inv.PaidAt,
		CreatedAt:      inv.CreatedAt,
		UpdatedAt:      inv.UpdatedAt,
	}
}

func fromInvoiceModel(m *invoiceModel) (*invoice.Invoice, error) {
	invID, err := id.ParseInvoiceID(m.ID)
	if err != nil {
		return nil, err
	}
	orderID, err := id.ParseOrderID(m.OrderID)
	if err != nil {
		return nil, err
	}
	supplierID, err := id.ParseEntityID(m.SupplierID)
	if err != nil {
		return nil, err
	}
	buyerID, err := id.ParseEntityID(m.BuyerID)
	if err != nil {
		return nil, err
	}
	return &invoice.Invoice{
		Entity:          entity(m.CreatedAt, m.UpdatedAt),
		ID:              invID,
		OrderID:         orderID,
		Number:          m.Number,
		SupplierID:      supplierID,
		BuyerID:         buyerID,
		Amount:          types.Cents(m.AmountCents),
		RemainingAmount: types.Cents(m.RemainingCents),
		Status:          invoice.Status(m.Status),
		DueDate:         m.DueDate.UTC(),
		PaidAt:          utcPtr(m.PaidAt),
	}, nil
}

// ==================== Application models ====================

type applicationModel struct {
	ID          string     `bson:"_id"`
	InvoiceID   string     `bson:"invoice_id"`
	ApplicantID string     `bson:"applicant_id"`
	AmountCents int64      `bson:"amount_cents"`
	Status      string     `bson:"status"`
	Reason      string     `bson:"reason"`
	RiskScore   *int       `bson:"risk_score,omitempty"`
	DecidedBy   string     `bson:"decided_by,omitempty"`
	DecidedAt   *time.Time `bson:"decided_at,omitempty"`
	CreatedAt   time.Time  `bson:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at"`
}

func toApplicationModel(app *loan.Application) *applicationModel {
	return &applicationModel{
		ID:          app.ID.String(),
		InvoiceID:   app.InvoiceID.String(),
		ApplicantID: app.ApplicantID.String(),
		AmountCents: app.Amount.Cents,
		Status:      string(app.Status),
		Reason:      app.Reason,
		RiskScore:   app.RiskScore,
		DecidedBy:   app.DecidedBy.String(),
		DecidedAt:   app.DecidedAt,
		CreatedAt:   app.CreatedAt,
		UpdatedAt:   app.UpdatedAt,
	}
}

func fromApplicationModel(m *applicationModel) (*loan.Application, error) {
	appID, err := id.ParseApplicationID(m.ID)
	if err != nil {
		return nil, err
	}
	invID, err := id.ParseInvoiceID(m.InvoiceID)
	if err != nil {
		return nil, err
	}
	applicantID, err := id.ParseEntityID(m.ApplicantID)
	if err != nil {
		return nil, err
	}
	var decidedBy id.EntityID
	if m.DecidedBy != "" {
		if decidedBy, err = id.ParseEntityID(m.DecidedBy); err != nil {
			return nil, err
		}
	}
	return &loan.Application{
		Entity:      entity(m.CreatedAt, m.UpdatedAt),
		ID:          appID,
		InvoiceID:   invID,
		ApplicantID: applicantID,
		Amount:      types.Cents(m.AmountCents),
		Status:      loan.ApplicationStatus(m.Status),
		Reason:      m.Reason,
		RiskScore:   m.RiskScore,
		DecidedBy:   decidedBy,
		DecidedAt:   utcPtr(m.DecidedAt),
	}, nil
}

// ==================== Loan models ====================

type loanModel struct {
	ID             string     `bson:"_id"`
	ApplicationID  string     `bson:"application_id"`
	InvoiceID      string     `bson:"invoice_id"`
	BorrowerID     string     `bson:"borrower_id"`
	LenderID       string     `bson:"lender_id"`
	PrincipalCents int64      `bson:"principal_cents"`
	InterestRate   string     `bson:"interest_rate"`
	RepaymentDate  time.Time  `bson:"repayment_date"`
	Status         string     `bson:"status"`
	RepaidCents    int64      `bson:"repaid_cents"`
	ClosedAt       *time.Time `bson:"closed_at,omitempty"`
	CreatedAt      time.Time  `bson:"created_at"`
	UpdatedAt      time.Time  `bson:"updated_at"`
}

func toLoanModel(l *loan.Loan) *loanModel {
	return &loanModel{
		ID:             l.ID.String(),
		ApplicationID:  l.ApplicationID.String(),
		InvoiceID:      l.InvoiceID.String(),
		BorrowerID:     l.BorrowerID.String(),
		LenderID:       l.LenderID.String(),
		PrincipalCents: l.Principal.Cents,
		InterestRate:   l.InterestRate.String(),
		RepaymentDate:  l.RepaymentDate,
		Status:         string(l.Status),
		RepaidCents:    l.AmountRepaid.Cents,
		ClosedAt:       l.ClosedAt,
		CreatedAt:      l.CreatedAt,
		UpdatedAt:      l.UpdatedAt,
	}
}

func fromLoanModel(m *loanModel) (*loan.Loan, error) {
	loanID, err := id.ParseLoanID(m.ID)
	if err != nil {
		return nil, err
	}
	appID, err := id.ParseApplicationID(m.ApplicationID)
	if err != nil {
		return nil, err
	}
	invID, err := id.ParseInvoiceID(m.InvoiceID)
	if err != nil {
		return nil, err
	}
	borrowerID, err := id.ParseEntityID(m.BorrowerID)
	if err != nil {
		return nil, err
	}
	lenderID, err := id.ParseEntityID(m.LenderID)
	if err != nil {
		return nil, err
	}
	rate, err := decimal.NewFromString(m.InterestRate)
	if err != nil {
		return nil, err
	}
	return &loan.Loan{
		Entity:        entity(m.CreatedAt, m.UpdatedAt),
		ID:            loanID,
		ApplicationID: appID,
		InvoiceID:     invID,
		BorrowerID:    borrowerID,
		LenderID:      lenderID,
		Principal:     types.Cents(m.PrincipalCents),
		InterestRate:  rate,
		RepaymentDate: m.RepaymentDate.UTC(),
		Status:        loan.Status(m.Status),
		AmountRepaid:  types.Cents(m.RepaidCents),
		ClosedAt:      utcPtr(m.ClosedAt),
	}, nil
}

// ==================== Journal models ====================

type referenceModel struct {
	ID   string `bson:"id"`
	Type string `bson:"type"`
}

type entryModel struct {
	ID          string          `bson:"_id"`
	Seq         int64           `bson:"seq"`
	EntityID    string          `bson:"entity_id"`
	Direction   string          `bson:"direction"`
	AmountCents int64           `bson:"amount_cents"`
	Description string          `bson:"description"`
	Reference   *referenceModel `bson:"ref,omitempty"`
	CreatedAt   time.Time       `bson:"created_at"`
}

func toEntryModel(e *journal.Entry, seq int64) *entryModel {
	m := &entryModel{
		ID:          e.ID.String(),
		Seq:         seq,
		EntityID:    e.EntityID.String(),
		Direction:   string(e.Direction),
		AmountCents: e.Amount.Cents,
		Description: e.Description,
		CreatedAt:   e.CreatedAt,
	}
	if e.Reference != nil {
		m.Reference = &referenceModel{ID: e.Reference.ID, Type: string(e.Reference.Type)}
	}
	return m
}

func fromEntryModel(m *entryModel) (*journal.Entry, error) {
	entryID, err := id.ParseEntryID(m.ID)
	if err != nil {
		return nil, err
	}
	entityID, err := id.ParseEntityID(m.EntityID)
	if err != nil {
		return nil, err
	}
	e := &journal.Entry{
		ID:          entryID,
		EntityID:    entityID,
		Direction:   journal.Direction(m.Direction),
		Amount:      types.Cents(m.AmountCents),
		Description: m.Description,
		CreatedAt:   m.CreatedAt.UTC(),
	}
	if m.Reference != nil {
		e.Reference = &journal.Reference{ID: m.Reference.ID, Type: journal.RefType(m.Reference.Type)}
	}
	return e, nil
}

// ==================== helpers ====================

func entity(created, updated time.Time) types.Entity {
	return types.Entity{CreatedAt: created.UTC(), UpdatedAt: updated.UTC()}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
