// Package invoice defines the receivable spawned by confirming an order.
package invoice

import (
	"time"

	"github.com/xraph/tradefin/id"
	"github.com/xraph/tradefin/types"
)

type Status string

const (
	StatusUnpaid  Status = "unpaid"
	StatusPartial Status = "partial"
	StatusPaid    Status = "paid"
)

// Valid reports whether s is a known invoice status.
func (s Status) Valid() bool {
	switch s {
	case StatusUnpaid, StatusPartial, StatusPaid:
		return true
	}
	return false
}

// Invoice is created only by order confirmation. Amount is immutable;
// RemainingAmount is zero exactly when Status is StatusPaid.
type Invoice struct {
	types.Entity
	ID              id.InvoiceID `json:"id"`
	OrderID         id.OrderID   `json:"order_id"`
	Number          string       `json:"invoice_number"`
	SupplierID      id.EntityID  `json:"supplier_id"`
	BuyerID         id.EntityID  `json:"buyer_id"`
	Amount          types.Money  `json:"amount"`
	RemainingAmount types.Money  `json:"remaining_amount"`
	Status          Status       `json:"status"`
	DueDate         time.Time    `json:"due_date"`
	PaidAt          *time.Time   `json:"paid_at,omitempty"`
}

// NumberLayout is the timestamp layout embedded in invoice numbers.
const NumberLayout = "20060102150405"

// NewNumber builds the invoice number for an order confirmed at t. An order
// yields at most one invoice, so the order suffix makes the number unique.
func NewNumber(t time.Time, orderID id.OrderID) string {
	return "INV-" + t.UTC().Format(NumberLayout) + "-" + orderID.Suffix()
}

// Overdue reports whether the invoice is unsettled past its due date.
func (inv *Invoice) Overdue(now time.Time) bool {
	return inv.Status != StatusPaid && now.After(inv.DueDate)
}
