// Package order defines the purchase order raised by a supplier against a buyer.
package order

import (
	"time"

	"github.com/xraph/tradefin/id"
	"github.com/xraph/tradefin/types"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusPaid      Status = "paid"
)

// Valid reports whether s is a known order status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusPaid:
		return true
	}
	return false
}

type Order struct {
	types.Entity
	ID          id.OrderID  `json:"id"`
	SupplierID  id.EntityID `json:"supplier_id"`
	BuyerID     id.EntityID `json:"buyer_id"`
	Amount      types.Money `json:"amount"`
	Status      Status      `json:"status"`
	Description string      `json:"description,omitempty"`
	PONumber    string      `json:"po_number,omitempty"`
	ConfirmedAt *time.Time  `json:"confirmed_at,omitempty"`
	PaidAt      *time.Time  `json:"paid_at,omitempty"`
}

// Party reports whether entityID is the supplier or the buyer of the order.
func (o *Order) Party(entityID id.EntityID) bool {
	e := entityID.String()
	return o.SupplierID.String() == e || o.BuyerID.String() == e
}
