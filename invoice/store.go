package invoice

import (
	"context"
	"time"

	"github.com/xraph/tradefin/id"
)

type Store interface {
	CreateInvoice(ctx context.Context, inv *Invoice) error
	GetInvoice(ctx context.Context, invID id.InvoiceID) (*Invoice, error)
	// GetInvoiceForUpdate is GetInvoice that, inside a transaction, keeps
	// concurrent writers off the invoice until the transaction ends.
	GetInvoiceForUpdate(ctx context.Context, invID id.InvoiceID) (*Invoice, error)
	GetInvoiceByOrder(ctx context.Context, orderID id.OrderID) (*Invoice, error)
	ListInvoices(ctx context.Context, opts ListOpts) ([]*Invoice, error)
	// MarkInvoicePaid settles the invoice in full. It fails with
	// ErrConcurrentUpdate when the stored status no longer equals from.
	MarkInvoicePaid(ctx context.Context, invID id.InvoiceID, from Status, paidAt time.Time) error
	CountInvoices(ctx context.Context) (map[Status]int, error)
}

type ListOpts struct {
	SupplierID id.EntityID
	BuyerID    id.EntityID
	Status     Status
	Limit      int
	Offset     int
}
