package order

import (
	"context"
	"time"

	"github.com/xraph/tradefin/id"
)

type Store interface {
	CreateOrder(ctx context.Context, o *Order) error
	GetOrder(ctx context.Context, orderID id.OrderID) (*Order, error)
	ListOrders(ctx context.Context, opts ListOpts) ([]*Order, error)
	// TransitionOrder moves an order from one status to another. It fails with
	// ErrConcurrentUpdate when the stored status no longer equals from.
	TransitionOrder(ctx context.Context, orderID id.OrderID, from, to Status, at time.Time) error
	// DeleteOrder removes an order that is still in the given status.
	DeleteOrder(ctx context.Context, orderID id.OrderID, status Status) error
	CountOrders(ctx context.Context) (map[Status]int, error)
}

type ListOpts struct {
	SupplierID id.EntityID
	BuyerID    id.EntityID
	Status     Status
	Limit      int
	Offset     int
}
