package tradefin

import (
	"context"
	"fmt"

	"github.com/xraph/tradefin/id"
	"github.com/xraph/tradefin/invoice"
	"github.com/xraph/tradefin/journal"
	"github.com/xraph/tradefin/order"
	"github.com/xraph/tradefin/store"
	"github.com/xraph/tradefin/types"
)

// ──────────────────────────────────────────────────
// Orders
// ──────────────────────────────────────────────────

// CreateOrder records a supplier's order against a buyer. The order always
// starts Pending; ID and timestamps are assigned here.
func (e *Engine) CreateOrder(ctx context.Context, o *order.Order) error {
	if o.SupplierID.IsNil() {
		return ValidationError{Field: "supplier_id", Message: "required"}
	}
	if o.BuyerID.IsNil() {
		return ValidationError{Field: "buyer_id", Message: "required"}
	}
	if o.SupplierID.String() == o.BuyerID.String() {
		return ValidationError{Field: "buyer_id", Message: "supplier and buyer must differ"}
	}
	if err := checkAmount("order amount", o.Amount); err != nil {
		return err
	}

	if o.ID.IsNil() {
		o.ID = id.NewOrderID()
	}
	o.Entity = types.NewEntityAt(e.now())
	o.Status = order.StatusPending
	o.ConfirmedAt = nil
	o.PaidAt = nil

	if err := e.store.CreateOrder(ctx, o); err != nil {
		return err
	}

	e.plugins.EmitOrderCreated(emitAs(ctx, o.SupplierID), o)
	return nil
}

// GetOrder retrieves an order by ID.
func (e *Engine) GetOrder(ctx context.Context, orderID id.OrderID) (*order.Order, error) {
	return e.store.GetOrder(ctx, orderID)
}

// ListOrders lists orders newest first.
func (e *Engine) ListOrders(ctx context.Context, opts order.ListOpts) ([]*order.Order, error) {
	return e.store.ListOrders(ctx, opts)
}

// ConfirmOrder moves a Pending order to Confirmed and issues its invoice in
// the same transaction. The invoice is due after the configured term.
func (e *Engine) ConfirmOrder(ctx context.Context, orderID id.OrderID, actor id.EntityID) (*invoice.Invoice, error) {
	unlock := e.locks.lock(orderID.String())
	defer unlock()

	var (
		confirmed *order.Order
		issued    *invoice.Invoice
	)
	err := e.atomic(ctx, func(ctx context.Context, tx store.Repository) error {
		o, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if o.Status != order.StatusPending {
			return orderTransitionError(o, "confirm")
		}

		now := e.now()
		if err := tx.TransitionOrder(ctx, o.ID, order.StatusPending, order.StatusConfirmed, now); err != nil {
			return err
		}

		inv := &invoice.Invoice{
			Entity:          types.NewEntityAt(now),
			ID:              id.NewInvoiceID(),
			OrderID:         o.ID,
			Number:          invoice.NewNumber(now, o.ID),
			SupplierID:      o.SupplierID,
			BuyerID:         o.BuyerID,
			Amount:          o.Amount,
			RemainingAmount: o.Amount,
			Status:          invoice.StatusUnpaid,
			DueDate:         now.Add(e.invoiceTerm),
		}
		if err := tx.CreateInvoice(ctx, inv); err != nil {
			return err
		}

		o.Status = order.StatusConfirmed
		o.ConfirmedAt = &now
		o.TouchAt(now)
		confirmed, issued = o, inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.plugins.EmitOrderConfirmed(emitAs(ctx, actor), confirmed, issued)
	return issued, nil
}

// DeleteOrder removes a Pending order. Confirmed orders are kept because
// their invoice refers to them.
func (e *Engine) DeleteOrder(ctx context.Context, orderID id.OrderID, actor id.EntityID) error {
	unlock := e.locks.lock(orderID.String())
	defer unlock()

	var deleted *order.Order
	err := e.atomic(ctx, func(ctx context.Context, tx store.Repository) error {
		o, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if o.Status != order.StatusPending {
			return orderTransitionError(o, "delete")
		}
		if err := tx.DeleteOrder(ctx, o.ID, order.StatusPending); err != nil {
			return err
		}
		deleted = o
		return nil
	})
	if err != nil {
		return err
	}

	e.plugins.EmitOrderDeleted(emitAs(ctx, actor), deleted)
	return nil
}

// ──────────────────────────────────────────────────
// Invoices
// ──────────────────────────────────────────────────

// GetInvoice retrieves an invoice by ID.
func (e *Engine) GetInvoice(ctx context.Context, invoiceID id.InvoiceID) (*invoice.Invoice, error) {
	return e.store.GetInvoice(ctx, invoiceID)
}

// GetInvoiceByOrder retrieves the invoice issued for an order.
func (e *Engine) GetInvoiceByOrder(ctx context.Context, orderID id.OrderID) (*invoice.Invoice, error) {
	return e.store.GetInvoiceByOrder(ctx, orderID)
}

// ListInvoices lists invoices newest first.
func (e *Engine) ListInvoices(ctx context.Context, opts invoice.ListOpts) ([]*invoice.Invoice, error) {
	return e.store.ListInvoices(ctx, opts)
}

// PayInvoice settles an invoice in full. The invoice and its order become
// Paid together, and the buyer is debited and the supplier credited for the
// invoice amount, all in one transaction.
func (e *Engine) PayInvoice(ctx context.Context, invoiceID id.InvoiceID, actor id.EntityID) (*invoice.Invoice, error) {
	unlock := e.locks.lock(invoiceID.String())
	defer unlock()

	var (
		paid    *invoice.Invoice
		entries []*journal.Entry
	)
	err := e.atomic(ctx, func(ctx context.Context, tx store.Repository) error {
		inv, err := tx.GetInvoiceForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		if inv.Status == invoice.StatusPaid {
			return &TransitionError{
				Resource: "invoice",
				ID:       inv.ID.String(),
				From:     string(inv.Status),
				Action:   "pay",
				Kind:     ErrAlreadyPaid,
			}
		}

		pending, err := tx.HasPendingApplication(ctx, inv.ID)
		if err != nil {
			return err
		}
		if pending {
			return fmt.Errorf("%w: invoice %s", ErrBlockedByPendingLoan, inv.Number)
		}

		o, err := tx.GetOrder(ctx, inv.OrderID)
		if err != nil {
			return err
		}
		if o.Status != order.StatusConfirmed {
			return orderTransitionError(o, "pay")
		}

		now := e.now()
		if err := tx.MarkInvoicePaid(ctx, inv.ID, inv.Status, now); err != nil {
			return err
		}
		if err := tx.TransitionOrder(ctx, o.ID, order.StatusConfirmed, order.StatusPaid, now); err != nil {
			return err
		}

		entries, err = postPair(ctx, tx, journal.Pair{
			DebitEntity:  inv.BuyerID,
			CreditEntity: inv.SupplierID,
			Amount:       inv.Amount,
			Reference:    journal.Reference{ID: inv.ID.String(), Type: journal.RefInvoice},
			DebitMemo:    "Invoice payment: " + inv.Number,
			CreditMemo:   "Invoice payment received: " + inv.Number,
		}, now)
		if err != nil {
			return err
		}

		inv.Status = invoice.StatusPaid
		inv.RemainingAmount = types.Zero()
		inv.PaidAt = &now
		inv.TouchAt(now)
		paid = inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx = emitAs(ctx, actor)
	e.plugins.EmitInvoicePaid(ctx, paid)
	e.plugins.EmitEntriesPosted(ctx, entries)
	return paid, nil
}

func orderTransitionError(o *order.Order, action string) error {
	return &TransitionError{
		Resource: "order",
		ID:       o.ID.String(),
		From:     string(o.Status),
		Action:   action,
		Kind:     ErrInvalidTransition,
	}
}
