package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/xraph/tradefin"
	"github.com/xraph/tradefin/id"
	"github.com/xraph/tradefin/invoice"
	"github.com/xraph/tradefin/types"
)

// ==================== Invoice Store ====================

const invoiceColumns = `id, order_id, invoice_number, supplier_id, buyer_id, amount, remaining_amount,
status, due_date, paid_at, created_at, updated_at`

func (s *Store) CreateInvoice(ctx context.Context, inv *invoice.Invoice) error {
	_, err := s.exec(ctx, `INSERT INTO tradefin_invoices (`+invoiceColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.OrderID, inv.Number, inv.SupplierID, inv.BuyerID, inv.Amount.Cents, inv.RemainingAmount.Cents,
		string(inv.Status), formatTime(inv.DueDate), formatTimePtr(inv.PaidAt), formatTime(inv.CreatedAt), formatTime(inv.UpdatedAt))
	if s.unique(err) {
		return tradefin.ErrAlreadyExists
	}
	if err != nil {
		return s.wrap("create invoice", err)
	}
	return nil
}

func (s *Store) GetInvoice(ctx context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	return s.getInvoice(ctx, "id = ?", invID)
}

// GetInvoiceForUpdate reads an invoice and, inside Atomic, holds its row
// lock until the transaction ends. SQLite locks the database at BEGIN
// IMMEDIATE instead.
func (s *Store) GetInvoiceForUpdate(ctx context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	return s.getInvoice(ctx, "id = ?"+s.dialect.ForUpdate, invID)
}

func (s *Store) GetInvoiceByOrder(ctx context.Context, orderID id.OrderID) (*invoice.Invoice, error) {
	return s.getInvoice(ctx, "order_id = ?", orderID)
}

func (s *Store) getInvoice(ctx context.Context, cond string, arg any) (*invoice.Invoice, error) {
	row := s.queryRow(ctx, `SELECT `+invoiceColumns+` FROM tradefin_invoices WHERE `+cond, arg)
	inv, err := scanInvoice(row)
	if isNoRows(err) {
		return nil, tradefin.ErrInvoiceNotFound
	}
	if err != nil {
		return nil, s.wrap("get invoice", err)
	}
	return inv, nil
}

func (s *Store) ListInvoices(ctx context.Context, opts invoice.ListOpts) ([]*invoice.Invoice, error) {
	var f filter
	if !opts.SupplierID.IsNil() {
		f.where("supplier_id = ?", opts.SupplierID)
	}
	if !opts.BuyerID.IsNil() {
		f.where("buyer_id = ?", opts.BuyerID)
	}
	if opts.Status != "" {
		f.where("status = ?", string(opts.Status))
	}
	q := `SELECT ` + invoiceColumns + ` FROM tradefin_invoices` + f.sql() +
		` ORDER BY created_at DESC, id DESC` + f.paginate(opts.Limit, opts.Offset)

	rows, err := s.query(ctx, q, f.args...)
	if err != nil {
		return nil, s.wrap("list invoices", err)
	}
	defer rows.Close()

	result := make([]*invoice.Invoice, 0)
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, s.wrap("list invoices", err)
		}
		result = append(result, inv)
	}
	return result, rows.Err()
}

func (s *Store) MarkInvoicePaid(ctx context.Context, invID id.InvoiceID, from invoice.Status, paidAt time.Time) error {
	stamp := formatTime(paidAt)
	res, err := s.exec(ctx, `UPDATE tradefin_invoices
SET status = ?, remaining_amount = 0, paid_at = ?, updated_at = ?
WHERE id = ? AND status = ?`,
		string(invoice.StatusPaid), stamp, stamp, invID, string(from))
	if err != nil {
		return s.wrap("mark invoice paid", err)
	}
	return s.expectOne(ctx, res, "tradefin_invoices", invID.String(), tradefin.ErrInvoiceNotFound)
}

func (s *Store) CountInvoices(ctx context.Context) (map[invoice.Status]int, error) {
	counts := make(map[invoice.Status]int)
	err := s.countByStatus(ctx, "tradefin_invoices", func(status string, n int) {
		counts[invoice.Status(status)] = n
	})
	return counts, err
}

func scanInvoice(sc scanner) (*invoice.Invoice, error) {
	var (
		inv                  invoice.Invoice
		amount, remaining    int64
		status, due          string
		paidAt               sql.NullString
		createdAt, updatedAt string
	)
	err := sc.Scan(&inv.ID, &inv.OrderID, &inv.Number, &inv.SupplierID, &inv.BuyerID, &amount, &remaining,
		&status, &due, &paidAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	inv.Amount = types.Cents(amount)
	inv.RemainingAmount = types.Cents(remaining)
	inv.Status = invoice.Status(status)
	if inv.DueDate, err = parseTime(due); err != nil {
		return nil, err
	}
	if inv.PaidAt, err = parseTimePtr(paidAt); err != nil {
		return nil, err
	}
	if inv.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if inv.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &inv, nil
}
