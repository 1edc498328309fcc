package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/xraph/tradefin"
	"github.com/xraph/tradefin/id"
	"github.com/xraph/tradefin/order"
	"github.com/xraph/tradefin/types"
)

// ==================== Order Store ====================

const orderColumns = `id, supplier_id, buyer_id, amount, status, description, po_number,
confirmed_at, paid_at, created_at, updated_at`

func (s *Store) CreateOrder(ctx context.Context, o *order.Order) error {
	_, err := s.exec(ctx, `INSERT INTO tradefin_orders (`+orderColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.SupplierID, o.BuyerID, o.Amount.Cents, string(o.Status), o.Description, o.PONumber,
		formatTimePtr(o.ConfirmedAt), formatTimePtr(o.PaidAt), formatTime(o.CreatedAt), formatTime(o.UpdatedAt))
	if s.unique(err) {
		return tradefin.ErrAlreadyExists
	}
	if err != nil {
		return s.wrap("create order", err)
	}
	return nil
}

func (s *Store) GetOrder(ctx context.Context, orderID id.OrderID) (*order.Order, error) {
	row := s.queryRow(ctx, `SELECT `+orderColumns+` FROM tradefin_orders WHERE id = ?`, orderID)
	o, err := scanOrder(row)
	if isNoRows(err) {
		return nil, tradefin.ErrOrderNotFound
	}
	if err != nil {
		return nil, s.wrap("get order", err)
	}
	return o, nil
}

func (s *Store) ListOrders(ctx context.Context, opts order.ListOpts) ([]*order.Order, error) {
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
	q := `SELECT ` + orderColumns + ` FROM tradefin_orders` + f.sql() +
		` ORDER BY created_at DESC, id DESC` + f.paginate(opts.Limit, opts.Offset)

	rows, err := s.query(ctx, q, f.args...)
	if err != nil {
		return nil, s.wrap("list orders", err)
	}
	defer rows.Close()

	result := make([]*order.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, s.wrap("list orders", err)
		}
		result = append(result, o)
	}
	return result, rows.Err()
}

func (s *Store) TransitionOrder(ctx context.Context, orderID id.OrderID, from, to order.Status, at time.Time) error {
	stamp := formatTime(at)
	q := `UPDATE tradefin_orders SET status = ?, updated_at = ?`
	args := []any{string(to), stamp}
	switch to {
	case order.StatusConfirmed:
		q += `, confirmed_at = ?`
		args = append(args, stamp)
	case order.StatusPaid:
		q += `, paid_at = ?`
		args = append(args, stamp)
	}
	q += ` WHERE id = ? AND status = ?`
	args = append(args, orderID, string(from))

	res, err := s.exec(ctx, q, args...)
	if err != nil {
		return s.wrap("transition order", err)
	}
	return s.expectOne(ctx, res, "tradefin_orders", orderID.String(), tradefin.ErrOrderNotFound)
}

func (s *Store) DeleteOrder(ctx context.Context, orderID id.OrderID, status order.Status) error {
	res, err := s.exec(ctx, `DELETE FROM tradefin_orders WHERE id = ? AND status = ?`, orderID, string(status))
	if err != nil {
		return s.wrap("delete order", err)
	}
	return s.expectOne(ctx, res, "tradefin_orders", orderID.String(), tradefin.ErrOrderNotFound)
}

func (s *Store) CountOrders(ctx context.Context) (map[order.Status]int, error) {
	counts := make(map[order.Status]int)
	err := s.countByStatus(ctx, "tradefin_orders", func(status string, n int) {
		counts[order.Status(status)] = n
	})
	return counts, err
}

func (s *Store) countByStatus(ctx context.Context, table string, add func(status string, n int)) error {
	rows, err := s.query(ctx, `SELECT status, COUNT(*) FROM `+table+` GROUP BY status`)
	if err != nil {
		return s.wrap("count "+table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return s.wrap("count "+table, err)
		}
		add(status, n)
	}
	return rows.Err()
}

func scanOrder(sc scanner) (*order.Order, error) {
	var (
		o                   order.Order
		amount              int64
		status              string
		confirmedAt, paidAt sql.NullString
		createdAt, updated  string
	)
	err := sc.Scan(&o.ID, &o.SupplierID, &o.BuyerID, &amount, &status, &o.Description, &o.PONumber,
		&confirmedAt, &paidAt, &createdAt, &updated)
	if err != nil {
		return nil, err
	}
	o.Amount = types.Cents(amount)
	o.Status = order.Status(status)
	if o.ConfirmedAt, err = parseTimePtr(confirmedAt); err != nil {
		return nil, err
	}
	if o.PaidAt, err = parseTimePtr(paidAt); err != nil {
		return nil, err
	}
	if o.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if o.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &o, nil
}
