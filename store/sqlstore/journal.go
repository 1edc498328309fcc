package sqlstore

import (
	"context"
	"database/sql"

	"github.com/xraph/tradefin"
	"github.com/xraph/tradefin/id"
	"github.com/xraph/tradefin/journal"
	"github.com/xraph/tradefin/types"
)

// ==================== Journal Store ====================

const entryColumns = `id, entity_id, direction, amount, description, ref_id, ref_type, created_at`

// AppendEntries inserts entries in order; the autoincrement seq column
// records commit order for newest-first listing.
func (s *Store) AppendEntries(ctx context.Context, entries ...*journal.Entry) error {
	for _, e := range entries {
		var refID, refType sql.NullString
		if e.Reference != nil {
			refID = sql.NullString{String: e.Reference.ID, Valid: true}
			refType = sql.NullString{String: string(e.Reference.Type), Valid: true}
		}
		_, err := s.exec(ctx, `INSERT INTO tradefin_ledger_entries (`+entryColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.EntityID, string(e.Direction), e.Amount.Cents, e.Description, refID, refType, formatTime(e.CreatedAt))
		if s.unique(err) {
			return tradefin.ErrAlreadyExists
		}
		if err != nil {
			return s.wrap("append entry", err)
		}
	}
	return nil
}

func (s *Store) ListEntries(ctx context.Context, entityID id.EntityID, opts journal.ListOpts) ([]*journal.Entry, error) {
	var f filter
	f.where("entity_id = ?", entityID)
	return s.listEntries(ctx, &f, opts)
}

func (s *Store) ListEntriesByReference(ctx context.Context, ref journal.Reference, opts journal.ListOpts) ([]*journal.Entry, error) {
	var f filter
	f.where("ref_id = ?", ref.ID)
	f.where("ref_type = ?", string(ref.Type))
	return s.listEntries(ctx, &f, opts)
}

func (s *Store) listEntries(ctx context.Context, f *filter, opts journal.ListOpts) ([]*journal.Entry, error) {
	opts = opts.Normalize()
	q := `SELECT ` + entryColumns + ` FROM tradefin_ledger_entries` + f.sql() +
		` ORDER BY seq DESC` + f.paginate(opts.Limit, opts.Offset)

	rows, err := s.query(ctx, q, f.args...)
	if err != nil {
		return nil, s.wrap("list entries", err)
	}
	defer rows.Close()

	result := make([]*journal.Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, s.wrap("list entries", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func (s *Store) EntityTotals(ctx context.Context, entityID id.EntityID) (journal.Totals, error) {
	var debits, credits int64
	var count int
	err := s.queryRow(ctx, `SELECT
    CAST(COALESCE(SUM(CASE WHEN direction = 'debit' THEN amount ELSE 0 END), 0) AS BIGINT),
    CAST(COALESCE(SUM(CASE WHEN direction = 'credit' THEN amount ELSE 0 END), 0) AS BIGINT),
    COUNT(*)
FROM tradefin_ledger_entries WHERE entity_id = ?`, entityID).Scan(&debits, &credits, &count)
	if err != nil {
		return journal.Totals{}, s.wrap("entity totals", err)
	}
	return journal.Totals{
		Debits:  types.Cents(debits),
		Credits: types.Cents(credits),
		Count:   count,
	}, nil
}

func scanEntry(sc scanner) (*journal.Entry, error) {
	var (
		e              journal.Entry
		direction      string
		amount         int64
		refID, refType sql.NullString
		createdAt      string
	)
	err := sc.Scan(&e.ID, &e.EntityID, &direction, &amount, &e.Description, &refID, &refType, &createdAt)
	if err != nil {
		return nil, err
	}
	e.Direction = journal.Direction(direction)
	e.Amount = types.Cents(amount)
	if refID.Valid {
		e.Reference = &journal.Reference{ID: refID.String, Type: journal.RefType(refType.String)}
	}
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &e, nil
}
