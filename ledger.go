package tradefin

import (
	"context"
	"fmt"
	"time"

	"github.com/xraph/tradefin/id"
	"github.com/xraph/tradefin/journal"
	"github.com/xraph/tradefin/plugin"
	"github.com/xraph/tradefin/store"
	"github.com/xraph/tradefin/types"
)

// ──────────────────────────────────────────────────
// Journal
// ──────────────────────────────────────────────────

// RecordLedgerEntry appends a single administrative entry. Workflow
// transitions never use it; they post matched pairs.
func (e *Engine) RecordLedgerEntry(
	ctx context.Context,
	entityID id.EntityID,
	direction journal.Direction,
	amount types.Money,
	description string,
	ref *journal.Reference,
) (*journal.Entry, error) {
	if err := checkAmount("entry amount", amount); err != nil {
		return nil, err
	}
	if entityID.IsNil() {
		return nil, ValidationError{Field: "entity_id", Message: "required"}
	}
	if !direction.Valid() {
		return nil, ValidationError{Field: "direction", Message: fmt.Sprintf("unknown direction %q", direction)}
	}
	if ref != nil && ref.IsZero() {
		ref = nil
	}
	if ref != nil && (ref.ID == "" || ref.Type == "") {
		return nil, ValidationError{Field: "reference", Message: "id and type are both required"}
	}

	entry := &journal.Entry{
		ID:          id.NewEntryID(),
		EntityID:    entityID,
		Direction:   direction,
		Amount:      amount,
		Description: description,
		CreatedAt:   e.now(),
	}
	if ref != nil {
		r := *ref
		entry.Reference = &r
	}

	if err := e.store.AppendEntries(ctx, entry); err != nil {
		return nil, err
	}

	e.plugins.EmitEntriesPosted(ctx, []*journal.Entry{entry})
	return entry, nil
}

// GetBalance returns Σ debits − Σ credits for the entity. An entity without
// entries has a zero balance.
func (e *Engine) GetBalance(ctx context.Context, entityID id.EntityID) (types.Money, error) {
	totals, err := e.store.EntityTotals(ctx, entityID)
	if err != nil {
		return types.Zero(), err
	}
	return totals.Balance(), nil
}

// GetTotals returns the debit and credit sums behind an entity's balance.
func (e *Engine) GetTotals(ctx context.Context, entityID id.EntityID) (journal.Totals, error) {
	return e.store.EntityTotals(ctx, entityID)
}

// ListLedgerEntries returns an entity's entries newest first.
func (e *Engine) ListLedgerEntries(ctx context.Context, entityID id.EntityID, limit, offset int) ([]*journal.Entry, error) {
	return e.store.ListEntries(ctx, entityID, e.pageOpts(limit, offset))
}

// ListLedgerEntriesByReference returns every entry caused by one invoice,
// loan or manual reference, newest first.
func (e *Engine) ListLedgerEntriesByReference(
	ctx context.Context,
	refID string,
	refType journal.RefType,
	limit, offset int,
) ([]*journal.Entry, error) {
	ref := journal.Reference{ID: refID, Type: refType}
	return e.store.ListEntriesByReference(ctx, ref, e.pageOpts(limit, offset))
}

func (e *Engine) pageOpts(limit, offset int) journal.ListOpts {
	if limit <= 0 {
		limit = e.entryPageSize
	}
	return journal.ListOpts{Limit: limit, Offset: offset}.Normalize()
}

// postPair appends the debit and credit legs of one economic event inside
// the caller's transaction.
func postPair(ctx context.Context, tx store.Repository, p journal.Pair, at time.Time) ([]*journal.Entry, error) {
	if err := checkAmount("posting amount", p.Amount); err != nil {
		return nil, err
	}
	if p.DebitEntity.IsNil() || p.CreditEntity.IsNil() {
		return nil, ValidationError{Field: "entity_id", Message: "both legs of a posting need an entity"}
	}

	legs := p.Entries(at)
	if err := tx.AppendEntries(ctx, legs[0], legs[1]); err != nil {
		return nil, err
	}
	return legs[:], nil
}

// emitAs tags ctx with the acting entity for plugin consumers.
func emitAs(ctx context.Context, actor id.EntityID) context.Context {
	if actor.IsNil() {
		return ctx
	}
	return plugin.WithActor(ctx, actor)
}

// checkAmount requires 0 < m <= types.MaxAmount.
func checkAmount(what string, m types.Money) error {
	if !m.IsPositive() {
		return fmt.Errorf("%w: %s %s must be positive", ErrInvalidAmount, what, m)
	}
	if m.GreaterThan(types.MaxAmount) {
		return fmt.Errorf("%w: %s %s exceeds %s", ErrInvalidAmount, what, m, types.MaxAmount)
	}
	return nil
}
