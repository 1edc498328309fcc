// Package journal defines the append-only ledger entries from which every
// participant balance is derived.
package journal

import (
	"time"

	"github.com/xraph/tradefin/id"
	"github.com/xraph/tradefin/types"
)

type Direction string

const (
	Debit  Direction = "debit"
	Credit Direction = "credit"
)

// Valid reports whether d is Debit or Credit.
func (d Direction) Valid() bool {
	return d == Debit || d == Credit
}

// RefType names the kind of record an entry links back to.
type RefType string

const (
	RefInvoice RefType = "invoice"
	RefLoan    RefType = "loan"
	RefManual  RefType = "manual"
)

// Reference links an entry to the business event that caused it.
type Reference struct {
	ID   string  `json:"id"`
	Type RefType `json:"type"`
}

// IsZero reports whether the reference is unset.
func (r Reference) IsZero() bool { return r.ID == "" && r.Type == "" }

// Entry is one immutable journal line.
type Entry struct {
	ID          id.EntryID  `json:"id"`
	EntityID    id.EntityID `json:"entity_id"`
	Direction   Direction   `json:"direction"`
	Amount      types.Money `json:"amount"`
	Description string      `json:"description"`
	Reference   *Reference  `json:"reference,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Signed returns the entry's contribution to its entity's balance:
// positive for a debit, negative for a credit.
func (e *Entry) Signed() types.Money {
	if e.Direction == Credit {
		return e.Amount.Negate()
	}
	return e.Amount
}

// Pair describes one economic event posted as two equal entries: a debit to
// DebitEntity and a credit to CreditEntity sharing a reference.
type Pair struct {
	DebitEntity  id.EntityID
	CreditEntity id.EntityID
	Amount       types.Money
	Reference    Reference
	DebitMemo    string
	CreditMemo   string
}

// Entries materializes the pair as a debit entry followed by a credit entry.
func (p Pair) Entries(at time.Time) [2]*Entry {
	ref := p.Reference
	debitRef, creditRef := ref, ref
	return [2]*Entry{
		{
			ID:          id.NewEntryID(),
			EntityID:    p.DebitEntity,
			Direction:   Debit,
			Amount:      p.Amount,
			Description: p.DebitMemo,
			Reference:   &debitRef,
			CreatedAt:   at.UTC(),
		},
		{
			ID:          id.NewEntryID(),
			EntityID:    p.CreditEntity,
			Direction:   Credit,
			Amount:      p.Amount,
			Description: p.CreditMemo,
			Reference:   &creditRef,
			CreatedAt:   at.UTC(),
		},
	}
}

// Totals are the summed debits and credits of one entity.
type Totals struct {
	Debits  types.Money `json:"debits"`
	Credits types.Money `json:"credits"`
	Count   int         `json:"count"`
}

// Balance is Σdebit − Σcredit. It may be negative.
func (t Totals) Balance() types.Money {
	return t.Debits.Subtract(t.Credits)
}
