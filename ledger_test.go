package tradefin_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/tradefin"
	"github.com/xraph/tradefin/id"
	"github.com/xraph/tradefin/journal"
	"github.com/xraph/tradefin/types"
)

func TestRecordLedgerEntry(t *testing.T) {
	eachBackend(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()

		entry, err := f.eng.RecordLedgerEntry(ctx, f.supplier, journal.Debit, types.MustParse("120.50"), "opening balance", nil)
		require.NoError(t, err)
		assert.False(t, entry.ID.IsNil())
		assert.Nil(t, entry.Reference)
		assert.True(t, entry.CreatedAt.Equal(start))

		ref := &journal.Reference{ID: "adj-7", Type: journal.RefManual}
		_, err = f.eng.RecordLedgerEntry(ctx, f.supplier, journal.Credit, types.MustParse("20.25"), "fee refund", ref)
		require.NoError(t, err)

		assert.Equal(t, types.MustParse("100.25"), f.balance(t, f.supplier))

		totals, err := f.eng.GetTotals(ctx, f.supplier)
		require.NoError(t, err)
		assert.Equal(t, types.MustParse("120.50"), totals.Debits)
		assert.Equal(t, types.MustParse("20.25"), totals.Credits)
		assert.Equal(t, 2, totals.Count)

		byRef, err := f.eng.ListLedgerEntriesByReference(ctx, "adj-7", journal.RefManual, 0, 0)
		require.NoError(t, err)
		require.Len(t, byRef, 1)
		assert.Equal(t, "fee refund", byRef[0].Description)
	})
}

func TestRecordLedgerEntryValidation(t *testing.T) {
	f := newFixture(t, backends["memory"](t))
	ctx := context.Background()

	tests := []struct {
		name      string
		entity    id.EntityID
		direction journal.Direction
		amount    types.Money
		ref       *journal.Reference
		want      error
	}{
		{"zero amount", f.supplier, journal.Debit, types.Zero(), nil, tradefin.ErrInvalidAmount},
		{"negative amount", f.supplier, journal.Credit, types.Cents(-100), nil, tradefin.ErrInvalidAmount},
		{"missing entity", id.EntityID{}, journal.Debit, types.Cents(100), nil, tradefin.ErrInvalidInput},
		{"bad direction", f.supplier, journal.Direction("sideways"), types.Cents(100), nil, tradefin.ErrInvalidInput},
		{"partial reference", f.supplier, journal.Debit, types.Cents(100), &journal.Reference{ID: "x"}, tradefin.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.eng.RecordLedgerEntry(ctx, tt.entity, tt.direction, tt.amount, "", tt.ref)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	assert.True(t, f.balance(t, f.supplier).IsZero())
}

func TestBalanceForUnknownEntity(t *testing.T) {
	eachBackend(t, func(t *testing.T, f *fixture) {
		assert.True(t, f.balance(t, id.NewEntityID()).IsZero())

		entries, err := f.eng.ListLedgerEntries(context.Background(), id.NewEntityID(), 0, 0)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}

// Every workflow posting is a debit/credit pair of equal amount, so the
// journal as a whole nets to zero and each balance equals its entries.
func TestJournalInvariants(t *testing.T) {
	eachBackend(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()

		for _, amount := range []string{"100", "2500.75", "9999.99"} {
			inv := f.invoice(t, amount)
			app := f.apply(t, inv, amount)
			l, err := f.eng.ApproveApplication(ctx, app.ID, f.lender, nil, nil)
			require.NoError(t, err)
			_, err = f.eng.RepayLoan(ctx, l.ID, f.supplier)
			require.NoError(t, err)
			_, err = f.eng.PayInvoice(ctx, inv.ID, f.buyer)
			require.NoError(t, err)
		}

		net := types.Zero()
		for _, entity := range []id.EntityID{f.supplier, f.buyer, f.lender} {
			entries, err := f.eng.ListLedgerEntries(ctx, entity, 1000, 0)
			require.NoError(t, err)

			sum := types.Zero()
			for _, e := range entries {
				assert.True(t, e.Amount.IsPositive())
				sum = sum.Add(e.Signed())

				require.NotNil(t, e.Reference)
				pair, err := f.eng.ListLedgerEntriesByReference(ctx, e.Reference.ID, e.Reference.Type, 0, 0)
				require.NoError(t, err)
				refNet := types.Zero()
				for _, p := range pair {
					refNet = refNet.Add(p.Signed())
				}
				assert.False(t, refNet.IsPositive() || refNet.IsNegative(), "reference %s does not net to zero", e.Reference.ID)
			}

			assert.Equal(t, sum, f.balance(t, entity))
			net = net.Add(sum)
		}
		assert.True(t, net.IsZero())
	})
}

func TestLedgerPaging(t *testing.T) {
	f := newFixture(t, backends["sqlite"](t), tradefin.WithEntryPageSize(2))
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		_, err := f.eng.RecordLedgerEntry(ctx, f.buyer, journal.Debit, types.Cents(int64(i)), "", nil)
		require.NoError(t, err)
	}

	page, err := f.eng.ListLedgerEntries(ctx, f.buyer, 0, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, types.Cents(5), page[0].Amount)

	rest, err := f.eng.ListLedgerEntries(ctx, f.buyer, 10, 3)
	require.NoError(t, err)
	require.Len(t, rest, 2)
	assert.Equal(t, types.Cents(2), rest[0].Amount)
	assert.Equal(t, types.Cents(1), rest[1].Amount)
}
