package postgres_test

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xraph/tradefin/store"
	"github.com/xraph/tradefin/store/postgres"
	"github.com/xraph/tradefin/store/storetest"
)

var tables = []string{
	"tradefin_ledger_entries",
	"tradefin_loans",
	"tradefin_loan_applications",
	"tradefin_invoices",
	"tradefin_orders",
}

func TestConformance(t *testing.T) {
	dsn := os.Getenv("TRADEFIN_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TRADEFIN_TEST_POSTGRES_DSN not set")
	}

	storetest.Run(t, func(t *testing.T) store.Store {
		ctx := context.Background()
		s, err := postgres.Open(ctx, dsn)
		require.NoError(t, err)
		require.NoError(t, s.Migrate(ctx))
		_, err = s.PgDB().Exec(ctx, "TRUNCATE "+strings.Join(tables, ", "))
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}
