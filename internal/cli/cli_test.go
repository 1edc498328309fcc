package cli_test

import (
	"bytes"
	"encoding/json"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/tradefin/id"
	"github.com/xraph/tradefin/internal/cli"
	"github.com/xraph/tradefin/journal"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := cli.NewRootCmdForTest()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// sqliteArgs returns persistent flags pointing at a migrated temp database.
func sqliteArgs(t *testing.T) []string {
	t.Helper()
	flags := []string{"--driver", "sqlite", "--dsn", filepath.Join(t.TempDir(), "tradefin.db"), "--currency", "USD"}
	out, err := run(t, append([]string{"migrate"}, flags...)...)
	require.NoError(t, err)
	require.Contains(t, out, "migrated sqlite store")
	return flags
}

func with(flags []string, args ...string) []string {
	return append(args, flags...)
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "tradefin dev")
}

func TestPostBalanceEntries(t *testing.T) {
	flags := sqliteArgs(t)
	supplier, lender := id.NewEntityID().String(), id.NewEntityID().String()

	out, err := run(t, with(flags, "post", supplier, "debit", "100.50", "-d", "opening", "--ref-id", "adj-1", "--json")...)
	require.NoError(t, err)
	var posted journal.Entry
	require.NoError(t, json.Unmarshal([]byte(out), &posted))
	assert.Equal(t, journal.Debit, posted.Direction)
	assert.Equal(t, "100.50", posted.Amount.String())
	require.NotNil(t, posted.Reference)
	assert.Equal(t, journal.RefManual, posted.Reference.Type)

	out, err = run(t, with(flags, "post", lender, "CREDIT", "100.50", "--ref-id", "adj-1")...)
	require.NoError(t, err)
	assert.Contains(t, out, "posted")
	assert.Contains(t, out, "$100.50")

	out, err = run(t, with(flags, "balance", supplier, "--json")...)
	require.NoError(t, err)
	var bal map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &bal))
	assert.Equal(t, "100.50", bal["balance"])
	assert.Equal(t, "0.00", bal["credits"])
	assert.EqualValues(t, 1, bal["entries"])

	out, err = run(t, with(flags, "balance", lender)...)
	require.NoError(t, err)
	assert.Contains(t, out, "-$100.50")

	out, err = run(t, with(flags, "entries", "--ref-id", "adj-1", "--ref-type", "manual", "--json")...)
	require.NoError(t, err)
	var entries []journal.Entry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 2)
	// Newest first.
	assert.Equal(t, journal.Credit, entries[0].Direction)
	assert.Equal(t, journal.Debit, entries[1].Direction)

	out, err = run(t, with(flags, "entries", supplier)...)
	require.NoError(t, err)
	assert.Contains(t, out, "manual:adj-1")
	assert.Contains(t, out, "opening")
}

func TestEntriesEmptyJSON(t *testing.T) {
	flags := sqliteArgs(t)

	out, err := run(t, with(flags, "entries", id.NewEntityID().String(), "--json")...)
	require.NoError(t, err)
	assert.JSONEq(t, "[]", out)
}

func TestReports(t *testing.T) {
	flags := sqliteArgs(t)

	out, err := run(t, with(flags, "report", "risk", "--json")...)
	require.NoError(t, err)
	var risk struct {
		Total  int            `json:"total"`
		Levels map[string]any `json:"levels"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &risk))
	assert.Zero(t, risk.Total)
	assert.Len(t, risk.Levels, 3)

	out, err = run(t, with(flags, "report", "risk")...)
	require.NoError(t, err)
	assert.Contains(t, out, "0 applications")

	out, err = run(t, with(flags, "report", "stats")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Orders")
	assert.Contains(t, out, "Loans")
}

func TestMemoryDriverNeedsNoMigrate(t *testing.T) {
	out, err := run(t, "balance", id.NewEntityID().String(), "--driver", "memory")
	require.NoError(t, err)
	assert.Contains(t, out, "Balance")
}

func TestCommandErrors(t *testing.T) {
	flags := sqliteArgs(t)
	entity := id.NewEntityID().String()

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"bad entity", with(flags, "balance", "not-an-id"), "entity"},
		{"wrong prefix", with(flags, "balance", id.NewOrderID().String()), "entity"},
		{"bad direction", with(flags, "post", entity, "sideways", "10"), "direction"},
		{"bad amount", with(flags, "post", entity, "debit", "ten"), "amount"},
		{"non-positive amount", with(flags, "post", entity, "debit", "0"), "positive"},
		{"entries without target", with(flags, "entries"), "specify an entity"},
		{"entries half reference", with(flags, "entries", "--ref-id", "x"), "together"},
		{"entries mixed filters", with(flags, "entries", entity, "--ref-id", "x", "--ref-type", "manual"), "cannot be combined"},
		{"unknown driver", []string{"balance", entity, "--driver", "oracle"}, "unknown driver"},
		{"missing config file", []string{"report", "stats", "--config", "/nonexistent/tradefin.yaml"}, "no such file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			require.Error(t, err)
			if tt.want != "" {
				assert.ErrorContains(t, err, tt.want)
			}
		})
	}
}
