// Package tui renders tradefin results for the terminal.
package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/xraph/tradefin"
	"github.com/xraph/tradefin/id"
	"github.com/xraph/tradefin/journal"
	"github.com/xraph/tradefin/risk"
)

var (
	accent  = lipgloss.Color("#0EA5E9") // sky
	fg      = lipgloss.Color("#E5E7EB")
	dim     = lipgloss.Color("#6B7280")
	faint   = lipgloss.Color("#374151")
	success = lipgloss.Color("#22C55E")
	danger  = lipgloss.Color("#EF4444")
	warning = lipgloss.Color("#F59E0B")
)

var (
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 2)

	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(fg)
	headStyle     = lipgloss.NewStyle().Bold(true).Foreground(accent)
	dimStyle      = lipgloss.NewStyle().Foreground(dim)
	debitStyle    = lipgloss.NewStyle().Foreground(success)
	creditStyle   = lipgloss.NewStyle().Foreground(danger)
	separatorLine = lipgloss.NewStyle().Foreground(faint).Render(strings.Repeat("─", 96))

	levelStyles = map[risk.Level]lipgloss.Style{
		risk.LevelLow:    lipgloss.NewStyle().Bold(true).Foreground(success),
		risk.LevelMedium: lipgloss.NewStyle().Bold(true).Foreground(warning),
		risk.LevelHigh:   lipgloss.NewStyle().Bold(true).Foreground(danger),
	}
)

// RenderBalance formats an entity's totals and net balance.
func RenderBalance(entity id.EntityID, totals journal.Totals, currency string) string {
	balance := totals.Balance()
	balanceStyle := debitStyle
	if balance.IsNegative() {
		balanceStyle = creditStyle
	}

	body := titleStyle.Render(entity.String()) + "\n\n" +
		row("Debits", totals.Debits.Format(currency)) +
		row("Credits", totals.Credits.Format(currency)) +
		row("Entries", fmt.Sprintf("%d", totals.Count)) + "\n" +
		padRight("Balance", 10) + balanceStyle.Render(balance.Format(currency))

	return boxStyle.Render(body) + "\n"
}

func row(label, value string) string {
	return dimStyle.Render(padRight(label, 10)) + value + "\n"
}

// RenderEntries formats journal entries as a table in the order given.
func RenderEntries(entries []*journal.Entry, currency string) string {
	if len(entries) == 0 {
		return dimStyle.Render("No entries.") + "\n"
	}

	var b strings.Builder
	b.WriteString(headStyle.Render(fmt.Sprintf("%-20s %-7s %16s  %-36s %s", "TIME", "SIDE", "AMOUNT", "REFERENCE", "DESCRIPTION")))
	b.WriteString("\n" + separatorLine + "\n")

	for _, e := range entries {
		side := debitStyle.Render(padRight(string(e.Direction), 7))
		if e.Direction == journal.Credit {
			side = creditStyle.Render(padRight(string(e.Direction), 7))
		}
		fmt.Fprintf(&b, "%-20s %s %16s  %-36s %s\n",
			e.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
			side,
			e.Amount.Format(currency),
			reference(e.Reference),
			e.Description,
		)
	}
	return b.String()
}

func reference(ref *journal.Reference) string {
	if ref == nil {
		return "-"
	}
	return string(ref.Type) + ":" + ref.ID
}

// RenderEntry formats a single posted entry.
func RenderEntry(e *journal.Entry, currency string) string {
	return fmt.Sprintf("%s %s %s %s on %s\n",
		titleStyle.Render("posted"),
		e.ID,
		e.Direction,
		e.Amount.Format(currency),
		e.EntityID,
	)
}

// RenderRiskReport formats the risk buckets from low to high.
func RenderRiskReport(r *tradefin.RiskReport, currency string) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Risk report"))
	b.WriteString(dimStyle.Render(fmt.Sprintf("  %d applications", r.Total)))
	b.WriteString("\n\n")

	for _, level := range []risk.Level{risk.LevelLow, risk.LevelMedium, risk.LevelHigh} {
		bucket := r.Bucket(level)
		fmt.Fprintf(&b, "  %s %6d  %16s\n",
			levelStyles[level].Render(padRight(string(level), 8)),
			bucket.Count,
			bucket.Requested.Format(currency),
		)
	}
	return b.String()
}

// RenderStats formats record counts per status.
func RenderStats(s *tradefin.Stats) string {
	var b strings.Builder
	section(&b, "Orders", s.TotalOrders(), s.Orders)
	section(&b, "Invoices", s.TotalInvoices(), s.Invoices)
	section(&b, "Applications", total(s.Applications), s.Applications)
	section(&b, "Loans", s.TotalLoans(), s.Loans)
	return b.String()
}

func section[K ~string](b *strings.Builder, name string, n int, counts map[K]int) {
	fmt.Fprintf(b, "%s %s\n", titleStyle.Render(padRight(name, 14)), dimStyle.Render(fmt.Sprintf("%d", n)))

	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(b, "  %s %d\n", padRight(k, 12), counts[K(k)])
	}
}

func total[K comparable](m map[K]int) int {
	n := 0
	for _, v := range m {
		n += v
	}
	return n
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}
