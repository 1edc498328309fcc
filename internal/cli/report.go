package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xraph/tradefin"
	"github.com/xraph/tradefin/internal/config"
	"github.com/xraph/tradefin/internal/tui"
)

func newReportCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Portfolio reports",
	}
	cmd.AddCommand(newRiskReportCmd(g))
	cmd.AddCommand(newStatsReportCmd(g))
	return cmd
}

func newRiskReportCmd(g *globals) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "risk",
		Short: "Bucket every loan application by risk level",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withEngine(cmd, func(ctx context.Context, eng *tradefin.Engine, cfg config.Config) error {
				report, err := eng.RiskReport(ctx)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, report)
				}
				fmt.Fprint(cmd.OutOrStdout(), tui.RenderRiskReport(report, cfg.Currency))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newStatsReportCmd(g *globals) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Count orders, invoices, applications and loans by status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withEngine(cmd, func(ctx context.Context, eng *tradefin.Engine, _ config.Config) error {
				stats, err := eng.Stats(ctx)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, stats)
				}
				fmt.Fprint(cmd.OutOrStdout(), tui.RenderStats(stats))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
