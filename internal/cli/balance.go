package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xraph/tradefin"
	"github.com/xraph/tradefin/id"
	"github.com/xraph/tradefin/internal/config"
	"github.com/xraph/tradefin/internal/tui"
	"github.com/xraph/tradefin/types"
)

type balanceJSON struct {
	Entity  id.EntityID `json:"entity"`
	Debits  types.Money `json:"debits"`
	Credits types.Money `json:"credits"`
	Balance types.Money `json:"balance"`
	Entries int         `json:"entries"`
}

func newBalanceCmd(g *globals) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "balance <entity-id>",
		Short: "Show an entity's debits, credits and net balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entity, err := id.ParseEntityID(args[0])
			if err != nil {
				return fmt.Errorf("entity: %w", err)
			}

			return g.withEngine(cmd, func(ctx context.Context, eng *tradefin.Engine, cfg config.Config) error {
				totals, err := eng.GetTotals(ctx, entity)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, balanceJSON{
						Entity:  entity,
						Debits:  totals.Debits,
						Credits: totals.Credits,
						Balance: totals.Balance(),
						Entries: totals.Count,
					})
				}
				fmt.Fprint(cmd.OutOrStdout(), tui.RenderBalance(entity, totals, cfg.Currency))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
