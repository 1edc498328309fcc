package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xraph/tradefin"
	"github.com/xraph/tradefin/id"
	"github.com/xraph/tradefin/internal/config"
	"github.com/xraph/tradefin/internal/tui"
	"github.com/xraph/tradefin/journal"
	"github.com/xraph/tradefin/types"
)

func newPostCmd(g *globals) *cobra.Command {
	var (
		description string
		refID       string
		refType     string
		jsonOutput  bool
	)

	cmd := &cobra.Command{
		Use:   "post <entity-id> <debit|credit> <amount>",
		Short: "Record a single manual journal entry",
		Long: "Record one journal entry outside the order and loan workflows. Manual entries " +
			"are not paired, so the books only stay balanced if a matching entry is posted.",
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			entity, err := id.ParseEntityID(args[0])
			if err != nil {
				return fmt.Errorf("entity: %w", err)
			}
			direction := journal.Direction(strings.ToLower(args[1]))
			amount, err := types.Parse(args[2])
			if err != nil {
				return fmt.Errorf("amount: %w", err)
			}

			var ref *journal.Reference
			if refID != "" {
				if refType == "" {
					refType = string(journal.RefManual)
				}
				ref = &journal.Reference{ID: refID, Type: journal.RefType(refType)}
			}

			return g.withEngine(cmd, func(ctx context.Context, eng *tradefin.Engine, cfg config.Config) error {
				entry, err := eng.RecordLedgerEntry(ctx, entity, direction, amount, description, ref)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, entry)
				}
				fmt.Fprint(cmd.OutOrStdout(), tui.RenderEntry(entry, cfg.Currency))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "Entry description")
	cmd.Flags().StringVar(&refID, "ref-id", "", "Reference id")
	cmd.Flags().StringVar(&refType, "ref-type", "", "Reference type (default manual when --ref-id is set)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
