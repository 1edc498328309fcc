package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xraph/tradefin"
	"github.com/xraph/tradefin/id"
	"github.com/xraph/tradefin/internal/config"
	"github.com/xraph/tradefin/internal/tui"
	"github.com/xraph/tradefin/journal"
)

func newEntriesCmd(g *globals) *cobra.Command {
	var (
		refID      string
		refType    string
		limit      int
		offset     int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "entries [entity-id]",
		Short: "List journal entries for an entity or a reference",
		Long: "List journal entries, newest first, either for one entity or for every entry " +
			"sharing a reference (--ref-id and --ref-type).",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			byRef := refID != "" || refType != ""
			switch {
			case len(args) == 0 && !byRef:
				return errors.New("specify an entity id or --ref-id and --ref-type")
			case len(args) == 1 && byRef:
				return errors.New("an entity id cannot be combined with a reference filter")
			case byRef && (refID == "" || refType == ""):
				return errors.New("--ref-id and --ref-type must be given together")
			}

			var entity id.EntityID
			if len(args) == 1 {
				var err error
				if entity, err = id.ParseEntityID(args[0]); err != nil {
					return fmt.Errorf("entity: %w", err)
				}
			}

			return g.withEngine(cmd, func(ctx context.Context, eng *tradefin.Engine, cfg config.Config) error {
				var (
					entries []*journal.Entry
					err     error
				)
				if byRef {
					entries, err = eng.ListLedgerEntriesByReference(ctx, refID, journal.RefType(refType), limit, offset)
				} else {
					entries, err = eng.ListLedgerEntries(ctx, entity, limit, offset)
				}
				if err != nil {
					return err
				}

				if jsonOutput {
					if entries == nil {
						entries = []*journal.Entry{}
					}
					return writeJSON(cmd, entries)
				}
				fmt.Fprint(cmd.OutOrStdout(), tui.RenderEntries(entries, cfg.Currency))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&refID, "ref-id", "", "Reference id (invoice, loan or manual id)")
	cmd.Flags().StringVar(&refType, "ref-type", "", "Reference type: invoice, loan or manual")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum entries to return (0 uses the engine page size)")
	cmd.Flags().IntVar(&offset, "offset", 0, "Entries to skip")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
