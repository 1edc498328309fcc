// Package cli implements the tradefin operator command line.
package cli

import "github.com/spf13/cobra"

var (
	version = "dev"
	commit  = "none"
)

// globals carries the persistent flags shared by every command.
type globals struct {
	configPath string
	driver     string
	dsn        string
	currency   string
}

func newRootCmd() *cobra.Command {
	g := &globals{}

	cmd := &cobra.Command{
		Use:   "tradefin",
		Short: "Operate a tradefin supply-chain finance ledger",
		Long: "tradefin inspects and maintains the double-entry journal behind orders, invoices " +
			"and invoice-backed loans.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "Config file (default tradefin.yaml if present)")
	cmd.PersistentFlags().StringVar(&g.driver, "driver", "", "Store driver: memory, sqlite, postgres or mongo")
	cmd.PersistentFlags().StringVar(&g.dsn, "dsn", "", "Store connection string")
	cmd.PersistentFlags().StringVar(&g.currency, "currency", "", "Display currency (ISO 4217)")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newMigrateCmd(g))
	cmd.AddCommand(newBalanceCmd(g))
	cmd.AddCommand(newEntriesCmd(g))
	cmd.AddCommand(newPostCmd(g))
	cmd.AddCommand(newReportCmd(g))
	return cmd
}

// NewRootCmdForTest returns the root command for testing.
func NewRootCmdForTest() *cobra.Command {
	return newRootCmd()
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}
