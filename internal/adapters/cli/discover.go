package cli

import (
	"github.com/spf13/cobra"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "List the live columns of the Sage tables the bridge reads",
	Long: `Connects to the Sage 50 company file and prints the actual column
names of the journal, catalog, customer, and address tables. Useful
when a sync or submission logs a column gap on an unfamiliar install.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, cleanup, err := buildService(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		schema, err := svc.DiscoverSchema(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(schema)
	},
}
