package cli

import (
	"github.com/spf13/cobra"
)

var (
	syncFrom string
	syncTo   string
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile Sage sales headers into the local store",
	Long: `Reads sales transaction headers from the Sage 50 company file and
reconciles them into the local tracking store. New transactions are
created as pending; known ones get their ledger fields refreshed
without touching submission state.

Without --from/--to the current calendar month is synced.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, cleanup, err := buildService(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		result, err := svc.SyncInvoices(cmd.Context(), syncFrom, syncTo)
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

func init() {
	syncCmd.Flags().StringVar(&syncFrom, "from", "", "start date (YYYY-MM-DD)")
	syncCmd.Flags().StringVar(&syncTo, "to", "", "end date (YYYY-MM-DD)")
}
