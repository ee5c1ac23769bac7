package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var submitAllPending bool

var submitCmd = &cobra.Command{
	Use:   "submit [trx-number]",
	Short: "Submit invoices to the e-invoicing portal",
	Long: `Submits one invoice by transaction number, or every pending invoice
with --all-pending. Already-posted invoices are skipped with their
existing IRN; failed ones may be retried.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if submitAllPending == (len(args) == 1) {
			return fmt.Errorf("provide either a transaction number or --all-pending")
		}

		svc, cleanup, err := buildService(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		if submitAllPending {
			result, err := svc.SubmitPending(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(result)
		}

		trx, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid transaction number %q", args[0])
		}
		result, err := svc.SubmitInvoice(cmd.Context(), trx)
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

func init() {
	submitCmd.Flags().BoolVar(&submitAllPending, "all-pending", false, "submit every pending invoice")
}
