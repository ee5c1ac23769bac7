package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	paymentStatus    string
	paymentReference string
)

var paymentCmd = &cobra.Command{
	Use:   "payment <irn>",
	Short: "Update the payment status of a posted invoice on the portal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if paymentStatus == "" {
			return fmt.Errorf("--status is required")
		}

		svc, cleanup, err := buildService(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		data, err := svc.UpdatePaymentStatus(cmd.Context(), args[0], paymentStatus, paymentReference)
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	},
}

func init() {
	paymentCmd.Flags().StringVar(&paymentStatus, "status", "", "payment status (e.g. PAID)")
	paymentCmd.Flags().StringVar(&paymentReference, "reference", "", "payment reference")
}
