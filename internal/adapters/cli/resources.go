package cli

import (
	"fmt"
	"os"

	"einvoice-bridge/internal/firs"

	"github.com/spf13/cobra"
)

var resourcesOut string

var resourcesCmd = &cobra.Command{
	Use:   "resources <all|hs-codes|services-codes|currencies|countries>",
	Short: "Fetch portal reference data",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind := firs.ResourceKind(args[0])
		switch kind {
		case firs.ResourceAll, firs.ResourceHSCodes, firs.ResourceServiceCodes,
			firs.ResourceCurrencies, firs.ResourceCountries:
		default:
			return fmt.Errorf("unknown resource kind %q", args[0])
		}

		svc, cleanup, err := buildService(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		data, err := svc.Resources(cmd.Context(), kind)
		if err != nil {
			return err
		}

		if resourcesOut != "" {
			if err := os.WriteFile(resourcesOut, data, 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", resourcesOut, err)
			}
			fmt.Println(resourcesOut)
			return nil
		}
		fmt.Println(string(data))
		return nil
	},
}

func init() {
	resourcesCmd.Flags().StringVar(&resourcesOut, "out", "", "write response to file instead of stdout")
}
