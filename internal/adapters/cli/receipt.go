package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
)

var receiptOutDir string

var receiptCmd = &cobra.Command{
	Use:   "receipt <trx-number>",
	Short: "Render the PDF receipt for a tracked invoice",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		trx, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid transaction number %q", args[0])
		}

		svc, cleanup, err := buildService(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		filename, data, err := svc.Receipt(cmd.Context(), trx)
		if err != nil {
			return err
		}

		path := filepath.Join(receiptOutDir, filename)
		if err := os.WriteFile(path, data, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		fmt.Println(path)
		return nil
	},
}

func init() {
	receiptCmd.Flags().StringVar(&receiptOutDir, "out", ".", "output directory")
}
