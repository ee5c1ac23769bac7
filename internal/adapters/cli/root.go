package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"einvoice-bridge/internal/app"
	"einvoice-bridge/internal/config"
	"einvoice-bridge/internal/core"
	"einvoice-bridge/internal/db"
	"einvoice-bridge/internal/firs"
	"einvoice-bridge/internal/logger"
	"einvoice-bridge/internal/sage"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "einvoiced",
	Short: "Sage 50 to Nigeria e-invoicing bridge",
	Long: `einvoiced reconciles sales transactions from a Sage 50 company file
into a local tracking store and submits them to the Nigeria e-invoicing
portal (FIRS). Posted invoices get a printable PDF receipt with the
portal's QR payload embedded.`,
	Version: version,
}

func Execute() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(receiptCmd)
	rootCmd.AddCommand(resourcesCmd)
	rootCmd.AddCommand(paymentCmd)
}

// buildService wires the full application stack for one command run.
// The returned cleanup closes the database pool and the ODBC handle.
func buildService(ctx context.Context) (app.ApplicationService, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if err := logger.Setup(cfg.GetLoggerConfig()); err != nil {
		return nil, nil, fmt.Errorf("logger setup failed: %w", err)
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := db.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}

	var src *sage.Source
	var reader *sage.Reader
	if cfg.SageConn != "" {
		src, err = sage.Open(cfg.SageConn)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		reader = sage.NewReader(src)
	}

	client := firs.NewClient(cfg.APIBaseURL, cfg.ParticipantID, cfg.APIKey)
	svc := app.NewAppService(core.NewStore(pool), reader, client, cfg)

	cleanup := func() {
		pool.Close()
		if src != nil {
			_ = src.Close()
		}
	}
	return svc, cleanup, nil
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
