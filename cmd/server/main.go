package main

import (
	"context"
	"net/http"
	"os"

	webAdapter "einvoice-bridge/internal/adapters/web"
	"einvoice-bridge/internal/app"
	"einvoice-bridge/internal/config"
	"einvoice-bridge/internal/core"
	"einvoice-bridge/internal/db"
	"einvoice-bridge/internal/firs"
	"einvoice-bridge/internal/logger"
	"einvoice-bridge/internal/sage"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	log := logger.WithComponent("server")
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	if err := logger.Setup(cfg.GetLoggerConfig()); err != nil {
		log.Fatal().Err(err).Msg("logger")
	}
	log = logger.WithComponent("server")

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("database")
	}
	defer pool.Close()

	if err := db.EnsureSchema(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("schema")
	}

	var reader *sage.Reader
	if cfg.SageConn != "" {
		src, err := sage.Open(cfg.SageConn)
		if err != nil {
			log.Fatal().Err(err).Msg("sage")
		}
		defer src.Close()
		reader = sage.NewReader(src)
	} else {
		log.Warn().Msg("SAGE_ODBC_CONN is not set, sync and submission are disabled")
	}

	client := firs.NewClient(cfg.APIBaseURL, cfg.ParticipantID, cfg.APIKey)
	svc := app.NewAppService(core.NewStore(pool), reader, client, cfg)

	handler := webAdapter.NewHandler(svc, cfg.AllowedOrigins)

	log.Info().Str("port", cfg.ServerPort).Msg("server starting")
	if err := http.ListenAndServe(":"+cfg.ServerPort, handler); err != nil {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}
