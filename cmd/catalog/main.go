package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	_ "github.com/lib/pq"

	"github.com/joao-fontenele/waterflow/internal/catalog"
	"github.com/joao-fontenele/waterflow/internal/config"
	"github.com/joao-fontenele/waterflow/internal/server"
	"github.com/joao-fontenele/waterflow/internal/telemetry"
)

const version = "0.1.0"

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if err := config.LoadEnvFile(""); err != nil {
		logger.Error("failed to load env file", "error", err)
		os.Exit(1)
	}

	if err := run(context.Background(), logger); err != nil {
		logger.Error("catalog service failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	postgresURL, err := config.Require("POSTGRES_URL")
	if err != nil {
		return err
	}

	metricsHandler, shutdownTelemetry, err := telemetry.Setup(ctx, "catalog", version, config.String("OTEL_EXPORTER_OTLP_ENDPOINT", ""))
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTelemetry(ctx) }()

	db, err := telemetry.OpenPostgres(postgresURL, "waterflow")
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	handler := catalog.NewHandler(catalog.NewProductRepository(db), logger)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("GET /metrics", metricsHandler)
	mux.HandleFunc("GET /healthz", server.HandleHealth)

	return server.Run(ctx, logger, "catalog", ":"+config.String("PORT", "8082"), mux)
}
