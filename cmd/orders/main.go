package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	_ "github.com/lib/pq"

	"github.com/joao-fontenele/waterflow/internal/auth"
	"github.com/joao-fontenele/waterflow/internal/config"
	"github.com/joao-fontenele/waterflow/internal/messaging"
	"github.com/joao-fontenele/waterflow/internal/orders"
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
		logger.Error("orders service failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	postgresURL, err := config.Require("POSTGRES_URL")
	if err != nil {
		return err
	}

	jwtSecret, err := config.Require("JWT_SECRET")
	if err != nil {
		return err
	}

	metricsHandler, shutdownTelemetry, err := telemetry.Setup(ctx, "orders", version, config.String("OTEL_EXPORTER_OTLP_ENDPOINT", ""))
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTelemetry(ctx) }()

	db, err := telemetry.OpenPostgres(postgresURL, "waterflow")
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	var publisher orders.Publisher
	if brokers := config.List("KAFKA_BROKERS"); len(brokers) > 0 {
		producer := messaging.NewProducer(brokers, messaging.TopicDeliveryEvents)
		defer func() { _ = producer.Close() }()
		publisher = producer
	} else {
		logger.Warn("KAFKA_BROKERS not set, delivery events will not be published")
	}

	lifecycle := orders.NewLifecycle(orders.NewDeliveryRepository(db), publisher, logger)
	handler := orders.NewHandler(orders.NewCartRepository(db), lifecycle, logger)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, auth.NewVerifier(jwtSecret))
	mux.Handle("GET /metrics", metricsHandler)
	mux.HandleFunc("GET /healthz", server.HandleHealth)

	return server.Run(ctx, logger, "orders", ":"+config.String("PORT", "8081"), mux)
}
