package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/joao-fontenele/waterflow/internal/config"
	"github.com/joao-fontenele/waterflow/internal/gateway"
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
		logger.Error("gateway failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	ordersServiceURL, err := config.Require("ORDERS_SERVICE_URL")
	if err != nil {
		return err
	}

	catalogServiceURL, err := config.Require("CATALOG_SERVICE_URL")
	if err != nil {
		return err
	}

	metricsHandler, shutdownTelemetry, err := telemetry.Setup(ctx, "gateway", version, config.String("OTEL_EXPORTER_OTLP_ENDPOINT", ""))
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTelemetry(ctx) }()

	httpClient := &http.Client{
		Timeout:   config.Duration("REMOTE_TIMEOUT", 10*time.Second),
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	handler := gateway.NewHandler(
		gateway.NewServiceProxy(ordersServiceURL, httpClient),
		gateway.NewServiceProxy(catalogServiceURL, httpClient),
		logger,
	)

	api := http.NewServeMux()
	for _, pattern := range []string{
		"GET /products",
		"GET /products/{id}",
	} {
		api.HandleFunc(pattern, telemetry.WithHTTPRoute(handler.HandleCatalog))
	}
	for _, pattern := range []string{
		"GET /cart",
		"POST /cart/items",
		"DELETE /cart/items/{productId}",
		"DELETE /cart",
		"POST /deliveries",
		"GET /deliveries",
		"GET /deliveries/{id}",
		"GET /deliveries/{id}/events",
		"PATCH /deliveries/{id}/status",
		"POST /deliveries/{id}/advance",
	} {
		api.HandleFunc(pattern, telemetry.WithHTTPRoute(handler.HandleOrders))
	}

	limiter := gateway.NewRateLimiter(
		config.Float("RATE_LIMIT_RPS", 20),
		config.Int("RATE_LIMIT_BURST", 40),
		logger,
	)

	mux := http.NewServeMux()
	mux.Handle("/", limiter.Middleware(api))
	mux.Handle("GET /metrics", metricsHandler)
	mux.HandleFunc("GET /healthz", server.HandleHealth)

	return server.Run(ctx, logger, "gateway", ":"+config.String("PORT", "8080"), mux)
}
