package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/joao-fontenele/waterflow/internal/config"
	"github.com/joao-fontenele/waterflow/internal/messaging"
	"github.com/joao-fontenele/waterflow/internal/telemetry"
	"github.com/joao-fontenele/waterflow/internal/worker"
)

const (
	version        = "0.1.0"
	defaultTimeout = 10 * time.Second
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if err := config.LoadEnvFile(""); err != nil {
		logger.Error("failed to load env file", "error", err)
		os.Exit(1)
	}

	brokers := config.List("KAFKA_BROKERS")
	if len(brokers) == 0 {
		logger.Error("KAFKA_BROKERS environment variable is required")
		os.Exit(1)
	}

	notifyServiceURL, err := config.Require("NOTIFY_SERVICE_URL")
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "worker", version, config.String("OTEL_EXPORTER_OTLP_ENDPOINT", ""))
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	consumer := messaging.NewConsumer(brokers, messaging.TopicDeliveryEvents, "notification-worker")
	defer func() { _ = consumer.Close() }()

	httpClient := &http.Client{
		Timeout:   config.Duration("REMOTE_TIMEOUT", defaultTimeout),
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	notificationHandler := worker.NewNotificationHandler(notifyServiceURL, httpClient, logger)

	logger.Info("starting notification worker", "brokers", brokers, "topic", messaging.TopicDeliveryEvents)

	if err := consumer.Consume(ctx, notificationHandler.Handle); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("consumer stopped")
			return
		}
		logger.Error("consumer error", "error", err)
		os.Exit(1)
	}
}
