package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/joao-fontenele/waterflow/internal/config"
	"github.com/joao-fontenele/waterflow/internal/notify"
	"github.com/joao-fontenele/waterflow/internal/server"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if err := config.LoadEnvFile(""); err != nil {
		logger.Error("failed to load env file", "error", err)
		os.Exit(1)
	}

	handler := notify.NewHandler(logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /send", handler.HandleSend)
	mux.HandleFunc("GET /sent", handler.HandleRecent)
	mux.HandleFunc("GET /healthz", server.HandleHealth)

	if err := server.Run(context.Background(), logger, "notify", ":"+config.String("PORT", "8084"), mux); err != nil {
		logger.Error("notify service failed", "error", err)
		os.Exit(1)
	}
}
