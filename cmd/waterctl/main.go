// Command waterctl drives the waterflow store from the terminal: browsing
// products, managing the cart, checking out, tracking deliveries and the
// operator commands.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joao-fontenele/waterflow/internal/config"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	if err := config.LoadEnvFile(""); err != nil {
		logger.Error("failed to load env file", "error", err)
		os.Exit(1)
	}

	if err := run(context.Background(), os.Args[1:], os.Stdout, logger); err != nil {
		fmt.Fprintln(os.Stderr, "waterctl:", err)
		os.Exit(1)
	}
}
