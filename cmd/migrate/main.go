package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/joao-fontenele/waterflow/internal/config"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	if err := config.LoadEnvFile(""); err != nil {
		logger.Error("failed to load env file", "error", err)
		os.Exit(1)
	}

	path := flag.String("path", config.String("MIGRATIONS_PATH", "file://migrations"), "migrations source URL")
	flag.Parse()
	args := flag.Args()

	if len(args) < 1 {
		logger.Error("usage: migrate [-path url] <up|down|version|force N>")
		os.Exit(1)
	}

	postgresURL, err := config.Require("POSTGRES_URL")
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	m, err := migrate.New(*path, postgresURL)
	if err != nil {
		logger.Error("failed to create migrate instance", "error", err)
		os.Exit(1)
	}
	defer func() { _, _ = m.Close() }()

	if err := execute(logger, m, args); err != nil {
		logger.Error("migration failed", "command", args[0], "error", err)
		os.Exit(1)
	}
}

func execute(logger *slog.Logger, m *migrate.Migrate, args []string) error {
	switch args[0] {
	case "up":
		err := m.Up()
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("no pending migrations")
			return nil
		}
		if err != nil {
			return err
		}
		logger.Info("migrations applied successfully")

	case "down":
		err := m.Steps(-1)
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("no migrations to rollback")
			return nil
		}
		if err != nil {
			return err
		}
		logger.Info("migration rolled back successfully")

	case "version":
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			logger.Info("no migrations applied yet")
			return nil
		}
		if err != nil {
			return err
		}
		logger.Info("current migration version", "version", version, "dirty", dirty)

	case "force":
		if len(args) < 2 {
			return errors.New("force requires a version")
		}
		version, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[1], err)
		}
		if err := m.Force(version); err != nil {
			return err
		}
		logger.Info("migration version forced", "version", version)

	default:
		return fmt.Errorf("unknown command %q", args[0])
	}

	return nil
}
