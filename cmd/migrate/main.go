package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"

	"vendorkyc/internal/platform/config"
	"vendorkyc/internal/platform/logger"
	"vendorkyc/internal/platform/postgres"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) < 1 {
		return errors.New("usage: migrate [up|down|version|force VERSION]")
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg.Server.LogLevel)
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL is required")
	}

	db, err := postgres.Open(context.Background(), cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	m, err := postgres.NewMigrator(db)
	if err != nil {
		return err
	}

	switch args[0] {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migration failed: %w", err)
		}
		log.Info("migrations applied")
	case "down":
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migration rollback failed: %w", err)
		}
		log.Info("migrations rolled back")
	case "version":
		version, dirty, err := m.Version()
		if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
			return fmt.Errorf("read version: %w", err)
		}
		log.Info("schema version", slog.Uint64("version", uint64(version)), slog.Bool("dirty", dirty))
	case "force":
		if len(args) < 2 {
			return errors.New("usage: migrate force VERSION")
		}
		version, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[1], err)
		}
		if err := m.Force(version); err != nil {
			return fmt.Errorf("force migration failed: %w", err)
		}
		log.Info("forced schema version", "version", version)
	default:
		return fmt.Errorf("unknown command: %s", args[0])
	}
	return nil
}
