// Package main is the entry point for the schema migration tool.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/onnwee/highlights/internal/config"
	"github.com/onnwee/highlights/internal/db"
	"github.com/onnwee/highlights/internal/middleware"
	"github.com/onnwee/highlights/migrations"
)

func main() {
	help := flag.Bool("help", false, "display help message")
	configPath := flag.String("config", os.Getenv("HIGHLIGHTS_CONFIG"), "path to an optional YAML config file")
	timeout := flag.Duration("timeout", 5*time.Minute, "maximum time to spend applying migrations")
	flag.Parse()

	if *help {
		fmt.Println("Highlights Schema Migrator")
		fmt.Println()
		fmt.Println("Usage: migrate [options]")
		fmt.Println()
		fmt.Println("Applies pending SQL migrations to DATABASE_URL.")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	// Only the database settings matter here, so validation errors for
	// other keys are ignored.
	cfg, errs := config.Load(*configPath)
	if cfg == nil {
		for _, err := range errs {
			fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		}
		os.Exit(1)
	}
	logger := middleware.NewLogger(cfg.Env)

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, err := db.Open(ctx, cfg.DatabaseURL, db.DefaultOptions())
	if err != nil {
		logger.Error("failed to connect", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	applied, err := db.Migrate(ctx, conn, migrations.FS, logger)
	if err != nil {
		logger.Error("migration failed", "error", err, "applied", applied)
		conn.Close()
		os.Exit(1)
	}
	logger.Info("migrations complete", "applied", len(applied))
}
