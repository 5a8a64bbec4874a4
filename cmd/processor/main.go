// Package main implements the entry point for the task confirmation
// processor, which consumes task mutation intents from the queue, records
// them on the ledger, and reconciles the task store with the outcomes.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"

	"github.com/taskchain/processor/internal/config"
	"github.com/taskchain/processor/internal/platform/logger"
)

func main() {
	app, err := initializeApp(context.Background())
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	if err := app.Run(context.Background()); err != nil {
		app.logger.Error("Processor exited with error", "error", err)
		app.cleanup()
		log.Fatalf("Processor failed: %v", err)
	}
}

// initializeApp loads configuration, sets up logging and the database, runs
// migrations, and wires the application components.
func initializeApp(ctx context.Context) (*application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	slog.Info("Processor configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"queue", cfg.Queue.Name,
		"concurrency", cfg.Queue.Concurrency,
		"retry_limit", cfg.Pipeline.RetryLimit)

	db, err := setupDatabase(cfg, appLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to set up database: %w", err)
	}

	if err := runMigrations(db, appLogger); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			appLogger.Error("Error closing database after migration failure", "error", closeErr)
		}
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	app, err := newApplication(ctx, cfg, appLogger, db)
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			appLogger.Error("Error closing database after init failure", "error", closeErr)
		}
		return nil, err
	}
	return app, nil
}
