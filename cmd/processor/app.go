package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taskchain/processor/internal/config"
	"github.com/taskchain/processor/internal/events"
	"github.com/taskchain/processor/internal/ledger"
	"github.com/taskchain/processor/internal/pipeline"
	"github.com/taskchain/processor/internal/platform/postgres"
	"github.com/taskchain/processor/internal/queue"
	"github.com/taskchain/processor/internal/store"
)

// application holds all the shared application dependencies to simplify
// management and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	// Stores (using interfaces for proper abstraction)
	taskStore    store.TaskStore
	receiptStore store.ReceiptStore
	txRunner     store.TxRunner

	// Ledger authority client
	ledgerClient *ledger.HTTPClient

	// Event system
	eventEmitter events.EventEmitter

	// Pipeline and queue
	reconciler *pipeline.Reconciler
	consumer   *queue.Consumer

	// redisClient is held only for the readiness probe; the queue library
	// manages its own connections.
	redisClient *redis.Client
}

// newApplication creates a new application instance with all dependencies
// initialized. The database connection must already be established and
// migrated.
func newApplication(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	db *sql.DB,
) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	app.taskStore = postgres.NewPostgresTaskStore(db)
	app.receiptStore = postgres.NewPostgresReceiptStore(db)
	app.txRunner = store.NewSQLTxRunner(db, app.taskStore, app.receiptStore)

	var err error
	app.ledgerClient, err = ledger.NewHTTPClient(cfg.Ledger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ledger client: %w", err)
	}
	logger.Info("Ledger client initialized", "base_url", cfg.Ledger.BaseURL)

	emitter := events.NewInMemoryEventEmitter(logger)
	emitter.RegisterHandler(events.NewLoggingHandler(logger))
	app.eventEmitter = emitter

	app.reconciler = pipeline.NewReconciler(
		app.taskStore,
		app.txRunner,
		app.ledgerClient,
		app.eventEmitter,
		logger,
		cfg.Pipeline.RetryLimit,
	)

	handler := queue.NewHandler(app.reconciler, logger)
	app.consumer = queue.NewConsumer(cfg.Queue, handler, logger)

	app.redisClient = redis.NewClient(&redis.Options{Addr: cfg.Queue.RedisAddr})

	logger.Info("Application initialized successfully")
	return app, nil
}

// Run starts the queue consumer and the operational HTTP server, then blocks
// until a shutdown signal arrives. In-flight messages are drained before the
// connections are closed.
func (app *application) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	consumerErr := make(chan error, 1)
	go func() {
		consumerErr <- app.consumer.Run()
	}()

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", app.config.Server.Port),
		Handler: app.setupRouter(),
	}

	serverErr := make(chan error, 1)
	go func() {
		app.logger.Info("Starting operational server", "port", app.config.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-shutdownCh:
		app.logger.Info("Shutdown signal received")
	case err := <-consumerErr:
		if err != nil {
			return fmt.Errorf("queue consumer failed: %w", err)
		}
		app.logger.Info("Queue consumer stopped")
	case err := <-serverErr:
		return fmt.Errorf("operational server failed: %w", err)
	case <-runCtx.Done():
		app.logger.Info("Run context canceled, shutting down")
	}

	// Drain in-flight messages before anything else goes away.
	app.consumer.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		app.logger.Error("Operational server shutdown failed", "error", err)
	}

	app.cleanup()
	app.logger.Info("Processor shutdown completed")
	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.redisClient != nil {
		if err := app.redisClient.Close(); err != nil {
			app.logger.Error("Error closing redis connection", "error", err)
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}
}
