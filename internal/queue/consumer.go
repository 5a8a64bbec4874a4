// Package queue connects the confirmation pipeline to the Redis-backed
// intent queue. The consumer translates handler results into queue
// semantics: nil acknowledges, a plain error requeues with backoff, and a
// permanent failure is acknowledged and dropped via asynq.SkipRetry.
package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/taskchain/processor/internal/config"
	"github.com/taskchain/processor/internal/domain"
	"github.com/taskchain/processor/internal/pipeline"
)

// TaskTypeMutation is the asynq task type carrying a task mutation intent,
// single or batch. Classification happens on the payload, not the type.
const TaskTypeMutation = "task:mutation"

// Handler decodes intent messages and runs them through the reconciler.
// It is registered on the consumer's mux and kept separate so tests can
// drive it without a running server.
type Handler struct {
	reconciler *pipeline.Reconciler
	logger     *slog.Logger

	// retryCount reports how many times the current message has been
	// retried. Overridable in tests; defaults to asynq's task metadata.
	retryCount func(ctx context.Context) (int, bool)
}

// NewHandler creates a Handler around the given reconciler.
func NewHandler(reconciler *pipeline.Reconciler, logger *slog.Logger) *Handler {
	return &Handler{
		reconciler: reconciler,
		logger:     logger.With("component", "queue_handler"),
		retryCount: asynq.GetRetryCount,
	}
}

// ProcessTask implements asynq.Handler.
func (h *Handler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	intent, err := domain.ParseIntent(task.Payload())
	if err != nil {
		// A payload that cannot be classified will never parse on a
		// redelivery either; drop it instead of poisoning the queue.
		h.logger.Error("dropping malformed intent", "error", err)
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	err = h.reconciler.Process(ctx, intent)
	if err == nil {
		return nil
	}

	if pipeline.IsPermanent(err) {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	// Batches carry no per-task retry counter; the delivery count bounds
	// their requeue loop instead.
	if intent.IsBatch() {
		retried, ok := h.retryCount(ctx)
		deliveries := retried + 1
		if ok && deliveries >= h.reconciler.RetryLimit() {
			h.reconciler.GiveUpBatch(ctx, intent.Batch, deliveries, err)
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
	}

	return err
}

// Consumer owns the asynq server consuming mutation intents. Connection
// recovery is the queue library's job; the consumer only maps messages to
// the pipeline.
type Consumer struct {
	server  *asynq.Server
	handler *Handler
	logger  *slog.Logger
}

// NewConsumer creates a Consumer for the configured queue.
func NewConsumer(cfg config.QueueConfig, handler *Handler, logger *slog.Logger) *Consumer {
	server := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues:      map[string]int{cfg.Name: 1},
			Logger:      &slogAdapter{logger: logger.With("component", "asynq")},
		},
	)
	return &Consumer{
		server:  server,
		handler: handler,
		logger:  logger.With("component", "queue_consumer"),
	}
}

// Run starts consuming and blocks until Shutdown is called.
func (c *Consumer) Run() error {
	mux := asynq.NewServeMux()
	mux.Handle(TaskTypeMutation, c.handler)
	c.logger.Info("queue consumer starting")
	return c.server.Run(mux)
}

// Shutdown waits for in-flight messages to finish, then stops the server.
func (c *Consumer) Shutdown() {
	c.logger.Info("queue consumer shutting down")
	c.server.Shutdown()
}

// slogAdapter bridges asynq's logger interface onto slog.
type slogAdapter struct {
	logger *slog.Logger
}

func (a *slogAdapter) Debug(args ...interface{}) { a.logger.Debug(fmt.Sprint(args...)) }
func (a *slogAdapter) Info(args ...interface{})  { a.logger.Info(fmt.Sprint(args...)) }
func (a *slogAdapter) Warn(args ...interface{})  { a.logger.Warn(fmt.Sprint(args...)) }
func (a *slogAdapter) Error(args ...interface{}) { a.logger.Error(fmt.Sprint(args...)) }
func (a *slogAdapter) Fatal(args ...interface{}) { a.logger.Error(fmt.Sprint(args...)) }
