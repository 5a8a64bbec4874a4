package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/taskchain/processor/internal/config"
	"github.com/taskchain/processor/internal/domain"
)

// Publisher enqueues mutation intents onto the Redis-backed queue. The
// processor consumes its own queue in production; the publisher exists for
// the producing services and the injection CLI.
type Publisher struct {
	client     *asynq.Client
	queue      string
	retryLimit int
	logger     *slog.Logger
}

// NewPublisher creates a Publisher bound to the configured queue. The retry
// limit caps how many times the broker redelivers a message before parking
// it, matching the pipeline's own retry budget.
func NewPublisher(cfg config.QueueConfig, retryLimit int, logger *slog.Logger) *Publisher {
	return &Publisher{
		client:     asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr}),
		queue:      cfg.Name,
		retryLimit: retryLimit,
		logger:     logger.With("component", "queue_publisher"),
	}
}

// EnqueueSingle publishes a single-task mutation intent.
func (p *Publisher) EnqueueSingle(ctx context.Context, intent domain.SingleIntent) (*asynq.TaskInfo, error) {
	body, err := domain.EncodeSingleIntent(intent)
	if err != nil {
		return nil, fmt.Errorf("encoding single intent: %w", err)
	}
	return p.enqueue(ctx, body, "task_id", intent.ID.String())
}

// EnqueueBatch publishes a batch mutation intent.
func (p *Publisher) EnqueueBatch(ctx context.Context, intent domain.BatchIntent) (*asynq.TaskInfo, error) {
	body, err := domain.EncodeBatchIntent(intent)
	if err != nil {
		return nil, fmt.Errorf("encoding batch intent: %w", err)
	}
	return p.enqueue(ctx, body, "batch_size", len(intent.TaskIDs))
}

func (p *Publisher) enqueue(ctx context.Context, body []byte, key string, value any) (*asynq.TaskInfo, error) {
	task := asynq.NewTask(TaskTypeMutation, body)
	info, err := p.client.EnqueueContext(ctx, task,
		asynq.Queue(p.queue),
		asynq.MaxRetry(p.retryLimit),
	)
	if err != nil {
		return nil, fmt.Errorf("enqueueing intent: %w", err)
	}
	p.logger.Info("intent enqueued", "message_id", info.ID, key, value)
	return info, nil
}

// Close releases the underlying Redis connection.
func (p *Publisher) Close() error {
	return p.client.Close()
}
