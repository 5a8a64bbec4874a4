// Command enqueue publishes a task mutation intent onto the processor's
// queue. It exists for local development and operational backfills; the
// producing services publish through the same queue package.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/taskchain/processor/internal/config"
	"github.com/taskchain/processor/internal/domain"
	"github.com/taskchain/processor/internal/platform/logger"
	"github.com/taskchain/processor/internal/queue"
)

func main() {
	var (
		taskID      = flag.String("task-id", "", "task ID for a single intent")
		title       = flag.String("title", "", "new title (optional)")
		description = flag.String("description", "", "new description (optional)")
		userID      = flag.String("user-id", "", "owning user ID (optional)")
		status      = flag.String("status", "", "target status (optional)")
		operation   = flag.String("operation", "", "operation override, e.g. delete")
		batchIDs    = flag.String("batch-ids", "", "comma-separated task IDs for a batch intent")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	appLogger, err := logger.Setup(cfg.Server)
	if err != nil {
		log.Fatalf("Failed to set up logger: %v", err)
	}

	publisher := queue.NewPublisher(cfg.Queue, cfg.Pipeline.RetryLimit, appLogger)
	defer func() {
		if err := publisher.Close(); err != nil {
			appLogger.Error("Error closing publisher", "error", err)
		}
	}()

	ctx := context.Background()
	switch {
	case *batchIDs != "":
		err = enqueueBatch(ctx, publisher, *batchIDs, *status)
	case *taskID != "":
		err = enqueueSingle(ctx, publisher, *taskID, *title, *description, *userID, *status, *operation)
	default:
		fmt.Fprintln(os.Stderr, "either -task-id or -batch-ids is required")
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("Failed to enqueue intent: %v", err)
	}
}

func enqueueSingle(
	ctx context.Context,
	publisher *queue.Publisher,
	rawID, title, description, userID, status, operation string,
) error {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return fmt.Errorf("invalid task ID %q: %w", rawID, err)
	}
	info, err := publisher.EnqueueSingle(ctx, domain.SingleIntent{
		ID:          id,
		Title:       title,
		Description: description,
		UserID:      userID,
		Status:      domain.TaskStatus(status),
		Operation:   operation,
	})
	if err != nil {
		return err
	}
	fmt.Printf("enqueued single intent: message %s on queue %s\n", info.ID, info.Queue)
	return nil
}

func enqueueBatch(ctx context.Context, publisher *queue.Publisher, rawIDs, status string) error {
	if status == "" {
		return fmt.Errorf("batch intents require -status")
	}
	var ids []uuid.UUID
	for _, raw := range strings.Split(rawIDs, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid task ID %q: %w", raw, err)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return fmt.Errorf("no task IDs in -batch-ids")
	}
	info, err := publisher.EnqueueBatch(ctx, domain.BatchIntent{
		TaskIDs: ids,
		Status:  domain.TaskStatus(status),
	})
	if err != nil {
		return err
	}
	fmt.Printf("enqueued batch intent for %d tasks: message %s on queue %s\n", len(ids), info.ID, info.Queue)
	return nil
}
