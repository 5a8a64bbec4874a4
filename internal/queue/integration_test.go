package queue

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskchain/processor/internal/config"
	"github.com/taskchain/processor/internal/domain"
	"github.com/taskchain/processor/internal/pipeline"
)

func startMiniRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func pollUntil(t *testing.T, timeout time.Duration, f func() bool) error {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		if f() {
			return nil
		}
		if time.Now().After(deadline) {
			return errors.New("timeout")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestConsumerIntegration_SingleAndBatch(t *testing.T) {
	s := startMiniRedis(t)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tasks := pipeline.NewMockTaskStore()
	receipts := pipeline.NewMockReceiptStore()
	mockLedger := pipeline.NewMockLedger("0xint")
	runner := &pipeline.MockTxRunner{Tasks: tasks, Receipts: receipts}
	reconciler := pipeline.NewReconciler(tasks, runner, mockLedger, nil, logger, pipeline.DefaultRetryLimit)

	cfg := config.QueueConfig{
		RedisAddr:   s.Addr(),
		Name:        "taskQueue",
		Concurrency: 4,
	}

	consumer := NewConsumer(cfg, NewHandler(reconciler, logger), logger)
	go func() { _ = consumer.Run() }()
	defer consumer.Shutdown()

	publisher := NewPublisher(cfg, pipeline.DefaultRetryLimit, logger)
	defer publisher.Close()

	single, err := domain.NewTask("Single task", "Goes through create", "user-1")
	require.NoError(t, err)
	tasks.Put(single)

	batchA, err := domain.NewTask("Batch member A", "", "user-2")
	require.NoError(t, err)
	batchB, err := domain.NewTask("Batch member B", "", "user-2")
	require.NoError(t, err)
	tasks.Put(batchA)
	tasks.Put(batchB)

	ctx := context.Background()
	_, err = publisher.EnqueueSingle(ctx, domain.SingleIntent{ID: single.ID})
	require.NoError(t, err)
	_, err = publisher.EnqueueBatch(ctx, domain.BatchIntent{
		TaskIDs: []uuid.UUID{batchA.ID, batchB.ID},
		Status:  domain.TaskStatusCompleted,
	})
	require.NoError(t, err)

	require.NoError(t, pollUntil(t, 5*time.Second, func() bool {
		if stored := tasks.Get(single.ID); stored == nil || stored.Status != domain.TaskStatusConfirmed {
			return false
		}
		if stored := tasks.Get(batchA.ID); stored == nil || stored.Status != domain.TaskStatusConfirmed {
			return false
		}
		if stored := tasks.Get(batchB.ID); stored == nil || stored.Status != domain.TaskStatusConfirmed {
			return false
		}
		return true
	}))

	// One receipt for the single create, one for the batch update.
	assert.Len(t, receipts.Recorded(), 2)
	assert.ElementsMatch(t, []string{"create", "batchUpdate"}, mockLedger.Calls())
}

func TestConsumerIntegration_MalformedMessageIsDropped(t *testing.T) {
	s := startMiniRedis(t)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tasks := pipeline.NewMockTaskStore()
	receipts := pipeline.NewMockReceiptStore()
	mockLedger := pipeline.NewMockLedger("0xint")
	runner := &pipeline.MockTxRunner{Tasks: tasks, Receipts: receipts}
	reconciler := pipeline.NewReconciler(tasks, runner, mockLedger, nil, logger, pipeline.DefaultRetryLimit)

	cfg := config.QueueConfig{
		RedisAddr:   s.Addr(),
		Name:        "taskQueue",
		Concurrency: 2,
	}

	handler := NewHandler(reconciler, logger)
	consumer := NewConsumer(cfg, handler, logger)
	go func() { _ = consumer.Run() }()
	defer consumer.Shutdown()

	publisher := NewPublisher(cfg, pipeline.DefaultRetryLimit, logger)
	defer publisher.Close()

	// A healthy intent enqueued after the broken one still gets processed,
	// which shows the malformed message did not wedge the queue.
	task, err := domain.NewTask("Healthy task", "", "user-3")
	require.NoError(t, err)
	tasks.Put(task)

	ctx := context.Background()
	_, err = publisher.EnqueueSingle(ctx, domain.SingleIntent{ID: uuid.New()})
	require.NoError(t, err)
	_, err = publisher.EnqueueSingle(ctx, domain.SingleIntent{ID: task.ID})
	require.NoError(t, err)

	require.NoError(t, pollUntil(t, 5*time.Second, func() bool {
		stored := tasks.Get(task.ID)
		return stored != nil && stored.Status == domain.TaskStatusConfirmed
	}))
}
