package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/taskchain/processor/internal/domain"
	"github.com/taskchain/processor/internal/events"
	"github.com/taskchain/processor/internal/ledger"
	"github.com/taskchain/processor/internal/store"
)

// DefaultRetryLimit is the number of failed attempts after which a single
// task is marked permanently failed.
const DefaultRetryLimit = 3

// Ledger operation names recorded on receipt audit rows.
const (
	opCreate      = "create"
	opUpdate      = "update"
	opSoftDelete  = "softDelete"
	opBatchUpdate = "batchUpdate"
)

// Reconciler applies mutation intents against the ledger and brings the task
// record store in line with the confirmed outcome. All dependencies are
// injected; the reconciler owns no connection lifecycle.
type Reconciler struct {
	tasks      store.TaskStore
	txRunner   store.TxRunner
	ledger     ledger.Client
	emitter    events.EventEmitter
	logger     *slog.Logger
	retryLimit int
}

// NewReconciler creates a Reconciler. The emitter may be nil, in which case
// no outcome events are published. A non-positive retryLimit falls back to
// DefaultRetryLimit.
func NewReconciler(
	tasks store.TaskStore,
	txRunner store.TxRunner,
	ledgerClient ledger.Client,
	emitter events.EventEmitter,
	logger *slog.Logger,
	retryLimit int,
) *Reconciler {
	if retryLimit <= 0 {
		retryLimit = DefaultRetryLimit
	}
	return &Reconciler{
		tasks:      tasks,
		txRunner:   txRunner,
		ledger:     ledgerClient,
		emitter:    emitter,
		logger:     logger.With("component", "reconciler"),
		retryLimit: retryLimit,
	}
}

// RetryLimit returns the configured retry bound. The queue consumer applies
// the same bound to batch deliveries.
func (r *Reconciler) RetryLimit() int {
	return r.retryLimit
}

// Process reconciles one decoded intent. See the package doc for the
// meaning of the returned error.
func (r *Reconciler) Process(ctx context.Context, intent domain.Intent) error {
	switch {
	case intent.Batch != nil:
		return r.processBatch(ctx, intent.Batch)
	case intent.Single != nil:
		return r.processSingle(ctx, intent.Single)
	default:
		return Permanent(domain.ErrMalformedIntent)
	}
}

// processSingle reconciles a single-task intent.
//
// Routing, first match wins: settled records are a no-op (idempotent
// redelivery guard); a delete operation goes to soft-delete; a status
// mutation of a record already on the ledger goes to update; everything
// else is a first write.
func (r *Reconciler) processSingle(ctx context.Context, intent *domain.SingleIntent) error {
	log := r.logger.With("task_id", intent.ID)

	task, err := r.tasks.GetByID(ctx, intent.ID)
	if err != nil {
		if store.IsNotFoundError(err) {
			// No record to reconcile against; creating a phantom task here
			// would hide a producer bug. Drop the message.
			log.Error("task not found, dropping intent")
			return Permanent(fmt.Errorf("task %s: %w", intent.ID, store.ErrTaskNotFound))
		}
		return fmt.Errorf("loading task %s: %w", intent.ID, err)
	}

	if task.IsSettled() {
		log.Info("task already processed", "status", task.Status)
		return nil
	}

	// Intents may carry only the changed fields; fall back to the stored
	// record for anything omitted so ledger writes stay complete.
	title := fallback(intent.Title, task.Title)
	description := fallback(intent.Description, task.Description)
	userID := fallback(intent.UserID, task.UserID)

	var (
		receipt   *domain.Receipt
		operation string
	)
	switch {
	case intent.Operation == domain.OperationDelete:
		operation = opSoftDelete
		receipt, err = r.ledger.SoftDelete(ctx, intent.ID)
	case intent.Status != "" && task.LedgerTxRef != "":
		operation = opUpdate
		receipt, err = r.ledger.Update(ctx, intent.ID, title, description, intent.Status)
	default:
		operation = opCreate
		status := intent.Status
		if status == "" {
			status = domain.TaskStatusPending
		}
		receipt, err = r.ledger.Create(ctx, intent.ID, title, description, userID, status)
	}

	if err != nil {
		return r.registerSingleFailure(ctx, log, intent.ID, operation, err)
	}

	task.MarkConfirmed(receipt.TxHash)
	if operation == opSoftDelete {
		task.IsDeleted = true
	}
	record := domain.NewReceiptRecord(*receipt, operation, []uuid.UUID{task.ID})

	err = r.txRunner.Run(ctx, func(tasks store.TaskStore, receipts store.ReceiptStore) error {
		if err := tasks.Save(ctx, task); err != nil {
			return err
		}
		return receipts.Record(ctx, record)
	})
	if err != nil {
		// The ledger write confirmed but the local reconcile did not land.
		// Requeue: the redelivery re-runs against the ledger, which is
		// accepted under idempotent-by-retry semantics.
		log.Error("failed to persist confirmation, requeueing",
			"operation", operation,
			"tx_hash", receipt.TxHash,
			"error", err)
		return fmt.Errorf("persisting confirmation for task %s: %w", intent.ID, err)
	}

	log.Info("task confirmed on ledger",
		"operation", operation,
		"tx_hash", receipt.TxHash)
	r.emitConfirmed(ctx, []uuid.UUID{task.ID}, receipt.TxHash)
	return nil
}

// registerSingleFailure re-reads the record, bumps its retry counter, and
// decides between requeue and permanent give-up.
func (r *Reconciler) registerSingleFailure(
	ctx context.Context,
	log *slog.Logger,
	id uuid.UUID,
	operation string,
	cause error,
) error {
	task, err := r.tasks.GetByID(ctx, id)
	if err != nil {
		// The record may have vanished between steps; signal failure
		// conservatively so the redelivery sorts it out.
		log.Warn("could not record ledger failure on task",
			"operation", operation,
			"lookup_error", err,
			"ledger_error", cause)
		return fmt.Errorf("ledger %s for task %s: %w", operation, id, cause)
	}

	exhausted := task.RegisterFailure(r.retryLimit)
	if err := r.tasks.Save(ctx, task); err != nil {
		log.Error("failed to persist retry bookkeeping",
			"operation", operation,
			"error", err)
		return fmt.Errorf("saving retry state for task %s: %w", id, err)
	}

	if exhausted {
		// Escape valve against poison messages: the task is durably marked
		// failed and the message leaves the queue for good.
		log.Error("retry budget exhausted, task marked failed",
			"operation", operation,
			"retry_count", task.RetryCount,
			"ledger_error", cause)
		r.emitFailed(ctx, []uuid.UUID{id}, task.RetryCount, cause.Error())
		return Permanent(fmt.Errorf("task %s failed after %d attempts: %v", id, task.RetryCount, cause))
	}

	log.Warn("ledger call failed, requeueing",
		"operation", operation,
		"retry_count", task.RetryCount,
		"ledger_error", cause)
	return fmt.Errorf("ledger %s for task %s: %w", operation, id, cause)
}

// processBatch reconciles a batch intent: one ledger call for every found
// record, one bulk write back. Batches carry no per-task retry counter;
// failures requeue the whole batch and the consumer bounds redeliveries.
func (r *Reconciler) processBatch(ctx context.Context, intent *domain.BatchIntent) error {
	log := r.logger.With("batch_size", len(intent.TaskIDs))

	tasks, err := r.tasks.GetByIDs(ctx, intent.TaskIDs)
	if err != nil {
		return fmt.Errorf("loading batch tasks: %w", err)
	}

	if len(tasks) == 0 {
		// Nothing to reconcile; acknowledging here avoids an infinite
		// requeue of a batch referencing already-deleted tasks.
		log.Info("no matching tasks for batch update, nothing to do")
		return nil
	}

	ids := make([]uuid.UUID, len(tasks))
	titles := make([]string, len(tasks))
	descriptions := make([]string, len(tasks))
	statuses := make([]domain.TaskStatus, len(tasks))
	for i, task := range tasks {
		ids[i] = task.ID
		titles[i] = task.Title
		descriptions[i] = task.Description
		statuses[i] = intent.Status
	}

	receipt, err := r.ledger.BatchUpdate(ctx, ids, titles, descriptions, statuses)
	if err != nil {
		log.Warn("batch ledger call failed, requeueing whole batch",
			"found_count", len(tasks),
			"ledger_error", err)
		return fmt.Errorf("ledger batchUpdate: %w", err)
	}

	// The bulk write covers the original ID set, not just the found
	// records. IDs without a record are ignored by the store, but records
	// that appeared between the lookup and this write are stamped too.
	record := domain.NewReceiptRecord(*receipt, opBatchUpdate, intent.TaskIDs)
	err = r.txRunner.Run(ctx, func(tasks store.TaskStore, receipts store.ReceiptStore) error {
		if err := tasks.UpdateMany(ctx, intent.TaskIDs, domain.TaskStatusConfirmed, receipt.TxHash); err != nil {
			return err
		}
		return receipts.Record(ctx, record)
	})
	if err != nil {
		log.Error("failed to persist batch confirmation, requeueing",
			"tx_hash", receipt.TxHash,
			"error", err)
		return fmt.Errorf("persisting batch confirmation: %w", err)
	}

	log.Info("batch confirmed on ledger",
		"found_count", len(tasks),
		"tx_hash", receipt.TxHash)
	r.emitConfirmed(ctx, intent.TaskIDs, receipt.TxHash)
	return nil
}

// GiveUpBatch records the permanent abandonment of a batch whose delivery
// budget is exhausted. The consumer calls this before dropping the message.
func (r *Reconciler) GiveUpBatch(ctx context.Context, intent *domain.BatchIntent, deliveries int, cause error) {
	reason := "delivery budget exhausted"
	if cause != nil {
		reason = cause.Error()
	}
	r.logger.Error("giving up on batch after repeated failures",
		"batch_size", len(intent.TaskIDs),
		"deliveries", deliveries,
		"reason", reason)
	r.emitFailed(ctx, intent.TaskIDs, deliveries, reason)
}

func (r *Reconciler) emitConfirmed(ctx context.Context, ids []uuid.UUID, txHash string) {
	if r.emitter == nil {
		return
	}
	event, err := events.NewOutcomeEvent(events.EventTaskConfirmed, events.ConfirmedPayload{
		TaskIDs: ids,
		TxHash:  txHash,
	})
	if err != nil {
		r.logger.Error("failed to build confirmed event", "error", err)
		return
	}
	if err := r.emitter.EmitEvent(ctx, event); err != nil {
		r.logger.Error("failed to emit confirmed event", "error", err)
	}
}

func (r *Reconciler) emitFailed(ctx context.Context, ids []uuid.UUID, retryCount int, reason string) {
	if r.emitter == nil {
		return
	}
	event, err := events.NewOutcomeEvent(events.EventTaskFailed, events.FailedPayload{
		TaskIDs:    ids,
		RetryCount: retryCount,
		Reason:     reason,
	})
	if err != nil {
		r.logger.Error("failed to build failed event", "error", err)
		return
	}
	if err := r.emitter.EmitEvent(ctx, event); err != nil {
		r.logger.Error("failed to emit failed event", "error", err)
	}
}

func fallback(value, stored string) string {
	if value != "" {
		return value
	}
	return stored
}
