package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/taskchain/processor/internal/domain"
)

// TaskStore defines the interface for task record persistence.
//
// The confirmation pipeline is the only writer after a record's creation; it
// reads records, flips their status/retry bookkeeping, and stamps the ledger
// transaction reference. Records are never deleted here — soft deletion is a
// flag owned by the producing HTTP layer.
type TaskStore interface {
	// GetByID retrieves a task record by its unique ID.
	// Returns ErrTaskNotFound if the record does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// GetByIDs retrieves all task records matching the given ID set.
	// IDs with no matching record are silently skipped; the result may be
	// shorter than the input and is never an error for partial matches.
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.Task, error)

	// Save replaces the stored record with the given task's current state.
	// The record's single-document replace is the store's atomicity unit;
	// last writer wins at the field level.
	// Returns ErrTaskNotFound if the record does not exist.
	Save(ctx context.Context, task *domain.Task) error

	// UpdateMany sets status and ledger transaction reference on every
	// record in the ID set. IDs without a matching record are ignored.
	UpdateMany(ctx context.Context, ids []uuid.UUID, status domain.TaskStatus, ledgerTxRef string) error

	// WithTx returns a new TaskStore instance that uses the provided
	// transaction. The transaction should be created and managed by the
	// caller, typically via store.RunInTransaction.
	WithTx(tx *sql.Tx) TaskStore
}

// ReceiptStore defines the interface for persisting ledger confirmation
// receipts as an audit trail.
type ReceiptStore interface {
	// Record persists a receipt together with the operation that produced
	// it and the task IDs it settled.
	Record(ctx context.Context, receipt *domain.ReceiptRecord) error

	// ListByTask returns all receipts that settled the given task, newest
	// first.
	ListByTask(ctx context.Context, taskID uuid.UUID) ([]*domain.ReceiptRecord, error)

	// WithTx returns a new ReceiptStore instance that uses the provided
	// transaction.
	WithTx(tx *sql.Tx) ReceiptStore
}
