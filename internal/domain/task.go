package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the reconciliation state of a task record.
type TaskStatus string

// Possible task status values.
const (
	// TaskStatusPending means the task has been written locally but its
	// latest mutation has not been confirmed on the ledger yet.
	TaskStatusPending TaskStatus = "pending"

	// TaskStatusConfirmed means the latest mutation is durably recorded on
	// the ledger and LedgerTxRef points at the confirming transaction.
	TaskStatusConfirmed TaskStatus = "confirmed"

	// TaskStatusCompleted is a user-facing terminal state set through an
	// update intent; like confirmed it is terminal with respect to retry.
	TaskStatusCompleted TaskStatus = "completed"

	// TaskStatusFailed means the retry budget was exhausted and the task
	// was permanently given up on.
	TaskStatusFailed TaskStatus = "failed"
)

// IsValid reports whether s is one of the recognized status values.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusPending, TaskStatusConfirmed, TaskStatusCompleted, TaskStatusFailed:
		return true
	}
	return false
}

// Task is the mutable task record mirrored onto the ledger. It is created by
// the HTTP layer and thereafter mutated only by the confirmation pipeline.
type Task struct {
	ID          uuid.UUID  `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	UserID      string     `json:"user_id"`
	Status      TaskStatus `json:"status"`
	IsDeleted   bool       `json:"is_deleted"`
	// LedgerTxRef is the hash of the ledger transaction that last confirmed
	// this record. Empty until the first successful confirmation; its
	// presence routes subsequent intents to the update path.
	LedgerTxRef string    `json:"ledger_tx_ref,omitempty"`
	RetryCount  int       `json:"retry_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewTask creates a pending Task with a fresh ID and timestamps.
func NewTask(title, description, userID string) (*Task, error) {
	task := &Task{
		ID:          uuid.New(),
		Title:       title,
		Description: description,
		UserID:      userID,
		Status:      TaskStatusPending,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks if the Task has valid data.
// Returns an error if any field fails validation.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return fmt.Errorf("%w: task ID cannot be empty", ErrInvalidID)
	}
	if t.Title == "" {
		return fmt.Errorf("%w: task title cannot be empty", ErrValidation)
	}
	if t.UserID == "" {
		return fmt.Errorf("%w: task user ID cannot be empty", ErrValidation)
	}
	if !t.Status.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, t.Status)
	}
	return nil
}

// IsSettled reports whether the task is in a state that is terminal with
// respect to retry. Redelivered intents for a settled task are a no-op.
func (t *Task) IsSettled() bool {
	return t.Status == TaskStatusConfirmed || t.Status == TaskStatusCompleted
}

// MarkConfirmed records a successful ledger confirmation on the task.
func (t *Task) MarkConfirmed(txHash string) {
	t.Status = TaskStatusConfirmed
	t.LedgerTxRef = txHash
	t.UpdatedAt = time.Now().UTC()
}

// RegisterFailure increments the retry counter after a failed ledger call
// and reports whether the task has exhausted its retry budget. An exhausted
// task is marked failed; otherwise it returns to pending so a redelivery can
// try again. The counter never decreases.
func (t *Task) RegisterFailure(retryLimit int) (exhausted bool) {
	t.RetryCount++
	if t.RetryCount >= retryLimit {
		t.Status = TaskStatusFailed
		exhausted = true
	} else {
		t.Status = TaskStatusPending
	}
	t.UpdatedAt = time.Now().UTC()
	return exhausted
}
