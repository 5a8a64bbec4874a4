package domain

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// OperationDelete routes a single intent to the ledger's soft-delete
// operation. OperationBatchUpdate tags the batch intent shape.
const (
	OperationDelete      = "delete"
	OperationBatchUpdate = "batchUpdate"
)

// SingleIntent describes a desired mutation of one task's ledger
// representation. Which ledger operation it maps to depends on the intent's
// fields and on the current task record; see the pipeline's routing rules.
type SingleIntent struct {
	ID          uuid.UUID
	Title       string
	Description string
	UserID      string
	Status      TaskStatus
	Operation   string
}

// BatchIntent applies one status value to many tasks in a single ledger call.
type BatchIntent struct {
	TaskIDs []uuid.UUID
	Status  TaskStatus
}

// Intent is the tagged union carried by a queue message: exactly one of
// Single and Batch is non-nil after a successful parse.
type Intent struct {
	Single *SingleIntent
	Batch  *BatchIntent
}

// IsBatch reports whether the intent carries a batch mutation.
func (i Intent) IsBatch() bool { return i.Batch != nil }

// intentPayload is the raw wire shape of a queue message body. Single and
// batch intents share one JSON object; classification happens after decode.
type intentPayload struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	UserID      string   `json:"userId"`
	Status      string   `json:"status"`
	Operation   string   `json:"operation"`
	TaskIDs     []string `json:"taskIds"`
}

// ParseIntent decodes and classifies a queue message body.
//
// A payload with a non-empty taskIds array is a batch intent and must carry
// operation "batchUpdate" and a valid status. Otherwise a payload with an id
// is a single intent. Anything else fails with ErrMalformedIntent, which the
// consumer treats as permanent: the message is acknowledged and dropped
// instead of silently falling through both branches.
func ParseIntent(body []byte) (Intent, error) {
	var p intentPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return Intent{}, fmt.Errorf("%w: %v", ErrMalformedIntent, err)
	}

	if len(p.TaskIDs) > 0 {
		return parseBatch(p)
	}
	if p.ID != "" {
		return parseSingle(p)
	}
	return Intent{}, fmt.Errorf("%w: payload carries neither id nor taskIds", ErrMalformedIntent)
}

func parseSingle(p intentPayload) (Intent, error) {
	id, err := uuid.Parse(p.ID)
	if err != nil {
		return Intent{}, fmt.Errorf("%w: id %q is not a valid UUID", ErrMalformedIntent, p.ID)
	}

	status := TaskStatus(p.Status)
	if p.Status != "" && !status.IsValid() {
		return Intent{}, fmt.Errorf("%w: unknown status %q", ErrMalformedIntent, p.Status)
	}
	if p.Operation != "" && p.Operation != OperationDelete {
		return Intent{}, fmt.Errorf("%w: unknown operation %q", ErrMalformedIntent, p.Operation)
	}

	return Intent{Single: &SingleIntent{
		ID:          id,
		Title:       p.Title,
		Description: p.Description,
		UserID:      p.UserID,
		Status:      status,
		Operation:   p.Operation,
	}}, nil
}

func parseBatch(p intentPayload) (Intent, error) {
	if p.Operation != OperationBatchUpdate {
		return Intent{}, fmt.Errorf(
			"%w: batch payload requires operation %q, got %q",
			ErrMalformedIntent, OperationBatchUpdate, p.Operation)
	}

	status := TaskStatus(p.Status)
	if !status.IsValid() {
		return Intent{}, fmt.Errorf("%w: batch payload requires a valid status, got %q",
			ErrMalformedIntent, p.Status)
	}

	ids := make([]uuid.UUID, 0, len(p.TaskIDs))
	for _, raw := range p.TaskIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return Intent{}, fmt.Errorf("%w: task ID %q is not a valid UUID", ErrMalformedIntent, raw)
		}
		ids = append(ids, id)
	}

	return Intent{Batch: &BatchIntent{TaskIDs: ids, Status: status}}, nil
}

// EncodeSingleIntent serializes a single intent into the wire shape consumed
// by ParseIntent. Used by the publisher side of the queue.
func EncodeSingleIntent(intent SingleIntent) ([]byte, error) {
	return json.Marshal(intentPayload{
		ID:          intent.ID.String(),
		Title:       intent.Title,
		Description: intent.Description,
		UserID:      intent.UserID,
		Status:      string(intent.Status),
		Operation:   intent.Operation,
	})
}

// EncodeBatchIntent serializes a batch intent into the wire shape consumed
// by ParseIntent.
func EncodeBatchIntent(intent BatchIntent) ([]byte, error) {
	ids := make([]string, len(intent.TaskIDs))
	for i, id := range intent.TaskIDs {
		ids[i] = id.String()
	}
	return json.Marshal(intentPayload{
		TaskIDs:   ids,
		Status:    string(intent.Status),
		Operation: OperationBatchUpdate,
	})
}
