// Package events provides a lightweight in-process event system the
// confirmation pipeline uses to announce reconciliation outcomes without
// coupling to the components that care about them (logging, future metrics,
// notification fan-out).
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Outcome event types emitted by the confirmation pipeline.
const (
	// EventTaskConfirmed is emitted when a ledger operation confirms and
	// the task record has been reconciled.
	EventTaskConfirmed = "task_confirmed"

	// EventTaskFailed is emitted when a task (or a whole batch) exhausts
	// its retry budget and is permanently given up on.
	EventTaskFailed = "task_failed"
)

// OutcomeEvent announces the result of one reconciliation attempt.
type OutcomeEvent struct {
	// ID is a unique identifier for this event.
	ID uuid.UUID `json:"id"`

	// Type is one of the Event* constants above.
	Type string `json:"type"`

	// Payload contains the outcome-specific data serialized as JSON.
	Payload json.RawMessage `json:"payload"`

	// CreatedAt is the timestamp when the event was created.
	CreatedAt time.Time `json:"created_at"`
}

// UnmarshalPayload decodes the event payload into the provided structure.
func (e *OutcomeEvent) UnmarshalPayload(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// NewOutcomeEvent creates a new OutcomeEvent with the specified type and payload.
func NewOutcomeEvent(eventType string, payload any) (*OutcomeEvent, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &OutcomeEvent{
		ID:        uuid.New(),
		Type:      eventType,
		Payload:   payloadBytes,
		CreatedAt: time.Now(),
	}, nil
}

// ConfirmedPayload is the payload of an EventTaskConfirmed event.
type ConfirmedPayload struct {
	TaskIDs []uuid.UUID `json:"task_ids"`
	TxHash  string      `json:"tx_hash"`
}

// FailedPayload is the payload of an EventTaskFailed event.
type FailedPayload struct {
	TaskIDs    []uuid.UUID `json:"task_ids"`
	RetryCount int         `json:"retry_count"`
	Reason     string      `json:"reason"`
}

// EventHandler defines an interface for components that can handle events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *OutcomeEvent) error
}

// EventEmitter defines an interface for components that can emit events.
// This allows the pipeline to publish outcomes without direct knowledge of
// handlers.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	// Returns an error if the event cannot be emitted.
	EmitEvent(ctx context.Context, event *OutcomeEvent) error
}
