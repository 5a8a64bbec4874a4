package events_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskchain/processor/internal/events"
)

// recordingHandler captures the events it receives.
type recordingHandler struct {
	mu     sync.Mutex
	events []*events.OutcomeEvent
	err    error
}

func (h *recordingHandler) HandleEvent(_ context.Context, event *events.OutcomeEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
	return h.err
}

func (h *recordingHandler) received() []*events.OutcomeEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.events
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewOutcomeEvent(t *testing.T) {
	t.Parallel()

	payload := events.ConfirmedPayload{
		TaskIDs: []uuid.UUID{uuid.New()},
		TxHash:  "0xabc",
	}

	event, err := events.NewOutcomeEvent(events.EventTaskConfirmed, payload)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.Equal(t, events.EventTaskConfirmed, event.Type)

	var decoded events.ConfirmedPayload
	require.NoError(t, event.UnmarshalPayload(&decoded))
	assert.Equal(t, payload, decoded)
}

func TestInMemoryEventEmitterDispatchesToAllHandlers(t *testing.T) {
	t.Parallel()

	emitter := events.NewInMemoryEventEmitter(discardLogger())
	h1 := &recordingHandler{}
	h2 := &recordingHandler{}
	emitter.RegisterHandler(h1)
	emitter.RegisterHandler(h2)

	event, err := events.NewOutcomeEvent(events.EventTaskConfirmed, events.ConfirmedPayload{TxHash: "0xabc"})
	require.NoError(t, err)

	require.NoError(t, emitter.EmitEvent(context.Background(), event))
	assert.Len(t, h1.received(), 1)
	assert.Len(t, h2.received(), 1)
}

func TestInMemoryEventEmitterContinuesPastFailingHandler(t *testing.T) {
	t.Parallel()

	emitter := events.NewInMemoryEventEmitter(discardLogger())
	failing := &recordingHandler{err: errors.New("handler broken")}
	healthy := &recordingHandler{}
	emitter.RegisterHandler(failing)
	emitter.RegisterHandler(healthy)

	event, err := events.NewOutcomeEvent(events.EventTaskFailed, events.FailedPayload{Reason: "retries exhausted"})
	require.NoError(t, err)

	err = emitter.EmitEvent(context.Background(), event)
	assert.EqualError(t, err, "handler broken")
	assert.Len(t, healthy.received(), 1, "healthy handler still receives the event")
}

func TestInMemoryEventEmitterNoHandlers(t *testing.T) {
	t.Parallel()

	emitter := events.NewInMemoryEventEmitter(discardLogger())
	event, err := events.NewOutcomeEvent(events.EventTaskConfirmed, events.ConfirmedPayload{})
	require.NoError(t, err)

	assert.NoError(t, emitter.EmitEvent(context.Background(), event))
}
