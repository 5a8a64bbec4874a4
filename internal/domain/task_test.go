package domain_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskchain/processor/internal/domain"
)

func TestNewTask(t *testing.T) {
	t.Parallel()

	task, err := domain.NewTask("Write report", "Quarterly numbers", "user-1")
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, task.ID)
	assert.Equal(t, domain.TaskStatusPending, task.Status)
	assert.Empty(t, task.LedgerTxRef)
	assert.Zero(t, task.RetryCount)
	assert.False(t, task.IsDeleted)
}

func TestTaskValidate(t *testing.T) {
	t.Parallel()

	valid := func() *domain.Task {
		return &domain.Task{
			ID:     uuid.New(),
			Title:  "Write report",
			UserID: "user-1",
			Status: domain.TaskStatusPending,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*domain.Task)
		wantErr error
	}{
		{"valid task", func(t *domain.Task) {}, nil},
		{"nil ID", func(t *domain.Task) { t.ID = uuid.Nil }, domain.ErrInvalidID},
		{"empty title", func(t *domain.Task) { t.Title = "" }, domain.ErrValidation},
		{"empty user ID", func(t *domain.Task) { t.UserID = "" }, domain.ErrValidation},
		{"bogus status", func(t *domain.Task) { t.Status = "archived" }, domain.ErrInvalidStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			task := valid()
			tt.mutate(task)
			err := task.Validate()

			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestTaskIsSettled(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status  domain.TaskStatus
		settled bool
	}{
		{domain.TaskStatusPending, false},
		{domain.TaskStatusConfirmed, true},
		{domain.TaskStatusCompleted, true},
		{domain.TaskStatusFailed, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			t.Parallel()
			task := &domain.Task{Status: tt.status}
			assert.Equal(t, tt.settled, task.IsSettled())
		})
	}
}

func TestTaskMarkConfirmed(t *testing.T) {
	t.Parallel()

	task, err := domain.NewTask("t", "d", "u")
	require.NoError(t, err)

	task.MarkConfirmed("0xabc")

	assert.Equal(t, domain.TaskStatusConfirmed, task.Status)
	assert.Equal(t, "0xabc", task.LedgerTxRef)
}

func TestTaskRegisterFailure(t *testing.T) {
	t.Parallel()

	task, err := domain.NewTask("t", "d", "u")
	require.NoError(t, err)

	// Two failures keep the task pending and retryable; the count grows by
	// exactly one per attempt.
	for attempt := 1; attempt < 3; attempt++ {
		exhausted := task.RegisterFailure(3)
		assert.False(t, exhausted, "attempt %d should not exhaust the budget", attempt)
		assert.Equal(t, attempt, task.RetryCount)
		assert.Equal(t, domain.TaskStatusPending, task.Status)
	}

	// The third failure crosses the limit: failed exactly at the limit,
	// never before.
	exhausted := task.RegisterFailure(3)
	assert.True(t, exhausted)
	assert.Equal(t, 3, task.RetryCount)
	assert.Equal(t, domain.TaskStatusFailed, task.Status)
}
