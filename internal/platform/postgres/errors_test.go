package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/taskchain/processor/internal/store"
)

func TestMapError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"nil passes through", nil, nil},
		{
			"no rows maps to not found",
			fmt.Errorf("query: %w", sql.ErrNoRows),
			store.ErrNotFound,
		},
		{
			"unique violation maps to duplicate",
			&pgconn.PgError{Code: uniqueViolationCode},
			store.ErrDuplicate,
		},
		{
			"foreign key violation maps to invalid entity",
			&pgconn.PgError{Code: foreignKeyViolationCode, ConstraintName: "fk_tasks_user"},
			store.ErrInvalidEntity,
		},
		{
			"check violation maps to invalid entity",
			&pgconn.PgError{Code: checkViolationCode, ConstraintName: "tasks_status_check"},
			store.ErrInvalidEntity,
		},
		{
			"not null violation maps to invalid entity",
			&pgconn.PgError{Code: notNullViolationCode, ColumnName: "title"},
			store.ErrInvalidEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := MapError(tt.err)
			if tt.want == nil {
				assert.Equal(t, tt.err, got)
				return
			}
			assert.ErrorIs(t, got, tt.want)
		})
	}
}

func TestMapErrorUnknownErrorPassesThrough(t *testing.T) {
	t.Parallel()

	err := errors.New("connection refused")
	assert.Equal(t, err, MapError(err))
}

func TestIsUniqueViolation(t *testing.T) {
	t.Parallel()

	assert.True(t, IsUniqueViolation(&pgconn.PgError{Code: uniqueViolationCode}))
	assert.False(t, IsUniqueViolation(errors.New("boom")))
	assert.False(t, IsUniqueViolation(nil))
}
