package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/taskchain/processor/internal/domain"
	"github.com/taskchain/processor/internal/platform/logger"
	"github.com/taskchain/processor/internal/store"
)

// PostgresTaskStore implements the store.TaskStore interface using PostgreSQL.
type PostgresTaskStore struct {
	db store.DBTX
}

// NewPostgresTaskStore creates a new PostgresTaskStore.
func NewPostgresTaskStore(db store.DBTX) *PostgresTaskStore {
	return &PostgresTaskStore{
		db: db,
	}
}

// taskColumns is the column list shared by every task select.
const taskColumns = `id, title, description, user_id, status, is_deleted,
	ledger_tx_ref, retry_count, created_at, updated_at`

// GetByID retrieves a task record by its unique ID.
func (s *PostgresTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	query := fmt.Sprintf(`SELECT %s FROM tasks WHERE id = $1`, taskColumns)

	task, err := scanTask(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if store.IsNotFoundError(MapError(err)) {
			return nil, store.ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get task by ID: %w", MapError(err))
	}

	return task, nil
}

// GetByIDs retrieves all task records matching the given ID set. IDs with no
// matching record are skipped; results are returned in creation order.
func (s *PostgresTaskStore) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.Task, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	log := logger.FromContext(ctx)

	query := fmt.Sprintf(
		`SELECT %s FROM tasks WHERE id IN (%s) ORDER BY created_at ASC`,
		taskColumns, placeholders(len(ids)))

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query tasks by IDs",
			"id_count", len(ids),
			"error", err)
		return nil, fmt.Errorf("failed to query tasks by IDs: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var tasks []*domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task row: %w", err)
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task rows: %w", MapError(err))
	}

	return tasks, nil
}

// Save replaces the stored record with the given task's current state.
// The single UPDATE is the store's atomicity unit; last writer wins.
func (s *PostgresTaskStore) Save(ctx context.Context, task *domain.Task) error {
	log := logger.FromContext(ctx)

	if err := task.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		UPDATE tasks
		SET title = $1, description = $2, user_id = $3, status = $4,
			is_deleted = $5, ledger_tx_ref = $6, retry_count = $7, updated_at = $8
		WHERE id = $9
	`

	result, err := s.db.ExecContext(ctx, query,
		task.Title,
		task.Description,
		task.UserID,
		task.Status,
		task.IsDeleted,
		nullString(task.LedgerTxRef),
		task.RetryCount,
		time.Now().UTC(),
		task.ID,
	)
	if err != nil {
		log.Error("failed to save task",
			"task_id", task.ID,
			"error", err)
		return fmt.Errorf("failed to save task: %w", MapError(err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return store.ErrTaskNotFound
	}

	return nil
}

// UpdateMany sets status and ledger transaction reference on every record in
// the ID set. IDs without a matching record are ignored.
func (s *PostgresTaskStore) UpdateMany(
	ctx context.Context,
	ids []uuid.UUID,
	status domain.TaskStatus,
	ledgerTxRef string,
) error {
	if len(ids) == 0 {
		return nil
	}

	log := logger.FromContext(ctx)

	query := fmt.Sprintf(`
		UPDATE tasks
		SET status = $1, ledger_tx_ref = $2, updated_at = $3
		WHERE id IN (%s)
	`, placeholdersFrom(4, len(ids)))

	args := []any{status, nullString(ledgerTxRef), time.Now().UTC()}
	for _, id := range ids {
		args = append(args, id)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		log.Error("failed to update tasks",
			"id_count", len(ids),
			"status", status,
			"error", err)
		return fmt.Errorf("%w: %v", store.ErrUpdateFailed, MapError(err))
	}

	return nil
}

// WithTx returns a new TaskStore instance that uses the provided transaction.
func (s *PostgresTaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return &PostgresTaskStore{db: tx}
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var task domain.Task
	var ledgerTxRef sql.NullString

	err := row.Scan(
		&task.ID,
		&task.Title,
		&task.Description,
		&task.UserID,
		&task.Status,
		&task.IsDeleted,
		&ledgerTxRef,
		&task.RetryCount,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	task.LedgerTxRef = ledgerTxRef.String
	return &task, nil
}

// placeholders returns "$1, $2, ..., $n".
func placeholders(n int) string {
	return placeholdersFrom(1, n)
}

// placeholdersFrom returns "$start, ..., $start+n-1".
func placeholdersFrom(start, n int) string {
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = fmt.Sprintf("$%d", start+i)
	}
	return strings.Join(parts, ", ")
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
