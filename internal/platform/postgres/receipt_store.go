package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/taskchain/processor/internal/domain"
	"github.com/taskchain/processor/internal/platform/logger"
	"github.com/taskchain/processor/internal/store"
)

// PostgresReceiptStore implements the store.ReceiptStore interface using
// PostgreSQL. Task ID sets are stored as JSONB so a receipt row stays a
// single self-contained audit record.
type PostgresReceiptStore struct {
	db store.DBTX
}

// NewPostgresReceiptStore creates a new PostgresReceiptStore.
func NewPostgresReceiptStore(db store.DBTX) *PostgresReceiptStore {
	return &PostgresReceiptStore{
		db: db,
	}
}

// Record persists a receipt together with the operation that produced it and
// the task IDs it settled.
func (s *PostgresReceiptStore) Record(ctx context.Context, receipt *domain.ReceiptRecord) error {
	log := logger.FromContext(ctx)

	taskIDs, err := json.Marshal(receipt.TaskIDs)
	if err != nil {
		return fmt.Errorf("%w: encoding task IDs: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO ledger_receipts (id, tx_hash, block_number, gas_used, operation, task_ids, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = s.db.ExecContext(ctx, query,
		receipt.ID,
		receipt.Receipt.TxHash,
		receipt.Receipt.BlockNumber,
		receipt.Receipt.GasUsed,
		receipt.Operation,
		taskIDs,
		receipt.CreatedAt,
	)
	if err != nil {
		log.Error("failed to record receipt",
			"tx_hash", receipt.Receipt.TxHash,
			"operation", receipt.Operation,
			"error", err)
		return fmt.Errorf("failed to record receipt: %w", MapError(err))
	}

	return nil
}

// ListByTask returns all receipts that settled the given task, newest first.
func (s *PostgresReceiptStore) ListByTask(
	ctx context.Context,
	taskID uuid.UUID,
) ([]*domain.ReceiptRecord, error) {
	query := `
		SELECT id, tx_hash, block_number, gas_used, operation, task_ids, created_at
		FROM ledger_receipts
		WHERE task_ids @> $1
		ORDER BY created_at DESC
	`

	idFilter, err := json.Marshal([]uuid.UUID{taskID})
	if err != nil {
		return nil, fmt.Errorf("encoding task ID filter: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, idFilter)
	if err != nil {
		return nil, fmt.Errorf("failed to query receipts: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var receipts []*domain.ReceiptRecord
	for rows.Next() {
		var rec domain.ReceiptRecord
		var taskIDs []byte

		err := rows.Scan(
			&rec.ID,
			&rec.Receipt.TxHash,
			&rec.Receipt.BlockNumber,
			&rec.Receipt.GasUsed,
			&rec.Operation,
			&taskIDs,
			&rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan receipt row: %w", err)
		}

		if err := json.Unmarshal(taskIDs, &rec.TaskIDs); err != nil {
			return nil, fmt.Errorf("decoding task IDs: %w", err)
		}

		receipts = append(receipts, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating receipt rows: %w", MapError(err))
	}

	return receipts, nil
}

// WithTx returns a new ReceiptStore instance that uses the provided transaction.
func (s *PostgresReceiptStore) WithTx(tx *sql.Tx) store.ReceiptStore {
	return &PostgresReceiptStore{db: tx}
}
