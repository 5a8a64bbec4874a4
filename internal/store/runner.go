package store

import (
	"context"
	"database/sql"
)

// TxRunner runs a function against transactional variants of the task and
// receipt stores. It lets the pipeline keep a task-record write and its
// receipt audit row atomic without depending on database/sql directly.
type TxRunner interface {
	Run(ctx context.Context, fn func(tasks TaskStore, receipts ReceiptStore) error) error
}

// SQLTxRunner implements TxRunner over a *sql.DB using RunInTransaction.
type SQLTxRunner struct {
	db       *sql.DB
	tasks    TaskStore
	receipts ReceiptStore
}

// NewSQLTxRunner creates a TxRunner binding the given stores to db.
func NewSQLTxRunner(db *sql.DB, tasks TaskStore, receipts ReceiptStore) *SQLTxRunner {
	return &SQLTxRunner{
		db:       db,
		tasks:    tasks,
		receipts: receipts,
	}
}

// Run executes fn inside a single database transaction.
func (r *SQLTxRunner) Run(
	ctx context.Context,
	fn func(tasks TaskStore, receipts ReceiptStore) error,
) error {
	return RunInTransaction(ctx, r.db, func(ctx context.Context, tx *sql.Tx) error {
		return fn(r.tasks.WithTx(tx), r.receipts.WithTx(tx))
	})
}
