package domain

import (
	"time"

	"github.com/google/uuid"
)

// Receipt is the confirmation the ledger authority returns once an operation
// is durably recorded. Beyond TxHash, which becomes the task record's
// LedgerTxRef, the fields are opaque to the pipeline and kept for auditing.
type Receipt struct {
	TxHash      string `json:"txHash"`
	BlockNumber int64  `json:"blockNumber"`
	GasUsed     int64  `json:"gasUsed"`
}

// ReceiptRecord is a persisted receipt together with the operation that
// produced it and the tasks it settled.
type ReceiptRecord struct {
	ID        uuid.UUID
	Receipt   Receipt
	Operation string
	TaskIDs   []uuid.UUID
	CreatedAt time.Time
}

// NewReceiptRecord builds a ReceiptRecord for the given ledger operation.
func NewReceiptRecord(receipt Receipt, operation string, taskIDs []uuid.UUID) *ReceiptRecord {
	return &ReceiptRecord{
		ID:        uuid.New(),
		Receipt:   receipt,
		Operation: operation,
		TaskIDs:   taskIDs,
		CreatedAt: time.Now().UTC(),
	}
}
