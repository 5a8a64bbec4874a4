package pipeline

import (
	"context"
	"database/sql"
	"sync"

	"github.com/google/uuid"
	"github.com/taskchain/processor/internal/domain"
	"github.com/taskchain/processor/internal/ledger"
	"github.com/taskchain/processor/internal/store"
)

var (
	_ store.TaskStore    = (*MockTaskStore)(nil)
	_ store.ReceiptStore = (*MockReceiptStore)(nil)
	_ store.TxRunner     = (*MockTxRunner)(nil)
)

// MockTaskStore implements the store.TaskStore interface for testing.
// Default behavior works against an in-memory map; individual operations
// can be overridden through the *Fn fields.
type MockTaskStore struct {
	mutex sync.RWMutex
	tasks map[uuid.UUID]*domain.Task

	GetByIDFn    func(ctx context.Context, id uuid.UUID) (*domain.Task, error)
	GetByIDsFn   func(ctx context.Context, ids []uuid.UUID) ([]*domain.Task, error)
	SaveFn       func(ctx context.Context, task *domain.Task) error
	UpdateManyFn func(ctx context.Context, ids []uuid.UUID, status domain.TaskStatus, ledgerTxRef string) error
}

// NewMockTaskStore creates a new MockTaskStore with default implementations.
func NewMockTaskStore() *MockTaskStore {
	return &MockTaskStore{
		tasks: make(map[uuid.UUID]*domain.Task),
	}
}

// Put seeds the store with a copy of the given task.
func (s *MockTaskStore) Put(task *domain.Task) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	copied := *task
	s.tasks[task.ID] = &copied
}

// Get returns the stored task or nil.
func (s *MockTaskStore) Get(id uuid.UUID) *domain.Task {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if task, ok := s.tasks[id]; ok {
		copied := *task
		return &copied
	}
	return nil
}

// Delete removes a task, simulating a record vanishing mid-flight.
func (s *MockTaskStore) Delete(id uuid.UUID) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.tasks, id)
}

// GetByID retrieves a task by ID from the mock store.
func (s *MockTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	if s.GetByIDFn != nil {
		return s.GetByIDFn(ctx, id)
	}
	if task := s.Get(id); task != nil {
		return task, nil
	}
	return nil, store.ErrTaskNotFound
}

// GetByIDs retrieves all matching tasks from the mock store.
func (s *MockTaskStore) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.Task, error) {
	if s.GetByIDsFn != nil {
		return s.GetByIDsFn(ctx, ids)
	}
	var result []*domain.Task
	for _, id := range ids {
		if task := s.Get(id); task != nil {
			result = append(result, task)
		}
	}
	return result, nil
}

// Save replaces the stored task.
func (s *MockTaskStore) Save(ctx context.Context, task *domain.Task) error {
	if s.SaveFn != nil {
		return s.SaveFn(ctx, task)
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if _, ok := s.tasks[task.ID]; !ok {
		return store.ErrTaskNotFound
	}
	copied := *task
	s.tasks[task.ID] = &copied
	return nil
}

// UpdateMany stamps status and ledger reference on every matching task.
func (s *MockTaskStore) UpdateMany(
	ctx context.Context,
	ids []uuid.UUID,
	status domain.TaskStatus,
	ledgerTxRef string,
) error {
	if s.UpdateManyFn != nil {
		return s.UpdateManyFn(ctx, ids, status, ledgerTxRef)
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	for _, id := range ids {
		if task, ok := s.tasks[id]; ok {
			task.Status = status
			task.LedgerTxRef = ledgerTxRef
		}
	}
	return nil
}

// WithTx returns the store itself; the mock has no transactions.
func (s *MockTaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return s
}

// MockReceiptStore implements store.ReceiptStore for testing.
type MockReceiptStore struct {
	mutex    sync.RWMutex
	receipts []*domain.ReceiptRecord

	RecordFn func(ctx context.Context, receipt *domain.ReceiptRecord) error
}

// NewMockReceiptStore creates a new MockReceiptStore.
func NewMockReceiptStore() *MockReceiptStore {
	return &MockReceiptStore{}
}

// Record appends the receipt to the in-memory list.
func (s *MockReceiptStore) Record(ctx context.Context, receipt *domain.ReceiptRecord) error {
	if s.RecordFn != nil {
		return s.RecordFn(ctx, receipt)
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.receipts = append(s.receipts, receipt)
	return nil
}

// ListByTask returns receipts referencing the given task.
func (s *MockReceiptStore) ListByTask(
	ctx context.Context,
	taskID uuid.UUID,
) ([]*domain.ReceiptRecord, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	var result []*domain.ReceiptRecord
	for _, rec := range s.receipts {
		for _, id := range rec.TaskIDs {
			if id == taskID {
				result = append(result, rec)
				break
			}
		}
	}
	return result, nil
}

// Recorded returns all recorded receipts.
func (s *MockReceiptStore) Recorded() []*domain.ReceiptRecord {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return append([]*domain.ReceiptRecord(nil), s.receipts...)
}

// WithTx returns the store itself; the mock has no transactions.
func (s *MockReceiptStore) WithTx(tx *sql.Tx) store.ReceiptStore {
	return s
}

// MockTxRunner implements store.TxRunner by calling the function with the
// mock stores directly, outside any transaction.
type MockTxRunner struct {
	Tasks    store.TaskStore
	Receipts store.ReceiptStore
}

// Run invokes fn with the bound stores.
func (r *MockTxRunner) Run(
	ctx context.Context,
	fn func(tasks store.TaskStore, receipts store.ReceiptStore) error,
) error {
	return fn(r.Tasks, r.Receipts)
}

// ledgerCall records one invocation of a mock ledger operation.
type ledgerCall struct {
	Op  string
	IDs []uuid.UUID
}

// MockLedger implements the ledger.Client interface for testing. By default
// every operation confirms with the configured receipt; set Err to make all
// operations fail.
type MockLedger struct {
	mutex   sync.Mutex
	calls   []ledgerCall
	Receipt domain.Receipt
	Err     error
}

var _ ledger.Client = (*MockLedger)(nil)

// NewMockLedger creates a MockLedger confirming with the given tx hash.
func NewMockLedger(txHash string) *MockLedger {
	return &MockLedger{
		Receipt: domain.Receipt{TxHash: txHash, BlockNumber: 1, GasUsed: 21000},
	}
}

func (l *MockLedger) record(op string, ids ...uuid.UUID) (*domain.Receipt, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.calls = append(l.calls, ledgerCall{Op: op, IDs: ids})
	if l.Err != nil {
		return nil, l.Err
	}
	receipt := l.Receipt
	return &receipt, nil
}

// Create records a create call.
func (l *MockLedger) Create(
	ctx context.Context,
	id uuid.UUID,
	title, description, userID string,
	status domain.TaskStatus,
) (*domain.Receipt, error) {
	return l.record("create", id)
}

// Update records an update call.
func (l *MockLedger) Update(
	ctx context.Context,
	id uuid.UUID,
	title, description string,
	status domain.TaskStatus,
) (*domain.Receipt, error) {
	return l.record("update", id)
}

// SoftDelete records a soft-delete call.
func (l *MockLedger) SoftDelete(ctx context.Context, id uuid.UUID) (*domain.Receipt, error) {
	return l.record("softDelete", id)
}

// BatchUpdate records a batch-update call.
func (l *MockLedger) BatchUpdate(
	ctx context.Context,
	ids []uuid.UUID,
	titles, descriptions []string,
	statuses []domain.TaskStatus,
) (*domain.Receipt, error) {
	return l.record("batchUpdate", ids...)
}

// Calls returns the operations invoked so far, in order.
func (l *MockLedger) Calls() []string {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	ops := make([]string, len(l.calls))
	for i, call := range l.calls {
		ops[i] = call.Op
	}
	return ops
}

// LastCallIDs returns the task IDs of the most recent call, or nil.
func (l *MockLedger) LastCallIDs() []uuid.UUID {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	if len(l.calls) == 0 {
		return nil
	}
	return l.calls[len(l.calls)-1].IDs
}
