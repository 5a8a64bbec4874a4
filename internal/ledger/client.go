// Package ledger provides the client for the append-only ledger authority.
// The authority exposes four idempotent-intent operations over HTTP; each
// returns a confirmation receipt once the underlying transaction is durably
// recorded, or fails with a generic ledger error. The pipeline treats the
// authority as opaque: no distinguished error kinds are surfaced.
package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/taskchain/processor/internal/domain"
)

// ErrLedgerUnavailable wraps every failed ledger call. The pipeline only
// needs to know that the call did not confirm; the cause is carried for
// logging.
var ErrLedgerUnavailable = errors.New("ledger operation failed")

// Client defines the four ledger operations the confirmation pipeline
// dispatches to.
// Version: 1.0
type Client interface {
	// Create records a task on the ledger for the first time.
	Create(ctx context.Context, id uuid.UUID, title, description, userID string, status domain.TaskStatus) (*domain.Receipt, error)

	// Update mutates a task already present on the ledger.
	Update(ctx context.Context, id uuid.UUID, title, description string, status domain.TaskStatus) (*domain.Receipt, error)

	// SoftDelete marks a task deleted on the ledger. The ledger record is
	// never physically removed.
	SoftDelete(ctx context.Context, id uuid.UUID) (*domain.Receipt, error)

	// BatchUpdate applies parallel ordered field sequences to many tasks in
	// a single ledger transaction.
	BatchUpdate(ctx context.Context, ids []uuid.UUID, titles, descriptions []string, statuses []domain.TaskStatus) (*domain.Receipt, error)
}

// HealthChecker is implemented by clients that can probe the authority's
// availability, used by the readiness endpoint.
type HealthChecker interface {
	// Ping reports whether the ledger authority is reachable.
	Ping(ctx context.Context) error
}
