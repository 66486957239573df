package cases

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// Create assigns ID, CaseNumber and the timestamps. A case-number
	// collision is reported as apperr.ErrConflict.
	Create(ctx context.Context, c *Case) error
	// Get returns the case whether or not it is soft-deleted.
	Get(ctx context.Context, id uuid.UUID) (*Case, error)
	// GetForUpdate is Get with a row lock; call it inside a transaction.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Case, error)
	List(ctx context.Context, f ListFilter) ([]*Case, int, error)
	Update(ctx context.Context, c *Case) error
	// SoftDelete archives a live case and returns it. Missing or already
	// archived cases yield apperr.ErrNotFound.
	SoftDelete(ctx context.Context, id, deletedBy uuid.UUID, reason string) (*Case, error)
	ListCritical(ctx context.Context, f CriticalFilter) ([]*CriticalCandidate, error)
}
