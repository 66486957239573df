package aimodel

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	List(ctx context.Context) ([]*Model, error)
	Get(ctx context.Context, id uuid.UUID) (*Model, error)
	Create(ctx context.Context, m *Model) error
	Update(ctx context.Context, m *Model) error
	// Ensure inserts the model unless name and version already exist.
	Ensure(ctx context.Context, m *Model) (created bool, err error)
	// RecordPrediction bumps the counter and running mean response time of
	// the named model. Unknown models are ignored.
	RecordPrediction(ctx context.Context, name, version string, elapsedMillis int) error
}
