package prediction

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, p *Prediction) error
	// ListByCase returns predictions for a case, newest first.
	ListByCase(ctx context.Context, caseID uuid.UUID) ([]*Prediction, error)
	Review(ctx context.Context, id, reviewerID uuid.UUID, notes string, reviewed bool) (*Prediction, error)
}
