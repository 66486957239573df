package dashboard

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	CountCases(ctx context.Context, q CaseCount) (int, error)
	// MeanConfidence averages the confidence of every stored prediction.
	// n is zero when there are none.
	MeanConfidence(ctx context.Context) (mean float64, n int, err error)
	Recent(ctx context.Context, limit int, reporterID *uuid.UUID) ([]*RecentRow, error)
}
