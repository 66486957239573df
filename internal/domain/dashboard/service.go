package dashboard

import (
	"context"
	"math"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/cjLee-cmd/acuzen-ICBM/internal/domain/cases"
	"github.com/cjLee-cmd/acuzen-ICBM/internal/platform/apperr"
	"github.com/cjLee-cmd/acuzen-ICBM/internal/platform/auth"
)

const (
	DefaultRecent = 5
	MaxRecent     = 50
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Stats computes the headline counters. The four queries are independent
// and run concurrently.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	if auth.PrincipalFromContext(ctx) == nil {
		return nil, apperr.ErrUnauthenticated
	}

	st := &Stats{SystemHealth: SystemHealth}
	var mean float64
	var predictions int

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		st.TotalCases, err = s.repo.CountCases(gctx, CaseCount{})
		return err
	})
	g.Go(func() (err error) {
		st.PendingCases, err = s.repo.CountCases(gctx, CaseCount{
			Statuses: []cases.Status{cases.StatusNeedsReview, cases.StatusInProgress},
		})
		return err
	})
	g.Go(func() (err error) {
		st.CriticalCases, err = s.repo.CountCases(gctx, CaseCount{
			Severities: []cases.Severity{cases.SeverityHigh, cases.SeverityCritical},
		})
		return err
	})
	g.Go(func() (err error) {
		mean, predictions, err = s.repo.MeanConfidence(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if predictions > 0 {
		st.AIAccuracy = int(math.Round(mean * 100))
	}
	return st, nil
}

// Recent returns the newest live cases. USER callers only see their own.
func (s *Service) Recent(ctx context.Context, limit int) ([]*RecentCase, error) {
	p := auth.PrincipalFromContext(ctx)
	if p == nil {
		return nil, apperr.ErrUnauthenticated
	}
	switch {
	case limit <= 0:
		limit = DefaultRecent
	case limit > MaxRecent:
		limit = MaxRecent
	}
	var reporter *uuid.UUID
	if p.Role == auth.RoleUser {
		reporter = &p.ID
	}
	rows, err := s.repo.Recent(ctx, limit, reporter)
	if err != nil {
		return nil, err
	}

	out := make([]*RecentCase, 0, len(rows))
	for _, r := range rows {
		rc := &RecentCase{
			ID:           r.ID,
			CaseNumber:   r.CaseNumber,
			Drug:         r.DrugName,
			Severity:     r.Severity,
			Status:       r.Status,
			DateReported: r.DateReported,
		}
		if r.Confidence != nil {
			pct := int(math.Round(*r.Confidence * 100))
			rc.AIConfidence = &pct
		}
		out = append(out, rc)
	}
	return out, nil
}
