package prediction

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cjLee-cmd/acuzen-ICBM/internal/domain/audit"
	"github.com/cjLee-cmd/acuzen-ICBM/internal/domain/cases"
	"github.com/cjLee-cmd/acuzen-ICBM/internal/domain/triage"
	"github.com/cjLee-cmd/acuzen-ICBM/internal/platform/apperr"
	"github.com/cjLee-cmd/acuzen-ICBM/internal/platform/auth"
)

// CaseReader resolves a case under the caller's read rules.
type CaseReader interface {
	Visible(ctx context.Context, id uuid.UUID) (*cases.Case, error)
}

// UsageRecorder tracks per-model prediction counts.
type UsageRecorder interface {
	RecordPrediction(ctx context.Context, name, version string, elapsedMillis int)
}

type Service struct {
	repo     Repository
	cases    CaseReader
	analyzer triage.Analyzer
	usage    UsageRecorder
	audit    audit.Recorder
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(repo Repository, cr CaseReader, analyzer triage.Analyzer, usage UsageRecorder, rec audit.Recorder, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		cases:    cr,
		analyzer: analyzer,
		usage:    usage,
		audit:    rec,
		logger:   logger.With().Str("component", "prediction").Logger(),
		now:      time.Now,
	}
}

// Analyze runs triage on a live case and stores the result. Nothing is
// stored when the analyzer fails.
func (s *Service) Analyze(ctx context.Context, caseID uuid.UUID) (*AnalyzeResponse, error) {
	p := auth.PrincipalFromContext(ctx)
	if err := auth.Allow(p, auth.RoleReviewer, auth.RoleAdmin); err != nil {
		return nil, err
	}
	c, err := s.cases.Visible(ctx, caseID)
	if err != nil {
		return nil, err
	}

	start := s.now()
	res, err := s.analyzer.Analyze(ctx, c)
	if err != nil {
		s.logger.Error().Err(err).
			Str("case_id", c.ID.String()).
			Dur("elapsed", s.now().Sub(start)).
			Msg("triage failed")
		return nil, err
	}

	// The model call has already been paid for; keep its result even if the
	// client has gone away.
	ctx = context.WithoutCancel(ctx)

	name, version := s.analyzer.Model()
	elapsed := res.ProcessingMillis()
	summary := res.Recommendations.Summary()
	pred := &Prediction{
		CaseID:       c.ID,
		ModelName:    name,
		ModelVersion: version,
		Confidence:   res.Confidence,
		Prediction: Payload{
			Severity:          res.Severity,
			Recommendations:   res.Recommendations,
			AnalysisTimestamp: s.now().UTC(),
		},
		Recommendation: &summary,
		ProcessingTime: &elapsed,
	}
	if err := s.repo.Create(ctx, pred); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Event{
		Action:     audit.ActionAIAnalysis,
		Resource:   audit.ResourceCase,
		ResourceID: c.ID.String(),
		Details: map[string]any{
			"modelName":         name,
			"modelVersion":      version,
			"confidence":        res.Confidence,
			"processingTime":    elapsed,
			"previousSeverity":  c.Severity,
			"predictedSeverity": res.Severity.Severity,
		},
		Severity: audit.SeverityInfo,
	})
	s.usage.RecordPrediction(ctx, name, version, elapsed)

	return &AnalyzeResponse{
		Analysis:   Analysis{Result: res, ProcessingTime: elapsed},
		Prediction: pred,
		Message:    "AI analysis completed successfully",
	}, nil
}

// ListForCase returns the predictions of a case the caller can read.
func (s *Service) ListForCase(ctx context.Context, caseID uuid.UUID) ([]*Prediction, error) {
	c, err := s.cases.Visible(ctx, caseID)
	if err != nil {
		return nil, err
	}
	preds, err := s.repo.ListByCase(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	if preds == nil {
		preds = []*Prediction{}
	}
	s.audit.Record(ctx, audit.Event{
		Action:     audit.ActionReadPredictions,
		Resource:   audit.ResourcePrediction,
		ResourceID: c.ID.String(),
		Details:    map[string]any{"caseId": c.ID, "predictionsCount": len(preds)},
		Severity:   audit.SeverityInfo,
	})
	return preds, nil
}

// Review records a human verdict on a prediction.
func (s *Service) Review(ctx context.Context, id uuid.UUID, req ReviewRequest) (*Prediction, error) {
	p := auth.PrincipalFromContext(ctx)
	if err := auth.Allow(p, auth.RoleReviewer, auth.RoleAdmin); err != nil {
		return nil, err
	}
	if req.ReviewNotes == nil || req.HumanReviewed == nil {
		return nil, apperr.Invalid("", "Invalid review data")
	}

	pred, err := s.repo.Review(ctx, id, p.ID, *req.ReviewNotes, *req.HumanReviewed)
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, audit.Event{
		Action:     audit.ActionReviewPrediction,
		Resource:   audit.ResourcePrediction,
		ResourceID: id.String(),
		Details: map[string]any{
			"caseId":        pred.CaseID,
			"humanReviewed": pred.HumanReviewed,
			"reviewNotes":   *req.ReviewNotes,
		},
		Severity: audit.SeverityInfo,
	})
	return pred, nil
}
