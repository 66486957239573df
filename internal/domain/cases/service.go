package cases

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cjLee-cmd/acuzen-ICBM/internal/domain/audit"
	"github.com/cjLee-cmd/acuzen-ICBM/internal/platform/apperr"
	"github.com/cjLee-cmd/acuzen-ICBM/internal/platform/auth"
	"github.com/cjLee-cmd/acuzen-ICBM/internal/platform/db"
)

const (
	createAttempts = 3
	criticalWindow = 30 * 24 * time.Hour
)

type Service struct {
	repo  Repository
	tx    db.TxRunner
	audit audit.Recorder
	now   func() time.Time
	// backoff returns the pause before retry attempt n (1-based).
	backoff func(attempt int) time.Duration
}

func NewService(repo Repository, tx db.TxRunner, rec audit.Recorder) *Service {
	return &Service{repo: repo, tx: tx, audit: rec, now: time.Now, backoff: jitter}
}

func jitter(attempt int) time.Duration {
	base := time.Duration(attempt) * 10 * time.Millisecond
	return base + rand.N(base)
}

func caller(ctx context.Context) (*auth.Principal, error) {
	p := auth.PrincipalFromContext(ctx)
	if p == nil {
		return nil, apperr.ErrUnauthenticated
	}
	return p, nil
}

// Create stores a new case reported by the caller.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Case, error) {
	p, err := caller(ctx)
	if err != nil {
		return nil, err
	}

	c := &Case{
		PatientGender:       strings.TrimSpace(req.PatientGender),
		DrugName:            strings.TrimSpace(req.DrugName),
		DrugDosage:          req.DrugDosage,
		AdverseReaction:     strings.TrimSpace(req.AdverseReaction),
		ReactionDescription: req.ReactionDescription,
		Severity:            Severity(req.Severity),
		Status:              Status(req.Status),
		ReporterID:          p.ID,
		ConcomitantMeds:     req.ConcomitantMeds.Ptr(),
		MedicalHistory:      req.MedicalHistory,
		Outcome:             req.Outcome,
	}
	if req.PatientAge == nil {
		return nil, apperr.Invalid("patientAge", "is required")
	}
	c.PatientAge = *req.PatientAge
	if c.Status == "" {
		c.Status = StatusNeedsReview
	}
	if c.Outcome == nil || strings.TrimSpace(*c.Outcome) == "" {
		outcome := DefaultOutcome
		c.Outcome = &outcome
	}
	if req.DateOfReaction != nil && *req.DateOfReaction != "" {
		t, err := parseDate(*req.DateOfReaction)
		if err != nil {
			return nil, apperr.Invalid("dateOfReaction", "%v", err)
		}
		c.DateOfReaction = &t
	}
	if err := validate(c); err != nil {
		return nil, err
	}

	for attempt := 1; ; attempt++ {
		err = s.repo.Create(ctx, c)
		if err == nil || !errors.Is(err, apperr.ErrConflict) || attempt == createAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.backoff(attempt)):
		}
	}
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Event{
		Action:     audit.ActionCreateCase,
		Resource:   audit.ResourceCase,
		ResourceID: c.ID.String(),
		Details:    map[string]any{"caseNumber": c.CaseNumber, "severity": c.Severity},
		Severity:   audit.SeverityInfo,
	})
	return c, nil
}

// Get returns a case the caller may see. Archived cases are only returned
// to ADMIN callers that ask for them; everyone else gets NotFound.
func (s *Service) Get(ctx context.Context, id uuid.UUID, includeDeleted bool) (*Case, error) {
	p, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	c, err := s.visible(ctx, p, id, includeDeleted && p.IsAdmin())
	if err != nil {
		return nil, err
	}

	sev := audit.SeverityInfo
	if c.IsDeleted {
		sev = audit.SeverityHigh
	}
	s.audit.Record(ctx, audit.Event{
		Action:     audit.ActionReadCase,
		Resource:   audit.ResourceCase,
		ResourceID: c.ID.String(),
		Details: map[string]any{
			"caseStatus":     c.Status,
			"severity":       c.Severity,
			"isArchived":     c.IsDeleted,
			"includeDeleted": includeDeleted && p.IsAdmin(),
		},
		Severity: sev,
	})
	return c, nil
}

// Visible loads a case and applies the read rules without auditing. Other
// packages use it before acting on a case.
func (s *Service) Visible(ctx context.Context, id uuid.UUID) (*Case, error) {
	p, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	return s.visible(ctx, p, id, false)
}

func (s *Service) visible(ctx context.Context, p *auth.Principal, id uuid.UUID, includeDeleted bool) (*Case, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.IsDeleted && !includeDeleted {
		return nil, apperr.NotFound("case")
	}
	if p.Role == auth.RoleUser && c.ReporterID != p.ID {
		return nil, apperr.Forbidden("access denied")
	}
	return c, nil
}

// List returns cases newest first. USER callers only see their own reports
// and only ADMIN callers can include archived ones.
func (s *Service) List(ctx context.Context, f ListFilter) ([]*Case, int, error) {
	p, err := caller(ctx)
	if err != nil {
		return nil, 0, err
	}
	if p.Role == auth.RoleUser {
		f.ReporterID = &p.ID
	}
	f.IncludeDeleted = f.IncludeDeleted && p.IsAdmin()
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, apperr.Invalid("status", "must be one of: Urgent, NeedsReview, InProgress, Complete")
	}

	items, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, 0, err
	}

	archived := 0
	for _, c := range items {
		if c.IsDeleted {
			archived++
		}
	}
	sev := audit.SeverityInfo
	if archived > 0 {
		sev = audit.SeverityHigh
	}
	filters := map[string]any{
		"status":         f.Status,
		"reporterId":     f.ReporterID != nil,
		"limit":          f.Limit,
		"includeDeleted": f.IncludeDeleted,
	}
	s.audit.Record(ctx, audit.Event{
		Action:   audit.ActionReadCasesList,
		Resource: audit.ResourceCase,
		Details: map[string]any{
			"resultCount":   len(items),
			"archivedCount": archived,
			"filters":       filters,
		},
		Severity: sev,
	})
	return items, total, nil
}

// Update applies patch under the caller's field permissions. The before
// image is read with a row lock in the same transaction as the write.
func (s *Service) Update(ctx context.Context, id uuid.UUID, patch Patch) (*Case, error) {
	p, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if err := auth.Allow(p, auth.RoleReviewer, auth.RoleAdmin); err != nil {
		return nil, err
	}
	if err := CheckPatch(p.Role, patch); err != nil {
		return nil, err
	}

	var before, after *Case
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		current, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.IsDeleted {
			return apperr.NotFound("case")
		}
		snapshot := *current
		before = &snapshot

		if err := patch.Apply(current); err != nil {
			return err
		}
		if err := validate(current); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, current); err != nil {
			return err
		}
		after = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Event{
		Action:     audit.ActionUpdateCase,
		Resource:   audit.ResourceCase,
		ResourceID: id.String(),
		Details: map[string]any{
			"role":          p.Role,
			"fieldsChanged": patch.Fields(),
			"before":        summary(before),
			"after":         summary(after),
		},
		Severity: audit.SeverityHigh,
	})
	return after, nil
}

func summary(c *Case) map[string]any {
	return map[string]any{"status": c.Status, "severity": c.Severity, "outcome": c.Outcome}
}

// SoftDelete archives a case. ADMIN only; reason is mandatory.
func (s *Service) SoftDelete(ctx context.Context, id uuid.UUID, reason string) (*Case, error) {
	p, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if err := auth.Allow(p, auth.RoleAdmin); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.Invalid("deletionReason", "Deletion reason is required")
	}

	c, err := s.repo.SoftDelete(ctx, id, p.ID, reason)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Event{
		Action:     audit.ActionSoftDeleteCase,
		Resource:   audit.ResourceCase,
		ResourceID: id.String(),
		Details: map[string]any{
			"deletionReason":   reason,
			"originalStatus":   c.Status,
			"originalSeverity": c.Severity,
		},
		Severity: audit.SeverityHigh,
	})
	return c, nil
}

// Critical lists live High and Critical cases with an active status that
// were reported in the last 30 days. Critical sorts first, then the oldest
// report.
func (s *Service) Critical(ctx context.Context) ([]*CriticalCase, error) {
	p, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	f := CriticalFilter{Since: now.Add(-criticalWindow)}
	if p.Role == auth.RoleUser {
		f.ReporterID = &p.ID
	}

	candidates, err := s.repo.ListCritical(ctx, f)
	if err != nil {
		return nil, err
	}

	out := make([]*CriticalCase, 0, len(candidates))
	for _, cand := range candidates {
		out = append(out, toCritical(cand, now))
	}
	slices.SortStableFunc(out, func(a, b *CriticalCase) int {
		if a.Severity != b.Severity {
			if a.Severity == SeverityCritical {
				return -1
			}
			if b.Severity == SeverityCritical {
				return 1
			}
		}
		return b.DaysSinceReport - a.DaysSinceReport
	})

	s.audit.Record(ctx, audit.Event{
		Action:   audit.ActionReadCriticalCases,
		Resource: audit.ResourceCase,
		Details:  map[string]any{"resultCount": len(out)},
		Severity: audit.SeverityInfo,
	})
	return out, nil
}

func toCritical(cand *CriticalCandidate, now time.Time) *CriticalCase {
	c := cand.Case
	out := &CriticalCase{
		ID:                c.ID,
		CaseNumber:        c.CaseNumber,
		PatientAge:        c.PatientAge,
		PatientGender:     c.PatientGender,
		DrugName:          c.DrugName,
		SuspectedReaction: c.AdverseReaction,
		Severity:          c.Severity,
		Outcome:           DefaultOutcome,
		CreatedAt:         c.DateReported,
		DaysSinceReport:   int(now.Sub(c.DateReported).Hours() / 24),
	}
	if c.Outcome != nil && *c.Outcome != "" {
		out.Outcome = *c.Outcome
	}
	if cand.PredictedConfidence != nil {
		pred := &AIPredicted{
			Severity:   string(c.Severity),
			Confidence: int(math.Round(*cand.PredictedConfidence * 100)),
		}
		if cand.PredictedSeverity != nil && *cand.PredictedSeverity != "" {
			pred.Severity = *cand.PredictedSeverity
		}
		out.AIPrediction = pred
	}
	return out
}
