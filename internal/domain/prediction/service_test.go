package prediction

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cjLee-cmd/acuzen-ICBM/internal/domain/audit"
	"github.com/cjLee-cmd/acuzen-ICBM/internal/domain/cases"
	"github.com/cjLee-cmd/acuzen-ICBM/internal/domain/triage"
	"github.com/cjLee-cmd/acuzen-ICBM/internal/platform/apperr"
	"github.com/cjLee-cmd/acuzen-ICBM/internal/platform/auth"
)

type fixture struct {
	svc      *Service
	repo     *mockRepo
	cases    caseStore
	analyzer *fakeAnalyzer
	usage    *usage
	rec      *recorder

	user, reviewer, admin context.Context
	userID                uuid.UUID
	live, archived        *cases.Case
}

func principalCtx(role auth.Role) (context.Context, uuid.UUID) {
	id := uuid.New()
	return auth.WithPrincipal(context.Background(), &auth.Principal{ID: id, Role: role, Active: true}), id
}

func sampleResult() *triage.Result {
	return &triage.Result{
		Severity: triage.SeverityAssessment{
			Severity:    cases.SeverityHigh,
			Confidence:  0.87,
			Reasoning:   "hepatic involvement",
			RiskFactors: []string{"age"},
		},
		Recommendations: triage.Recommendations{
			ImmediateActions: []string{"discontinue drug"},
		},
		Confidence:     0.87,
		ProcessingTime: 1200 * time.Millisecond,
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:     newMockRepo(),
		cases:    caseStore{},
		analyzer: &fakeAnalyzer{result: sampleResult()},
		usage:    &usage{},
		rec:      &recorder{},
	}
	f.user, f.userID = principalCtx(auth.RoleUser)
	f.reviewer, _ = principalCtx(auth.RoleReviewer)
	f.admin, _ = principalCtx(auth.RoleAdmin)

	f.live = &cases.Case{ID: uuid.New(), ReporterID: f.userID, Severity: cases.SeverityMedium, Status: cases.StatusNeedsReview}
	f.archived = &cases.Case{ID: uuid.New(), ReporterID: f.userID, Severity: cases.SeverityLow, IsDeleted: true}
	f.cases[f.live.ID] = f.live
	f.cases[f.archived.ID] = f.archived

	f.svc = NewService(f.repo, f.cases, f.analyzer, f.usage, f.rec, zerolog.Nop())
	return f
}

func TestAnalyze_StoresPrediction(t *testing.T) {
	f := newFixture(t)

	resp, err := f.svc.Analyze(f.reviewer, f.live.ID)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if resp.Message != "AI analysis completed successfully" {
		t.Errorf("unexpected message %q", resp.Message)
	}
	if resp.Analysis.ProcessingTime != 1200 {
		t.Errorf("expected processingTime 1200, got %d", resp.Analysis.ProcessingTime)
	}
	p := resp.Prediction
	if p.CaseID != f.live.ID || p.ModelName != "gpt-test" || p.ModelVersion != "1.0" {
		t.Errorf("unexpected prediction %+v", p)
	}
	if p.Confidence != 0.87 || p.Prediction.Severity.Severity != cases.SeverityHigh {
		t.Errorf("unexpected assessment %+v", p.Prediction)
	}
	if p.Recommendation == nil || *p.Recommendation != "Immediate actions: discontinue drug" {
		t.Errorf("unexpected recommendation %v", p.Recommendation)
	}
	if p.HumanReviewed || p.Prediction.AnalysisTimestamp.IsZero() {
		t.Errorf("expected unreviewed prediction with timestamp, got %+v", p)
	}
	if f.repo.count() != 1 {
		t.Errorf("expected one stored prediction, got %d", f.repo.count())
	}

	ev := f.rec.last()
	if ev.Action != audit.ActionAIAnalysis || ev.Resource != audit.ResourceCase || ev.ResourceID != f.live.ID.String() {
		t.Errorf("unexpected audit event %+v", ev)
	}
	if ev.Details["previousSeverity"] != cases.SeverityMedium || ev.Details["predictedSeverity"] != cases.SeverityHigh {
		t.Errorf("unexpected audit details %v", ev.Details)
	}
	if len(f.usage.calls) != 1 || f.usage.calls[0] != (usageCall{"gpt-test", "1.0", 1200}) {
		t.Errorf("unexpected usage calls %+v", f.usage.calls)
	}
}

func TestAnalyze_KeepsResultWhenClientLeaves(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(f.reviewer)
	defer cancel()
	f.analyzer.during = cancel

	resp, err := f.svc.Analyze(ctx, f.live.ID)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if f.repo.count() != 1 || resp.Prediction.ID == uuid.Nil {
		t.Fatalf("expected the prediction to be stored, have %d", f.repo.count())
	}
	if len(f.usage.calls) != 1 {
		t.Errorf("expected usage to be recorded, got %d calls", len(f.usage.calls))
	}
}

func TestAnalyze_FailureStoresNothing(t *testing.T) {
	f := newFixture(t)
	f.analyzer.err = apperr.AnalysisFailed(errors.New("upstream 500"))

	_, err := f.svc.Analyze(f.admin, f.live.ID)
	if !errors.Is(err, apperr.ErrAnalysisFailed) {
		t.Fatalf("expected ErrAnalysisFailed, got %v", err)
	}
	if f.repo.count() != 0 {
		t.Errorf("expected no stored prediction, got %d", f.repo.count())
	}
	if f.rec.len() != 0 || len(f.usage.calls) != 0 {
		t.Errorf("expected no side effects, got %d events and %d usage calls", f.rec.len(), len(f.usage.calls))
	}
}

func TestAnalyze_Access(t *testing.T) {
	f := newFixture(t)

	if _, err := f.svc.Analyze(f.user, f.live.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("USER: expected ErrForbidden, got %v", err)
	}
	if _, err := f.svc.Analyze(f.reviewer, f.archived.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("archived: expected ErrNotFound, got %v", err)
	}
	if _, err := f.svc.Analyze(f.reviewer, uuid.New()); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown: expected ErrNotFound, got %v", err)
	}
	if _, err := f.svc.Analyze(context.Background(), f.live.ID); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Errorf("anonymous: expected ErrUnauthenticated, got %v", err)
	}
	if f.analyzer.calls != 0 {
		t.Errorf("analyzer should not run, ran %d times", f.analyzer.calls)
	}
}

func TestListForCase(t *testing.T) {
	f := newFixture(t)
	for range 3 {
		if _, err := f.svc.Analyze(f.reviewer, f.live.ID); err != nil {
			t.Fatal(err)
		}
	}

	preds, err := f.svc.ListForCase(f.user, f.live.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(preds) != 3 {
		t.Fatalf("expected 3 predictions, got %d", len(preds))
	}
	for i := 1; i < len(preds); i++ {
		if preds[i].CreatedAt.After(preds[i-1].CreatedAt) {
			t.Errorf("predictions not newest first at %d", i)
		}
	}
	ev := f.rec.last()
	if ev.Action != audit.ActionReadPredictions || ev.Details["predictionsCount"] != 3 {
		t.Errorf("unexpected audit event %+v", ev)
	}

	other, _ := principalCtx(auth.RoleUser)
	if _, err := f.svc.ListForCase(other, f.live.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("other USER: expected ErrForbidden, got %v", err)
	}
}

func TestListForCase_Empty(t *testing.T) {
	f := newFixture(t)
	preds, err := f.svc.ListForCase(f.admin, f.live.ID)
	if err != nil {
		t.Fatal(err)
	}
	if preds == nil || len(preds) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", preds)
	}
}

func TestReview(t *testing.T) {
	f := newFixture(t)
	resp, err := f.svc.Analyze(f.reviewer, f.live.ID)
	if err != nil {
		t.Fatal(err)
	}
	notes, yes := "confirmed hepatotoxicity", true

	p, err := f.svc.Review(f.reviewer, resp.Prediction.ID, ReviewRequest{ReviewNotes: &notes, HumanReviewed: &yes})
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	reviewer := auth.PrincipalFromContext(f.reviewer)
	if !p.HumanReviewed || p.ReviewerID == nil || *p.ReviewerID != reviewer.ID || *p.ReviewNotes != notes {
		t.Errorf("unexpected reviewed prediction %+v", p)
	}
	if ev := f.rec.last(); ev.Action != audit.ActionReviewPrediction || ev.Resource != audit.ResourcePrediction {
		t.Errorf("unexpected audit event %+v", ev)
	}
}

func TestReview_Invalid(t *testing.T) {
	f := newFixture(t)
	notes, yes := "ok", true

	if _, err := f.svc.Review(f.reviewer, uuid.New(), ReviewRequest{ReviewNotes: &notes}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("missing humanReviewed: expected ErrValidation, got %v", err)
	}
	if _, err := f.svc.Review(f.reviewer, uuid.New(), ReviewRequest{ReviewNotes: &notes, HumanReviewed: &yes}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown prediction: expected ErrNotFound, got %v", err)
	}
	if _, err := f.svc.Review(f.user, uuid.New(), ReviewRequest{ReviewNotes: &notes, HumanReviewed: &yes}); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("USER: expected ErrForbidden, got %v", err)
	}
}
