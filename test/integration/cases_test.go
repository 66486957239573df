package integration

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/cjLee-cmd/acuzen-ICBM/internal/domain/audit"
	"github.com/cjLee-cmd/acuzen-ICBM/internal/domain/cases"
	"github.com/cjLee-cmd/acuzen-ICBM/internal/platform/apperr"
	"github.com/cjLee-cmd/acuzen-ICBM/internal/platform/auth"
	"github.com/cjLee-cmd/acuzen-ICBM/internal/platform/db"
)

var caseNumberPattern = regexp.MustCompile(`^CSE-\d{4}-\d{6,}$`)

func newCase(reporter *auth.Principal, sev cases.Severity) *cases.Case {
	return &cases.Case{
		PatientAge:      45,
		PatientGender:   "Female",
		DrugName:        "DrugA",
		AdverseReaction: "Rash",
		Severity:        sev,
		Status:          cases.StatusNeedsReview,
		ReporterID:      reporter.ID,
	}
}

func TestCaseRepo(t *testing.T) {
	ctx := context.Background()
	pool := newSchemaPool(t)
	repo := cases.NewRepoPG(pool)
	reporter := createTestUser(t, ctx, pool, "reporter@example.com", auth.RoleUser).Principal()
	admin := createTestUser(t, ctx, pool, "admin@example.com", auth.RoleAdmin).Principal()

	c := newCase(reporter, cases.SeverityHigh)
	c.DateOfReaction = ptrTime(time.Now().Add(-48 * time.Hour).UTC())
	if err := repo.Create(ctx, c); err != nil {
		t.Fatalf("create: %v", err)
	}
	if !caseNumberPattern.MatchString(c.CaseNumber) {
		t.Errorf("case number %q does not match pattern", c.CaseNumber)
	}

	t.Run("SoftDelete", func(t *testing.T) {
		victim := newCase(reporter, cases.SeverityLow)
		if err := repo.Create(ctx, victim); err != nil {
			t.Fatal(err)
		}
		archived, err := repo.SoftDelete(ctx, victim.ID, admin.ID, "duplicate entry")
		if err != nil {
			t.Fatalf("soft delete: %v", err)
		}
		if !archived.IsDeleted || archived.DeletedBy == nil || *archived.DeletedBy != admin.ID || *archived.DeletionReason != "duplicate entry" {
			t.Errorf("unexpected archived case %+v", archived)
		}
		if _, err := repo.SoftDelete(ctx, victim.ID, admin.ID, "again"); !errors.Is(err, apperr.ErrNotFound) {
			t.Errorf("second delete: expected ErrNotFound, got %v", err)
		}

		live, total, err := repo.List(ctx, cases.ListFilter{Limit: 50})
		if err != nil {
			t.Fatal(err)
		}
		for _, l := range live {
			if l.ID == victim.ID {
				t.Error("archived case listed without includeDeleted")
			}
		}
		all, allTotal, err := repo.List(ctx, cases.ListFilter{Limit: 50, IncludeDeleted: true})
		if err != nil {
			t.Fatal(err)
		}
		if allTotal != total+1 || len(all) != len(live)+1 {
			t.Errorf("expected one more case with includeDeleted, got %d vs %d", allTotal, total)
		}
	})

	t.Run("ReporterImmutable", func(t *testing.T) {
		_, err := pool.Exec(ctx, `UPDATE cases SET reporter_id = $2 WHERE id = $1`, c.ID, admin.ID)
		if err == nil {
			t.Error("expected the immutability trigger to reject reporter_id changes")
		}
	})

	t.Run("CriticalWithPrediction", func(t *testing.T) {
		_, err := pool.Exec(ctx, `
			INSERT INTO ai_predictions (case_id, model_name, model_version, confidence, prediction)
			VALUES ($1, 'gpt-test', '1', 0.9, '{"severity":{"severity":"Critical","confidence":0.9}}')`, c.ID)
		if err != nil {
			t.Fatal(err)
		}
		got, err := repo.ListCritical(ctx, cases.CriticalFilter{Since: time.Now().Add(-24 * time.Hour)})
		if err != nil {
			t.Fatalf("list critical: %v", err)
		}
		if len(got) != 1 || got[0].Case.ID != c.ID {
			t.Fatalf("expected the High case, got %d candidates", len(got))
		}
		if got[0].PredictedSeverity == nil || *got[0].PredictedSeverity != "Critical" || *got[0].PredictedConfidence != 0.9 {
			t.Errorf("unexpected prediction join %+v", got[0])
		}
	})
}

func TestCaseService_Postgres(t *testing.T) {
	ctx := context.Background()
	pool := newSchemaPool(t)
	svc := cases.NewService(cases.NewRepoPG(pool), db.NewTxRunner(pool), audit.Nop{})
	reporter := createTestUser(t, ctx, pool, "u1@example.com", auth.RoleUser).Principal()
	reviewer := createTestUser(t, ctx, pool, "rev@example.com", auth.RoleReviewer).Principal()
	userCtx := auth.WithPrincipal(ctx, reporter)
	reviewerCtx := auth.WithPrincipal(ctx, reviewer)

	age := 45
	req := cases.CreateRequest{
		PatientAge:      &age,
		PatientGender:   "Female",
		DrugName:        "DrugA",
		AdverseReaction: "Rash",
		Severity:        "Medium",
	}

	t.Run("ConcurrentCreateUniqueNumbers", func(t *testing.T) {
		const n = 20
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			numbers = map[string]bool{}
			errs    []error
		)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				c, err := svc.Create(userCtx, req)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					errs = append(errs, err)
					return
				}
				numbers[c.CaseNumber] = true
			}()
		}
		wg.Wait()
		if len(errs) > 0 {
			t.Fatalf("create errors: %v", errs)
		}
		if len(numbers) != n {
			t.Errorf("expected %d unique case numbers, got %d", n, len(numbers))
		}
	})

	t.Run("UpdateInTransaction", func(t *testing.T) {
		c, err := svc.Create(userCtx, req)
		if err != nil {
			t.Fatal(err)
		}
		patch := cases.Patch{"status": []byte(`"InProgress"`), "outcome": []byte(`"Recovering"`)}
		updated, err := svc.Update(reviewerCtx, c.ID, patch)
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if updated.Status != cases.StatusInProgress || updated.ReporterID != reporter.ID {
			t.Errorf("unexpected update %+v", updated)
		}
		got, err := svc.Get(userCtx, c.ID, false)
		if err != nil {
			t.Fatal(err)
		}
		if got.Outcome == nil || *got.Outcome != "Recovering" || got.Status != cases.StatusInProgress {
			t.Errorf("update not persisted: %+v", got)
		}
	})
}
