package prediction

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cjLee-cmd/acuzen-ICBM/internal/domain/audit"
	"github.com/cjLee-cmd/acuzen-ICBM/internal/domain/cases"
	"github.com/cjLee-cmd/acuzen-ICBM/internal/domain/triage"
	"github.com/cjLee-cmd/acuzen-ICBM/internal/platform/apperr"
	"github.com/cjLee-cmd/acuzen-ICBM/internal/platform/auth"
)

type mockRepo struct {
	mu    sync.Mutex
	preds map[uuid.UUID]*Prediction
	clock time.Time
}

func newMockRepo() *mockRepo {
	return &mockRepo{preds: make(map[uuid.UUID]*Prediction), clock: time.Now().UTC()}
}

func (m *mockRepo) Create(ctx context.Context, p *Prediction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock = m.clock.Add(time.Second)
	p.ID = uuid.New()
	p.CreatedAt = m.clock
	cp := *p
	m.preds[p.ID] = &cp
	return nil
}

func (m *mockRepo) ListByCase(_ context.Context, caseID uuid.UUID) ([]*Prediction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Prediction
	for _, p := range m.preds {
		if p.CaseID == caseID {
			cp := *p
			out = append(out, &cp)
		}
	}
	slices.SortFunc(out, func(a, b *Prediction) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

func (m *mockRepo) Review(_ context.Context, id, reviewerID uuid.UUID, notes string, reviewed bool) (*Prediction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.preds[id]
	if !ok {
		return nil, apperr.NotFound("prediction")
	}
	p.HumanReviewed = reviewed
	p.ReviewerID = &reviewerID
	p.ReviewNotes = &notes
	cp := *p
	return &cp, nil
}

func (m *mockRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.preds)
}

// caseStore mirrors the read rules of the case service.
type caseStore map[uuid.UUID]*cases.Case

func (s caseStore) Visible(ctx context.Context, id uuid.UUID) (*cases.Case, error) {
	p := auth.PrincipalFromContext(ctx)
	if p == nil {
		return nil, apperr.ErrUnauthenticated
	}
	c, ok := s[id]
	if !ok || c.IsDeleted {
		return nil, apperr.NotFound("case")
	}
	if p.Role == auth.RoleUser && c.ReporterID != p.ID {
		return nil, apperr.Forbidden("access denied")
	}
	return c, nil
}

type fakeAnalyzer struct {
	result *triage.Result
	err    error
	calls  int
	// during runs inside Analyze, standing in for the slow upstream call.
	during func()
}

func (f *fakeAnalyzer) Model() (string, string) { return "gpt-test", "1.0" }

func (f *fakeAnalyzer) Analyze(context.Context, *cases.Case) (*triage.Result, error) {
	f.calls++
	if f.during != nil {
		f.during()
	}
	if f.err != nil {
		return nil, f.err
	}
	cp := *f.result
	return &cp, nil
}

type usageCall struct {
	name, version string
	millis        int
}

type usage struct {
	calls []usageCall
}

func (u *usage) RecordPrediction(_ context.Context, name, version string, ms int) {
	u.calls = append(u.calls, usageCall{name, version, ms})
}

type recorder struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *recorder) Record(_ context.Context, ev audit.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) last() audit.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}
