package cases

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cjLee-cmd/acuzen-ICBM/internal/domain/audit"
	"github.com/cjLee-cmd/acuzen-ICBM/internal/platform/apperr"
)

type mockRepo struct {
	mu        sync.Mutex
	cases     map[uuid.UUID]*Case
	seq       int64
	numbers   map[string]bool
	conflicts int // number of Create calls to fail with a collision
	creates   int
	preds     map[uuid.UUID]*CriticalCandidate
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		cases:   make(map[uuid.UUID]*Case),
		numbers: make(map[string]bool),
		preds:   make(map[uuid.UUID]*CriticalCandidate),
	}
}

func (m *mockRepo) Create(_ context.Context, c *Case) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	if m.conflicts > 0 {
		m.conflicts--
		return apperr.Conflict("case number collision")
	}
	m.seq++
	num := FormatCaseNumber(time.Now().Year(), m.seq)
	if m.numbers[num] {
		return apperr.Conflict("case number collision")
	}
	m.numbers[num] = true
	c.ID = uuid.New()
	c.CaseNumber = num
	now := time.Now().UTC()
	c.DateReported, c.CreatedAt, c.UpdatedAt = now, now, now
	cp := *c
	m.cases[c.ID] = &cp
	return nil
}

func (m *mockRepo) Get(_ context.Context, id uuid.UUID) (*Case, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cases[id]
	if !ok {
		return nil, apperr.NotFound("case")
	}
	cp := *c
	return &cp, nil
}

func (m *mockRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*Case, error) {
	return m.Get(ctx, id)
}

func (m *mockRepo) List(_ context.Context, f ListFilter) ([]*Case, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Case
	for _, c := range m.cases {
		if c.IsDeleted && !f.IncludeDeleted {
			continue
		}
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		if f.ReporterID != nil && c.ReporterID != *f.ReporterID {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	slices.SortFunc(out, func(a, b *Case) int { return b.DateReported.Compare(a.DateReported) })
	total := len(out)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, total, nil
}

func (m *mockRepo) Update(_ context.Context, c *Case) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.cases[c.ID]
	if !ok || existing.IsDeleted {
		return apperr.NotFound("case")
	}
	cp := *c
	// the real statement never writes these columns
	cp.ReporterID = existing.ReporterID
	cp.CaseNumber = existing.CaseNumber
	cp.UpdatedAt = time.Now().UTC()
	m.cases[c.ID] = &cp
	*c = cp
	return nil
}

func (m *mockRepo) SoftDelete(_ context.Context, id, by uuid.UUID, reason string) (*Case, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cases[id]
	if !ok || c.IsDeleted {
		return nil, apperr.NotFound("case")
	}
	now := time.Now().UTC()
	c.IsDeleted = true
	c.DeletedAt = &now
	c.DeletedBy = &by
	c.DeletionReason = &reason
	cp := *c
	return &cp, nil
}

func (m *mockRepo) ListCritical(_ context.Context, f CriticalFilter) ([]*CriticalCandidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*CriticalCandidate
	for _, c := range m.cases {
		if c.IsDeleted || c.DateReported.Before(f.Since) || !c.Status.Active() {
			continue
		}
		if c.Severity != SeverityHigh && c.Severity != SeverityCritical {
			continue
		}
		if f.ReporterID != nil && c.ReporterID != *f.ReporterID {
			continue
		}
		cp := *c
		cand := &CriticalCandidate{Case: &cp}
		if p, ok := m.preds[c.ID]; ok {
			cand.PredictedSeverity = p.PredictedSeverity
			cand.PredictedConfidence = p.PredictedConfidence
		}
		out = append(out, cand)
	}
	return out, nil
}

// backdate moves a stored case's report time.
func (m *mockRepo) backdate(id uuid.UUID, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cases[id].DateReported = m.cases[id].DateReported.Add(-d)
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
