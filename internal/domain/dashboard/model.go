package dashboard

import (
	"time"

	"github.com/google/uuid"

	"github.com/cjLee-cmd/acuzen-ICBM/internal/domain/cases"
)

// SystemHealth is reported as a constant; there is no health model behind it.
const SystemHealth = 98.7

type Stats struct {
	TotalCases    int     `json:"totalCases"`
	PendingCases  int     `json:"pendingCases"`
	CriticalCases int     `json:"criticalCases"`
	AIAccuracy    int     `json:"aiAccuracy"`
	SystemHealth  float64 `json:"systemHealth"`
}

// CaseCount selects live cases. Empty slices match everything.
type CaseCount struct {
	Statuses   []cases.Status
	Severities []cases.Severity
}

type RecentCase struct {
	ID           uuid.UUID      `json:"id"`
	CaseNumber   string         `json:"caseNumber"`
	Drug         string         `json:"drug"`
	Severity     cases.Severity `json:"severity"`
	Status       cases.Status   `json:"status"`
	AIConfidence *int           `json:"aiConfidence"`
	DateReported time.Time      `json:"dateReported"`
}

// RecentRow is a live case with the confidence of its newest prediction.
type RecentRow struct {
	ID           uuid.UUID
	CaseNumber   string
	DrugName     string
	Severity     cases.Severity
	Status       cases.Status
	Confidence   *float64
	DateReported time.Time
}
