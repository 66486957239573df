package prediction

import (
	"time"

	"github.com/google/uuid"

	"github.com/cjLee-cmd/acuzen-ICBM/internal/domain/triage"
)

// Payload is the structured assessment stored with a prediction.
type Payload struct {
	Severity          triage.SeverityAssessment `json:"severity"`
	Recommendations   triage.Recommendations    `json:"recommendations"`
	AnalysisTimestamp time.Time                 `json:"analysisTimestamp"`
}

// Prediction is one triage result attached to a case.
type Prediction struct {
	ID             uuid.UUID  `json:"id"`
	CaseID         uuid.UUID  `json:"caseId"`
	ModelName      string     `json:"modelName"`
	ModelVersion   string     `json:"modelVersion"`
	Confidence     float64    `json:"confidence"`
	Prediction     Payload    `json:"prediction"`
	Recommendation *string    `json:"recommendation"`
	ProcessingTime *int       `json:"processingTime"`
	HumanReviewed  bool       `json:"humanReviewed"`
	ReviewerID     *uuid.UUID `json:"reviewerId"`
	ReviewNotes    *string    `json:"reviewNotes"`
	CreatedAt      time.Time  `json:"createdAt"`
}

type AnalyzeRequest struct {
	CaseID string `json:"caseId"`
}

// ReviewRequest fields are pointers so a missing field can be told apart
// from a zero value.
type ReviewRequest struct {
	ReviewNotes   *string `json:"reviewNotes"`
	HumanReviewed *bool   `json:"humanReviewed"`
}

// Analysis is the triage result as returned by POST /ai-analysis.
type Analysis struct {
	*triage.Result
	ProcessingTime int `json:"processingTime"`
}

type AnalyzeResponse struct {
	Analysis   Analysis    `json:"analysis"`
	Prediction *Prediction `json:"prediction"`
	Message    string      `json:"message"`
}
