package cases

import (
	"time"

	"github.com/google/uuid"
)

type Severity string

const (
	SeverityLow      Severity = "Low"
	SeverityMedium   Severity = "Medium"
	SeverityHigh     Severity = "High"
	SeverityCritical Severity = "Critical"
)

var Severities = []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// DefaultOutcome is stored when a report does not state an outcome.
const DefaultOutcome = "Ongoing"

// Status is the review workflow state.
type Status string

const (
	StatusUrgent      Status = "Urgent"
	StatusNeedsReview Status = "NeedsReview"
	StatusInProgress  Status = "InProgress"
	StatusComplete    Status = "Complete"
)

func (s Status) Valid() bool {
	switch s {
	case StatusUrgent, StatusNeedsReview, StatusInProgress, StatusComplete:
		return true
	}
	return false
}

// Active reports whether the case still needs work.
func (s Status) Active() bool {
	return s.Valid() && s != StatusComplete
}

// Case is one adverse-event report.
type Case struct {
	ID                  uuid.UUID  `json:"id"`
	CaseNumber          string     `json:"caseNumber"`
	PatientAge          int        `json:"patientAge"`
	PatientGender       string     `json:"patientGender"`
	DrugName            string     `json:"drugName"`
	DrugDosage          *string    `json:"drugDosage"`
	AdverseReaction     string     `json:"adverseReaction"`
	ReactionDescription *string    `json:"reactionDescription"`
	Severity            Severity   `json:"severity"`
	Status              Status     `json:"status"`
	ReporterID          uuid.UUID  `json:"reporterId"`
	DateReported        time.Time  `json:"dateReported"`
	DateOfReaction      *time.Time `json:"dateOfReaction"`
	ConcomitantMeds     *string    `json:"concomitantMeds"`
	MedicalHistory      *string    `json:"medicalHistory"`
	Outcome             *string    `json:"outcome"`
	IsDeleted           bool       `json:"isDeleted"`
	DeletedAt           *time.Time `json:"deletedAt"`
	DeletedBy           *uuid.UUID `json:"deletedBy"`
	DeletionReason      *string    `json:"deletionReason"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

// CreateRequest is the POST /cases body. reporterId is never read from it.
type CreateRequest struct {
	PatientAge          *int    `json:"patientAge" validate:"required,gte=0,lte=150"`
	PatientGender       string  `json:"patientGender" validate:"required,max=32"`
	DrugName            string  `json:"drugName" validate:"required,max=255"`
	DrugDosage          *string `json:"drugDosage" validate:"omitempty,max=255"`
	AdverseReaction     string  `json:"adverseReaction" validate:"required,max=255"`
	ReactionDescription *string `json:"reactionDescription"`
	Severity            string  `json:"severity" validate:"required,oneof=Low Medium High Critical"`
	Status              string  `json:"status" validate:"omitempty,oneof=Urgent NeedsReview InProgress Complete"`
	DateOfReaction      *string `json:"dateOfReaction"`
	// ConcomitantMeds accepts a string or a JSON list; lists are stored as
	// their JSON text.
	ConcomitantMeds RawText `json:"concomitantMeds"`
	MedicalHistory  *string `json:"medicalHistory"`
	Outcome         *string `json:"outcome"`
}

type DeleteRequest struct {
	DeletionReason string `json:"deletionReason"`
}

type ListFilter struct {
	Status         Status
	ReporterID     *uuid.UUID
	IncludeDeleted bool
	Limit          int
	Offset         int
}

// CriticalFilter selects candidates for the critical view.
type CriticalFilter struct {
	Since      time.Time
	ReporterID *uuid.UUID
}

// CriticalCandidate is a case plus its latest prediction, if any.
type CriticalCandidate struct {
	Case                *Case
	PredictedSeverity   *string
	PredictedConfidence *float64
}

// CriticalCase is one row of GET /cases/critical.
type CriticalCase struct {
	ID                uuid.UUID    `json:"id"`
	CaseNumber        string       `json:"caseNumber"`
	PatientAge        int          `json:"patientAge"`
	PatientGender     string       `json:"patientGender"`
	DrugName          string       `json:"drugName"`
	SuspectedReaction string       `json:"suspectedReaction"`
	Severity          Severity     `json:"severity"`
	Outcome           string       `json:"outcome"`
	AIPrediction      *AIPredicted `json:"aiPrediction"`
	CreatedAt         time.Time    `json:"createdAt"`
	DaysSinceReport   int          `json:"daysSinceReport"`
}

type AIPredicted struct {
	Severity   string `json:"severity"`
	Confidence int    `json:"confidence"`
}
