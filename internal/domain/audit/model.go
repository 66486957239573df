package audit

import (
	"time"

	"github.com/google/uuid"
)

// Severity tiers for audit entries.
type Severity string

const (
	SeverityInfo    Severity = "INFO"
	SeverityWarning Severity = "WARNING"
	SeverityHigh    Severity = "HIGH"
)

func (s Severity) Valid() bool {
	return s == SeverityInfo || s == SeverityWarning || s == SeverityHigh
}

// Actions recorded by the application.
const (
	ActionLogin             = "LOGIN"
	ActionLoginFailed       = "LOGIN_FAILED"
	ActionLogout            = "LOGOUT"
	ActionIssueToken        = "ISSUE_API_TOKEN"
	ActionCreateUser        = "CREATE_USER"
	ActionUpdateUser        = "UPDATE_USER"
	ActionDeleteUser        = "DELETE_USER"
	ActionReadCasesList     = "READ_CASES_LIST"
	ActionReadCriticalCases = "READ_CRITICAL_CASES"
	ActionReadCase          = "READ_CASE"
	ActionCreateCase        = "CREATE_CASE"
	ActionUpdateCase        = "UPDATE_CASE"
	ActionSoftDeleteCase    = "SOFT_DELETE_CASE"
	ActionAIAnalysis        = "AI_ANALYSIS"
	ActionReadPredictions   = "READ_AI_PREDICTIONS"
	ActionReviewPrediction  = "REVIEW_AI_PREDICTION"
	ActionCreateAIModel     = "CREATE_AI_MODEL"
	ActionUpdateAIModel     = "UPDATE_AI_MODEL"
)

// Resource names.
const (
	ResourceAuth       = "auth"
	ResourceUser       = "users"
	ResourceCase       = "cases"
	ResourcePrediction = "ai_predictions"
	ResourceAIModel    = "ai_models"
)

// Entry is one persisted audit_logs row.
type Entry struct {
	ID         uuid.UUID      `json:"id"`
	UserID     *uuid.UUID     `json:"userId"`
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	ResourceID *string        `json:"resourceId"`
	Details    map[string]any `json:"details,omitempty"`
	IPAddress  *string        `json:"ipAddress"`
	UserAgent  *string        `json:"userAgent"`
	Severity   Severity       `json:"severity"`
	Timestamp  time.Time      `json:"timestamp"`
}

// Event is what callers hand to the Recorder.
type Event struct {
	// ActorID overrides the principal found in the context. Leave nil for
	// the authenticated caller; use Anonymous for system or failed-login
	// entries.
	ActorID    *uuid.UUID
	Anonymous  bool
	Action     string
	Resource   string
	ResourceID string
	Details    map[string]any
	Severity   Severity
}

// Filter narrows List.
type Filter struct {
	UserID   *uuid.UUID
	Severity Severity
	Action   string
	Limit    int
	Offset   int
}
