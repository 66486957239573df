package triage

import (
	"context"
	"strings"
	"time"

	"github.com/cjLee-cmd/acuzen-ICBM/internal/domain/cases"
)

// Analyzer assesses a case's severity. Failures match apperr.ErrAnalysisFailed.
type Analyzer interface {
	Analyze(ctx context.Context, c *cases.Case) (*Result, error)
	// Model identifies the model behind the analyzer.
	Model() (name, version string)
}

type SeverityAssessment struct {
	Severity    cases.Severity `json:"severity"`
	Confidence  float64        `json:"confidence"`
	Reasoning   string         `json:"reasoning"`
	RiskFactors []string       `json:"riskFactors"`
}

type Recommendations struct {
	ImmediateActions        []string `json:"immediateActions"`
	FollowUpRequired        []string `json:"followUpRequired"`
	RegulatoryNotifications []string `json:"regulatoryNotifications"`
	AdditionalDataNeeded    []string `json:"additionalDataNeeded"`
}

// Result is the normalized analysis of one case.
type Result struct {
	Severity        SeverityAssessment `json:"severity"`
	Recommendations Recommendations    `json:"recommendations"`
	Confidence      float64            `json:"confidence"`
	ProcessingTime  time.Duration      `json:"-"`
}

// ProcessingMillis is ProcessingTime in whole milliseconds.
func (r *Result) ProcessingMillis() int {
	return int(r.ProcessingTime / time.Millisecond)
}

// Summary renders the recommendations as one line for list views.
func (r Recommendations) Summary() string {
	var sections []string
	add := func(label string, items []string) {
		if len(items) > 0 {
			sections = append(sections, label+": "+strings.Join(items, ", "))
		}
	}
	add("Immediate actions", r.ImmediateActions)
	add("Follow-up", r.FollowUpRequired)
	add("Regulatory notifications", r.RegulatoryNotifications)
	add("Additional data", r.AdditionalDataNeeded)
	if len(sections) == 0 {
		return "No additional recommendations"
	}
	return strings.Join(sections, " | ")
}
