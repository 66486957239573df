package triage

import (
	"encoding/json"
	"fmt"

	"github.com/cjLee-cmd/acuzen-ICBM/internal/domain/cases"
)

// normalize decodes a completion body into a Result. Missing or wrongly
// typed fields fall back to safe defaults; only unparseable JSON fails.
func normalize(content string) (*Result, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("decode completion: %w", err)
	}

	sev := object(raw["severity"])
	rec := object(raw["recommendations"])

	reasoning, _ := sev["reasoning"].(string)
	if reasoning == "" {
		reasoning = "No reasoning provided"
	}
	level, _ := sev["level"].(string)

	return &Result{
		Severity: SeverityAssessment{
			Severity:    severity(level),
			Confidence:  clamp(sev["confidence"]),
			Reasoning:   reasoning,
			RiskFactors: stringList(sev["riskFactors"]),
		},
		Recommendations: Recommendations{
			ImmediateActions:        stringList(rec["immediateActions"]),
			FollowUpRequired:        stringList(rec["followUpRequired"]),
			RegulatoryNotifications: stringList(rec["regulatoryNotifications"]),
			AdditionalDataNeeded:    stringList(rec["additionalDataNeeded"]),
		},
		Confidence: clamp(raw["overallConfidence"]),
	}, nil
}

func object(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func severity(level string) cases.Severity {
	if s := cases.Severity(level); s.Valid() {
		return s
	}
	return cases.SeverityMedium
}

// clamp returns v as a number in [0,1]; non-numbers become 0.
func clamp(v any) float64 {
	f, ok := v.(float64)
	switch {
	case !ok || f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}

// stringList keeps the string elements of an array; anything else is empty.
func stringList(v any) []string {
	items, ok := v.([]any)
	out := make([]string, 0, len(items))
	if !ok {
		return out
	}
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
