package triage

import (
	"fmt"
	"strings"
	"time"

	"github.com/cjLee-cmd/acuzen-ICBM/internal/domain/cases"
)

const systemPrompt = `You are an expert pharmacovigilance analyst specialized in adverse drug reaction assessment.

Analyze adverse drug reaction (ADR) cases according to international pharmacovigilance standards, including the ICH E2B guidelines, and provide:

1. SEVERITY ASSESSMENT: classify the severity as Low, Medium, High or Critical based on
   - patient safety implications
   - life-threatening potential
   - hospitalization requirements
   - disability or significant incapacity
   - congenital anomaly or birth defect
   - death or life-threatening events

2. RECOMMENDATIONS: actionable recommendations for
   - immediate actions required
   - follow-up investigations needed
   - regulatory notifications required
   - additional data collection needs

Respond with JSON in exactly this structure:
{
  "severity": {
    "level": "Low|Medium|High|Critical",
    "confidence": 0.0-1.0,
    "reasoning": "detailed explanation",
    "riskFactors": ["factor1", "factor2"]
  },
  "recommendations": {
    "immediateActions": ["action1", "action2"],
    "followUpRequired": ["followup1", "followup2"],
    "regulatoryNotifications": ["notification1"],
    "additionalDataNeeded": ["data1", "data2"]
  },
  "overallConfidence": 0.0-1.0
}`

func orDefault(s *string, def string) string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return def
	}
	return *s
}

// userPrompt lists the clinical fields of c.
func userPrompt(c *cases.Case) string {
	var b strings.Builder
	b.WriteString("Please analyze this adverse drug reaction case:\n\nCASE DETAILS:\n")

	drug := c.DrugName
	if c.DrugDosage != nil && *c.DrugDosage != "" {
		drug += " (" + *c.DrugDosage + ")"
	}
	onset := "Not specified"
	if c.DateOfReaction != nil {
		onset = c.DateOfReaction.Format(time.DateOnly)
	}

	fmt.Fprintf(&b, "- Case Number: %s\n", c.CaseNumber)
	fmt.Fprintf(&b, "- Patient: %d years, %s\n", c.PatientAge, c.PatientGender)
	fmt.Fprintf(&b, "- Drug: %s\n", drug)
	fmt.Fprintf(&b, "- Adverse Reaction: %s\n", c.AdverseReaction)
	fmt.Fprintf(&b, "- Reaction Description: %s\n", orDefault(c.ReactionDescription, "Not provided"))
	fmt.Fprintf(&b, "- Current Severity: %s\n", c.Severity)
	fmt.Fprintf(&b, "- Current Status: %s\n", c.Status)
	fmt.Fprintf(&b, "- Date of Reaction: %s\n", onset)
	fmt.Fprintf(&b, "- Concomitant Medications: %s\n", orDefault(c.ConcomitantMeds, "None reported"))
	fmt.Fprintf(&b, "- Medical History: %s\n", orDefault(c.MedicalHistory, "Not provided"))
	fmt.Fprintf(&b, "- Outcome: %s\n", orDefault(c.Outcome, "Unknown"))
	fmt.Fprintf(&b, "- Report Date: %s\n", c.DateReported.UTC().Format(time.RFC3339))
	b.WriteString("\nProvide a comprehensive pharmacovigilance analysis with severity assessment and recommendations according to international standards.")
	return b.String()
}
