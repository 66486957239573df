package cases

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cjLee-cmd/acuzen-ICBM/internal/platform/apperr"
	"github.com/cjLee-cmd/acuzen-ICBM/internal/platform/auth"
)

// Patch is a partial update keyed by JSON field name.
type Patch map[string]json.RawMessage

// Fields returns the patch keys in sorted order.
func (p Patch) Fields() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type fieldSet map[string]struct{}

func fields(names ...string) fieldSet {
	s := make(fieldSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

func (s fieldSet) has(name string) bool {
	_, ok := s[name]
	return ok
}

// protectedFields are never writable through update, for any role.
// Soft-delete state changes only through SoftDelete.
var protectedFields = fields(
	"id", "caseNumber", "reporterId", "dateReported",
	"isDeleted", "deletedAt", "deletedBy", "deletionReason",
	"createdAt", "updatedAt",
)

// updatableFields maps a role to the fields it may patch. Roles without an
// entry may not update cases at all.
var updatableFields = map[auth.Role]fieldSet{
	auth.RoleReviewer: fields(
		"status", "severity", "outcome",
		"reactionDescription", "medicalHistory", "concomitantMeds", "dateOfReaction",
	),
	auth.RoleAdmin: fields(
		"status", "severity", "outcome",
		"reactionDescription", "medicalHistory", "concomitantMeds", "dateOfReaction",
		"patientAge", "patientGender", "drugName", "drugDosage", "adverseReaction",
	),
}

// CheckPatch rejects a patch holding any field role may not write.
func CheckPatch(role auth.Role, p Patch) error {
	allowed, ok := updatableFields[role]
	if !ok {
		return apperr.Forbidden(fmt.Sprintf("role %s may not update cases", role))
	}
	if len(p) == 0 {
		return apperr.Invalid("", "no fields to update")
	}
	for _, f := range p.Fields() {
		switch {
		case protectedFields.has(f):
			return apperr.Invalid(f, "cannot be modified")
		case !allowed.has(f):
			return apperr.Invalid(f, "may not be modified by role %s", role)
		}
	}
	return nil
}

var errNull = errors.New("value may not be null")

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func decodeRequired[T any](raw json.RawMessage, dst *T) error {
	if isNull(raw) {
		return errNull
	}
	return json.Unmarshal(raw, dst)
}

func decodeOptional[T any](raw json.RawMessage, dst **T) error {
	if isNull(raw) {
		*dst = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	*dst = &v
	return nil
}

func decodeDate(raw json.RawMessage, dst **time.Time) error {
	var s *string
	if err := decodeOptional(raw, &s); err != nil {
		return err
	}
	if s == nil || *s == "" {
		*dst = nil
		return nil
	}
	t, err := parseDate(*s)
	if err != nil {
		return err
	}
	*dst = &t
	return nil
}

// parseDate accepts RFC 3339 timestamps and plain YYYY-MM-DD dates.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected RFC 3339 or YYYY-MM-DD, got %q", s)
	}
	return t, nil
}

// Apply writes the patch onto c. CheckPatch must have accepted it first.
func (p Patch) Apply(c *Case) error {
	for _, f := range p.Fields() {
		raw := p[f]
		var err error
		switch f {
		case "patientAge":
			err = decodeRequired(raw, &c.PatientAge)
		case "patientGender":
			err = decodeRequired(raw, &c.PatientGender)
		case "drugName":
			err = decodeRequired(raw, &c.DrugName)
		case "drugDosage":
			err = decodeOptional(raw, &c.DrugDosage)
		case "adverseReaction":
			err = decodeRequired(raw, &c.AdverseReaction)
		case "reactionDescription":
			err = decodeOptional(raw, &c.ReactionDescription)
		case "severity":
			err = decodeRequired(raw, &c.Severity)
		case "status":
			err = decodeRequired(raw, &c.Status)
		case "dateOfReaction":
			err = decodeDate(raw, &c.DateOfReaction)
		case "concomitantMeds":
			var t RawText
			if err = t.UnmarshalJSON(raw); err == nil {
				c.ConcomitantMeds = t.Ptr()
			}
		case "medicalHistory":
			err = decodeOptional(raw, &c.MedicalHistory)
		case "outcome":
			err = decodeOptional(raw, &c.Outcome)
		default:
			return apperr.Invalid(f, "unknown field")
		}
		if err != nil {
			return apperr.Invalid(f, "invalid value: %v", err)
		}
	}
	return nil
}

// RawText decodes a JSON string as-is and any other JSON value as its
// compact text.
type RawText struct {
	value string
	set   bool
}

func (t *RawText) UnmarshalJSON(b []byte) error {
	if isNull(b) {
		*t = RawText{}
		return nil
	}
	trimmed := bytes.TrimSpace(b)
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*t = RawText{value: s, set: true}
		return nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return err
	}
	*t = RawText{value: buf.String(), set: true}
	return nil
}

// Text wraps a plain string.
func Text(s string) RawText { return RawText{value: s, set: true} }

// Ptr returns nil for an absent or blank value.
func (t RawText) Ptr() *string {
	if !t.set || strings.TrimSpace(t.value) == "" {
		return nil
	}
	v := t.value
	return &v
}

// validate checks the invariants every stored case must satisfy.
func validate(c *Case) error {
	switch {
	case c.PatientAge < 0 || c.PatientAge > 150:
		return apperr.Invalid("patientAge", "must be between 0 and 150")
	case strings.TrimSpace(c.PatientGender) == "":
		return apperr.Invalid("patientGender", "is required")
	case strings.TrimSpace(c.DrugName) == "":
		return apperr.Invalid("drugName", "is required")
	case strings.TrimSpace(c.AdverseReaction) == "":
		return apperr.Invalid("adverseReaction", "is required")
	case !c.Severity.Valid():
		return apperr.Invalid("severity", "must be one of: Low, Medium, High, Critical")
	case !c.Status.Valid():
		return apperr.Invalid("status", "must be one of: Urgent, NeedsReview, InProgress, Complete")
	}
	return nil
}
