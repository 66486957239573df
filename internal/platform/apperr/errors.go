// Package apperr holds the error taxonomy shared by every domain package and
// its mapping onto HTTP responses.
package apperr

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrUnauthenticated: no session, bad session, or inactive user.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrInvalidCredentials shares the 401 status with ErrUnauthenticated so a
	// failed login cannot be used to probe which accounts exist.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrForbidden          = errors.New("insufficient permissions")
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("validation failed")
	ErrConflict           = errors.New("conflict")
	ErrRateLimited        = errors.New("too many requests")
	ErrAnalysisFailed     = errors.New("AI analysis failed")
)

// ValidationError carries field-level explanation text. It matches
// ErrValidation with errors.Is.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Invalid builds a ValidationError for field.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// NotFound wraps ErrNotFound with the resource name, e.g. "case not found".
func NotFound(resource string) error {
	return fmt.Errorf("%s %w", resource, ErrNotFound)
}

// Forbidden wraps ErrForbidden with an operator-facing reason.
func Forbidden(reason string) error {
	return fmt.Errorf("%w: %s", ErrForbidden, reason)
}

// Conflict wraps ErrConflict with a description of the clashing value.
func Conflict(what string) error {
	return fmt.Errorf("%w: %s", ErrConflict, what)
}

// AnalysisFailed wraps ErrAnalysisFailed around the underlying cause.
func AnalysisFailed(cause error) error {
	return &analysisError{cause: cause}
}

type analysisError struct{ cause error }

func (e *analysisError) Error() string {
	return fmt.Sprintf("%s: %v", ErrAnalysisFailed.Error(), e.cause)
}

func (e *analysisError) Is(target error) bool { return target == ErrAnalysisFailed }

func (e *analysisError) Unwrap() error { return e.cause }

// RateLimitError matches ErrRateLimited and tells the client when to retry.
type RateLimitError struct {
	RetryAfter time.Duration
}

func RateLimited(retryAfter time.Duration) error {
	return &RateLimitError{RetryAfter: retryAfter}
}

func (e *RateLimitError) Error() string { return ErrRateLimited.Error() }

func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimited }

// Seconds rounds RetryAfter up to whole seconds, minimum 1.
func (e *RateLimitError) Seconds() int {
	s := int(math.Ceil(e.RetryAfter.Seconds()))
	if s < 1 {
		s = 1
	}
	return s
}
