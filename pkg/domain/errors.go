package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrValidation marks bad input shape or range. Never retried.
	ErrValidation = errors.New("vault: validation failed")
	// ErrAccessDenied is returned for every authorization failure without detail.
	ErrAccessDenied = errors.New("vault: access denied")
	// ErrRateLimited is wrapped by RateLimitError.
	ErrRateLimited = errors.New("vault: too many disclosures, retry later")
	// ErrInternal replaces crypto failures at the caller boundary.
	ErrInternal = errors.New("vault: internal error, contact administrator")
	// ErrConflict signals a lost optimistic-concurrency race.
	ErrConflict = errors.New("vault: record was modified concurrently")

	ErrEmptyInput      = errors.New("vault: empty input")
	ErrNotSet          = errors.New("vault: no secret set")
	ErrInvalidExpiry   = errors.New("vault: expiry must be in the future")
	ErrSelfShare       = errors.New("vault: cannot share a credential with yourself")
	ErrInvalidRotation = errors.New("vault: invalid rotation policy")
	ErrDuplicateName   = errors.New("vault: name already used in this environment")
	ErrOwnersRequired  = errors.New("vault: at least one owner is required")
	ErrInvalidEnum     = errors.New("vault: invalid value")
	ErrNameRequired    = errors.New("vault: name is required")
)

// ValidationError carries the offending field alongside a specific cause.
type ValidationError struct {
	Field string
	Err   error
}

// Invalid builds a ValidationError for field.
func Invalid(field string, err error) *ValidationError {
	return &ValidationError{Field: field, Err: err}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() []error {
	return []error{ErrValidation, e.Err}
}

// RateLimitError tells the caller how long to wait before retrying.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s (retry after %s)", ErrRateLimited.Error(), e.RetryAfter.Round(time.Second))
}

func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

// RetryAfter extracts the retry hint from err, if any.
func RetryAfter(err error) (time.Duration, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl.RetryAfter, true
	}
	return 0, false
}
