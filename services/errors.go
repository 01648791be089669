package services

import (
	"errors"
	"fmt"
)

// ErrNotFound maps to 404. Wrapped with the resource name where useful.
var ErrNotFound = errors.New("record not found")

// ValidationError maps to 400.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// UpstreamError maps to 502 when the upstream data is required for the
// request; advisory callers (leaderboard display names, carbon-backed
// criteria) degrade instead of surfacing it.
type UpstreamError struct {
	Service string
	Err     error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s: %v", e.Service, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }
