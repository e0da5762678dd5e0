// Package errors provides the typed failures surfaced by the analytics
// engine. Only two kinds of errors escape the core: query budget violations
// and upstream HTTP collaborator failures. Everything else degrades to
// zero/empty results so sparse tenants render empty dashboards instead of
// error pages.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents semantic error codes for consistent error handling
type ErrorCode string

const (
	// ErrorCodeBudgetExceeded means a query would scan more rows than the configured cap
	ErrorCodeBudgetExceeded ErrorCode = "QUERY_BUDGET_EXCEEDED"

	// Upstream HTTP collaborator failures
	ErrorCodeUpstreamTimeout  ErrorCode = "UPSTREAM_TIMEOUT"
	ErrorCodeUpstreamRequest  ErrorCode = "UPSTREAM_REQUEST_FAILED"
	ErrorCodeRedirectExceeded ErrorCode = "UPSTREAM_REDIRECT_LIMIT"
)

// BudgetExceededError is returned when an analytics query would load more
// records than its budget allows. It is never silently truncated; the caller
// gets the query name and a suggestion for narrowing the range.
type BudgetExceededError struct {
	Query      string
	MaxRecords int
	Suggestion string
}

// Error implements the error interface
func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("query %q exceeded budget of %d records: %s", e.Query, e.MaxRecords, e.Suggestion)
}

// Code returns the semantic error code
func (e *BudgetExceededError) Code() ErrorCode {
	return ErrorCodeBudgetExceeded
}

// NewBudgetExceeded creates a budget violation error with the standard
// narrowing suggestion.
func NewBudgetExceeded(query string, maxRecords int) *BudgetExceededError {
	return &BudgetExceededError{
		Query:      query,
		MaxRecords: maxRecords,
		Suggestion: "narrow the date range or add filters to reduce the result set",
	}
}

// IsBudgetExceeded reports whether err is a budget violation.
func IsBudgetExceeded(err error) bool {
	var be *BudgetExceededError
	return errors.As(err, &be)
}

// UpstreamKind classifies upstream HTTP collaborator failures.
type UpstreamKind string

const (
	// UpstreamTimeout is a request that exhausted its deadline
	UpstreamTimeout UpstreamKind = "timeout"
	// UpstreamRequest is a general transport or HTTP-status failure
	UpstreamRequest UpstreamKind = "request"
	// UpstreamRedirectLimit means the redirect hop cap was hit
	UpstreamRedirectLimit UpstreamKind = "redirect_limit"
)

// UpstreamError is returned when the external HTTP collaborator fails after
// its retry policy is exhausted.
type UpstreamError struct {
	Kind       UpstreamKind
	URL        string
	Attempts   int
	StatusCode int // 0 when the failure happened below HTTP
	Err        error
}

// Error implements the error interface
func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream %s failure for %s after %d attempts: %v", e.Kind, e.URL, e.Attempts, e.Err)
	}
	return fmt.Sprintf("upstream %s failure for %s after %d attempts", e.Kind, e.URL, e.Attempts)
}

// Unwrap exposes the underlying transport error
func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Code returns the semantic error code
func (e *UpstreamError) Code() ErrorCode {
	switch e.Kind {
	case UpstreamTimeout:
		return ErrorCodeUpstreamTimeout
	case UpstreamRedirectLimit:
		return ErrorCodeRedirectExceeded
	default:
		return ErrorCodeUpstreamRequest
	}
}

// IsUpstreamTimeout reports whether err is an upstream timeout failure.
func IsUpstreamTimeout(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue) && ue.Kind == UpstreamTimeout
}

// IsUpstream reports whether err is any upstream collaborator failure.
func IsUpstream(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue)
}
