// Package domain holds the core types shared across the analyzer: jobs,
// comments, summaries, and the sentinel errors callers check with errors.Is.
//
// Naming conventions:
//   - Exported errors (Err*): Use for errors that callers need to check with errors.Is
//   - All sentinel errors should be defined as variables, not inline errors.New calls
//   - Use fmt.Errorf with %w to wrap sentinel errors with context
package domain

import "errors"

// Job lookup and mutation errors.
var (
	// ErrNotFound indicates a job id is unknown or past its retention deadline.
	ErrNotFound = errors.New("job not found")

	// ErrConflict indicates a job id already exists in the store.
	ErrConflict = errors.New("job already exists")

	// ErrNotReady indicates an export was requested before the job completed.
	ErrNotReady = errors.New("job not completed yet")

	// ErrTerminalState indicates an attempted transition out of a terminal status.
	ErrTerminalState = errors.New("job is in a terminal state")

	// ErrInvalidTransition indicates a status patch that skips or reverses the
	// queued -> running -> completed|failed order.
	ErrInvalidTransition = errors.New("illegal status transition")
)

// Validation errors.
var (
	// ErrInvalidVideoID indicates the submitted video id or URL could not be
	// resolved to an 11-character YouTube video id.
	ErrInvalidVideoID = errors.New("invalid video id")
)

// Comment source errors.
var (
	// ErrFetchFailed indicates a non-recoverable comment source failure.
	ErrFetchFailed = errors.New("comment fetch failed")

	// ErrRateLimitExceeded indicates the quota retry budget was exhausted.
	ErrRateLimitExceeded = errors.New("comment source rate limit exceeded")
)
