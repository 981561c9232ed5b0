package export

import (
	"errors"
	"fmt"
)

// Severity classifies executor failures for the invoking process.
type Severity string

const (
	// SeverityWarning marks a clean terminal failure: bookmark tags were
	// updated and the job should not be redelivered (e.g. no logs existed
	// for the window).
	SeverityWarning Severity = "warning"

	// SeverityCritical marks an unexpected failure: bookmark tags are
	// unchanged so the next delivery retries the same window.
	SeverityCritical Severity = "critical"
)

// ErrValidation indicates a malformed job message. Non-retryable.
var ErrValidation = errors.New("invalid export job")

// ErrTaskStillRunning indicates the pre-check poll budget was exhausted
// while another export task was running. The job should be redelivered by
// the transport and retried later.
var ErrTaskStillRunning = errors.New("maximum retries reached while checking running export tasks")

// ExportError wraps an executor failure with its severity and the affected
// log group.
type ExportError struct {
	Severity Severity
	LogGroup string
	Msg      string
	Err      error
}

// Error implements the error interface.
func (e *ExportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Severity, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Severity, e.Msg)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ExportError) Unwrap() error {
	return e.Err
}

// IsWarning returns true if the error is a non-escalating export failure.
func IsWarning(err error) bool {
	var ee *ExportError
	return errors.As(err, &ee) && ee.Severity == SeverityWarning
}
