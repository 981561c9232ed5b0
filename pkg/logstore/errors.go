package logstore

import (
	"errors"
	"fmt"
)

// Sentinel errors for store operations.
var (
	// ErrThrottled indicates the request was rate limited by the service.
	ErrThrottled = errors.New("request throttled")

	// ErrUnavailable indicates the service is temporarily unavailable.
	ErrUnavailable = errors.New("service unavailable")

	// ErrLimitExceeded indicates a service quota was exhausted.
	ErrLimitExceeded = errors.New("request limit exceeded")

	// ErrInvalidParameter indicates the service rejected the request
	// parameters. For export tasks this includes windows with no log data.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrNotFound indicates the referenced resource does not exist.
	ErrNotFound = errors.New("resource not found")
)

// StoreError wraps store-specific errors with operation context.
type StoreError struct {
	// Op is the operation that failed (e.g., "ListLogGroups").
	Op string

	// Resource is the log group name or ARN, if applicable.
	Resource string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Resource != "" {
		return fmt.Sprintf("logstore %s: %s: %v", e.Op, e.Resource, e.Err)
	}
	return fmt.Sprintf("logstore %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// IsThrottled returns true if the error indicates rate limiting.
func IsThrottled(err error) bool {
	return errors.Is(err, ErrThrottled)
}

// IsUnavailable returns true if the error indicates service unavailability.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// IsLimitExceeded returns true if the error indicates an exhausted quota.
func IsLimitExceeded(err error) bool {
	return errors.Is(err, ErrLimitExceeded)
}

// IsInvalidParameter returns true if the error indicates rejected parameters.
func IsInvalidParameter(err error) bool {
	return errors.Is(err, ErrInvalidParameter)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRetryable returns true for transient error classes worth retrying with
// backoff: throttling, unavailability, and exhausted request limits.
func IsRetryable(err error) bool {
	return IsThrottled(err) || IsUnavailable(err) || IsLimitExceeded(err)
}
