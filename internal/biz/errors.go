package biz

import (
	"errors"
	"fmt"
	"time"
)

// Custom errors
var (
	ErrResolutionMiss  = errors.New("no place matches the supplied identifiers")
	ErrPlaceNotFound   = errors.New("place not found")
	ErrReviewNotFound  = errors.New("review not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrProviderTimeout = errors.New("provider task timed out")
	ErrProviderError   = errors.New("provider error")
)

// ProviderError is a definitive failure reported by the provider API.
type ProviderError struct {
	Endpoint   string
	TaskID     string
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	if e.TaskID != "" {
		return fmt.Sprintf("provider %s task %s: status %d: %s", e.Endpoint, e.TaskID, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider %s: status %d: %s", e.Endpoint, e.StatusCode, e.Message)
}

func (e *ProviderError) Unwrap() error { return ErrProviderError }

// TimeoutError means the task did not finish within the polling window. The
// task may still complete server-side.
type TimeoutError struct {
	Endpoint string
	TaskID   string
	Waited   time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("provider %s task %s: not ready after %s", e.Endpoint, e.TaskID, e.Waited)
}

func (e *TimeoutError) Unwrap() error { return ErrProviderTimeout }

func invalidArgument(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
