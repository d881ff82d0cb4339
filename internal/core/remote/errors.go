package remote

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get for a missing document.
var ErrNotFound = errors.New("remote: document not found")

// TransientError marks a failure worth retrying: network errors,
// timeouts, and server-side 5xx responses.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return fmt.Sprintf("remote transient: %v", e.Err) }
func (e *TransientError) Unwrap() error { return e.Err }

// RejectionError marks a remote rejection such as a permission or
// validation failure. The queue still retries these up to the cap; the
// two classes are kept distinct so that policy can change in one place.
type RejectionError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *RejectionError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("remote rejected (%d %s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("remote rejected (%d): %s", e.StatusCode, e.Message)
}

// IsRetryable reports whether err should count against a retry budget.
// Cancellations are not failures and are never retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return true
}

// IsTransient reports whether err is a TransientError (including
// context deadline expiry, which is treated identically to a network
// failure).
func IsTransient(err error) bool {
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
