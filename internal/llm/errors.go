package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// TransientError marks a failure worth retrying with backoff: network
// errors, rate limiting and server-side errors.
type TransientError struct {
	StatusCode int
	Err        error
}

func (e *TransientError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transient model error (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transient model error: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// Retryable reports true; the retry pipeline in package action counts
// escalated transient errors against its schema budget.
func (e *TransientError) Retryable() bool { return true }

// IsTransient reports whether err is or wraps a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// transientStatus reports whether an HTTP status code is worth retrying.
func transientStatus(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusRequestTimeout || code >= 500
}

// classifyTransport wraps network-level failures as transient. Context
// cancellation is returned unchanged.
func classifyTransport(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return &TransientError{Err: err}
	}
	return err
}
