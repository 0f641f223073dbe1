// Package httpx holds the HTTP plumbing shared by the upstream option-chain
// providers: status errors, retry with exponential backoff, and a per-provider
// cooldown limiter.
package httpx

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// StatusError is returned when an upstream answers with a non-2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.Code)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// StatusCode returns the HTTP status code.
func (e *StatusError) StatusCode() int {
	return e.Code
}

// IsRetryable reports whether err belongs to a transient class worth
// retrying: network errors, timeouts, 408, 429 and 5xx. Other 4xx statuses
// and context cancellation are not retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		code := statusErr.Code
		return code == http.StatusRequestTimeout ||
			code == http.StatusTooManyRequests ||
			code >= 500
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	// Unclassified transport failures (connection reset, EOF) are transient.
	var urlErr interface{ Temporary() bool }
	return errors.As(err, &urlErr)
}
