package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/sashabaranov/go-openai"
)

// transientStatus lists HTTP statuses that are worth retrying.
var transientStatus = map[int]bool{
	408: true, // request timeout
	409: true, // conflict (lock contention)
	425: true, // too early
	429: true, // rate limited
	500: true,
	502: true,
	503: true,
	504: true,
	529: true, // anthropic overloaded
}

// TransientError marks a provider failure that may succeed on retry.
type TransientError struct {
	// StatusCode is the HTTP status, 0 for network failures.
	StatusCode int
	Err        error
}

func (e *TransientError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transient (HTTP %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transient: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is, or wraps, a *TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// StatusCode extracts the HTTP status from a provider error, or 0.
func StatusCode(err error) int {
	var anthropicErr *anthropic.Error
	if errors.As(err, &anthropicErr) {
		return anthropicErr.StatusCode
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

// Classify wraps err in a *TransientError when it is a retryable
// status, a network timeout, a reset connection, or an expired deadline.
// Other errors are returned unchanged and should be treated as permanent.
// Cancellation is never transient.
func Classify(err error) error {
	if err == nil || IsTransient(err) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	if code := StatusCode(err); code != 0 {
		if transientStatus[code] {
			return &TransientError{StatusCode: code, Err: err}
		}
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) {
		return &TransientError{Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TransientError{Err: err}
	}

	return err
}
