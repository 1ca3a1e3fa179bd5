// Package errors classifies failures for retry decisions and carries the
// error kinds surfaced by the workflow core.
package errors

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// Sentinel errors for the failure kinds the orchestrator reacts to.
var (
	// ErrConfigurationMissing marks a required config value absent after the
	// full resolution chain. Fatal at startup.
	ErrConfigurationMissing = errors.New("configuration missing")

	// ErrInputValidation marks missing or malformed workflow input. Returned
	// inside an agent response; the task records a failure.
	ErrInputValidation = errors.New("input validation failed")

	// ErrContinuationGiveUp marks exhausted join strategies. The best-effort
	// content is still returned alongside this error.
	ErrContinuationGiveUp = errors.New("continuation joining exhausted")

	// ErrExecutionLimit marks a workflow that ran past its team budget.
	ErrExecutionLimit = errors.New("exceeded maximum team limit")
)

// TransientError represents an error that can be retried.
type TransientError struct {
	Err        error
	RetryAfter int // seconds, from a Retry-After header when present
	StatusCode int
	Message    string
}

func (e *TransientError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("transient error: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// PermanentError represents an error that should not be retried.
type PermanentError struct {
	Err        error
	StatusCode int
	Message    string
}

func (e *PermanentError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("permanent error: %v", e.Err)
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// RateLimitError marks a provider rate-limit rejection. It is transient but
// follows its own backoff budget, so callers distinguish it from overload.
type RateLimitError struct {
	Err        error
	RetryAfter int
	Message    string
}

func (e *RateLimitError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("rate limited: %v", e.Err)
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}

// As and Is re-export the standard helpers so callers of this package do
// not need a second errors import.
func As(err error, target any) bool { return errors.As(err, target) }
func Is(err, target error) bool     { return errors.Is(err, target) }

// IsRateLimit checks whether err is a rate-limit rejection.
func IsRateLimit(err error) bool {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return true
	}
	return extractHTTPStatusCode(err) == http.StatusTooManyRequests
}

// IsTransient checks if an error is retry-able.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var transientErr *TransientError
	if errors.As(err, &transientErr) {
		return true
	}
	if IsRateLimit(err) {
		return true
	}

	var permanentErr *PermanentError
	if errors.As(err, &permanentErr) {
		return false
	}

	if isNetworkError(err) {
		return true
	}

	if statusCode := extractHTTPStatusCode(err); statusCode > 0 {
		return isTransientHTTPStatus(statusCode)
	}

	if isSyscallError(err) {
		return true
	}

	return false
}

// IsPermanent checks if an error is non-retry-able.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	var permanentErr *PermanentError
	if errors.As(err, &permanentErr) {
		return true
	}
	if errors.Is(err, ErrConfigurationMissing) || errors.Is(err, ErrInputValidation) {
		return true
	}
	if statusCode := extractHTTPStatusCode(err); statusCode > 0 {
		return !isTransientHTTPStatus(statusCode)
	}
	return false
}

// Transient wraps err as retry-able with an LLM-friendly message.
func Transient(err error, message string) *TransientError {
	return &TransientError{Err: err, Message: message}
}

// Permanent wraps err as non-retry-able.
func Permanent(err error, message string) *PermanentError {
	return &PermanentError{Err: err, Message: message}
}

func isNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

func isSyscallError(err error) bool {
	return errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ETIMEDOUT)
}

// extractHTTPStatusCode pulls an HTTP status out of a wrapped or
// string-formatted error. Returns 0 when none is found.
func extractHTTPStatusCode(err error) int {
	var transientErr *TransientError
	if errors.As(err, &transientErr) && transientErr.StatusCode > 0 {
		return transientErr.StatusCode
	}
	var permanentErr *PermanentError
	if errors.As(err, &permanentErr) && permanentErr.StatusCode > 0 {
		return permanentErr.StatusCode
	}

	msg := err.Error()
	for _, code := range []int{
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
		http.StatusUnauthorized,
		http.StatusForbidden,
		http.StatusBadRequest,
	} {
		if strings.Contains(msg, fmt.Sprintf("status %d", code)) ||
			strings.Contains(msg, fmt.Sprintf("status code %d", code)) ||
			strings.Contains(msg, fmt.Sprintf("HTTP %d", code)) {
			return code
		}
	}
	return 0
}

func isTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
