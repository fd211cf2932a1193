package llm

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode is the closed error taxonomy of the engine. Callers always
// receive one of these codes, never a raw provider-specific error shape.
type ErrorCode string

const (
	// Admission control rejections. Fatal to the request, never retried
	// internally; the caller must wait for the window to roll or raise limits.
	ErrPerRequestCeiling    ErrorCode = "PER_REQUEST_CEILING_EXCEEDED"
	ErrDailyBudgetExhausted ErrorCode = "DAILY_BUDGET_EXHAUSTED"

	// Provider failures. RateLimited, Unavailable, and Unknown trigger
	// fallback escalation within the same Route call; InvalidRequest aborts
	// the chain because retrying elsewhere cannot help.
	ErrRateLimited    ErrorCode = "RATE_LIMITED"
	ErrUnavailable    ErrorCode = "UNAVAILABLE"
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST"
	ErrUnknown        ErrorCode = "UNKNOWN"

	// ErrChainExhausted aggregates per-provider failures after every adapter
	// in the resolved chain has failed.
	ErrChainExhausted ErrorCode = "CHAIN_EXHAUSTED"

	// ErrCacheUnavailable is internal to the response cache. It is logged and
	// absorbed there; it never propagates to a Route caller.
	ErrCacheUnavailable ErrorCode = "CACHE_UNAVAILABLE"
)

// Error is the structured error carried through the engine. Classification is
// attached structurally at the point the error is created; it is never
// inferred from message text.
type Error struct {
	Code       ErrorCode     `json:"code"`
	Message    string        `json:"message"`
	HTTPStatus int           `json:"http_status,omitempty"`
	Retryable  bool          `json:"retryable"`
	Provider   string        `json:"provider,omitempty"`
	RetryAfter time.Duration `json:"retry_after,omitempty"`
	Cause      error         `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Cause }

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus sets the upstream HTTP status code.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithRetryable marks the error as recoverable via fallback escalation.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithProvider attributes the error to a provider.
func (e *Error) WithProvider(provider string) *Error {
	e.Provider = provider
	return e
}

// WithRetryAfter records an upstream retry-after hint.
func (e *Error) WithRetryAfter(d time.Duration) *Error {
	e.RetryAfter = d
	return e
}

// CodeOf extracts the error code from an error, or "" if it carries none.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsRetryable reports whether the error may be recovered by trying the next
// provider in the chain.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}
