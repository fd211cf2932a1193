package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/studyhall/llmroute/llm"
)

// mapHTTPError classifies an upstream HTTP status into the error taxonomy.
// Classification is structural only: the status code decides, the message is
// carried for humans and never inspected.
func mapHTTPError(status int, msg, provider string, retryAfter time.Duration) *llm.Error {
	switch {
	case status == http.StatusTooManyRequests:
		e := &llm.Error{
			Code:       llm.ErrRateLimited,
			Message:    msg,
			HTTPStatus: status,
			Retryable:  true,
			Provider:   provider,
		}
		if retryAfter > 0 {
			e.RetryAfter = retryAfter
		}
		return e
	case status == http.StatusBadRequest,
		status == http.StatusUnauthorized,
		status == http.StatusForbidden,
		status == http.StatusNotFound,
		status == http.StatusRequestEntityTooLarge,
		status == http.StatusUnprocessableEntity:
		return &llm.Error{
			Code:       llm.ErrInvalidRequest,
			Message:    msg,
			HTTPStatus: status,
			Provider:   provider,
		}
	case status >= 500:
		return &llm.Error{
			Code:       llm.ErrUnavailable,
			Message:    msg,
			HTTPStatus: status,
			Retryable:  true,
			Provider:   provider,
		}
	default:
		return &llm.Error{
			Code:       llm.ErrUnknown,
			Message:    msg,
			HTTPStatus: status,
			Provider:   provider,
		}
	}
}

// mapTransportError classifies a failure that happened before any HTTP status
// arrived: timeouts, connection refusals, DNS trouble. All of these are
// unavailability from the router's point of view.
func mapTransportError(err error, provider string) *llm.Error {
	msg := "request failed: " + err.Error()
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) {
		msg = "request timed out"
	} else if errors.As(err, &netErr) && netErr.Timeout() {
		msg = "network timeout: " + err.Error()
	}

	return llm.NewError(llm.ErrUnavailable, msg).
		WithProvider(provider).
		WithRetryable(true).
		WithCause(err)
}

// readErrorMessage extracts a human-readable message from an error response
// body. It understands the common {"error":{"message":...}} envelope and
// falls back to the raw body. The result is only ever logged or surfaced to
// humans; classification never depends on it.
func readErrorMessage(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil {
		return "failed to read error response"
	}

	var envelope struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err == nil && envelope.Error.Message != "" {
		if envelope.Error.Type != "" {
			return fmt.Sprintf("%s (type: %s)", envelope.Error.Message, envelope.Error.Type)
		}
		return envelope.Error.Message
	}
	return string(data)
}

// parseRetryAfter reads the Retry-After header, accepting both delta-seconds
// and HTTP-date forms. Zero means the header was absent or unparseable.
func parseRetryAfter(h http.Header) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
