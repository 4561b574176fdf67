package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/zamdevio/mdviewer-sub000/internal/ratelimit"
)

// APIError is the JSON error body returned by every endpoint.
type APIError struct {
	status  int
	headers http.Header

	Code    string `doc:"Short error category" json:"error"`
	Message string `doc:"Human readable reason" json:"message"`
	ResetAt *int64 `doc:"Unix milliseconds at which the rate limit window resets" json:"resetAt,omitempty"`
}

// NewAPIError creates an error with the given status, category and message.
func NewAPIError(status int, code, message string) *APIError {
	return &APIError{status: status, Code: code, Message: message}
}

func (e *APIError) Error() string {
	return e.Message
}

// GetStatus implements huma.StatusError.
func (e *APIError) GetStatus() int {
	return e.status
}

// GetHeaders implements huma.HeadersError.
func (e *APIError) GetHeaders() http.Header {
	return e.headers
}

// WithQuota attaches the rate limit headers for q.
func (e *APIError) WithQuota(q ratelimit.Result) *APIError {
	if e.headers == nil {
		e.headers = http.Header{}
	}

	setQuotaHeaders(e.headers, q)

	return e
}

// WithRetryAfter marks the error as a rate limit rejection lasting until q.ResetAt.
func (e *APIError) WithRetryAfter(q ratelimit.Result, now time.Time) *APIError {
	e.WithQuota(q)
	e.headers.Set("Retry-After", strconv.FormatInt(q.RetryAfter(now), 10))

	resetAt := q.ResetAt.UnixMilli()
	e.ResetAt = &resetAt

	return e
}

// NewError replaces huma.NewError so framework generated errors share the APIError shape.
func NewError(status int, msg string, errs ...error) huma.StatusError {
	details := make([]string, 0, len(errs))

	for _, err := range errs {
		if err != nil {
			details = append(details, err.Error())
		}
	}

	if len(details) > 0 {
		msg = msg + ": " + strings.Join(details, "; ")
	}

	return NewAPIError(status, http.StatusText(status), msg)
}

func setQuotaHeaders(h http.Header, q ratelimit.Result) {
	h.Set("X-RateLimit-Limit", strconv.FormatInt(q.Limit, 10))
	h.Set("X-RateLimit-Remaining", strconv.FormatInt(q.Remaining, 10))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(q.ResetAt.UnixMilli(), 10))
}

// Compile-time checks.
var (
	_ huma.StatusError  = (*APIError)(nil)
	_ huma.HeadersError = (*APIError)(nil)
)
