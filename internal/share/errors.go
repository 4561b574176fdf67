package share

import (
	"errors"
	"fmt"

	"github.com/zamdevio/mdviewer-sub000/internal/ratelimit"
)

// Error kinds. Use errors.Is against these to classify a *Error.
var (
	ErrRateLimited  = errors.New("rate limited")
	ErrTooLarge     = errors.New("too large")
	ErrEmptyContent = errors.New("empty content")
	ErrStorage      = errors.New("storage error")
)

// Error is returned by Service operations.
// Message is safe to show to clients; Err is for logs only.
type Error struct {
	Kind    error
	Message string
	Quota   *ratelimit.Result
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}

	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}

	return []error{e.Kind, e.Err}
}
