package provider

import (
	"errors"
	"fmt"

	"github.com/Domenick1991/travelquotes/internal/domain"
)

// Error is a failed provider call. It matches domain.ErrProviderFailure with errors.Is
// and unwraps to the transport cause, if any.
type Error struct {
	Provider   string
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %s", e.Provider, e.Op)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": status %d", e.StatusCode)
	}
	if e.Body != "" {
		msg += ": " + e.Body
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return target == domain.ErrProviderFailure
}

// Retryable reports whether the caller may try the same call again later.
// Client errors other than 401, 408 and 429 are not retryable.
func (e *Error) Retryable() bool {
	if e.StatusCode == 0 {
		return true
	}
	switch e.StatusCode {
	case 401, 408, 429:
		return true
	}
	return e.StatusCode >= 500
}

// IsRetryable reports whether err is a provider error that may succeed on retry.
func IsRetryable(err error) bool {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Retryable()
	}
	return false
}
