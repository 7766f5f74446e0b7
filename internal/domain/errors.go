package domain

import (
	"errors"
	"strings"
)

var (
	ErrNotFound            = errors.New("entity not found")
	ErrJobStateConflict    = errors.New("job is not in the expected state")
	ErrPayloadDecode       = errors.New("job payload decode failed")
	ErrUnknownJobType      = errors.New("unknown job type")
	ErrIllegalTransition   = errors.New("illegal quote state transition")
	ErrProviderFailure     = errors.New("flight search provider failed")
	ErrSearchCancelled     = errors.New("flight search cancelled")
	ErrSearchNotReady      = errors.New("quote is missing flight search fields")
	ErrInvalidApprovalStep = errors.New("approval level must be between 0 and 5")
)

// FieldError describes one rejected input field.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError collects field errors found before any state mutation.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Reason)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Add(field, reason string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Reason: reason})
}

// OrNil returns nil when no field errors were collected.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}
