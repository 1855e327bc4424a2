package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNetwork matches failures where no response reached the client.
	ErrNetwork = errors.New("network error")
	// ErrService matches non-success statuses and unparsable bodies.
	ErrService = errors.New("service error")
	// ErrValidation matches local preconditions that were not met.
	ErrValidation = errors.New("validation error")
	// ErrSuperseded is returned for an upload whose response arrived after a newer selection.
	ErrSuperseded = errors.New("upload superseded by a newer selection")
)

// NetworkError reports a connection failure or timeout.
type NetworkError struct {
	Endpoint string
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Endpoint, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrNetwork) match.
func (e *NetworkError) Is(target error) bool { return target == ErrNetwork }

// ServiceError reports a non-success status or a malformed body.
type ServiceError struct {
	Endpoint   string
	StatusCode int
	Message    string
	Err        error
}

func (e *ServiceError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s: service error (status %d): %v", e.Endpoint, e.StatusCode, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: service error (status %d): %s", e.Endpoint, e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("%s: service error (status %d)", e.Endpoint, e.StatusCode)
	}
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrService) match.
func (e *ServiceError) Is(target error) bool { return target == ErrService }

// ValidationError reports an action taken while its precondition was not met.
type ValidationError struct {
	Reason string
}

// NewValidationError builds a ValidationError.
func NewValidationError(reason string) error {
	return &ValidationError{Reason: reason}
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Reason
}

// Is lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }
