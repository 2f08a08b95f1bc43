package models

import (
	"errors"
	"fmt"
)

// Application-wide standard errors
var (
	ErrNotFound          = errors.New("resource not found")
	ErrValidation        = errors.New("validation failed")
	ErrModeMismatch      = errors.New("prompt mode mismatch")
	ErrInvalidTransition = errors.New("invalid execution status transition")
	ErrAlreadyExists     = errors.New("resource already exists")
	ErrUnauthorized      = errors.New("unauthorized")
)

// ErrorType values stored on executions.
const (
	ErrorTypeTruncated = "truncated"
)

// RenderError reports a template variable that had no binding.
type RenderError struct {
	Variable string
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("template variable %q is undefined", e.Variable)
}

func (e *RenderError) Unwrap() error { return ErrValidation }

// TransitionError carries the statuses involved in a rejected transition.
type TransitionError struct {
	From ExecutionStatus
	To   ExecutionStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move execution from %s to %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// Validationf builds a validation error with a formatted reason.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFoundf builds a not-found error with a formatted reason.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// Error codes returned in API error bodies.
const (
	ErrCodeValidation        = "validation_error"
	ErrCodeModeMismatch      = "mode_mismatch"
	ErrCodeNotFound          = "not_found"
	ErrCodeUnauthorized      = "unauthorized"
	ErrCodeConflict          = "conflict"
	ErrCodeInvalidTransition = "invalid_transition"
	ErrCodeInternal          = "internal_error"
)

// ErrorResponse is the body of every API error.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
