// Package apperr defines the typed failures surfaced by the pipeline engine:
// not found, conflict, validation and persistence errors.
package apperr

import (
	"errors"
	"fmt"
)

// ErrorType represents the type of error
type ErrorType string

const (
	TypeNotFound    ErrorType = "not_found"
	TypeConflict    ErrorType = "conflict"
	TypeValidation  ErrorType = "validation_error"
	TypePersistence ErrorType = "persistence_error"
)

// Sentinels for errors.Is; they match any AppError of the same type.
var (
	ErrNotFound    = &AppError{Type: TypeNotFound, Message: "not found"}
	ErrConflict    = &AppError{Type: TypeConflict, Message: "conflict"}
	ErrValidation  = &AppError{Type: TypeValidation, Message: "validation failed"}
	ErrPersistence = &AppError{Type: TypePersistence, Message: "persistence failure"}
)

// AppError represents an application error with additional context
type AppError struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.Details != "" {
		msg += " (" + e.Details + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AppError) Unwrap() error { return e.Err }

// Is matches on error type so callers can test against the sentinels.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return t.Type == e.Type
}

func NotFound(message string, details ...string) *AppError {
	return &AppError{Type: TypeNotFound, Message: message, Details: first(details)}
}

func Conflict(message string, details ...string) *AppError {
	return &AppError{Type: TypeConflict, Message: message, Details: first(details)}
}

func Validation(message string, details ...string) *AppError {
	return &AppError{Type: TypeValidation, Message: message, Details: first(details)}
}

// Persistence wraps a storage failure. Already typed errors pass through
// unchanged, and nil stays nil.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return err
	}
	return &AppError{Type: TypePersistence, Message: op, Err: err}
}

// TypeOf returns the type of the first AppError in err's chain, or "".
func TypeOf(err error) ErrorType {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Type
	}
	return ""
}

func first(details []string) string {
	if len(details) > 0 {
		return details[0]
	}
	return ""
}
