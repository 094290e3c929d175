// Package domain provides shared domain-level sentinel errors.
package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates the write collided with existing state (duplicate email, stale update).
var ErrConflict = errors.New("conflict")

// ErrValidation indicates the caller supplied invalid input.
var ErrValidation = errors.New("validation failed")

// FieldError is a validation failure on one input field. It matches
// ErrValidation under errors.Is.
type FieldError struct {
	Field string
	Msg   string
}

// Invalid builds a FieldError for field with a formatted message.
func Invalid(field, format string, args ...any) error {
	return &FieldError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

func (e *FieldError) Error() string {
	return ErrValidation.Error() + ": " + e.Msg
}

func (e *FieldError) Is(target error) bool {
	return target == ErrValidation
}
