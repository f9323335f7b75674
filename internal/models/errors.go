package models

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by every engine component. Call sites wrap them with
// context; callers match with errors.Is.
var (
	ErrDuplicateName     = errors.New("billbook: duplicate name")
	ErrUnknownCustomer   = errors.New("billbook: unknown customer")
	ErrUnknownItem       = errors.New("billbook: unknown item")
	ErrInvalidItem       = errors.New("billbook: invalid item")
	ErrInvalidAmount     = errors.New("billbook: invalid amount")
	ErrInvalidInput      = errors.New("billbook: invalid input")
	ErrNotFound          = errors.New("billbook: not found")
	ErrOrphanedReference = errors.New("billbook: orphaned reference")
	ErrIntegrity         = errors.New("billbook: integrity check failed")
)

// ValidationError represents a validation failure on one field.
// It unwraps to the sentinel that classifies it.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%v: %s: %s", e.Err, e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Invalid builds a ValidationError classified by err.
func Invalid(err error, field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...), Err: err}
}

// NotFound wraps ErrNotFound with the entity kind and id.
func NotFound(kind EntityKind, id string) error {
	return fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
}
