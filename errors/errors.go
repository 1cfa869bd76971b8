// Package errors holds the sentinel errors shared by the chat services and the HTTP layer.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

var (
	ErrWorkerPanic         = fmt.Errorf("worker panic")
	ErrValidation          = fmt.Errorf("validation failed")
	ErrAlreadyExists       = fmt.Errorf("participant already registered")
	ErrNotFound            = fmt.Errorf("participant not found")
	ErrSenderNotRegistered = fmt.Errorf("not logged in")
	ErrStoreUnavailable    = fmt.Errorf("store unavailable")
)

// ValidationError lists every offending field, not just the first one.
type ValidationError struct {
	Fields   []string
	Messages []string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: []string{field}, Messages: []string{message}}
}

func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, field)
	e.Messages = append(e.Messages, message)
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(e.Messages, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// StoreUnavailable wraps a persistence failure so callers can match ErrStoreUnavailable.
func StoreUnavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, op, err)
}

func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

func As(err error, target any) bool {
	return stderrors.As(err, target)
}
