// Package apperr defines the error kinds returned by the order engine.
//
// Every failure surfaced by a service wraps exactly one of the sentinel kinds
// below, so the transport layer can classify it with errors.Is.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrConflict          = errors.New("conflict")
	ErrValidation        = errors.New("validation error")
)

// NotFound returns an error of kind ErrNotFound.
func NotFound(format string, args ...any) error {
	return wrap(ErrNotFound, format, args...)
}

// Forbidden returns an error of kind ErrForbidden.
func Forbidden(format string, args ...any) error {
	return wrap(ErrForbidden, format, args...)
}

// InvalidTransition returns an error of kind ErrInvalidTransition.
func InvalidTransition(format string, args ...any) error {
	return wrap(ErrInvalidTransition, format, args...)
}

// Conflict returns an error of kind ErrConflict.
func Conflict(format string, args ...any) error {
	return wrap(ErrConflict, format, args...)
}

// Validation returns an error of kind ErrValidation.
func Validation(format string, args ...any) error {
	return wrap(ErrValidation, format, args...)
}

func wrap(kind error, format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), kind)
}

// InsufficientStockError reports a reservation that could not be satisfied.
type InsufficientStockError struct {
	MedicationID string
	Name         string
	Requested    int
}

func (e *InsufficientStockError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("insufficient stock for %s (requested %d)", e.Name, e.Requested)
	}
	return fmt.Sprintf("insufficient stock for medication %s (requested %d)", e.MedicationID, e.Requested)
}

// Is lets errors.Is match the ErrInsufficientStock kind.
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}
