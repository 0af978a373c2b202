package Models

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Sentinel errors. Every typed error below matches exactly one of these
// through errors.Is, so callers never need a type switch.
var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrForbidden         = errors.New("forbidden")
)

// ValidationError reports malformed or missing input. Nothing is written
// when one is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// NotFoundError reports a referenced entity that does not exist.
type NotFoundError struct {
	Entity string
	ID     uint
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ConflictError reports a violated state-machine precondition, including a
// lost optimistic race.
type ConflictError struct {
	Entity string
	ID     uint
	Reason string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %d: %s", e.Entity, e.ID, e.Reason)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// InsufficientStockError is returned when a depot movement would take the
// fuel balance below zero.
type InsufficientStockError struct {
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock: requested %s L, available %s L",
		e.Requested.StringFixed(2), e.Available.StringFixed(2))
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// AuthorizationError reports a caller whose role may not run an operation.
type AuthorizationError struct {
	Role      Role
	Operation string
}

func (e *AuthorizationError) Error() string {
	if e.Role == "" {
		return fmt.Sprintf("forbidden: anonymous caller cannot %s", e.Operation)
	}
	return fmt.Sprintf("forbidden: role %q cannot %s", e.Role, e.Operation)
}

func (e *AuthorizationError) Is(target error) bool { return target == ErrForbidden }

func IsValidation(err error) bool        { return errors.Is(err, ErrValidation) }
func IsNotFound(err error) bool          { return errors.Is(err, ErrNotFound) }
func IsConflict(err error) bool          { return errors.Is(err, ErrConflict) }
func IsInsufficientStock(err error) bool { return errors.Is(err, ErrInsufficientStock) }
func IsForbidden(err error) bool         { return errors.Is(err, ErrForbidden) }
