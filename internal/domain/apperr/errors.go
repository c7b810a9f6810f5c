// Package apperr holds the error taxonomy shared by the workflow engine and the
// leave ledger. Every structured error unwraps to one sentinel so callers can
// branch with errors.Is and still reach the details with errors.As.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrValidation          = errors.New("validation failed")
	ErrState               = errors.New("invalid state")
	ErrPermission          = errors.New("permission denied")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// NotFoundError reports a missing document, user, approver or line.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

func NotFound(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func Validation(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// StateError is returned when an operation is not allowed for the current
// document status.
type StateError struct {
	Op     string
	ID     string
	Status string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s document %s in status %s", e.Op, e.ID, e.Status)
}

func (e *StateError) Unwrap() error { return ErrState }

func State(op, id, status string) error {
	return &StateError{Op: op, ID: id, Status: status}
}

type PermissionError struct {
	Op      string
	ActorID string
	Reason  string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("user %s may not %s: %s", e.ActorID, e.Op, e.Reason)
}

func (e *PermissionError) Unwrap() error { return ErrPermission }

func Permission(op, actorID, reason string) error {
	return &PermissionError{Op: op, ActorID: actorID, Reason: reason}
}

// InsufficientBalanceError carries the ledger numbers at the time of the
// failed deduction.
type InsufficientBalanceError struct {
	UserID    string
	Year      int
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient leave balance for %s/%d: available %sh, requested %sh",
		e.UserID, e.Year, e.Available.String(), e.Requested.String())
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// Shortfall is the number of hours missing to satisfy the request.
func (e *InsufficientBalanceError) Shortfall() decimal.Decimal {
	return e.Requested.Sub(e.Available)
}

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsClientError reports whether err was caused by the caller rather than by
// the engine or its storage.
func IsClientError(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrState) ||
		errors.Is(err, ErrPermission) ||
		errors.Is(err, ErrInsufficientBalance)
}

// HTTPStatus maps an engine error onto the status code the transport layer
// answers with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrState):
		return http.StatusConflict
	case errors.Is(err, ErrPermission):
		return http.StatusForbidden
	case errors.Is(err, ErrInsufficientBalance):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Code is the machine readable error code used in API envelopes.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrState):
		return "invalid_state"
	case errors.Is(err, ErrPermission):
		return "forbidden"
	case errors.Is(err, ErrInsufficientBalance):
		return "insufficient_balance"
	default:
		return "internal_error"
	}
}
