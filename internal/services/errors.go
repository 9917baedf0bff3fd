package services

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrUnauthenticated is returned when an operation runs without a caller identity.
var ErrUnauthenticated = errors.New("authentication required")

// ValidationError reports malformed input on a single field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError reports a missing record or one the caller does not own.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// ConflictError reports a request that contradicts existing state.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string {
	return e.Reason
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func notFound(resource string, id primitive.ObjectID) error {
	return &NotFoundError{Resource: resource, ID: id.Hex()}
}

func conflict(reason string) error {
	return &ConflictError{Reason: reason}
}

func requireUser(userID primitive.ObjectID) error {
	if userID.IsZero() {
		return ErrUnauthenticated
	}
	return nil
}

// IsValidation, IsNotFound and IsConflict classify domain errors for callers.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsNotFound(err error) bool {
	var n *NotFoundError
	return errors.As(err, &n)
}

func IsConflict(err error) bool {
	var c *ConflictError
	return errors.As(err, &c)
}
