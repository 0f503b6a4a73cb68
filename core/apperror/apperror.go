// Package apperror defines the error taxonomy shared by the store, the page
// registry, the navigation engine and the event dispatcher.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrReferential    = errors.New("referential integrity violation")
	ErrStorage        = errors.New("storage failure")
	ErrClassification = errors.New("unclassifiable event")
	ErrValidation     = errors.New("validation error")
)

// NotFoundError reports a lookup of an unknown identifier.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found with id %s", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// Code is picked up by the logging layer as err_code.
func (e *NotFoundError) Code() string { return "NOT_FOUND" }

// ReferentialError reports an interaction written for a user the store does not know.
type ReferentialError struct {
	UserID int64
	Err    error
}

func (e *ReferentialError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("user %d is not registered: %v", e.UserID, e.Err)
	}
	return fmt.Sprintf("user %d is not registered", e.UserID)
}

// Unwrap exposes both the sentinel and the driver error.
func (e *ReferentialError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrReferential}
	}
	return []error{ErrReferential, e.Err}
}

func (e *ReferentialError) Code() string { return "REFERENTIAL" }

// StorageError wraps a durable I/O failure together with the store operation.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() []error {
	return []error{ErrStorage, e.Err}
}

func (e *StorageError) Code() string { return "STORAGE" }

// ClassificationError reports an inbound event that matches no known shape.
type ClassificationError struct {
	Reason string
}

func (e *ClassificationError) Error() string {
	return "unclassifiable event: " + e.Reason
}

func (e *ClassificationError) Unwrap() error { return ErrClassification }

func (e *ClassificationError) Code() string { return "CLASSIFICATION" }

// ValidationError reports a rejected argument or configuration value.
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

func (e *ValidationError) Code() string { return "VALIDATION" }

// NotFound builds a NotFoundError.
func NotFound(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// Storage wraps err as a StorageError; nil stays nil.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

// Unclassifiable builds a ClassificationError.
func Unclassifiable(reason string) *ClassificationError {
	return &ClassificationError{Reason: reason}
}

// Invalid builds a ValidationError.
func Invalid(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
