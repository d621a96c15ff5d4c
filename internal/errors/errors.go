package errors

import (
	"errors"
	"fmt"
)

// Application-specific errors
var (
	ErrNotFound           = errors.New("resource not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrConflict           = errors.New("resource conflict")
	ErrRunInProgress      = errors.New("run already in progress")
	ErrServiceUnavailable = errors.New("service unavailable")
)

// Is and As re-export the standard helpers so callers importing this package
// under its own name do not need a second errors import.
func Is(err, target error) bool { return errors.Is(err, target) }

// As is errors.As
func As(err error, target any) bool { return errors.As(err, target) }

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// Unwrap lets validation failures match ErrInvalidInput
func (e ValidationError) Unwrap() error { return ErrInvalidInput }

// MultiError represents multiple errors
type MultiError struct {
	Errors []error `json:"errors"`
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%s (and %d more errors)", e.Errors[0].Error(), len(e.Errors)-1)
}

// Add adds an error to the MultiError
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors
func (e *MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// ErrOrNil returns nil when nothing was collected
func (e *MultiError) ErrOrNil() error {
	if !e.HasErrors() {
		return nil
	}
	return *e
}

// DatabaseError represents a database-related error
type DatabaseError struct {
	Operation string
	Err       error
}

func (e DatabaseError) Error() string {
	return fmt.Sprintf("database error during %s: %v", e.Operation, e.Err)
}

func (e DatabaseError) Unwrap() error {
	return e.Err
}

// RunError describes a failure inside a clustering, scoring or ingest run.
// Scope is the brand, issue or mention id the failure is isolated to.
type RunError struct {
	Engine string
	Scope  string
	Stage  string
	Err    error
}

func (e RunError) Error() string {
	return fmt.Sprintf("%s run failed for %s at stage %s: %v", e.Engine, e.Scope, e.Stage, e.Err)
}

func (e RunError) Unwrap() error {
	return e.Err
}
