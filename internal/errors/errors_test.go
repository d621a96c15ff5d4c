package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestValidationError_Error(t *testing.T) {
	err := ValidationError{
		Field:   "status",
		Message: "unknown value",
	}

	expected := "validation error on field 'status': unknown value"
	if err.Error() != expected {
		t.Errorf("Expected %s, got %s", expected, err.Error())
	}
	if !errors.Is(err, ErrInvalidInput) {
		t.Error("Expected ValidationError to match ErrInvalidInput")
	}
}

func TestMultiError_Error(t *testing.T) {
	tests := []struct {
		name     string
		errors   []error
		expected string
	}{
		{
			name:     "No errors",
			errors:   []error{},
			expected: "no errors",
		},
		{
			name:     "Single error",
			errors:   []error{errors.New("first error")},
			expected: "first error",
		},
		{
			name:     "Multiple errors",
			errors:   []error{errors.New("first error"), errors.New("second error")},
			expected: "first error (and 1 more errors)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			multiErr := MultiError{Errors: tt.errors}
			result := multiErr.Error()
			if result != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, result)
			}
		})
	}
}

func TestMultiError_AddAndErrOrNil(t *testing.T) {
	multiErr := &MultiError{}

	multiErr.Add(nil)
	if multiErr.HasErrors() {
		t.Error("Expected nil errors to be ignored")
	}
	if multiErr.ErrOrNil() != nil {
		t.Error("Expected ErrOrNil to be nil for empty MultiError")
	}

	err1 := errors.New("first error")
	multiErr.Add(err1)
	if !multiErr.HasErrors() {
		t.Error("Expected HasErrors to return true after adding error")
	}
	if multiErr.ErrOrNil() == nil {
		t.Error("Expected ErrOrNil to return the collected errors")
	}
	if multiErr.Errors[0] != err1 {
		t.Error("First error not in correct position")
	}
}

func TestDatabaseError(t *testing.T) {
	dbErr := DatabaseError{
		Operation: "attach mention",
		Err:       ErrConflict,
	}

	expected := "database error during attach mention: resource conflict"
	if dbErr.Error() != expected {
		t.Errorf("Expected %s, got %s", expected, dbErr.Error())
	}
	if !Is(dbErr, ErrConflict) {
		t.Error("Expected DatabaseError to unwrap to ErrConflict")
	}
}

func TestRunError(t *testing.T) {
	originalErr := errors.New("insert failed")
	runErr := RunError{
		Engine: "clustering",
		Scope:  "mention-1",
		Stage:  "attach",
		Err:    originalErr,
	}

	expected := "clustering run failed for mention-1 at stage attach: insert failed"
	if runErr.Error() != expected {
		t.Errorf("Expected %s, got %s", expected, runErr.Error())
	}

	wrapped := fmt.Errorf("outer: %w", runErr)
	var target RunError
	if !As(wrapped, &target) {
		t.Fatal("Expected As to find RunError")
	}
	if target.Stage != "attach" {
		t.Errorf("Expected stage attach, got %s", target.Stage)
	}
}
