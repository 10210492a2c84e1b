/*
errors.go - Centralized error types

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages wrap these with context; callers test with errors.Is/As.

ERROR CATEGORIES:
  1. Storage errors    - constraint violations, driver failures (StorageError)
  2. Validation errors - required fields, references, ranges (ValidationError)
  3. Lookups           - absence is an empty result, not an error; ErrNotFound
                         is only returned by writes that target a missing row

USAGE:
  if errors.Is(err, generic.ErrDuplicate) {
      // unique key already present
  }
  var verr *generic.ValidationError
  if errors.As(err, &verr) {
      log.Println(verr.Field)
  }
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a write targets a row that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when a unique constraint rejects a write.
	ErrDuplicate = errors.New("duplicate key")

	// ErrConstraint is returned when a foreign key, NOT NULL or CHECK
	// constraint rejects a write.
	ErrConstraint = errors.New("constraint violation")

	// ErrValidation is the parent of every ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrUnknownColumn is returned when a record or condition names a column
	// outside the table's vocabulary. No SQL is executed in that case.
	ErrUnknownColumn = errors.New("unknown column")

	// ErrUnknownTable is returned for a table outside the vocabulary.
	ErrUnknownTable = errors.New("unknown table")

	// ErrEmptyRecord is returned when an insert or update carries no columns.
	ErrEmptyRecord = errors.New("empty record")

	// ErrInvalidCredentials is returned when a login does not verify.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrForbidden is returned when a user lacks the required level.
	ErrForbidden = errors.New("forbidden")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// StorageError wraps a failure of a single statement.
type StorageError struct {
	Op    string // insert, update, delete, select, query, exec, tx
	Table Table
	Kind  error // ErrDuplicate, ErrConstraint or nil
	Err   error
}

func (e *StorageError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Table, e.Err)
}

func (e *StorageError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// ValidationError describes an invariant a write would break.
type ValidationError struct {
	Entity  string
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s.%s: %s", e.Entity, e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Invalid is shorthand for a ValidationError.
func Invalid(entity, field, format string, args ...any) error {
	return &ValidationError{Entity: entity, Field: field, Message: fmt.Sprintf(format, args...)}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing row.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrDuplicate) ||
		errors.Is(err, ErrConstraint) ||
		errors.Is(err, ErrUnknownColumn) ||
		errors.Is(err, ErrUnknownTable) ||
		errors.Is(err, ErrEmptyRecord)
}
