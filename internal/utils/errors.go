package utils

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"resto-pos/internal/database"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// TransactionFailureMessage is the only text operators see when a unit of
// work was rolled back.
const TransactionFailureMessage = "failed to process order"

// ValidationError carries field-level messages for a rejected request.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = message
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func NotFound(entity string, id int64) error {
	return fmt.Errorf("%s %d: %w", entity, id, ErrNotFound)
}

func InvalidTransition(action string, from any) error {
	return fmt.Errorf("cannot %s order in status %v: %w", action, from, ErrInvalidTransition)
}

// TransactionFailure wraps whatever aborted a transaction.
type TransactionFailure struct {
	Op  string
	Err error
}

func (e *TransactionFailure) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, TransactionFailureMessage, e.Err)
}

func (e *TransactionFailure) Unwrap() error {
	return e.Err
}

// WrapTxError keeps domain errors as they are, reports lock contention as a
// conflict the caller may retry and turns everything else into a
// TransactionFailure.
func WrapTxError(op string, err error) error {
	if err == nil {
		return nil
	}
	if database.IsLockContention(err) {
		return fmt.Errorf("%s: concurrent update, retry: %w: %w", op, ErrConflict, err)
	}
	var validation *ValidationError
	var failure *TransactionFailure
	switch {
	case errors.As(err, &validation),
		errors.As(err, &failure),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrConflict),
		errors.Is(err, ErrInvalidTransition):
		return err
	}
	return &TransactionFailure{Op: op, Err: err}
}
