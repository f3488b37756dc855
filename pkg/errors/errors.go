// Package errors defines the error taxonomy of the statistics pipelines.
// Sentinel errors classify failures; RecordError attaches the record id,
// document kind, and field needed to diagnose a bad input. Both work with
// errors.Is / errors.As.
package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedRecord marks a raw record whose id is missing or does not
	// split into source and year, or whose kind-specific required fields are
	// absent.
	ErrMalformedRecord = errors.New("malformed record")
	// ErrAggregation marks a reducer/value type mismatch or an inconsistent
	// group key encountered during grouped aggregation.
	ErrAggregation = errors.New("aggregation failed")
	// ErrSchemaValidation marks a manifest that failed external JSON-schema
	// validation.
	ErrSchemaValidation = errors.New("schema validation failed")
	// ErrUnknownSource marks a record whose source id is not in the
	// configured registry (only raised when rejection is enabled).
	ErrUnknownSource = errors.New("unknown source id")
	// ErrInvalidInput marks bad caller-supplied arguments.
	ErrInvalidInput = errors.New("invalid input")
)

// RecordError wraps a sentinel with the context of the offending record.
type RecordError struct {
	Err      error
	RecordID string
	Kind     string
	Field    string
	Message  string
}

func (e *RecordError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
	if e.Kind != "" {
		msg += fmt.Sprintf(" (kind=%s", e.Kind)
		if e.RecordID != "" {
			msg += fmt.Sprintf(", record=%s", e.RecordID)
		}
		if e.Field != "" {
			msg += fmt.Sprintf(", field=%s", e.Field)
		}
		msg += ")"
	}
	return msg
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// Malformed builds a malformed-record error for the given record and kind.
func Malformed(kind, recordID, field, format string, args ...any) *RecordError {
	return &RecordError{
		Err:      ErrMalformedRecord,
		RecordID: recordID,
		Kind:     kind,
		Field:    field,
		Message:  fmt.Sprintf(format, args...),
	}
}

// Aggregation builds an aggregation error for the given kind and field.
func Aggregation(kind, field, format string, args ...any) *RecordError {
	return &RecordError{
		Err:     ErrAggregation,
		Kind:    kind,
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	}
}

// SchemaValidation wraps a schema validation failure.
func SchemaValidation(cause error) error {
	return fmt.Errorf("%w: %v", ErrSchemaValidation, cause)
}
