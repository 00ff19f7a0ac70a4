package entity

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyInput       = errors.New("input has a header but no data rows")
	ErrInsufficientData = errors.New("cannot aggregate zero rows")
	ErrNotFound         = errors.New("dataset not found")
	ErrMissingOwner     = errors.New("owner is required")

	ErrCacheMiss      = errors.New("cache miss")
	ErrObjectNotFound = errors.New("object not found")
)

// SchemaError lists required columns missing from the header.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return "missing required columns: " + strings.Join(e.Missing, ", ")
}

// MalformedInputError is returned when the input is not delimited tabular text,
// or when a numeric cell does not parse. Row is the zero-based data row index
// and is -1 when the failure is not tied to a row.
type MalformedInputError struct {
	Row    int
	Column string
	Err    error
}

func (e *MalformedInputError) Error() string {
	if e.Row < 0 {
		return fmt.Sprintf("malformed input: %v", e.Err)
	}
	return fmt.Sprintf("malformed input: row %d, column %q: %v", e.Row, e.Column, e.Err)
}

func (e *MalformedInputError) Unwrap() error { return e.Err }

// IsInputError reports whether err is a defect of the uploaded data rather than
// a failure of the service.
func IsInputError(err error) bool {
	var schemaErr *SchemaError
	var malformedErr *MalformedInputError
	return errors.As(err, &schemaErr) ||
		errors.As(err, &malformedErr) ||
		errors.Is(err, ErrEmptyInput) ||
		errors.Is(err, ErrInsufficientData)
}
