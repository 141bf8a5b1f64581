package etl

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedColumn matches any *UnsupportedColumnError.
	ErrUnsupportedColumn = errors.New("unsupported column")

	// ErrLinkNotList matches any *LinkShapeError.
	ErrLinkNotList = errors.New("link field is not list-valued")
)

// FetchError is returned when any page request for a table fails.
type FetchError struct {
	Table      string
	StatusCode int    // 0 when the request never produced a response
	Body       string // first bytes of the response body, if any
	Cause      error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %q: http %d: %s", e.Table, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("fetch %q: %v", e.Table, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *FetchError) Unwrap() error {
	return e.Cause
}

// UnsupportedColumnError reports a lookup-eligible column that has no
// entry in the kind's reference mapping. It signals that the mapping is
// out of sync with the live schema and aborts the table export.
type UnsupportedColumnError struct {
	Kind   string
	Table  string
	Column string
}

// Error implements the error interface.
func (e *UnsupportedColumnError) Error() string {
	return fmt.Sprintf("unsupported column [kind=%s, table=%s, column=%s]: no reference mapping", e.Kind, e.Table, e.Column)
}

// Is makes errors.Is(err, ErrUnsupportedColumn) succeed.
func (e *UnsupportedColumnError) Is(target error) bool {
	return target == ErrUnsupportedColumn
}

// LinkShapeError reports a lookup column whose raw value is not a list
// of record identifiers.
type LinkShapeError struct {
	Kind   string
	Column string
	RowID  string
	Value  any
}

// Error implements the error interface.
func (e *LinkShapeError) Error() string {
	return fmt.Sprintf("link column %q of row %s (kind=%s) holds %T, want a list of record ids", e.Column, e.RowID, e.Kind, e.Value)
}

// Is makes errors.Is(err, ErrLinkNotList) succeed.
func (e *LinkShapeError) Is(target error) bool {
	return target == ErrLinkNotList
}

// MissingTableError reports a reference target table that was not loaded
// into the catalog before normalization started.
type MissingTableError struct {
	Table string
}

// Error implements the error interface.
func (e *MissingTableError) Error() string {
	return fmt.Sprintf("reference table %q not loaded", e.Table)
}

// SinkError represents a failure handing rows to an output.
type SinkError struct {
	Op    string // "write", "mirror" or "upload"
	Name  string // file name, table name or object key
	Cause error
}

// Error implements the error interface.
func (e *SinkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Name, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *SinkError) Unwrap() error {
	return e.Cause
}

// NewSinkError creates a new SinkError.
func NewSinkError(op, name string, cause error) *SinkError {
	return &SinkError{Op: op, Name: name, Cause: cause}
}
