package etl

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
)

// ConnectionError marks a failure of the store connection itself. It is
// always fatal to the run.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error during %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// AllocationError means the next surrogate id could not be determined. It
// costs the one insert that needed the id.
type AllocationError struct {
	Entity string
	Err    error
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("failed to allocate %s id: %v", e.Entity, e.Err)
}

func (e *AllocationError) Unwrap() error { return e.Err }

// WriteError wraps a failed insert or update of a single record.
type WriteError struct {
	Op  string
	ID  int64
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("%s of record %d failed: %v", e.Op, e.ID, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// FailureReason enumerates why a dependent record was rejected.
type FailureReason int

const (
	EmptyReference FailureReason = iota + 1
	DanglingReference
	EmptyOwner
	InvalidOwner
	IncompleteRecord
	NonPositiveAmount
)

var reasonNames = map[FailureReason]string{
	EmptyReference:    "empty address reference",
	DanglingReference: "address does not exist",
	EmptyOwner:        "empty volunteer reference",
	InvalidOwner:      "volunteer does not exist",
	IncompleteRecord:  "record contains null values",
	NonPositiveAmount: "donation amount is not positive",
}

func (r FailureReason) String() string {
	if s, ok := reasonNames[r]; ok {
		return s
	}
	return fmt.Sprintf("FailureReason(%d)", int(r))
}

// ValidationFailure is returned by the validation pipeline for a record that
// must be rejected rather than written.
type ValidationFailure struct {
	Reason FailureReason
	Check  string
}

func (f *ValidationFailure) Error() string {
	return fmt.Sprintf("validation failed at %s: %s", f.Check, f.Reason)
}

// IsConnectionError reports whether err means the store connection is gone.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		return true
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// classify turns a raw store error into a ConnectionError when it is one,
// and leaves it untouched otherwise.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		return err
	}
	if IsConnectionError(err) {
		return &ConnectionError{Op: op, Err: err}
	}
	return err
}
