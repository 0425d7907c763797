package types

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across backends.
var (
	// ErrNotFound is returned when no record exists for a key.
	ErrNotFound = errors.New("record not found")

	// ErrTableNotFound is returned when an operation names a table that
	// has no declared schema.
	ErrTableNotFound = errors.New("table not found")

	// ErrKeyEmpty is returned when a key is required but empty.
	ErrKeyEmpty = errors.New("key must not be empty")

	// ErrReadOnly is returned for writes attempted inside a read-only
	// transaction.
	ErrReadOnly = errors.New("transaction is read-only")

	// ErrClosed is returned for operations on a closed or destroyed
	// database.
	ErrClosed = errors.New("database is closed")
)

// ConfigurationError reports invalid construction input. It is returned by
// Config.Validate and by Open before any backend is touched.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// InitializationError means both the primary and the fallback backend
// failed to open. Both causes are retained.
type InitializationError struct {
	Primary     BackendID
	Fallback    BackendID
	PrimaryErr  error
	FallbackErr error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("initialization failed: primary %s: %v; fallback %s: %v",
		e.Primary, e.PrimaryErr, e.Fallback, e.FallbackErr)
}

func (e *InitializationError) Unwrap() []error {
	return []error{e.PrimaryErr, e.FallbackErr}
}

// ConnectionError means the database is not in a usable state: not yet
// opened, already closed, or the backend became unusable mid-session.
type ConnectionError struct {
	Backend BackendID
	Op      string
	Err     error
}

func (e *ConnectionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: database not connected (backend %s)", e.Op, e.Backend)
	}
	return fmt.Sprintf("%s: backend %s: %v", e.Op, e.Backend, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// TransactionInactiveError is returned for any operation attempted on a
// transaction that has already committed or rolled back.
type TransactionInactiveError struct {
	State TxnState
}

func (e *TransactionInactiveError) Error() string {
	return fmt.Sprintf("transaction is not active (state %s)", e.State)
}

// TransactionError reports a commit or rollback failure. When a rollback
// was triggered by a callback error, Cause retains the callback's original
// error and Err holds the rollback failure.
type TransactionError struct {
	Op    string
	Err   error
	Cause error
}

func (e *TransactionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("transaction %s failed: %v (while handling: %v)", e.Op, e.Err, e.Cause)
	}
	return fmt.Sprintf("transaction %s failed: %v", e.Op, e.Err)
}

func (e *TransactionError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Err, e.Cause}
	}
	return []error{e.Err}
}

// ValidationError reports a schema violation on insert or update. Column
// names the offending column.
type ValidationError struct {
	Column string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on column %q: %s", e.Column, e.Reason)
}

// StorageQuotaError means a write was rejected because it would exceed the
// backend's storage quota.
type StorageQuotaError struct {
	Backend BackendID
	Used    int64
	Quota   int64
}

func (e *StorageQuotaError) Error() string {
	return fmt.Sprintf("storage quota exceeded on %s: %d of %d bytes used", e.Backend, e.Used, e.Quota)
}
