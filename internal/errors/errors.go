// Package errors defines the coded error type used across agentsync. Codes
// map the failure classes of a sync run (environment, upstream source,
// per-file, manifest, backup, profile) to stable identifiers and process
// exit codes.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode is a stable identifier for a failure class.
type ErrorCode string

const (
	ErrUnknown      ErrorCode = "UNKNOWN"
	ErrInternal     ErrorCode = "INTERNAL"
	ErrInvalidInput ErrorCode = "INVALID_INPUT"

	// Fatal before any mutation.
	ErrEnvironment   ErrorCode = "ENVIRONMENT"
	ErrSourceMissing ErrorCode = "SOURCE_MISSING"

	// Reported per file; the batch continues.
	ErrFileOp ErrorCode = "FILE_OP"

	ErrManifestCorrupt ErrorCode = "MANIFEST_CORRUPT"
	ErrNoBackup        ErrorCode = "NO_BACKUP"

	ErrProfileNotFound ErrorCode = "PROFILE_NOT_FOUND"
	ErrProfileInvalid  ErrorCode = "PROFILE_INVALID"
)

// SyncError is a structured error with a code and optional details.
type SyncError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Wrapped error
}

// Error implements the error interface.
func (e *SyncError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Wrapped)
	}
	return e.Message
}

// Unwrap implements errors.Unwrap.
func (e *SyncError) Unwrap() error {
	return e.Wrapped
}

// Is reports whether target is a SyncError with the same code.
func (e *SyncError) Is(target error) bool {
	var t *SyncError
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// New creates a SyncError with the given code and message.
func New(code ErrorCode, message string) *SyncError {
	return &SyncError{Code: code, Message: message}
}

// Newf creates a SyncError with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *SyncError {
	return &SyncError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps err with a code and message. Returns nil when err is nil.
func Wrap(err error, code ErrorCode, message string) *SyncError {
	if err == nil {
		return nil
	}
	return &SyncError{Code: code, Message: message, Wrapped: err}
}

// Wrapf wraps err with a code and formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *SyncError {
	if err == nil {
		return nil
	}
	return &SyncError{Code: code, Message: fmt.Sprintf(format, args...), Wrapped: err}
}

// WithDetail attaches a key/value detail and returns the same error.
func (e *SyncError) WithDetail(key string, value interface{}) *SyncError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// IsErrorCode reports whether any error in err's chain carries code.
func IsErrorCode(err error, code ErrorCode) bool {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// GetErrorCode returns the code of the first SyncError in err's chain,
// or ErrUnknown.
func GetErrorCode(err error) ErrorCode {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Code
	}
	return ErrUnknown
}

// ExitCode maps an error to the process exit code of the CLI.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch GetErrorCode(err) {
	case ErrEnvironment:
		return 2
	case ErrSourceMissing:
		return 3
	case ErrNoBackup:
		return 4
	case ErrInvalidInput, ErrProfileNotFound, ErrProfileInvalid:
		return 5
	default:
		return 1
	}
}
