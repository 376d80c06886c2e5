// Package errors provides a structured error type with wrapping and metadata
package errors

// Always import the project errors package as perr (platform/errors)

import (
	"context"
	stderrs "errors"
	"fmt"
	"net/http"
)

// ErrorCode defines the error taxonomy shared by every pipeline stage
// Values are stable because they are persisted in the run ledger; add sparingly
type ErrorCode uint16

const (
	// ErrorCodeUnknown is for unclassified errors
	ErrorCodeUnknown ErrorCode = iota

	// ErrorCodeCanceled is for runs stopped by an external signal
	ErrorCodeCanceled

	// ErrorCodeInvalidArgument is for bad configuration or input parameters
	ErrorCodeInvalidArgument

	// ErrorCodeNotFound is for missing resources
	ErrorCodeNotFound

	// ErrorCodeConflict is for a second run requested while one is active
	ErrorCodeConflict

	// ErrorCodeUnavailable is for transient infrastructure errors where retry may succeed
	ErrorCodeUnavailable

	// ErrorCodeDB is for general database errors
	ErrorCodeDB

	// ErrorCodeCredentialMissing is for absent or malformed service credentials (fatal)
	ErrorCodeCredentialMissing

	// ErrorCodeSourceUnavailable is for the external source failing after bounded retries
	ErrorCodeSourceUnavailable

	// ErrorCodeNormalization is for raw items that cannot be mapped to the target schema
	ErrorCodeNormalization

	// ErrorCodeNoData is for an extraction that produced zero records
	ErrorCodeNoData

	// ErrorCodeSchemaViolation is for records rejected by schema validation (not retryable)
	ErrorCodeSchemaViolation

	// ErrorCodeWarehouseUnavailable is for transient warehouse failures (retryable)
	ErrorCodeWarehouseUnavailable

	// ErrorCodeLoadFailed is for a batch that exhausted its retries or hit a permanent error
	ErrorCodeLoadFailed
)

var codeNames = map[ErrorCode]string{
	ErrorCodeUnknown:              "unknown",
	ErrorCodeCanceled:             "canceled",
	ErrorCodeInvalidArgument:      "invalid_argument",
	ErrorCodeNotFound:             "not_found",
	ErrorCodeConflict:             "conflict",
	ErrorCodeUnavailable:          "unavailable",
	ErrorCodeDB:                   "db",
	ErrorCodeCredentialMissing:    "credential_missing",
	ErrorCodeSourceUnavailable:    "source_unavailable",
	ErrorCodeNormalization:        "normalization_error",
	ErrorCodeNoData:               "no_data",
	ErrorCodeSchemaViolation:      "schema_violation",
	ErrorCodeWarehouseUnavailable: "warehouse_unavailable",
	ErrorCodeLoadFailed:           "load_failed",
}

// String returns the stable snake_case name of the code
func (c ErrorCode) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("code(%d)", uint16(c))
}

// HTTPStatusCode turns an ErrorCode into an http status code
func HTTPStatusCode(c ErrorCode) int {
	switch c {
	case ErrorCodeNotFound:
		return http.StatusNotFound
	case ErrorCodeInvalidArgument:
		return http.StatusUnprocessableEntity
	case ErrorCodeConflict:
		return http.StatusConflict
	case ErrorCodeUnavailable, ErrorCodeSourceUnavailable, ErrorCodeWarehouseUnavailable:
		return http.StatusServiceUnavailable
	case ErrorCodeCanceled:
		return 499
	default:
		return http.StatusInternalServerError
	}
}

// ErrNotFound is a sentinel not found error for convenience
var ErrNotFound = New(ErrorCodeNotFound, "not found")

// Error is the structured error type with wrapping and metadata
// msg is human/developer facing; code is machine facing
// field is optional (for validation); op is optional operation tag
// orig is the wrapped cause
type Error struct {
	orig  error
	msg   string
	code  ErrorCode
	field string
	op    string
}

// Wire is the JSON-serializable form returned by the status API and stored in the ledger
type Wire struct {
	Code    ErrorCode `json:"code"`
	Name    string    `json:"name"`
	Message string    `json:"message"`
	Field   string    `json:"field,omitempty"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.orig != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.orig)
	}
	return e.msg
}

// Unwrap returns the wrapped error, if any
func (e *Error) Unwrap() error { return e.orig }

// Code returns the error code
func (e *Error) Code() ErrorCode { return e.code }

// Field returns the offending field, if any
func (e *Error) Field() string { return e.field }

// Op returns the operation label, if set
func (e *Error) Op() string { return e.op }

// ToWire converts an *Error to a Wire payload
func (e *Error) ToWire() Wire {
	return Wire{Code: e.code, Name: e.code.String(), Message: e.msg, Field: e.field}
}

// WireFrom converts any error into a Wire payload with best-effort mapping
// If err is nil, returns the zero-value Wire (no error)
func WireFrom(err error) Wire {
	if err == nil {
		return Wire{}
	}
	if e, ok := As(err); ok {
		return e.ToWire()
	}
	return Wire{Code: ErrorCodeUnknown, Name: ErrorCodeUnknown.String(), Message: err.Error()}
}

// Root returns the deepest wrapped cause
func Root(err error) error {
	for err != nil {
		u := stderrs.Unwrap(err)
		if u == nil {
			return err
		}
		err = u
	}
	return nil
}

// CodeOf extracts an ErrorCode from any error, defaulting to Unknown
// Bare context cancellation maps to Canceled
func CodeOf(err error) ErrorCode {
	if e, ok := As(err); ok {
		return e.code
	}
	if stderrs.Is(err, context.Canceled) {
		return ErrorCodeCanceled
	}
	return ErrorCodeUnknown
}

// IsCode reports whether err has the given code
func IsCode(err error, code ErrorCode) bool { return CodeOf(err) == code }

// HasCode reports whether any *Error in the chain carries the given code
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.code == code {
			return true
		}
		err = stderrs.Unwrap(err)
	}
	return false
}

// HTTPStatus returns the mapped HTTP status for any error
func HTTPStatus(err error) int { return HTTPStatusCode(CodeOf(err)) }

// As unwraps and returns (*Error, true) if err is one of ours
func As(err error) (*Error, bool) {
	var e *Error
	if stderrs.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Mutators (copy-on-write)

// WithField attaches a field to an *Error (copy-on-write). If err isn't *Error, returns err unchanged
func WithField(err error, field string) error {
	if e, ok := As(err); ok {
		c := *e
		c.field = field
		return &c
	}
	return err
}

// WithOp attaches an operation label to an *Error (copy-on-write). If err isn't *Error, returns err unchanged
func WithOp(err error, op string) error {
	if e, ok := As(err); ok {
		c := *e
		c.op = op
		return &c
	}
	return err
}

// Constructors

// New returns a new *Error with the given code and message
func New(code ErrorCode, msg string) error { return &Error{code: code, msg: msg} }

// Newf returns a new *Error with code and formatted message
func Newf(code ErrorCode, format string, a ...any) error {
	return &Error{code: code, msg: fmt.Sprintf(format, a...)}
}

// Wrap returns a new *Error that wraps orig with code and message
func Wrap(orig error, code ErrorCode, msg string) error {
	return &Error{code: code, msg: msg, orig: orig}
}

// Wrapf returns a new *Error that wraps orig with code and formatted message
func Wrapf(orig error, code ErrorCode, format string, a ...any) error {
	return &Error{code: code, msg: fmt.Sprintf(format, a...), orig: orig}
}

// WrapIf wraps only when err != nil (helper for 1-liners)
func WrapIf(err error, code ErrorCode, msg string) error {
	if err == nil {
		return nil
	}
	return Wrap(err, code, msg)
}

// Sugar

// NotFoundf returns a not found error
func NotFoundf(format string, a ...any) error { return Newf(ErrorCodeNotFound, format, a...) }

// InvalidArgf returns an invalid argument error
func InvalidArgf(format string, a ...any) error { return Newf(ErrorCodeInvalidArgument, format, a...) }

// Conflictf returns a conflict error
func Conflictf(format string, a ...any) error { return Newf(ErrorCodeConflict, format, a...) }

// Unavailablef returns an unavailable error
func Unavailablef(format string, a ...any) error { return Newf(ErrorCodeUnavailable, format, a...) }

// DBf returns a general database error
func DBf(format string, a ...any) error { return Newf(ErrorCodeDB, format, a...) }

// Internalf returns a generic internal error
func Internalf(format string, a ...any) error { return Newf(ErrorCodeUnknown, format, a...) }

// CredentialMissingf returns a credential missing error
func CredentialMissingf(format string, a ...any) error {
	return Newf(ErrorCodeCredentialMissing, format, a...)
}

// SourceUnavailablef returns a source unavailable error
func SourceUnavailablef(format string, a ...any) error {
	return Newf(ErrorCodeSourceUnavailable, format, a...)
}

// Normalizationf returns a normalization error
func Normalizationf(format string, a ...any) error {
	return Newf(ErrorCodeNormalization, format, a...)
}

// SchemaViolationf returns a schema violation error
func SchemaViolationf(format string, a ...any) error {
	return Newf(ErrorCodeSchemaViolation, format, a...)
}

// WarehouseUnavailablef returns a warehouse unavailable error
func WarehouseUnavailablef(format string, a ...any) error {
	return Newf(ErrorCodeWarehouseUnavailable, format, a...)
}

// HTTP bundles status + wire in one shot (nice for handlers)
func HTTP(err error) (int, Wire) {
	if err == nil {
		return http.StatusOK, Wire{}
	}
	return HTTPStatus(err), WireFrom(err)
}

// Retry semantics

// Retryable reports whether the error is a transient condition worth retrying
// Coded errors decide by code; foreign errors are classified by backend helpers
// (pg.go, ch.go, bq.go, net.go). Local cancellation is never retryable
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if stderrs.Is(err, context.Canceled) {
		return false
	}
	if e, ok := As(err); ok {
		switch e.code {
		case ErrorCodeUnavailable, ErrorCodeSourceUnavailable, ErrorCodeWarehouseUnavailable:
			return true
		case ErrorCodeUnknown, ErrorCodeDB:
			// fall through to the wrapped cause
		default:
			return false
		}
	}
	if stderrs.Is(err, context.DeadlineExceeded) {
		return false
	}
	return IsRetryable(err) || IsCHRetryable(err) || IsBQRetryable(err) || IsNetRetryable(err)
}
