package errors

// ClickHouse-specific helpers for mapping server exceptions to ErrorCode and retry semantics

import (
	stderrs "errors"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// ClickHouse server exception codes the warehouse loader cares about
const (
	chErrTypeMismatch           int32 = 53
	chErrCannotParseText        int32 = 6
	chErrCannotParseDate        int32 = 38
	chErrNoSuchColumn           int32 = 16
	chErrUnknownTable           int32 = 60
	chErrUnknownDatabase        int32 = 81
	chErrTimeoutExceeded        int32 = 159
	chErrTooManySimultaneous    int32 = 202
	chErrSocketTimeout          int32 = 209
	chErrNetworkError           int32 = 210
	chErrTableIsReadOnly        int32 = 242
	chErrTooManyParts           int32 = 252
	chErrKeeperException        int32 = 999
	chErrMemoryLimitExceeded    int32 = 241
	chErrAllConnectionTriesFail int32 = 279
)

// ExtractCHException returns the ClickHouse server exception in the chain, if any
func ExtractCHException(err error) (*clickhouse.Exception, bool) {
	var ex *clickhouse.Exception
	if stderrs.As(err, &ex) {
		return ex, true
	}
	return nil, false
}

// CHErrorCode maps a ClickHouse exception to an ErrorCode with an ok flag
func CHErrorCode(err error) (ErrorCode, bool) {
	ex, ok := ExtractCHException(err)
	if !ok {
		return ErrorCodeUnknown, false
	}
	switch ex.Code {
	case chErrTypeMismatch, chErrCannotParseText, chErrCannotParseDate, chErrNoSuchColumn:
		return ErrorCodeSchemaViolation, true
	case chErrUnknownTable, chErrUnknownDatabase:
		return ErrorCodeNotFound, true
	case chErrTimeoutExceeded, chErrTooManySimultaneous, chErrSocketTimeout, chErrNetworkError,
		chErrTableIsReadOnly, chErrTooManyParts, chErrKeeperException, chErrMemoryLimitExceeded,
		chErrAllConnectionTriesFail:
		return ErrorCodeWarehouseUnavailable, true
	}
	return ErrorCodeLoadFailed, true
}

// FromClickHouse wraps a ClickHouse error with a mapped ErrorCode and message
// Non-exception errors (dial, io) are classified as unavailable when transient
func FromClickHouse(err error, msg string) error {
	if err == nil {
		return nil
	}
	if code, ok := CHErrorCode(err); ok {
		return Wrap(err, code, msg)
	}
	if IsNetRetryable(err) {
		return Wrap(err, ErrorCodeWarehouseUnavailable, msg)
	}
	return Wrap(err, ErrorCodeLoadFailed, msg)
}

// IsCHRetryable reports whether a ClickHouse error is transient
func IsCHRetryable(err error) bool {
	if code, ok := CHErrorCode(err); ok {
		return code == ErrorCodeWarehouseUnavailable
	}
	s := strings.ToLower(Root(err).Error())
	return strings.Contains(s, "acquire conn timeout") || strings.Contains(s, "clickhouse: connection is closed")
}
