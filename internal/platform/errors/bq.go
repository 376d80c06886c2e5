package errors

// BigQuery-specific helpers: googleapi HTTP errors and job errors mapped to ErrorCode

import (
	stderrs "errors"
	"net/http"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
)

// BigQuery error reasons, see https://cloud.google.com/bigquery/docs/error-messages
const (
	bqReasonBackendError      = "backendError"
	bqReasonInternalError     = "internalError"
	bqReasonJobBackendError   = "jobBackendError"
	bqReasonJobInternalError  = "jobInternalError"
	bqReasonRateLimitExceeded = "rateLimitExceeded"
	bqReasonInvalid           = "invalid"
	bqReasonInvalidQuery      = "invalidQuery"
	bqReasonNotFound          = "notFound"
	bqReasonDuplicate         = "duplicate"
	bqReasonAccessDenied      = "accessDenied"
	bqReasonQuotaExceeded     = "quotaExceeded"
)

// bqReasons collects the reason strings of every BigQuery error in the chain
func bqReasons(err error) (reasons []string, status int, ok bool) {
	var gerr *googleapi.Error
	if stderrs.As(err, &gerr) {
		ok = true
		status = gerr.Code
		for _, it := range gerr.Errors {
			reasons = append(reasons, it.Reason)
		}
	}
	var jerr *bigquery.Error
	if stderrs.As(err, &jerr) {
		ok = true
		reasons = append(reasons, jerr.Reason)
	}
	return reasons, status, ok
}

// BQErrorCode maps a BigQuery error to an ErrorCode with an ok flag
func BQErrorCode(err error) (ErrorCode, bool) {
	reasons, status, ok := bqReasons(err)
	if !ok {
		return ErrorCodeUnknown, false
	}
	for _, r := range reasons {
		switch r {
		case bqReasonBackendError, bqReasonInternalError, bqReasonJobBackendError,
			bqReasonJobInternalError, bqReasonRateLimitExceeded:
			return ErrorCodeWarehouseUnavailable, true
		}
	}
	for _, r := range reasons {
		switch r {
		case bqReasonInvalid, bqReasonInvalidQuery:
			return ErrorCodeSchemaViolation, true
		case bqReasonNotFound:
			return ErrorCodeNotFound, true
		case bqReasonDuplicate:
			return ErrorCodeConflict, true
		case bqReasonAccessDenied:
			return ErrorCodeCredentialMissing, true
		case bqReasonQuotaExceeded:
			return ErrorCodeLoadFailed, true
		}
	}
	switch {
	case status == http.StatusTooManyRequests, status >= 500:
		return ErrorCodeWarehouseUnavailable, true
	case status == http.StatusNotFound:
		return ErrorCodeNotFound, true
	case status == http.StatusConflict:
		return ErrorCodeConflict, true
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return ErrorCodeCredentialMissing, true
	}
	return ErrorCodeLoadFailed, true
}

// FromBigQuery wraps a BigQuery error with a mapped ErrorCode and message
// Transport failures without an API answer are classified as unavailable
func FromBigQuery(err error, msg string) error {
	if err == nil {
		return nil
	}
	if code, ok := BQErrorCode(err); ok {
		return Wrap(err, code, msg)
	}
	if IsNetRetryable(err) {
		return Wrap(err, ErrorCodeWarehouseUnavailable, msg)
	}
	return Wrap(err, ErrorCodeLoadFailed, msg)
}

// IsBQRetryable reports whether a BigQuery error is transient
func IsBQRetryable(err error) bool {
	code, ok := BQErrorCode(err)
	return ok && code == ErrorCodeWarehouseUnavailable
}
