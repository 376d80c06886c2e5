package errors

import (
	"context"
	"database/sql/driver"
	stderrs "errors"
	"io"
	"net"
	"syscall"
)

// IsNetRetryable reports whether err is a transport-level failure worth retrying:
// timeouts, resets, refused dials, truncated streams and stale driver connections
func IsNetRetryable(err error) bool {
	if err == nil || stderrs.Is(err, context.Canceled) {
		return false
	}
	switch {
	case stderrs.Is(err, io.ErrUnexpectedEOF),
		stderrs.Is(err, driver.ErrBadConn),
		stderrs.Is(err, syscall.ECONNRESET),
		stderrs.Is(err, syscall.ECONNREFUSED),
		stderrs.Is(err, syscall.ECONNABORTED),
		stderrs.Is(err, syscall.EPIPE):
		return true
	}
	var ne net.Error
	if stderrs.As(err, &ne) && ne.Timeout() {
		return true
	}
	var oe *net.OpError
	return stderrs.As(err, &oe)
}
