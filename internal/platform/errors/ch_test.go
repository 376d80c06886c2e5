package errors

import (
	stderrs "errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"testing"

	"github.com/ClickHouse/clickhouse-go/v2"
)

func chEx(code int32) error {
	return fmt.Errorf("send batch: %w", &clickhouse.Exception{Code: code, Name: "X", Message: "m"})
}

func TestCHErrorCode(t *testing.T) {
	cases := []struct {
		code int32
		want ErrorCode
	}{
		{53, ErrorCodeSchemaViolation},
		{16, ErrorCodeSchemaViolation},
		{60, ErrorCodeNotFound},
		{159, ErrorCodeWarehouseUnavailable},
		{252, ErrorCodeWarehouseUnavailable},
		{1, ErrorCodeLoadFailed},
	}
	for _, c := range cases {
		got, ok := CHErrorCode(chEx(c.code))
		if !ok || got != c.want {
			t.Fatalf("CHErrorCode(%d) = %v,%v want %v", c.code, got, ok, c.want)
		}
	}
	if _, ok := CHErrorCode(stderrs.New("x")); ok {
		t.Fatalf("foreign error should not map")
	}
}

func TestFromClickHouse(t *testing.T) {
	if FromClickHouse(nil, "x") != nil {
		t.Fatalf("nil passthrough")
	}
	if !IsCode(FromClickHouse(chEx(209), "insert"), ErrorCodeWarehouseUnavailable) {
		t.Fatalf("socket timeout should be unavailable")
	}
	if !IsCode(FromClickHouse(io.ErrUnexpectedEOF, "insert"), ErrorCodeWarehouseUnavailable) {
		t.Fatalf("unexpected EOF should be unavailable")
	}
	if !IsCode(FromClickHouse(stderrs.New("bad"), "insert"), ErrorCodeLoadFailed) {
		t.Fatalf("unknown error should be load failed")
	}
	if !IsCHRetryable(chEx(202)) || IsCHRetryable(chEx(53)) {
		t.Fatalf("IsCHRetryable mismatch")
	}
}

func TestIsNetRetryable(t *testing.T) {
	if !IsNetRetryable(fmt.Errorf("read: %w", syscall.ECONNRESET)) {
		t.Fatalf("reset should be retryable")
	}
	if !IsNetRetryable(&net.OpError{Op: "dial", Err: stderrs.New("refused")}) {
		t.Fatalf("op error should be retryable")
	}
	if IsNetRetryable(stderrs.New("plain")) || IsNetRetryable(nil) {
		t.Fatalf("plain errors are not transport failures")
	}
}
