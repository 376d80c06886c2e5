package errors

import (
	"context"
	stderrs "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusCodeMapping(t *testing.T) {
	cases := []struct {
		code ErrorCode
		want int
	}{
		{ErrorCodeNotFound, http.StatusNotFound},
		{ErrorCodeInvalidArgument, http.StatusUnprocessableEntity},
		{ErrorCodeConflict, http.StatusConflict},
		{ErrorCodeUnavailable, http.StatusServiceUnavailable},
		{ErrorCodeSourceUnavailable, http.StatusServiceUnavailable},
		{ErrorCodeWarehouseUnavailable, http.StatusServiceUnavailable},
		{ErrorCodeCanceled, 499},
		{ErrorCodeLoadFailed, http.StatusInternalServerError},
		{ErrorCodeUnknown, http.StatusInternalServerError},
		{9999, http.StatusInternalServerError}, // default branch
	}
	for _, c := range cases {
		if got := HTTPStatusCode(c.code); got != c.want {
			t.Fatalf("HTTPStatusCode(%v) = %d, want %d", c.code, got, c.want)
		}
	}
}

func TestCodeNames(t *testing.T) {
	if got := ErrorCodeSchemaViolation.String(); got != "schema_violation" {
		t.Fatalf("String() = %q", got)
	}
	if got := ErrorCode(9999).String(); got != "code(9999)" {
		t.Fatalf("String() unknown = %q", got)
	}
	for c := ErrorCodeUnknown; c <= ErrorCodeLoadFailed; c++ {
		if _, ok := codeNames[c]; !ok {
			t.Fatalf("code %d has no name", c)
		}
	}
}

func TestErrorTypeAndMethods(t *testing.T) {
	var e *Error
	if e.Error() != "<nil>" {
		t.Fatalf("nil *Error render = %q, want <nil>", e.Error())
	}

	e1 := New(ErrorCodeNormalization, "bad row")
	if CodeOf(e1) != ErrorCodeNormalization {
		t.Fatalf("CodeOf(New) = %v", CodeOf(e1))
	}
	e2 := Newf(ErrorCodeNoData, "no rows from %d pages", 12)
	if got := e2.Error(); got != "no rows from 12 pages" {
		t.Fatalf("Newf().Error = %q", got)
	}

	src := stderrs.New("root")
	e3 := Wrap(src, ErrorCodeDB, "db failed")
	if u := stderrs.Unwrap(e3); u == nil || u.Error() != "root" {
		t.Fatalf("Wrap did not keep orig")
	}
	e4 := Wrapf(src, ErrorCodeLoadFailed, "batch %s", "p0-3")
	if want := "batch p0-3: root"; e4.Error() != want {
		t.Fatalf("Wrapf().Error = %q, want %q", e4.Error(), want)
	}

	if got, ok := As(e4); !ok || got.Code() != ErrorCodeLoadFailed {
		t.Fatalf("As() failed for our error")
	}
	if _, ok := As(src); ok {
		t.Fatalf("As() true for foreign error")
	}

	e5 := Wrap(src, ErrorCodeSchemaViolation, "oops")
	e6 := WithField(e5, "Date")
	e7 := WithOp(e6, "load.validate")
	if fe, ok := As(e6); !ok || fe.Field() != "Date" {
		t.Fatalf("WithField failed")
	}
	if oe, ok := As(e7); !ok || oe.Op() != "load.validate" {
		t.Fatalf("WithOp failed")
	}
	if fe0, _ := As(e5); fe0.Field() != "" || fe0.Op() != "" {
		t.Fatalf("copy-on-write mutated original")
	}
	if WithField(src, "x") != src {
		t.Fatalf("WithField should leave foreign errors alone")
	}

	w := (&Error{code: ErrorCodeCredentialMissing, msg: "nope", field: "private_key"}).ToWire()
	if w.Code != ErrorCodeCredentialMissing || w.Name != "credential_missing" || w.Field != "private_key" {
		t.Fatalf("ToWire mismatch: %+v", w)
	}
	if wf := WireFrom(nil); wf != (Wire{}) {
		t.Fatalf("WireFrom(nil) expected zero, got %+v", wf)
	}
	if wf := WireFrom(src); wf.Code != ErrorCodeUnknown || wf.Message != "root" {
		t.Fatalf("WireFrom(foreign) mismatch: %+v", wf)
	}
	if wf := WireFrom(e4); wf.Message != "batch p0-3" {
		t.Fatalf("WireFrom(ours) mismatch: %+v", wf)
	}

	if !IsCode(NotFoundf("x"), ErrorCodeNotFound) ||
		!IsCode(InvalidArgf("x"), ErrorCodeInvalidArgument) ||
		!IsCode(Conflictf("x"), ErrorCodeConflict) ||
		!IsCode(Unavailablef("x"), ErrorCodeUnavailable) ||
		!IsCode(DBf("x"), ErrorCodeDB) ||
		!IsCode(Internalf("x"), ErrorCodeUnknown) ||
		!IsCode(CredentialMissingf("x"), ErrorCodeCredentialMissing) ||
		!IsCode(SourceUnavailablef("x"), ErrorCodeSourceUnavailable) ||
		!IsCode(Normalizationf("x"), ErrorCodeNormalization) ||
		!IsCode(SchemaViolationf("x"), ErrorCodeSchemaViolation) ||
		!IsCode(WarehouseUnavailablef("x"), ErrorCodeWarehouseUnavailable) {
		t.Fatalf("sugar helpers code mismatch")
	}

	if WrapIf(nil, ErrorCodeDB, "ignored") != nil {
		t.Fatalf("WrapIf(nil) should return nil")
	}
	if WrapIf(src, ErrorCodeDB, "db") == nil {
		t.Fatalf("WrapIf(non-nil) should wrap")
	}

	deep := fmt.Errorf("level2: %w", fmt.Errorf("level1: %w", src))
	if got := Root(deep); got == nil || got.Error() != "root" {
		t.Fatalf("Root() failed, got %v", got)
	}

	if !IsCode(ErrNotFound, ErrorCodeNotFound) {
		t.Fatalf("ErrNotFound code mismatch")
	}
}

func TestCodeOfCanceled(t *testing.T) {
	if got := CodeOf(fmt.Errorf("stage: %w", context.Canceled)); got != ErrorCodeCanceled {
		t.Fatalf("CodeOf(canceled) = %v", got)
	}
}

func TestHasCode(t *testing.T) {
	inner := SchemaViolationf("unknown field")
	outer := Wrap(inner, ErrorCodeLoadFailed, "batch rejected")
	if !HasCode(outer, ErrorCodeSchemaViolation) || !HasCode(outer, ErrorCodeLoadFailed) {
		t.Fatalf("HasCode should see both codes in chain")
	}
	if HasCode(outer, ErrorCodeNoData) {
		t.Fatalf("HasCode false positive")
	}
	if HasCode(nil, ErrorCodeUnknown) {
		t.Fatalf("HasCode(nil) should be false")
	}
}

func TestRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, false},
		{"warehouse unavailable", WarehouseUnavailablef("503"), true},
		{"source unavailable", SourceUnavailablef("timeout"), true},
		{"schema violation", SchemaViolationf("bad"), false},
		{"load failed", New(ErrorCodeLoadFailed, "x"), false},
		{"unavailable wrapping canceled", Wrap(context.Canceled, ErrorCodeWarehouseUnavailable, "x"), false},
		{"pg serialization", pg("40001", "", ""), true},
		{"unknown wrapping pg deadlock", Wrap(pg("40P01", "", ""), ErrorCodeDB, "ledger"), true},
		{"foreign", stderrs.New("boom"), false},
	}
	for _, c := range cases {
		if got := Retryable(c.err); got != c.want {
			t.Fatalf("%s: Retryable = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestHTTPHelper(t *testing.T) {
	if st, w := HTTP(nil); st != 200 || w != (Wire{}) {
		t.Fatalf("HTTP(nil) mismatch: %d %+v", st, w)
	}
	st, w := HTTP(NotFoundf("x"))
	if st != 404 || w.Code != ErrorCodeNotFound {
		t.Fatalf("HTTP(err) mismatch: %d %+v", st, w)
	}
}
