package testkit

import (
	"os"
	"testing"

	perr "stockpipe/internal/platform/errors"
)

func TestMustPanic(t *testing.T) {
	t.Parallel()
	MustPanic(t, func() { panic("boom") })
}

func TestMustNotPanic(t *testing.T) {
	t.Parallel()
	MustNotPanic(t, func() {})
}

func TestMustContain(t *testing.T) {
	t.Parallel()
	MustContain(t, "alpha beta gamma", "beta")
}

func TestMustCode(t *testing.T) {
	t.Parallel()
	MustCode(t, perr.SchemaViolationf("bad"), perr.ErrorCodeSchemaViolation)
}

func TestWriteFile(t *testing.T) {
	t.Parallel()
	p := WriteFile(t, t.TempDir(), "a/b/c.json", []byte("{}"))
	b, err := os.ReadFile(p)
	if err != nil || string(b) != "{}" {
		t.Fatalf("read back %q, %v", b, err)
	}
}
