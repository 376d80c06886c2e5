package version

import "testing"

func TestInfoDefaults(t *testing.T) {
	b := Info()
	if b.Service != "stockpipe" || b.Version != "dev" {
		t.Fatalf("info = %+v", b)
	}
	if got := b.String(); got != "stockpipe dev (none, unknown)" {
		t.Fatalf("String() = %q", got)
	}
}
