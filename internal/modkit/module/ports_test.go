package module

import (
	"context"
	"testing"

	kit "stockpipe/internal/platform/testkit"
	phttp "stockpipe/internal/platform/net/http"
)

type runner interface {
	Run(ctx context.Context, runID string) (int, error)
}

type fakeRunner struct{ n int }

func (f fakeRunner) Run(context.Context, string) (int, error) { return f.n, nil }

type fakeModule struct {
	name  string
	ports any
}

func (m fakeModule) Name() string             { return m.name }
func (m fakeModule) Ports() any               { return m.ports }
func (m fakeModule) MountRoutes(phttp.Router) {}

func TestPortsOf(t *testing.T) {
	type bundle struct {
		Runner runner
		other  runner
	}
	cases := []struct {
		name  string
		ports any
		want  int
		ok    bool
	}{
		{"nil ports", nil, 0, false},
		{"direct", fakeRunner{n: 1}, 1, true},
		{"struct field", bundle{Runner: fakeRunner{n: 2}}, 2, true},
		{"pointer to struct", &bundle{Runner: fakeRunner{n: 3}}, 3, true},
		{"nil pointer", (*bundle)(nil), 0, false},
		{"unexported only", bundle{other: fakeRunner{n: 4}}, 0, false},
		{"not a struct", 42, 0, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			r, ok := PortsOf[runner](fakeModule{name: c.name, ports: c.ports})
			if ok != c.ok {
				t.Fatalf("ok = %v want %v", ok, c.ok)
			}
			if ok {
				n, _ := r.Run(context.Background(), "run-1")
				if n != c.want {
					t.Fatalf("got runner %d want %d", n, c.want)
				}
			}
		})
	}
}

func TestMustPortsOf(t *testing.T) {
	m := fakeModule{name: "load", ports: struct{ Runner runner }{fakeRunner{n: 7}}}
	kit.MustNotPanic(t, func() { _ = MustPortsOf[runner](m) })
	kit.MustPanic(t, func() { _ = MustPortsOf[runner](fakeModule{name: "empty"}) })
}
