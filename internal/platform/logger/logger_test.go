package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"

	kit "stockpipe/internal/platform/testkit"

	"github.com/rs/zerolog"
)

func TestParseLevel_AllBranches(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"trace", "trace"},
		{"debug", "debug"},
		{"info", "info"},
		{"warning", "warn"},
		{"error", "error"},
		{"fatal", "fatal"},
		{"panic", "panic"},
		{"", "info"},
		{"   nonsense   ", "info"},
	}
	for _, c := range cases {
		if got := strings.ToLower(parseLevel(c.in).String()); got != c.want {
			t.Fatalf("parseLevel(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestInit_Get_Named_C_WithRun(t *testing.T) {
	var buf bytes.Buffer

	Init(Options{
		Level:        "info",
		Format:       "console",
		Service:      "stockpipe-test",
		Writer:       &buf,
		WithCaller:   true,
		SampleEvery:  2,
		StaticFields: map[string]string{"build": "test"},
	})

	// re-sample to N=1 so every line is emitted
	rv := Get().Sample(&zerolog.BasicSampler{N: 1})
	rv.Info().Msg("root-msg")

	nv := Named("load").Sample(&zerolog.BasicSampler{N: 1})
	nv.Info().Msg("named-msg")

	ctx := WithStage(WithRun(context.Background(), "run-123"), "extract")
	cv := C(ctx).Sample(&zerolog.BasicSampler{N: 1})
	cv.Info().Msg("ctx-msg")

	out := buf.String()
	kit.MustContain(t, out, "root-msg")
	kit.MustContain(t, out, "named-msg")
	kit.MustContain(t, out, "ctx-msg")
	kit.MustContain(t, out, "component=")
	kit.MustContain(t, out, "run_id=")
	kit.MustContain(t, out, "run-123")
	kit.MustContain(t, out, "stage=")
	kit.MustContain(t, out, "extract")
	kit.MustContain(t, out, "stockpipe-test")
}

func TestFromEnv_Independently(t *testing.T) {
	t.Setenv("LOG_LEVEL", "WARN")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_COMPONENT", "cli")
	t.Setenv("LOG_CALLER", "true")
	t.Setenv("LOG_SAMPLE_EVERY", "5")

	opt := FromEnv()
	if opt.Level != "warn" || opt.Format != "json" || opt.Component != "cli" {
		t.Fatalf("FromEnv fields mismatch: %+v", opt)
	}
	if opt.Service != "stockpipe" {
		t.Fatalf("FromEnv default service = %q", opt.Service)
	}
	if !opt.WithCaller || opt.SampleEvery != 5 {
		t.Fatalf("FromEnv caller/sample mismatch: %+v", opt)
	}
}

func TestRunIDRoundTrip(t *testing.T) {
	if RunID(context.Background()) != "" {
		t.Fatalf("empty ctx should have no run id")
	}
	ctx := WithRun(context.Background(), "")
	if RunID(ctx) != "" {
		t.Fatalf("blank run id should not be stored")
	}
	if RunID(WithRun(ctx, "abc")) != "abc" {
		t.Fatalf("RunID mismatch")
	}
}
