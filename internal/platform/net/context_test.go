package net_test

import (
	"context"
	"testing"

	pnet "stockpipe/internal/platform/net"
)

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := pnet.WithRequestID(context.Background(), "req-123")
	if got := pnet.RequestID(ctx); got != "req-123" {
		t.Fatalf("RequestID = %q", got)
	}
	if got := pnet.RequestID(pnet.WithRequestID(context.Background(), "")); got != "" {
		t.Fatalf("empty id should not be stored, got %q", got)
	}
}
