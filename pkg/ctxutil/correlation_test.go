package ctxutil

import (
	"context"
	"testing"
)

func TestCorrelationID(t *testing.T) {
	if got := CorrelationID(context.Background()); got != "" {
		t.Errorf("expected empty id, got %q", got)
	}
	ctx := WithCorrelationID(context.Background(), "corr-1")
	if got := CorrelationID(ctx); got != "corr-1" {
		t.Errorf("expected corr-1, got %q", got)
	}
}
