package remote

import (
	"context"
	"errors"
	"testing"

	"tkpay/internal/core"
)

func TestUnavailable(t *testing.T) {
	var s Store = Unavailable{Reason: errors.New("no credentials")}
	ctx := context.Background()

	if s.Available() {
		t.Fatalf("unavailable store reports available")
	}
	if err := s.Put(ctx, core.Snapshot{Date: "2025-03-01"}); err != nil {
		t.Fatalf("put should be a silent no-op, got %v", err)
	}
	if err := s.Delete(ctx, "2025-03-01"); err != nil {
		t.Fatalf("delete should be a silent no-op, got %v", err)
	}
	if _, err := s.GetAll(ctx); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestKey(t *testing.T) {
	if got := Key("2025-03-01"); got != "history/2025-03-01" {
		t.Fatalf("unexpected key %q", got)
	}
}
