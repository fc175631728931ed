package backend

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"google.golang.org/api/option"

	"tkpay/internal/config"
	"tkpay/internal/remote"
	"tkpay/internal/remote/memory"
)

func testFactory(dial func(context.Context, string, string, ...option.ClientOption) (remote.Store, func() error, error)) *DefaultFactory {
	return &DefaultFactory{
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		dialGCS: dial,
	}
}

func TestCreateBackend(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		res, err := testFactory(nil).CreateBackend(ctx, Config{Type: MemoryBackend})
		if err != nil {
			t.Fatal(err)
		}
		if !res.Store.Available() || res.InitErr != nil {
			t.Fatalf("memory backend should be available")
		}
		if res.Shared {
			t.Fatalf("memory backend is private to the process")
		}
	})

	t.Run("none yields unavailable", func(t *testing.T) {
		res, err := testFactory(nil).CreateBackend(ctx, Config{Type: NoneBackend})
		if err != nil {
			t.Fatal(err)
		}
		if res.Store.Available() || res.InitErr == nil {
			t.Fatalf("none backend should be unavailable with a reason")
		}
		if res.Shared {
			t.Fatalf("none backend must not be reconciled against")
		}
	})

	t.Run("gcs dial failure degrades", func(t *testing.T) {
		boom := errors.New("bucket not found")
		f := testFactory(func(context.Context, string, string, ...option.ClientOption) (remote.Store, func() error, error) {
			return nil, nil, boom
		})
		res, err := f.CreateBackend(ctx, Config{Type: GCSBackend, GCSBucket: "b"})
		if err != nil {
			t.Fatalf("dial failure must not be fatal: %v", err)
		}
		if res.Store.Available() || res.Shared || !errors.Is(res.InitErr, boom) {
			t.Fatalf("expected unavailable store carrying the dial error, got %+v", res)
		}
		if _, err := res.Store.GetAll(ctx); !errors.Is(err, remote.ErrUnavailable) {
			t.Fatalf("expected ErrUnavailable, got %v", err)
		}
	})

	t.Run("gcs dial success", func(t *testing.T) {
		var gotBucket, gotPrefix string
		var gotOpts int
		f := testFactory(func(_ context.Context, bucket, prefix string, opts ...option.ClientOption) (remote.Store, func() error, error) {
			gotBucket, gotPrefix, gotOpts = bucket, prefix, len(opts)
			return memory.New(), func() error { return nil }, nil
		})
		res, err := f.CreateBackend(ctx, Config{Type: GCSBackend, GCSBucket: "b", GCSPrefix: "history", CredentialsJSON: []byte("{}")})
		if err != nil {
			t.Fatal(err)
		}
		if gotBucket != "b" || gotPrefix != "history" || gotOpts != 1 {
			t.Fatalf("unexpected dial args %q %q %d", gotBucket, gotPrefix, gotOpts)
		}
		if res.Cleanup == nil || !res.Store.Available() || !res.Shared {
			t.Fatalf("expected shared available store with cleanup")
		}
	})

	t.Run("invalid config", func(t *testing.T) {
		if _, err := testFactory(nil).CreateBackend(ctx, Config{Type: "firebase"}); err == nil {
			t.Fatal("expected error for unknown type")
		}
		if _, err := testFactory(nil).CreateBackend(ctx, Config{Type: GCSBackend}); err == nil {
			t.Fatal("expected error for gcs without bucket")
		}
	})
}

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
	cfg, err := FromAppConfig(&config.Config{RemoteBackend: "gcs", GCSBucket: "b", GCSPrefix: "h", GoogleServiceAccountJSON: "{}"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Type != GCSBackend || cfg.GCSBucket != "b" || string(cfg.CredentialsJSON) != "{}" {
		t.Fatalf("unexpected conversion %+v", cfg)
	}
	if _, err := FromAppConfig(&config.Config{RemoteBackend: "nope"}); err == nil {
		t.Fatal("expected error for invalid backend")
	}
}

func TestGetBackendTypeStrings(t *testing.T) {
	got := GetBackendTypeStrings()
	if len(got) != 3 || got[0] != "gcs" {
		t.Fatalf("unexpected %v", got)
	}
}
