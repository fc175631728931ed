package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"google.golang.org/api/option"

	"tkpay/internal/remote"
	"tkpay/internal/remote/gcs"
	"tkpay/internal/remote/memory"
)

var errDisabled = errors.New("remote backend disabled by configuration")

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
	// dialGCS is swapped in tests.
	dialGCS func(ctx context.Context, bucket, prefix string, opts ...option.ClientOption) (remote.Store, func() error, error)
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger, dialGCS: dialGCS}
}

func dialGCS(ctx context.Context, bucket, prefix string, opts ...option.ClientOption) (remote.Store, func() error, error) {
	s, err := gcs.New(ctx, bucket, prefix, opts...)
	if err != nil {
		return nil, nil, err
	}
	return s, s.Close, nil
}

// CreateBackend makes a single initialization attempt. A store that cannot
// be reached is not an error: the result carries remote.Unavailable and the
// cause in InitErr. Only an invalid configuration returns an error.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case GCSBackend:
		return f.createGCSBackend(ctx, config), nil
	case MemoryBackend:
		f.logger.Warn("Memory remote backend is process-local, saved history is lost on restart",
			"backend", string(MemoryBackend),
			"hint", "use REMOTE_BACKEND=none to keep history in the local backup")
		return &BackendResult{Store: memory.New()}, nil
	case NoneBackend:
		f.logger.Warn("Remote backend disabled, history stays local")
		return unavailable(errDisabled), nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createGCSBackend(ctx context.Context, config Config) *BackendResult {
	var opts []option.ClientOption
	if len(config.CredentialsJSON) > 0 {
		opts = append(opts, option.WithCredentialsJSON(config.CredentialsJSON))
	}

	store, closeFn, err := f.dialGCS(ctx, config.GCSBucket, config.GCSPrefix, opts...)
	if err != nil {
		f.logger.Error("Failed to initialize Cloud Storage backend, continuing with local history",
			"bucket", config.GCSBucket, "error", err)
		return unavailable(err)
	}

	f.logger.Info("Initialized Cloud Storage backend", "bucket", config.GCSBucket, "prefix", config.GCSPrefix)
	return &BackendResult{Store: store, Cleanup: closeFn, Shared: true}
}

func unavailable(cause error) *BackendResult {
	return &BackendResult{
		Store:   remote.Unavailable{Reason: cause},
		InitErr: cause,
	}
}
