package backend

import (
	"context"

	"tkpay/internal/remote"
)

// CleanupFunc releases resources held by a backend.
type CleanupFunc func() error

// BackendResult contains the remote store and an optional cleanup function.
// InitErr is set when the configured backend could not be reached and Store
// is the Unavailable variant. Shared reports whether other processes see the
// same history, which is what makes it safe to reconcile against.
type BackendResult struct {
	Store   remote.Store
	Cleanup CleanupFunc
	InitErr error
	Shared  bool
}

// Factory creates remote history stores based on configuration.
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for remote store creation.
type Config struct {
	Type BackendType

	// Cloud Storage
	GCSBucket       string
	GCSPrefix       string
	CredentialsJSON []byte
}

// BackendType names a remote store implementation.
type BackendType string

const (
	GCSBackend    BackendType = "gcs"
	MemoryBackend BackendType = "memory"
	NoneBackend   BackendType = "none"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case GCSBackend, MemoryBackend, NoneBackend:
		return true
	default:
		return false
	}
}
