// Package remote defines the history store that outlives the device.
//
// Snapshots live under the "history" namespace keyed by dateKey. The store
// performs no retries; callers decide what a failure means.
package remote

import (
	"context"
	"errors"

	"tkpay/internal/core"
)

// Namespace is the key prefix every snapshot is stored under.
const Namespace = "history"

// ErrUnavailable is returned by reads against a store that never initialized.
var ErrUnavailable = errors.New("remote store unavailable")

// Store is the remote history port.
type Store interface {
	// Put creates or overwrites history/<s.Date>.
	Put(ctx context.Context, s core.Snapshot) error
	// GetAll returns every snapshot under history, in no particular order.
	GetAll(ctx context.Context) ([]core.Snapshot, error)
	// Delete removes history/<dateKey>. Deleting a missing key is not an error.
	Delete(ctx context.Context, dateKey string) error
	Available() bool
}

// Key returns the logical key of a dateKey.
func Key(dateKey string) string {
	return Namespace + "/" + dateKey
}

// Unavailable stands in for a store that failed to initialize. Writes are
// dropped silently; reads report ErrUnavailable so callers fall back to
// their local copy.
type Unavailable struct {
	// Reason is the initialization error, kept for diagnostics.
	Reason error
}

func (Unavailable) Put(context.Context, core.Snapshot) error { return nil }

func (Unavailable) GetAll(context.Context) ([]core.Snapshot, error) {
	return nil, ErrUnavailable
}

func (Unavailable) Delete(context.Context, string) error { return nil }

func (Unavailable) Available() bool { return false }
