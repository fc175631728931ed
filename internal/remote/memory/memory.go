package memory

import (
	"context"
	"sort"
	"sync"

	"tkpay/internal/core"
)

// Store keeps history in process memory. Fail can be set to simulate an
// unreachable backend.
type Store struct {
	mu    sync.Mutex
	items map[string]core.Snapshot
	Fail  error
}

func New(seed ...core.Snapshot) *Store {
	s := &Store{items: make(map[string]core.Snapshot)}
	for _, snap := range seed {
		s.items[snap.Date] = snap.Clone()
	}
	return s
}

func (s *Store) Put(_ context.Context, snap core.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return s.Fail
	}
	s.items[snap.Date] = snap.Clone()
	return nil
}

// GetAll returns snapshots ordered by date ascending.
func (s *Store) GetAll(_ context.Context) ([]core.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return nil, s.Fail
	}
	out := make([]core.Snapshot, 0, len(s.items))
	for _, snap := range s.items {
		out = append(out, snap.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (s *Store) Delete(_ context.Context, dateKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return s.Fail
	}
	delete(s.items, dateKey)
	return nil
}

func (s *Store) Available() bool { return true }

// SetFail swaps the injected failure under the lock.
func (s *Store) SetFail(err error) {
	s.mu.Lock()
	s.Fail = err
	s.mu.Unlock()
}

// Len reports how many snapshots are stored.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
