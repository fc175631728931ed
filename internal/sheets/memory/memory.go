package memory

import (
	"context"
	"sort"
	"sync"

	ports "tkpay/internal/sheets"
)

// Ledger is an in-process ledger used when no spreadsheet is configured.
type Ledger struct {
	mu   sync.Mutex
	rows map[string]ports.LedgerRow
}

var _ ports.Ledger = (*Ledger)(nil)

func New() *Ledger {
	return &Ledger{rows: make(map[string]ports.LedgerRow)}
}

func (l *Ledger) Upsert(_ context.Context, row ports.LedgerRow) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rows[row.Date] = row
	return nil
}

func (l *Ledger) Clear(_ context.Context, date string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.rows, date)
	return nil
}

func (l *Ledger) Rows(_ context.Context) ([]ports.LedgerRow, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]ports.LedgerRow, 0, len(l.rows))
	for _, r := range l.rows {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}
