package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"tkpay/internal/amqp"
	"tkpay/internal/core"
	applog "tkpay/internal/log"
	"tkpay/internal/remote"
	"tkpay/internal/sheets"
)

// EventSource delivers history events to a handler until ctx is done.
type EventSource interface {
	ConsumeHistoryEvents(ctx context.Context, handler func(context.Context, *amqp.HistoryEvent) error) error
}

// MirrorWorker keeps a ledger with one row per saved history day.
type MirrorWorker struct {
	ledger sheets.Ledger
	store  remote.Store
	logger *slog.Logger
}

// NewMirrorWorker creates a worker. store may be nil, which disables
// reconciliation against the remote history.
func NewMirrorWorker(ledger sheets.Ledger, store remote.Store, logger *slog.Logger) *MirrorWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &MirrorWorker{
		ledger: ledger,
		store:  store,
		logger: logger.With(applog.FieldComponent, applog.ComponentWorker),
	}
}

// HandleHistoryEvent applies a single event to the ledger.
func (w *MirrorWorker) HandleHistoryEvent(ctx context.Context, ev *amqp.HistoryEvent) error {
	w.logger.InfoContext(ctx, "Processing history event",
		"id", ev.ID,
		applog.FieldEventType, string(ev.Type),
		applog.FieldDateKey, ev.Date)

	switch ev.Type {
	case amqp.EventSaved:
		row := sheets.LedgerRow{Date: ev.Date, Total: ev.Total, Count: ev.Count, SavedAt: ev.SavedAt}
		if err := w.ledger.Upsert(ctx, row); err != nil {
			return fmt.Errorf("upsert ledger row %s: %w", ev.Date, err)
		}
	case amqp.EventDeleted:
		if err := w.ledger.Clear(ctx, ev.Date); err != nil {
			return fmt.Errorf("clear ledger row %s: %w", ev.Date, err)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", amqp.ErrInvalidEvent, ev.Type)
	}
	return nil
}

// Reconcile rewrites the ledger from the remote history. It recovers from
// events lost while the worker or the broker was down.
func (w *MirrorWorker) Reconcile(ctx context.Context) error {
	if w.store == nil || !w.store.Available() {
		w.logger.DebugContext(ctx, "Remote history unavailable, skipping reconcile")
		return nil
	}

	history, err := w.store.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("load remote history: %w", err)
	}
	rows, err := w.ledger.Rows(ctx)
	if err != nil {
		return fmt.Errorf("read ledger: %w", err)
	}

	mirrored := make(map[string]sheets.LedgerRow, len(rows))
	for _, r := range rows {
		mirrored[r.Date] = r
	}

	var upserted, cleared int
	live := make(map[string]struct{}, len(history))
	for _, snap := range history {
		live[snap.Date] = struct{}{}
		want := rowFromSnapshot(snap)
		if got, ok := mirrored[snap.Date]; ok && sameRow(got, want) {
			continue
		}
		if err := w.ledger.Upsert(ctx, want); err != nil {
			return fmt.Errorf("upsert ledger row %s: %w", snap.Date, err)
		}
		upserted++
	}
	for date := range mirrored {
		if _, ok := live[date]; ok {
			continue
		}
		if err := w.ledger.Clear(ctx, date); err != nil {
			return fmt.Errorf("clear ledger row %s: %w", date, err)
		}
		cleared++
	}

	w.logger.InfoContext(ctx, "Ledger reconciled",
		applog.FieldCount, len(history),
		"upserted", upserted,
		"cleared", cleared)
	return nil
}

// Run consumes events and reconciles every interval until ctx is cancelled.
// A non-positive interval disables periodic reconciliation.
func (w *MirrorWorker) Run(ctx context.Context, source EventSource, interval time.Duration) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := source.ConsumeHistoryEvents(ctx, w.HandleHistoryEvent)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if interval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					if err := w.Reconcile(ctx); err != nil {
						w.logger.ErrorContext(ctx, "Periodic reconcile failed", applog.FieldError, err)
					}
				}
			}
		})
	}

	return g.Wait()
}

func rowFromSnapshot(s core.Snapshot) sheets.LedgerRow {
	return sheets.LedgerRow{Date: s.Date, Total: s.Total, Count: len(s.Transactions), SavedAt: s.SavedAt}
}

// sameRow compares at the ledger's second precision.
func sameRow(a, b sheets.LedgerRow) bool {
	return a.Date == b.Date &&
		a.Total.Equal(b.Total) &&
		a.Count == b.Count &&
		a.SavedAt.Truncate(time.Second).Equal(b.SavedAt.Truncate(time.Second))
}
