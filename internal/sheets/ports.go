package sheets

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Header is the first row of the ledger sheet.
var Header = []string{"Date", "Total", "Count", "Saved At"}

// LedgerRow mirrors one saved history day.
type LedgerRow struct {
	Date    string
	Total   decimal.Decimal
	Count   int
	SavedAt time.Time
}

// Ports for outbound adapters.
type (
	// LedgerWriter keeps at most one row per date.
	LedgerWriter interface {
		Upsert(ctx context.Context, row LedgerRow) error
		// Clear removes the row for date. A missing row is not an error.
		Clear(ctx context.Context, date string) error
	}

	LedgerReader interface {
		// Rows returns the mirrored rows ordered by date.
		Rows(ctx context.Context) ([]LedgerRow, error)
	}

	Ledger interface {
		LedgerWriter
		LedgerReader
	}
)
