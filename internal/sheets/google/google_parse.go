package google

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tkpay/internal/core"
	ports "tkpay/internal/sheets"
)

const savedAtLayout = time.RFC3339

func headerRow() []any {
	out := make([]any, len(ports.Header))
	for i, h := range ports.Header {
		out[i] = h
	}
	return out
}

func formatRow(r ports.LedgerRow) []any {
	return []any{r.Date, r.Total.StringFixed(2), r.Count, r.SavedAt.UTC().Format(savedAtLayout)}
}

// findRow returns the 1-based sheet row holding date, or 0.
func findRow(values [][]any, date string) int {
	for i, row := range values {
		cols := toStrings(row)
		if safeGet(cols, 0) == date {
			return i + 1
		}
	}
	return 0
}

// freeRow returns the 1-based index of the first blank row after the header,
// or the row below the last one.
func freeRow(values [][]any) int {
	for i := 1; i < len(values); i++ {
		if safeGet(toStrings(values[i]), 0) == "" {
			return i + 1
		}
	}
	return len(values) + 1
}

// parseLedger converts a values matrix into rows, skipping the header,
// blank rows and rows whose first cell is not a date key.
func parseLedger(values [][]any) []ports.LedgerRow {
	var out []ports.LedgerRow
	for _, raw := range values {
		cols := toStrings(raw)
		date := safeGet(cols, 0)
		if _, err := core.ParseDateKey(date); err != nil {
			continue
		}
		row := ports.LedgerRow{Date: date}
		if d, err := decimal.NewFromString(strings.ReplaceAll(safeGet(cols, 1), ",", "")); err == nil {
			row.Total = d
		}
		if n, err := strconv.Atoi(safeGet(cols, 2)); err == nil {
			row.Count = n
		}
		if t, err := time.Parse(savedAtLayout, safeGet(cols, 3)); err == nil {
			row.SavedAt = t
		}
		out = append(out, row)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
