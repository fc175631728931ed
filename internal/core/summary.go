package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// RecipientGroup aggregates the transactions of one recipient.
type RecipientGroup struct {
	Serial  int
	Name    string
	Total   decimal.Decimal
	Entries []Transaction
}

// GroupByRecipient groups txs by name, keeping recipients in order of first
// appearance and entries in log order. Serial numbers start at 1.
func GroupByRecipient(txs []Transaction) []RecipientGroup {
	index := make(map[string]int)
	var groups []RecipientGroup
	for _, tx := range txs {
		i, ok := index[tx.Name]
		if !ok {
			i = len(groups)
			index[tx.Name] = i
			groups = append(groups, RecipientGroup{Serial: i + 1, Name: tx.Name, Total: decimal.Zero})
		}
		groups[i].Total = groups[i].Total.Add(tx.Amount)
		groups[i].Entries = append(groups[i].Entries, tx)
	}
	return groups
}

// EntriesFor returns the transactions recorded for name, in log order.
func EntriesFor(txs []Transaction, name string) []Transaction {
	var out []Transaction
	for _, tx := range txs {
		if tx.Name == name {
			out = append(out, tx)
		}
	}
	return out
}

// SortHistoryDesc returns a copy of history ordered by date, newest first.
// The input is not modified.
func SortHistoryDesc(history []Snapshot) []Snapshot {
	out := make([]Snapshot, len(history))
	copy(out, history)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date > out[j].Date
	})
	return out
}
