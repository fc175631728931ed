package http

import (
	"time"

	"tkpay/internal/core"
	"tkpay/internal/services"
)

type entryView struct {
	ID     string
	Amount string
	Time   string
}

type groupView struct {
	Serial   int
	Name     string
	Subtotal string
	Entries  []entryView
}

type transactionsView struct {
	LoadedDate string
	Groups     []groupView
	GrandTotal string
	Count      int
}

type historyView struct {
	Date    string
	Total   string
	Count   int
	SavedAt string
	Loaded  bool
}

type pageData struct {
	Recipients    []string
	Transactions  transactionsView
	History       []historyView
	RemoteWarning bool
}

// newTransactionsView groups the working log for display. Entry times are
// shown in the server's calendar zone.
func newTransactionsView(st services.State, loc *time.Location) transactionsView {
	v := transactionsView{
		LoadedDate: st.CurrentLoadedDate,
		GrandTotal: core.FormatCurrency(core.Total(st.Transactions)),
		Count:      len(st.Transactions),
	}
	for _, g := range core.GroupByRecipient(st.Transactions) {
		gv := groupView{Serial: g.Serial, Name: g.Name, Subtotal: core.FormatCurrency(g.Total)}
		for _, tx := range g.Entries {
			gv.Entries = append(gv.Entries, entryView{
				ID:     tx.ID(),
				Amount: core.FormatCurrency(tx.Amount),
				Time:   tx.Timestamp.In(loc).Format("02 Jan 2006, 15:04:05"),
			})
		}
		v.Groups = append(v.Groups, gv)
	}
	return v
}

// newHistoryView lists snapshots newest first.
func newHistoryView(st services.State, loc *time.Location) []historyView {
	sorted := core.SortHistoryDesc(st.History)
	out := make([]historyView, 0, len(sorted))
	for _, snap := range sorted {
		hv := historyView{
			Date:   snap.Date,
			Total:  core.FormatCurrency(snap.Total),
			Count:  len(snap.Transactions),
			Loaded: snap.Date == st.CurrentLoadedDate,
		}
		if !snap.SavedAt.IsZero() {
			hv.SavedAt = snap.SavedAt.In(loc).Format("02 Jan 2006, 15:04")
		}
		out = append(out, hv)
	}
	return out
}

func newPageData(st services.State, loc *time.Location) pageData {
	return pageData{
		Recipients:    st.Recipients,
		Transactions:  newTransactionsView(st, loc),
		History:       newHistoryView(st, loc),
		RemoteWarning: !st.RemoteAvailable,
	}
}
