// Package invoice computes per-recipient receipt totals and rasterizes them
// to PNG.
//
// Two modes exist. Without an exchange rate the receipt shows the TK total
// only. With a rate the TK total is converted to SAR and the amount due is
//
//	due = total/rate + oldBalance - joma
//
// A negative due is a credit in the recipient's favour and is printed as a
// positive figure under "<name> Joma:" instead of "Due SAR:".
package invoice

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"

	"tkpay/internal/core"
)

// Adjustments are the optional inputs of the detailed mode. A Rate that is
// zero or negative selects the simple mode.
type Adjustments struct {
	Rate       decimal.Decimal
	OldBalance decimal.Decimal
	Joma       decimal.Decimal
}

// Line is one numbered entry of the receipt table.
type Line struct {
	Serial int
	Amount decimal.Decimal
}

type Invoice struct {
	Name     string
	IssuedAt time.Time
	Lines    []Line
	TotalTK  decimal.Decimal

	Detailed   bool
	Rate       decimal.Decimal
	Subtotal   decimal.Decimal
	OldBalance decimal.Decimal
	Joma       decimal.Decimal
	Due        decimal.Decimal
}

// Build computes the receipt for name from its transactions.
func Build(name string, entries []core.Transaction, adj Adjustments, issuedAt time.Time) Invoice {
	inv := Invoice{
		Name:     name,
		IssuedAt: issuedAt,
		Lines:    make([]Line, len(entries)),
		TotalTK:  core.Total(entries),
	}
	for i, e := range entries {
		inv.Lines[i] = Line{Serial: i + 1, Amount: e.Amount}
	}

	if !adj.Rate.IsPositive() {
		return inv
	}
	inv.Detailed = true
	inv.Rate = adj.Rate
	inv.OldBalance = adj.OldBalance
	inv.Joma = adj.Joma
	inv.Subtotal = inv.TotalTK.Div(adj.Rate)
	inv.Due = inv.Subtotal.Add(adj.OldBalance).Sub(adj.Joma)
	return inv
}

// Credit reports whether the detailed due amount is in the recipient's favour.
func (inv Invoice) Credit() bool {
	return inv.Detailed && inv.Due.IsNegative()
}

// SimpleTotal is the TK total as shown in simple mode, e.g. "80.00 TK".
func (inv Invoice) SimpleTotal() string {
	return core.FormatCurrency(inv.TotalTK)
}

func (inv Invoice) DueLabel() string {
	if inv.Credit() {
		return inv.Name + " Joma:"
	}
	return "Due SAR:"
}

// DueAmount is the absolute due or credit figure with two decimals.
func (inv Invoice) DueAmount() string {
	return core.FormatFixed(inv.Due.Abs())
}

// OldBalanceText returns the signed carry-over and whether it is shown at all.
func (inv Invoice) OldBalanceText() (string, bool) {
	if inv.OldBalance.IsZero() {
		return "", false
	}
	return "+" + core.FormatFixed(inv.OldBalance), true
}

// JomaText returns the signed adjustment and whether it is shown at all.
func (inv Invoice) JomaText() (string, bool) {
	if inv.Joma.IsZero() {
		return "", false
	}
	return "-" + core.FormatFixed(inv.Joma), true
}

// Filename is the download name for name's receipt.
func Filename(name string) string {
	clean := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == '"' || unicode.IsControl(r) {
			return '_'
		}
		return r
	}, name)
	return filepath.Base(clean) + "-receipt.png"
}

// NormalizeRateInput masks a typed rate the way the rate field does: keep
// the digits and put a decimal point after the first two.
//
//	"1234" -> "12.34"
//	"12"   -> "12"
//	"a1b"  -> "1"
func NormalizeRateInput(s string) string {
	var digits strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	if len(d) <= 2 {
		return d
	}
	return d[:2] + "." + d[2:]
}

// Fingerprint identifies the rendered image of inv. Two invoices with the
// same fingerprint rasterize to the same PNG.
func (inv Invoice) Fingerprint() string {
	var b strings.Builder
	b.WriteString(inv.Name)
	b.WriteByte('|')
	b.WriteString(inv.IssuedAt.Format(core.DateKeyLayout))
	for _, l := range inv.Lines {
		b.WriteByte('|')
		b.WriteString(l.Amount.String())
	}
	if inv.Detailed {
		b.WriteString("|r=" + inv.Rate.String())
		b.WriteString("|o=" + inv.OldBalance.String())
		b.WriteString("|j=" + inv.Joma.String())
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
