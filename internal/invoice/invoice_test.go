package invoice

import (
	"bytes"
	"image/png"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tkpay/internal/cache"
	"tkpay/internal/core"
)

var issued = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func entries(amounts ...string) []core.Transaction {
	txs := make([]core.Transaction, len(amounts))
	for i, a := range amounts {
		txs[i] = core.Transaction{
			Name:      "Mahamod",
			Amount:    decimal.RequireFromString(a),
			Timestamp: issued.Add(time.Duration(i) * time.Second),
		}
	}
	return txs
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestBuildSimpleMode(t *testing.T) {
	inv := Build("Mahamod", entries("50", "30"), Adjustments{}, issued)

	if inv.Detailed {
		t.Fatalf("expected simple mode without a rate")
	}
	if got := inv.SimpleTotal(); got != "80.00 TK" {
		t.Fatalf("simple total = %q", got)
	}
	if len(inv.Lines) != 2 || inv.Lines[0].Serial != 1 || inv.Lines[1].Serial != 2 {
		t.Fatalf("unexpected lines: %+v", inv.Lines)
	}

	neg := Build("Mahamod", entries("50"), Adjustments{Rate: dec("-3")}, issued)
	if neg.Detailed {
		t.Fatalf("non-positive rate must select simple mode")
	}
}

func TestBuildDetailedMode(t *testing.T) {
	tests := []struct {
		name      string
		adj       Adjustments
		label     string
		amount    string
		oldShown  string
		jomaShown string
	}{
		{
			name:      "amount due",
			adj:       Adjustments{Rate: dec("2"), OldBalance: dec("10"), Joma: dec("5")},
			label:     "Due SAR:",
			amount:    "45.00",
			oldShown:  "+10.00",
			jomaShown: "-5.00",
		},
		{
			name:      "credit",
			adj:       Adjustments{Rate: dec("2"), Joma: dec("50")},
			label:     "Mahamod Joma:",
			amount:    "10.00",
			jomaShown: "-50.00",
		},
		{
			name:      "exactly settled",
			adj:       Adjustments{Rate: dec("2"), Joma: dec("40")},
			label:     "Due SAR:",
			amount:    "0.00",
			jomaShown: "-40.00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := Build("Mahamod", entries("50", "30"), tt.adj, issued)
			if !inv.Detailed {
				t.Fatalf("expected detailed mode")
			}
			if inv.Subtotal.StringFixed(2) != "40.00" {
				t.Fatalf("subtotal = %s", inv.Subtotal)
			}
			if got := inv.DueLabel(); got != tt.label {
				t.Fatalf("label = %q, want %q", got, tt.label)
			}
			if got := inv.DueAmount(); got != tt.amount {
				t.Fatalf("amount = %q, want %q", got, tt.amount)
			}
			old, ok := inv.OldBalanceText()
			if ok != (tt.oldShown != "") || old != tt.oldShown {
				t.Fatalf("old balance = %q (%v), want %q", old, ok, tt.oldShown)
			}
			j, ok := inv.JomaText()
			if ok != (tt.jomaShown != "") || j != tt.jomaShown {
				t.Fatalf("joma = %q (%v), want %q", j, ok, tt.jomaShown)
			}
		})
	}
}

func TestNormalizeRateInput(t *testing.T) {
	tests := map[string]string{
		"1234":  "12.34",
		"1":     "1",
		"a1b":   "1",
		"12":    "12",
		"123":   "12.3",
		"":      "",
		"12.34": "12.34",
		"x":     "",
	}
	for in, want := range tests {
		if got := NormalizeRateInput(in); got != want {
			t.Errorf("NormalizeRateInput(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFilename(t *testing.T) {
	if got := Filename("Jolpai Ali"); got != "Jolpai Ali-receipt.png" {
		t.Fatalf("filename = %q", got)
	}
	if got := Filename("../etc"); got != ".._etc-receipt.png" {
		t.Fatalf("path separators must be replaced, got %q", got)
	}
}

func TestRenderProducesPNG(t *testing.T) {
	for _, adj := range []Adjustments{{}, {Rate: dec("2"), OldBalance: dec("10"), Joma: dec("5")}} {
		var buf bytes.Buffer
		if err := Render(&buf, Build("Mahamod", entries("50", "30"), adj, issued)); err != nil {
			t.Fatalf("render: %v", err)
		}
		img, err := png.Decode(&buf)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if img.Bounds().Dx() != pageWidth*Scale {
			t.Fatalf("width = %d", img.Bounds().Dx())
		}
	}
}

func TestIconProducesSquarePNG(t *testing.T) {
	var buf bytes.Buffer
	if err := Icon(&buf, 192); err != nil {
		t.Fatalf("icon: %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 192 || b.Dy() != 192 {
		t.Fatalf("unexpected bounds %v", b)
	}
	if err := Icon(&buf, 4); err == nil {
		t.Fatalf("expected error for tiny icon")
	}
}

func TestRendererCachesByFingerprint(t *testing.T) {
	lru := cache.NewLRUCache[[]byte](4, time.Minute)
	r := NewRenderer(lru)

	inv := Build("Mahamod", entries("50"), Adjustments{}, issued)
	first, err := r.PNG(inv)
	if err != nil {
		t.Fatalf("png: %v", err)
	}
	second, err := r.PNG(inv)
	if err != nil {
		t.Fatalf("png: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("cached bytes differ")
	}
	if s := lru.Stats(); s.Hits != 1 || s.Size != 1 {
		t.Fatalf("unexpected stats %+v", s)
	}

	other := Build("Mahamod", entries("50"), Adjustments{Rate: dec("2")}, issued)
	if other.Fingerprint() == inv.Fingerprint() {
		t.Fatalf("adjustments must change the fingerprint")
	}
}
