package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tkpay/internal/core"
)

func snapshot(date string, amounts ...int64) core.Snapshot {
	var txs []core.Transaction
	ts := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, a := range amounts {
		txs = append(txs, core.Transaction{Name: "Hotel", Amount: decimal.NewFromInt(a), Timestamp: ts.Add(time.Duration(i) * time.Second)})
	}
	return core.NewSnapshot(date, txs, ts)
}

func TestStoreUpsertAndDelete(t *testing.T) {
	ctx := context.Background()
	s := New()

	if err := s.Put(ctx, snapshot("2025-03-02", 10)); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, snapshot("2025-03-01", 5)); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, snapshot("2025-03-02", 10, 20)); err != nil {
		t.Fatal(err)
	}

	all, err := s.GetAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all[0].Date != "2025-03-01" || all[1].Total.String() != "30" {
		t.Fatalf("unexpected contents: %+v", all)
	}

	if err := s.Delete(ctx, "2025-03-02"); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, "2025-01-01"); err != nil {
		t.Fatalf("deleting a missing key should succeed, got %v", err)
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 snapshot left, got %d", s.Len())
	}
}

func TestStoreIsolatesCallerCopies(t *testing.T) {
	ctx := context.Background()
	snap := snapshot("2025-03-01", 5)
	s := New(snap)

	snap.Transactions[0].Name = "changed"
	all, _ := s.GetAll(ctx)
	if all[0].Transactions[0].Name != "Hotel" {
		t.Fatalf("store shares memory with caller")
	}
}

func TestStoreFail(t *testing.T) {
	boom := errors.New("network down")
	s := New()
	s.SetFail(boom)
	if err := s.Put(context.Background(), snapshot("2025-03-01", 1)); !errors.Is(err, boom) {
		t.Fatalf("expected injected error, got %v", err)
	}
	if _, err := s.GetAll(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected injected error, got %v", err)
	}
}
