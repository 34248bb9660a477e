package trades

import (
	"testing"
	"time"

	"sol-trade-feed/internal/domain"
)

func row(sig, wallet string, at time.Time, price float64) domain.TradeRow {
	return domain.TradeRow{
		Time:      at,
		Wallet:    wallet,
		Signature: sig,
		Price:     price,
		Dataset:   domain.DatasetRealtime,
	}
}

func TestMerge_SortsAscendingByTime(t *testing.T) {
	base := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

	newer := []domain.TradeRow{
		row("sig3", "a", base.Add(2*time.Hour), 1),
		row("sig4", "b", base.Add(3*time.Hour), 1),
	}
	older := []domain.TradeRow{
		row("sig1", "a", base, 1),
		row("sig2", "b", base.Add(time.Hour), 1),
	}

	merged := Merge(newer, older)
	if len(merged) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(merged))
	}
	for i := 1; i < len(merged); i++ {
		if merged[i].Time.Before(merged[i-1].Time) {
			t.Errorf("rows out of order at %d: %v before %v", i, merged[i].Time, merged[i-1].Time)
		}
	}
	if merged[0].Signature != "sig1" {
		t.Errorf("expected sig1 first, got %s", merged[0].Signature)
	}
}

func TestMerge_DeduplicatesByCompositeKey(t *testing.T) {
	at := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

	// Same (signature, wallet, time) with differing price: still a
	// duplicate, first occurrence wins.
	a := []domain.TradeRow{row("sig1", "walletA", at, 1.0)}
	b := []domain.TradeRow{row("sig1", "walletA", at, 2.0)}

	merged := Merge(a, b)
	if len(merged) != 1 {
		t.Fatalf("expected 1 row after dedup, got %d", len(merged))
	}
	if merged[0].Price != 1.0 {
		t.Errorf("expected first-seen row to win, got price %f", merged[0].Price)
	}
}

func TestMerge_KeyDistinguishesWalletAndTime(t *testing.T) {
	at := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

	merged := Merge([]domain.TradeRow{
		row("sig1", "walletA", at, 1),
		row("sig1", "walletB", at, 1),
		row("sig1", "walletA", at.Add(time.Second), 1),
	})
	if len(merged) != 3 {
		t.Fatalf("distinct keys collapsed: expected 3 rows, got %d", len(merged))
	}
}

func TestMerge_Idempotent(t *testing.T) {
	base := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	batch := []domain.TradeRow{
		row("sig1", "a", base.Add(time.Minute), 1),
		row("sig2", "b", base, 2),
	}

	once := Merge(batch)
	twice := Merge(once, once)

	if len(once) != len(twice) {
		t.Fatalf("merge not idempotent: %d vs %d rows", len(once), len(twice))
	}
	for i := range once {
		if once[i] != twice[i] {
			t.Errorf("row %d differs after re-merge: %+v vs %+v", i, once[i], twice[i])
		}
	}
}

func TestMerge_Empty(t *testing.T) {
	if got := Merge(); len(got) != 0 {
		t.Errorf("expected empty merge, got %d rows", len(got))
	}
	if got := Merge(nil, []domain.TradeRow{}); len(got) != 0 {
		t.Errorf("expected empty merge, got %d rows", len(got))
	}
}
