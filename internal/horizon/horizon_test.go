package horizon

import (
	"testing"
	"time"

	"sol-trade-feed/internal/clock"
)

var anchor = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func TestPartition_CoversHorizonContiguously(t *testing.T) {
	s := New(clock.Fixed(anchor))

	windows := s.Partition()
	if len(windows) != 17 {
		t.Fatalf("expected 17 windows (68h / 4h), got %d", len(windows))
	}

	// Newest-first: first window ends at now.
	if !windows[0].Till.Equal(anchor) {
		t.Errorf("expected newest window to end at %v, got %v", anchor, windows[0].Till)
	}

	// Oldest window starts at minSince.
	minSince := anchor.Add(-68 * time.Hour)
	if !windows[len(windows)-1].Since.Equal(minSince) {
		t.Errorf("expected oldest window to start at %v, got %v", minSince, windows[len(windows)-1].Since)
	}

	// Contiguous, non-overlapping, each exactly 4h.
	for i, w := range windows {
		if w.Duration() != 4*time.Hour {
			t.Errorf("window %d has duration %v", i, w.Duration())
		}
		if i > 0 && !w.Till.Equal(windows[i-1].Since) {
			t.Errorf("window %d is not contiguous with window %d", i, i-1)
		}
	}
}

func TestPartition_IdempotentForFixedClock(t *testing.T) {
	s := New(clock.Fixed(anchor))

	first := s.Partition()
	second := s.Partition()

	if len(first) != len(second) {
		t.Fatalf("partition count changed: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if !first[i].Since.Equal(second[i].Since) || !first[i].Till.Equal(second[i].Till) {
			t.Errorf("window %d differs between computations", i)
		}
	}
}

func TestBounds(t *testing.T) {
	s := New(clock.Fixed(anchor))

	b := s.Bounds()
	if !b.MaxTill.Equal(anchor) {
		t.Errorf("expected maxTill %v, got %v", anchor, b.MaxTill)
	}
	if !b.MinSince.Equal(anchor.Add(-68 * time.Hour)) {
		t.Errorf("expected minSince %v, got %v", anchor.Add(-68*time.Hour), b.MinSince)
	}
}

func TestPartition_CustomConfiguration(t *testing.T) {
	s := New(clock.Fixed(anchor), WithLookbackHours(24), WithWindowHours(6))

	windows := s.Partition()
	if len(windows) != 4 {
		t.Fatalf("expected 4 windows (24h / 6h), got %d", len(windows))
	}
	if !windows[3].Since.Equal(anchor.Add(-24 * time.Hour)) {
		t.Errorf("oldest window start: got %v", windows[3].Since)
	}
}
