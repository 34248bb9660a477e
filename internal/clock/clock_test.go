package clock

import (
	"testing"
	"time"
)

func TestHourClock_TruncatesToHour(t *testing.T) {
	now := HourClock{}.Now()

	if now.Location() != time.UTC {
		t.Errorf("expected UTC, got %v", now.Location())
	}
	if now.Minute() != 0 || now.Second() != 0 || now.Nanosecond() != 0 {
		t.Errorf("expected top-of-hour instant, got %v", now)
	}
	if d := time.Now().UTC().Sub(now); d < 0 || d >= time.Hour {
		t.Errorf("truncated now drifted outside the current hour: %v", d)
	}
}

func TestFixed_ReturnsPinnedInstant(t *testing.T) {
	pin := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	c := Fixed(pin)

	if got := c.Now(); !got.Equal(pin) {
		t.Errorf("expected %v, got %v", pin, got)
	}
	// Repeated reads must not drift.
	time.Sleep(5 * time.Millisecond)
	if got := c.Now(); !got.Equal(pin) {
		t.Errorf("fixed clock drifted: %v", got)
	}
}
