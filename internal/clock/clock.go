// Package clock provides the single canonical time source for the service.
// No other component may consult the wall clock directly: window
// computations must be deterministic for a given clock reading.
package clock

import "time"

// Clock produces the canonical "now". Injectable so tests can pin a fixed
// instant and assert exact window boundaries.
type Clock interface {
	Now() time.Time
}

// HourClock is the production clock: current UTC time truncated down to
// the top of the hour. Truncation makes repeated partition computations
// within a single hour produce identical window boundaries, so windows
// displayed to a client remain stable enough to be re-requested.
type HourClock struct{}

// Now returns the current UTC time rounded down to the hour.
func (HourClock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Hour)
}

// Fixed returns a Clock pinned to t. Test use only.
func Fixed(t time.Time) Clock {
	return fixedClock{t: t}
}

type fixedClock struct {
	t time.Time
}

func (c fixedClock) Now() time.Time {
	return c.t
}
