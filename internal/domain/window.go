package domain

import "time"

// Window is a bounded [Since, Till) interval no longer than the configured
// maximum window size. Windows are ephemeral: constructed per request,
// never persisted.
type Window struct {
	Since time.Time `json:"since"`
	Till  time.Time `json:"till"`
}

// Duration returns Till - Since.
func (w Window) Duration() time.Duration {
	return w.Till.Sub(w.Since)
}

// Bounds is the canonical horizon [MinSince, MaxTill] the service is
// willing to serve.
type Bounds struct {
	MinSince time.Time `json:"minSince"`
	MaxTill  time.Time `json:"maxTill"`
}

// Horizon is a snapshot of the rolling lookback interval, derived entirely
// from the clock at request time. Snapshots are never cached across
// requests; two requests in different clock hours legitimately see
// different horizons.
type Horizon struct {
	Now           time.Time
	MinSince      time.Time
	WindowHours   int
	LookbackHours int
}
