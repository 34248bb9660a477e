// Package horizon governs the rolling lookback interval: partitioning it
// into fixed-size retrieval windows and validating caller-supplied windows
// against it. The clock is the only input; every computation re-reads it,
// so results drift forward in real time but are internally consistent
// within a single call.
package horizon

import (
	"time"

	"sol-trade-feed/internal/clock"
	"sol-trade-feed/internal/domain"
)

// Default configuration values.
const (
	DefaultLookbackHours = 68
	DefaultWindowHours   = 4

	// DefaultTolerance absorbs network/clock skew between client and
	// server. Windows are generated here and echoed back by a client
	// after a round trip; without tolerance a legitimate window could be
	// rejected over sub-second transit delay. It must stay small enough
	// that it cannot smuggle in a materially wider window.
	DefaultTolerance = 1500 * time.Millisecond

	// durationEps covers rounding in window duration arithmetic.
	durationEps = 10 * time.Millisecond
)

// Service computes and validates windows against the horizon.
type Service struct {
	clock         clock.Clock
	lookbackHours int
	windowHours   int
	tolerance     time.Duration
}

// Option configures Service.
type Option func(*Service)

// WithLookbackHours sets the lookback horizon length.
func WithLookbackHours(h int) Option {
	return func(s *Service) {
		s.lookbackHours = h
	}
}

// WithWindowHours sets the partition window size. Must divide the
// lookback evenly; this is a configuration contract, not runtime-checked.
func WithWindowHours(h int) Option {
	return func(s *Service) {
		s.windowHours = h
	}
}

// WithTolerance sets the boundary tolerance for validation.
func WithTolerance(d time.Duration) Option {
	return func(s *Service) {
		s.tolerance = d
	}
}

// New creates a horizon service bound to the given clock.
func New(c clock.Clock, opts ...Option) *Service {
	s := &Service{
		clock:         c,
		lookbackHours: DefaultLookbackHours,
		windowHours:   DefaultWindowHours,
		tolerance:     DefaultTolerance,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LookbackHours returns the configured horizon length.
func (s *Service) LookbackHours() int {
	return s.lookbackHours
}

// WindowHours returns the configured window size.
func (s *Service) WindowHours() int {
	return s.windowHours
}

// Horizon returns a snapshot of the current horizon.
func (s *Service) Horizon() domain.Horizon {
	now := s.clock.Now()
	return domain.Horizon{
		Now:           now,
		MinSince:      now.Add(-time.Duration(s.lookbackHours) * time.Hour),
		WindowHours:   s.windowHours,
		LookbackHours: s.lookbackHours,
	}
}

// Bounds returns the canonical [MinSince, MaxTill] interval. Clients must
// treat it as ground truth and never compute windows independently.
func (s *Service) Bounds() domain.Bounds {
	h := s.Horizon()
	return domain.Bounds{MinSince: h.MinSince, MaxTill: h.Now}
}

// Partition derives the fixed sequence of non-overlapping windows covering
// the horizon, newest-first, anchored at the current clock reading.
func (s *Service) Partition() []domain.Window {
	now := s.clock.Now()
	size := time.Duration(s.windowHours) * time.Hour
	count := s.lookbackHours / s.windowHours

	windows := make([]domain.Window, 0, count)
	for i := 0; i < count; i++ {
		windows = append(windows, domain.Window{
			Since: now.Add(-time.Duration(i+1) * size),
			Till:  now.Add(-time.Duration(i) * size),
		})
	}
	return windows
}
