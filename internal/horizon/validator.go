package horizon

import (
	"fmt"
	"time"

	"sol-trade-feed/internal/domain"
)

// Rejection reasons, surfaced verbatim in HTTP 400 details.
const (
	ReasonInvalidDate    = "invalid date"
	ReasonSinceAfterTill = "since >= till"
	ReasonOutsideHorizon = "outside horizon"
	ReasonDurationExceed = "duration exceeds max"
)

// RejectError reports why a caller-supplied window was refused.
type RejectError struct {
	Reason string
	Window string
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("window rejected (%s): %s", e.Reason, e.Window)
}

func reject(reason, since, till string) *RejectError {
	return &RejectError{Reason: reason, Window: fmt.Sprintf("[%s, %s)", since, till)}
}

// Validate checks a raw caller-supplied window against the horizon and
// duration rules. Checks short-circuit on first failure. Client timestamps
// are only ever validated against the horizon, never trusted as it.
// On success the parsed window is returned in UTC.
func (s *Service) Validate(since, till string) (domain.Window, error) {
	sinceT, err := parseInstant(since)
	if err != nil {
		return domain.Window{}, reject(ReasonInvalidDate, since, till)
	}
	tillT, err := parseInstant(till)
	if err != nil {
		return domain.Window{}, reject(ReasonInvalidDate, since, till)
	}

	if !sinceT.Before(tillT) {
		return domain.Window{}, reject(ReasonSinceAfterTill, since, till)
	}

	h := s.Horizon()
	if sinceT.Before(h.MinSince.Add(-s.tolerance)) || tillT.After(h.Now.Add(s.tolerance)) {
		return domain.Window{}, reject(ReasonOutsideHorizon, since, till)
	}

	maxWindow := time.Duration(s.windowHours) * time.Hour
	if tillT.Sub(sinceT) > maxWindow+durationEps {
		return domain.Window{}, reject(ReasonDurationExceed, since, till)
	}

	return domain.Window{Since: sinceT, Till: tillT}, nil
}

// parseInstant accepts RFC 3339 with or without sub-second precision.
func parseInstant(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty instant")
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
