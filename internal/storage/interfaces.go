// Package storage defines the serving-log store interface. The feed
// itself is ephemeral; the only persisted data is an append-only log of
// rows actually served, kept inside the lookback horizon by pruning.
package storage

import (
	"context"
	"time"

	"sol-trade-feed/internal/domain"
)

// TradeLogStore provides access to the trade_log analytics table.
type TradeLogStore interface {
	// InsertBulk appends served rows. The log is append-only; duplicate
	// rows from overlapping requests are expected and tolerated.
	InsertBulk(ctx context.Context, entries []*domain.TradeLogEntry) error

	// GetByToken retrieves logged rows for a token within [start, end],
	// ordered by trade time ASC.
	GetByToken(ctx context.Context, token string, start, end time.Time) ([]*domain.TradeLogEntry, error)

	// PruneBefore removes rows whose trade time is before cutoff.
	PruneBefore(ctx context.Context, cutoff time.Time) error
}
