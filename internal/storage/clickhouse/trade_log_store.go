package clickhouse

import (
	"context"
	"fmt"
	"time"

	"sol-trade-feed/internal/domain"
	"sol-trade-feed/internal/storage"
)

// TradeLogStore implements storage.TradeLogStore using ClickHouse.
type TradeLogStore struct {
	conn *Conn
}

// NewTradeLogStore creates a new TradeLogStore.
func NewTradeLogStore(conn *Conn) *TradeLogStore {
	return &TradeLogStore{conn: conn}
}

// Compile-time interface check.
var _ storage.TradeLogStore = (*TradeLogStore)(nil)

// InsertBulk appends served rows. The log is append-only; no duplicate
// detection (MergeTree does not enforce uniqueness and the log tolerates
// repeats from overlapping requests).
func (s *TradeLogStore) InsertBulk(ctx context.Context, entries []*domain.TradeLogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	for _, e := range entries {
		if e == nil || e.Token == "" {
			return storage.ErrInvalidInput
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO trade_log (
			token, trade_time, wallet, signature, sol_amount, price, served_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, e := range entries {
		err = batch.Append(
			e.Token, e.Time, e.Wallet, e.Signature, e.SolAmount, e.Price, e.ServedAt,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByToken retrieves logged rows for a token within [start, end],
// ordered by trade time ASC.
func (s *TradeLogStore) GetByToken(ctx context.Context, token string, start, end time.Time) ([]*domain.TradeLogEntry, error) {
	query := `
		SELECT token, trade_time, wallet, signature, sol_amount, price, served_at
		FROM trade_log
		WHERE token = ? AND trade_time >= ? AND trade_time <= ?
		ORDER BY trade_time ASC
	`

	rows, err := s.conn.Query(ctx, query, token, start, end)
	if err != nil {
		return nil, fmt.Errorf("query by token: %w", err)
	}
	defer rows.Close()

	var out []*domain.TradeLogEntry
	for rows.Next() {
		e := &domain.TradeLogEntry{}
		if err := rows.Scan(&e.Token, &e.Time, &e.Wallet, &e.Signature, &e.SolAmount, &e.Price, &e.ServedAt); err != nil {
			return nil, fmt.Errorf("scan trade log entry: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return out, nil
}

// PruneBefore removes rows whose trade time is before cutoff, keeping the
// log inside the lookback horizon. Uses a lightweight delete mutation;
// ClickHouse applies it asynchronously.
func (s *TradeLogStore) PruneBefore(ctx context.Context, cutoff time.Time) error {
	query := `DELETE FROM trade_log WHERE trade_time < ?`
	if err := s.conn.Exec(ctx, query, cutoff); err != nil {
		return fmt.Errorf("prune trade log: %w", err)
	}
	return nil
}
