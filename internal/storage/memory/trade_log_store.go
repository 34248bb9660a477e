package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"sol-trade-feed/internal/domain"
	"sol-trade-feed/internal/storage"
)

// TradeLogStore is an in-memory implementation of storage.TradeLogStore.
type TradeLogStore struct {
	mu      sync.RWMutex
	entries []*domain.TradeLogEntry
}

// NewTradeLogStore creates a new in-memory trade log store.
func NewTradeLogStore() *TradeLogStore {
	return &TradeLogStore{}
}

// Compile-time interface check.
var _ storage.TradeLogStore = (*TradeLogStore)(nil)

// InsertBulk appends served rows.
func (s *TradeLogStore) InsertBulk(_ context.Context, entries []*domain.TradeLogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	for _, e := range entries {
		if e == nil || e.Token == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range entries {
		copy := *e
		s.entries = append(s.entries, &copy)
	}
	return nil
}

// GetByToken retrieves logged rows for a token within [start, end],
// ordered by trade time ASC.
func (s *TradeLogStore) GetByToken(_ context.Context, token string, start, end time.Time) ([]*domain.TradeLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.TradeLogEntry
	for _, e := range s.entries {
		if e.Token != token {
			continue
		}
		if e.Time.Before(start) || e.Time.After(end) {
			continue
		}
		copy := *e
		out = append(out, &copy)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Time.Before(out[j].Time)
	})
	return out, nil
}

// PruneBefore removes rows whose trade time is before cutoff.
func (s *TradeLogStore) PruneBefore(_ context.Context, cutoff time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.entries[:0]
	for _, e := range s.entries {
		if !e.Time.Before(cutoff) {
			kept = append(kept, e)
		}
	}
	// Release pruned tails for GC.
	for i := len(kept); i < len(s.entries); i++ {
		s.entries[i] = nil
	}
	s.entries = kept
	return nil
}
