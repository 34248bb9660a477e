package trades

import (
	"context"

	"sol-trade-feed/internal/domain"
	"sol-trade-feed/internal/provider"
)

// Provider is the subset of the provider client the fetcher needs.
type Provider interface {
	BuyTrades(ctx context.Context, req provider.BuyTradesRequest) ([]provider.TradeRecord, error)
}

// Fetcher retrieves and normalizes trades one window at a time.
type Fetcher struct {
	provider Provider
}

// NewFetcher creates a fetcher backed by the given provider.
func NewFetcher(p Provider) *Fetcher {
	return &Fetcher{provider: p}
}

// FetchWindow issues exactly one provider request for the window and
// flattens the returned records into rows. Any provider failure aborts
// with the provider's error; there are no partial results for a window.
func (f *Fetcher) FetchWindow(ctx context.Context, token string, w domain.Window, limit int) ([]domain.TradeRow, error) {
	records, err := f.provider.BuyTrades(ctx, provider.BuyTradesRequest{
		TokenMint: token,
		Since:     w.Since,
		Till:      w.Till,
		Limit:     limit,
	})
	if err != nil {
		return nil, err
	}

	rows := make([]domain.TradeRow, 0, len(records))
	for _, rec := range records {
		rows = append(rows, normalizeRecord(rec, domain.DatasetRealtime)...)
	}
	return rows, nil
}
