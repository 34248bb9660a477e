// Package trades turns provider trade records into the normalized row
// shape served to clients and merges per-window results into a single
// deduplicated, time-ordered sequence.
package trades

import (
	"strings"

	"sol-trade-feed/internal/domain"
	"sol-trade-feed/internal/provider"
)

// normalizeRecord expands one provider record into rows, one per distinct
// wallet attributed to the buy side. When attribution comes up empty the
// trade is kept as a single row with an empty wallet: no trade may
// silently disappear because its wallet could not be recovered. The cost
// is that volume can double-count across wallets sharing a trade.
func normalizeRecord(rec provider.TradeRecord, dataset string) []domain.TradeRow {
	var solAmount float64
	wallets := make([]string, 0, len(rec.Sides)+1)
	seen := make(map[string]struct{})

	appendWallet := func(w string) {
		if w == "" {
			return
		}
		if _, dup := seen[w]; dup {
			return
		}
		seen[w] = struct{}{}
		wallets = append(wallets, w)
	}

	appendWallet(rec.Owner)

	for _, side := range rec.Sides {
		if !strings.EqualFold(side.Type, provider.SideBuy) {
			continue
		}
		if strings.EqualFold(side.Mint, domain.WSOLMint) {
			solAmount += side.Amount
		}
		wallet := side.Address
		if wallet == "" {
			wallet = side.Owner
		}
		appendWallet(wallet)
	}

	base := domain.TradeRow{
		Time:      rec.BlockTime,
		Signature: rec.Signature,
		SolAmount: solAmount,
		Price:     rec.Price,
		Dataset:   dataset,
	}

	if len(wallets) == 0 {
		return []domain.TradeRow{base}
	}

	rows := make([]domain.TradeRow, 0, len(wallets))
	for _, w := range wallets {
		row := base
		row.Wallet = w
		rows = append(rows, row)
	}
	return rows
}
