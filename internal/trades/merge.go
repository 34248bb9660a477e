package trades

import (
	"sort"

	"sol-trade-feed/internal/domain"
)

// Merge concatenates per-window row batches into a single sequence,
// ascending by time, keeping the first occurrence of each
// (signature, wallet, time) key. The sort is stable and keys only on
// time, so rows sharing a timestamp keep their input order and
// first-seen-wins resolves duplicate keys deterministically.
func Merge(batches ...[]domain.TradeRow) []domain.TradeRow {
	var total int
	for _, b := range batches {
		total += len(b)
	}

	all := make([]domain.TradeRow, 0, total)
	for _, b := range batches {
		all = append(all, b...)
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Time.Before(all[j].Time)
	})

	seen := make(map[string]struct{}, len(all))
	out := all[:0]
	for _, row := range all {
		key := row.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, row)
	}
	return out
}
