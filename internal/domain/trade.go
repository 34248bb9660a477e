package domain

import (
	"fmt"
	"time"
)

// DatasetRealtime is the only provider dataset this service queries.
// Rows are tagged with it so downstream consumers can tell the feed apart
// from archive backfills.
const DatasetRealtime = "realtime"

// WSOLMint is the wrapped SOL mint address used to recognize the native
// currency leg of a trade. Provider data is not consistent about casing,
// so comparisons against it must be case-insensitive.
const WSOLMint = "So11111111111111111111111111111111111111112"

// TradeRow is one (trade, attributed wallet) pair. A single upstream trade
// record expands to one row per distinct wallet on its buy side, or to a
// single row with an empty wallet when no attribution could be recovered.
// Consumers must treat rows as attribution-expanded, not trade-count-exact.
type TradeRow struct {
	Time      time.Time `json:"time"`
	Wallet    string    `json:"wallet"`
	Signature string    `json:"signature"`
	SolAmount float64   `json:"solAmount"`
	Price     float64   `json:"price"`
	Dataset   string    `json:"dataset"`
}

// Key returns the composite identity used for deduplication across windows.
// Price and amount are deliberately excluded: the key is expected to
// uniquely identify a (trade, wallet) pair from a correct provider.
func (r TradeRow) Key() string {
	return fmt.Sprintf("%s|%s|%d", r.Signature, r.Wallet, r.Time.UnixMilli())
}

// TradeLogEntry is one served row in the trade_log analytics table.
type TradeLogEntry struct {
	Token     string
	Time      time.Time
	Wallet    string
	Signature string
	SolAmount float64
	Price     float64
	ServedAt  time.Time
}
