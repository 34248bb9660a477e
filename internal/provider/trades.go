package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// buyTradesQuery requests buy-side trades for one token mint within
// [since, till), successful transactions only, price strictly positive,
// ascending by block time.
const buyTradesQuery = `
query ($token: String!, $since: DateTime!, $till: DateTime!, $limit: Int!, $offset: Int!) {
  Solana(dataset: realtime) {
    DEXTrades(
      where: {
        Trade: {
          Buy: {Currency: {MintAddress: {is: $token}}, PriceInUSD: {gt: 0}}
        }
        Transaction: {Result: {Success: true}}
        Block: {Time: {since: $since, till: $till}}
      }
      orderBy: {ascending: Block_Time}
      limit: {count: $limit, offset: $offset}
    ) {
      Block {
        Time
      }
      Transaction {
        Signature
      }
      Trade {
        Buy {
          PriceInUSD
          Account {
            Owner
          }
        }
        Side
      }
    }
  }
}`

// BuyTradesRequest parameterizes one per-window provider query.
type BuyTradesRequest struct {
	TokenMint string
	Since     time.Time
	Till      time.Time
	Limit     int
	Offset    int
}

// TradeRecord is the normalized intermediate representation of one
// upstream trade: heterogeneous and optional nested fields are resolved
// in a single explicit decode step so downstream attribution logic never
// deals with transport shapes.
type TradeRecord struct {
	BlockTime time.Time
	Signature string
	Price     float64
	Owner     string
	Sides     []TradeSide
}

// TradeSide is one sub-leg of a trade.
type TradeSide struct {
	Type    string
	Address string
	Owner   string
	Mint    string
	Amount  float64
}

// SideBuy is the leg type representing the purchasing side of a trade.
const SideBuy = "buy"

// BuyTrades fetches buy-side trade records for a token within the window.
// Exactly one provider request is issued per call.
func (c *Client) BuyTrades(ctx context.Context, req BuyTradesRequest) ([]TradeRecord, error) {
	vars := map[string]any{
		"token":  req.TokenMint,
		"since":  req.Since.UTC().Format(time.RFC3339),
		"till":   req.Till.UTC().Format(time.RFC3339),
		"limit":  req.Limit,
		"offset": req.Offset,
	}

	var data struct {
		Solana struct {
			DEXTrades []rawTrade `json:"DEXTrades"`
		} `json:"Solana"`
	}
	if err := c.query(ctx, buyTradesQuery, vars, &data); err != nil {
		return nil, err
	}

	records := make([]TradeRecord, 0, len(data.Solana.DEXTrades))
	for i, rt := range data.Solana.DEXTrades {
		rec, err := rt.normalize()
		if err != nil {
			return nil, &Error{Detail: fmt.Sprintf("trade record %d: %v", i, err)}
		}
		records = append(records, rec)
	}
	return records, nil
}

// rawTrade mirrors the provider's wire shape before normalization.
type rawTrade struct {
	Block struct {
		Time string `json:"Time"`
	} `json:"Block"`
	Transaction struct {
		Signature string `json:"Signature"`
	} `json:"Transaction"`
	Trade struct {
		Buy struct {
			PriceInUSD float64 `json:"PriceInUSD"`
			Account    *struct {
				Owner string `json:"Owner"`
			} `json:"Account"`
		} `json:"Buy"`
		Side sideList `json:"Side"`
	} `json:"Trade"`
}

// sideList absorbs the provider's two encodings of trade sides: a single
// object for simple swaps, an array for multi-leg routes. Missing sides
// decode to an empty list.
type sideList []rawSide

func (s *sideList) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		*s = nil
		return nil
	}
	if data[0] == '[' {
		var list []rawSide
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*s = list
		return nil
	}
	var one rawSide
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	*s = sideList{one}
	return nil
}

type rawSide struct {
	Type    string `json:"Type"`
	Account *struct {
		Address string `json:"Address"`
		Owner   string `json:"Owner"`
	} `json:"Account"`
	Currency *struct {
		MintAddress string `json:"MintAddress"`
	} `json:"Currency"`
	// Amount arrives as a string on some datasets and a number on others.
	Amount json.Number `json:"Amount"`
}

// normalize flattens a raw wire trade into a TradeRecord.
func (rt rawTrade) normalize() (TradeRecord, error) {
	blockTime, err := time.Parse(time.RFC3339Nano, rt.Block.Time)
	if err != nil {
		return TradeRecord{}, fmt.Errorf("parse block time %q: %w", rt.Block.Time, err)
	}

	rec := TradeRecord{
		BlockTime: blockTime.UTC(),
		Signature: rt.Transaction.Signature,
		Price:     rt.Trade.Buy.PriceInUSD,
	}
	if rt.Trade.Buy.Account != nil {
		rec.Owner = rt.Trade.Buy.Account.Owner
	}

	for _, rs := range rt.Trade.Side {
		side := TradeSide{Type: rs.Type}
		if rs.Account != nil {
			side.Address = rs.Account.Address
			side.Owner = rs.Account.Owner
		}
		if rs.Currency != nil {
			side.Mint = rs.Currency.MintAddress
		}
		if rs.Amount != "" {
			amount, err := rs.Amount.Float64()
			if err != nil {
				return TradeRecord{}, fmt.Errorf("parse side amount %q: %w", rs.Amount, err)
			}
			side.Amount = amount
		}
		rec.Sides = append(rec.Sides, side)
	}

	return rec, nil
}
