package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"sol-trade-feed/internal/domain"
	"sol-trade-feed/internal/horizon"
	"sol-trade-feed/internal/observability"
	"sol-trade-feed/internal/provider"
	"sol-trade-feed/internal/trades"
)

// boundsDTO is the canonical horizon attached to every validation error
// so the client can self-correct.
type boundsDTO struct {
	MinSince string `json:"minSince"`
	MaxTill  string `json:"maxTill"`
}

func boundsOf(b domain.Bounds) boundsDTO {
	return boundsDTO{
		MinSince: b.MinSince.Format(time.RFC3339),
		MaxTill:  b.MaxTill.Format(time.RFC3339),
	}
}

// errorResponse is the body of every non-2xx reply.
type errorResponse struct {
	Error   string     `json:"error"`
	Details string     `json:"details"`
	Bounds  *boundsDTO `json:"bounds,omitempty"`
}

// handleHorizonInfo publishes the canonical horizon. Clients must use
// these windows verbatim rather than computing their own.
func (s *Server) handleHorizonInfo(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		observability.RecordRequestDuration("horizon-info", time.Since(start).Seconds())
	}()

	h := s.horizon.Horizon()

	type windowDTO struct {
		SinceISO string `json:"sinceISO"`
		TillISO  string `json:"tillISO"`
	}
	windows := make([]windowDTO, 0, h.LookbackHours/h.WindowHours)
	for _, win := range s.horizon.Partition() {
		windows = append(windows, windowDTO{
			SinceISO: win.Since.Format(time.RFC3339),
			TillISO:  win.Till.Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"nowISO": h.Now.Format(time.RFC3339),
		"bounds": boundsOf(s.horizon.Bounds()),
		"hours": map[string]int{
			"realtime":  h.LookbackHours,
			"perWindow": h.WindowHours,
		},
		"windows": windows,
	})
}

// handleTimePing is diagnostic: it exposes both the wall clock and the
// rounded instant the horizon is anchored to, so clients can gauge skew.
// This is the one place outside the clock package that reads the wall
// clock, and the value is never fed back into window computation.
func (s *Server) handleTimePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"nowISO":         time.Now().UTC().Format(time.RFC3339Nano),
		"roundedHourISO": s.horizon.Horizon().Now.Format(time.RFC3339),
	})
}

// tradesRequest is the POST /trades body.
type tradesRequest struct {
	Token          string      `json:"token"`
	Windows        []rawWindow `json:"windows"`
	LimitPerWindow int         `json:"limitPerWindow"`
}

type rawWindow struct {
	Since string `json:"since"`
	Till  string `json:"till"`
}

// handleTrades validates every submitted window eagerly, fetches accepted
// windows sequentially and merges the results. The outcome is
// all-or-nothing: one invalid window fails the batch before any provider
// call, and one failed fetch aborts the remaining windows.
func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		observability.RecordRequestDuration("trades", time.Since(start).Seconds())
	}()

	var req tradesRequest
	if err := decodeBody(r, &req); err != nil {
		s.rejectValidation(w, "malformed request body", err.Error())
		return
	}

	if req.Token == "" {
		s.rejectValidation(w, "validation failed", "missing token")
		return
	}
	if err := domain.ValidateMint(req.Token); err != nil {
		s.rejectValidation(w, "validation failed", err.Error())
		return
	}
	if len(req.Windows) == 0 {
		s.rejectValidation(w, "validation failed", "missing windows")
		return
	}

	limit := req.LimitPerWindow
	if limit <= 0 {
		limit = s.defaultLimit
	}

	// Gate every window before the first provider call.
	windows := make([]domain.Window, 0, len(req.Windows))
	for _, raw := range req.Windows {
		win, err := s.horizon.Validate(raw.Since, raw.Till)
		if err != nil {
			var rej *horizon.RejectError
			if errors.As(err, &rej) {
				observability.RecordWindowRejected(rej.Reason)
				s.rejectValidation(w, "validation failed", rej.Reason)
			} else {
				s.rejectValidation(w, "validation failed", err.Error())
			}
			return
		}
		observability.RecordWindowValidated()
		windows = append(windows, win)
	}

	batches := make([][]domain.TradeRow, 0, len(windows))
	for _, win := range windows {
		fetchStart := time.Now()
		rows, err := s.fetcher.FetchWindow(r.Context(), req.Token, win, limit)
		if err != nil {
			var perr *provider.Error
			if errors.As(err, &perr) {
				observability.RecordProviderCall("error", time.Since(fetchStart).Seconds())
				observability.RecordTradeRequest("provider_error")
				s.logger.Printf("provider fetch %s [%s, %s): %v", req.Token, win.Since.Format(time.RFC3339), win.Till.Format(time.RFC3339), err)
				writeJSON(w, http.StatusInternalServerError, errorResponse{
					Error:   "provider error",
					Details: perr.Detail,
				})
			} else {
				observability.RecordTradeRequest("internal_error")
				s.logger.Printf("fetch %s: %v", req.Token, err)
				writeJSON(w, http.StatusInternalServerError, errorResponse{
					Error:   "internal error",
					Details: err.Error(),
				})
			}
			return
		}
		observability.RecordProviderCall("success", time.Since(fetchStart).Seconds())
		batches = append(batches, rows)
	}

	merged := trades.Merge(batches...)

	s.mu.Lock()
	s.tradeRequests++
	s.rowsServed += len(merged)
	s.mu.Unlock()
	observability.RecordTradeRequest("success")
	observability.RecordRowsServed(len(merged))

	s.appendTradeLog(req.Token, merged)

	writeJSON(w, http.StatusOK, map[string]any{
		"rows":             merged,
		"dataset":          domain.DatasetRealtime,
		"maxLookbackHours": s.horizon.LookbackHours(),
	})
}

// rejectValidation writes a 400 with the canonical bounds attached.
func (s *Server) rejectValidation(w http.ResponseWriter, msg, details string) {
	observability.RecordTradeRequest("validation_error")
	bounds := boundsOf(s.horizon.Bounds())
	writeJSON(w, http.StatusBadRequest, errorResponse{
		Error:   msg,
		Details: details,
		Bounds:  &bounds,
	})
}

// appendTradeLog records served rows asynchronously. The log is
// best-effort: a failed write is logged, never surfaced to the client.
func (s *Server) appendTradeLog(token string, rows []domain.TradeRow) {
	if s.tradeLog == nil || len(rows) == 0 {
		return
	}

	servedAt := time.Now().UTC()
	entries := make([]*domain.TradeLogEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, &domain.TradeLogEntry{
			Token:     token,
			Time:      row.Time,
			Wallet:    row.Wallet,
			Signature: row.Signature,
			SolAmount: row.SolAmount,
			Price:     row.Price,
			ServedAt:  servedAt,
		})
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := s.tradeLog.InsertBulk(ctx, entries)
		observability.RecordTradeLogInsert(len(entries), err)
		if err != nil {
			s.logger.Printf("trade log insert (%d rows): %v", len(entries), err)
		}
	}()
}

// handleStatus returns server status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "running",
		"uptime":        time.Since(s.started).String(),
		"tradeRequests": s.tradeRequests,
		"rowsServed":    s.rowsServed,
	})
}

// decodeBody decodes a JSON request body.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return fmt.Errorf("empty body")
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}
	return nil
}
