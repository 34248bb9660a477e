// Package server is the HTTP transport layer: routing, request parsing,
// CORS and static assets. All window and trade semantics live in the
// horizon and trades packages; handlers here only translate between HTTP
// and those components.
package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"sol-trade-feed/internal/domain"
	"sol-trade-feed/internal/horizon"
	"sol-trade-feed/internal/observability"
	"sol-trade-feed/internal/storage"
)

// DefaultLimitPerWindow caps provider records per window when the client
// does not ask for a limit.
const DefaultLimitPerWindow = 3000

// WindowFetcher retrieves normalized rows for one accepted window.
type WindowFetcher interface {
	FetchWindow(ctx context.Context, token string, w domain.Window, limit int) ([]domain.TradeRow, error)
}

// Options configures Server.
type Options struct {
	Horizon  *horizon.Service
	Fetcher  WindowFetcher
	TradeLog storage.TradeLogStore
	// Feed handles WebSocket subscriptions; nil disables the live feed.
	Feed http.Handler
	// StaticDir serves the bundled client; empty disables it.
	StaticDir    string
	DefaultLimit int
	Logger       *log.Logger
}

// Server holds handler dependencies and request counters.
type Server struct {
	horizon      *horizon.Service
	fetcher      WindowFetcher
	tradeLog     storage.TradeLogStore
	feed         http.Handler
	staticDir    string
	defaultLimit int
	logger       *log.Logger

	mu            sync.Mutex
	started       time.Time
	tradeRequests int
	rowsServed    int
}

// New creates a Server.
func New(opts Options) *Server {
	limit := opts.DefaultLimit
	if limit <= 0 {
		limit = DefaultLimitPerWindow
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		horizon:      opts.Horizon,
		fetcher:      opts.Fetcher,
		tradeLog:     opts.TradeLog,
		feed:         opts.Feed,
		staticDir:    opts.StaticDir,
		defaultLimit: limit,
		logger:       logger,
		started:      time.Now(),
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /horizon-info", s.handleHorizonInfo)
	mux.HandleFunc("GET /time-ping", s.handleTimePing)
	mux.HandleFunc("POST /trades", s.handleTrades)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", observability.Handler())
	mux.HandleFunc("GET /status", s.handleStatus)

	if s.feed != nil {
		mux.Handle("GET /ws", s.feed)
	}

	if s.staticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(s.staticDir)))
	}

	return corsMiddleware(mux)
}

// corsMiddleware allows cross-origin requests from the client app.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
