// Package main runs the trade feed server:
// - HTTP API: horizon info, time ping, batched buy-trade queries
// - WebSocket feed: live buy trades for subscribed tokens
// - Trade log: served rows persisted for the lookback horizon
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"sol-trade-feed/internal/clock"
	"sol-trade-feed/internal/feed"
	"sol-trade-feed/internal/horizon"
	"sol-trade-feed/internal/observability"
	"sol-trade-feed/internal/provider"
	"sol-trade-feed/internal/server"
	"sol-trade-feed/internal/storage"
	chstore "sol-trade-feed/internal/storage/clickhouse"
	"sol-trade-feed/internal/storage/memory"
	"sol-trade-feed/internal/storage/migrations"
	"sol-trade-feed/internal/trades"
)

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	listenAddr := flag.String("listen-addr", envOr("LISTEN_ADDR", ":8080"), "HTTP listen address")
	providerToken := flag.String("provider-token", os.Getenv("BITQUERY_TOKEN"), "Bitquery API token")
	providerEndpoint := flag.String("provider-endpoint", envOr("BITQUERY_ENDPOINT", provider.DefaultEndpoint), "Bitquery GraphQL endpoint")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string for the trade log (empty = in-memory)")
	staticDir := flag.String("static-dir", os.Getenv("STATIC_DIR"), "Directory with the bundled web client (empty = disabled)")
	limitPerWindow := flag.Int("limit-per-window", server.DefaultLimitPerWindow, "Default provider record cap per window")
	lookbackHours := flag.Int("lookback-hours", horizon.DefaultLookbackHours, "Realtime lookback horizon in hours")
	windowHours := flag.Int("window-hours", horizon.DefaultWindowHours, "Partition window size in hours")
	tolerance := flag.Duration("tolerance", horizon.DefaultTolerance, "Boundary tolerance for window validation")
	pollInterval := flag.Duration("feed-poll-interval", 15*time.Second, "WebSocket feed poll interval")
	pruneInterval := flag.Duration("prune-interval", 1*time.Hour, "Trade log prune interval")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	// Validate required flags
	if *providerToken == "" {
		logger.Fatal("--provider-token (or BITQUERY_TOKEN) is required")
	}
	if *lookbackHours <= 0 || *windowHours <= 0 || *lookbackHours%*windowHours != 0 {
		logger.Fatalf("window hours (%d) must evenly divide lookback hours (%d)", *windowHours, *lookbackHours)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Trade log store: ClickHouse when a DSN is given, in-memory otherwise.
	tradeLog, cleanup, err := createTradeLog(ctx, *clickhouseDSN, logger)
	if err != nil {
		logger.Fatalf("Failed to create trade log store: %v", err)
	}
	defer cleanup()

	hz := horizon.New(clock.HourClock{},
		horizon.WithLookbackHours(*lookbackHours),
		horizon.WithWindowHours(*windowHours),
		horizon.WithTolerance(*tolerance),
	)

	client := provider.NewClient(*providerToken, provider.WithEndpoint(*providerEndpoint))
	fetcher := trades.NewFetcher(client)

	hubConfig := feed.DefaultHubConfig()
	hubConfig.PollInterval = *pollInterval
	hubConfig.LimitPerPoll = *limitPerWindow
	hub := feed.NewHub(fetcher, hz, &hubConfig, log.New(os.Stdout, "[feed] ", log.LstdFlags|log.Lshortfile))

	srv := server.New(server.Options{
		Horizon:      hz,
		Fetcher:      fetcher,
		TradeLog:     tradeLog,
		Feed:         hub,
		StaticDir:    *staticDir,
		DefaultLimit: *limitPerWindow,
		Logger:       logger,
	})

	httpServer := &http.Server{
		Addr:    *listenAddr,
		Handler: srv.Handler(),
	}

	// Channel to signal completion
	done := make(chan struct{})

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)
		hub.Close()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	// Feed hub poll loop
	go func() {
		if err := hub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Printf("Feed hub error: %v", err)
		}
	}()

	// Janitor: prune trade log rows that fell out of the horizon.
	go runJanitor(ctx, tradeLog, hz, *pruneInterval, logger)

	logger.Printf("Listening on %s (lookback %dh, windows %dh)", *listenAddr, *lookbackHours, *windowHours)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("HTTP server error: %v", err)
	}

	close(done)
	logger.Println("Shutdown complete")
}

// createTradeLog builds the trade log store and runs migrations when backed
// by ClickHouse.
func createTradeLog(ctx context.Context, dsn string, logger *log.Logger) (storage.TradeLogStore, func(), error) {
	if dsn == "" {
		logger.Println("No ClickHouse DSN, using in-memory trade log")
		return memory.NewTradeLogStore(), func() {}, nil
	}

	conn, err := chstore.NewConn(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
	}
	if err := migrations.RunClickhouse(ctx, conn); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("run clickhouse migrations: %w", err)
	}

	return chstore.NewTradeLogStore(conn), func() { conn.Close() }, nil
}

// runJanitor periodically removes trade log rows older than the horizon's
// minimum since.
func runJanitor(ctx context.Context, tradeLog storage.TradeLogStore, hz *horizon.Service, interval time.Duration, logger *log.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := hz.Bounds().MinSince
			if err := tradeLog.PruneBefore(ctx, cutoff); err != nil {
				logger.Printf("Trade log prune failed: %v", err)
				continue
			}
			observability.RecordTradeLogPrune()
		}
	}
}

// envOr returns the env var value or a fallback when unset.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
