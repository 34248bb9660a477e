package feed

import (
	"context"
	"log"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"sol-trade-feed/internal/clock"
	"sol-trade-feed/internal/domain"
	"sol-trade-feed/internal/horizon"
)

// scriptedFetcher returns one batch per call, repeating the last batch
// once the script runs out.
type scriptedFetcher struct {
	mu      sync.Mutex
	batches [][]domain.TradeRow
	calls   int
}

func (f *scriptedFetcher) FetchWindow(_ context.Context, _ string, _ domain.Window, _ int) ([]domain.TradeRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	if i >= len(f.batches) {
		i = len(f.batches) - 1
	}
	f.calls++
	return f.batches[i], nil
}

func feedRow(sig string, at time.Time) domain.TradeRow {
	return domain.TradeRow{
		Time:      at,
		Wallet:    "walletA",
		Signature: sig,
		Dataset:   domain.DatasetRealtime,
	}
}

func TestHub_SnapshotThenIncrementalRows(t *testing.T) {
	anchor := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	hz := horizon.New(clock.Fixed(anchor))

	first := feedRow("sig1", anchor.Add(-time.Hour))
	second := feedRow("sig2", anchor.Add(-30*time.Minute))

	fetcher := &scriptedFetcher{batches: [][]domain.TradeRow{
		{first},
		{first, second},
	}}

	cfg := DefaultHubConfig()
	cfg.PollInterval = 20 * time.Millisecond
	hub := NewHub(fetcher, hz, &cfg, log.New(testWriter{t}, "[feed-test] ", 0))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)
	defer hub.Close()

	srv := httptest.NewServer(hub)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?token=" + domain.WSOLMint
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Snapshot carries the first batch.
	var msg tradesMessage
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if msg.Type != "trades" || len(msg.Rows) != 1 || msg.Rows[0].Signature != "sig1" {
		t.Fatalf("unexpected snapshot: %+v", msg)
	}
	if msg.Dataset != domain.DatasetRealtime {
		t.Errorf("expected dataset realtime, got %s", msg.Dataset)
	}

	// Next poll delivers only the unseen row.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read incremental frame: %v", err)
	}
	if len(msg.Rows) != 1 || msg.Rows[0].Signature != "sig2" {
		t.Fatalf("expected only sig2, got %+v", msg.Rows)
	}
}

func TestHub_RejectsMalformedToken(t *testing.T) {
	hz := horizon.New(clock.Fixed(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)))
	hub := NewHub(&scriptedFetcher{batches: [][]domain.TradeRow{nil}}, hz, nil, log.New(testWriter{t}, "", 0))

	srv := httptest.NewServer(hub)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?token=not-a-mint"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("expected dial to fail for malformed token")
	}
	if resp == nil || resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %+v", resp)
	}
}

func TestHub_UnsubscribeOnClose(t *testing.T) {
	hz := horizon.New(clock.Fixed(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)))
	hub := NewHub(&scriptedFetcher{batches: [][]domain.TradeRow{nil}}, hz, nil, log.New(testWriter{t}, "", 0))

	srv := httptest.NewServer(hub)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?token=" + domain.WSOLMint
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	waitFor(t, func() bool { return hub.SubscriptionCount() == 1 })
	conn.Close()
	waitFor(t, func() bool { return hub.SubscriptionCount() == 0 })
}

func TestHub_RefusesSubscriptionsAfterClose(t *testing.T) {
	hz := horizon.New(clock.Fixed(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)))
	hub := NewHub(&scriptedFetcher{batches: [][]domain.TradeRow{nil}}, hz, nil, log.New(testWriter{t}, "", 0))

	srv := httptest.NewServer(hub)
	defer srv.Close()

	hub.Close()

	// A connection arriving after Close must be turned away, not left as
	// an orphan subscription nobody disconnects or waits for.
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?token=" + domain.WSOLMint
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("expected dial to fail after hub close")
	}
	if resp == nil || resp.StatusCode != 503 {
		t.Fatalf("expected 503, got %+v", resp)
	}
	if hub.SubscriptionCount() != 0 {
		t.Errorf("expected no subscriptions, got %d", hub.SubscriptionCount())
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not reached before deadline")
}

// testWriter routes hub logs through the test output.
type testWriter struct {
	t *testing.T
}

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Logf("%s", p)
	return len(p), nil
}
