// Package feed pushes new buy-trade rows to WebSocket subscribers.
// Polling the provider is done server-side: the hub re-fetches the newest
// partition window per subscribed token on a fixed interval and delivers
// only rows a subscription has not seen yet, deduplicated by the same
// composite key the merge engine uses.
package feed

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"sol-trade-feed/internal/domain"
	"sol-trade-feed/internal/horizon"
	"sol-trade-feed/internal/observability"
)

// Default configuration values.
const (
	DefaultPollInterval = 15 * time.Second
	DefaultWriteTimeout = 10 * time.Second
	DefaultPingInterval = 30 * time.Second
)

// WindowFetcher retrieves normalized rows for one window.
type WindowFetcher interface {
	FetchWindow(ctx context.Context, token string, w domain.Window, limit int) ([]domain.TradeRow, error)
}

// HubConfig configures Hub behavior.
type HubConfig struct {
	PollInterval time.Duration
	WriteTimeout time.Duration
	PingInterval time.Duration
	// LimitPerPoll caps rows fetched per poll per token.
	LimitPerPoll int
}

// DefaultHubConfig returns default hub configuration.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		PollInterval: DefaultPollInterval,
		WriteTimeout: DefaultWriteTimeout,
		PingInterval: DefaultPingInterval,
		LimitPerPoll: 3000,
	}
}

// Hub owns all live subscriptions and the poll loop.
type Hub struct {
	fetcher WindowFetcher
	horizon *horizon.Service
	config  HubConfig
	logger  *log.Logger

	upgrader websocket.Upgrader

	mu   sync.Mutex
	subs map[*subscription]struct{}

	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// subscription is one connected client watching one token.
type subscription struct {
	token string
	conn  *websocket.Conn

	writeMu sync.Mutex
	// seen maps delivered row keys to their trade time so stale keys can
	// be dropped once they fall out of the polled window.
	seen map[string]time.Time
}

// NewHub creates a feed hub. Callers must run it and close it.
func NewHub(fetcher WindowFetcher, hz *horizon.Service, config *HubConfig, logger *log.Logger) *Hub {
	cfg := DefaultHubConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Hub{
		fetcher: fetcher,
		horizon: hz,
		config:  cfg,
		logger:  logger,
		upgrader: websocket.Upgrader{
			// The HTTP layer already allows cross-origin requests.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		subs: make(map[*subscription]struct{}),
		done: make(chan struct{}),
	}
}

// tradesMessage is the wire frame pushed to subscribers.
type tradesMessage struct {
	Type    string            `json:"type"`
	Token   string            `json:"token"`
	Rows    []domain.TradeRow `json:"rows"`
	Dataset string            `json:"dataset"`
}

// ServeHTTP upgrades the request and registers the subscription. The token
// must be passed as the "token" query parameter and be a well-formed mint.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if err := domain.ValidateMint(token); err != nil {
		http.Error(w, "invalid token: "+err.Error(), http.StatusBadRequest)
		return
	}

	select {
	case <-h.done:
		http.Error(w, "feed is shutting down", http.StatusServiceUnavailable)
		return
	default:
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		h.logger.Printf("websocket upgrade failed: %v", err)
		return
	}

	sub := &subscription{
		token: token,
		conn:  conn,
		seen:  make(map[string]time.Time),
	}

	// Registration and wg.Add happen under the same lock as the re-check
	// of done: Close closes done before it snapshots subs, so a
	// subscription registered here is either refused or included in the
	// snapshot and waited for.
	h.mu.Lock()
	select {
	case <-h.done:
		h.mu.Unlock()
		conn.Close()
		return
	default:
	}
	h.subs[sub] = struct{}{}
	count := len(h.subs)
	h.wg.Add(1)
	h.mu.Unlock()
	observability.UpdateFeedSubscriptions(count)

	if !domain.MintOnCurve(token) {
		h.logger.Printf("feed subscribe %s (off-curve mint), %d active", token, count)
	} else {
		h.logger.Printf("feed subscribe %s, %d active", token, count)
	}

	// Push a snapshot of the newest window immediately so the client is
	// not left empty until the next poll tick.
	h.pushNewRows(context.Background(), sub)

	// Reader goroutine: the hub never expects inbound frames, but reading
	// is required to process control frames and detect closure.
	go func() {
		defer h.wg.Done()
		defer h.unsubscribe(sub)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// unsubscribe removes a subscription and closes its connection.
func (h *Hub) unsubscribe(sub *subscription) {
	h.mu.Lock()
	_, present := h.subs[sub]
	delete(h.subs, sub)
	count := len(h.subs)
	h.mu.Unlock()

	if present {
		sub.conn.Close()
		observability.UpdateFeedSubscriptions(count)
		h.logger.Printf("feed unsubscribe %s, %d active", sub.token, count)
	}
}

// Run polls until the context is canceled or the hub is closed.
func (h *Hub) Run(ctx context.Context) error {
	pollTicker := time.NewTicker(h.config.PollInterval)
	defer pollTicker.Stop()

	pingTicker := time.NewTicker(h.config.PingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-h.done:
			return nil
		case <-pollTicker.C:
			h.pollAll(ctx)
		case <-pingTicker.C:
			h.pingAll()
		}
	}
}

// Close shuts the hub down and disconnects all subscribers.
func (h *Hub) Close() {
	h.once.Do(func() {
		close(h.done)
	})

	h.mu.Lock()
	subs := make([]*subscription, 0, len(h.subs))
	for sub := range h.subs {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		h.unsubscribe(sub)
	}
	h.wg.Wait()
}

// pollAll fetches the newest window once per distinct token and fans the
// rows out to that token's subscriptions. A failed poll logs and keeps the
// subscriptions: the feed is best-effort, unlike the all-or-nothing POST
// batch.
func (h *Hub) pollAll(ctx context.Context) {
	h.mu.Lock()
	byToken := make(map[string][]*subscription)
	for sub := range h.subs {
		byToken[sub.token] = append(byToken[sub.token], sub)
	}
	h.mu.Unlock()

	for token, subs := range byToken {
		rows, err := h.fetchNewest(ctx, token)
		if err != nil {
			observability.RecordFeedPollError()
			h.logger.Printf("feed poll %s: %v", token, err)
			continue
		}
		for _, sub := range subs {
			h.deliver(sub, rows)
		}
	}
}

// pushNewRows fetches and delivers for a single subscription.
func (h *Hub) pushNewRows(ctx context.Context, sub *subscription) {
	rows, err := h.fetchNewest(ctx, sub.token)
	if err != nil {
		observability.RecordFeedPollError()
		h.logger.Printf("feed snapshot %s: %v", sub.token, err)
		return
	}
	h.deliver(sub, rows)
}

// fetchNewest retrieves the newest partition window for a token.
func (h *Hub) fetchNewest(ctx context.Context, token string) ([]domain.TradeRow, error) {
	newest := h.horizon.Partition()[0]
	return h.fetcher.FetchWindow(ctx, token, newest, h.config.LimitPerPoll)
}

// deliver sends rows the subscription has not seen yet.
func (h *Hub) deliver(sub *subscription, rows []domain.TradeRow) {
	sub.writeMu.Lock()
	defer sub.writeMu.Unlock()

	var fresh []domain.TradeRow
	for _, row := range rows {
		key := row.Key()
		if _, dup := sub.seen[key]; dup {
			continue
		}
		sub.seen[key] = row.Time
		fresh = append(fresh, row)
	}
	if len(fresh) == 0 {
		return
	}

	// Drop seen keys that can no longer reappear in the polled window.
	cutoff := h.horizon.Bounds().MinSince
	for key, at := range sub.seen {
		if at.Before(cutoff) {
			delete(sub.seen, key)
		}
	}

	msg := tradesMessage{
		Type:    "trades",
		Token:   sub.token,
		Rows:    fresh,
		Dataset: domain.DatasetRealtime,
	}

	sub.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
	if err := sub.conn.WriteJSON(msg); err != nil {
		h.logger.Printf("feed write %s: %v", sub.token, err)
		go h.unsubscribe(sub)
		return
	}
	observability.RecordFeedRowsPushed(len(fresh))
}

// pingAll sends a ping control frame to every subscription.
func (h *Hub) pingAll() {
	h.mu.Lock()
	subs := make([]*subscription, 0, len(h.subs))
	for sub := range h.subs {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		sub.writeMu.Lock()
		sub.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
		err := sub.conn.WriteMessage(websocket.PingMessage, nil)
		sub.writeMu.Unlock()
		if err != nil {
			go h.unsubscribe(sub)
		}
	}
}

// SubscriptionCount returns the number of active subscriptions.
func (h *Hub) SubscriptionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
