package ws

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"

	"coinex-trader/interfaces"
	"coinex-trader/logging"
)

const (
	pongWait   = 70 * time.Second
	pingPeriod = 30 * time.Second
	staleAfter = 30 * time.Second
)

// Feed maintains a live index price for one market over the CoinEx public
// websocket. It is a best-effort side channel: consumers fall back to REST
// when the feed has no fresh price.
type Feed struct {
	url    string
	market string
	logger logging.LoggerInterface

	mu        sync.RWMutex
	lastPrice float64
	updatedAt time.Time
}

var _ interfaces.PriceSource = (*Feed)(nil)

// NewFeed creates a price feed for the given market.
func NewFeed(url, market string, logger logging.LoggerInterface) *Feed {
	return &Feed{url: url, market: market, logger: logger}
}

// IndexPrice returns the last streamed index price, or false when the feed
// is disconnected or stale.
func (f *Feed) IndexPrice() (float64, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.lastPrice <= 0 || time.Since(f.updatedAt) > staleAfter {
		return 0, false
	}
	return f.lastPrice, true
}

// Run connects and consumes state updates until ctx is cancelled,
// reconnecting with a fixed backoff on any failure.
func (f *Feed) Run(ctx context.Context) {
	for {
		if err := f.consume(ctx); err != nil {
			f.logger.Warning("price feed disconnected: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(5 * time.Second):
		}
	}
}

func (f *Feed) consume(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.Dial(f.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	sub := map[string]any{
		"method": "state.subscribe",
		"params": map[string]any{"market_list": []string{f.market}},
		"id":     1,
	}
	if err := conn.WriteJSON(sub); err != nil {
		return err
	}
	f.logger.Info("price feed subscribed: %s", f.market)

	done := make(chan struct{})
	defer close(done)
	go f.pingLoop(ctx, conn, done)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		f.handle(msg)
	}
}

func (f *Feed) pingLoop(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			conn.Close()
			return
		case <-done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(5 * time.Second)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

func (f *Feed) handle(msg []byte) {
	if gjson.GetBytes(msg, "method").String() != "state.update" {
		return
	}
	states := gjson.GetBytes(msg, "data.state_list")
	states.ForEach(func(_, state gjson.Result) bool {
		if state.Get("market").String() != f.market {
			return true
		}
		if price := state.Get("index_price").Float(); price > 0 {
			f.mu.Lock()
			f.lastPrice = price
			f.updatedAt = time.Now()
			f.mu.Unlock()
		}
		return true
	})
}
