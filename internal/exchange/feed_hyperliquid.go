package exchange

import (
	"context"
	"encoding/json"
	"math"
	"math/rand"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"orderflow-go/internal/metrics"
	"orderflow-go/internal/signal"
)

type hlEnvelope struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

type hlBook struct {
	Levels []hlLevel `json:"levels"`
}

type hlLevel struct {
	Side string `json:"side"` // "B" bid, "A" ask
	Px   string `json:"px"`
	Sz   string `json:"sz"`
}

type hlTrade struct {
	Price string `json:"p"`
	Size  string `json:"s"`
	Side  string `json:"side"` // "B" aggressive buy
}

type hlSubscription struct {
	Type string `json:"type"`
	Coin string `json:"coin"`
}

type hlSubscribe struct {
	Method       string         `json:"method"`
	Subscription hlSubscription `json:"subscription"`
}

func (f *Feed) runHyperliquid(ctx context.Context, out chan<- signal.Event) error {
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := f.consumeHyperliquid(ctx, out); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			f.log.Warn().Err(err).Msg("hyperliquid feed disconnected, retrying")
			// Jittered wait so a fleet of reconnects never stampedes.
			wait := backoff + time.Duration(rand.Int63n(int64(backoff)/4+1))
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff = time.Duration(math.Min(float64(maxBackoff), float64(backoff)*1.8))
			continue
		}
		return nil
	}
}

func (f *Feed) consumeHyperliquid(ctx context.Context, out chan<- signal.Event) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	for _, typ := range []string{"l2Book", "trades"} {
		sub := hlSubscribe{Method: "subscribe", Subscription: hlSubscription{Type: typ, Coin: f.coin}}
		if err := conn.WriteJSON(sub); err != nil {
			return err
		}
	}
	f.log.Info().Str("provider", ProviderHyperliquid).Str("coin", f.coin).Msg("connected market data feed")

	conn.SetReadLimit(1 << 20)
	conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	conn.SetPongHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(30 * time.Second))
		return nil
	})

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					f.log.Warn().Err(err).Msg("hyperliquid ping failed")
					return
				}
			case <-pingCtx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		conn.SetReadDeadline(time.Now().Add(30 * time.Second))

		var env hlEnvelope
		if err := json.Unmarshal(message, &env); err != nil {
			f.log.Warn().Err(err).Msg("failed to decode hyperliquid message")
			metrics.DroppedEventsTotal.WithLabelValues("decode").Inc()
			continue
		}

		now := time.Now().UnixMilli()
		for _, ev := range f.normalize(env, now) {
			select {
			case out <- ev:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// normalize converts one upstream message into zero or more validated events.
// Malformed levels and prints are dropped here so core state never sees NaN
// or negative sizes.
func (f *Feed) normalize(env hlEnvelope, nowMs int64) []signal.Event {
	switch env.Channel {
	case "l2Book":
		var book hlBook
		if err := json.Unmarshal(env.Data, &book); err != nil {
			f.log.Warn().Err(err).Msg("failed to decode l2Book payload")
			metrics.DroppedEventsTotal.WithLabelValues("decode").Inc()
			return nil
		}
		deltas := make([]signal.BookDelta, 0, len(book.Levels))
		for _, lvl := range book.Levels {
			d, ok := f.normalizeLevel(lvl)
			if !ok {
				continue
			}
			deltas = append(deltas, d)
		}
		if len(deltas) == 0 {
			return nil
		}
		metrics.BookUpdatesTotal.Inc()
		return []signal.Event{{Book: deltas}}

	case "trades":
		var prints []hlTrade
		if err := json.Unmarshal(env.Data, &prints); err != nil {
			f.log.Warn().Err(err).Msg("failed to decode trades payload")
			metrics.DroppedEventsTotal.WithLabelValues("decode").Inc()
			return nil
		}
		events := make([]signal.Event, 0, len(prints))
		for _, p := range prints {
			t, ok := f.normalizeTrade(p, nowMs)
			if !ok {
				continue
			}
			metrics.TradesTotal.Inc()
			events = append(events, signal.Event{Trade: t})
		}
		return events
	}
	return nil
}

func (f *Feed) normalizeLevel(lvl hlLevel) (signal.BookDelta, bool) {
	px, err := strconv.ParseFloat(lvl.Px, 64)
	sz, err2 := strconv.ParseFloat(lvl.Sz, 64)
	if err != nil || err2 != nil || math.IsNaN(px) || math.IsNaN(sz) || px <= 0 || sz < 0 {
		f.log.Warn().Str("px", lvl.Px).Str("sz", lvl.Sz).Msg("dropping malformed book level")
		metrics.DroppedEventsTotal.WithLabelValues("invalid_level").Inc()
		return signal.BookDelta{}, false
	}
	side := signal.Bid
	if lvl.Side == "A" {
		side = signal.Ask
	} else if lvl.Side != "B" {
		metrics.DroppedEventsTotal.WithLabelValues("invalid_level").Inc()
		return signal.BookDelta{}, false
	}
	return signal.BookDelta{Side: side, Price: px, Size: sz}, true
}

func (f *Feed) normalizeTrade(p hlTrade, nowMs int64) (*signal.Trade, bool) {
	px, err := strconv.ParseFloat(p.Price, 64)
	sz, err2 := strconv.ParseFloat(p.Size, 64)
	if err != nil || err2 != nil || math.IsNaN(px) || math.IsNaN(sz) || px <= 0 || sz < 0 {
		f.log.Warn().Str("p", p.Price).Str("s", p.Size).Msg("dropping malformed trade")
		metrics.DroppedEventsTotal.WithLabelValues("invalid_trade").Inc()
		return nil, false
	}
	side := signal.Sell
	if p.Side == "B" {
		side = signal.Buy
	}
	return &signal.Trade{Price: px, Size: sz, Side: side, Ts: nowMs}, true
}
