// Package exchange hosts the upstream market data connectors and the
// normalization boundary: everything that reaches the engine from here is a
// validated signal.Event.
package exchange

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog"

	"orderflow-go/internal/metrics"
	"orderflow-go/internal/signal"
)

const (
	// ProviderStub emits deterministic synthetic events (useful for tests/offline work).
	ProviderStub = "stub"
	// ProviderHyperliquid streams one coin's l2 book and trades from Hyperliquid.
	ProviderHyperliquid = "hyperliquid"
)

const defaultHyperliquidURL = "wss://api.hyperliquid.xyz/ws"

// Feed represents a pluggable market data stream implementation.
type Feed struct {
	provider string
	coin     string
	url      string
	log      zerolog.Logger
}

// Option configures Feed construction parameters.
type Option func(*Feed)

// WithURL overrides the upstream websocket endpoint.
func WithURL(url string) Option {
	return func(f *Feed) {
		if url != "" {
			f.url = url
		}
	}
}

// NewFeed constructs a feed backed by the requested provider.
func NewFeed(provider, coin string, log zerolog.Logger, opts ...Option) *Feed {
	if provider == "" {
		provider = ProviderStub
	}
	f := &Feed{
		provider: provider,
		coin:     coin,
		url:      defaultHyperliquidURL,
		log:      log,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Run pushes normalized events onto the provided channel until the context is
// canceled.
func (f *Feed) Run(ctx context.Context, out chan<- signal.Event) error {
	switch f.provider {
	case ProviderHyperliquid:
		return f.runHyperliquid(ctx, out)
	default:
		return f.runStub(ctx, out)
	}
}

// runStub walks a synthetic price and republishes a small book around it.
// Output depends only on tick count, so offline runs replay identically.
func (f *Feed) runStub(ctx context.Context, out chan<- signal.Event) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	n := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ts := <-ticker.C:
			n++
			px := 100 + 2*math.Sin(float64(n)/20)
			side := signal.Buy
			if n%3 == 0 {
				side = signal.Sell
			}
			events := []signal.Event{
				{Trade: &signal.Trade{Price: px, Size: 1 + float64(n%5), Side: side, Ts: ts.UnixMilli()}},
			}
			if n%5 == 0 {
				events = append(events, signal.Event{Book: []signal.BookDelta{
					{Side: signal.Bid, Price: math.Floor(px) - 1, Size: 10},
					{Side: signal.Bid, Price: math.Floor(px) - 2, Size: 20},
					{Side: signal.Ask, Price: math.Ceil(px) + 1, Size: 10},
					{Side: signal.Ask, Price: math.Ceil(px) + 2, Size: 20},
				}})
			}
			for _, ev := range events {
				select {
				case out <- ev:
					if ev.Trade != nil {
						metrics.TradesTotal.Inc()
					} else {
						metrics.BookUpdatesTotal.Inc()
					}
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
}
