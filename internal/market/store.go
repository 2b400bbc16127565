// Package market holds the authoritative in-memory view of the instrument:
// live book levels, a bounded trade tape, price history, CVD, and the VWAP
// accumulator. Every detector reads from here and nothing else mutates it.
package market

import (
	"math"
	"sync"
	"time"

	"orderflow-go/internal/signal"
	"orderflow-go/internal/stats"
)

// Config bounds the retained history.
type Config struct {
	TapeWindow   time.Duration // trailing window for the trade tape
	PriceHistory int           // max retained price ticks
}

const (
	defaultTapeWindow   = 5 * time.Second
	defaultPriceHistory = 200
)

// Store is the single shared market state. A mutex guards it so the
// evaluation tick always observes fully applied mutations, never a book
// snapshot applied halfway.
type Store struct {
	mu     sync.Mutex
	bids   map[float64]float64
	asks   map[float64]float64
	trades []signal.Trade
	prices []float64
	cvd    float64
	vwap   stats.VWAP

	tapeWindow   time.Duration
	priceHistory int
}

// View is a consistent copy of the detector-visible state, taken under one
// lock hold so detectors stay pure functions over immutable data.
type View struct {
	Trades  []signal.Trade
	Prices  []float64
	CVD     float64
	VWAP    float64
	VWAPStd float64
}

// LastPrice returns the most recent traded price, false before the first print.
func (v View) LastPrice() (float64, bool) {
	if len(v.Prices) == 0 {
		return 0, false
	}
	return v.Prices[len(v.Prices)-1], true
}

// NewStore builds an empty store, falling back to defaults for zero bounds.
func NewStore(cfg Config) *Store {
	if cfg.TapeWindow <= 0 {
		cfg.TapeWindow = defaultTapeWindow
	}
	if cfg.PriceHistory <= 0 {
		cfg.PriceHistory = defaultPriceHistory
	}
	return &Store{
		bids:         make(map[float64]float64),
		asks:         make(map[float64]float64),
		tapeWindow:   cfg.TapeWindow,
		priceHistory: cfg.PriceHistory,
	}
}

// ApplyBook applies every delta of one upstream book message atomically.
// Size 0 deletes a level; levels never hold zero size.
func (s *Store) ApplyBook(deltas []signal.BookDelta) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range deltas {
		side := s.bids
		if d.Side == signal.Ask {
			side = s.asks
		}
		if d.Size == 0 {
			delete(side, d.Price)
			continue
		}
		side[d.Price] = d.Size
	}
}

// ApplyTrade appends a print to the tape and price history, advances CVD and
// VWAP, then prunes. CVD is cumulative across the whole session and is never
// pruned with the tape.
func (s *Store) ApplyTrade(t signal.Trade) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.trades = append(s.trades, t)
	s.prices = append(s.prices, t.Price)

	if t.Side == signal.Buy {
		s.cvd += t.Size
	} else {
		s.cvd -= t.Size
	}
	s.vwap.Update(t.Price, t.Size)

	s.prune(t.Ts)
}

// prune truncates the tape to the trailing window and the price history to
// its cap. The incoming trade's timestamp is the clock, which keeps replays
// of identical event sequences byte-for-byte reproducible.
func (s *Store) prune(nowMs int64) {
	cutoff := nowMs - s.tapeWindow.Milliseconds()
	idx := 0
	for idx < len(s.trades) && s.trades[idx].Ts < cutoff {
		idx++
	}
	if idx > 0 {
		s.trades = append(s.trades[:0], s.trades[idx:]...)
	}
	if n := len(s.prices); n > s.priceHistory {
		s.prices = append(s.prices[:0], s.prices[n-s.priceHistory:]...)
	}
}

// Snapshot copies the detector-visible state under one lock hold.
func (s *Store) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	trades := make([]signal.Trade, len(s.trades))
	copy(trades, s.trades)
	prices := make([]float64, len(s.prices))
	copy(prices, s.prices)

	return View{
		Trades:  trades,
		Prices:  prices,
		CVD:     s.cvd,
		VWAP:    s.vwap.Value,
		VWAPStd: s.vwap.Std(),
	}
}

// Levels copies both book sides, used to feed the liquidity map one
// deduplicated event per live level.
func (s *Store) Levels() (bids, asks map[float64]float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bids = make(map[float64]float64, len(s.bids))
	for p, sz := range s.bids {
		bids[p] = sz
	}
	asks = make(map[float64]float64, len(s.asks))
	for p, sz := range s.asks {
		asks[p] = sz
	}
	return bids, asks
}

// BookStats reports level counts and the best-bid/best-ask spread, 0 when
// either side is empty.
func (s *Store) BookStats() signal.LiquidityStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := signal.LiquidityStats{BidLevels: len(s.bids), AskLevels: len(s.asks)}
	if len(s.bids) == 0 || len(s.asks) == 0 {
		return out
	}
	bestBid := math.Inf(-1)
	for p := range s.bids {
		if p > bestBid {
			bestBid = p
		}
	}
	bestAsk := math.Inf(1)
	for p := range s.asks {
		if p < bestAsk {
			bestAsk = p
		}
	}
	out.Spread = bestAsk - bestBid
	return out
}
