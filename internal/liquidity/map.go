// Package liquidity aggregates order book observations into price-binned
// volume over a rolling window, surfacing bins heavy enough to act as
// support/resistance zone candidates.
package liquidity

import (
	"math"
	"sort"
	"time"

	"orderflow-go/internal/signal"
)

// Config tunes binning and retention.
type Config struct {
	BinSize        float64       // price rounding width per bin
	Window         time.Duration // rolling retention for observed levels
	Throttle       time.Duration // minimum spacing between recomputes
	MaxEvents      int           // hard cap on retained observations
	ZoneMultiplier float64       // total > mean*K qualifies as a zone
}

const (
	defaultBinSize        = 5
	defaultWindow         = 30 * time.Second
	defaultThrottle       = 500 * time.Millisecond
	defaultMaxEvents      = 50_000
	defaultZoneMultiplier = 2.5
)

type event struct {
	price float64
	size  float64
	side  signal.BookSide
	ts    int64
}

// Bin is one aggregated price bucket, fully recomputed on each refresh.
type Bin struct {
	Price float64
	Bid   float64
	Ask   float64
	Total float64
}

// Map collects liquidity events from book snapshots and bins them on demand.
// Not safe for concurrent use; the engine loop owns it.
type Map struct {
	cfg         Config
	events      []event
	bins        map[float64]Bin
	lastRefresh int64
}

// NewMap builds an empty map, defaulting any zero tunables.
func NewMap(cfg Config) *Map {
	if cfg.BinSize <= 0 {
		cfg.BinSize = defaultBinSize
	}
	if cfg.Window <= 0 {
		cfg.Window = defaultWindow
	}
	if cfg.Throttle <= 0 {
		cfg.Throttle = defaultThrottle
	}
	if cfg.MaxEvents <= 0 {
		cfg.MaxEvents = defaultMaxEvents
	}
	if cfg.ZoneMultiplier <= 0 {
		cfg.ZoneMultiplier = defaultZoneMultiplier
	}
	return &Map{cfg: cfg, bins: make(map[float64]Bin)}
}

func (m *Map) binPrice(price float64) float64 {
	return math.Round(price/m.cfg.BinSize) * m.cfg.BinSize
}

// IngestSnapshot records one event per live level per side. The level maps
// already carry unique prices, which is the per-call dedup the window needs.
// Pruning runs afterward so retention holds after every ingest.
func (m *Map) IngestSnapshot(bids, asks map[float64]float64, nowMs int64) {
	for p, sz := range bids {
		if sz == 0 {
			continue
		}
		m.events = append(m.events, event{price: p, size: sz, side: signal.Bid, ts: nowMs})
	}
	for p, sz := range asks {
		if sz == 0 {
			continue
		}
		m.events = append(m.events, event{price: p, size: sz, side: signal.Ask, ts: nowMs})
	}
	m.prune(nowMs)
}

func (m *Map) prune(nowMs int64) {
	cutoff := nowMs - m.cfg.Window.Milliseconds()
	idx := 0
	for idx < len(m.events) && m.events[idx].ts < cutoff {
		idx++
	}
	if idx > 0 {
		m.events = append(m.events[:0], m.events[idx:]...)
	}
	if n := len(m.events); n > m.cfg.MaxEvents {
		m.events = append(m.events[:0], m.events[n-m.cfg.MaxEvents:]...)
	}
}

// Refresh recomputes every bin from the retained events. Calls within the
// throttle window are no-ops, so back-to-back refreshes observe identical
// bins. The recompute is O(events), bounded by the window and cap.
func (m *Map) Refresh(nowMs int64) {
	if m.lastRefresh != 0 && nowMs-m.lastRefresh < m.cfg.Throttle.Milliseconds() {
		return
	}
	m.lastRefresh = nowMs

	m.bins = make(map[float64]Bin, len(m.bins))
	for _, e := range m.events {
		bp := m.binPrice(e.price)
		b := m.bins[bp]
		b.Price = bp
		if e.side == signal.Bid {
			b.Bid += e.size
		} else {
			b.Ask += e.size
		}
		b.Total += e.size
		m.bins[bp] = b
	}
}

// Zones returns the bins whose total volume exceeds the cross-bin mean times
// the configured multiplier, heaviest first. Price breaks total ties so the
// ordering never depends on map iteration.
func (m *Map) Zones() []Bin {
	if len(m.bins) == 0 {
		return nil
	}

	var sum float64
	for _, b := range m.bins {
		sum += b.Total
	}
	mean := sum / float64(len(m.bins))

	var zones []Bin
	for _, b := range m.bins {
		if b.Total > mean*m.cfg.ZoneMultiplier {
			zones = append(zones, b)
		}
	}
	sort.Slice(zones, func(i, j int) bool {
		if zones[i].Total != zones[j].Total {
			return zones[i].Total > zones[j].Total
		}
		return zones[i].Price < zones[j].Price
	})
	return zones
}
