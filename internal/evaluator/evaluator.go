// Package evaluator runs the periodic scoring pass: advance the z estimators,
// consult every detector, fold the hits into a long/short score pair, and
// push at most one signal plus a metrics snapshot per tick.
package evaluator

import (
	"time"

	"github.com/rs/zerolog"

	"orderflow-go/internal/detector"
	"orderflow-go/internal/liquidity"
	"orderflow-go/internal/market"
	"orderflow-go/internal/metrics"
	"orderflow-go/internal/signal"
	"orderflow-go/internal/stats"
)

// Emitter pushes serialized messages to subscribers. Implemented by the
// broadcast hub; tests substitute a recorder.
type Emitter interface {
	Broadcast(v any)
}

// Weights is the per-condition score contribution table. Weights are
// configuration, never computed.
type Weights struct {
	VWAPZ             float64
	Absorption        float64
	DeltaDivergence   float64
	LiquidityReaction float64
	FailedAuction     float64
}

// Config names every evaluator tunable.
type Config struct {
	MinScore        float64
	VWAPAlpha       float64
	DeltaAlpha      float64
	ZVWAPThreshold  float64
	ZDeltaThreshold float64

	Absorption         detector.AbsorptionParams
	DivergenceLookback int
	SequencingWindow   int
	Reaction           detector.ReactionParams

	Weights Weights
}

// Evaluator owns the two rolling z estimators and the last score snapshot.
// Tick is driven by the engine loop; it never sleeps or blocks.
type Evaluator struct {
	cfg     Config
	store   *market.Store
	liq     *liquidity.Map
	zVWAP   *stats.RollingZ
	zDelta  *stats.RollingZ
	scores  signal.Scores
	emitter Emitter
	log     zerolog.Logger
}

// New wires the evaluator against the shared store and liquidity map.
func New(cfg Config, store *market.Store, liq *liquidity.Map, emitter Emitter, log zerolog.Logger) *Evaluator {
	return &Evaluator{
		cfg:     cfg,
		store:   store,
		liq:     liq,
		zVWAP:   stats.NewRollingZ(cfg.VWAPAlpha),
		zDelta:  stats.NewRollingZ(cfg.DeltaAlpha),
		emitter: emitter,
		log:     log,
	}
}

// Scores returns the pair computed on the most recent tick.
func (e *Evaluator) Scores() signal.Scores { return e.scores }

// Tick evaluates the current market state at ts. A tick with no traded price
// yet is a silent no-op. Both z estimators advance exactly once per
// non-skipped tick, whether or not anything is emitted.
func (e *Evaluator) Tick(ts time.Time) {
	view := e.store.Snapshot()
	price, ok := view.LastPrice()
	if !ok {
		return
	}
	metrics.EvalTicksTotal.Inc()

	zVWAP := e.zVWAP.Update(price - view.VWAP)
	zDelta := e.zDelta.Update(view.CVD)
	zones := e.liq.Zones()

	var scoreLong, scoreShort float64
	var reasonsLong, reasonsShort []string
	w := e.cfg.Weights

	// VWAP stretch context.
	if zVWAP > e.cfg.ZVWAPThreshold {
		scoreShort += w.VWAPZ
		reasonsShort = append(reasonsShort, "vwap_z_high")
	}
	if zVWAP < -e.cfg.ZVWAPThreshold {
		scoreLong += w.VWAPZ
		reasonsLong = append(reasonsLong, "vwap_z_low")
	}

	// Order flow absorption: sellers being absorbed is a long condition.
	if detector.Absorption(view, signal.Sell, e.cfg.Absorption) {
		scoreLong += w.Absorption
		reasonsLong = append(reasonsLong, "sell_absorption")
	}
	if detector.Absorption(view, signal.Buy, e.cfg.Absorption) {
		scoreShort += w.Absorption
		reasonsShort = append(reasonsShort, "buy_absorption")
	}

	// Delta divergence only counts with z confirmation.
	switch detector.DeltaDivergence(view, e.cfg.DivergenceLookback) {
	case detector.DivergenceBullish:
		if zDelta > e.cfg.ZDeltaThreshold {
			scoreLong += w.DeltaDivergence
			reasonsLong = append(reasonsLong, "delta_bullish_z")
		}
	case detector.DivergenceBearish:
		if zDelta < -e.cfg.ZDeltaThreshold {
			scoreShort += w.DeltaDivergence
			reasonsShort = append(reasonsShort, "delta_bearish_z")
		}
	}

	// Liquidity zone touches.
	if r := detector.LiquidityReaction(view, zones, e.cfg.Reaction); r != nil {
		switch r.Kind {
		case detector.BidSupport:
			scoreLong += w.LiquidityReaction
			reasonsLong = append(reasonsLong, string(detector.BidSupport))
		case detector.AskResistance:
			scoreShort += w.LiquidityReaction
			reasonsShort = append(reasonsShort, string(detector.AskResistance))
		}
	}

	// Failed auctions: a failing sell auction is fuel for longs.
	if detector.FailedAuction(view, signal.Sell, e.cfg.SequencingWindow) {
		scoreLong += w.FailedAuction
		reasonsLong = append(reasonsLong, "sell_failed_auction")
	}
	if detector.FailedAuction(view, signal.Buy, e.cfg.SequencingWindow) {
		scoreShort += w.FailedAuction
		reasonsShort = append(reasonsShort, "buy_failed_auction")
	}

	e.scores = signal.Scores{ScoreLong: scoreLong, ScoreShort: scoreShort}
	tsMs := ts.UnixMilli()

	// One signal per tick at most; ties and sub-minimum scores stay quiet.
	switch {
	case scoreLong >= e.cfg.MinScore && scoreLong > scoreShort:
		e.emit(signal.Signal{
			Direction: signal.Long,
			Price:     price,
			Score:     scoreLong,
			Reasons:   reasonsLong,
			Timestamp: tsMs,
		}, zVWAP, zDelta)
	case scoreShort >= e.cfg.MinScore && scoreShort > scoreLong:
		e.emit(signal.Signal{
			Direction: signal.Short,
			Price:     price,
			Score:     scoreShort,
			Reasons:   reasonsShort,
			Timestamp: tsMs,
		}, zVWAP, zDelta)
	}

	e.emitter.Broadcast(signal.NewMetrics(tsMs, e.metricsData(view, price, zVWAP, zDelta)))
}

func (e *Evaluator) emit(s signal.Signal, zVWAP, zDelta float64) {
	metrics.SignalsTotal.WithLabelValues(string(s.Direction)).Inc()
	e.log.Info().
		Str("direction", string(s.Direction)).
		Float64("price", s.Price).
		Float64("score", s.Score).
		Strs("reasons", s.Reasons).
		Float64("z_vwap", zVWAP).
		Float64("z_delta", zDelta).
		Msg("signal")
	e.emitter.Broadcast(s)
}

// metricsData assembles the periodic snapshot from the same view the
// detectors just scored, reusing the z values already advanced this tick.
func (e *Evaluator) metricsData(view market.View, price, zVWAP, zDelta float64) signal.MetricsData {
	var vol signal.VolumeStats
	for _, t := range view.Trades {
		vol.Total += t.Size
		if t.Side == signal.Buy {
			vol.Buy += t.Size
		} else {
			vol.Sell += t.Size
		}
	}
	vol.Count = len(view.Trades)

	return signal.MetricsData{
		Price:     price,
		VWAP:      view.VWAP,
		CVD:       view.CVD,
		ZVWAP:     zVWAP,
		ZDelta:    zDelta,
		Scores:    e.scores,
		Volume:    vol,
		Liquidity: e.store.BookStats(),
		Market: signal.MarketStats{
			PriceRange: priceRange(view.Prices, 50),
			AvgPrice:   tailMean(view.Prices, 10),
		},
	}
}

func priceRange(prices []float64, n int) signal.PriceRange {
	if len(prices) == 0 {
		return signal.PriceRange{}
	}
	if len(prices) > n {
		prices = prices[len(prices)-n:]
	}
	pr := signal.PriceRange{High: prices[0], Low: prices[0]}
	for _, p := range prices[1:] {
		if p > pr.High {
			pr.High = p
		}
		if p < pr.Low {
			pr.Low = p
		}
	}
	return pr
}

func tailMean(prices []float64, n int) float64 {
	if len(prices) == 0 {
		return 0
	}
	if len(prices) > n {
		prices = prices[len(prices)-n:]
	}
	var sum float64
	for _, p := range prices {
		sum += p
	}
	return sum / float64(len(prices))
}
