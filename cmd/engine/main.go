// Binary engine streams one instrument's order flow, scores it, and pushes
// signals and metrics to websocket subscribers.
package main

import (
	"context"
	"flag"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"orderflow-go/internal/broadcast"
	"orderflow-go/internal/config"
	"orderflow-go/internal/detector"
	"orderflow-go/internal/evaluator"
	"orderflow-go/internal/exchange"
	"orderflow-go/internal/liquidity"
	"orderflow-go/internal/market"
	"orderflow-go/internal/metrics"
	sig "orderflow-go/internal/signal"
	"orderflow-go/internal/util"
)

func main() {
	_ = godotenv.Load() // best-effort

	configPath := flag.String("config", "internal/config/config.yaml", "path to YAML configuration")
	flag.Parse()

	log := util.NewLogger("info")
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	log = util.NewLogger(cfg.App.LogLevel)

	// Environment wins over the file for connection details.
	if v := os.Getenv("ORDERFLOW_FEED_URL"); v != "" {
		cfg.Feed.URL = v
	}
	if v := os.Getenv("ORDERFLOW_COIN"); v != "" {
		cfg.Feed.Coin = v
	}

	_ = metrics.Serve(cfg.App.MetricsAddr)
	log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")

	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store := market.NewStore(market.Config{
		TapeWindow:   time.Duration(cfg.Engine.TapeWindowMs) * time.Millisecond,
		PriceHistory: cfg.Engine.PriceHistory,
	})
	liq := liquidity.NewMap(liquidity.Config{
		BinSize:        cfg.Liquidity.BinSize,
		Window:         time.Duration(cfg.Liquidity.WindowMs) * time.Millisecond,
		Throttle:       time.Duration(cfg.Liquidity.ThrottleMs) * time.Millisecond,
		MaxEvents:      cfg.Liquidity.MaxEvents,
		ZoneMultiplier: cfg.Liquidity.ZoneMultiplier,
	})

	hub := broadcast.NewHub(util.Component(log, "broadcast"))
	_ = hub.Serve(cfg.Broadcast.Addr, cfg.Broadcast.Path)
	defer hub.Close()
	log.Info().Str("addr", cfg.Broadcast.Addr).Str("path", cfg.Broadcast.Path).Msg("broadcast up")

	feed := exchange.NewFeed(cfg.Feed.Provider, cfg.Feed.Coin, util.Component(log, "feed"), exchange.WithURL(cfg.Feed.URL))
	events := make(chan sig.Event, 1024)
	go func() {
		if err := feed.Run(ctx, events); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("feed stopped")
			cancel()
		}
	}()

	eval := evaluator.New(evaluatorConfig(cfg), store, liq, hub, util.Component(log, "evaluator"))

	interval := time.Duration(cfg.Engine.EvalIntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info().
		Str("provider", cfg.Feed.Provider).
		Str("coin", cfg.Feed.Coin).
		Dur("eval_interval", interval).
		Msg("engine started")

	// The loop owns the store: ingestion mutations and evaluation ticks never
	// interleave, so every tick sees fully applied events.
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("shutting down")
			return
		case ev := <-events:
			if ev.Trade != nil {
				store.ApplyTrade(*ev.Trade)
			}
			if len(ev.Book) > 0 {
				store.ApplyBook(ev.Book)
				bids, asks := store.Levels()
				liq.IngestSnapshot(bids, asks, time.Now().UnixMilli())
			}
		case ts := <-ticker.C:
			liq.Refresh(ts.UnixMilli())
			eval.Tick(ts)
		}
	}
}

func evaluatorConfig(cfg *config.Config) evaluator.Config {
	return evaluator.Config{
		MinScore:        cfg.Engine.MinScore,
		VWAPAlpha:       cfg.Engine.VWAPAlpha,
		DeltaAlpha:      cfg.Engine.DeltaAlpha,
		ZVWAPThreshold:  cfg.Engine.ZVWAPThreshold,
		ZDeltaThreshold: cfg.Engine.ZDeltaThreshold,
		Absorption: detector.AbsorptionParams{
			VolumeThreshold: cfg.Engine.AbsorptionVolume,
			MaxPriceMove:    cfg.Engine.MaxPriceMove,
		},
		DivergenceLookback: cfg.Engine.DivergenceLookback,
		SequencingWindow:   cfg.Engine.SequencingWindow,
		Reaction: detector.ReactionParams{
			TouchDistance:  cfg.Engine.TouchDistance,
			ImbalanceRatio: cfg.Engine.ImbalanceRatio,
		},
		Weights: evaluator.Weights{
			VWAPZ:             cfg.Engine.Weights.VWAPZ,
			Absorption:        cfg.Engine.Weights.Absorption,
			DeltaDivergence:   cfg.Engine.Weights.DeltaDivergence,
			LiquidityReaction: cfg.Engine.Weights.LiquidityReaction,
			FailedAuction:     cfg.Engine.Weights.FailedAuction,
		},
	}
}
