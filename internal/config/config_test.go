package config

import (
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	path := filepath.Join("testdata", "config.yaml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.App.Name != "orderflow-test" {
		t.Fatalf("unexpected App.Name: %s", cfg.App.Name)
	}
	if cfg.App.LogLevel != "debug" {
		t.Fatalf("unexpected App.LogLevel: %s", cfg.App.LogLevel)
	}
	if cfg.Feed.Provider != "stub" {
		t.Fatalf("unexpected Feed.Provider: %s", cfg.Feed.Provider)
	}
	if cfg.Feed.Coin != "ETH" {
		t.Fatalf("unexpected Feed.Coin: %s", cfg.Feed.Coin)
	}
	if cfg.Broadcast.Addr != ":3101" || cfg.Broadcast.Path != "/ws" {
		t.Fatalf("unexpected broadcast settings: %+v", cfg.Broadcast)
	}
	if cfg.Engine.EvalIntervalMs != 250 {
		t.Fatalf("unexpected eval interval: %d", cfg.Engine.EvalIntervalMs)
	}
	if cfg.Engine.MinScore != 4 {
		t.Fatalf("unexpected min score: %.2f", cfg.Engine.MinScore)
	}
	if cfg.Engine.TapeWindowMs != 8000 {
		t.Fatalf("unexpected tape window: %d", cfg.Engine.TapeWindowMs)
	}
	if cfg.Engine.PriceHistory != 500 {
		t.Fatalf("unexpected price history: %d", cfg.Engine.PriceHistory)
	}
	if cfg.Engine.VWAPAlpha != 0.04 || cfg.Engine.DeltaAlpha != 0.06 {
		t.Fatalf("unexpected alphas: %.3f/%.3f", cfg.Engine.VWAPAlpha, cfg.Engine.DeltaAlpha)
	}
	if cfg.Engine.ZVWAPThreshold != 1.8 || cfg.Engine.ZDeltaThreshold != 1.2 {
		t.Fatalf("unexpected z thresholds: %+v", cfg.Engine)
	}
	if cfg.Engine.AbsorptionVolume != 90 || cfg.Engine.MaxPriceMove != 3 {
		t.Fatalf("unexpected absorption tunables: %+v", cfg.Engine)
	}
	if cfg.Engine.DivergenceLookback != 50 {
		t.Fatalf("unexpected divergence lookback: %d", cfg.Engine.DivergenceLookback)
	}
	if cfg.Engine.SequencingWindow != 6 {
		t.Fatalf("unexpected sequencing window: %d", cfg.Engine.SequencingWindow)
	}
	if cfg.Engine.TouchDistance != 4 || cfg.Engine.ImbalanceRatio != 2 {
		t.Fatalf("unexpected reaction tunables: %+v", cfg.Engine)
	}
	if cfg.Engine.Weights.Absorption != 3 || cfg.Engine.Weights.FailedAuction != 4 {
		t.Fatalf("unexpected weights: %+v", cfg.Engine.Weights)
	}
	if cfg.Liquidity.BinSize != 2 {
		t.Fatalf("unexpected bin size: %.2f", cfg.Liquidity.BinSize)
	}
	if cfg.Liquidity.WindowMs != 20000 || cfg.Liquidity.ThrottleMs != 400 {
		t.Fatalf("unexpected liquidity windows: %+v", cfg.Liquidity)
	}
	if cfg.Liquidity.MaxEvents != 10000 {
		t.Fatalf("unexpected max events: %d", cfg.Liquidity.MaxEvents)
	}
	if cfg.Liquidity.ZoneMultiplier != 3 {
		t.Fatalf("unexpected zone multiplier: %.2f", cfg.Liquidity.ZoneMultiplier)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	src, err := Load(filepath.Join("testdata", "config.yaml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	path := filepath.Join(t.TempDir(), "out.yaml")
	if err := Save(path, src); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	back, err := Load(path)
	if err != nil {
		t.Fatalf("reload returned error: %v", err)
	}
	if *back != *src {
		t.Fatalf("round trip mismatch:\n%+v\n%+v", back, src)
	}
}

func TestSaveNilConfig(t *testing.T) {
	if err := Save(filepath.Join(t.TempDir(), "out.yaml"), nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
}
