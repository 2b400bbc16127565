// Package config exposes strongly typed application configuration structs loaded from YAML.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// App captures process-wide runtime settings such as name, environment, metrics, and logging levels.
type App struct {
	Name        string `yaml:"name"`
	Env         string `yaml:"env"`
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
}

// Feed describes the upstream market data connection.
type Feed struct {
	Provider string `yaml:"provider"` // "stub" or "hyperliquid"
	URL      string `yaml:"url"`
	Coin     string `yaml:"coin"`
}

// Broadcast configures the subscriber-facing websocket endpoint.
type Broadcast struct {
	Addr string `yaml:"addr"`
	Path string `yaml:"path"`
}

// Weights is the score contribution table, one entry per detector condition.
type Weights struct {
	VWAPZ             float64 `yaml:"vwap_z"`
	Absorption        float64 `yaml:"absorption"`
	DeltaDivergence   float64 `yaml:"delta_divergence"`
	LiquidityReaction float64 `yaml:"liquidity_reaction"`
	FailedAuction     float64 `yaml:"failed_auction"`
}

// Engine groups every evaluator and detector tunable in one place.
type Engine struct {
	EvalIntervalMs     int     `yaml:"eval_interval_ms"`
	MinScore           float64 `yaml:"min_score"`
	TapeWindowMs       int     `yaml:"tape_window_ms"`
	PriceHistory       int     `yaml:"price_history"`
	VWAPAlpha          float64 `yaml:"vwap_alpha"`
	DeltaAlpha         float64 `yaml:"delta_alpha"`
	ZVWAPThreshold     float64 `yaml:"z_vwap_threshold"`
	ZDeltaThreshold    float64 `yaml:"z_delta_threshold"`
	AbsorptionVolume   float64 `yaml:"absorption_volume"`
	MaxPriceMove       float64 `yaml:"max_price_move"`
	DivergenceLookback int     `yaml:"divergence_lookback"`
	SequencingWindow   int     `yaml:"sequencing_window"`
	TouchDistance      float64 `yaml:"touch_distance"`
	ImbalanceRatio     float64 `yaml:"imbalance_ratio"`
	Weights            Weights `yaml:"weights"`
}

// Liquidity tunes the price-binned liquidity map.
type Liquidity struct {
	BinSize        float64 `yaml:"bin_size"`
	WindowMs       int     `yaml:"window_ms"`
	ThrottleMs     int     `yaml:"throttle_ms"`
	MaxEvents      int     `yaml:"max_events"`
	ZoneMultiplier float64 `yaml:"zone_multiplier"`
}

// Config collects every configuration leaf for easy marshaling from YAML.
type Config struct {
	App       App       `yaml:"app"`
	Feed      Feed      `yaml:"feed"`
	Broadcast Broadcast `yaml:"broadcast"`
	Engine    Engine    `yaml:"engine"`
	Liquidity Liquidity `yaml:"liquidity"`
}

// Load reads a YAML file from disk and hydrates a Config struct.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var config Config
	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return &config, nil
}

// Save persists a Config struct to disk as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
