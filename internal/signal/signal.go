// Package signal standardizes payloads shared between the ingestion, engine, and broadcast layers.
package signal

// Side labels the aggressor side of a trade print.
type Side string

const (
	// Buy marks a trade where the aggressor lifted the offer.
	Buy Side = "buy"
	// Sell marks a trade where the aggressor hit the bid.
	Sell Side = "sell"
)

// BookSide labels which half of the order book a level belongs to.
type BookSide string

const (
	// Bid marks a resting buy level.
	Bid BookSide = "bid"
	// Ask marks a resting sell level.
	Ask BookSide = "ask"
)

// Trade models one normalized trade print. Immutable once created.
type Trade struct {
	Price float64
	Size  float64
	Side  Side
	Ts    int64 // unix milliseconds
}

// BookDelta is one normalized order book level change. Size 0 removes the level.
type BookDelta struct {
	Side  BookSide
	Price float64
	Size  float64
}

// Event is the tagged union delivered by the ingestion adapter. Exactly one
// field is set. Book carries every delta of a single upstream snapshot so the
// store can apply them atomically.
type Event struct {
	Trade *Trade
	Book  []BookDelta
}

// Direction expresses the bias of an emitted signal.
type Direction string

const (
	// Long indicates an upside bias.
	Long Direction = "long"
	// Short indicates a downside bias.
	Short Direction = "short"
)

// Signal is the directional message pushed to subscribers when scoring crosses
// the configured minimum. Reasons preserve evaluation order.
type Signal struct {
	Direction Direction `json:"direction"`
	Price     float64   `json:"price"`
	Score     float64   `json:"score"`
	Reasons   []string  `json:"reasons"`
	Timestamp int64     `json:"timestamp"`
}

// Scores is the last computed long/short score pair, refreshed every
// evaluation tick whether or not a signal was emitted.
type Scores struct {
	ScoreLong  float64 `json:"scoreLong"`
	ScoreShort float64 `json:"scoreShort"`
}

// VolumeStats summarizes the currently retained trade tape.
type VolumeStats struct {
	Total float64 `json:"total"`
	Buy   float64 `json:"buy"`
	Sell  float64 `json:"sell"`
	Count int     `json:"count"`
}

// LiquidityStats summarizes the live order book.
type LiquidityStats struct {
	BidLevels int     `json:"bidLevels"`
	AskLevels int     `json:"askLevels"`
	Spread    float64 `json:"spread"`
}

// PriceRange is the high/low over the recent price history.
type PriceRange struct {
	High float64 `json:"high"`
	Low  float64 `json:"low"`
}

// MarketStats carries coarse recent-price context for dashboards.
type MarketStats struct {
	PriceRange PriceRange `json:"priceRange"`
	AvgPrice   float64    `json:"avgPrice"`
}

// MetricsData is the inner payload of a Metrics message.
type MetricsData struct {
	Price     float64        `json:"price"`
	VWAP      float64        `json:"vwap"`
	CVD       float64        `json:"cvd"`
	ZVWAP     float64        `json:"zVWAP"`
	ZDelta    float64        `json:"zDelta"`
	Scores    Scores         `json:"scores"`
	Volume    VolumeStats    `json:"volume"`
	Liquidity LiquidityStats `json:"liquidity"`
	Market    MarketStats    `json:"market"`
}

// Metrics is the periodic market snapshot pushed to subscribers alongside signals.
type Metrics struct {
	Type      string      `json:"type"`
	Timestamp int64       `json:"timestamp"`
	Data      MetricsData `json:"data"`
}

// NewMetrics stamps the fixed message type expected by subscribers.
func NewMetrics(ts int64, data MetricsData) Metrics {
	return Metrics{Type: "metrics", Timestamp: ts, Data: data}
}
