// Package detector implements the microstructure checks the evaluator scores.
// Every detector is a pure function over a market view (and, for liquidity
// reaction, the current zone list): no mutation, no errors, and insufficient
// data always reads as a neutral result.
package detector

import (
	"math"

	"orderflow-go/internal/liquidity"
	"orderflow-go/internal/market"
	"orderflow-go/internal/signal"
)

// AbsorptionParams tunes the absorption check. The threshold is a fixed
// volume floor; the repo this evolved from also tried a mean-size-relative
// variant, and the fixed form is the one kept here.
type AbsorptionParams struct {
	VolumeThreshold float64 // total side volume required
	MaxPriceMove    float64 // max first-to-last price drift across side trades
}

// Absorption reports whether one side traded heavy volume inside the retained
// tape without moving price, i.e. a resting counter-order is soaking the flow.
// False when the side has no retained trades.
func Absorption(v market.View, side signal.Side, p AbsorptionParams) bool {
	var vol, first, last float64
	seen := false
	for _, t := range v.Trades {
		if t.Side != side {
			continue
		}
		if !seen {
			first = t.Price
			seen = true
		}
		last = t.Price
		vol += t.Size
	}
	if !seen {
		return false
	}
	move := math.Abs(last - first)
	return vol >= p.VolumeThreshold && move <= p.MaxPriceMove
}

// Divergence classifies the price/CVD relationship.
type Divergence string

const (
	// DivergenceNone means price and flow agree or history is too short.
	DivergenceNone Divergence = "none"
	// DivergenceBullish means price fell while cumulative delta stayed positive.
	DivergenceBullish Divergence = "bullish"
	// DivergenceBearish means price rose while cumulative delta stayed negative.
	DivergenceBearish Divergence = "bearish"
)

// DeltaDivergence compares the latest price against the price lookback ticks
// earlier and checks it against the sign of CVD. Needs lookback+1 retained
// samples, otherwise DivergenceNone.
func DeltaDivergence(v market.View, lookback int) Divergence {
	n := len(v.Prices)
	if lookback < 1 || n < lookback+1 {
		return DivergenceNone
	}

	last := v.Prices[n-1]
	prev := v.Prices[n-1-lookback]

	if last < prev && v.CVD > 0 {
		return DivergenceBullish
	}
	if last > prev && v.CVD < 0 {
		return DivergenceBearish
	}
	return DivergenceNone
}

// ReactionKind classifies a liquidity zone touch.
type ReactionKind string

const (
	// BidSupport means the touched zone is bid-heavy.
	BidSupport ReactionKind = "bid_support"
	// AskResistance means the touched zone is ask-heavy.
	AskResistance ReactionKind = "ask_resistance"
)

// ReactionParams tunes zone-touch classification.
type ReactionParams struct {
	TouchDistance  float64 // max distance from price to a zone's bin
	ImbalanceRatio float64 // one side must exceed the other by this factor
}

// Reaction is a classified zone touch.
type Reaction struct {
	Kind ReactionKind
	Zone liquidity.Bin
}

// LiquidityReaction scans the zone list (heaviest first) for the first zone
// within touch distance of the current price whose bid/ask volumes are
// imbalanced past the ratio. Nil when no price, no zones, or no qualifying
// zone.
func LiquidityReaction(v market.View, zones []liquidity.Bin, p ReactionParams) *Reaction {
	price, ok := v.LastPrice()
	if !ok || len(zones) == 0 {
		return nil
	}

	for _, z := range zones {
		if math.Abs(price-z.Price) > p.TouchDistance {
			continue
		}
		if z.Bid > z.Ask*p.ImbalanceRatio {
			return &Reaction{Kind: BidSupport, Zone: z}
		}
		if z.Ask > z.Bid*p.ImbalanceRatio {
			return &Reaction{Kind: AskResistance, Zone: z}
		}
	}
	return nil
}

// FailedAuction checks the last window trades for a price trend that signed
// volume refuses to confirm: a sell auction fails when price slopes down while
// the delta slope turns positive, and symmetrically for buys. False under
// window trades.
func FailedAuction(v market.View, side signal.Side, window int) bool {
	if window < 2 || len(v.Trades) < window {
		return false
	}
	recent := v.Trades[len(v.Trades)-window:]

	var priceSlope, deltaSlope float64
	for i := 1; i < len(recent); i++ {
		priceSlope += recent[i].Price - recent[i-1].Price
		deltaSlope += signedSize(recent[i]) - signedSize(recent[i-1])
	}

	switch side {
	case signal.Sell:
		return priceSlope < 0 && deltaSlope > 0
	case signal.Buy:
		return priceSlope > 0 && deltaSlope < 0
	}
	return false
}

func signedSize(t signal.Trade) float64 {
	if t.Side == signal.Buy {
		return t.Size
	}
	return -t.Size
}
