// Package stats hosts the online estimators the engine keeps per instrument.
package stats

import "math"

// VWAP is a running volume-weighted average price with an online variance
// accumulator. Size must be non-negative; the ingestion boundary filters
// anything else before it reaches here.
type VWAP struct {
	SumPV    float64
	SumV     float64
	Value    float64
	Variance float64
}

// Update folds one trade into the accumulator. Variance uses the weighted
// Welford recurrence so Std stays numerically stable over long sessions.
func (v *VWAP) Update(price, size float64) {
	v.SumPV += price * size
	v.SumV += size

	prev := v.Value
	if v.SumV == 0 {
		v.Value = 0
		return
	}
	v.Value = v.SumPV / v.SumV
	v.Variance += size * (price - prev) * (price - v.Value)
}

// Std returns the volume-weighted standard deviation of traded prices around
// VWAP, or 0 before any volume has printed.
func (v *VWAP) Std() float64 {
	if v.SumV == 0 {
		return 0
	}
	return math.Sqrt(v.Variance / v.SumV)
}
