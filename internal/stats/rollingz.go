package stats

import "math"

// RollingZ scores observations against an exponentially weighted mean and
// variance. The first observation seeds the estimator and always scores 0.
type RollingZ struct {
	mean        float64
	variance    float64
	alpha       float64
	initialized bool
}

// NewRollingZ builds an estimator with the given smoothing factor. Alpha
// outside (0,1) falls back to 0.05.
func NewRollingZ(alpha float64) *RollingZ {
	if alpha <= 0 || alpha >= 1 {
		alpha = 0.05
	}
	return &RollingZ{alpha: alpha}
}

// Update advances the estimator with x and returns the z-score of x against
// the pre-update mean. A zero variance scores 0 rather than dividing by zero.
func (r *RollingZ) Update(x float64) float64 {
	if !r.initialized {
		r.mean = x
		r.variance = 0
		r.initialized = true
		return 0
	}

	diff := x - r.mean
	r.mean += r.alpha * diff
	r.variance = (1 - r.alpha) * (r.variance + r.alpha*diff*diff)

	std := math.Sqrt(r.variance)
	if std == 0 {
		return 0
	}
	return diff / std
}

// Mean exposes the current exponential mean, mostly for tests and debugging.
func (r *RollingZ) Mean() float64 { return r.mean }
