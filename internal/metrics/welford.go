package metrics

import "math"

// WelfordState holds running statistics using Welford's online algorithm, so
// mean and standard deviation update in O(1) without keeping observations.
type WelfordState struct {
	Count int     // n - number of observations
	Mean  float64 // running mean
	M2    float64 // sum of squared differences from mean
}

// NewWelfordState rebuilds a state from stored mean, stddev and count so a
// saved baseline can keep learning.
func NewWelfordState(mean, stddev float64, count int) *WelfordState {
	if count == 0 {
		return &WelfordState{}
	}
	// stddev = sqrt(M2 / n)
	return &WelfordState{
		Count: count,
		Mean:  mean,
		M2:    stddev * stddev * float64(count),
	}
}

// Update adds one observation.
func (w *WelfordState) Update(v float64) {
	w.Count++
	delta := v - w.Mean
	w.Mean += delta / float64(w.Count)
	w.M2 += delta * (v - w.Mean)
}

// StdDev is the population standard deviation, 0 below two observations.
func (w *WelfordState) StdDev() float64 {
	if w.Count < 2 {
		return 0
	}
	return math.Sqrt(w.M2 / float64(w.Count))
}
