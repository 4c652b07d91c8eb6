package indicators

import "math"

// RollingVolatility returns the sample std of simple close-to-close returns
// over the trailing window ending at each bar. Bars without a full window
// use whatever history exists; the first bar is zero.
func RollingVolatility(prices []float64, window int) []float64 {
	out := make([]float64, len(prices))
	tracker := NewVolatilityTracker(window)
	for i, p := range prices {
		out[i] = tracker.Push(p)
	}
	return out
}

// VolatilityTracker computes rolling volatility one price at a time
type VolatilityTracker struct {
	window  int
	last    float64
	hasLast bool
	returns []float64
}

func NewVolatilityTracker(window int) *VolatilityTracker {
	if window < 2 {
		window = 2
	}
	return &VolatilityTracker{window: window}
}

// Push adds the next price and returns the current volatility
func (t *VolatilityTracker) Push(price float64) float64 {
	if t.hasLast && t.last != 0 {
		t.returns = append(t.returns, (price-t.last)/t.last)
		if len(t.returns) > t.window {
			t.returns = t.returns[len(t.returns)-t.window:]
		}
	}
	t.last = price
	t.hasLast = true
	return t.Value()
}

// Value is the current volatility, zero with fewer than two returns
func (t *VolatilityTracker) Value() float64 {
	n := len(t.returns)
	if n < 2 {
		return 0
	}

	sum := 0.0
	for _, r := range t.returns {
		sum += r
	}
	avg := sum / float64(n)

	variance := 0.0
	for _, r := range t.returns {
		variance += (r - avg) * (r - avg)
	}
	return math.Sqrt(variance / float64(n-1))
}
