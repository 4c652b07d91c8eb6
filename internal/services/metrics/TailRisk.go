package metrics

import (
	"math"
	"sort"
)

// Percentile returns the q-th percentile (0-100) using linear interpolation
// between closest ranks.
func Percentile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	if q <= 0 {
		return sorted[0]
	}
	if q >= 100 {
		return sorted[len(sorted)-1]
	}

	pos := q / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// VaR is the empirical value-at-risk at the given confidence (e.g. 0.95):
// the (1-confidence) percentile of the return distribution.
func VaR(returns []float64, confidence float64) float64 {
	return Percentile(returns, (1-confidence)*100)
}

// CVaR is the mean of the returns at or below VaR at the given confidence
func CVaR(returns []float64, confidence float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	threshold := VaR(returns, confidence)

	var sum float64
	var n int
	for _, r := range returns {
		if r <= threshold {
			sum += r
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// TailRatioOf is |p95 / p5|, 0 when the lower tail is zero
func TailRatioOf(returns []float64) float64 {
	p5 := Percentile(returns, 5)
	if p5 == 0 {
		return 0
	}
	return math.Abs(Percentile(returns, 95) / p5)
}
