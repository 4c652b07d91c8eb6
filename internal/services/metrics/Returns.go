package metrics

import "math"

// Returns converts an equity curve into simple per-bar returns.
// A bar whose previous capital is zero contributes a zero return.
func Returns(equity []float64) []float64 {
	if len(equity) < 2 {
		return []float64{}
	}

	returns := make([]float64, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1]
		if prev == 0 {
			continue
		}
		returns[i-1] = (equity[i] - prev) / prev
	}
	return returns
}

// TotalReturnOf returns end/start - 1
func TotalReturnOf(equity []float64) float64 {
	if len(equity) == 0 || equity[0] == 0 {
		return 0
	}
	return equity[len(equity)-1]/equity[0] - 1
}

// CAGR annualizes the growth of the curve: (end/start)^(annualization/n) - 1.
// Growth too large to annualize reports 0.
func CAGR(equity []float64, opts Options) float64 {
	n := len(equity)
	if n < 2 || equity[0] == 0 {
		return 0
	}

	growth := equity[n-1] / equity[0]
	if growth <= 0 {
		return -1
	}
	cagr := math.Pow(growth, opts.annualization()/float64(n)) - 1
	if math.IsNaN(cagr) || math.IsInf(cagr, 0) {
		return 0
	}
	return cagr
}

// DrawdownSeries holds the running peak and drawdown per point
type DrawdownSeries struct {
	Peaks     []float64
	Drawdowns []float64 // fraction below peak, >= 0
	Max       float64
}

// Drawdowns computes running peak and drawdown in a single forward pass
func Drawdowns(equity []float64) DrawdownSeries {
	out := DrawdownSeries{
		Peaks:     make([]float64, len(equity)),
		Drawdowns: make([]float64, len(equity)),
	}
	if len(equity) == 0 {
		return out
	}

	peak := equity[0]
	for i, v := range equity {
		if v > peak {
			peak = v
		}
		out.Peaks[i] = peak

		dd := 0.0
		if peak > 0 {
			dd = (peak - v) / peak
		}
		out.Drawdowns[i] = dd
		if dd > out.Max {
			out.Max = dd
		}
	}
	return out
}

// Sharpe returns mean(excess)/std(returns) * sqrt(annualization).
// Fewer than two returns or zero variance yields 0.
func Sharpe(returns []float64, opts Options) float64 {
	if len(returns) < 2 {
		return 0
	}

	ann := opts.annualization()
	std := stdDev(returns, mean(returns))
	if std < varianceEpsilon {
		return 0
	}

	rf := opts.RiskFreeRate / ann
	excess := 0.0
	for _, r := range returns {
		excess += r - rf
	}
	excess /= float64(len(returns))

	return excess / std * math.Sqrt(ann)
}

// Sortino is Sharpe with the downside deviation of the negative returns as denominator
func Sortino(returns []float64, opts Options) float64 {
	if len(returns) < 2 {
		return 0
	}

	var sumSq float64
	var n int
	for _, r := range returns {
		if r < 0 {
			sumSq += r * r
			n++
		}
	}
	if n == 0 {
		return 0
	}
	downside := math.Sqrt(sumSq / float64(n))
	if downside < varianceEpsilon {
		return 0
	}

	ann := opts.annualization()
	rf := opts.RiskFreeRate / ann
	return (mean(returns) - rf) / downside * math.Sqrt(ann)
}

// Calmar is CAGR over max drawdown, 0 when there was no drawdown
func Calmar(cagr, maxDrawdown float64) float64 {
	if maxDrawdown <= 0 {
		return 0
	}
	return cagr / maxDrawdown
}

// UlcerIndex is sqrt(mean(drawdown^2))
func UlcerIndex(drawdowns []float64) float64 {
	if len(drawdowns) == 0 {
		return 0
	}
	var sum float64
	for _, d := range drawdowns {
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(drawdowns)))
}

// AnnualizedVolatility is the sample std of returns scaled by sqrt(annualization)
func AnnualizedVolatility(returns []float64, opts Options) float64 {
	if len(returns) < 2 {
		return 0
	}
	return stdDev(returns, mean(returns)) * math.Sqrt(opts.annualization())
}

// RollingSharpeStability is the std of 60-bar rolling Sharpe ratios
func RollingSharpeStability(returns []float64, opts Options) float64 {
	if len(returns) < rollingSharpeWindow+1 {
		return 0
	}

	noRF := Options{AnnualizationFactor: opts.AnnualizationFactor}
	rolling := make([]float64, 0, len(returns)-rollingSharpeWindow)
	for i := rollingSharpeWindow; i < len(returns); i++ {
		rolling = append(rolling, Sharpe(returns[i-rollingSharpeWindow:i], noRF))
	}
	return PopulationStdDev(rolling)
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stdDev is the sample standard deviation (n-1)
func stdDev(values []float64, m float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var variance float64
	for _, v := range values {
		variance += (v - m) * (v - m)
	}
	return math.Sqrt(variance / float64(len(values)-1))
}

// Mean is the arithmetic mean, 0 for an empty slice
func Mean(values []float64) float64 {
	return mean(values)
}

// PopulationStdDev is the standard deviation with an n denominator
func PopulationStdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	var variance float64
	for _, v := range values {
		variance += (v - m) * (v - m)
	}
	return math.Sqrt(variance / float64(len(values)))
}
