package forecast

import (
	"context"
	"fmt"

	"ForecastBacktester/internal/operations/backtest"
	"ForecastBacktester/internal/services/indicators"
)

// FeatureOptions controls the columns BuildFeatures emits
type FeatureOptions struct {
	Lags      int // lagged close-to-close returns
	EMAPeriod int
	RSIPeriod int
	VolWindow int
}

func DefaultFeatureOptions() FeatureOptions {
	return FeatureOptions{
		Lags:      5,
		EMAPeriod: 20,
		RSIPeriod: 14,
		VolWindow: 20,
	}
}

func (o FeatureOptions) warmup() int {
	w := o.Lags
	for _, p := range []int{o.EMAPeriod, o.RSIPeriod + 1, o.VolWindow} {
		if p > w {
			w = p
		}
	}
	return w
}

// FeatureSet is a supervised dataset aligned row for row with Bars.
// Row r only uses prices up to Bars[r]; its target is the return from
// Bars[r] to the following bar.
type FeatureSet struct {
	Names  []string
	X      [][]float64
	Y      []float64 // next-bar return
	Labels []float64 // sign of Y
	Bars   []backtest.Bar
}

func (f *FeatureSet) Target(task Task) []float64 {
	if task == TaskClassification {
		return f.Labels
	}
	return f.Y
}

// BuildFeatures derives lagged returns, EMA ratio, RSI and rolling volatility
func BuildFeatures(bars []backtest.Bar, opts FeatureOptions) (*FeatureSet, error) {
	if opts.Lags <= 0 || opts.EMAPeriod <= 0 || opts.RSIPeriod <= 0 || opts.VolWindow < 2 {
		return nil, fmt.Errorf("invalid feature options %+v", opts)
	}

	warmup := opts.warmup()
	if len(bars) < warmup+2 {
		return nil, fmt.Errorf("need at least %d bars for features, got %d", warmup+2, len(bars))
	}

	closes := make([]float64, len(bars))
	for i, b := range bars {
		if b.Close <= 0 {
			return nil, fmt.Errorf("bar %d has non-positive close %v", b.Index, b.Close)
		}
		closes[i] = b.Close
	}

	returns := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		returns[i] = closes[i]/closes[i-1] - 1
	}

	emaRatio := indicators.NewEMAService().Ratio(closes, opts.EMAPeriod)
	rsi := indicators.NewRSIService().Calculate(closes, opts.RSIPeriod)
	vol := indicators.RollingVolatility(closes, opts.VolWindow)

	fs := &FeatureSet{}
	for l := 1; l <= opts.Lags; l++ {
		fs.Names = append(fs.Names, fmt.Sprintf("ret_lag_%d", l))
	}
	fs.Names = append(fs.Names, "ema_ratio", "rsi", "volatility")

	for i := warmup; i < len(bars)-1; i++ {
		row := make([]float64, 0, len(fs.Names))
		for l := 0; l < opts.Lags; l++ {
			row = append(row, returns[i-l])
		}
		row = append(row, emaRatio[i], rsi[i]/100, vol[i])

		target := returns[i+1]
		fs.X = append(fs.X, row)
		fs.Y = append(fs.Y, target)
		fs.Labels = append(fs.Labels, signum(target))
		fs.Bars = append(fs.Bars, bars[i])
	}

	return fs, nil
}

// HoldoutPredictor fits on the leading share of the feature rows and
// predicts the rest. It satisfies backtest.Predictor.
type HoldoutPredictor struct {
	Factory    Factory
	Task       Task
	Features   FeatureOptions
	TrainRatio float64
}

func (p *HoldoutPredictor) Predict(ctx context.Context, bars []backtest.Bar) ([]backtest.Bar, []backtest.Prediction, error) {
	fs, err := BuildFeatures(bars, p.Features)
	if err != nil {
		return nil, nil, err
	}

	ratio := p.TrainRatio
	if ratio <= 0 || ratio >= 1 {
		ratio = 0.7
	}
	split := int(float64(len(fs.X)) * ratio)
	if split < 1 || split >= len(fs.X) {
		return nil, nil, fmt.Errorf("holdout split %d leaves no train or test rows out of %d", split, len(fs.X))
	}

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	model := p.Factory()
	if err := model.Fit(fs.X[:split], fs.Target(p.Task)[:split]); err != nil {
		return nil, nil, fmt.Errorf("fit: %w", err)
	}
	out, err := model.Predict(fs.X[split:])
	if err != nil {
		return nil, nil, fmt.Errorf("predict: %w", err)
	}

	return fs.Bars[split:], ToPredictions(p.Task, out), nil
}

// ToPredictions tags raw model output with the task's prediction kind
func ToPredictions(task Task, values []float64) []backtest.Prediction {
	if task == TaskClassification {
		labels := make([]int, len(values))
		for i, v := range values {
			labels[i] = int(signum(v))
		}
		return backtest.Classifications(labels)
	}
	return backtest.Regressions(values)
}
