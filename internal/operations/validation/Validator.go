// Package validation scores forecasting models on time-ordered windows so
// test data always follows the data a model was trained on.
package validation

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"ForecastBacktester/internal/operations/backtest"
	"ForecastBacktester/internal/services/forecast"
	"ForecastBacktester/internal/services/metrics"
	"ForecastBacktester/internal/services/risk"

	"github.com/getsentry/sentry-go"
	"golang.org/x/sync/errgroup"
)

type Validator struct {
	config    Config
	splitter  Splitter
	simulator *backtest.Simulator
}

func NewValidator(config Config) *Validator {
	if config.Parallelism <= 0 {
		config.Parallelism = 1
	}
	return &Validator{
		config:    config,
		splitter:  NewSplitter(config.Mode, config.TrainMultiple),
		simulator: backtest.NewSimulator(config.Backtest),
	}
}

func (v *Validator) Config() Config {
	return v.config
}

// Evaluate splits the dataset into nWindows and scores a fresh model per
// window. Window failures are recorded in the report, not returned.
func (v *Validator) Evaluate(ctx context.Context, ds Dataset, factory forecast.Factory, nWindows int) (*Report, error) {
	if err := ds.validate(); err != nil {
		return nil, err
	}
	if nWindows <= 0 {
		nWindows = v.config.Windows
	}

	windows, err := v.splitter.Split(len(ds.X), nWindows, v.config.TestRatio)
	if err != nil {
		return nil, err
	}
	return v.EvaluateWindows(ctx, ds, factory, windows)
}

// EvaluateWindows scores the given windows concurrently
func (v *Validator) EvaluateWindows(ctx context.Context, ds Dataset, factory forecast.Factory, windows []Window) (*Report, error) {
	if err := ds.validate(); err != nil {
		return nil, err
	}
	if len(windows) == 0 {
		return nil, ErrNoWindows
	}
	for _, w := range windows {
		if w.TrainStart < 0 || w.TrainEnd > w.TestStart || w.TestEnd > len(ds.X) || w.TrainSize() < 1 || w.TestSize() < 1 {
			return nil, fmt.Errorf("window %s does not fit %d rows", w, len(ds.X))
		}
	}

	log.Printf("Validating %s model on %d rows across %d windows", ds.Task, len(ds.X), len(windows))

	results := make([]WindowResult, len(windows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.config.Parallelism)

	for i, w := range windows {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = v.runWindow(gctx, ds, factory, w)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("validation cancelled: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("validation cancelled: %w", err)
	}

	report := &Report{Task: ds.Task.String(), Windows: results}
	var bundles []metrics.Bundle
	for _, r := range results {
		if r.Failed() {
			report.Failed++
			log.Printf("Window %s failed: %v", r.Window, r.Err)
			sentry.CaptureException(fmt.Errorf("validation window %d: %w", r.Window.ID, r.Err))
			continue
		}
		report.Succeeded++
		bundles = append(bundles, r.Metrics)
	}
	report.Aggregate = Aggregate(bundles)

	log.Printf("Validation finished: %d succeeded, %d failed", report.Succeeded, report.Failed)
	return report, nil
}

// runWindow applies the per-window timeout. A timed out window is failed.
func (v *Validator) runWindow(ctx context.Context, ds Dataset, factory forecast.Factory, w Window) WindowResult {
	start := time.Now()

	wctx := ctx
	if v.config.WindowTimeout > 0 {
		var cancel context.CancelFunc
		wctx, cancel = context.WithTimeout(ctx, v.config.WindowTimeout)
		defer cancel()
	}

	done := make(chan WindowResult, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- WindowResult{Window: w, Err: fmt.Errorf("model panicked: %v", p)}
			}
		}()
		done <- v.scoreWindow(ds, factory, w)
	}()

	var res WindowResult
	select {
	case res = <-done:
	case <-wctx.Done():
		res = WindowResult{Window: w, Err: fmt.Errorf("window timed out: %w", wctx.Err())}
	}

	res.Elapsed = time.Since(start)
	if res.Err != nil {
		res.ErrorMsg = res.Err.Error()
	}
	return res
}

func (v *Validator) scoreWindow(ds Dataset, factory forecast.Factory, w Window) WindowResult {
	res := WindowResult{Window: w}

	model := factory()
	if err := model.Fit(ds.X[w.TrainStart:w.TrainEnd], ds.Y[w.TrainStart:w.TrainEnd]); err != nil {
		res.Err = fmt.Errorf("fit: %w", err)
		return res
	}
	pred, err := model.Predict(ds.X[w.TestStart:w.TestEnd])
	if err != nil {
		res.Err = fmt.Errorf("predict: %w", err)
		return res
	}
	if len(pred) != w.TestSize() {
		res.Err = fmt.Errorf("predict: got %d predictions for %d rows", len(pred), w.TestSize())
		return res
	}

	actual := ds.Y[w.TestStart:w.TestEnd]
	res.Metrics = forecastScores(ds.Task, actual, pred)

	if ds.Bars != nil {
		var rm *risk.Manager
		if v.config.UseRisk {
			rm = risk.NewManager(v.config.Risk)
		}
		sim, err := v.simulator.Run(forecast.ToPredictions(ds.Task, pred), ds.Bars[w.TestStart:w.TestEnd], rm)
		if err != nil {
			res.Err = err
			res.Metrics = nil
			return res
		}
		res.Metrics = res.Metrics.Merge(sim.Metrics)
		res.Trades = len(sim.Trades)
	}

	res.Predictions = pred
	return res
}

func forecastScores(task forecast.Task, actual, pred []float64) metrics.Bundle {
	if task == forecast.TaskClassification {
		return metrics.ClassificationScores(actual, pred)
	}
	return metrics.RegressionScores(actual, pred)
}

// Aggregate reports mean, std, min and max of every metric across bundles
func Aggregate(bundles []metrics.Bundle) metrics.Bundle {
	out := metrics.Bundle{}
	if len(bundles) == 0 {
		return out
	}

	names := map[string]struct{}{}
	for _, b := range bundles {
		for name := range b {
			names[name] = struct{}{}
		}
	}
	sorted := make([]string, 0, len(names))
	for name := range names {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)

	for _, name := range sorted {
		var values []float64
		for _, b := range bundles {
			if v, ok := b[name]; ok {
				values = append(values, v)
			}
		}
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, v := range values {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		out[name+"_mean"] = metrics.Mean(values)
		out[name+"_std"] = metrics.PopulationStdDev(values)
		out[name+"_min"] = lo
		out[name+"_max"] = hi
	}
	return out
}
