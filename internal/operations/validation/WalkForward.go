package validation

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"

	"ForecastBacktester/internal/services/forecast"
	"ForecastBacktester/internal/services/metrics"

	"golang.org/x/sync/errgroup"
)

// Combinations expands the grid into every parameter combination, in a
// stable order.
func (g Grid) Combinations() []forecast.Params {
	names := make([]string, 0, len(g))
	for name := range g {
		names = append(names, name)
	}
	sort.Strings(names)

	combos := []forecast.Params{{}}
	for _, name := range names {
		var next []forecast.Params
		for _, base := range combos {
			for _, value := range g[name] {
				p := forecast.Params{}
				for k, v := range base {
					p[k] = v
				}
				p[name] = value
				next = append(next, p)
			}
		}
		combos = next
	}
	return combos
}

// WalkForwardSearch scores every grid combination over forward-stepping
// windows and picks the one maximizing 0.7*mean + 0.3*normalized
// consistency, where consistency = 1/(std+1e-6).
func (v *Validator) WalkForwardSearch(ctx context.Context, ds Dataset, grid Grid, builder forecast.Builder, trainSize, testSize, step int) (*SearchReport, error) {
	if err := ds.validate(); err != nil {
		return nil, err
	}
	windows, err := WalkForwardSplit(len(ds.X), trainSize, testSize, step)
	if err != nil {
		return nil, err
	}
	if len(windows) == 0 {
		return nil, ErrNoWindows
	}

	combos := grid.Combinations()
	if len(combos) == 0 {
		return nil, fmt.Errorf("parameter grid is empty")
	}

	metric := metrics.R2
	if ds.Task == forecast.TaskClassification {
		metric = metrics.F1
	}

	log.Printf("Walk-forward search over %d combinations and %d windows (%s)", len(combos), len(windows), metric)

	results := make([]SearchResult, len(combos))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.config.Parallelism)

	for i, params := range combos {
		g.Go(func() error {
			res := SearchResult{Params: params}
			factory := builder(params)
			for _, w := range windows {
				if err := gctx.Err(); err != nil {
					return err
				}
				score, err := v.scoreOnly(gctx, ds, factory, w, metric)
				if err != nil {
					res.Failed++
					log.Printf("Combination %s window %s failed: %v", params, w, err)
					continue
				}
				res.Scores = append(res.Scores, score)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("search cancelled: %w", err)
	}

	best, err := rankResults(results)
	if err != nil {
		return nil, err
	}

	log.Printf("Best parameters %s: mean %s %.4f, std %.4f", best.Params, metric, best.Mean, best.Std)
	return &SearchReport{
		Metric:  metric,
		Windows: windows,
		Results: results,
		Best:    best,
	}, nil
}

func (v *Validator) scoreOnly(ctx context.Context, ds Dataset, factory forecast.Factory, w Window, metric string) (float64, error) {
	scoring := ds
	scoring.Bars = nil

	res := v.runWindow(ctx, scoring, factory, w)
	if res.Err != nil {
		return 0, res.Err
	}
	score := res.Metrics[metric]
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0, fmt.Errorf("%s is not finite", metric)
	}
	return score, nil
}

// rankResults fills the summary statistics and returns the best
// combination. Combinations without a successful window are never picked.
func rankResults(results []SearchResult) (SearchResult, error) {
	maxConsistency := 0.0
	for i := range results {
		r := &results[i]
		if len(r.Scores) == 0 {
			continue
		}
		r.Mean = metrics.Mean(r.Scores)
		r.Std = metrics.PopulationStdDev(r.Scores)
		r.Min, r.Max = r.Scores[0], r.Scores[0]
		for _, s := range r.Scores {
			r.Min = math.Min(r.Min, s)
			r.Max = math.Max(r.Max, s)
		}
		r.Consistency = 1 / (r.Std + consistencyEpsilon)
		maxConsistency = math.Max(maxConsistency, r.Consistency)
	}

	bestIdx := -1
	for i := range results {
		r := &results[i]
		if len(r.Scores) == 0 {
			continue
		}
		r.NormalizedConsistency = r.Consistency / maxConsistency
		r.Combined = meanWeight*r.Mean + consistencyWeight*r.NormalizedConsistency
		if bestIdx < 0 || r.Combined > results[bestIdx].Combined {
			bestIdx = i
		}
	}

	if bestIdx < 0 {
		return SearchResult{}, fmt.Errorf("every combination failed on every window")
	}
	return results[bestIdx], nil
}
