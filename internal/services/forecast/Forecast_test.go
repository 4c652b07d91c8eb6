package forecast

import (
	"context"
	"math"
	"testing"

	"ForecastBacktester/internal/operations/backtest"
)

func sineBars(n int) []backtest.Bar {
	bars := make([]backtest.Bar, n)
	for i := range bars {
		c := 100 + 10*math.Sin(float64(i)/6) + 0.05*float64(i)
		bars[i] = backtest.Bar{Index: i, Open: c, High: c, Low: c, Close: c}
	}
	return bars
}

func TestRidgeRecoversLinearRelation(t *testing.T) {
	var X [][]float64
	var y []float64
	for i := 0; i < 50; i++ {
		a, b := float64(i), math.Sin(float64(i))
		X = append(X, []float64{a, b})
		y = append(y, 3+2*a-b)
	}

	m := NewRidgeRegressor(1e-9)
	if err := m.Fit(X, y); err != nil {
		t.Fatalf("fit: %v", err)
	}
	out, err := m.Predict([][]float64{{10, 0}, {20, 1}})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if math.Abs(out[0]-23) > 1e-4 || math.Abs(out[1]-42) > 1e-4 {
		t.Fatalf("expected [23 42], got %v", out)
	}
}

func TestRidgeShrinksWithLambda(t *testing.T) {
	X := [][]float64{{1}, {2}, {3}, {4}}
	y := []float64{2, 4, 6, 8}

	loose := NewRidgeRegressor(0.001)
	tight := NewRidgeRegressor(100)
	if err := loose.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	if err := tight.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	if math.Abs(tight.Weights()[0]) >= math.Abs(loose.Weights()[0]) {
		t.Fatalf("larger lambda should shrink weights: %v vs %v", tight.Weights(), loose.Weights())
	}
}

func TestRidgeErrors(t *testing.T) {
	m := NewRidgeRegressor(1)
	if _, err := m.Predict([][]float64{{1}}); err != ErrNotFitted {
		t.Fatalf("expected ErrNotFitted, got %v", err)
	}
	if err := m.Fit(nil, nil); err != ErrEmpty {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
	if err := m.Fit([][]float64{{1}, {2, 3}}, []float64{1, 2}); err == nil {
		t.Fatal("expected ragged rows to fail")
	}
	if err := NewRidgeRegressor(0).Fit([][]float64{{1}, {1}}, []float64{1, 2}); err != ErrSingular {
		t.Fatalf("expected ErrSingular for a constant column without regularization, got %v", err)
	}
}

func TestRidgeClassifierPredictsSigns(t *testing.T) {
	X := [][]float64{{-2}, {-1}, {1}, {2}}
	y := []float64{-0.3, -0.1, 0.2, 0.5}

	c := NewRidgeClassifier(0.1)
	if err := c.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	out, err := c.Predict([][]float64{{-3}, {3}})
	if err != nil {
		t.Fatal(err)
	}
	if out[0] != -1 || out[1] != 1 {
		t.Fatalf("expected [-1 1], got %v", out)
	}
}

func TestBuildFeaturesHasNoLookahead(t *testing.T) {
	bars := sineBars(120)
	opts := DefaultFeatureOptions()

	full, err := BuildFeatures(bars, opts)
	if err != nil {
		t.Fatal(err)
	}
	if len(full.X) != len(full.Y) || len(full.X) != len(full.Bars) {
		t.Fatal("rows are not aligned")
	}
	if len(full.X[0]) != len(full.Names) {
		t.Fatalf("expected %d columns, got %d", len(full.Names), len(full.X[0]))
	}

	// truncating the future must not change earlier rows
	cut, err := BuildFeatures(bars[:80], opts)
	if err != nil {
		t.Fatal(err)
	}
	for r := range cut.X {
		for c := range cut.X[r] {
			if cut.X[r][c] != full.X[r][c] {
				t.Fatalf("row %d col %s changed when future bars were removed", r, full.Names[c])
			}
		}
	}

	last := full.Bars[len(full.Bars)-1]
	if last.Index != bars[len(bars)-2].Index {
		t.Fatalf("the final bar has no target and must be dropped, last row is bar %d", last.Index)
	}
	want := bars[len(bars)-1].Close/bars[len(bars)-2].Close - 1
	if math.Abs(full.Y[len(full.Y)-1]-want) > 1e-12 {
		t.Fatalf("expected target %v, got %v", want, full.Y[len(full.Y)-1])
	}
}

func TestBuildFeaturesRejectsShortSeries(t *testing.T) {
	if _, err := BuildFeatures(sineBars(10), DefaultFeatureOptions()); err == nil {
		t.Fatal("expected an error for too few bars")
	}
}

func TestHoldoutPredictor(t *testing.T) {
	p := &HoldoutPredictor{
		Factory:    NewFactory(TaskClassification, 1),
		Task:       TaskClassification,
		Features:   DefaultFeatureOptions(),
		TrainRatio: 0.6,
	}
	bars, preds, err := p.Predict(context.Background(), sineBars(200))
	if err != nil {
		t.Fatal(err)
	}
	if len(bars) != len(preds) || len(bars) == 0 {
		t.Fatalf("expected aligned output, got %d bars and %d predictions", len(bars), len(preds))
	}
	for _, pr := range preds {
		if pr.Kind != backtest.KindClassification {
			t.Fatal("classification task must yield classification predictions")
		}
	}
}

func TestParamsString(t *testing.T) {
	p := Params{"lambda": 0.5, "alpha": 2}
	if p.String() != "alpha=2,lambda=0.5" {
		t.Fatalf("unexpected %q", p.String())
	}
	if p.Get("missing", 7) != 7 {
		t.Fatal("expected default")
	}
}
