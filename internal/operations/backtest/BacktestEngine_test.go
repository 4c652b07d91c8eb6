package backtest

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"ForecastBacktester/internal/models"
	"ForecastBacktester/internal/services/metrics"
	"ForecastBacktester/internal/services/risk"
)

// fixedPredictor skips the first bar and predicts long on the rest
type fixedPredictor struct {
	err error
}

func (p fixedPredictor) Predict(ctx context.Context, bars []Bar) ([]Bar, []Prediction, error) {
	if p.err != nil {
		return nil, nil, p.err
	}
	tested := bars[1:]
	preds := make([]Prediction, len(tested))
	for i := range preds {
		preds[i] = Regression(1)
	}
	return tested, preds, nil
}

func TestEngineRunBars(t *testing.T) {
	engine := NewEngine(nil, nil, frictionless(), nil)
	report, err := engine.RunBars(context.Background(), barsFromCloses(100, 100, 105), fixedPredictor{})
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Result.Trades) != 1 {
		t.Fatalf("expected one trade, got %d", len(report.Result.Trades))
	}
	if report.Result.Trades[0].EntryIndex != 1 {
		t.Fatalf("predictions start at bar 1, trade entered at %d", report.Result.Trades[0].EntryIndex)
	}
	if report.Risk != nil {
		t.Fatal("no risk summary without a risk config")
	}
	if report.Result.Metrics[metrics.TotalReturn] <= 0 {
		t.Fatalf("expected a gain, got %v", report.Result.Metrics[metrics.TotalReturn])
	}
}

func TestEngineRunBarsWithRisk(t *testing.T) {
	rc := risk.NewConfig()
	engine := NewEngine(nil, nil, frictionless(), &rc)
	report, err := engine.RunBars(context.Background(), barsFromCloses(100, 100, 101, 102), fixedPredictor{})
	if err != nil {
		t.Fatal(err)
	}
	if report.Risk == nil || report.Risk.TotalTrades != len(report.Result.Trades) {
		t.Fatalf("risk summary should track every trade, got %+v", report.Risk)
	}
}

func TestEngineRunBarsErrors(t *testing.T) {
	engine := NewEngine(nil, nil, NewConfig(), nil)

	var inv *InvalidInputError
	if _, err := engine.RunBars(context.Background(), nil, fixedPredictor{}); !errors.As(err, &inv) {
		t.Fatalf("expected InvalidInputError for an empty series, got %v", err)
	}

	boom := errors.New("boom")
	if _, err := engine.RunBars(context.Background(), barsFromCloses(1, 2, 3), fixedPredictor{err: boom}); !errors.Is(err, boom) {
		t.Fatalf("expected the predictor error to be wrapped, got %v", err)
	}
}

func TestBarsFromPrices(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	prices := []models.Price{
		{OpenTime: start, Close: 1},
		{OpenTime: start.Add(time.Hour), Close: 2},
		{OpenTime: start.Add(2 * time.Hour), Close: 3},
	}

	bars, err := BarsFromPrices(prices, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	for i, b := range bars {
		if b.Index != i || b.Close != float64(i+1) || !b.Time.Equal(prices[i].OpenTime) {
			t.Fatalf("unexpected bar %+v", b)
		}
	}

	gapped := []models.Price{prices[0], prices[2]}
	if _, err := BarsFromPrices(gapped, time.Hour); err == nil {
		t.Fatal("expected a gap to be rejected")
	}
	if _, err := BarsFromPrices(gapped, 0); err != nil {
		t.Fatalf("gap checks are off without a max gap: %v", err)
	}

	var inv *InvalidInputError
	if _, err := BarsFromPrices([]models.Price{prices[0], prices[0]}, 0); !errors.As(err, &inv) || inv.Index != 1 {
		t.Fatalf("expected duplicate bar 1 to be rejected, got %v", err)
	}
}

func TestRecords(t *testing.T) {
	trades := []Trade{{Side: Short, EntryPrice: 1.23456789012, ExitPrice: 1.2, PnL: -3.5, ExitReason: ExitStopLoss}}
	id := 3
	recs := TradeRecords(trades, &id)
	if len(recs) != 1 || recs[0].Side != "short" || recs[0].ExitReason != "stop_loss" || *recs[0].WindowID != 3 {
		t.Fatalf("unexpected record %+v", recs)
	}
	if got := recs[0].EntryPrice.String(); got != "1.23456789" {
		t.Fatalf("prices are stored with 8 decimals, got %s", got)
	}

	rows := MetricRecords(metrics.Bundle{"b": 2, "a": 1}, nil)
	if len(rows) != 2 || rows[0].Name != "a" || rows[1].Value != 2 || rows[0].WindowID != nil {
		t.Fatalf("unexpected metric rows %+v", rows)
	}
}

// annotatedPredictor marks every bar as high volatility with full confidence
type annotatedPredictor struct {
	fixedPredictor
	called *bool
}

func (p annotatedPredictor) PredictAnnotated(ctx context.Context, bars []Bar) ([]Bar, []Prediction, Annotations, error) {
	*p.called = true
	tested, preds, err := p.Predict(ctx, bars)
	ann := Annotations{
		Confidence: make([]float64, len(tested)),
		Regime:     make([]int, len(tested)),
	}
	for i := range tested {
		ann.Confidence[i] = 1
		ann.Regime[i] = int(risk.RegimeHighVolatility)
	}
	return tested, preds, ann, err
}

func TestEngineUsesAnnotations(t *testing.T) {
	rc := risk.NewConfig()
	called := false
	engine := NewEngine(nil, nil, frictionless(), &rc)
	report, err := engine.RunBars(context.Background(), barsFromCloses(100, 100, 101, 102), annotatedPredictor{called: &called})
	if err != nil {
		t.Fatal(err)
	}
	if !called {
		t.Fatal("annotated predictors should be asked for annotations")
	}
	for _, tr := range report.Result.Trades {
		if tr.SizeFraction > rc.MaxPositionSize*risk.RegimeHighVolatility.Multiplier()+1e-12 {
			t.Fatalf("high volatility regime should tighten the ceiling, got %v", tr.SizeFraction)
		}
	}
}

func TestEngineRunSeriesWithoutStorage(t *testing.T) {
	engine := NewEngine(nil, nil, frictionless(), nil)
	req := Request{Symbol: "BTCUSDT", TimeFrame: models.PriceTimeFrame1h, Model: "fixed"}
	report, err := engine.RunSeries(context.Background(), req, barsFromCloses(100, 100, 110), fixedPredictor{})
	if err != nil {
		t.Fatal(err)
	}
	run := report.Run
	if run == nil || run.Kind != models.RunKindBacktest || run.Status != models.RunStatusCompleted {
		t.Fatalf("unexpected run %+v", run)
	}
	if run.Bars != 2 || run.Trades != 1 || math.Abs(run.FinalCapital.InexactFloat64()-report.Result.FinalCapital) > 1e-6 {
		t.Fatalf("run totals do not match the result: %+v", run)
	}
}
