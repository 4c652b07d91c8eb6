package strategy

import (
	"context"
	"testing"

	"ForecastBacktester/internal/operations/backtest"
	"ForecastBacktester/internal/services/risk"
)

func trendBars(n int, step float64) []backtest.Bar {
	bars := make([]backtest.Bar, n)
	price := 100.0
	for i := range bars {
		// small alternating wiggle keeps RSI away from its extremes
		wiggle := 0.3
		if i%2 == 1 {
			wiggle = -0.3
		}
		c := price + wiggle
		bars[i] = backtest.Bar{Index: i, Open: c, High: c, Low: c, Close: c}
		price += step
	}
	return bars
}

func TestTrendStrategyFollowsTrend(t *testing.T) {
	s := NewTrendStrategy(NewConfig())

	tested, preds, ann, err := s.PredictAnnotated(context.Background(), trendBars(80, 0.2))
	if err != nil {
		t.Fatal(err)
	}
	if len(tested) != len(preds) || len(ann.Confidence) != len(preds) || len(ann.Regime) != len(preds) {
		t.Fatal("predictions and annotations must align with the tested bars")
	}
	if tested[0].Index != s.warmup() {
		t.Fatalf("expected predictions to start after warmup %d, got %d", s.warmup(), tested[0].Index)
	}

	longs := 0
	for i, p := range preds {
		if p.Kind != backtest.KindClassification {
			t.Fatal("strategy emits classification predictions")
		}
		if p.Label < 0 {
			t.Fatalf("no short expected in an uptrend, bar %d", tested[i].Index)
		}
		if p.Label > 0 {
			longs++
			if ann.Confidence[i] < DefaultMinConfidence || ann.Confidence[i] > 1 {
				t.Fatalf("confidence %v out of range", ann.Confidence[i])
			}
		}
	}
	if longs == 0 {
		t.Fatal("expected long setups in an uptrend")
	}
}

func TestTrendStrategyDowntrend(t *testing.T) {
	s := NewTrendStrategy(NewConfig())
	_, preds, err := s.Predict(context.Background(), trendBars(80, -0.2))
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range preds {
		if p.Label > 0 {
			t.Fatal("no long expected in a downtrend")
		}
	}
}

func TestTrendStrategyRegime(t *testing.T) {
	s := NewTrendStrategy(NewConfig())
	if st := s.analyzeBar(105, 100, 99, 50, 0.01, 0.01); st.Regime != int(risk.RegimeTrending) || st.Direction != 1 {
		t.Fatalf("expected a trending long, got %+v", st)
	}
	if st := s.analyzeBar(100.5, 100, 99, 50, 0.05, 0.01); st.Regime != int(risk.RegimeHighVolatility) {
		t.Fatalf("expected high volatility, got %+v", st)
	}
	if st := s.analyzeBar(105, 100, 99, 80, 0.01, 0.01); st.Direction != 0 || st.Reason != "rsi stretched" {
		t.Fatalf("stretched RSI stays flat, got %+v", st)
	}
}

func TestTrendStrategyShortSeries(t *testing.T) {
	if _, _, err := NewTrendStrategy(NewConfig()).Predict(context.Background(), trendBars(10, 1)); err == nil {
		t.Fatal("expected an error for a series shorter than the warmup")
	}
}
