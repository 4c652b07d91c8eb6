package backtest

import (
	"errors"
	"math"
	"testing"
	"time"

	"ForecastBacktester/internal/services/metrics"
	"ForecastBacktester/internal/services/risk"
)

func barsFromCloses(closes ...float64) []Bar {
	bars := make([]Bar, len(closes))
	for i, c := range closes {
		bars[i] = Bar{Index: i, Open: c, High: c, Low: c, Close: c}
	}
	return bars
}

func frictionless() Config {
	cfg := NewConfig()
	cfg.Spread = 0
	cfg.Commission = 0
	return cfg
}

func TestZeroSignalsProduceNoTrades(t *testing.T) {
	sim := NewSimulator(NewConfig())
	bars := barsFromCloses(1, 1, 1, 1, 1)

	res, err := sim.Run(Regressions([]float64{0, 0, 0, 0, 0}), bars, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Trades) != 0 {
		t.Fatalf("expected no trades, got %d", len(res.Trades))
	}
	if res.Metrics[metrics.TotalReturn] != 0 {
		t.Fatalf("expected zero return, got %v", res.Metrics[metrics.TotalReturn])
	}
	if len(res.EquityCurve) != len(bars) {
		t.Fatalf("expected %d equity points, got %d", len(bars), len(res.EquityCurve))
	}
}

func TestSingleLongTrade(t *testing.T) {
	sim := NewSimulator(frictionless())

	res, err := sim.Run(Regressions([]float64{1, 1}), barsFromCloses(1.00, 1.05), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Trades) != 1 {
		t.Fatalf("expected one trade, got %d", len(res.Trades))
	}

	tr := res.Trades[0]
	if tr.Side != Long || tr.ExitReason != ExitEndOfData {
		t.Fatalf("unexpected trade %+v", tr)
	}
	if math.Abs(tr.PnLPct-0.05) > 1e-9 {
		t.Errorf("expected pnl_pct 0.05, got %v", tr.PnLPct)
	}
	if math.Abs(tr.PnL-0.05*DefaultInitialCapital) > 1e-6 {
		t.Errorf("expected pnl %v, got %v", 0.05*DefaultInitialCapital, tr.PnL)
	}
	if math.Abs(res.FinalCapital-10500) > 1e-6 {
		t.Errorf("expected final capital 10500, got %v", res.FinalCapital)
	}
}

func TestSpreadAndCommission(t *testing.T) {
	cfg := NewConfig()
	cfg.Spread = 0.01
	cfg.Commission = 0.001
	sim := NewSimulator(cfg)

	res, err := sim.Run(Regressions([]float64{-5, -5}), barsFromCloses(100, 100), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tr := res.Trades[0]
	if tr.Side != Short || math.Abs(tr.EntryPrice-99) > 1e-9 {
		t.Fatalf("short entry should be penalized by the spread, got %+v", tr)
	}
	// (99 - 100)/99 of capital, minus commission
	want := -1.0/99*10000 - 10
	if math.Abs(tr.PnL-want) > 1e-9 {
		t.Fatalf("expected pnl %v, got %v", want, tr.PnL)
	}
}

func TestSignalFlipReopensOnSameBar(t *testing.T) {
	sim := NewSimulator(frictionless())
	preds := Regressions([]float64{1, -1, -1, -1})

	res, err := sim.Run(preds, barsFromCloses(1, 1.01, 1.02, 1.03), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Trades) != 2 {
		t.Fatalf("expected two trades, got %d", len(res.Trades))
	}
	if res.Trades[0].ExitReason != ExitSignalFlip || res.Trades[1].ExitReason != ExitEndOfData {
		t.Fatalf("unexpected exit reasons %s, %s", res.Trades[0].ExitReason, res.Trades[1].ExitReason)
	}
	if res.Trades[1].Side != Short || res.Trades[1].EntryIndex != 1 {
		t.Fatalf("expected a short opened on the flip bar, got %+v", res.Trades[1])
	}
}

func TestProtectiveExitsBeforeSignalFlip(t *testing.T) {
	cfg := frictionless()
	cfg.StopLossPct = 0.02
	cfg.TakeProfitPct = 0.05
	sim := NewSimulator(cfg)

	// bar 1 hits the stop and flips at once; the stop wins and no short is
	// opened until bar 2
	preds := Regressions([]float64{1, -1, -1, -1})
	res, err := sim.Run(preds, barsFromCloses(1, 0.98, 0.98, 0.98), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Trades[0].ExitReason != ExitStopLoss {
		t.Fatalf("expected stop loss (inclusive threshold), got %s", res.Trades[0].ExitReason)
	}
	if len(res.Trades) != 2 || res.Trades[1].EntryIndex != 2 {
		t.Fatalf("expected re-entry on the next bar, got %+v", res.Trades)
	}

	res, err = sim.Run(Regressions([]float64{1, 1, 1}), barsFromCloses(1, 1.05, 1.05), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Trades[0].ExitReason != ExitTakeProfit {
		t.Fatalf("expected take profit, got %s", res.Trades[0].ExitReason)
	}
}

func TestTradeInvariants(t *testing.T) {
	sim := NewSimulator(NewConfig())
	closes := make([]float64, 200)
	values := make([]float64, 200)
	for i := range closes {
		closes[i] = 100 + 5*math.Sin(float64(i)/7)
		values[i] = math.Cos(float64(i) / 5)
	}
	bars := barsFromCloses(closes...)

	res, err := sim.Run(Regressions(values), bars, risk.NewManager(risk.NewConfig()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.EquityCurve) != len(bars) {
		t.Fatalf("expected %d equity points, got %d", len(bars), len(res.EquityCurve))
	}
	if len(res.Trades) == 0 {
		t.Fatal("expected trades")
	}

	valid := map[ExitReason]bool{ExitSignalFlip: true, ExitStopLoss: true, ExitTakeProfit: true, ExitEndOfData: true}
	for _, tr := range res.Trades {
		if tr.ExitIndex <= tr.EntryIndex {
			t.Fatalf("exit %d not after entry %d", tr.ExitIndex, tr.EntryIndex)
		}
		if !valid[tr.ExitReason] {
			t.Fatalf("unknown exit reason %q", tr.ExitReason)
		}
		if tr.SizeFraction > risk.DefaultMaxPositionSize+1e-12 {
			t.Fatalf("size %v above the risk ceiling", tr.SizeFraction)
		}
	}
	if pf := res.Metrics[metrics.ProfitFactor]; math.IsInf(pf, 0) || pf > metrics.RatioCap {
		t.Fatalf("profit factor not capped: %v", pf)
	}
}

func TestRiskDenialKeepsFlat(t *testing.T) {
	rcfg := risk.NewConfig()
	rcfg.MaxDrawdown = 0.01
	rm := risk.NewManager(rcfg)
	rm.Observe(0, 20000)

	res, err := NewSimulator(frictionless()).Run(Regressions([]float64{1, 1, 1}), barsFromCloses(1, 1, 1), rm)
	if err != nil {
		t.Fatalf("risk denial must not be an error: %v", err)
	}
	if len(res.Trades) != 0 || res.Denials == 0 {
		t.Fatalf("expected denials and no trades, got %d trades, %d denials", len(res.Trades), res.Denials)
	}
}

func TestClipCapitalAtZero(t *testing.T) {
	cfg := frictionless()
	cfg.Commission = 0.5
	cfg.StopLossPct = 0.5
	preds := Regressions([]float64{1, 1, 1, 1})
	bars := barsFromCloses(1, 0.2, 1, 1)

	res, err := NewSimulator(cfg).Run(preds, bars, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := res.EquityCurve[1].Capital; math.Abs(got+3000) > 1e-6 {
		t.Fatalf("expected unclipped capital -3000, got %v", got)
	}

	cfg.ClipCapitalAtZero = true
	res, err = NewSimulator(cfg).Run(preds, bars, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.EquityCurve[1].Capital != 0 || res.FinalCapital != 0 {
		t.Fatalf("expected capital clipped at zero, got %v", res.EquityCurve)
	}
	if len(res.Trades) != 1 {
		t.Fatalf("expected no entries after capital is exhausted, got %d trades", len(res.Trades))
	}
}

func TestInvalidInput(t *testing.T) {
	sim := NewSimulator(NewConfig())

	cases := map[string]struct {
		preds []Prediction
		bars  []Bar
	}{
		"empty":       {nil, nil},
		"mismatch":    {Regressions([]float64{1}), barsFromCloses(1, 2)},
		"nan price":   {Regressions([]float64{1, 1}), barsFromCloses(1, math.NaN())},
		"inf pred":    {Regressions([]float64{math.Inf(1), 1}), barsFromCloses(1, 2)},
		"not ordered": {Regressions([]float64{1, 1}), []Bar{{Index: 3, Close: 1}, {Index: 3, Close: 1}}},
	}

	for name, tc := range cases {
		_, err := sim.Run(tc.preds, tc.bars, nil)
		var inv *InvalidInputError
		if !errors.As(err, &inv) {
			t.Errorf("%s: expected InvalidInputError, got %v", name, err)
		}
	}
}

func TestZeroEntryPriceIsSimulationError(t *testing.T) {
	sim := NewSimulator(frictionless())

	_, err := sim.Run(Regressions([]float64{1, 1, 1}), barsFromCloses(0, 1, 1), nil)
	var simErr *SimulationError
	if !errors.As(err, &simErr) {
		t.Fatalf("expected SimulationError, got %v", err)
	}
	if simErr.Bar != 1 {
		t.Fatalf("expected failure at bar 1, got %d", simErr.Bar)
	}
}

func TestSignal(t *testing.T) {
	cfg := NewConfig()
	cfg.SignalThreshold = 0.5
	sim := NewSimulator(cfg)

	tests := []struct {
		pred Prediction
		want int
	}{
		{Classification(2), 1},
		{Classification(-1), -1},
		{Classification(0), 0},
		{Regression(1), 0},
		{Regression(10), 1},
		{Regression(-10), -1},
	}
	for _, tt := range tests {
		if got := sim.Signal(tt.pred); got != tt.want {
			t.Errorf("Signal(%+v) = %d, want %d", tt.pred, got, tt.want)
		}
	}
}

func TestDayKey(t *testing.T) {
	r := &simulation{cfg: Config{BarsPerDay: 24}}
	day := time.Date(2024, 3, 1, 23, 0, 0, 0, time.UTC)

	if r.dayKey(Bar{Time: day}) != r.dayKey(Bar{Time: day.Add(-22 * time.Hour)}) {
		t.Fatal("bars on the same date should share a day key")
	}
	if r.dayKey(Bar{Time: day}) == r.dayKey(Bar{Time: day.Add(2 * time.Hour)}) {
		t.Fatal("bars across midnight should differ")
	}
	if r.dayKey(Bar{Index: 23}) != 0 || r.dayKey(Bar{Index: 24}) != 1 {
		t.Fatal("index day key should divide by bars per day")
	}
}
