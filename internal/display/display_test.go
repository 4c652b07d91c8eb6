package display

import (
	"bytes"
	"encoding/csv"
	"math"
	"strings"
	"testing"

	"ForecastBacktester/internal/operations/backtest"
	"ForecastBacktester/internal/operations/validation"
	"ForecastBacktester/internal/services/metrics"
)

func TestFormatMetric(t *testing.T) {
	cases := []struct {
		name string
		v    float64
		want string
	}{
		{metrics.TotalReturn, 0.1234, "12.34%"},
		{metrics.NumTrades, 7, "7"},
		{metrics.SharpeRatio, 1.23456, "1.2346"},
		{metrics.SharpeRatio, math.NaN(), "n/a"},
	}
	for _, tc := range cases {
		if got := formatMetric(tc.name, tc.v); got != tc.want {
			t.Errorf("formatMetric(%s, %v) = %q, want %q", tc.name, tc.v, got, tc.want)
		}
	}
}

func TestTradesShowsTail(t *testing.T) {
	trades := []backtest.Trade{
		{Side: backtest.Long, EntryIndex: 1, ExitIndex: 2, PnL: 5, ExitReason: backtest.ExitSignalFlip},
		{Side: backtest.Short, EntryIndex: 2, ExitIndex: 9, PnL: -1, ExitReason: backtest.ExitStopLoss},
	}
	out := Trades(trades, 1)
	if !strings.Contains(out, "last 1 of 2") || !strings.Contains(out, "stop_loss") || strings.Contains(out, "signal_flip") {
		t.Fatalf("unexpected rendering:\n%s", out)
	}
}

func TestValidationMarksFailedWindows(t *testing.T) {
	report := &validation.Report{
		Task: "regression",
		Windows: []validation.WindowResult{
			{Window: validation.Window{ID: 0, TrainEnd: 10, TestStart: 10, TestEnd: 12}, Metrics: metrics.Bundle{metrics.R2: 0.5}},
			{Window: validation.Window{ID: 1, TrainStart: 2, TrainEnd: 12, TestStart: 12, TestEnd: 14}, ErrorMsg: "fit: singular", Err: errFake{}},
		},
		Aggregate: metrics.Bundle{metrics.R2 + "_mean": 0.5, metrics.MAE + "_mean": 1},
		Succeeded: 1,
		Failed:    1,
	}
	out := Validation(report, []string{metrics.R2})
	for _, want := range []string{"failed: fit: singular", "1 succeeded, 1 failed", "r2_mean"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, "mae_mean") {
		t.Error("aggregate should only show the selected columns")
	}
}

type errFake struct{}

func (errFake) Error() string { return "fake" }

func TestWriteTradesCSV(t *testing.T) {
	var buf bytes.Buffer
	trades := []backtest.Trade{{Side: backtest.Long, EntryPrice: 100, ExitPrice: 105, PnL: 50, PnLPct: 0.05, SizeFraction: 1, Duration: 3, ExitReason: backtest.ExitEndOfData}}
	if err := WriteTradesCSV(&buf, trades); err != nil {
		t.Fatal(err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[1][0] != "long" || rows[1][5] != "50" || rows[1][9] != "end_of_data" {
		t.Fatalf("unexpected rows %v", rows)
	}
}

func TestWriteJSONUsesSideNames(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, backtest.Trade{Side: backtest.Short}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"side": "short"`) {
		t.Fatalf("unexpected json %s", buf.String())
	}
}
