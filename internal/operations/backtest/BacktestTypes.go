package backtest

import (
	"time"

	"ForecastBacktester/internal/services/metrics"
)

// Bar is one OHLC candle of a dense, ordered price series
type Bar struct {
	Index int       `json:"index"`
	Time  time.Time `json:"time,omitempty"`
	Open  float64   `json:"open"`
	High  float64   `json:"high"`
	Low   float64   `json:"low"`
	Close float64   `json:"close"`
}

// PredictionKind says how a prediction value turns into a signal
type PredictionKind int

const (
	KindRegression PredictionKind = iota
	KindClassification
)

func (k PredictionKind) String() string {
	if k == KindClassification {
		return "classification"
	}
	return "regression"
}

// Prediction is one model output aligned to a bar. Build it with
// Regression or Classification; the kind is never inferred from values.
type Prediction struct {
	Kind  PredictionKind `json:"kind"`
	Value float64        `json:"value"`
	Label int            `json:"label"`
}

func Regression(v float64) Prediction {
	return Prediction{Kind: KindRegression, Value: v}
}

func Classification(label int) Prediction {
	return Prediction{Kind: KindClassification, Label: label, Value: float64(label)}
}

// Regressions wraps a slice of raw regression outputs
func Regressions(values []float64) []Prediction {
	out := make([]Prediction, len(values))
	for i, v := range values {
		out[i] = Regression(v)
	}
	return out
}

// Classifications wraps a slice of class labels
func Classifications(labels []int) []Prediction {
	out := make([]Prediction, len(labels))
	for i, l := range labels {
		out[i] = Classification(l)
	}
	return out
}

type Side int

const (
	Short Side = -1
	Flat  Side = 0
	Long  Side = 1
)

func (s Side) String() string {
	switch s {
	case Long:
		return "long"
	case Short:
		return "short"
	}
	return "flat"
}

func (s Side) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type ExitReason string

const (
	ExitSignalFlip ExitReason = "signal_flip"
	ExitStopLoss   ExitReason = "stop_loss"
	ExitTakeProfit ExitReason = "take_profit"
	ExitEndOfData  ExitReason = "end_of_data"
)

// Position is the single live position of a simulator run
type Position struct {
	Side         Side
	EntryPrice   float64
	EntryIndex   int
	SizeFraction float64
}

// Trade is written once when a position closes
type Trade struct {
	Side         Side       `json:"side"`
	EntryPrice   float64    `json:"entry_price"`
	ExitPrice    float64    `json:"exit_price"`
	EntryIndex   int        `json:"entry_index"`
	ExitIndex    int        `json:"exit_index"`
	PnL          float64    `json:"pnl"`
	PnLPct       float64    `json:"pnl_pct"`
	SizeFraction float64    `json:"size_fraction"`
	Duration     int        `json:"duration"`
	ExitReason   ExitReason `json:"exit_reason"`
}

// For tracking equity changes
type EquityPoint struct {
	Index   int     `json:"index"`
	Capital float64 `json:"capital"`
}

// Annotations carry optional per-bar inputs for the risk manager
type Annotations struct {
	Confidence []float64 // [0,1] per bar
	Regime     []int     // risk.Regime per bar
}

// Result of one simulator run
type Result struct {
	EquityCurve  []EquityPoint  `json:"equity_curve"`
	Trades       []Trade        `json:"trades"`
	Metrics      metrics.Bundle `json:"metrics"`
	Denials      int            `json:"denials"`
	Warnings     int            `json:"warnings"`
	FinalCapital float64        `json:"final_capital"`
}

// Equity returns the capital values of the curve
func (r *Result) Equity() []float64 {
	out := make([]float64, len(r.EquityCurve))
	for i, p := range r.EquityCurve {
		out[i] = p.Capital
	}
	return out
}

// Default simulation settings
const (
	DefaultInitialCapital     = 10000.0
	DefaultSpread             = 0.0002
	DefaultCommission         = 0.0001
	DefaultSignalScale        = 0.1
	DefaultVolatilityLookback = 20
	DefaultBarsPerDay         = 1
)

// Simulation config
type Config struct {
	InitialCapital float64
	Spread         float64 // fraction applied against the entry price
	Commission     float64 // fraction of capital charged per close

	// Zero disables the exit
	StopLossPct   float64
	TakeProfitPct float64

	SignalScale     float64
	SignalThreshold float64

	// Clip capital at zero and stop opening positions once it is exhausted
	ClipCapitalAtZero bool

	AnnualizationFactor float64
	RiskFreeRate        float64

	VolatilityLookback int
	BarsPerDay         int // day key for bars without a timestamp
}

// NewConfig creates default config
func NewConfig() Config {
	opts := metrics.DefaultOptions()
	return Config{
		InitialCapital:      DefaultInitialCapital,
		Spread:              DefaultSpread,
		Commission:          DefaultCommission,
		SignalScale:         DefaultSignalScale,
		AnnualizationFactor: opts.AnnualizationFactor,
		RiskFreeRate:        opts.RiskFreeRate,
		VolatilityLookback:  DefaultVolatilityLookback,
		BarsPerDay:          DefaultBarsPerDay,
	}
}

func (c Config) metricOptions() metrics.Options {
	return metrics.Options{
		AnnualizationFactor: c.AnnualizationFactor,
		RiskFreeRate:        c.RiskFreeRate,
	}
}
