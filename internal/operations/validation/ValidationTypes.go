package validation

import (
	"errors"
	"fmt"
	"time"

	"ForecastBacktester/internal/operations/backtest"
	"ForecastBacktester/internal/services/forecast"
	"ForecastBacktester/internal/services/metrics"
	"ForecastBacktester/internal/services/risk"
)

var ErrNoWindows = errors.New("no validation windows fit the series")

// Mode picks how train ranges grow across windows
type Mode int

const (
	ModeRolling Mode = iota
	ModeExpanding
)

func (m Mode) String() string {
	if m == ModeExpanding {
		return "expanding"
	}
	return "rolling"
}

func ParseMode(s string) (Mode, error) {
	switch s {
	case "rolling", "":
		return ModeRolling, nil
	case "expanding":
		return ModeExpanding, nil
	}
	return ModeRolling, fmt.Errorf("unknown split mode %q", s)
}

// Window holds half-open [start, end) ranges. TrainEnd == TestStart.
type Window struct {
	ID         int `json:"id"`
	TrainStart int `json:"train_start"`
	TrainEnd   int `json:"train_end"`
	TestStart  int `json:"test_start"`
	TestEnd    int `json:"test_end"`
}

func (w Window) TrainSize() int { return w.TrainEnd - w.TrainStart }
func (w Window) TestSize() int  { return w.TestEnd - w.TestStart }

func (w Window) String() string {
	return fmt.Sprintf("#%d train[%d:%d) test[%d:%d)", w.ID, w.TrainStart, w.TrainEnd, w.TestStart, w.TestEnd)
}

// Default validation settings
const (
	DefaultWindows       = 5
	DefaultTestRatio     = 0.2
	DefaultTrainMultiple = 4
	DefaultParallelism   = 4

	consistencyEpsilon = 1e-6
	meanWeight         = 0.7
	consistencyWeight  = 0.3
)

type Config struct {
	Windows       int
	TestRatio     float64
	TrainMultiple int // rolling train length in test-window units
	Mode          Mode

	Parallelism   int
	WindowTimeout time.Duration // zero means no timeout

	Backtest backtest.Config
	Risk     risk.Config
	UseRisk  bool
}

// NewConfig creates default config
func NewConfig() Config {
	return Config{
		Windows:       DefaultWindows,
		TestRatio:     DefaultTestRatio,
		TrainMultiple: DefaultTrainMultiple,
		Mode:          ModeRolling,
		Parallelism:   DefaultParallelism,
		Backtest:      backtest.NewConfig(),
		Risk:          risk.NewConfig(),
		UseRisk:       true,
	}
}

// Dataset is a supervised series. Bars, when set, align with X row for
// row and enable a trading simulation of each test window.
type Dataset struct {
	X    [][]float64
	Y    []float64
	Bars []backtest.Bar
	Task forecast.Task
}

func (d Dataset) validate() error {
	if len(d.X) == 0 {
		return &backtest.InvalidInputError{Field: "X", Index: -1, Reason: "dataset is empty"}
	}
	if len(d.Y) != len(d.X) {
		return &backtest.InvalidInputError{Field: "Y", Index: -1,
			Reason: fmt.Sprintf("length %d does not match %d rows", len(d.Y), len(d.X))}
	}
	if d.Bars != nil && len(d.Bars) != len(d.X) {
		return &backtest.InvalidInputError{Field: "Bars", Index: -1,
			Reason: fmt.Sprintf("length %d does not match %d rows", len(d.Bars), len(d.X))}
	}
	return nil
}

// WindowResult is the outcome of one window. Err is set for failed windows,
// which carry no metrics and are left out of the aggregate. Predictions are
// the out-of-fold model outputs for the test rows.
type WindowResult struct {
	Window      Window         `json:"window"`
	Metrics     metrics.Bundle `json:"metrics,omitempty"`
	Predictions []float64      `json:"predictions,omitempty"`
	Trades      int            `json:"trades"`
	Elapsed     time.Duration  `json:"elapsed"`
	Err         error          `json:"-"`
	ErrorMsg    string         `json:"error,omitempty"`
}

func (r WindowResult) Failed() bool {
	return r.Err != nil
}

// Report aggregates the successful windows of one evaluation
type Report struct {
	Task      string         `json:"task"`
	Windows   []WindowResult `json:"windows"`
	Aggregate metrics.Bundle `json:"aggregate"`
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
}

// Grid lists candidate values per hyperparameter
type Grid map[string][]float64

// SearchResult scores one hyperparameter combination across windows
type SearchResult struct {
	Params                forecast.Params `json:"params"`
	Scores                []float64       `json:"scores"`
	Failed                int             `json:"failed"`
	Mean                  float64         `json:"mean"`
	Std                   float64         `json:"std"`
	Min                   float64         `json:"min"`
	Max                   float64         `json:"max"`
	Consistency           float64         `json:"consistency"`
	NormalizedConsistency float64         `json:"normalized_consistency"`
	Combined              float64         `json:"combined"`
}

type SearchReport struct {
	Metric  string         `json:"metric"`
	Windows []Window       `json:"windows"`
	Results []SearchResult `json:"results"`
	Best    SearchResult   `json:"best"`
}

// DatasetFromFeatures aligns a feature set with its bars for evaluation
func DatasetFromFeatures(fs *forecast.FeatureSet, task forecast.Task) Dataset {
	return Dataset{
		X:    fs.X,
		Y:    fs.Target(task),
		Bars: fs.Bars,
		Task: task,
	}
}
