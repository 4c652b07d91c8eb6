package backtest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"ForecastBacktester/internal/models"
	"ForecastBacktester/internal/repositories"
	"ForecastBacktester/internal/services/risk"

	"github.com/getsentry/sentry-go"
)

// Predictor turns a price series into aligned predictions. The returned
// bars are the subset the predictions cover, in order.
type Predictor interface {
	Predict(ctx context.Context, bars []Bar) ([]Bar, []Prediction, error)
}

// AnnotatedPredictor also scores confidence and market regime for each
// predicted bar, which the risk manager uses when sizing
type AnnotatedPredictor interface {
	Predictor
	PredictAnnotated(ctx context.Context, bars []Bar) ([]Bar, []Prediction, Annotations, error)
}

// Request names the stored series a backtest runs over
type Request struct {
	Symbol    string
	TimeFrame string
	Start     time.Time
	End       time.Time
	MaxGap    time.Duration // zero skips the gap check

	// recorded on the run
	Model  string
	Params string
}

// Report is the outcome of one engine run
type Report struct {
	Run    *models.BacktestRun `json:"run"`
	Result *Result             `json:"result"`
	Risk   *risk.Summary       `json:"risk,omitempty"`
}

// Engine loads stored prices, predicts, simulates and persists the run
type Engine struct {
	priceRepo *repositories.PriceRepository
	runRepo   *repositories.RunRepository

	config     Config
	riskConfig *risk.Config // nil trades without a risk manager
}

func NewEngine(priceRepo *repositories.PriceRepository, runRepo *repositories.RunRepository, config Config, riskConfig *risk.Config) *Engine {
	return &Engine{
		priceRepo:  priceRepo,
		runRepo:    runRepo,
		config:     config,
		riskConfig: riskConfig,
	}
}

func (e *Engine) RunBacktest(ctx context.Context, req Request, predictor Predictor) (*Report, error) {
	log.Printf("Running backtest for %s %s from %s to %s", req.Symbol, req.TimeFrame,
		req.Start.Format("2006-01-02 15:04:05"),
		req.End.Format("2006-01-02 15:04:05"))

	prices, err := e.priceRepo.GetPricesByTimeFrame(req.Symbol, req.TimeFrame, req.Start, req.End)
	if err != nil {
		return nil, fmt.Errorf("load prices: %w", err)
	}
	bars, err := BarsFromPrices(prices, req.MaxGap)
	if err != nil {
		return nil, err
	}
	return e.RunSeries(ctx, req, bars, predictor)
}

// RunSeries runs over bars loaded elsewhere and records the run like
// RunBacktest does
func (e *Engine) RunSeries(ctx context.Context, req Request, bars []Bar, predictor Predictor) (*Report, error) {
	run := models.NewRun(models.RunKindBacktest, req.Symbol, req.TimeFrame)
	run.Model = req.Model
	run.Params = req.Params
	run.StartTime = req.Start
	run.EndTime = req.End

	report, runErr := e.RunBars(ctx, bars, predictor)
	if runErr != nil {
		run.Status = models.RunStatusFailed
		run.Error = runErr.Error()
		sentry.CaptureException(runErr)
		if err := e.save(run, nil); err != nil {
			log.Printf("Failed to record failed run %s: %v", run.ID, err)
		}
		return nil, runErr
	}

	report.Run = run
	if err := e.save(run, report.Result); err != nil {
		return nil, err
	}
	return report, nil
}

// RunBars simulates a predictor over bars already in memory
func (e *Engine) RunBars(ctx context.Context, bars []Bar, predictor Predictor) (*Report, error) {
	if len(bars) == 0 {
		return nil, invalidInput("bars", -1, "no prices in range")
	}

	var (
		tested []Bar
		preds  []Prediction
		ann    Annotations
		err    error
	)
	if ap, ok := predictor.(AnnotatedPredictor); ok {
		tested, preds, ann, err = ap.PredictAnnotated(ctx, bars)
	} else {
		tested, preds, err = predictor.Predict(ctx, bars)
	}
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log.Printf("Simulating %d predictions over %s", len(preds), fmtRange(tested))

	var rm *risk.Manager
	if e.riskConfig != nil {
		rm = risk.NewManager(*e.riskConfig)
	}

	result, err := NewSimulator(e.config).RunWithAnnotations(preds, tested, rm, ann)
	if err != nil {
		var sim *SimulationError
		if errors.As(err, &sim) {
			log.Printf("Simulation aborted: %v", sim)
		}
		return nil, err
	}

	report := &Report{Result: result}
	if rm != nil {
		summary := rm.Summary()
		report.Risk = &summary
	}

	log.Printf("Backtest finished: %d trades, final capital %.2f, %d risk denials",
		len(result.Trades), result.FinalCapital, result.Denials)
	return report, nil
}

func (e *Engine) save(run *models.BacktestRun, result *Result) error {
	if result != nil {
		run.Bars = len(result.EquityCurve)
		run.Trades = len(result.Trades)
		run.InitialCapital = money(e.config.InitialCapital)
		run.FinalCapital = money(result.FinalCapital)
	}
	if e.runRepo == nil {
		return nil
	}

	var (
		trades []models.TradeRecord
		equity []models.EquityRecord
		bundle []models.MetricRecord
	)
	if result != nil {
		trades = TradeRecords(result.Trades, nil)
		equity = EquityRecords(result.EquityCurve)
		bundle = MetricRecords(result.Metrics, nil)
	}
	if err := e.runRepo.SaveBacktest(run, trades, equity, bundle); err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}
	log.Printf("Saved run %s", run.ID)
	return nil
}
