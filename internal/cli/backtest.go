package cli

import (
	"fmt"
	"os"

	"ForecastBacktester/internal/display"
	"ForecastBacktester/internal/operations/backtest"
	"ForecastBacktester/internal/repositories"
	"ForecastBacktester/internal/services/forecast"
	"ForecastBacktester/internal/services/strategy"

	"github.com/spf13/cobra"
)

type backtestOptions struct {
	series     seriesFlags
	model      modelFlags
	predictor  string
	trainRatio float64
	noRisk     bool
	noSave     bool
	jsonOut    bool
	tradesOut  string
	showTrades int
}

func newBacktestCmd(a *app) *cobra.Command {
	opts := &backtestOptions{}
	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Fit a model on the start of a series and trade its predictions on the rest",
		Long: `Fit a ridge model on the leading share of the series, predict the remaining
bars and simulate trading them with spread, commission and risk limits.
Example: forecastbt backtest --symbol=BTCUSDT --timeframe=1h --start=2024-01-01`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBacktest(cmd, a, opts)
		},
	}

	opts.series.register(cmd)
	opts.model.register(cmd)
	cmd.Flags().StringVar(&opts.predictor, "predictor", "ridge", "Prediction source: ridge (fitted) or trend (rule-based)")
	cmd.Flags().Float64Var(&opts.trainRatio, "train-ratio", 0.7, "Share of feature rows used for fitting")
	cmd.Flags().BoolVar(&opts.noRisk, "no-risk", false, "Trade full capital without the risk manager")
	cmd.Flags().BoolVar(&opts.noSave, "no-save", false, "Do not record the run")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "Print the report as JSON")
	cmd.Flags().StringVar(&opts.tradesOut, "trades-csv", "", "Write the trade ledger to a CSV file")
	cmd.Flags().IntVar(&opts.showTrades, "show-trades", 20, "Number of trailing trades to display (0 for all)")

	return cmd
}

func runBacktest(cmd *cobra.Command, a *app, opts *backtestOptions) error {
	task, err := opts.model.parse()
	if err != nil {
		return err
	}
	bars, start, end, err := a.loadBars(&opts.series)
	if err != nil {
		return err
	}

	var runRepo *repositories.RunRepository
	if !opts.noSave {
		if runRepo, err = a.runRepo(); err != nil {
			return err
		}
	}
	riskConfig := &a.cfg.Risk
	if opts.noRisk {
		riskConfig = nil
	}

	req := backtest.Request{
		Symbol:    opts.series.symbol,
		TimeFrame: opts.series.timeframe,
		Start:     start,
		End:       end,
		MaxGap:    opts.series.maxGap,
	}

	var predictor backtest.Predictor
	switch opts.predictor {
	case "ridge":
		predictor = &forecast.HoldoutPredictor{
			Factory:    forecast.NewFactory(task, opts.model.lambda),
			Task:       task,
			Features:   opts.model.features,
			TrainRatio: opts.trainRatio,
		}
		req.Model = opts.model.name(task)
		req.Params = opts.model.params()
	case "trend":
		sc := strategy.NewConfig()
		sc.EMAPeriod = opts.model.features.EMAPeriod
		sc.RSIPeriod = opts.model.features.RSIPeriod
		sc.VolWindow = opts.model.features.VolWindow
		predictor = strategy.NewTrendStrategy(sc)
		req.Model = "trend"
		req.Params = forecast.Params{
			"ema":        float64(sc.EMAPeriod),
			"rsi":        float64(sc.RSIPeriod),
			"vol_window": float64(sc.VolWindow),
		}.String()
	default:
		return fmt.Errorf("unknown predictor %q", opts.predictor)
	}

	engine := backtest.NewEngine(nil, runRepo, a.cfg.Backtest, riskConfig)

	report, err := engine.RunSeries(cmd.Context(), req, bars, predictor)
	if err != nil {
		return err
	}

	if opts.tradesOut != "" {
		if err := writeTrades(opts.tradesOut, report.Result.Trades); err != nil {
			return err
		}
	}
	if opts.jsonOut {
		return display.WriteJSON(cmd.OutOrStdout(), report)
	}
	fmt.Fprintln(cmd.OutOrStdout(), display.Backtest(report, opts.showTrades))
	return nil
}

func writeTrades(path string, trades []backtest.Trade) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := display.WriteTradesCSV(file, trades); err != nil {
		file.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return file.Close()
}
