package cli

import (
	"fmt"
	"time"

	"ForecastBacktester/internal/display"
	"ForecastBacktester/internal/models"
	"ForecastBacktester/internal/operations/validation"
	"ForecastBacktester/internal/services/forecast"
	"ForecastBacktester/internal/services/metrics"

	"github.com/spf13/cobra"
)

type validateOptions struct {
	series    seriesFlags
	model     modelFlags
	windows   int
	testRatio float64
	mode      string
	noRisk    bool
	noSave    bool
	jsonOut   bool
}

func newValidateCmd(a *app) *cobra.Command {
	opts := &validateOptions{}
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Score a model on time-ordered train/test windows",
		Long: `Split the series into train/test windows tiled over its tail, fit a fresh
model per window and report forecast and trading metrics per window and in
aggregate. Test data always follows the data a model was fitted on.
Example: forecastbt validate --symbol=AAPL --windows=5 --test-ratio=0.2`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, a, opts)
		},
	}

	opts.series.register(cmd)
	opts.model.register(cmd)
	cmd.Flags().IntVar(&opts.windows, "windows", 0, "Number of windows (default VALIDATION_WINDOWS)")
	cmd.Flags().Float64Var(&opts.testRatio, "test-ratio", 0, "Test share per window (default TEST_RATIO)")
	cmd.Flags().StringVar(&opts.mode, "mode", "rolling", "Train range: rolling or expanding")
	cmd.Flags().BoolVar(&opts.noRisk, "no-risk", false, "Simulate windows without the risk manager")
	cmd.Flags().BoolVar(&opts.noSave, "no-save", false, "Do not record the run")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "Print the report as JSON")

	return cmd
}

// featureDataset builds the supervised dataset a validation runs on
func featureDataset(a *app, series *seriesFlags, model *modelFlags) (validation.Dataset, forecast.Task, time.Time, time.Time, error) {
	task, err := model.parse()
	if err != nil {
		return validation.Dataset{}, task, time.Time{}, time.Time{}, err
	}
	bars, start, end, err := a.loadBars(series)
	if err != nil {
		return validation.Dataset{}, task, start, end, err
	}
	fs, err := forecast.BuildFeatures(bars, model.features)
	if err != nil {
		return validation.Dataset{}, task, start, end, err
	}
	return validation.DatasetFromFeatures(fs, task), task, start, end, nil
}

func runValidate(cmd *cobra.Command, a *app, opts *validateOptions) error {
	ds, task, start, end, err := featureDataset(a, &opts.series, &opts.model)
	if err != nil {
		return err
	}

	cfg := a.cfg.Validation
	if opts.testRatio > 0 {
		cfg.TestRatio = opts.testRatio
	}
	if cfg.Mode, err = validation.ParseMode(opts.mode); err != nil {
		return err
	}
	cfg.UseRisk = !opts.noRisk

	report, err := validation.NewValidator(cfg).Evaluate(cmd.Context(), ds, forecast.NewFactory(task, opts.model.lambda), opts.windows)
	if err != nil {
		return err
	}

	if !opts.noSave {
		run := models.NewRun(models.RunKindValidation, opts.series.symbol, opts.series.timeframe)
		run.Model = opts.model.name(task)
		run.Params = opts.model.params()
		run.StartTime, run.EndTime = start, end
		run.Bars = len(ds.X)
		run.Succeeded, run.Failed = report.Succeeded, report.Failed
		for _, w := range report.Windows {
			run.Trades += w.Trades
		}
		if report.Succeeded == 0 {
			run.Status = models.RunStatusFailed
			run.Error = "every window failed"
		}

		runRepo, err := a.runRepo()
		if err != nil {
			return err
		}
		windows, rows := report.Records()
		if err := runRepo.SaveValidation(run, windows, rows); err != nil {
			return fmt.Errorf("save run: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Saved run %s\n", run.ID)
	}

	if opts.jsonOut {
		return display.WriteJSON(cmd.OutOrStdout(), report)
	}
	fmt.Fprintln(cmd.OutOrStdout(), display.Validation(report, reportColumns(task)))
	return nil
}

func reportColumns(task forecast.Task) []string {
	if task == forecast.TaskClassification {
		return []string{metrics.Accuracy, metrics.F1, metrics.TotalReturn, metrics.SharpeRatio, metrics.MaxDrawdown}
	}
	return []string{metrics.R2, metrics.DirectionalHits, metrics.TotalReturn, metrics.SharpeRatio, metrics.MaxDrawdown}
}
