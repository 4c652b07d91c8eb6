package cli

import (
	"fmt"

	"ForecastBacktester/internal/display"
	"ForecastBacktester/internal/models"
	"ForecastBacktester/internal/operations/validation"
	"ForecastBacktester/internal/services/forecast"

	"github.com/spf13/cobra"
)

type optimizeOptions struct {
	series    seriesFlags
	model     modelFlags
	lambdas   []float64
	trainSize int
	testSize  int
	step      int
	noSave    bool
	jsonOut   bool
}

func newOptimizeCmd(a *app) *cobra.Command {
	opts := &optimizeOptions{}
	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Walk-forward search over ridge regularization strengths",
		Long: `Score every lambda on forward-stepping windows and pick the one with the best
blend of mean score and consistency across windows.
Example: forecastbt optimize --symbol=BTCUSDT --lambdas=0.1,1,10 --train=500 --test=100`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOptimize(cmd, a, opts)
		},
	}

	opts.series.register(cmd)
	opts.model.register(cmd)
	cmd.Flags().Float64SliceVar(&opts.lambdas, "lambdas", []float64{0.01, 0.1, 1, 10, 100}, "Candidate lambdas")
	cmd.Flags().IntVar(&opts.trainSize, "train", 250, "Rows per training window")
	cmd.Flags().IntVar(&opts.testSize, "test", 50, "Rows per test window")
	cmd.Flags().IntVar(&opts.step, "step", 0, "Rows between windows (default: test size)")
	cmd.Flags().BoolVar(&opts.noSave, "no-save", false, "Do not record the run")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "Print the report as JSON")

	return cmd
}

func runOptimize(cmd *cobra.Command, a *app, opts *optimizeOptions) error {
	ds, task, start, end, err := featureDataset(a, &opts.series, &opts.model)
	if err != nil {
		return err
	}
	step := opts.step
	if step <= 0 {
		step = opts.testSize
	}

	grid := validation.Grid{"lambda": opts.lambdas}
	report, err := validation.NewValidator(a.cfg.Validation).
		WalkForwardSearch(cmd.Context(), ds, grid, forecast.RidgeBuilder(task), opts.trainSize, opts.testSize, step)
	if err != nil {
		return err
	}

	if !opts.noSave {
		run := models.NewRun(models.RunKindOptimize, opts.series.symbol, opts.series.timeframe)
		run.Model = opts.model.name(task)
		run.Params = report.Best.Params.String()
		run.StartTime, run.EndTime = start, end
		run.Bars = len(ds.X)
		run.Succeeded = len(report.Best.Scores)
		run.Failed = report.Best.Failed

		runRepo, err := a.runRepo()
		if err != nil {
			return err
		}
		if err := runRepo.SaveValidation(run, nil, report.Records()); err != nil {
			return fmt.Errorf("save run: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Saved run %s\n", run.ID)
	}

	if opts.jsonOut {
		return display.WriteJSON(cmd.OutOrStdout(), report)
	}
	fmt.Fprintln(cmd.OutOrStdout(), display.Search(report))
	return nil
}
