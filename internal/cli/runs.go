package cli

import (
	"fmt"

	"ForecastBacktester/internal/display"
	"ForecastBacktester/internal/models"
	"ForecastBacktester/internal/operations/backtest"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func newRunsCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs [RUN_ID]",
		Short: "List recorded runs or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return showRun(cmd, a, args[0])
			}
			runRepo, err := a.runRepo()
			if err != nil {
				return err
			}
			runs, err := runRepo.FindRecent(limit)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), display.Runs(runs))
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Number of runs to list")
	return cmd
}

func showRun(cmd *cobra.Command, a *app, rawID string) error {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return fmt.Errorf("invalid run id: %w", err)
	}
	runRepo, err := a.runRepo()
	if err != nil {
		return err
	}
	run, err := runRepo.FindByID(id)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("run %s not found", id)
	}

	rows, err := runRepo.MetricsForRun(id)
	if err != nil {
		return err
	}
	records, err := runRepo.TradesForRun(id)
	if err != nil {
		return err
	}
	windows, err := runRepo.WindowsForRun(id)
	if err != nil {
		return err
	}

	trades := make([]backtest.Trade, len(records))
	for i, r := range records {
		side := backtest.Long
		if r.Side == backtest.Short.String() {
			side = backtest.Short
		}
		trades[i] = backtest.Trade{
			Side:         side,
			EntryIndex:   r.EntryIndex,
			ExitIndex:    r.ExitIndex,
			EntryPrice:   r.EntryPrice.InexactFloat64(),
			ExitPrice:    r.ExitPrice.InexactFloat64(),
			PnL:          r.PnL.InexactFloat64(),
			PnLPct:       r.PnLPct,
			SizeFraction: r.SizeFraction,
			Duration:     r.Duration,
			ExitReason:   backtest.ExitReason(r.ExitReason),
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, display.Runs([]models.BacktestRun{*run}))
	if run.Error != "" {
		fmt.Fprintf(out, "error: %s\n", run.Error)
	}
	if !run.InitialCapital.IsZero() {
		change := run.FinalCapital.Sub(run.InitialCapital)
		fmt.Fprintf(out, "capital %s -> %s (%s)\n", run.InitialCapital.StringFixed(2), run.FinalCapital.StringFixed(2), signed(change))
	}
	fmt.Fprintln(out, display.MetricRecords(rows))
	if len(windows) > 0 {
		fmt.Fprintf(out, "%d windows: %d succeeded, %d failed\n", len(windows), run.Succeeded, run.Failed)
	}
	if len(trades) > 0 {
		fmt.Fprintln(out, display.Trades(trades, 20))
	}
	return nil
}

func signed(d decimal.Decimal) string {
	if d.IsPositive() {
		return "+" + d.StringFixed(2)
	}
	return d.StringFixed(2)
}
