// Package display renders run results for the terminal
package display

import (
	"fmt"
	"math"
	"strings"

	"ForecastBacktester/internal/models"
	"ForecastBacktester/internal/operations/backtest"
	"ForecastBacktester/internal/operations/validation"
	"ForecastBacktester/internal/services/metrics"
	"ForecastBacktester/internal/services/risk"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			MarginTop(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#3B82F6")).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().Padding(0, 1)

	gainStyle = cellStyle.Foreground(lipgloss.Color("#10B981"))
	lossStyle = cellStyle.Foreground(lipgloss.Color("#EF4444"))
	dimStyle  = cellStyle.Foreground(lipgloss.Color("#6B7280"))

	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#4B5563"))
)

// percentMetrics are shown as percentages
var percentMetrics = map[string]bool{
	metrics.TotalReturn:      true,
	metrics.CAGRName:         true,
	metrics.MaxDrawdown:      true,
	metrics.WinRate:          true,
	metrics.AnnualVolatility: true,
	metrics.VaR95:            true,
	metrics.VaR99:            true,
	metrics.CVaR95:           true,
	metrics.DirectionalHits:  true,
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

func Title(s string) string {
	return titleStyle.Render(s)
}

func formatMetric(name string, v float64) string {
	switch {
	case math.IsNaN(v):
		return "n/a"
	case percentMetrics[name]:
		return fmt.Sprintf("%.2f%%", v*100)
	case v == math.Trunc(v) && math.Abs(v) < 1e9:
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.4f", v)
}

// Metrics renders a bundle as a name/value table in name order
func Metrics(title string, b metrics.Bundle) string {
	t := newTable("Metric", "Value")
	for _, name := range b.Names() {
		t.Row(name, formatMetric(name, b[name]))
	}
	return lipgloss.JoinVertical(lipgloss.Left, Title(title), t.String())
}

// Trades renders the last limit trades of a ledger. limit <= 0 shows all.
func Trades(trades []backtest.Trade, limit int) string {
	shown := trades
	if limit > 0 && len(shown) > limit {
		shown = shown[len(shown)-limit:]
	}

	t := newTable("Side", "Entry", "Exit", "Entry Price", "Exit Price", "PnL", "PnL %", "Size", "Bars", "Reason").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 5 {
				if shown[row].PnL >= 0 {
					return gainStyle
				}
				return lossStyle
			}
			return cellStyle
		})
	for _, tr := range shown {
		t.Row(
			tr.Side.String(),
			fmt.Sprint(tr.EntryIndex),
			fmt.Sprint(tr.ExitIndex),
			fmt.Sprintf("%.4f", tr.EntryPrice),
			fmt.Sprintf("%.4f", tr.ExitPrice),
			fmt.Sprintf("%.2f", tr.PnL),
			fmt.Sprintf("%.2f%%", tr.PnLPct*100),
			fmt.Sprintf("%.4f", tr.SizeFraction),
			fmt.Sprint(tr.Duration),
			string(tr.ExitReason),
		)
	}

	title := fmt.Sprintf("Trades (%d)", len(trades))
	if len(shown) < len(trades) {
		title = fmt.Sprintf("Trades (last %d of %d)", len(shown), len(trades))
	}
	return lipgloss.JoinVertical(lipgloss.Left, Title(title), t.String())
}

func Risk(s risk.Summary) string {
	t := newTable("Risk", "Value")
	t.Row("current drawdown", fmt.Sprintf("%.2f%% of %.2f%%", s.CurrentDrawdown*100, s.MaxDrawdownLimit*100))
	t.Row("daily pnl", fmt.Sprintf("%.2f", s.DailyPnL))
	t.Row("daily loss limit", fmt.Sprintf("%.2f%%", s.MaxDailyLossLimit*100))
	t.Row("trades", fmt.Sprintf("%d (%d won, %d lost)", s.TotalTrades, s.Wins, s.Losses))
	t.Row("win rate", fmt.Sprintf("%.2f%%", s.RecentWinRate*100))
	t.Row("avg volatility", fmt.Sprintf("%.6f", s.AvgVolatility))
	return lipgloss.JoinVertical(lipgloss.Left, Title("Risk"), t.String())
}

// Backtest renders a full engine report
func Backtest(r *backtest.Report, tradeLimit int) string {
	parts := []string{}
	if r.Run != nil {
		parts = append(parts, dimStyle.Render(fmt.Sprintf("run %s  %s %s  %d bars",
			r.Run.ID, r.Run.Symbol, r.Run.TimeFrame, r.Run.Bars)))
	}
	parts = append(parts,
		Metrics("Metrics", r.Result.Metrics),
		Trades(r.Result.Trades, tradeLimit),
	)
	if r.Risk != nil {
		parts = append(parts, Risk(*r.Risk))
	}
	if r.Result.Denials > 0 || r.Result.Warnings > 0 {
		parts = append(parts, dimStyle.Render(fmt.Sprintf("%d entries denied, %d risk warnings",
			r.Result.Denials, r.Result.Warnings)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// Validation renders per-window outcomes and the aggregate. Only the named
// metrics appear in the window table.
func Validation(r *validation.Report, columns []string) string {
	headers := append([]string{"Window", "Train", "Test", "Trades", "Status"}, columns...)
	t := newTable(headers...)
	for _, w := range r.Windows {
		row := []string{
			fmt.Sprint(w.Window.ID),
			fmt.Sprintf("[%d:%d)", w.Window.TrainStart, w.Window.TrainEnd),
			fmt.Sprintf("[%d:%d)", w.Window.TestStart, w.Window.TestEnd),
			fmt.Sprint(w.Trades),
		}
		if w.Failed() {
			row = append(row, lossStyle.Render("failed: "+truncate(w.ErrorMsg, 40)))
			for range columns {
				row = append(row, "")
			}
		} else {
			row = append(row, "ok")
			for _, c := range columns {
				v, ok := w.Metrics[c]
				if !ok {
					row = append(row, "")
					continue
				}
				row = append(row, formatMetric(c, v))
			}
		}
		t.Row(row...)
	}

	summary := fmt.Sprintf("%s task: %d succeeded, %d failed", r.Task, r.Succeeded, r.Failed)
	return lipgloss.JoinVertical(lipgloss.Left,
		Title("Windows"),
		t.String(),
		dimStyle.Render(summary),
		Metrics("Aggregate", pick(r.Aggregate, columns)),
	)
}

// Search renders every combination ranked by combined score
func Search(r *validation.SearchReport) string {
	t := newTable("Params", "Mean "+r.Metric, "Std", "Min", "Max", "Failed", "Score")
	for _, res := range r.Results {
		if len(res.Scores) == 0 {
			t.Row(res.Params.String(), "", "", "", "", fmt.Sprint(res.Failed), "n/a")
			continue
		}
		t.Row(
			res.Params.String(),
			fmt.Sprintf("%.4f", res.Mean),
			fmt.Sprintf("%.4f", res.Std),
			fmt.Sprintf("%.4f", res.Min),
			fmt.Sprintf("%.4f", res.Max),
			fmt.Sprint(res.Failed),
			fmt.Sprintf("%.4f", res.Combined),
		)
	}
	best := gainStyle.Render(fmt.Sprintf("best: %s (score %.4f)", r.Best.Params, r.Best.Combined))
	return lipgloss.JoinVertical(lipgloss.Left, Title(fmt.Sprintf("Walk-forward search (%d windows)", len(r.Windows))), t.String(), best)
}

func Runs(runs []models.BacktestRun) string {
	t := newTable("ID", "Kind", "Symbol", "TF", "Model", "Bars", "Trades", "Final Capital", "Status", "Created")
	for _, r := range runs {
		status := r.Status
		if r.Status == models.RunStatusFailed {
			status = lossStyle.Render(status)
		}
		t.Row(
			r.ID.String(),
			r.Kind,
			r.Symbol,
			r.TimeFrame,
			r.Model,
			fmt.Sprint(r.Bars),
			fmt.Sprint(r.Trades),
			r.FinalCapital.StringFixed(2),
			status,
			r.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	return lipgloss.JoinVertical(lipgloss.Left, Title(fmt.Sprintf("Runs (%d)", len(runs))), t.String())
}

// MetricRecords renders stored run-level metrics
func MetricRecords(rows []models.MetricRecord) string {
	b := metrics.Bundle{}
	for _, r := range rows {
		b[r.Name] = r.Value
	}
	return Metrics("Metrics", b)
}

func pick(b metrics.Bundle, columns []string) metrics.Bundle {
	if len(columns) == 0 {
		return b
	}
	out := metrics.Bundle{}
	for name, v := range b {
		for _, c := range columns {
			if strings.HasPrefix(name, c+"_") {
				out[name] = v
				break
			}
		}
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
