package validation

import (
	"ForecastBacktester/internal/models"
	"ForecastBacktester/internal/operations/backtest"
)

// Records converts a report into rows for storage. Run-level rows carry
// the aggregate; per-window rows carry each successful window's bundle.
func (r *Report) Records() ([]models.WindowRecord, []models.MetricRecord) {
	windows := make([]models.WindowRecord, len(r.Windows))
	metricRows := backtest.MetricRecords(r.Aggregate, nil)

	for i, wr := range r.Windows {
		w := wr.Window
		rec := models.WindowRecord{
			WindowID:   w.ID,
			TrainStart: w.TrainStart,
			TrainEnd:   w.TrainEnd,
			TestStart:  w.TestStart,
			TestEnd:    w.TestEnd,
			Trades:     wr.Trades,
			Status:     models.WindowStatusSucceeded,
		}
		if wr.Failed() {
			rec.Status = models.WindowStatusFailed
			rec.Error = wr.ErrorMsg
		} else {
			id := w.ID
			metricRows = append(metricRows, backtest.MetricRecords(wr.Metrics, &id)...)
		}
		windows[i] = rec
	}
	return windows, metricRows
}

// Records stores the best combination's summary at run level and every
// combination's mean under its parameter string.
func (s *SearchReport) Records() []models.MetricRecord {
	rows := []models.MetricRecord{
		{Name: "best_" + s.Metric + "_mean", Value: s.Best.Mean},
		{Name: "best_" + s.Metric + "_std", Value: s.Best.Std},
		{Name: "best_combined_score", Value: s.Best.Combined},
	}
	for _, res := range s.Results {
		if len(res.Scores) == 0 {
			continue
		}
		rows = append(rows, models.MetricRecord{
			Name:  res.Params.String() + ":" + s.Metric + "_mean",
			Value: res.Mean,
		})
	}
	return rows
}
