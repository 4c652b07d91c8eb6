package backtest

import (
	"fmt"
	"time"

	"ForecastBacktester/internal/models"
)

// BarsFromPrices converts stored prices into a dense series indexed from
// zero. Prices must be in strictly increasing open-time order. With
// maxGap > 0, consecutive bars further apart than maxGap are rejected;
// gaps are resolved before simulating, never inside the simulator.
func BarsFromPrices(prices []models.Price, maxGap time.Duration) ([]Bar, error) {
	bars := make([]Bar, len(prices))
	for i, p := range prices {
		if i > 0 {
			prev := prices[i-1].OpenTime
			if !p.OpenTime.After(prev) {
				return nil, invalidInput("prices", i, "open time %s is not after %s",
					p.OpenTime.Format(time.RFC3339), prev.Format(time.RFC3339))
			}
			if maxGap > 0 && p.OpenTime.Sub(prev) > maxGap {
				return nil, invalidInput("prices", i, "gap of %s before %s",
					p.OpenTime.Sub(prev), p.OpenTime.Format(time.RFC3339))
			}
		}
		bars[i] = Bar{
			Index: i,
			Time:  p.OpenTime,
			Open:  p.Open,
			High:  p.High,
			Low:   p.Low,
			Close: p.Close,
		}
	}
	return bars, nil
}

func fmtRange(bars []Bar) string {
	if len(bars) == 0 {
		return "empty"
	}
	first, last := bars[0], bars[len(bars)-1]
	if first.Time.IsZero() {
		return fmt.Sprintf("bars %d..%d", first.Index, last.Index)
	}
	return fmt.Sprintf("%s to %s", first.Time.Format("2006-01-02 15:04:05"), last.Time.Format("2006-01-02 15:04:05"))
}
