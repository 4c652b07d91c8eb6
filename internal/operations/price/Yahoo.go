package price

import (
	"context"
	"fmt"
	"time"

	"ForecastBacktester/internal/models"

	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
)

// YahooSource reads chart bars from Yahoo Finance
type YahooSource struct{}

func NewYahooSource() *YahooSource {
	return &YahooSource{}
}

func (s *YahooSource) Name() string {
	return models.PriceSourceYahoo
}

func yahooInterval(timeframe string) (datetime.Interval, error) {
	switch timeframe {
	case models.PriceTimeFrame1m:
		return datetime.OneMin, nil
	case models.PriceTimeFrame5m:
		return datetime.FiveMins, nil
	case models.PriceTimeFrame15m:
		return datetime.FifteenMins, nil
	case models.PriceTimeFrame1h:
		return datetime.OneHour, nil
	case models.PriceTimeFrame1d:
		return datetime.OneDay, nil
	}
	return "", fmt.Errorf("timeframe %q is not offered by yahoo", timeframe)
}

func (s *YahooSource) Fetch(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]models.Price, error) {
	interval, err := yahooInterval(timeframe)
	if err != nil {
		return nil, err
	}
	barLength, _ := models.TimeFrameDuration(timeframe)

	params := &chart.Params{
		Symbol:   symbol,
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
		Interval: interval,
	}
	iter := chart.Get(params)

	var prices []models.Price
	for iter.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		bar := iter.Bar()
		open := time.Unix(int64(bar.Timestamp), 0).UTC()

		prices = append(prices, models.Price{
			Symbol:    symbol,
			TimeFrame: timeframe,
			OpenTime:  open,
			CloseTime: open.Add(barLength),
			Open:      bar.Open.InexactFloat64(),
			High:      bar.High.InexactFloat64(),
			Low:       bar.Low.InexactFloat64(),
			Close:     bar.Close.InexactFloat64(),
			Volume:    float64(bar.Volume),
			Source:    models.PriceSourceYahoo,
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to get chart data for %s: %w", symbol, err)
	}

	return prices, nil
}
