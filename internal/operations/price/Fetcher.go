package price

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"ForecastBacktester/internal/models"
	"ForecastBacktester/internal/operations/binance"

	"github.com/adshao/go-binance/v2/futures"
)

// Source fetches historical bars for one symbol and timeframe
type Source interface {
	Name() string
	Fetch(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]models.Price, error)
}

// BinanceSource reads futures klines through the rate-limited client
type BinanceSource struct {
	client *binance.BinanceClient
}

func NewBinanceSource(client *binance.BinanceClient) *BinanceSource {
	return &BinanceSource{client: client}
}

func (s *BinanceSource) Name() string {
	return models.PriceSourceBinance
}

func (s *BinanceSource) Fetch(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]models.Price, error) {
	barLength, ok := models.TimeFrameDuration(timeframe)
	if !ok {
		return nil, fmt.Errorf("unsupported timeframe %q", timeframe)
	}

	klines, err := s.client.GetKlinesRange(ctx, symbol, timeframe, barLength, start, end)
	if err != nil {
		return nil, err
	}

	prices := make([]models.Price, 0, len(klines))
	for _, k := range klines {
		p, err := klineToPrice(symbol, timeframe, k)
		if err != nil {
			return nil, err
		}
		prices = append(prices, p)
	}
	return prices, nil
}

func klineToPrice(symbol, timeframe string, k *futures.Kline) (models.Price, error) {
	var fields [5]float64
	for i, s := range []string{k.Open, k.High, k.Low, k.Close, k.Volume} {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			log.Printf("Error parsing float: %v", err)
			return models.Price{}, fmt.Errorf("kline %s %d: %w", symbol, k.OpenTime, err)
		}
		fields[i] = f
	}

	return models.Price{
		Symbol:     symbol,
		TimeFrame:  timeframe,
		OpenTime:   time.UnixMilli(k.OpenTime).UTC(),
		CloseTime:  time.UnixMilli(k.CloseTime).UTC(),
		Open:       fields[0],
		High:       fields[1],
		Low:        fields[2],
		Close:      fields[3],
		Volume:     fields[4],
		TradeCount: k.TradeNum,
		Source:     models.PriceSourceBinance,
	}, nil
}
