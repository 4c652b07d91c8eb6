package price

import (
	"context"
	"fmt"
	"log"
	"time"

	"ForecastBacktester/internal/models"
	"ForecastBacktester/internal/repositories"
)

// PriceRecorder copies bars from a source into the price repository
type PriceRecorder struct {
	source    Source
	priceRepo *repositories.PriceRepository
	symbols   []string
}

func NewPriceRecorder(source Source, priceRepo *repositories.PriceRepository, symbols []string) *PriceRecorder {
	return &PriceRecorder{
		source:    source,
		priceRepo: priceRepo,
		symbols:   symbols,
	}
}

// Record fetches every configured symbol for the range and stores new bars
func (r *PriceRecorder) Record(ctx context.Context, timeframe string, start, end time.Time) (int64, error) {
	var total int64
	for _, symbol := range r.symbols {
		n, err := r.RecordSymbol(ctx, symbol, timeframe, start, end)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func (r *PriceRecorder) RecordSymbol(ctx context.Context, symbol, timeframe string, start, end time.Time) (int64, error) {
	log.Printf("Fetching %s %s from %s (%s to %s)", symbol, timeframe, r.source.Name(),
		start.Format("2006-01-02 15:04:05"),
		end.Format("2006-01-02 15:04:05"))

	prices, err := r.source.Fetch(ctx, symbol, timeframe, start, end)
	if err != nil {
		return 0, fmt.Errorf("fetch %s %s: %w", symbol, timeframe, err)
	}

	saved, err := r.priceRepo.SaveBatch(prices)
	if err != nil {
		return 0, fmt.Errorf("save %s %s: %w", symbol, timeframe, err)
	}

	log.Printf("Recorded %d new %s bars for %s (%d fetched)", saved, timeframe, symbol, len(prices))
	return saved, nil
}

// Load reads stored bars for a range in open-time order
func (r *PriceRecorder) Load(symbol, timeframe string, start, end time.Time) ([]models.Price, error) {
	return r.priceRepo.GetPricesByTimeFrame(symbol, timeframe, start, end)
}
