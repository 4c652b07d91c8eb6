package binance

import (
	"context"
	"fmt"
	"log"
	"math"
	"net/http"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"golang.org/x/time/rate"
)

// MaxKlinesPerRequest is the page size of the klines endpoint
const MaxKlinesPerRequest = 500

type BinanceClient struct {
	client      *futures.Client
	rateLimiter *rate.Limiter
	maxRetries  int
	backoff     time.Duration
}

func NewBinanceClient(apiKey, secretKey string) *BinanceClient {
	// Create custom HTTP client with timeouts
	httpClient := &http.Client{
		Timeout: time.Second * 10,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	// Klines are public; the keys only raise the weight limits
	futuresClient := futures.NewClient(apiKey, secretKey)
	futuresClient.HTTPClient = httpClient

	// 10 requests per second with burst of 20
	limiter := rate.NewLimiter(rate.Limit(10), 20)

	return &BinanceClient{
		client:      futuresClient,
		rateLimiter: limiter,
		maxRetries:  3,
		backoff:     100 * time.Millisecond,
	}
}

// GetKlines fetches one page of klines, retrying with exponential backoff
func (c *BinanceClient) GetKlines(ctx context.Context, symbol, interval string, startTime, endTime int64) ([]*futures.Kline, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, err
		}

		klines, err := c.client.NewKlinesService().
			Symbol(symbol).
			Interval(interval).
			StartTime(startTime).
			EndTime(endTime).
			Limit(MaxKlinesPerRequest).
			Do(ctx)
		if err == nil {
			return klines, nil
		}
		lastErr = err

		if attempt == c.maxRetries {
			break
		}

		waitTime := time.Duration(math.Pow(2, float64(attempt))) * c.backoff
		log.Printf("Klines request for %s %s failed (attempt %d): %v, retrying in %s",
			symbol, interval, attempt+1, err, waitTime)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(waitTime):
		}
	}

	return nil, fmt.Errorf("get klines %s %s: %w", symbol, interval, lastErr)
}

// GetKlinesRange pages through [start, end) in chunks of MaxKlinesPerRequest bars
func (c *BinanceClient) GetKlinesRange(ctx context.Context, symbol, interval string, barLength time.Duration, start, end time.Time) ([]*futures.Kline, error) {
	if barLength <= 0 {
		return nil, fmt.Errorf("invalid bar length %s", barLength)
	}
	if !start.Before(end) {
		return nil, fmt.Errorf("start %s is not before end %s", start, end)
	}

	chunk := barLength * MaxKlinesPerRequest
	var all []*futures.Kline

	for current := start; current.Before(end); {
		chunkEnd := current.Add(chunk)
		if chunkEnd.After(end) {
			chunkEnd = end
		}

		klines, err := c.GetKlines(ctx, symbol, interval, current.UnixMilli(), chunkEnd.UnixMilli()-1)
		if err != nil {
			return nil, err
		}
		all = append(all, klines...)

		log.Printf("Fetched %d %s candles for %s from %s to %s",
			len(klines),
			interval,
			symbol,
			current.Format("2006-01-02 15:04:05"),
			chunkEnd.Format("2006-01-02 15:04:05"))

		current = chunkEnd
	}

	return all, nil
}
