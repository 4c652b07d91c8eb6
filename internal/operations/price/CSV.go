package price

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"ForecastBacktester/internal/models"
)

var csvTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// LoadCSV reads bars with a header naming at least time, open, high, low
// and close. Volume is optional. Times may be unix seconds or one of the
// common date layouts.
func LoadCSV(r io.Reader, symbol, timeframe string) ([]models.Price, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := map[string]int{}
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"open", "high", "low", "close"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("missing %q column", required)
		}
	}
	timeCol, ok := cols["time"]
	if !ok {
		if timeCol, ok = cols["date"]; !ok {
			return nil, errors.New(`missing "time" or "date" column`)
		}
	}
	barLength, _ := models.TimeFrameDuration(timeframe)

	var prices []models.Price
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		openTime, err := parseCSVTime(record[timeCol])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		p := models.Price{
			Symbol:    symbol,
			TimeFrame: timeframe,
			OpenTime:  openTime,
			CloseTime: openTime.Add(barLength),
			Source:    models.PriceSourceCSV,
		}
		for name, dst := range map[string]*float64{
			"open":   &p.Open,
			"high":   &p.High,
			"low":    &p.Low,
			"close":  &p.Close,
			"volume": &p.Volume,
		} {
			idx, ok := cols[name]
			if !ok {
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(record[idx]), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d column %s: %w", line, name, err)
			}
			*dst = v
		}
		prices = append(prices, p)
	}

	return prices, nil
}

func parseCSVTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	for _, layout := range csvTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}
