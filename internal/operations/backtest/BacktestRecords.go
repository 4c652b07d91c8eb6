package backtest

import (
	"ForecastBacktester/internal/models"
	"ForecastBacktester/internal/services/metrics"

	"github.com/shopspring/decimal"
)

func money(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(8)
}

// TradeRecords converts a ledger for storage. windowID is nil for
// full-series runs.
func TradeRecords(trades []Trade, windowID *int) []models.TradeRecord {
	out := make([]models.TradeRecord, len(trades))
	for i, t := range trades {
		out[i] = models.TradeRecord{
			WindowID:     windowID,
			Side:         t.Side.String(),
			EntryIndex:   t.EntryIndex,
			ExitIndex:    t.ExitIndex,
			EntryPrice:   money(t.EntryPrice),
			ExitPrice:    money(t.ExitPrice),
			PnL:          money(t.PnL),
			PnLPct:       t.PnLPct,
			SizeFraction: t.SizeFraction,
			Duration:     t.Duration,
			ExitReason:   string(t.ExitReason),
		}
	}
	return out
}

func EquityRecords(curve []EquityPoint) []models.EquityRecord {
	out := make([]models.EquityRecord, len(curve))
	for i, p := range curve {
		out[i] = models.EquityRecord{
			Index:   p.Index,
			Capital: money(p.Capital),
		}
	}
	return out
}

// MetricRecords stores a bundle in name order
func MetricRecords(bundle metrics.Bundle, windowID *int) []models.MetricRecord {
	names := bundle.Names()
	out := make([]models.MetricRecord, len(names))
	for i, name := range names {
		out[i] = models.MetricRecord{
			WindowID: windowID,
			Name:     name,
			Value:    bundle[name],
		}
	}
	return out
}
