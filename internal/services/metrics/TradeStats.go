package metrics

import "math"

// TradeStats summarizes a trade ledger by realized P&L
type TradeStats struct {
	Count              int
	Wins               int
	Losses             int
	WinRate            float64
	GrossProfit        float64
	GrossLoss          float64
	ProfitFactor       float64
	AvgWin             float64
	AvgLoss            float64
	WinLossRatio       float64
	Expectancy         float64
	MaxConsecutiveWins int
	MaxConsecutiveLoss int
	AvgDuration        float64
}

// ComputeTradeStats aggregates per-trade P&L and durations.
// An empty ledger yields all zeros. Ratios are capped at RatioCap.
func ComputeTradeStats(pnls []float64, durations []int) TradeStats {
	stats := TradeStats{Count: len(pnls)}
	if len(pnls) == 0 {
		return stats
	}

	winStreak, lossStreak := 0, 0
	for _, pnl := range pnls {
		switch {
		case pnl > 0:
			stats.Wins++
			stats.GrossProfit += pnl
			winStreak++
			lossStreak = 0
		case pnl < 0:
			stats.Losses++
			stats.GrossLoss += -pnl
			lossStreak++
			winStreak = 0
		default:
			winStreak, lossStreak = 0, 0
		}
		if winStreak > stats.MaxConsecutiveWins {
			stats.MaxConsecutiveWins = winStreak
		}
		if lossStreak > stats.MaxConsecutiveLoss {
			stats.MaxConsecutiveLoss = lossStreak
		}
	}

	stats.WinRate = float64(stats.Wins) / float64(stats.Count)
	if stats.Wins > 0 {
		stats.AvgWin = stats.GrossProfit / float64(stats.Wins)
	}
	if stats.Losses > 0 {
		stats.AvgLoss = -stats.GrossLoss / float64(stats.Losses)
	}

	stats.ProfitFactor = cappedRatio(stats.GrossProfit, stats.GrossLoss)
	stats.WinLossRatio = cappedRatio(stats.AvgWin, math.Abs(stats.AvgLoss))
	stats.Expectancy = stats.WinRate*stats.AvgWin + (1-stats.WinRate)*stats.AvgLoss

	if len(durations) > 0 {
		var total int
		for _, d := range durations {
			total += d
		}
		stats.AvgDuration = float64(total) / float64(len(durations))
	}

	return stats
}

// cappedRatio returns num/den bounded by RatioCap; a zero denominator gives
// RatioCap when there is something on top and 0 otherwise.
func cappedRatio(num, den float64) float64 {
	if den <= 0 {
		if num > 0 {
			return RatioCap
		}
		return 0
	}
	return math.Min(num/den, RatioCap)
}
