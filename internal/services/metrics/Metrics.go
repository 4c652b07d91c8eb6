// Package metrics holds pure return, risk and trade statistics.
//
// Every function guards degenerate input: an empty ledger reports a zero win
// rate and profit factor, zero-variance returns report zero Sharpe/Sortino.
// An empty-trade backtest is a normal outcome, not an error.
package metrics

// Compute builds the full bundle for one run
func Compute(equity []float64, pnls []float64, durations []int, opts Options) Bundle {
	returns := Returns(equity)
	dd := Drawdowns(equity)
	cagr := CAGR(equity, opts)
	total := TotalReturnOf(equity)
	trades := ComputeTradeStats(pnls, durations)

	b := Bundle{
		TotalReturn:      total,
		CAGRName:         cagr,
		SharpeRatio:      Sharpe(returns, opts),
		SortinoRatio:     Sortino(returns, opts),
		CalmarRatio:      Calmar(cagr, dd.Max),
		MaxDrawdown:      dd.Max,
		UlcerIndexName:   UlcerIndex(dd.Drawdowns),
		AnnualVolatility: AnnualizedVolatility(returns, opts),
		SharpeStability:  RollingSharpeStability(returns, opts),
		TailRatio:        TailRatioOf(returns),
		VaR95:            VaR(returns, 0.95),
		VaR99:            VaR(returns, 0.99),
		CVaR95:           CVaR(returns, 0.95),

		NumTrades:          float64(trades.Count),
		WinRate:            trades.WinRate,
		ProfitFactor:       trades.ProfitFactor,
		AvgWin:             trades.AvgWin,
		AvgLoss:            trades.AvgLoss,
		WinLossRatio:       trades.WinLossRatio,
		Expectancy:         trades.Expectancy,
		MaxConsecutiveWins: float64(trades.MaxConsecutiveWins),
		MaxConsecutiveLoss: float64(trades.MaxConsecutiveLoss),
		AvgTradeDuration:   trades.AvgDuration,
	}

	if dd.Max > 0 {
		b[RecoveryFactor] = total / dd.Max
	} else {
		b[RecoveryFactor] = 0
	}
	if len(equity) > 0 {
		b[FinalCapital] = equity[len(equity)-1]
	}
	return b
}
