// Package risk sizes positions with a modified Kelly criterion and enforces
// drawdown, position and daily-loss limits.
package risk

import (
	"fmt"
	"math"
)

// Manager decides whether a trade is allowed and how large it may be.
// A Manager is not safe for concurrent use; each simulation owns one.
type Manager struct {
	cfg   Config
	state State
}

func NewManager(cfg Config) *Manager {
	return &Manager{cfg: cfg}
}

// NewManagerFromState resumes a manager from a previously captured state
func NewManagerFromState(cfg Config, st State) *Manager {
	m := &Manager{cfg: cfg, state: st}
	m.state.TradeHistory = append([]TradeResult(nil), st.TradeHistory...)
	m.state.VolatilityHistory = append([]float64(nil), st.VolatilityHistory...)
	return m
}

// State returns a copy of the current state
func (m *Manager) State() State {
	st := m.state
	st.TradeHistory = append([]TradeResult(nil), m.state.TradeHistory...)
	st.VolatilityHistory = append([]float64(nil), m.state.VolatilityHistory...)
	return st
}

func (m *Manager) Config() Config {
	return m.cfg
}

// Observe records the equity at the start of a bar and rolls the daily P&L
// when the day changes.
func (m *Manager) Observe(day int64, capital float64) {
	m.rollDay(day)
	m.observeEquity(capital)
}

// Check applies the hard limits to a proposed trade amount
func (m *Manager) Check(capital, proposed float64) Decision {
	return m.CheckInRegime(capital, proposed, RegimeUnknown)
}

// CheckInRegime is Check with the position ceiling scaled by the regime
func (m *Manager) CheckInRegime(capital, proposed float64, regime Regime) Decision {
	m.observeEquity(capital)

	if capital <= 0 {
		return deny(fmt.Sprintf("capital exhausted: %.2f", capital))
	}

	if m.cfg.MaxDrawdown > 0 && m.state.CurrentDrawdown >= m.cfg.MaxDrawdown {
		return deny(fmt.Sprintf("max drawdown exceeded: %.2f%% >= %.2f%%",
			m.state.CurrentDrawdown*100, m.cfg.MaxDrawdown*100))
	}

	limit := m.cfg.MaxPositionSize * regime.Multiplier()
	if fraction := proposed / capital; fraction > limit+sizeTolerance {
		return deny(fmt.Sprintf("position size exceeded: %.2f%% > %.2f%%", fraction*100, limit*100))
	}

	if m.cfg.MaxDailyLoss > 0 && math.Abs(m.state.DailyPnL) >= m.cfg.MaxDailyLoss*capital {
		return deny(fmt.Sprintf("daily loss limit exceeded: %.2f", math.Abs(m.state.DailyPnL)))
	}

	return Decision{Allowed: true, Reason: "limits ok", Warnings: m.softWarnings()}
}

// Size computes the position fraction for a prediction
func (m *Manager) Size(req SizeRequest) Sizing {
	kelly := m.kellyFraction()

	volAdj := 1.0
	if req.Volatility != nil && *req.Volatility > 0 && len(m.state.VolatilityHistory) > minVolatilitySample {
		avg := mean(tail(m.state.VolatilityHistory, m.lookback()))
		volAdj = math.Min(1, avg / *req.Volatility)
	}

	var confAdj float64
	if req.Confidence != nil {
		confAdj = clamp(*req.Confidence, 0, 1)
	} else {
		confAdj = math.Min(1, math.Abs(req.Prediction))
	}

	ddAdj := 1.0
	if m.state.EquityPeak > 0 && m.cfg.MaxDrawdown > 0 {
		dd := math.Max(0, (m.state.EquityPeak-req.Capital)/m.state.EquityPeak)
		ddAdj = math.Max(0.1, 1-dd/m.cfg.MaxDrawdown)
	}

	fraction := clamp(kelly*volAdj*confAdj*ddAdj, m.cfg.MinPositionSize, m.cfg.MaxPositionSize)

	return Sizing{
		Fraction:    fraction,
		Kelly:       kelly,
		VolAdj:      volAdj,
		ConfAdj:     confAdj,
		DrawdownAdj: ddAdj,
		Amount:      fraction * req.Capital,
	}
}

// Update records a closed trade
func (m *Manager) Update(tr TradeResult) {
	m.rollDay(tr.Day)

	m.state.TradeHistory = append(m.state.TradeHistory, tr)
	if len(m.state.TradeHistory) > HistoryLimit {
		m.state.TradeHistory = append([]TradeResult(nil), m.state.TradeHistory[len(m.state.TradeHistory)-HistoryLimit:]...)
	}

	switch {
	case tr.PnL > 0:
		m.state.WinCount++
		m.state.TotalWins += tr.PnL
	case tr.PnL < 0:
		m.state.LossCount++
		m.state.TotalLosses += tr.PnL
	}

	m.state.DailyPnL += tr.PnL
}

// UpdateVolatility appends a volatility observation
func (m *Manager) UpdateVolatility(v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return
	}
	lookback := m.lookback()
	m.state.VolatilityHistory = append(m.state.VolatilityHistory, v)
	if len(m.state.VolatilityHistory) > lookback*2 {
		m.state.VolatilityHistory = append([]float64(nil), tail(m.state.VolatilityHistory, lookback)...)
	}
}

func (m *Manager) Summary() Summary {
	s := Summary{
		MaxDrawdownLimit:  m.cfg.MaxDrawdown,
		CurrentDrawdown:   m.state.CurrentDrawdown,
		DailyPnL:          m.state.DailyPnL,
		MaxDailyLossLimit: m.cfg.MaxDailyLoss,
		TotalTrades:       len(m.state.TradeHistory),
		Wins:              m.state.WinCount,
		Losses:            m.state.LossCount,
		AvgVolatility:     mean(m.state.VolatilityHistory),
	}
	if n := m.state.WinCount + m.state.LossCount; n > 0 {
		s.RecentWinRate = float64(m.state.WinCount) / float64(n)
	}
	return s
}

func (m *Manager) observeEquity(capital float64) {
	if capital > m.state.EquityPeak {
		m.state.EquityPeak = capital
	}
	if m.state.EquityPeak > 0 {
		m.state.CurrentDrawdown = (m.state.EquityPeak - capital) / m.state.EquityPeak
	}
}

func (m *Manager) rollDay(day int64) {
	if !m.state.HasDay || m.state.CurrentDay != day {
		m.state.CurrentDay = day
		m.state.HasDay = true
		m.state.DailyPnL = 0
	}
}

// kellyFraction is the safety-scaled Kelly fraction over the trailing
// history, or half the position ceiling while the history is short.
func (m *Manager) kellyFraction() float64 {
	var wins, losses int
	var winSum, lossSum float64
	for _, t := range m.state.TradeHistory {
		switch {
		case t.PnL > 0:
			wins++
			winSum += t.PnL
		case t.PnL < 0:
			losses++
			lossSum += -t.PnL
		}
	}

	n := wins + losses
	if n < m.cfg.MinTradesForKelly || n == 0 {
		return m.cfg.MaxPositionSize * 0.5
	}

	p := float64(wins) / float64(n)
	var kelly float64
	switch {
	case wins == 0:
		kelly = 0
	case losses == 0:
		kelly = p
	default:
		b := (winSum / float64(wins)) / (lossSum / float64(losses))
		kelly = p - (1-p)/b
	}

	return clamp(kelly, 0, m.cfg.KellyCap) * m.cfg.KellySafety
}

func (m *Manager) softWarnings() []string {
	var warnings []string
	history := m.state.TradeHistory
	recent := tail(history, concentrationWindow)

	if len(recent) > 0 {
		longs := 0
		for _, t := range recent {
			if t.Direction > 0 {
				longs++
			}
		}
		concentration := float64(longs) / float64(len(recent))
		if concentration > 0.8 || concentration < 0.2 {
			warnings = append(warnings, fmt.Sprintf("trade direction concentration: %.0f%% long", concentration*100))
		}
	}

	if m.cfg.MaxTradesPerDay > 0 && m.state.HasDay {
		today := 0
		for _, t := range history {
			if t.Day == m.state.CurrentDay {
				today++
			}
		}
		if today >= m.cfg.MaxTradesPerDay {
			warnings = append(warnings, fmt.Sprintf("daily trade count reached: %d/%d", today, m.cfg.MaxTradesPerDay))
		}
	}

	if corr := directionCorrelation(recent); corr >= correlationWarning {
		warnings = append(warnings, fmt.Sprintf("high correlation with recent trades: %.2f", corr))
	}

	return warnings
}

func (m *Manager) lookback() int {
	if m.cfg.VolatilityLookback <= 0 {
		return DefaultVolatilityLookback
	}
	return m.cfg.VolatilityLookback
}

// directionCorrelation scores how one-sided the last five trades are
func directionCorrelation(recent []TradeResult) float64 {
	if len(recent) < 3 {
		return 0
	}
	last := tail(recent, correlationWindow)
	latest := last[len(last)-1].Direction

	same := 0
	for _, t := range last {
		if t.Direction == latest {
			same++
		}
	}

	switch {
	case same == len(last):
		return 1.0
	case same >= 3:
		return 0.8
	}
	return 0.2
}

func deny(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}

func tail[T any](values []T, n int) []T {
	if n <= 0 || len(values) <= n {
		return values
	}
	return values[len(values)-n:]
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
