package risk

import (
	"math"
	"testing"
)

func ptr(v float64) *float64 { return &v }

func TestCheckRejectsOversizedTrade(t *testing.T) {
	m := NewManager(NewConfig())

	if d := m.Check(10000, 200); !d.Allowed {
		t.Fatalf("expected 2%% of capital to be allowed, got %q", d.Reason)
	}
	if d := m.Check(10000, 201); d.Allowed {
		t.Fatal("expected a trade above max position size to be denied")
	}
}

func TestSizeNeverExceedsLimit(t *testing.T) {
	m := NewManager(NewConfig())
	for i := 0; i < 30; i++ {
		m.Update(TradeResult{Direction: 1, PnL: 100, Day: int64(i)})
	}

	capital := 10000.0
	for _, pred := range []float64{-50, -1, -0.1, 0, 0.3, 1, 50} {
		s := m.Size(SizeRequest{Prediction: pred, Price: 1.1, Capital: capital})
		if s.Fraction > m.cfg.MaxPositionSize || s.Fraction < m.cfg.MinPositionSize {
			t.Fatalf("fraction %v outside [%v, %v]", s.Fraction, m.cfg.MinPositionSize, m.cfg.MaxPositionSize)
		}
		if d := m.Check(capital, s.Amount); !d.Allowed {
			t.Fatalf("sized amount should pass the size check: %s", d.Reason)
		}
	}
}

func TestKellyFromHistory(t *testing.T) {
	cfg := NewConfig()
	cfg.MaxPositionSize = 1
	m := NewManager(cfg)

	if k := m.kellyFraction(); k != 0.5 {
		t.Fatalf("expected fallback of half the ceiling, got %v", k)
	}

	// p = 0.6, b = 2 -> kelly = 0.6 - 0.4/2 = 0.4, capped to 0.25, halved
	for i := 0; i < 6; i++ {
		m.Update(TradeResult{Direction: 1, PnL: 20})
	}
	for i := 0; i < 4; i++ {
		m.Update(TradeResult{Direction: -1, PnL: -10})
	}
	if k := m.kellyFraction(); math.Abs(k-0.125) > 1e-12 {
		t.Fatalf("expected 0.125, got %v", k)
	}

	s := m.Size(SizeRequest{Prediction: 1, Capital: 10000, Confidence: ptr(0.5)})
	if math.Abs(s.Fraction-0.0625) > 1e-12 {
		t.Fatalf("expected 0.0625 after confidence adjustment, got %v", s.Fraction)
	}
}

func TestKellyNegativeEdgeUsesMinimum(t *testing.T) {
	m := NewManager(NewConfig())
	for i := 0; i < 12; i++ {
		m.Update(TradeResult{Direction: 1, PnL: -5})
	}
	s := m.Size(SizeRequest{Prediction: 1, Capital: 1000})
	if s.Kelly != 0 {
		t.Fatalf("expected zero kelly with no wins, got %v", s.Kelly)
	}
	if s.Fraction != m.cfg.MinPositionSize {
		t.Fatalf("expected minimum size, got %v", s.Fraction)
	}
}

func TestDrawdownDeniesUntilRecovery(t *testing.T) {
	m := NewManager(NewConfig())

	m.Observe(0, 10000)
	if d := m.Check(10000, 100); !d.Allowed {
		t.Fatalf("unexpected denial: %s", d.Reason)
	}

	m.Observe(1, 7900)
	for _, capital := range []float64{7900, 7950, 8000} {
		if d := m.Check(capital, 10); d.Allowed {
			t.Fatalf("expected denial at capital %.0f while drawdown >= 20%%", capital)
		}
	}

	if d := m.Check(8100, 10); !d.Allowed {
		t.Fatalf("expected trading to resume after recovery, got %q", d.Reason)
	}
	if m.State().EquityPeak != 10000 {
		t.Fatalf("equity peak should stay at 10000, got %v", m.State().EquityPeak)
	}
}

func TestDailyLossResetsOnNewDay(t *testing.T) {
	m := NewManager(NewConfig())
	m.Observe(0, 10000)
	m.Update(TradeResult{Direction: 1, PnL: -600, Day: 0})

	if d := m.Check(9400, 10); d.Allowed {
		t.Fatal("expected daily loss limit to deny")
	}

	m.Observe(1, 9400)
	if d := m.Check(9400, 10); !d.Allowed {
		t.Fatalf("expected a new day to reset the daily loss, got %q", d.Reason)
	}
}

func TestSoftLimitsWarnWithoutDenying(t *testing.T) {
	m := NewManager(NewConfig())
	m.Observe(3, 10000)
	for i := 0; i < 10; i++ {
		m.Update(TradeResult{Direction: 1, PnL: 1, Day: 3})
	}

	d := m.Check(10000, 10)
	if !d.Allowed {
		t.Fatalf("soft limits must not deny: %s", d.Reason)
	}
	if len(d.Warnings) != 3 {
		t.Fatalf("expected concentration, daily count and correlation warnings, got %v", d.Warnings)
	}
}

func TestRegimeTightensCeiling(t *testing.T) {
	m := NewManager(NewConfig())
	if d := m.CheckInRegime(10000, 150, RegimeHighVolatility); d.Allowed {
		t.Fatal("expected high-volatility regime to lower the ceiling")
	}
	if d := m.CheckInRegime(10000, 201, RegimeTrending); d.Allowed {
		t.Fatal("a regime must never loosen the hard limit")
	}
}

func TestHistoryBounded(t *testing.T) {
	m := NewManager(NewConfig())
	for i := 0; i < 250; i++ {
		m.Update(TradeResult{Direction: 1, PnL: 1})
	}
	if n := len(m.State().TradeHistory); n != HistoryLimit {
		t.Fatalf("expected history bounded to %d, got %d", HistoryLimit, n)
	}

	for i := 0; i < 100; i++ {
		m.UpdateVolatility(0.01)
	}
	if n := len(m.State().VolatilityHistory); n > 2*DefaultVolatilityLookback {
		t.Fatalf("volatility history grew to %d", n)
	}
}

func TestVolatilityAdjustment(t *testing.T) {
	m := NewManager(NewConfig())
	for i := 0; i < 10; i++ {
		m.UpdateVolatility(0.01)
	}
	s := m.Size(SizeRequest{Prediction: 1, Capital: 1000, Volatility: ptr(0.02)})
	if math.Abs(s.VolAdj-0.5) > 1e-12 {
		t.Fatalf("expected vol adjustment 0.5, got %v", s.VolAdj)
	}
	s = m.Size(SizeRequest{Prediction: 1, Capital: 1000, Volatility: ptr(0.005)})
	if s.VolAdj != 1 {
		t.Fatalf("calm markets must not scale size up, got %v", s.VolAdj)
	}
}

func TestResumeFromStateKeepsDecisions(t *testing.T) {
	cfg := NewConfig()
	m := NewManager(cfg)
	m.Observe(1, 10000)
	for i := 0; i < 12; i++ {
		pnl := 40.0
		if i%3 == 0 {
			pnl = -25
		}
		m.Update(TradeResult{Direction: 1, PnL: pnl, Day: 1})
	}
	for i := 0; i < 8; i++ {
		m.UpdateVolatility(0.01 + float64(i)*0.002)
	}
	m.Observe(2, 9400)

	resumed := NewManagerFromState(cfg, m.State())

	vol := 0.03
	for _, req := range []SizeRequest{
		{Prediction: 0.4, Capital: 9400},
		{Prediction: -2, Capital: 9000, Volatility: &vol},
		{Prediction: 1, Capital: 9400, Confidence: ptr(0.7)},
	} {
		if a, b := m.Size(req), resumed.Size(req); a != b {
			t.Fatalf("sizing differs after resume: %+v vs %+v", a, b)
		}
	}
	for _, amount := range []float64{50, 180, 500} {
		a, b := m.Check(9400, amount), resumed.Check(9400, amount)
		if a.Allowed != b.Allowed || a.Reason != b.Reason {
			t.Fatalf("check of %v differs after resume: %+v vs %+v", amount, a, b)
		}
	}

	// the resumed manager owns its history
	m.Update(TradeResult{Direction: -1, PnL: -500, Day: 2})
	m.UpdateVolatility(0.5)
	st := resumed.State()
	if len(st.TradeHistory) != 12 || len(st.VolatilityHistory) != 8 {
		t.Fatalf("resumed state changed with the original: %d trades, %d vols",
			len(st.TradeHistory), len(st.VolatilityHistory))
	}
}
