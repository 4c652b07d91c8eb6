package backtest

import (
	"errors"
	"math"
	"time"

	"ForecastBacktester/internal/services/indicators"
	"ForecastBacktester/internal/services/metrics"
	"ForecastBacktester/internal/services/risk"
)

var errZeroEntryPrice = errors.New("entry price is zero")

// Simulator replays predictions over a price series one bar at a time.
// Run keeps all state local, so one Simulator may serve concurrent runs as
// long as each run gets its own risk.Manager.
type Simulator struct {
	config Config
}

func NewSimulator(config Config) *Simulator {
	if config.SignalScale <= 0 {
		config.SignalScale = DefaultSignalScale
	}
	if config.VolatilityLookback <= 0 {
		config.VolatilityLookback = DefaultVolatilityLookback
	}
	if config.BarsPerDay <= 0 {
		config.BarsPerDay = DefaultBarsPerDay
	}
	return &Simulator{config: config}
}

func (s *Simulator) Config() Config {
	return s.config
}

// Run simulates without per-bar annotations. A nil rm trades the full
// capital on every signal.
func (s *Simulator) Run(predictions []Prediction, bars []Bar, rm *risk.Manager) (*Result, error) {
	return s.RunWithAnnotations(predictions, bars, rm, Annotations{})
}

func (s *Simulator) RunWithAnnotations(predictions []Prediction, bars []Bar, rm *risk.Manager, ann Annotations) (*Result, error) {
	if err := s.validate(predictions, bars, ann); err != nil {
		return nil, err
	}

	run := &simulation{
		cfg:     s.config,
		rm:      rm,
		capital: s.config.InitialCapital,
		vol:     indicators.NewVolatilityTracker(s.config.VolatilityLookback),
		equity:  make([]EquityPoint, 0, len(bars)),
	}

	last := len(bars) - 1
	for i := range bars {
		if err := run.step(i, i == last, bars[i], predictions[i], ann); err != nil {
			return nil, err
		}
	}

	return run.result(), nil
}

// Signal maps a prediction to -1, 0 or +1
func (s *Simulator) Signal(p Prediction) int {
	return signalOf(p, s.config)
}

func signalOf(p Prediction, cfg Config) int {
	if p.Kind == KindClassification {
		return signOf(float64(p.Label))
	}
	v := math.Tanh(p.Value * cfg.SignalScale)
	if math.Abs(v) > cfg.SignalThreshold {
		return signOf(v)
	}
	return 0
}

func (s *Simulator) validate(predictions []Prediction, bars []Bar, ann Annotations) error {
	cfg := s.config
	if len(bars) == 0 {
		return invalidInput("bars", -1, "series is empty")
	}
	if len(predictions) != len(bars) {
		return invalidInput("predictions", -1, "length %d does not match %d bars", len(predictions), len(bars))
	}
	if !finite(cfg.InitialCapital) || cfg.InitialCapital <= 0 {
		return invalidInput("initial_capital", -1, "must be positive, got %v", cfg.InitialCapital)
	}
	for name, v := range map[string]float64{
		"spread":          cfg.Spread,
		"commission":      cfg.Commission,
		"stop_loss_pct":   cfg.StopLossPct,
		"take_profit_pct": cfg.TakeProfitPct,
	} {
		if !finite(v) || v < 0 {
			return invalidInput(name, -1, "must be a non-negative number, got %v", v)
		}
	}

	for i, b := range bars {
		if !finite(b.Open) || !finite(b.High) || !finite(b.Low) || !finite(b.Close) {
			return invalidInput("bars", i, "non-finite price")
		}
		if i > 0 && b.Index <= bars[i-1].Index {
			return invalidInput("bars", i, "index %d does not increase after %d", b.Index, bars[i-1].Index)
		}
	}
	for i, p := range predictions {
		if !finite(p.Value) {
			return invalidInput("predictions", i, "non-finite value")
		}
	}

	if ann.Confidence != nil {
		if len(ann.Confidence) != len(bars) {
			return invalidInput("confidence", -1, "length %d does not match %d bars", len(ann.Confidence), len(bars))
		}
		for i, c := range ann.Confidence {
			if !finite(c) {
				return invalidInput("confidence", i, "non-finite value")
			}
		}
	}
	if ann.Regime != nil && len(ann.Regime) != len(bars) {
		return invalidInput("regime", -1, "length %d does not match %d bars", len(ann.Regime), len(bars))
	}
	return nil
}

// simulation is the mutable state of a single run
type simulation struct {
	cfg      Config
	rm       *risk.Manager
	capital  float64
	position Position
	entryBar int // slice offset of the open position
	vol      *indicators.VolatilityTracker

	trades   []Trade
	equity   []EquityPoint
	denials  int
	warnings int
}

func (r *simulation) step(i int, last bool, bar Bar, pred Prediction, ann Annotations) error {
	day := r.dayKey(bar)
	vol := r.vol.Push(bar.Close)
	if r.rm != nil {
		r.rm.Observe(day, r.capital)
		if vol > 0 {
			r.rm.UpdateVolatility(vol)
		}
	}

	signal := signalOf(pred, r.cfg)

	var exit ExitReason
	if r.position.Side != Flat {
		pos := r.position
		if pos.EntryPrice == 0 {
			return &SimulationError{Bar: i, Err: errZeroEntryPrice}
		}
		pnlPct := float64(pos.Side) * (bar.Close - pos.EntryPrice) / pos.EntryPrice
		if !finite(pnlPct) {
			return &SimulationError{Bar: i, Err: errors.New("non-finite pnl")}
		}

		switch {
		case r.cfg.StopLossPct > 0 && pnlPct <= -r.cfg.StopLossPct:
			exit = ExitStopLoss
		case r.cfg.TakeProfitPct > 0 && pnlPct >= r.cfg.TakeProfitPct:
			exit = ExitTakeProfit
		case signal == -int(pos.Side):
			exit = ExitSignalFlip
		case last:
			exit = ExitEndOfData
		}

		if exit != "" {
			r.close(i, bar, pnlPct, exit, day)
		}
	}

	reentry := exit == "" || exit == ExitSignalFlip
	if r.position.Side == Flat && signal != 0 && !last && reentry && !r.exhausted() {
		r.open(i, bar, pred, Side(signal), ann, vol)
	}

	if r.cfg.ClipCapitalAtZero && r.capital < 0 {
		r.capital = 0
	}
	r.equity = append(r.equity, EquityPoint{Index: bar.Index, Capital: r.capital})
	return nil
}

func (r *simulation) open(i int, bar Bar, pred Prediction, side Side, ann Annotations, vol float64) {
	fraction := 1.0

	if r.rm != nil {
		req := risk.SizeRequest{
			Prediction: pred.Value,
			Price:      bar.Close,
			Capital:    r.capital,
		}
		if vol > 0 {
			req.Volatility = &vol
		}
		if ann.Confidence != nil {
			c := ann.Confidence[i]
			req.Confidence = &c
		}
		regime := risk.RegimeUnknown
		if ann.Regime != nil {
			regime = risk.Regime(ann.Regime[i])
		}

		sizing := r.rm.Size(req)
		decision := r.rm.CheckInRegime(r.capital, sizing.Amount, regime)
		if !decision.Allowed {
			r.denials++
			return
		}
		r.warnings += len(decision.Warnings)
		fraction = sizing.Fraction
	}

	r.position = Position{
		Side:         side,
		EntryPrice:   bar.Close * (1 + float64(side)*r.cfg.Spread),
		EntryIndex:   bar.Index,
		SizeFraction: fraction,
	}
	r.entryBar = i
}

func (r *simulation) close(i int, bar Bar, pnlPct float64, reason ExitReason, day int64) {
	pos := r.position
	pnl := pnlPct*pos.SizeFraction*r.capital - r.capital*r.cfg.Commission
	r.capital += pnl

	trade := Trade{
		Side:         pos.Side,
		EntryPrice:   pos.EntryPrice,
		ExitPrice:    bar.Close,
		EntryIndex:   pos.EntryIndex,
		ExitIndex:    bar.Index,
		PnL:          pnl,
		PnLPct:       pnlPct,
		SizeFraction: pos.SizeFraction,
		Duration:     i - r.entryBar,
		ExitReason:   reason,
	}
	r.trades = append(r.trades, trade)
	r.position = Position{}

	if r.rm != nil {
		r.rm.Update(risk.TradeResult{
			Direction: int(pos.Side),
			PnL:       pnl,
			Size:      pos.SizeFraction,
			Duration:  trade.Duration,
			Day:       day,
		})
	}
}

func (r *simulation) exhausted() bool {
	return r.cfg.ClipCapitalAtZero && r.capital <= 0
}

func (r *simulation) dayKey(bar Bar) int64 {
	if !bar.Time.IsZero() {
		return bar.Time.UTC().Truncate(24*time.Hour).Unix() / 86400
	}
	return int64(bar.Index / r.cfg.BarsPerDay)
}

func (r *simulation) result() *Result {
	pnls := make([]float64, len(r.trades))
	durations := make([]int, len(r.trades))
	for i, t := range r.trades {
		pnls[i] = t.PnL
		durations[i] = t.Duration
	}

	res := &Result{
		EquityCurve:  r.equity,
		Trades:       r.trades,
		Denials:      r.denials,
		Warnings:     r.warnings,
		FinalCapital: r.capital,
	}
	res.Metrics = metrics.Compute(res.Equity(), pnls, durations, r.cfg.metricOptions())
	return res
}

func signOf(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
