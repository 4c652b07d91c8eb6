// Package strategy holds rule-based predictors that need no fitting
package strategy

import (
	"context"
	"fmt"
	"math"

	"ForecastBacktester/internal/operations/backtest"
	"ForecastBacktester/internal/services/indicators"
	"ForecastBacktester/internal/services/risk"
)

// TrendStrategy goes long above a rising EMA and short below a falling one,
// unless RSI is stretched. It emits classification predictions plus a
// confidence and regime per bar for the risk manager.
type TrendStrategy struct {
	config Config
	ema    *indicators.EMAService
	rsi    *indicators.RSIService
}

func NewTrendStrategy(config Config) *TrendStrategy {
	return &TrendStrategy{
		config: config,
		ema:    indicators.NewEMAService(),
		rsi:    indicators.NewRSIService(),
	}
}

func (s *TrendStrategy) warmup() int {
	w := s.config.EMAPeriod + 1
	if r := s.config.RSIPeriod + 1; r > w {
		w = r
	}
	if s.config.VolWindow > w {
		w = s.config.VolWindow
	}
	return w
}

// Analyze reads every bar from the warmup on. Each setup depends only on
// bars up to its own.
func (s *TrendStrategy) Analyze(bars []backtest.Bar) ([]Setup, error) {
	cfg := s.config
	if cfg.EMAPeriod <= 0 || cfg.RSIPeriod <= 0 || cfg.VolWindow < 2 {
		return nil, fmt.Errorf("invalid strategy config %+v", cfg)
	}
	warmup := s.warmup()
	if len(bars) <= warmup {
		return nil, fmt.Errorf("need more than %d bars, got %d", warmup, len(bars))
	}

	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	ema := s.ema.Calculate(closes, cfg.EMAPeriod)
	rsi := s.rsi.Calculate(closes, cfg.RSIPeriod)
	vol := indicators.RollingVolatility(closes, cfg.VolWindow)

	setups := make([]Setup, 0, len(bars)-warmup)
	var volSum float64
	for i := 0; i < warmup; i++ {
		volSum += vol[i]
	}

	for i := warmup; i < len(bars); i++ {
		volSum += vol[i]
		avgVol := volSum / float64(i+1)
		setups = append(setups, s.analyzeBar(closes[i], ema[i], ema[i-1], rsi[i], vol[i], avgVol))
	}
	return setups, nil
}

func (s *TrendStrategy) analyzeBar(price, ema, prevEMA, rsi, vol, avgVol float64) Setup {
	setup := Setup{Regime: int(risk.RegimeNormal)}

	ratio := 0.0
	if ema != 0 {
		ratio = price/ema - 1
	}
	switch {
	case avgVol > 0 && vol > highVolMultiplier*avgVol:
		setup.Regime = int(risk.RegimeHighVolatility)
	case math.Abs(ratio) > trendingRatio:
		setup.Regime = int(risk.RegimeTrending)
	}

	slope := ema - prevEMA
	switch {
	case rsi <= rsiLow || rsi >= rsiHigh:
		setup.Reason = "rsi stretched"
		return setup
	case ratio > 0 && slope > 0:
		setup.Direction = 1
	case ratio < 0 && slope < 0:
		setup.Direction = -1
	default:
		setup.Reason = "no trend"
		return setup
	}

	// Base confidence with small boosts for good conditions
	confidence := 0.3
	if rsi > 40 && rsi < 60 {
		confidence += 0.1
	}
	if avgVol > 0 && vol < avgVol {
		confidence += 0.1
	}
	confidence += 0.3 * math.Min(math.Abs(ratio)/trendingRatio, 1)
	setup.Confidence = math.Min(confidence, 1.0)

	if setup.Confidence < s.config.MinConfidence {
		setup.Direction = 0
		setup.Reason = "low confidence"
	}
	return setup
}

func (s *TrendStrategy) Predict(ctx context.Context, bars []backtest.Bar) ([]backtest.Bar, []backtest.Prediction, error) {
	tested, preds, _, err := s.PredictAnnotated(ctx, bars)
	return tested, preds, err
}

// PredictAnnotated also returns the per-bar confidence and regime
func (s *TrendStrategy) PredictAnnotated(ctx context.Context, bars []backtest.Bar) ([]backtest.Bar, []backtest.Prediction, backtest.Annotations, error) {
	setups, err := s.Analyze(bars)
	if err != nil {
		return nil, nil, backtest.Annotations{}, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, backtest.Annotations{}, err
	}

	labels := make([]int, len(setups))
	ann := backtest.Annotations{
		Confidence: make([]float64, len(setups)),
		Regime:     make([]int, len(setups)),
	}
	for i, st := range setups {
		labels[i] = st.Direction
		ann.Confidence[i] = st.Confidence
		ann.Regime[i] = st.Regime
	}
	return bars[len(bars)-len(setups):], backtest.Classifications(labels), ann, nil
}
