package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"ForecastBacktester/internal/operations/backtest"
	"ForecastBacktester/internal/operations/validation"
	"ForecastBacktester/internal/services/risk"

	"github.com/joho/godotenv"
)

// Load reads .env when present, then the environment
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}
	return FromEnv()
}

// FromEnv builds the config from the environment alone
func FromEnv() (*Config, error) {
	p := &parser{}

	bt := backtest.NewConfig()
	bt.InitialCapital = p.float("INITIAL_CAPITAL", bt.InitialCapital)
	bt.Spread = p.float("SPREAD", bt.Spread)
	bt.Commission = p.float("COMMISSION", bt.Commission)
	bt.StopLossPct = p.float("STOP_LOSS_PCT", bt.StopLossPct)
	bt.TakeProfitPct = p.float("TAKE_PROFIT_PCT", bt.TakeProfitPct)
	bt.AnnualizationFactor = p.float("ANNUALIZATION_FACTOR", bt.AnnualizationFactor)
	bt.RiskFreeRate = p.float("RISK_FREE_RATE", bt.RiskFreeRate)
	bt.ClipCapitalAtZero = p.bool("CLIP_CAPITAL_AT_ZERO", bt.ClipCapitalAtZero)

	rc := risk.NewConfig()
	rc.MaxPositionSize = p.float("MAX_POSITION_SIZE", rc.MaxPositionSize)
	rc.MaxDailyLoss = p.float("MAX_DAILY_LOSS", rc.MaxDailyLoss)
	rc.MaxDrawdown = p.float("MAX_DRAWDOWN", rc.MaxDrawdown)

	vc := validation.NewConfig()
	vc.Windows = p.int("VALIDATION_WINDOWS", vc.Windows)
	vc.TestRatio = p.float("TEST_RATIO", vc.TestRatio)
	vc.Parallelism = p.int("VALIDATION_PARALLELISM", vc.Parallelism)
	vc.WindowTimeout = p.duration("WINDOW_TIMEOUT", vc.WindowTimeout)
	vc.Backtest = bt
	vc.Risk = rc

	cfg := &Config{
		Exchange: ExchangeConfig{
			APIKey:    os.Getenv("BINANCE_API_KEY"),
			SecretKey: os.Getenv("BINANCE_SECRET_KEY"),
		},
		Database: DatabaseConfig{
			Driver:   strings.ToLower(getEnv("DB_DRIVER", DriverSQLite)),
			Host:     os.Getenv("DB_HOST"),
			Port:     p.int("DB_PORT", 5432),
			User:     os.Getenv("DB_USER"),
			Password: os.Getenv("DB_PASSWORD"),
			DBName:   os.Getenv("DB_NAME"),
			Path:     getEnv("DB_PATH", "backtests.db"),
		},
		Symbols:    getSymbols(),
		Backtest:   bt,
		Risk:       rc,
		Validation: vc,
		SentryDSN:  os.Getenv("SENTRY_DSN"),
	}

	if err := p.err(); err != nil {
		return nil, err
	}
	if d := cfg.Database.Driver; d != DriverPostgres && d != DriverSQLite {
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", d)
	}
	return cfg, nil
}

// parser collects every malformed variable instead of stopping at the first
type parser struct {
	errs []error
}

func (p *parser) lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (p *parser) float(key string, def float64) float64 {
	s, ok := p.lookup(key)
	if !ok {
		return def
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return v
}

func (p *parser) int(key string, def int) int {
	s, ok := p.lookup(key)
	if !ok {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return v
}

func (p *parser) bool(key string, def bool) bool {
	s, ok := p.lookup(key)
	if !ok {
		return def
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return v
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	s, ok := p.lookup(key)
	if !ok {
		return def
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return v
}

func (p *parser) err() error {
	return errors.Join(p.errs...)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// helper to get symbols
func getSymbols() []string {
	symbols := os.Getenv("TRADING_SYMBOLS")
	if symbols == "" {
		return []string{"BTCUSDT", "ETHUSDT"} // Default pairs if none specified
	}
	var out []string
	for _, s := range strings.Split(symbols, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, strings.ToUpper(s))
		}
	}
	return out
}
