package config

import (
	"strings"
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{"INITIAL_CAPITAL", "DB_DRIVER", "TRADING_SYMBOLS", "MAX_POSITION_SIZE", "WINDOW_TIMEOUT"} {
		t.Setenv(key, "")
	}

	cfg, err := FromEnv()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Backtest.InitialCapital != 10000 || cfg.Backtest.Spread != 0.0002 || cfg.Backtest.Commission != 0.0001 {
		t.Fatalf("unexpected backtest defaults %+v", cfg.Backtest)
	}
	if cfg.Risk.MaxPositionSize != 0.02 || cfg.Risk.MaxDailyLoss != 0.05 || cfg.Risk.MaxDrawdown != 0.2 {
		t.Fatalf("unexpected risk defaults %+v", cfg.Risk)
	}
	if cfg.Database.Driver != DriverSQLite {
		t.Fatalf("expected sqlite by default, got %s", cfg.Database.Driver)
	}
	if len(cfg.Symbols) != 2 {
		t.Fatalf("expected default symbols, got %v", cfg.Symbols)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("INITIAL_CAPITAL", "500")
	t.Setenv("MAX_DRAWDOWN", "0.1")
	t.Setenv("CLIP_CAPITAL_AT_ZERO", "true")
	t.Setenv("WINDOW_TIMEOUT", "30s")
	t.Setenv("TRADING_SYMBOLS", " btcusdt, ,solusdt")
	t.Setenv("DB_DRIVER", "Postgres")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Backtest.InitialCapital != 500 || !cfg.Backtest.ClipCapitalAtZero {
		t.Fatalf("backtest overrides not applied: %+v", cfg.Backtest)
	}
	if cfg.Validation.Backtest.InitialCapital != 500 || cfg.Validation.Risk.MaxDrawdown != 0.1 {
		t.Fatal("validation must share the backtest and risk config")
	}
	if cfg.Validation.WindowTimeout != 30*time.Second {
		t.Fatalf("unexpected timeout %s", cfg.Validation.WindowTimeout)
	}
	if len(cfg.Symbols) != 2 || cfg.Symbols[1] != "SOLUSDT" {
		t.Fatalf("unexpected symbols %v", cfg.Symbols)
	}
	if cfg.Database.Driver != DriverPostgres {
		t.Fatalf("unexpected driver %s", cfg.Database.Driver)
	}
}

func TestFromEnvReportsEveryBadValue(t *testing.T) {
	t.Setenv("SPREAD", "wide")
	t.Setenv("VALIDATION_WINDOWS", "many")

	_, err := FromEnv()
	if err == nil {
		t.Fatal("expected an error")
	}
	for _, key := range []string{"SPREAD", "VALIDATION_WINDOWS"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error %q does not mention %s", err, key)
		}
	}
}

func TestFromEnvRejectsUnknownDriver(t *testing.T) {
	t.Setenv("DB_DRIVER", "mysql")
	if _, err := FromEnv(); err == nil {
		t.Fatal("expected an unsupported driver error")
	}
}
