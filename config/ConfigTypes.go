package config

import (
	"ForecastBacktester/internal/operations/backtest"
	"ForecastBacktester/internal/operations/validation"
	"ForecastBacktester/internal/services/risk"
)

type Config struct {
	Exchange   ExchangeConfig
	Database   DatabaseConfig
	Symbols    []string
	Backtest   backtest.Config
	Risk       risk.Config
	Validation validation.Config
	SentryDSN  string
}

type ExchangeConfig struct {
	APIKey    string
	SecretKey string
}

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	Path     string // sqlite file
}
