// Package cli wires the config, storage and engines into cobra commands
package cli

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"ForecastBacktester/config"
	"ForecastBacktester/internal/models"
	"ForecastBacktester/internal/operations/backtest"
	"ForecastBacktester/internal/operations/price"
	"ForecastBacktester/internal/repositories"
	"ForecastBacktester/internal/services/forecast"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

const dateLayout = "2006-01-02"

type app struct {
	cfg *config.Config
	db  *gorm.DB
}

// NewRootCmd creates the root command
func NewRootCmd(cfg *config.Config) *cobra.Command {
	a := &app{cfg: cfg}

	rootCmd := &cobra.Command{
		Use:   "forecastbt",
		Short: "Backtest and validate price forecasting models",
		Long: `forecastbt turns model predictions into simulated trades with spread,
commission and risk limits, and scores models on time-ordered validation windows.`,
		SilenceUsage: true,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}

	rootCmd.AddCommand(newFetchCmd(a))
	rootCmd.AddCommand(newBacktestCmd(a))
	rootCmd.AddCommand(newValidateCmd(a))
	rootCmd.AddCommand(newOptimizeCmd(a))
	rootCmd.AddCommand(newRunsCmd(a))

	return rootCmd
}

// database opens the configured database on first use
func (a *app) database() (*gorm.DB, error) {
	if a.db != nil {
		return a.db, nil
	}
	db, err := openDatabase(a.cfg.Database)
	if err != nil {
		return nil, err
	}
	a.db = db
	return db, nil
}

func (a *app) close() error {
	if a.db == nil {
		return nil
	}
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (a *app) runRepo() (*repositories.RunRepository, error) {
	db, err := a.database()
	if err != nil {
		return nil, err
	}
	return repositories.NewRunRepository(db), nil
}

// seriesFlags select the bars a command runs on
type seriesFlags struct {
	symbol    string
	timeframe string
	start     string
	end       string
	csvFile   string
	maxGap    time.Duration
}

func (f *seriesFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.symbol, "symbol", "", "Symbol to load (default: first configured symbol)")
	cmd.Flags().StringVar(&f.timeframe, "timeframe", models.PriceTimeFrame1d, "Bar timeframe")
	cmd.Flags().StringVar(&f.start, "start", "", "Start date in YYYY-MM-DD format")
	cmd.Flags().StringVar(&f.end, "end", "", "End date in YYYY-MM-DD format (today if not provided)")
	cmd.Flags().StringVar(&f.csvFile, "csv", "", "Read bars from a CSV file instead of the database")
	cmd.Flags().DurationVar(&f.maxGap, "max-gap", 0, "Reject series with a larger gap between bars (0 disables)")
}

func (f *seriesFlags) resolve(cfg *config.Config) error {
	if f.symbol == "" {
		if len(cfg.Symbols) == 0 {
			return fmt.Errorf("no symbol given and none configured")
		}
		f.symbol = cfg.Symbols[0]
	}
	f.symbol = strings.ToUpper(f.symbol)
	if _, ok := models.TimeFrameDuration(f.timeframe); !ok {
		return fmt.Errorf("unsupported timeframe %q", f.timeframe)
	}
	return nil
}

func (f *seriesFlags) window() (time.Time, time.Time, error) {
	end := time.Now().UTC()
	if f.end != "" {
		t, err := time.Parse(dateLayout, f.end)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end date, use YYYY-MM-DD: %w", err)
		}
		end = t
	}
	start := end.AddDate(-1, 0, 0)
	if f.start != "" {
		t, err := time.Parse(dateLayout, f.start)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start date, use YYYY-MM-DD: %w", err)
		}
		start = t
	}
	if !start.Before(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("start %s is not before end %s", start.Format(dateLayout), end.Format(dateLayout))
	}
	return start, end, nil
}

// loadBars reads the series from CSV or the price table
func (a *app) loadBars(f *seriesFlags) ([]backtest.Bar, time.Time, time.Time, error) {
	if err := f.resolve(a.cfg); err != nil {
		return nil, time.Time{}, time.Time{}, err
	}
	start, end, err := f.window()
	if err != nil {
		return nil, start, end, err
	}

	var prices []models.Price
	if f.csvFile != "" {
		file, err := os.Open(f.csvFile)
		if err != nil {
			return nil, start, end, err
		}
		defer file.Close()
		prices, err = price.LoadCSV(file, f.symbol, f.timeframe)
		if err != nil {
			return nil, start, end, fmt.Errorf("load %s: %w", f.csvFile, err)
		}
		log.Printf("Loaded %d bars from %s", len(prices), f.csvFile)
		if f.start == "" && f.end == "" {
			if len(prices) > 0 {
				start, end = prices[0].OpenTime, prices[len(prices)-1].OpenTime
			}
		} else {
			prices = pricesBetween(prices, start, end)
		}
	} else {
		db, err := a.database()
		if err != nil {
			return nil, start, end, err
		}
		prices, err = repositories.NewPriceRepository(db).GetPricesByTimeFrame(f.symbol, f.timeframe, start, end)
		if err != nil {
			return nil, start, end, err
		}
	}

	bars, err := backtest.BarsFromPrices(prices, f.maxGap)
	if err != nil {
		return nil, start, end, err
	}
	if len(bars) == 0 {
		return nil, start, end, fmt.Errorf("no %s %s bars between %s and %s; run fetch first",
			f.symbol, f.timeframe, start.Format(dateLayout), end.Format(dateLayout))
	}
	return bars, start, end, nil
}

// pricesBetween keeps bars opening within [start, end], like the price table query
func pricesBetween(prices []models.Price, start, end time.Time) []models.Price {
	out := prices[:0]
	for _, p := range prices {
		if p.OpenTime.Before(start) || p.OpenTime.After(end) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// modelFlags pick the forecasting model and its features
type modelFlags struct {
	task     string
	lambda   float64
	lags     int
	features forecast.FeatureOptions
}

func (f *modelFlags) register(cmd *cobra.Command) {
	f.features = forecast.DefaultFeatureOptions()
	cmd.Flags().StringVar(&f.task, "task", "regression", "Model task: regression or classification")
	cmd.Flags().Float64Var(&f.lambda, "lambda", forecast.DefaultLambda, "Ridge regularization strength")
	cmd.Flags().IntVar(&f.features.Lags, "lags", f.features.Lags, "Number of lagged returns")
	cmd.Flags().IntVar(&f.features.EMAPeriod, "ema", f.features.EMAPeriod, "EMA period of the price ratio feature")
	cmd.Flags().IntVar(&f.features.RSIPeriod, "rsi", f.features.RSIPeriod, "RSI period")
	cmd.Flags().IntVar(&f.features.VolWindow, "vol-window", f.features.VolWindow, "Rolling volatility window")
}

func (f *modelFlags) parse() (forecast.Task, error) {
	return forecast.ParseTask(f.task)
}

func (f *modelFlags) name(task forecast.Task) string {
	return "ridge_" + task.String()
}

func (f *modelFlags) params() string {
	return forecast.Params{
		"lambda":     f.lambda,
		"lags":       float64(f.features.Lags),
		"ema":        float64(f.features.EMAPeriod),
		"rsi":        float64(f.features.RSIPeriod),
		"vol_window": float64(f.features.VolWindow),
	}.String()
}
