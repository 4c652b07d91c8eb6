package cli

import (
	"fmt"
	"os"
	"strings"

	"ForecastBacktester/internal/models"
	"ForecastBacktester/internal/operations/binance"
	"ForecastBacktester/internal/operations/price"
	"ForecastBacktester/internal/repositories"

	"github.com/spf13/cobra"
)

type fetchOptions struct {
	series  seriesFlags
	source  string
	refetch bool
}

func newFetchCmd(a *app) *cobra.Command {
	opts := &fetchOptions{}
	cmd := &cobra.Command{
		Use:   "fetch [SYMBOL...]",
		Short: "Download bars into the price table",
		Long: `Download bars from Binance futures, Yahoo Finance or a CSV file and store the
ones not already present. Symbols default to TRADING_SYMBOLS.
Example: forecastbt fetch BTCUSDT --timeframe=1h --start=2024-01-01`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(cmd, a, opts, args)
		},
	}

	opts.series.register(cmd)
	cmd.Flags().StringVar(&opts.source, "source", models.PriceSourceBinance, "Price source: binance, yahoo or csv")
	cmd.Flags().BoolVar(&opts.refetch, "refetch", false, "Delete stored bars in the range before fetching")

	return cmd
}

func runFetch(cmd *cobra.Command, a *app, opts *fetchOptions, args []string) error {
	symbols := append([]string(nil), args...)
	if len(symbols) == 0 {
		symbols = append(symbols, a.cfg.Symbols...)
	}
	if len(symbols) == 0 {
		return fmt.Errorf("no symbols to fetch")
	}
	for i := range symbols {
		symbols[i] = strings.ToUpper(symbols[i])
	}
	opts.series.symbol = symbols[0]
	if err := opts.series.resolve(a.cfg); err != nil {
		return err
	}
	start, end, err := opts.series.window()
	if err != nil {
		return err
	}

	db, err := a.database()
	if err != nil {
		return err
	}
	priceRepo := repositories.NewPriceRepository(db)
	tf := opts.series.timeframe

	if opts.source == models.PriceSourceCSV {
		if opts.series.csvFile == "" {
			return fmt.Errorf("--csv is required with --source=csv")
		}
		file, err := os.Open(opts.series.csvFile)
		if err != nil {
			return err
		}
		defer file.Close()
		prices, err := price.LoadCSV(file, symbols[0], tf)
		if err != nil {
			return err
		}
		saved, err := priceRepo.SaveBatch(prices)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Stored %d new bars of %d read for %s %s\n", saved, len(prices), symbols[0], tf)
		return nil
	}

	var source price.Source
	switch opts.source {
	case models.PriceSourceBinance:
		source = price.NewBinanceSource(binance.NewBinanceClient(a.cfg.Exchange.APIKey, a.cfg.Exchange.SecretKey))
	case models.PriceSourceYahoo:
		source = price.NewYahooSource()
	default:
		return fmt.Errorf("unknown source %q", opts.source)
	}

	if opts.refetch {
		for _, symbol := range symbols {
			if err := priceRepo.DeleteRange(symbol, tf, start, end); err != nil {
				return fmt.Errorf("clear %s: %w", symbol, err)
			}
		}
	}

	recorder := price.NewPriceRecorder(source, priceRepo, symbols)
	saved, err := recorder.Record(cmd.Context(), tf, start, end)
	if err != nil {
		return err
	}

	for _, symbol := range symbols {
		count, err := priceRepo.CountByTimeFrame(symbol, tf)
		if err != nil {
			return err
		}
		latest, err := priceRepo.GetLatestPriceByTimeFrame(symbol, tf)
		if err != nil {
			return err
		}
		last := "none"
		if latest != nil {
			last = latest.OpenTime.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %d bars stored, latest %s\n", symbol, tf, count, last)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Stored %d new bars\n", saved)
	return nil
}
