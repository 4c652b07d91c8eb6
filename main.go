package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ForecastBacktester/config"
	"ForecastBacktester/internal/cli"

	"github.com/getsentry/sentry-go"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.SentryDSN}); err != nil {
			log.Printf("Sentry disabled: %v", err)
		}
	}

	// Cancel long runs on interrupt
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err = cli.NewRootCmd(cfg).ExecuteContext(ctx)
	stop()
	sentry.Flush(2 * time.Second)
	if err != nil {
		os.Exit(1)
	}
}
