// Command bot runs one trading session of the dual-leg short options
// strategy: a short ATM call and a short ATM put, each hedged with an OTM
// long and protected by a ratcheting trailing stop.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/eddiefleurent/stanley_straddle/internal/broker"
	"github.com/eddiefleurent/stanley_straddle/internal/config"
	"github.com/eddiefleurent/stanley_straddle/internal/dashboard"
	"github.com/eddiefleurent/stanley_straddle/internal/notify"
	"github.com/eddiefleurent/stanley_straddle/internal/storage"
	"github.com/eddiefleurent/stanley_straddle/internal/strategy"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := newLogger(cfg)

	if cfg.IsPaperTrading() {
		logger.Info("=== PAPER TRADING MODE ===")
	} else {
		logger.Warn("=== LIVE TRADING MODE ===")
		logger.Warn("Starting in 10 seconds, Ctrl+C to abort")
		time.Sleep(10 * time.Second)
	}

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	session, err := strategy.NewSession(cfg.Schedule.EntryTime, cfg.Schedule.ExitTime, loc, cfg.Toggles.Testing)
	if err != nil {
		return fmt.Errorf("building session window: %w", err)
	}

	gateway := broker.NewGatewayClient(cfg.Broker.APIKey, cfg.Broker.APIEndpoint, cfg.Broker.AccountID, cfg.BrokerTimeout())
	b := broker.NewCircuitBreakerBroker(gateway)

	var notifier notify.Notifier = notify.NopNotifier{}
	if cfg.Notifications.Enabled {
		notifier = notify.NewDiscordNotifier(cfg.Notifications.WebhookURL, logger)
	}

	journal := storage.NewJournal(cfg.Storage.Path)
	reporter := strategy.NewReporter(logger, notifier, journal)
	engine := strategy.NewEngine(cfg, b, reporter, journal, session)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Dashboard.Enabled {
		srv := dashboard.NewServer(journal, logger, cfg.Dashboard.Port, cfg.Dashboard.AuthToken)
		go func() {
			if err := srv.Start(); err != nil {
				logger.WithError(err).Error("Dashboard server failed")
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	// First signal ends the session through the watchdog so positions are
	// closed; a second one aborts outright.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Warn("Signal received, forcing session end")
		session.ForceExit()
		<-sigCh
		logger.Warn("Second signal received, aborting")
		cancel()
	}()

	runErr := engine.Run(ctx)
	if err := journal.Save(); err != nil {
		logger.WithError(err).Warn("Failed to save journal on shutdown")
	}
	return runErr
}

// newLogger builds the session logger: stdout plus a rotating log file when
// one is configured.
func newLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Environment.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if cfg.Environment.LogFile != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.Environment.LogFile,
			MaxSize:    10, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}
		logger.SetOutput(io.MultiWriter(os.Stdout, rotator))
	}

	return logger
}
