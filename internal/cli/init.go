// Package cli holds the start-up steps shared by cmd/ledger and
// cmd/ledger-worker.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"ledger/internal/amqp"
	"ledger/internal/backend"
	"ledger/internal/config"
	"ledger/internal/log"
	"ledger/internal/sheets/google"
	"ledger/internal/store"
)

// SetupLogger builds a text logger at level writing to out (stdout when nil)
// and makes it the slog default.
func SetupLogger(level string, out io.Writer) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Level = log.ParseLevel(level)
	if out != nil {
		cfg.Output = out
	}
	logger := log.New(cfg)
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads .env for local development. A missing file is fine.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// ValidateConfig returns cfg or its validation error.
func ValidateConfig(cfg *config.Config) (*config.Config, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// OpenBackend opens the storage backend selected by cfg.
func OpenBackend(logger *log.Logger, cfg *config.Config) (store.Backend, error) {
	b, err := backend.New(backend.Config{
		Type:         backend.Type(cfg.DataBackend),
		SQLiteDBPath: cfg.SQLiteDBPath,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", cfg.DataBackend, err)
	}
	logger.WithComponent(log.ComponentBackend).Info("Storage backend ready",
		"backend", cfg.DataBackend, "path", cfg.SQLiteDBPath)
	return b, nil
}

// OpenAMQP dials the broker when one is configured. A nil client means
// activities are recorded directly.
func OpenAMQP(logger *log.Logger, cfg *config.Config) (*amqp.Client, error) {
	if !cfg.AMQPEnabled() {
		return nil, nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		return nil, fmt.Errorf("connect AMQP: %w", err)
	}
	logger.WithComponent(log.ComponentAMQP).Info("AMQP connected",
		"exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	return client, nil
}

// OpenExporter builds the Google Sheets exporter when a spreadsheet is
// configured. A nil exporter disables export.
func OpenExporter(ctx context.Context, logger *log.Logger, cfg *config.Config) (*google.Exporter, error) {
	if !cfg.SheetsEnabled() {
		return nil, nil
	}
	exp, err := google.NewExporter(ctx, google.Config{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		SheetName:          cfg.GoogleSheetName,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
	}, logger.WithComponent(log.ComponentSheets))
	if err != nil {
		return nil, fmt.Errorf("init sheets exporter: %w", err)
	}
	return exp, nil
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context, logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// RunCleanup runs cleanup with a deadline and logs if it overruns.
func RunCleanup(logger *log.Logger, timeout time.Duration, cleanup func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := cleanup(ctx); err != nil {
		logger.Error("Shutdown cleanup failed", log.FieldError, err)
		return
	}
	logger.Info("Shutdown complete")
}
