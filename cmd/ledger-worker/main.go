package main

import (
	"context"
	"errors"
	"os"
	"time"

	"ledger/internal/cli"
	"ledger/internal/config"
	"ledger/internal/log"
	"ledger/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	cfg := config.Load()
	logger := cli.SetupLogger(cfg.LogLevel, nil)
	logger.Info("Starting ledger-worker")

	if err := run(logger, cfg); err != nil {
		logger.Error("Worker stopped", log.FieldError, err)
		os.Exit(1)
	}
}

func run(logger *log.Logger, cfg *config.Config) error {
	if _, err := cli.ValidateConfig(cfg); err != nil {
		return err
	}
	if !cfg.AMQPEnabled() {
		return errors.New("AMQP_URL is required: the worker only consumes queued activities")
	}

	b, err := cli.OpenBackend(logger, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	mq, err := cli.OpenAMQP(logger, cfg)
	if err != nil {
		return err
	}

	ctx, cancel := cli.SignalContext(context.Background(), logger)
	defer cancel()

	w := worker.NewActivityWorker(b, logger)
	start := time.Now()
	err = w.Run(ctx, mq)
	logger.Info("Worker shutdown complete",
		"processed", w.Processed(), "uptime", time.Since(start).Round(time.Second).String())
	return err
}
