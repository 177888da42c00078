package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"moneta/internal/amqp"
	"moneta/internal/config"
	"moneta/internal/ledger"
	"moneta/internal/log"
	"moneta/internal/scheduler"
	"moneta/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	// Setup structured logging
	logger := log.New(log.Config{Level: slog.LevelInfo, Component: log.ComponentWorker})
	log.SetDefault(logger)

	logger.Info("Starting recurrence-worker", log.FieldOperation, log.OpStartup)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	repo, err := storage.NewRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize repository", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	sched := scheduler.New(repo, ledger.New(repo))
	dispatcher := scheduler.NewDispatcher(repo, amqpClient, cfg.DispatchInterval, cfg.DispatchBatchSize)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The dispatcher publishes due runs, the consumer executes them. Either
	// one failing terminally brings the process down so the supervisor can
	// restart it.
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return dispatcher.Run(ctx)
	})
	g.Go(func() error {
		return amqpClient.ConsumeOccurrences(ctx, sched.ValidateAndRun)
	})

	logger.Info("Recurrence worker running",
		"dispatch_interval", cfg.DispatchInterval,
		"batch_size", cfg.DispatchBatchSize,
		"queue", cfg.AMQPQueue)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker terminated", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Recurrence worker shutdown complete", log.FieldOperation, log.OpShutdown)
}
