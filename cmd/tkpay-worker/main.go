package main

import (
	"context"
	"errors"
	"os"
	"time"

	"tkpay/internal/amqp"
	"tkpay/internal/cli"
	"tkpay/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger.Logger)
	logger.Info("Starting tkpay-worker")

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the ledger worker")
		os.Exit(1)
	}

	ledger, err := cli.InitLedger(context.Background(), logger.Logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize ledger", "error", err)
		os.Exit(1)
	}

	// The remote store is only read, for reconciliation, and only when it is
	// the same history the server writes to.
	remote := cli.InitRemote(context.Background(), logger.Logger, cfg)
	history := cli.ReconcileSource(logger.Logger, remote)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger.Logger, 30*time.Second, func(context.Context) {
		logger.Info("Shutting down worker...")
		if err := amqpClient.Close(); err != nil {
			logger.Warn("AMQP close error", "error", err)
		}
		if remote.Cleanup != nil {
			if err := remote.Cleanup(); err != nil {
				logger.Warn("Remote store cleanup error", "error", err)
			}
		}
	})

	mirror := worker.NewMirrorWorker(ledger, history, logger.Logger)

	// Catch up on anything published while the worker was down.
	logger.Info("Performing startup reconcile...")
	if err := mirror.Reconcile(ctx); err != nil {
		logger.Error("Startup reconcile failed", "error", err)
	}

	interval := cfg.MirrorReconcileInterval
	if history == nil {
		interval = 0
	}
	if err := mirror.Run(ctx, amqpClient, interval); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped", "error", err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
