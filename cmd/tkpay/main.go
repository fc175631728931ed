package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"tkpay/internal/amqp"
	"tkpay/internal/cli"
	apphttp "tkpay/internal/http"
	"tkpay/internal/services"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger.Logger)

	loc, err := cfg.Location()
	if err != nil {
		logger.Error("Invalid timezone", "error", err, "timezone", cfg.Timezone)
		os.Exit(1)
	}

	local := cli.InitSQLite(logger.Logger, cfg.SQLiteDBPath)
	remote := cli.InitRemote(context.Background(), logger.Logger, cfg)

	opts := []services.Option{
		services.WithLocation(loc),
		services.WithDefaultRecipients(cfg.DefaultRecipients),
		services.WithLogger(logger),
	}

	// History events are optional; without a broker nothing is mirrored.
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, history events disabled", "error", err)
		} else {
			opts = append(opts, services.WithPublisher(amqpClient))
			logger.Info("AMQP publisher initialized", "exchange", cfg.AMQPExchange)
		}
	}

	state := services.NewStateManager(local, remote.Store, opts...)
	if err := state.Initialize(context.Background()); err != nil {
		logger.Error("Failed to initialize state", "error", err)
		os.Exit(1)
	}

	srv := apphttp.NewServer(apphttp.Options{
		Addr:               ":" + cfg.Port,
		State:              state,
		Logger:             logger,
		InvoiceCacheSize:   cfg.InvoiceCacheSize,
		InvoiceCacheTTL:    cfg.InvoiceCacheTTL,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Location:           loc,
	})
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger.Logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close error", "error", err)
			}
		}
		if remote.Cleanup != nil {
			if err := remote.Cleanup(); err != nil {
				logger.Warn("Remote store cleanup error", "error", err)
			}
		}
		if err := local.Close(); err != nil {
			logger.Warn("SQLite close error", "error", err)
		}
	})

	logger.Info("Starting tkpay server",
		"port", cfg.Port,
		"backend", cfg.RemoteBackend,
		"remote_available", state.RemoteAvailable(),
		"timezone", loc.String())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
