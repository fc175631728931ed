// Package cli provides common CLI initialization utilities shared by
// cmd/tkpay and cmd/tkpay-worker.
package cli

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"tkpay/internal/backend"
	"tkpay/internal/config"
	applog "tkpay/internal/log"
	"tkpay/internal/remote"
	"tkpay/internal/sheets"
	gsheet "tkpay/internal/sheets/google"
	sheetsmem "tkpay/internal/sheets/memory"
	"tkpay/internal/storage"
)

// SetupLogger initializes structured logging at the given LOG_LEVEL and
// installs it as the process default.
func SetupLogger(level string) *applog.Logger {
	logger := applog.New(applog.Config{
		Level:     applog.ParseLevel(level),
		Component: applog.ComponentApp,
	})
	applog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *slog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// InitSQLite opens the local cache at dbPath.
// Returns the cache or exits the process on failure.
func InitSQLite(logger *slog.Logger, dbPath string) *storage.SQLiteCache {
	c, err := storage.NewSQLiteCache(dbPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite cache", "error", err, "path", dbPath)
		os.Exit(1)
	}
	return c
}

// InitRemote creates the configured remote history store. An unreachable
// store is logged and replaced by the unavailable variant; only invalid
// configuration exits.
func InitRemote(ctx context.Context, logger *slog.Logger, cfg *config.Config) *backend.BackendResult {
	bc, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid remote backend configuration", "error", err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bc)
	if err != nil {
		logger.Error("Failed to create remote backend", "error", err, "backend", bc.Type.String())
		os.Exit(1)
	}
	if res.InitErr != nil {
		logger.Warn("Remote history unavailable, using local backup", "error", res.InitErr, "backend", bc.Type.String())
	}
	return res
}

// ReconcileSource returns the store the ledger worker may reconcile against,
// or nil when the backend is private to this process. Reconciling against a
// private store would clear every row written from events.
func ReconcileSource(logger *slog.Logger, res *backend.BackendResult) remote.Store {
	if res == nil || !res.Shared {
		logger.Warn("Remote history is not shared, ledger reconciliation disabled")
		return nil
	}
	return res.Store
}

// InitLedger returns the Google Sheets ledger when a spreadsheet is
// configured, otherwise an in-memory one.
func InitLedger(ctx context.Context, logger *slog.Logger, cfg *config.Config) (sheets.Ledger, error) {
	if cfg.GoogleSpreadsheetID == "" {
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided, mirroring in memory")
		return sheetsmem.New(), nil
	}
	creds, err := cfg.GoogleCredentials()
	if err != nil {
		return nil, err
	}
	var client *gsheet.Client
	if creds == nil {
		client, err = initOAuthLedger(ctx, logger, cfg)
	} else {
		client, err = gsheet.New(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleSheetName, creds)
	}
	if err != nil {
		return nil, err
	}
	logger.Info("Google Sheets ledger initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleSheetName)
	return client, nil
}

// initOAuthLedger uses a user token from tkpay-oauth-init when an OAuth
// client is configured, and Application Default Credentials otherwise.
func initOAuthLedger(ctx context.Context, logger *slog.Logger, cfg *config.Config) (*gsheet.Client, error) {
	clientJSON, err := cfg.GoogleOAuthClient()
	if err != nil {
		return nil, err
	}
	if clientJSON == nil {
		return gsheet.New(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleSheetName, nil)
	}
	tokenJSON, err := cfg.GoogleOAuthToken()
	if err != nil {
		return nil, err
	}
	if tokenJSON == nil {
		return nil, errors.New("missing oauth token (run tkpay-oauth-init or set GOOGLE_OAUTH_TOKEN_JSON)")
	}
	ts, err := gsheet.OAuthTokenSource(ctx, clientJSON, tokenJSON)
	if err != nil {
		return nil, err
	}
	logger.Info("Using OAuth user credentials for the ledger")
	return gsheet.NewWithTokenSource(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleSheetName, ts)
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *slog.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		cancel()

		if cleanup != nil {
			cleanup(shutdownCtx)
		}

		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup finished.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
