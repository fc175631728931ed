package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"tkpay/internal/core"
)

type Config struct {
	// HTTP Server
	Port     string
	LogLevel string

	// Local cache
	SQLiteDBPath string

	// Remote history store
	RemoteBackend string
	GCSBucket     string
	GCSPrefix     string

	// Calendar used for history date keys; empty means the process zone.
	Timezone string

	DefaultRecipients []string

	// AMQP history events
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google credentials, shared by Cloud Storage and the Sheets ledger
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// User OAuth for the ledger, used when no service account is set
	GoogleOAuthClientJSON string
	GoogleOAuthClientFile string
	GoogleOAuthTokenJSON  string
	GoogleOAuthTokenFile  string

	// Ledger mirror
	GoogleSpreadsheetID string
	GoogleSheetName     string

	// How often the worker rewrites the ledger from remote history; 0 disables.
	MirrorReconcileInterval time.Duration

	// Invoice rendering
	InvoiceCacheSize int
	InvoiceCacheTTL  time.Duration

	RateLimitPerMinute int
}

var validRemoteBackends = []string{"gcs", "memory", "none"}

func Load() *Config {
	cfg := &Config{
		Port:     getEnv("PORT", "8081"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/tkpay.db"),

		RemoteBackend: getEnv("REMOTE_BACKEND", "none"),
		GCSBucket:     getEnv("GCS_BUCKET", ""),
		GCSPrefix:     getEnv("GCS_PREFIX", "history"),

		Timezone: getEnv("TIMEZONE", ""),

		DefaultRecipients: getEnvList("DEFAULT_RECIPIENTS", core.DefaultRecipients),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "tkpay"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "history_events"),

		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")),

		GoogleOAuthClientJSON: getEnv("GOOGLE_OAUTH_CLIENT_JSON", ""),
		GoogleOAuthClientFile: getEnv("GOOGLE_OAUTH_CLIENT_FILE", ""),
		GoogleOAuthTokenJSON:  getEnv("GOOGLE_OAUTH_TOKEN_JSON", ""),
		GoogleOAuthTokenFile:  getEnv("GOOGLE_OAUTH_TOKEN_FILE", "token.json"),

		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:     getEnv("GOOGLE_SHEET_NAME", "History"),

		MirrorReconcileInterval: getEnvDuration("MIRROR_RECONCILE_INTERVAL", 15*time.Minute),

		InvoiceCacheSize: getEnvInt("INVOICE_CACHE_SIZE", 50),
		InvoiceCacheTTL:  getEnvDuration("INVOICE_CACHE_TTL", 10*time.Minute),

		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
	}

	return cfg
}

// Location resolves Timezone. An empty value yields time.Local.
func (c *Config) Location() (*time.Location, error) {
	if strings.TrimSpace(c.Timezone) == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// Validate validates the configuration and returns an error listing every problem found.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}

	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	isValidBackend := false
	for _, backend := range validRemoteBackends {
		if c.RemoteBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid remote backend '%s': must be one of %v", c.RemoteBackend, validRemoteBackends))
	}
	if c.RemoteBackend == "gcs" && c.GCSBucket == "" {
		errors = append(errors, "GCS bucket is required when using gcs remote backend")
	}

	if _, err := c.Location(); err != nil {
		errors = append(errors, fmt.Sprintf("invalid timezone '%s': %v", c.Timezone, err))
	}

	if len(c.DefaultRecipients) == 0 {
		errors = append(errors, "default recipients cannot be empty")
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.GoogleServiceAccountFile != "" {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}
	if c.GoogleSpreadsheetID != "" && c.GoogleSheetName == "" {
		errors = append(errors, "Google Sheet name is required when a spreadsheet ID is provided")
	}

	if c.MirrorReconcileInterval < 0 {
		errors = append(errors, fmt.Sprintf("invalid mirror reconcile interval %v: must not be negative", c.MirrorReconcileInterval))
	}

	if c.InvoiceCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid invoice cache size %d: must be at least 1", c.InvoiceCacheSize))
	} else if c.InvoiceCacheSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid invoice cache size %d: must be at most 1000", c.InvoiceCacheSize))
	}
	if c.InvoiceCacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid invoice cache TTL %v: must be at least 1 second", c.InvoiceCacheTTL))
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// GoogleCredentials returns the service account JSON, reading the file if needed.
// It returns nil when no explicit credentials are configured.
func (c *Config) GoogleCredentials() ([]byte, error) {
	data, err := inlineOrFile(c.GoogleServiceAccountJSON, c.GoogleServiceAccountFile)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return data, nil
}

// GoogleOAuthClient returns the installed-app OAuth client JSON, or nil.
func (c *Config) GoogleOAuthClient() ([]byte, error) {
	data, err := inlineOrFile(c.GoogleOAuthClientJSON, c.GoogleOAuthClientFile)
	if err != nil {
		return nil, fmt.Errorf("read oauth client file: %w", err)
	}
	return data, nil
}

// GoogleOAuthToken returns the saved user token JSON. A token file that does
// not exist yet is not an error.
func (c *Config) GoogleOAuthToken() ([]byte, error) {
	data, err := inlineOrFile(c.GoogleOAuthTokenJSON, c.GoogleOAuthTokenFile)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read oauth token file: %w", err)
	}
	return data, nil
}

func inlineOrFile(inline, path string) ([]byte, error) {
	if inline != "" {
		return []byte(inline), nil
	}
	if path == "" {
		return nil, nil
	}
	return os.ReadFile(path)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated variable, dropping blanks and duplicates.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return append([]string(nil), defaultValue...)
	}
	seen := map[string]struct{}{}
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if _, dup := seen[part]; dup {
			continue
		}
		seen[part] = struct{}{}
		out = append(out, part)
	}
	return out
}
