package backend

import (
	"fmt"

	"tkpay/internal/config"
)

// FromAppConfig converts the application config to backend config.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.RemoteBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.RemoteBackend)
	}

	creds, err := appConfig.GoogleCredentials()
	if err != nil {
		return Config{}, err
	}

	return Config{
		Type:            backendType,
		GCSBucket:       appConfig.GCSBucket,
		GCSPrefix:       appConfig.GCSPrefix,
		CredentialsJSON: creds,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}
	if c.Type == GCSBackend && c.GCSBucket == "" {
		return fmt.Errorf("GCS bucket is required for gcs backend")
	}
	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{GCSBackend, MemoryBackend, NoneBackend}
}

// GetBackendTypeStrings returns all valid backend type strings
func GetBackendTypeStrings() []string {
	types := GetBackendTypes()
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = t.String()
	}
	return out
}
