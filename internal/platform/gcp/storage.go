package gcp

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// StorageMode selects real GCS or a local fake-gcs-server for the artifact mirror.
type StorageMode string

const (
	StorageGCS      StorageMode = "gcs"
	StorageEmulator StorageMode = "emulator"
)

type StorageConfig struct {
	Mode         StorageMode
	EmulatorHost string
	// Inferred is set when the mode came from STORAGE_EMULATOR_HOST alone.
	Inferred bool
}

// StorageConfigError names the variable that made the storage config unusable.
type StorageConfigError struct {
	Var    string
	Value  string
	Reason string
}

func (e *StorageConfigError) Error() string {
	return fmt.Sprintf("invalid %s=%q: %s", e.Var, e.Value, e.Reason)
}

// StorageConfigFromEnv reads ARTIFACT_STORAGE_MODE and STORAGE_EMULATOR_HOST.
func StorageConfigFromEnv() (StorageConfig, error) {
	cfg := StorageConfig{
		EmulatorHost: strings.TrimRight(strings.TrimSpace(os.Getenv("STORAGE_EMULATOR_HOST")), "/"),
	}
	raw := strings.TrimSpace(os.Getenv("ARTIFACT_STORAGE_MODE"))
	switch mode := StorageMode(strings.ToLower(raw)); mode {
	case "":
		cfg.Mode = StorageGCS
		if cfg.EmulatorHost != "" {
			cfg.Mode, cfg.Inferred = StorageEmulator, true
		}
	case StorageGCS, StorageEmulator:
		cfg.Mode = mode
	default:
		return cfg, &StorageConfigError{Var: "ARTIFACT_STORAGE_MODE", Value: raw, Reason: "want gcs or emulator"}
	}
	return cfg, cfg.Validate()
}

func (cfg StorageConfig) Validate() error {
	switch cfg.Mode {
	case StorageGCS:
		return nil
	case StorageEmulator:
	default:
		return &StorageConfigError{Var: "ARTIFACT_STORAGE_MODE", Value: string(cfg.Mode), Reason: "want gcs or emulator"}
	}
	if cfg.EmulatorHost == "" {
		return &StorageConfigError{Var: "STORAGE_EMULATOR_HOST", Reason: "required in emulator mode"}
	}
	u, err := url.Parse(cfg.EmulatorHost)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &StorageConfigError{
			Var:    "STORAGE_EMULATOR_HOST",
			Value:  cfg.EmulatorHost,
			Reason: "want an absolute URL like http://fake-gcs:4443",
		}
	}
	return nil
}

// clientOptions uses GOOGLE_APPLICATION_CREDENTIALS_JSON (inline) or GOOGLE_APPLICATION_CREDENTIALS
// (path or inline) for real GCS, falling back to default credentials.
func (cfg StorageConfig) clientOptions() []option.ClientOption {
	if cfg.Mode == StorageEmulator {
		return []option.ClientOption{option.WithoutAuthentication()}
	}
	opts := []option.ClientOption{option.WithScopes(storage.ScopeReadWrite)}
	creds := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON"))
	if creds == "" {
		creds = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	switch {
	case creds == "":
	case strings.HasPrefix(creds, "{"):
		opts = append(opts, option.WithCredentialsJSON([]byte(creds)))
	default:
		opts = append(opts, option.WithCredentialsFile(creds))
	}
	return opts
}
