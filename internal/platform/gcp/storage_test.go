package gcp

import (
	"errors"
	"testing"
)

func TestStorageConfigFromEnv(t *testing.T) {
	cases := []struct {
		name, mode, host string
		want             StorageMode
		inferred         bool
	}{
		{name: "default", want: StorageGCS},
		{name: "explicit gcs ignores host", mode: "gcs", host: "http://fake-gcs:4443", want: StorageGCS},
		{name: "explicit emulator", mode: "EMULATOR", host: "http://fake-gcs:4443/", want: StorageEmulator},
		{name: "host implies emulator", host: "http://fake-gcs:4443", want: StorageEmulator, inferred: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("ARTIFACT_STORAGE_MODE", tc.mode)
			t.Setenv("STORAGE_EMULATOR_HOST", tc.host)
			cfg, err := StorageConfigFromEnv()
			if err != nil {
				t.Fatalf("StorageConfigFromEnv: %v", err)
			}
			if cfg.Mode != tc.want || cfg.Inferred != tc.inferred {
				t.Fatalf("mode: want=%q inferred=%v got=%q inferred=%v", tc.want, tc.inferred, cfg.Mode, cfg.Inferred)
			}
			if tc.want == StorageEmulator && cfg.EmulatorHost != "http://fake-gcs:4443" {
				t.Fatalf("host: want trailing slash trimmed got=%q", cfg.EmulatorHost)
			}
		})
	}
}

func TestStorageConfigFromEnvRejects(t *testing.T) {
	cases := []struct {
		name, mode, host, wantVar string
	}{
		{name: "unknown mode", mode: "s3", wantVar: "ARTIFACT_STORAGE_MODE"},
		{name: "emulator without host", mode: "emulator", wantVar: "STORAGE_EMULATOR_HOST"},
		{name: "relative host", mode: "emulator", host: "fake-gcs:4443", wantVar: "STORAGE_EMULATOR_HOST"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("ARTIFACT_STORAGE_MODE", tc.mode)
			t.Setenv("STORAGE_EMULATOR_HOST", tc.host)
			_, err := StorageConfigFromEnv()
			var cfgErr *StorageConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("want *StorageConfigError, got %v", err)
			}
			if cfgErr.Var != tc.wantVar {
				t.Fatalf("Var: want=%q got=%q", tc.wantVar, cfgErr.Var)
			}
		})
	}
}

func TestClientOptionsPickCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS_JSON", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	if got := len(StorageConfig{Mode: StorageGCS}.clientOptions()); got != 1 {
		t.Fatalf("default credentials: want scopes only, got %d options", got)
	}
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "/secrets/sa.json")
	if got := len(StorageConfig{Mode: StorageGCS}.clientOptions()); got != 2 {
		t.Fatalf("file credentials: want 2 options got %d", got)
	}
	if got := len(StorageConfig{Mode: StorageEmulator, EmulatorHost: "http://x:1"}.clientOptions()); got != 1 {
		t.Fatalf("emulator: want one option got %d", got)
	}
}
