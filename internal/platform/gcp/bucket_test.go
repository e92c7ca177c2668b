package gcp

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/ngm9/Utkrusht-task-sub000/internal/platform/logger"
)

func TestBucketConfigFromEnvDisabledWithoutName(t *testing.T) {
	t.Setenv("ARTIFACT_BUCKET", "")
	t.Setenv("ARTIFACT_STORAGE_MODE", "bogus")
	cfg, err := BucketConfigFromEnv()
	if err != nil {
		t.Fatalf("BucketConfigFromEnv: %v", err)
	}
	if cfg.Name != "" {
		t.Fatalf("Name: want empty got=%q", cfg.Name)
	}
}

func TestBucketConfigFromEnv(t *testing.T) {
	t.Setenv("ARTIFACT_BUCKET", "task-artifacts")
	t.Setenv("ARTIFACT_PREFIX", "/dev/")
	t.Setenv("ARTIFACT_STORAGE_MODE", "")
	t.Setenv("STORAGE_EMULATOR_HOST", "http://fake-gcs:4443")
	cfg, err := BucketConfigFromEnv()
	if err != nil {
		t.Fatalf("BucketConfigFromEnv: %v", err)
	}
	if cfg.Name != "task-artifacts" || cfg.Prefix != "dev" {
		t.Fatalf("config: got %+v", cfg)
	}
	if cfg.Storage.Mode != StorageEmulator {
		t.Fatalf("mode: want emulator got=%q", cfg.Storage.Mode)
	}
}

func TestBucketObjectKeyAndURL(t *testing.T) {
	b := &bucket{name: "task-artifacts", prefix: "dev"}
	if got := b.objectKey("/t-1/task.json"); got != "dev/t-1/task.json" {
		t.Fatalf("objectKey: want=%q got=%q", "dev/t-1/task.json", got)
	}
	if got := b.URL("t-1/task.json"); got != "gs://task-artifacts/dev/t-1/task.json" {
		t.Fatalf("URL: got=%q", got)
	}
	b.emulatorHost = "http://127.0.0.1:4443"
	if got := b.URL("t-1/task.json"); got != "http://127.0.0.1:4443/task-artifacts/dev/t-1/task.json" {
		t.Fatalf("URL (emulator): got=%q", got)
	}
}

func TestContentTypeForKey(t *testing.T) {
	cases := map[string]string{
		"t/task.json":     "application/json",
		"t/README.md":     "text/markdown; charset=utf-8",
		"t/compose.yml":   "application/yaml",
		"t/src/Main.java": "text/plain; charset=utf-8",
		"":                "",
	}
	for key, want := range cases {
		if got := contentTypeForKey(key); got != want {
			t.Fatalf("contentTypeForKey(%q): want=%q got=%q", key, want, got)
		}
	}
}

func TestBucketEmulatorUploadAndList(t *testing.T) {
	host := strings.TrimRight(strings.TrimSpace(os.Getenv("ARTIFACT_GCS_EMULATOR_HOST")), "/")
	if host == "" {
		t.Skip("set ARTIFACT_GCS_EMULATOR_HOST to run the emulator test")
	}
	name := strings.TrimSpace(os.Getenv("ARTIFACT_GCS_EMULATOR_BUCKET"))
	if name == "" {
		t.Skip("set ARTIFACT_GCS_EMULATOR_BUCKET to an existing emulator bucket")
	}
	ctx := context.Background()
	prefix := fmt.Sprintf("it-%d", time.Now().UnixNano())
	b, err := NewBucket(ctx, logger.Nop(), BucketConfig{
		Name:    name,
		Prefix:  prefix,
		Storage: StorageConfig{Mode: StorageEmulator, EmulatorHost: host},
	})
	if err != nil {
		t.Fatalf("NewBucket: %v", err)
	}
	defer b.Close()

	if err := b.Upload(ctx, "t-1/task.json", bytes.NewBufferString(`{"ok":true}`)); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	keys, err := b.ListKeys(ctx, "t-1/")
	if err != nil {
		t.Fatalf("ListKeys: %v", err)
	}
	if !slices.Contains(keys, prefix+"/t-1/task.json") {
		t.Fatalf("ListKeys: want uploaded key, got %v", keys)
	}
}
