package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/ngm9/Utkrusht-task-sub000/internal/platform/logger"
)

// Bucket stores task artifacts under an optional key prefix.
type Bucket interface {
	Name() string
	Upload(ctx context.Context, key string, r io.Reader) error
	ListKeys(ctx context.Context, prefix string) ([]string, error)
	URL(key string) string
	Close() error
}

type BucketConfig struct {
	Name    string
	Prefix  string
	Storage StorageConfig
}

// BucketConfigFromEnv reads ARTIFACT_BUCKET and ARTIFACT_PREFIX. An empty Name means mirroring
// is disabled.
func BucketConfigFromEnv() (BucketConfig, error) {
	cfg := BucketConfig{
		Name:   strings.TrimSpace(os.Getenv("ARTIFACT_BUCKET")),
		Prefix: strings.Trim(strings.TrimSpace(os.Getenv("ARTIFACT_PREFIX")), "/"),
	}
	if cfg.Name == "" {
		return cfg, nil
	}
	sc, err := StorageConfigFromEnv()
	if err != nil {
		return cfg, err
	}
	cfg.Storage = sc
	return cfg, nil
}

type bucket struct {
	log          *logger.Logger
	client       *storage.Client
	name         string
	prefix       string
	emulatorHost string
}

func NewBucket(ctx context.Context, log *logger.Logger, cfg BucketConfig) (Bucket, error) {
	if strings.TrimSpace(cfg.Name) == "" {
		return nil, fmt.Errorf("bucket name required")
	}
	if err := cfg.Storage.Validate(); err != nil {
		return nil, fmt.Errorf("validate object storage config: %w", err)
	}
	client, err := newStorageClient(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	b := &bucket{
		log:          log.With("service", "ArtifactBucket", "bucket", cfg.Name),
		client:       client,
		name:         cfg.Name,
		prefix:       strings.Trim(cfg.Prefix, "/"),
		emulatorHost: strings.TrimRight(strings.TrimSpace(cfg.Storage.EmulatorHost), "/"),
	}
	b.log.Info("Object storage initialized", "mode", cfg.Storage.Mode, "mode_inferred", cfg.Storage.Inferred, "prefix", b.prefix)
	return b, nil
}

func newStorageClient(ctx context.Context, cfg StorageConfig) (*storage.Client, error) {
	if cfg.Mode == StorageEmulator {
		// the storage client only reads the emulator host from the environment
		_ = os.Setenv("STORAGE_EMULATOR_HOST", cfg.EmulatorHost)
	}
	return storage.NewClient(ctx, cfg.clientOptions()...)
}

func (b *bucket) Name() string { return b.name }

func (b *bucket) Close() error { return b.client.Close() }

func (b *bucket) objectKey(key string) string {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if b.prefix == "" {
		return key
	}
	return path.Join(b.prefix, key)
}

func (b *bucket) Upload(ctx context.Context, key string, r io.Reader) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	obj := b.objectKey(key)
	w := b.client.Bucket(b.name).Object(obj).NewWriter(ctx)
	if ct := contentTypeForKey(obj); ct != "" {
		w.ContentType = ct
	}
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write %s to GCS: %w", obj, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer for %s: %w", obj, err)
	}
	return nil
}

func (b *bucket) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	it := b.client.Bucket(b.name).Objects(ctx, &storage.Query{Prefix: b.objectKey(prefix)})
	out := []string{}
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, attrs.Name)
	}
	return out, nil
}

func (b *bucket) URL(key string) string {
	obj := b.objectKey(key)
	if b.emulatorHost != "" {
		return fmt.Sprintf("%s/%s/%s", b.emulatorHost, b.name, obj)
	}
	return fmt.Sprintf("gs://%s/%s", b.name, obj)
}

func contentTypeForKey(key string) string {
	s := strings.ToLower(strings.TrimSpace(key))
	switch {
	case s == "":
		return ""
	case strings.HasSuffix(s, ".json"):
		return "application/json"
	case strings.HasSuffix(s, ".md"):
		return "text/markdown; charset=utf-8"
	case strings.HasSuffix(s, ".yml"), strings.HasSuffix(s, ".yaml"):
		return "application/yaml"
	case strings.HasSuffix(s, ".html"):
		return "text/html; charset=utf-8"
	case strings.HasSuffix(s, ".png"):
		return "image/png"
	case strings.HasSuffix(s, ".svg"):
		return "image/svg+xml"
	default:
		return "text/plain; charset=utf-8"
	}
}
