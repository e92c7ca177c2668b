package app

import (
	"context"
	"fmt"

	"github.com/ngm9/Utkrusht-task-sub000/internal/modules/provision"
	"github.com/ngm9/Utkrusht-task-sub000/internal/platform/digitalocean"
	"github.com/ngm9/Utkrusht-task-sub000/internal/platform/envutil"
	"github.com/ngm9/Utkrusht-task-sub000/internal/platform/gcp"
	"github.com/ngm9/Utkrusht-task-sub000/internal/platform/github"
	"github.com/ngm9/Utkrusht-task-sub000/internal/platform/openai"
	"github.com/ngm9/Utkrusht-task-sub000/internal/platform/redislock"
)

// Clients caches the external clients a command asked for.
type Clients struct {
	OpenAI      openai.Client
	Provisioner *provision.Provisioner
	Bucket      gcp.Bucket
	Lock        redislock.Locker
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.Bucket != nil {
		_ = c.Bucket.Close()
	}
	if l, ok := c.Lock.(*redislock.Lock); ok {
		_ = l.Close()
	}
}

func (a *App) OpenAI() (openai.Client, error) {
	if a.clients.OpenAI != nil {
		return a.clients.OpenAI, nil
	}
	c, err := openai.NewClient(a.Log, openai.ConfigFromEnv())
	if err != nil {
		return nil, fmt.Errorf("init openai client: %w", err)
	}
	a.clients.OpenAI = c
	return c, nil
}

// Provisioner needs GITHUB_UTKRUSHTAPPS_TOKEN and REPO_OWNER. Gist creation is enabled only
// when GITHUB_GIST_TOKEN is also set.
func (a *App) Provisioner(ctx context.Context) (*provision.Provisioner, error) {
	if a.clients.Provisioner != nil {
		return a.clients.Provisioner, nil
	}
	if _, err := envutil.Require("GITHUB_UTKRUSHTAPPS_TOKEN", "REPO_OWNER"); err != nil {
		return nil, err
	}
	ghCfg := github.ConfigFromEnv()
	repos, err := github.New(a.Log.With("github_client", "org"), a.Cfg.OrgToken, ghCfg)
	if err != nil {
		return nil, fmt.Errorf("init github client: %w", err)
	}
	var gists github.Client
	if a.Cfg.GistToken != "" {
		if gists, err = github.New(a.Log.With("github_client", "gist"), a.Cfg.GistToken, ghCfg); err != nil {
			return nil, fmt.Errorf("init gist client: %w", err)
		}
	} else {
		a.Log.Warn("GITHUB_GIST_TOKEN not set; gist creation disabled")
	}
	p, err := provision.New(a.Log, repos, gists, provision.Config{
		Owner:        a.Cfg.RepoOwner,
		TemplateRepo: a.Cfg.TemplateRepo,
		Branch:       a.Cfg.Branch,
		Gist: provision.GistOptions{
			MaxFileSize: int64(envutil.Int("GIST_MAX_FILE_SIZE", provision.DefaultGistMaxFileSize)),
			MaxFiles:    envutil.Int("GIST_MAX_FILES", provision.DefaultGistMaxFiles),
			Public:      envutil.Bool("GIST_PUBLIC", false),
		},
	})
	if err != nil {
		return nil, err
	}
	a.clients.Provisioner = p
	return p, nil
}

// Bucket returns the artifact bucket, or nil when ARTIFACT_BUCKET is unset.
func (a *App) Bucket(ctx context.Context) (gcp.Bucket, error) {
	if a.clients.Bucket != nil {
		return a.clients.Bucket, nil
	}
	cfg, err := gcp.BucketConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("artifact bucket config: %w", err)
	}
	if cfg.Name == "" {
		return nil, nil
	}
	b, err := gcp.NewBucket(ctx, a.Log, cfg)
	if err != nil {
		return nil, fmt.Errorf("init artifact bucket: %w", err)
	}
	a.clients.Bucket = b
	return b, nil
}

// Lock returns the Redis sync lock, or a no-op lock when SYNC_LOCK_REDIS_URL is unset.
func (a *App) Lock(ctx context.Context) (redislock.Locker, error) {
	if a.clients.Lock != nil {
		return a.clients.Lock, nil
	}
	l, err := redislock.New(ctx, a.Log, a.Cfg.SyncLockURL, redislock.DefaultTTL)
	if err != nil {
		return nil, fmt.Errorf("init sync lock: %w", err)
	}
	a.clients.Lock = l
	return l, nil
}

// Droplets returns the DigitalOcean lookup, or nil when DIGITALOCEAN_API_PAT is unset.
func (a *App) Droplets() digitalocean.DropletLookup {
	if a.Cfg.DOToken == "" {
		return nil
	}
	d, err := digitalocean.New(a.Log, digitalocean.Config{Token: a.Cfg.DOToken})
	if err != nil {
		a.Log.Warn("digitalocean lookup disabled", "error", err)
		return nil
	}
	return d
}
