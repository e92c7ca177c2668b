// Package provision creates the git hosting resources a generated task needs: the task
// repository, its single batch commit, an optional gist mirror and collaborator access.
package provision

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/ngm9/Utkrusht-task-sub000/internal/platform/github"
	"github.com/ngm9/Utkrusht-task-sub000/internal/platform/logger"
)

type Config struct {
	// Owner is the organization new repositories are created under.
	Owner string
	// TemplateRepo is "owner/name" or "name" (under Owner). Empty disables template creation.
	TemplateRepo string
	Branch       string
	Gist         GistOptions
}

type Provisioner struct {
	log     *logger.Logger
	repos   github.Client
	gists   github.Client
	cfg     Config
	suffix  func() string
	refWait time.Duration
}

// New builds a Provisioner. repos uses the organization token; gists uses the gist token and
// may be nil when gist creation is not configured.
func New(log *logger.Logger, repos, gists github.Client, cfg Config) (*Provisioner, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if repos == nil {
		return nil, fmt.Errorf("github repo client required")
	}
	if cfg.Owner == "" {
		return nil, fmt.Errorf("repo owner required")
	}
	if cfg.Branch == "" {
		cfg.Branch = "main"
	}
	cfg.Gist = cfg.Gist.withDefaults()
	return &Provisioner{
		log:     log.With("service", "Provisioner", "owner", cfg.Owner),
		repos:   repos,
		gists:   gists,
		cfg:     cfg,
		suffix:  hexSuffix,
		refWait: 2 * time.Second,
	}, nil
}

func (p *Provisioner) Owner() string { return p.cfg.Owner }

func (p *Provisioner) DefaultBranch() string { return p.cfg.Branch }

func hexSuffix() string {
	var b [2]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("%04x", time.Now().UnixNano()&0xffff)
	}
	return hex.EncodeToString(b[:])
}
