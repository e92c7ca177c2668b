package deploy

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"

	"github.com/ngm9/Utkrusht-task-sub000/internal/platform/logger"
)

// Cloner fetches a task repository into a local directory.
type Cloner interface {
	Clone(ctx context.Context, repoURL, branch, dir string) error
}

type gitCloner struct {
	log   *logger.Logger
	token string
}

// NewGitCloner clones over HTTPS, authenticating with token when it is set.
func NewGitCloner(log *logger.Logger, token string) Cloner {
	return &gitCloner{log: log.With("component", "GitCloner"), token: strings.TrimSpace(token)}
}

func (c *gitCloner) Clone(ctx context.Context, repoURL, branch, dir string) error {
	opts := &git.CloneOptions{
		URL:          repoURL,
		Depth:        1,
		SingleBranch: true,
	}
	if branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(branch)
	}
	if c.token != "" {
		opts.Auth = &githttp.BasicAuth{Username: "x-access-token", Password: c.token}
	}
	if _, err := git.PlainCloneContext(ctx, dir, false, opts); err != nil {
		return fmt.Errorf("clone %s: %w", repoURL, err)
	}
	c.log.Info("repository cloned", "repo", repoURL, "branch", branch, "dir", dir)
	return nil
}
