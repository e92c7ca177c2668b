// Package gists keeps the gist mirrors and flags of task rows in step across the prod and dev
// databases. Every batch walks its rows one at a time; a failing row is logged and counted and
// the loop moves on.
package gists

import (
	"context"
	"errors"
	"fmt"
	"strings"

	taskrepos "github.com/ngm9/Utkrusht-task-sub000/internal/data/repos/tasks"
	types "github.com/ngm9/Utkrusht-task-sub000/internal/domain/tasks"
	"github.com/ngm9/Utkrusht-task-sub000/internal/modules/provision"
	"github.com/ngm9/Utkrusht-task-sub000/internal/pkg/dbctx"
	pkgerrors "github.com/ngm9/Utkrusht-task-sub000/internal/pkg/errors"
	"github.com/ngm9/Utkrusht-task-sub000/internal/platform/logger"
	"github.com/ngm9/Utkrusht-task-sub000/internal/platform/redislock"
)

const (
	EnvDev  = "dev"
	EnvProd = "prod"
)

// GistCreator is the slice of provision.Provisioner the workflows need.
type GistCreator interface {
	CreateGistFromRepo(ctx context.Context, repoURL, branch string) string
	DefaultBranch() string
}

// AccessManager reads and changes collaborator access on a task repository.
type AccessManager interface {
	RepoAccess(ctx context.Context, owner, repo, user string) (string, error)
	SetRepoAccess(ctx context.Context, owner, repo, user, permission string) error
}

type UsecasesDeps struct {
	Log  *logger.Logger
	Prod taskrepos.TaskRepo
	// Optional for create and repo-access against prod.
	Dev    taskrepos.TaskRepo
	Gists  GistCreator
	Access AccessManager
	// Optional; defaults to redislock.Nop.
	Lock redislock.Locker
}

type Usecases struct {
	deps UsecasesDeps
}

func New(deps UsecasesDeps) Usecases {
	if deps.Lock == nil {
		deps.Lock = redislock.Nop{}
	}
	return Usecases{deps: deps}
}

// Summary tallies one batch run.
type Summary struct {
	Op        string
	Total     int
	Updated   int
	Unchanged int
	Skipped   int
	Failed    int
	// FailedIDs lists the task ids counted in Failed, in visiting order.
	FailedIDs []string
}

func (s *Summary) fail(id string) {
	s.Failed++
	s.FailedIDs = append(s.FailedIDs, id)
}

func (s Summary) String() string {
	return fmt.Sprintf("%s: total=%d updated=%d unchanged=%d skipped=%d failed=%d",
		s.Op, s.Total, s.Updated, s.Unchanged, s.Skipped, s.Failed)
}

func (u Usecases) repo(env string) (taskrepos.TaskRepo, error) {
	switch env {
	case EnvProd:
		if u.deps.Prod != nil {
			return u.deps.Prod, nil
		}
	case EnvDev:
		if u.deps.Dev != nil {
			return u.deps.Dev, nil
		}
	default:
		return nil, fmt.Errorf("unknown env %q (want dev or prod)", env)
	}
	return nil, fmt.Errorf("%s database not configured", env)
}

func (u Usecases) requireBoth() error {
	if u.deps.Prod == nil || u.deps.Dev == nil {
		return fmt.Errorf("prod and dev databases are both required")
	}
	return nil
}

func (u Usecases) locked(ctx context.Context, name string, fn func() (*Summary, error)) (*Summary, error) {
	release, err := u.deps.Lock.Acquire(ctx, name)
	if err != nil {
		return nil, err
	}
	defer release()
	return fn()
}

// SyncProdToDev copies each prod gist URL onto the dev row with the same task id.
func (u Usecases) SyncProdToDev(ctx context.Context) (*Summary, error) {
	if err := u.requireBoth(); err != nil {
		return nil, err
	}
	return u.locked(ctx, EnvDev, func() (*Summary, error) {
		log := u.deps.Log.With("op", "sync_prod_to_dev")
		dbc := dbctx.From(ctx)
		rows, err := u.deps.Prod.ListAll(dbc)
		if err != nil {
			return nil, fmt.Errorf("list prod tasks: %w", err)
		}
		s := &Summary{Op: "sync-prod-to-dev", Total: len(rows)}
		for _, row := range rows {
			blob, err := row.Blob()
			if err != nil {
				log.Error("prod task_blob unreadable", "task_id", row.TaskID, "error", err)
				s.fail(row.TaskID)
				continue
			}
			gist := blob.GistURL()
			if gist == "" {
				s.Skipped++
				continue
			}
			_, changed, err := u.deps.Dev.PatchTaskBlob(dbc, row.TaskID, func(doc types.BlobDoc) (bool, error) {
				return doc.SetGistURL(gist), nil
			})
			switch {
			case errors.Is(err, pkgerrors.ErrNotFound):
				log.Debug("no dev row", "task_id", row.TaskID)
				s.Skipped++
			case err != nil:
				log.Error("dev gist update failed", "task_id", row.TaskID, "error", err)
				s.fail(row.TaskID)
			case changed:
				log.Info("dev gist updated", "task_id", row.TaskID, "gist", gist)
				s.Updated++
			default:
				s.Unchanged++
			}
		}
		log.Info("sync finished", "summary", s.String())
		return s, nil
	})
}

// CreateProdMissingGists creates a gist for every prod task that has a repository but no gist,
// then records it on the prod row and, when present, the dev row.
func (u Usecases) CreateProdMissingGists(ctx context.Context) (*Summary, error) {
	if u.deps.Prod == nil {
		return nil, fmt.Errorf("prod database not configured")
	}
	return u.locked(ctx, EnvProd, func() (*Summary, error) {
		log := u.deps.Log.With("op", "create_prod_missing_gists")
		rows, err := u.deps.Prod.ListAll(dbctx.From(ctx))
		if err != nil {
			return nil, fmt.Errorf("list prod tasks: %w", err)
		}
		s := &Summary{Op: "create-prod-missing-gists", Total: len(rows)}
		for _, row := range rows {
			blob, err := row.Blob()
			if err != nil {
				log.Error("prod task_blob unreadable", "task_id", row.TaskID, "error", err)
				s.fail(row.TaskID)
				continue
			}
			if blob.GistURL() != "" || blob.RepoURL() == "" {
				s.Skipped++
				continue
			}
			if err := u.createAndRecord(ctx, log, row.TaskID, blob.RepoURL(), u.deps.Prod, u.deps.Dev); err != nil {
				s.fail(row.TaskID)
				continue
			}
			s.Updated++
		}
		log.Info("gist creation finished", "summary", s.String())
		return s, nil
	})
}

// SyncIsEnabled copies prod is_enabled onto matching dev rows.
func (u Usecases) SyncIsEnabled(ctx context.Context) (*Summary, error) {
	if err := u.requireBoth(); err != nil {
		return nil, err
	}
	return u.locked(ctx, EnvDev, func() (*Summary, error) {
		log := u.deps.Log.With("op", "sync_is_enabled")
		dbc := dbctx.From(ctx)
		rows, err := u.deps.Prod.ListAll(dbc)
		if err != nil {
			return nil, fmt.Errorf("list prod tasks: %w", err)
		}
		s := &Summary{Op: "sync-is-enabled", Total: len(rows)}
		for _, row := range rows {
			dev, err := u.deps.Dev.Get(dbc, row.TaskID)
			if errors.Is(err, pkgerrors.ErrNotFound) {
				s.Skipped++
				continue
			}
			if err != nil {
				log.Error("dev task read failed", "task_id", row.TaskID, "error", err)
				s.fail(row.TaskID)
				continue
			}
			if dev.IsEnabled == row.IsEnabled {
				s.Unchanged++
				continue
			}
			if err := u.deps.Dev.SetEnabled(dbc, row.TaskID, row.IsEnabled); err != nil {
				log.Error("dev is_enabled update failed", "task_id", row.TaskID, "error", err)
				s.fail(row.TaskID)
				continue
			}
			log.Info("dev is_enabled updated", "task_id", row.TaskID, "enabled", row.IsEnabled)
			s.Updated++
		}
		log.Info("sync finished", "summary", s.String())
		return s, nil
	})
}

type CreateInput struct {
	TaskIDs []string
	Env     string
	// Force replaces an existing gist URL.
	Force bool
}

// Create makes gists for the listed tasks in one environment.
func (u Usecases) Create(ctx context.Context, in CreateInput) (*Summary, error) {
	if len(in.TaskIDs) == 0 {
		return nil, fmt.Errorf("no task ids")
	}
	repo, err := u.repo(in.Env)
	if err != nil {
		return nil, err
	}
	return u.locked(ctx, in.Env, func() (*Summary, error) {
		log := u.deps.Log.With("op", "create_gists", "env", in.Env)
		s := &Summary{Op: "create", Total: len(in.TaskIDs)}
		for _, id := range in.TaskIDs {
			id = strings.TrimSpace(id)
			row, err := repo.Get(dbctx.From(ctx), id)
			if err != nil {
				log.Error("task read failed", "task_id", id, "error", err)
				s.fail(id)
				continue
			}
			blob, err := row.Blob()
			if err != nil {
				log.Error("task_blob unreadable", "task_id", id, "error", err)
				s.fail(id)
				continue
			}
			if blob.RepoURL() == "" {
				log.Warn("task has no repository", "task_id", id)
				s.fail(id)
				continue
			}
			if blob.GistURL() != "" && !in.Force {
				log.Info("gist already present; use --force to replace", "task_id", id, "gist", blob.GistURL())
				s.Skipped++
				continue
			}
			if err := u.createAndRecord(ctx, log, id, blob.RepoURL(), repo, nil); err != nil {
				s.fail(id)
				continue
			}
			s.Updated++
		}
		log.Info("gist creation finished", "summary", s.String())
		return s, nil
	})
}

// createAndRecord creates a gist for repoURL and writes it onto primary, then onto mirror when
// mirror has the row. Only a primary failure is returned.
func (u Usecases) createAndRecord(ctx context.Context, log *logger.Logger, taskID, repoURL string, primary, mirror taskrepos.TaskRepo) error {
	url := u.deps.Gists.CreateGistFromRepo(ctx, repoURL, u.deps.Gists.DefaultBranch())
	if url == "" {
		log.Error("gist creation failed", "task_id", taskID, "repo", repoURL)
		return fmt.Errorf("gist creation failed for %s", taskID)
	}
	set := func(doc types.BlobDoc) (bool, error) { return doc.SetGistURL(url), nil }
	dbc := dbctx.From(ctx)
	if _, _, err := primary.PatchTaskBlob(dbc, taskID, set); err != nil {
		log.Error("gist url not recorded", "task_id", taskID, "gist", url, "error", err)
		return err
	}
	log.Info("gist recorded", "task_id", taskID, "gist", url)
	if mirror == nil {
		return nil
	}
	if _, _, err := mirror.PatchTaskBlob(dbc, taskID, set); err != nil && !errors.Is(err, pkgerrors.ErrNotFound) {
		log.Warn("gist url not mirrored", "task_id", taskID, "error", err)
	}
	return nil
}

type AccessInput struct {
	TaskID string
	Env    string
	User   string
	// Permission empty only reads the current access.
	Permission string
}

type AccessOutput struct {
	Repo       string
	User       string
	Permission string
}

// RepoAccess reads or changes a collaborator's access to a task's repository.
func (u Usecases) RepoAccess(ctx context.Context, in AccessInput) (*AccessOutput, error) {
	if strings.TrimSpace(in.User) == "" {
		return nil, fmt.Errorf("user required")
	}
	if u.deps.Access == nil {
		return nil, fmt.Errorf("repository access not configured")
	}
	repo, err := u.repo(in.Env)
	if err != nil {
		return nil, err
	}
	row, err := repo.Get(dbctx.From(ctx), in.TaskID)
	if err != nil {
		return nil, err
	}
	blob, err := row.Blob()
	if err != nil {
		return nil, err
	}
	owner, name, err := provision.ParseRepoURL(blob.RepoURL())
	if err != nil {
		return nil, fmt.Errorf("task %s: %w", in.TaskID, err)
	}
	if in.Permission != "" {
		if err := u.deps.Access.SetRepoAccess(ctx, owner, name, in.User, in.Permission); err != nil {
			return nil, err
		}
	}
	perm, err := u.deps.Access.RepoAccess(ctx, owner, name, in.User)
	if err != nil {
		return nil, err
	}
	return &AccessOutput{Repo: owner + "/" + name, User: in.User, Permission: perm}, nil
}
