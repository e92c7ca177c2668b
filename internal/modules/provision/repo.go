package provision

import (
	"context"
	"fmt"
	"strings"

	"github.com/ngm9/Utkrusht-task-sub000/internal/platform/github"
)

// MaxRepoNameAttempts bounds CreateRepo: the base name plus two suffixed names.
const MaxRepoNameAttempts = 3

type RepoOptions struct {
	Description  string
	Private      bool
	IsTemplate   bool
	FromTemplate bool
}

// RepoCreationError is returned when no repository could be created for Name.
type RepoCreationError struct {
	Name     string
	Attempts []string
	Err      error
}

func (e *RepoCreationError) Error() string {
	return fmt.Sprintf("create repository %q (tried %s): %v", e.Name, strings.Join(e.Attempts, ", "), e.Err)
}

func (e *RepoCreationError) Unwrap() error { return e.Err }

// CreateRepo creates a repository named after Slugify(name) under the configured owner. A
// taken name is retried with a random four-hex-digit suffix; any other failure is returned
// immediately.
func (p *Provisioner) CreateRepo(ctx context.Context, name string, opts RepoOptions) (*github.Repository, error) {
	base := Slugify(name)
	if base == "" {
		return nil, &RepoCreationError{Name: name, Err: fmt.Errorf("name %q has no usable characters", name)}
	}

	var attempts []string
	var lastErr error
	for i := 0; i < MaxRepoNameAttempts; i++ {
		candidate := base
		if i > 0 {
			candidate = base + "-" + p.suffix()
		}
		attempts = append(attempts, candidate)

		repo, err := p.createOnce(ctx, candidate, opts)
		if err == nil {
			p.log.Info("repository created", "repo", candidate, "url", repo.HTMLURL, "attempt", i+1)
			return repo, nil
		}
		lastErr = err
		if !github.IsNameAlreadyExists(err) {
			return nil, &RepoCreationError{Name: name, Attempts: attempts, Err: err}
		}
		p.log.Warn("repository name taken", "repo", candidate, "attempt", i+1)
	}
	return nil, &RepoCreationError{Name: name, Attempts: attempts, Err: lastErr}
}

// CreateTemplateRepo creates a private template repository.
func (p *Provisioner) CreateTemplateRepo(ctx context.Context, name, description string) (*github.Repository, error) {
	return p.CreateRepo(ctx, name, RepoOptions{Description: description, Private: true, IsTemplate: true})
}

// CreateRepoFromTemplate generates a private repository from the configured template.
func (p *Provisioner) CreateRepoFromTemplate(ctx context.Context, name, description string) (*github.Repository, error) {
	if p.cfg.TemplateRepo == "" {
		return nil, &RepoCreationError{Name: name, Err: fmt.Errorf("no template repository configured")}
	}
	return p.CreateRepo(ctx, name, RepoOptions{Description: description, Private: true, FromTemplate: true})
}

func (p *Provisioner) createOnce(ctx context.Context, name string, opts RepoOptions) (*github.Repository, error) {
	if opts.FromTemplate {
		tplOwner, tplRepo := p.templateRef()
		return p.repos.GenerateFromTemplate(ctx, tplOwner, tplRepo, github.GenerateRepoRequest{
			Owner:       p.cfg.Owner,
			Name:        name,
			Description: opts.Description,
			Private:     opts.Private,
		})
	}
	return p.repos.CreateOrgRepo(ctx, p.cfg.Owner, github.CreateRepoRequest{
		Name:        name,
		Description: opts.Description,
		Private:     opts.Private,
		AutoInit:    true,
		IsTemplate:  opts.IsTemplate,
	})
}

func (p *Provisioner) templateRef() (string, string) {
	if owner, repo, ok := strings.Cut(p.cfg.TemplateRepo, "/"); ok {
		return owner, repo
	}
	return p.cfg.Owner, p.cfg.TemplateRepo
}

// DeleteRepo removes owner/repo. Callers use it to discard a repository whose commit failed.
func (p *Provisioner) DeleteRepo(ctx context.Context, owner, repo string) error {
	if err := p.repos.DeleteRepo(ctx, owner, repo); err != nil {
		return fmt.Errorf("delete repository %s/%s: %w", owner, repo, err)
	}
	p.log.Info("repository deleted", "repo", owner+"/"+repo)
	return nil
}
