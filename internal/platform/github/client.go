package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gogithub "github.com/google/go-github/v66/github"

	"github.com/ngm9/Utkrusht-task-sub000/internal/pkg/httpx"
	"github.com/ngm9/Utkrusht-task-sub000/internal/platform/envutil"
	"github.com/ngm9/Utkrusht-task-sub000/internal/platform/logger"
)

// Client is a token-bound GitHub REST v3 client covering repositories, git data, gists and
// collaborators.
type Client interface {
	CurrentUser(ctx context.Context) (*User, error)

	CreateOrgRepo(ctx context.Context, org string, req CreateRepoRequest) (*Repository, error)
	GenerateFromTemplate(ctx context.Context, templateOwner, templateRepo string, req GenerateRepoRequest) (*Repository, error)
	DeleteRepo(ctx context.Context, owner, repo string) error

	GetRef(ctx context.Context, owner, repo, ref string) (*Ref, error)
	UpdateRef(ctx context.Context, owner, repo, ref, sha string, force bool) (*Ref, error)
	GetCommit(ctx context.Context, owner, repo, sha string) (*Commit, error)
	CreateCommit(ctx context.Context, owner, repo string, req CreateCommitRequest) (*Commit, error)
	CreateBlob(ctx context.Context, owner, repo, content string) (*Blob, error)
	GetBlob(ctx context.Context, owner, repo, sha string) ([]byte, error)
	CreateTree(ctx context.Context, owner, repo, baseTree string, entries []TreeEntry) (*Tree, error)
	GetTree(ctx context.Context, owner, repo, treeish string, recursive bool) (*Tree, error)

	CreateGist(ctx context.Context, req CreateGistRequest) (*Gist, error)

	AddCollaborator(ctx context.Context, owner, repo, user, permission string) error
	RemoveCollaborator(ctx context.Context, owner, repo, user string) error
	CollaboratorPermission(ctx context.Context, owner, repo, user string) (string, error)
}

type Config struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

const (
	DefaultBaseURL = "https://api.github.com"
	DefaultTimeout = 10 * time.Second
)

func ConfigFromEnv() Config {
	return Config{
		BaseURL:    envutil.String("GITHUB_API_URL", DefaultBaseURL),
		Timeout:    time.Duration(envutil.Int("GITHUB_TIMEOUT_SECONDS", 10)) * time.Second,
		MaxRetries: envutil.Int("GITHUB_MAX_RETRIES", 2),
	}
}

func New(log *logger.Logger, token string, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("github: token required")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("github: base url: %w", err)
	}
	log = log.With("client", "GitHubClient")
	httpClient := &http.Client{
		Timeout:   cfg.Timeout,
		Transport: &retryTransport{log: log, base: http.DefaultTransport, maxRetries: cfg.MaxRetries},
	}
	gh := gogithub.NewClient(httpClient).WithAuthToken(strings.TrimSpace(token))
	gh.BaseURL = base
	return &client{log: log, gh: gh}, nil
}

type client struct {
	log *logger.Logger
	gh  *gogithub.Client
}

// --- domain views of the GitHub objects the provisioner reads ---

type User struct {
	Login string
	ID    int64
}

type Repository struct {
	ID            int64
	Name          string
	FullName      string
	HTMLURL       string
	CloneURL      string
	DefaultBranch string
	Private       bool
	IsTemplate    bool
	Owner         User
}

type CreateRepoRequest struct {
	Name        string
	Description string
	Private     bool
	AutoInit    bool
	IsTemplate  bool
}

type GenerateRepoRequest struct {
	Owner              string
	Name               string
	Description        string
	Private            bool
	IncludeAllBranches bool
}

type Ref struct {
	Ref    string
	Object struct {
		SHA  string
		Type string
	}
}

type Commit struct {
	SHA     string
	Message string
	Tree    struct {
		SHA string
	}
	Parents []struct {
		SHA string
	}
}

type CreateCommitRequest struct {
	Message string
	Tree    string
	Parents []string
}

type Blob struct {
	SHA  string
	Size int64
}

type TreeEntry struct {
	Path string
	Mode string
	Type string
	SHA  string
	Size int64
}

type Tree struct {
	SHA       string
	Tree      []TreeEntry
	Truncated bool
}

type GistFile struct {
	Content string
}

type CreateGistRequest struct {
	Description string
	Public      bool
	Files       map[string]GistFile
}

type Gist struct {
	ID      string
	HTMLURL string
}

// --- endpoints ---

func (c *client) CurrentUser(ctx context.Context) (*User, error) {
	u, _, err := c.gh.Users.Get(ctx, "")
	if err != nil {
		return nil, err
	}
	return &User{Login: u.GetLogin(), ID: u.GetID()}, nil
}

func (c *client) CreateOrgRepo(ctx context.Context, org string, req CreateRepoRequest) (*Repository, error) {
	repo, _, err := c.gh.Repositories.Create(ctx, org, &gogithub.Repository{
		Name:        ptr(req.Name),
		Description: optional(req.Description),
		Private:     ptr(req.Private),
		AutoInit:    ptr(req.AutoInit),
		IsTemplate:  ptr(req.IsTemplate),
	})
	if err != nil {
		return nil, err
	}
	return toRepository(repo), nil
}

func (c *client) GenerateFromTemplate(ctx context.Context, templateOwner, templateRepo string, req GenerateRepoRequest) (*Repository, error) {
	repo, _, err := c.gh.Repositories.CreateFromTemplate(ctx, templateOwner, templateRepo, &gogithub.TemplateRepoRequest{
		Owner:              ptr(req.Owner),
		Name:               ptr(req.Name),
		Description:        optional(req.Description),
		Private:            ptr(req.Private),
		IncludeAllBranches: ptr(req.IncludeAllBranches),
	})
	if err != nil {
		return nil, err
	}
	return toRepository(repo), nil
}

func (c *client) DeleteRepo(ctx context.Context, owner, repo string) error {
	_, err := c.gh.Repositories.Delete(ctx, owner, repo)
	return err
}

func (c *client) GetRef(ctx context.Context, owner, repo, ref string) (*Ref, error) {
	out, _, err := c.gh.Git.GetRef(ctx, owner, repo, ref)
	if err != nil {
		return nil, err
	}
	return toRef(out), nil
}

func (c *client) UpdateRef(ctx context.Context, owner, repo, ref, sha string, force bool) (*Ref, error) {
	out, _, err := c.gh.Git.UpdateRef(ctx, owner, repo, &gogithub.Reference{
		Ref:    ptr("refs/" + strings.TrimPrefix(ref, "refs/")),
		Object: &gogithub.GitObject{SHA: ptr(sha)},
	}, force)
	if err != nil {
		return nil, err
	}
	return toRef(out), nil
}

func (c *client) GetCommit(ctx context.Context, owner, repo, sha string) (*Commit, error) {
	out, _, err := c.gh.Git.GetCommit(ctx, owner, repo, sha)
	if err != nil {
		return nil, err
	}
	return toCommit(out), nil
}

func (c *client) CreateCommit(ctx context.Context, owner, repo string, req CreateCommitRequest) (*Commit, error) {
	in := &gogithub.Commit{
		Message: ptr(req.Message),
		Tree:    &gogithub.Tree{SHA: ptr(req.Tree)},
	}
	for _, p := range req.Parents {
		in.Parents = append(in.Parents, &gogithub.Commit{SHA: ptr(p)})
	}
	out, _, err := c.gh.Git.CreateCommit(ctx, owner, repo, in, nil)
	if err != nil {
		return nil, err
	}
	return toCommit(out), nil
}

func (c *client) CreateBlob(ctx context.Context, owner, repo, content string) (*Blob, error) {
	out, _, err := c.gh.Git.CreateBlob(ctx, owner, repo, &gogithub.Blob{
		Content:  ptr(content),
		Encoding: ptr("utf-8"),
	})
	if err != nil {
		return nil, err
	}
	return &Blob{SHA: out.GetSHA(), Size: int64(out.GetSize())}, nil
}

func (c *client) GetBlob(ctx context.Context, owner, repo, sha string) ([]byte, error) {
	raw, _, err := c.gh.Git.GetBlobRaw(ctx, owner, repo, sha)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func (c *client) CreateTree(ctx context.Context, owner, repo, baseTree string, entries []TreeEntry) (*Tree, error) {
	in := make([]*gogithub.TreeEntry, 0, len(entries))
	for _, e := range entries {
		in = append(in, &gogithub.TreeEntry{
			Path: ptr(e.Path),
			Mode: ptr(e.Mode),
			Type: ptr(e.Type),
			SHA:  optional(e.SHA),
		})
	}
	out, _, err := c.gh.Git.CreateTree(ctx, owner, repo, baseTree, in)
	if err != nil {
		return nil, err
	}
	return toTree(out), nil
}

func (c *client) GetTree(ctx context.Context, owner, repo, treeish string, recursive bool) (*Tree, error) {
	out, _, err := c.gh.Git.GetTree(ctx, owner, repo, treeish, recursive)
	if err != nil {
		return nil, err
	}
	return toTree(out), nil
}

func (c *client) CreateGist(ctx context.Context, req CreateGistRequest) (*Gist, error) {
	files := make(map[gogithub.GistFilename]gogithub.GistFile, len(req.Files))
	for name, f := range req.Files {
		files[gogithub.GistFilename(name)] = gogithub.GistFile{Content: ptr(f.Content)}
	}
	out, _, err := c.gh.Gists.Create(ctx, &gogithub.Gist{
		Description: ptr(req.Description),
		Public:      ptr(req.Public),
		Files:       files,
	})
	if err != nil {
		return nil, err
	}
	return &Gist{ID: out.GetID(), HTMLURL: out.GetHTMLURL()}, nil
}

func (c *client) AddCollaborator(ctx context.Context, owner, repo, user, permission string) error {
	_, _, err := c.gh.Repositories.AddCollaborator(ctx, owner, repo, user, &gogithub.RepositoryAddCollaboratorOptions{
		Permission: permission,
	})
	return err
}

func (c *client) RemoveCollaborator(ctx context.Context, owner, repo, user string) error {
	_, err := c.gh.Repositories.RemoveCollaborator(ctx, owner, repo, user)
	return err
}

// CollaboratorPermission returns admin, write, read or none.
func (c *client) CollaboratorPermission(ctx context.Context, owner, repo, user string) (string, error) {
	lvl, _, err := c.gh.Repositories.GetPermissionLevel(ctx, owner, repo, user)
	if StatusCode(err) == http.StatusNotFound {
		return "none", nil
	}
	if err != nil {
		return "", err
	}
	return lvl.GetPermission(), nil
}

func toRepository(r *gogithub.Repository) *Repository {
	return &Repository{
		ID:            r.GetID(),
		Name:          r.GetName(),
		FullName:      r.GetFullName(),
		HTMLURL:       r.GetHTMLURL(),
		CloneURL:      r.GetCloneURL(),
		DefaultBranch: r.GetDefaultBranch(),
		Private:       r.GetPrivate(),
		IsTemplate:    r.GetIsTemplate(),
		Owner:         User{Login: r.GetOwner().GetLogin(), ID: r.GetOwner().GetID()},
	}
}

func toRef(r *gogithub.Reference) *Ref {
	out := &Ref{Ref: r.GetRef()}
	out.Object.SHA = r.GetObject().GetSHA()
	out.Object.Type = r.GetObject().GetType()
	return out
}

func toCommit(c *gogithub.Commit) *Commit {
	out := &Commit{SHA: c.GetSHA(), Message: c.GetMessage()}
	out.Tree.SHA = c.GetTree().GetSHA()
	for _, p := range c.Parents {
		out.Parents = append(out.Parents, struct{ SHA string }{SHA: p.GetSHA()})
	}
	return out
}

func toTree(t *gogithub.Tree) *Tree {
	out := &Tree{SHA: t.GetSHA(), Truncated: t.GetTruncated()}
	for _, e := range t.Entries {
		out.Tree = append(out.Tree, TreeEntry{
			Path: e.GetPath(),
			Mode: e.GetMode(),
			Type: e.GetType(),
			SHA:  e.GetSHA(),
			Size: int64(e.GetSize()),
		})
	}
	return out
}

func ptr[T any](v T) *T { return &v }

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// ---------- errors ----------

// NewErrorResponse builds the error GitHub returns for a failed call. Fakes use it so callers see
// the same error type as against the real API.
func NewErrorResponse(method, path string, status int, message string, details ...string) *gogithub.ErrorResponse {
	u := &url.URL{Scheme: "https", Host: "api.github.com", Path: path}
	er := &gogithub.ErrorResponse{
		Response: &http.Response{StatusCode: status, Request: &http.Request{Method: method, URL: u}},
		Message:  message,
	}
	for _, d := range details {
		er.Errors = append(er.Errors, gogithub.Error{Message: d})
	}
	return er
}

// StatusCode returns the HTTP status carried by a GitHub error, or 0.
func StatusCode(err error) int {
	var er *gogithub.ErrorResponse
	if errors.As(err, &er) && er.Response != nil {
		return er.Response.StatusCode
	}
	var rl *gogithub.RateLimitError
	if errors.As(err, &rl) && rl.Response != nil {
		return rl.Response.StatusCode
	}
	return httpx.StatusCode(err)
}

// IsNameAlreadyExists reports the 422 GitHub returns when a repository name is taken.
func IsNameAlreadyExists(err error) bool {
	var er *gogithub.ErrorResponse
	if !errors.As(err, &er) || er.Response == nil || er.Response.StatusCode != http.StatusUnprocessableEntity {
		return false
	}
	if strings.Contains(strings.ToLower(er.Message), "already exists") {
		return true
	}
	for _, d := range er.Errors {
		if strings.Contains(strings.ToLower(d.Message), "already exists") {
			return true
		}
	}
	return false
}
