// Package githubtest provides an in-memory github.Client for tests.
package githubtest

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ngm9/Utkrusht-task-sub000/internal/platform/github"
)

// Fake is an in-memory github.Client that records every mutating call. Created repositories
// get an initial commit on main, as auto_init does.
type Fake struct {
	User      string
	UserErr   error
	CreateErr func(name string) error
	Created   []string

	Refs    map[string]string // "owner/repo:heads/main" -> sha
	Commits map[string]*github.Commit
	Blobs   map[string]string
	Trees   map[string]*github.Tree // treeish -> tree (for GetTree)

	BlobCalls   int
	TreeCalls   []string // base trees
	CommitCalls []github.CreateCommitRequest
	RefUpdates  []string
	TreeErr     error

	Gists   []github.CreateGistRequest
	GistErr error
	Perms   map[string]string
	Removed []string
	Deleted []string
	NextSHA int
}

func New() *Fake {
	return &Fake{
		User:    "bot",
		Refs:    map[string]string{},
		Commits: map[string]*github.Commit{},
		Blobs:   map[string]string{},
		Trees:   map[string]*github.Tree{},
		Perms:   map[string]string{},
	}
}

func (f *Fake) sha() string {
	f.NextSHA++
	return "sha" + strconv.Itoa(f.NextSHA)
}

// SeedBranch gives owner/repo an initial commit on branch and returns its sha.
func (f *Fake) SeedBranch(owner, repo, branch string) string {
	key := owner + "/" + repo + ":heads/" + branch
	if sha, ok := f.Refs[key]; ok {
		return sha
	}
	c := &github.Commit{SHA: f.sha(), Message: "Initial commit"}
	c.Tree.SHA = f.sha()
	f.Commits[c.SHA] = c
	f.Refs[key] = c.SHA
	return c.SHA
}

func notFound(what string) error {
	return github.NewErrorResponse(http.MethodGet, what, http.StatusNotFound, "Not Found")
}

func (f *Fake) CurrentUser(ctx context.Context) (*github.User, error) {
	if f.UserErr != nil {
		return nil, f.UserErr
	}
	return &github.User{Login: f.User}, nil
}

func (f *Fake) CreateOrgRepo(ctx context.Context, org string, req github.CreateRepoRequest) (*github.Repository, error) {
	f.Created = append(f.Created, req.Name)
	if f.CreateErr != nil {
		if err := f.CreateErr(req.Name); err != nil {
			return nil, err
		}
	}
	f.SeedBranch(org, req.Name, "main")
	return &github.Repository{Name: req.Name, HTMLURL: "https://github.com/" + org + "/" + req.Name, IsTemplate: req.IsTemplate, Private: req.Private}, nil
}

func (f *Fake) GenerateFromTemplate(ctx context.Context, templateOwner, templateRepo string, req github.GenerateRepoRequest) (*github.Repository, error) {
	f.Created = append(f.Created, templateOwner+"/"+templateRepo+"->"+req.Name)
	if f.CreateErr != nil {
		if err := f.CreateErr(req.Name); err != nil {
			return nil, err
		}
	}
	f.SeedBranch(req.Owner, req.Name, "main")
	return &github.Repository{Name: req.Name, HTMLURL: "https://github.com/" + req.Owner + "/" + req.Name}, nil
}

func (f *Fake) DeleteRepo(ctx context.Context, owner, repo string) error {
	f.Deleted = append(f.Deleted, owner+"/"+repo)
	return nil
}

func (f *Fake) GetRef(ctx context.Context, owner, repo, ref string) (*github.Ref, error) {
	sha, ok := f.Refs[owner+"/"+repo+":"+ref]
	if !ok {
		return nil, notFound(ref)
	}
	out := &github.Ref{Ref: "refs/" + ref}
	out.Object.SHA = sha
	return out, nil
}

func (f *Fake) UpdateRef(ctx context.Context, owner, repo, ref, sha string, force bool) (*github.Ref, error) {
	f.RefUpdates = append(f.RefUpdates, sha)
	f.Refs[owner+"/"+repo+":"+ref] = sha
	out := &github.Ref{Ref: "refs/" + ref}
	out.Object.SHA = sha
	return out, nil
}

func (f *Fake) GetCommit(ctx context.Context, owner, repo, sha string) (*github.Commit, error) {
	c, ok := f.Commits[sha]
	if !ok {
		return nil, notFound(sha)
	}
	return c, nil
}

func (f *Fake) CreateCommit(ctx context.Context, owner, repo string, req github.CreateCommitRequest) (*github.Commit, error) {
	f.CommitCalls = append(f.CommitCalls, req)
	c := &github.Commit{SHA: f.sha(), Message: req.Message}
	c.Tree.SHA = req.Tree
	for _, p := range req.Parents {
		c.Parents = append(c.Parents, struct{ SHA string }{SHA: p})
	}
	f.Commits[c.SHA] = c
	return c, nil
}

func (f *Fake) CreateBlob(ctx context.Context, owner, repo, content string) (*github.Blob, error) {
	f.BlobCalls++
	sha := f.sha()
	f.Blobs[sha] = content
	return &github.Blob{SHA: sha}, nil
}

func (f *Fake) GetBlob(ctx context.Context, owner, repo, sha string) ([]byte, error) {
	c, ok := f.Blobs[sha]
	if !ok {
		return nil, notFound(sha)
	}
	return []byte(c), nil
}

func (f *Fake) CreateTree(ctx context.Context, owner, repo, baseTree string, entries []github.TreeEntry) (*github.Tree, error) {
	f.TreeCalls = append(f.TreeCalls, baseTree)
	if f.TreeErr != nil {
		return nil, f.TreeErr
	}
	return &github.Tree{SHA: f.sha(), Tree: entries}, nil
}

func (f *Fake) GetTree(ctx context.Context, owner, repo, treeish string, recursive bool) (*github.Tree, error) {
	t, ok := f.Trees[treeish]
	if !ok {
		return nil, notFound(treeish)
	}
	return t, nil
}

func (f *Fake) CreateGist(ctx context.Context, req github.CreateGistRequest) (*github.Gist, error) {
	if f.GistErr != nil {
		return nil, f.GistErr
	}
	f.Gists = append(f.Gists, req)
	return &github.Gist{ID: "g1", HTMLURL: fmt.Sprintf("https://gist.github.com/%s/g1", f.User)}, nil
}

func (f *Fake) AddCollaborator(ctx context.Context, owner, repo, user, permission string) error {
	f.Perms[owner+"/"+repo+":"+user] = permission
	return nil
}

func (f *Fake) RemoveCollaborator(ctx context.Context, owner, repo, user string) error {
	f.Removed = append(f.Removed, user)
	delete(f.Perms, owner+"/"+repo+":"+user)
	return nil
}

func (f *Fake) CollaboratorPermission(ctx context.Context, owner, repo, user string) (string, error) {
	if p, ok := f.Perms[owner+"/"+repo+":"+user]; ok {
		return p, nil
	}
	return "none", nil
}
