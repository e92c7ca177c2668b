package provision

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ngm9/Utkrusht-task-sub000/internal/platform/github"
	"github.com/ngm9/Utkrusht-task-sub000/internal/platform/github/githubtest"
	"github.com/ngm9/Utkrusht-task-sub000/internal/platform/logger"
)

func newTestProvisioner(t *testing.T, repos, gists *githubtest.Fake) *Provisioner {
	t.Helper()
	var gistClient github.Client
	if gists != nil {
		gistClient = gists
	}
	p, err := New(logger.Nop(), repos, gistClient, Config{Owner: "acme", TemplateRepo: "task-template"})
	require.NoError(t, err)
	n := 0
	p.suffix = func() string {
		n++
		return []string{"a1b2", "c3d4", "e5f6"}[(n-1)%3]
	}
	p.refWait = 0
	return p
}

var slugCharset = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Kafka Order Consumer":     "kafka-order-consumer",
		"  --Java/Spring  Boot!! ": "java-spring-boot",
		"C++ & Go (ADVANCED)":      "c-go-advanced",
		"already-a-slug":           "already-a-slug",
	}
	for in, want := range cases {
		got := Slugify(in)
		if got != want {
			t.Fatalf("Slugify(%q): want=%q got=%q", in, want, got)
		}
		if Slugify(got) != got {
			t.Fatalf("Slugify not idempotent for %q", in)
		}
		if !slugCharset.MatchString(got) {
			t.Fatalf("Slugify(%q)=%q has invalid characters", in, got)
		}
	}
	if Slugify("!!!") != "" {
		t.Fatalf("Slugify of punctuation should be empty")
	}
}

func nameTaken() error {
	return github.NewErrorResponse(http.MethodPost, "/orgs/acme/repos", http.StatusUnprocessableEntity,
		"Repository creation failed.", "name already exists on this account")
}

func TestCreateRepoRetriesTakenNamesAtMostThreeTimes(t *testing.T) {
	gh := githubtest.New()
	gh.CreateErr = func(string) error { return nameTaken() }
	p := newTestProvisioner(t, gh, nil)

	_, err := p.CreateRepo(context.Background(), "Order Ledger", RepoOptions{Private: true})
	var rce *RepoCreationError
	require.True(t, errors.As(err, &rce), "want RepoCreationError, got %v", err)
	require.Equal(t, []string{"order-ledger", "order-ledger-a1b2", "order-ledger-c3d4"}, gh.Created)
	require.Len(t, rce.Attempts, MaxRepoNameAttempts)
}

func TestCreateRepoSucceedsWithSuffix(t *testing.T) {
	gh := githubtest.New()
	gh.CreateErr = func(name string) error {
		if name == "order-ledger" {
			return nameTaken()
		}
		return nil
	}
	p := newTestProvisioner(t, gh, nil)

	repo, err := p.CreateRepo(context.Background(), "Order Ledger", RepoOptions{})
	require.NoError(t, err)
	require.Equal(t, "order-ledger-a1b2", repo.Name)
}

func TestCreateRepoOtherErrorDoesNotRetry(t *testing.T) {
	gh := githubtest.New()
	gh.CreateErr = func(string) error {
		return github.NewErrorResponse(http.MethodPost, "/orgs/acme/repos", http.StatusForbidden, "Resource not accessible")
	}
	p := newTestProvisioner(t, gh, nil)

	_, err := p.CreateRepo(context.Background(), "Order Ledger", RepoOptions{})
	var rce *RepoCreationError
	require.True(t, errors.As(err, &rce))
	require.Len(t, gh.Created, 1)
}

func TestCreateRepoFromTemplateUsesTemplate(t *testing.T) {
	gh := githubtest.New()
	p := newTestProvisioner(t, gh, nil)

	_, err := p.CreateRepoFromTemplate(context.Background(), "Order Ledger", "")
	require.NoError(t, err)
	require.Equal(t, []string{"acme/task-template->order-ledger"}, gh.Created)

	tpl, err := p.CreateTemplateRepo(context.Background(), "Base Template", "")
	require.NoError(t, err)
	require.True(t, tpl.IsTemplate)
	require.True(t, tpl.Private)
}

func seedRepo(gh *githubtest.Fake) string {
	head := &github.Commit{SHA: "head0"}
	head.Tree.SHA = "tree0"
	gh.Commits["head0"] = head
	gh.Refs["acme/order-ledger:heads/main"] = "head0"
	return "head0"
}

func TestCommitFilesIsOneTreeOneCommit(t *testing.T) {
	gh := githubtest.New()
	oldHead := seedRepo(gh)
	p := newTestProvisioner(t, gh, nil)

	files := map[string]any{
		"/README.md":       "# Order ledger",
		"src/app.py":       "print('hi')\n",
		"config/app.json":  map[string]any{"port": float64(8080)},
		"docker/.env.test": 42,
	}
	commit, err := p.CommitFiles(context.Background(), "acme", "order-ledger", "main", files, "Initial task files")
	require.NoError(t, err)

	require.Equal(t, len(files), gh.BlobCalls)
	require.Equal(t, []string{"tree0"}, gh.TreeCalls, "exactly one tree on top of the head tree")
	require.Len(t, gh.CommitCalls, 1)
	require.Equal(t, []string{oldHead}, gh.CommitCalls[0].Parents)
	require.Equal(t, []string{commit.SHA}, gh.RefUpdates)
	require.Equal(t, commit.SHA, gh.Refs["acme/order-ledger:heads/main"])

	contents := map[string]bool{}
	for _, c := range gh.Blobs {
		contents[c] = true
	}
	require.True(t, contents["{\n  \"port\": 8080\n}"], "objects become indented JSON")
	require.True(t, contents["42"])
}

func TestCommitFilesFailureLeavesRefUntouched(t *testing.T) {
	gh := githubtest.New()
	seedRepo(gh)
	gh.TreeErr = errors.New("tree rejected")
	p := newTestProvisioner(t, gh, nil)

	_, err := p.CommitFiles(context.Background(), "acme", "order-ledger", "main", map[string]any{"a.txt": "a"}, "msg")
	require.Error(t, err)
	require.Empty(t, gh.CommitCalls)
	require.Empty(t, gh.RefUpdates)
	require.Equal(t, "head0", gh.Refs["acme/order-ledger:heads/main"])
}

func TestCommitFilesMissingBranchFails(t *testing.T) {
	gh := githubtest.New()
	p := newTestProvisioner(t, gh, nil)
	_, err := p.CommitFiles(context.Background(), "acme", "order-ledger", "main", map[string]any{"a.txt": "a"}, "msg")
	require.Error(t, err)
	require.Zero(t, gh.BlobCalls)
}

func TestParseRepoURL(t *testing.T) {
	for _, in := range []string{
		"https://github.com/acme/order-ledger",
		"https://github.com/acme/order-ledger.git",
		"git@github.com:acme/order-ledger.git",
		"acme/order-ledger",
	} {
		owner, repo, err := ParseRepoURL(in)
		if err != nil || owner != "acme" || repo != "order-ledger" {
			t.Fatalf("ParseRepoURL(%q): owner=%q repo=%q err=%v", in, owner, repo, err)
		}
	}
	if _, _, err := ParseRepoURL("order-ledger"); err == nil {
		t.Fatalf("ParseRepoURL: want error for bare name")
	}
}

func TestGistFileName(t *testing.T) {
	if got := GistFileName("src/app/main.py"); got != "src_app_main.py" {
		t.Fatalf("GistFileName: got=%q", got)
	}
	long := strings.Repeat("d/", 60) + "handler.go"
	got := GistFileName(long)
	if len(got) != maxGistNameLen || !strings.HasSuffix(got, ".go") {
		t.Fatalf("GistFileName long: len=%d got=%q", len(got), got)
	}
}

func seedGistRepo(gh *githubtest.Fake) {
	add := func(path, content string, size int64) github.TreeEntry {
		sha := "b-" + path
		gh.Blobs[sha] = content
		return github.TreeEntry{Path: path, Type: "blob", SHA: sha, Size: size}
	}
	gh.Trees["main"] = &github.Tree{Tree: []github.TreeEntry{
		{Path: "src", Type: "tree"},
		add("README.md", "# Orders", 8),
		add("src/app.py", "print('hi')", 11),
		add(".gitignore", "*.pyc", 5),
		add("logo.png", "PNG", 3),
		add("node_modules/x/index.js", "module.exports = 1", 18),
		add(".venv/lib.py", "x = 1", 5),
		add(".github/workflows/ci.yml", "on: push", 8),
		add("big.sql", "SELECT 1;", 200*1024),
		add("empty.txt", "  \n", 3),
		add(".env.example", "PORT=8000", 9),
		add("!!notes.md", "todo", 4),
	}}
}

func TestCreateGistFromRepoFiltersAndFlattens(t *testing.T) {
	repos := githubtest.New()
	seedGistRepo(repos)
	gists := githubtest.New()
	p := newTestProvisioner(t, repos, gists)

	url := p.CreateGistFromRepo(context.Background(), "https://github.com/acme/order-ledger.git", "develop")
	require.Equal(t, "https://gist.github.com/bot/g1", url)
	require.Len(t, gists.Gists, 1)

	files := gists.Gists[0].Files
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	require.ElementsMatch(t, []string{
		folderStructureFile, "README.md", "src_app.py", ".github_workflows_ci.yml", ".env.example", "_!!notes.md",
	}, names)
	sort.Strings(names)
	require.Equal(t, folderStructureFile, names[0], "folder structure must sort first")
	require.Contains(t, files[folderStructureFile].Content, "order-ledger/")
	require.Contains(t, files[folderStructureFile].Content, "app.py")
	require.Contains(t, gists.Gists[0].Description, "@main")
}

func TestCreateGistFromRepoSoftFails(t *testing.T) {
	repos := githubtest.New()
	seedGistRepo(repos)
	gists := githubtest.New()
	gists.UserErr = errors.New("bad credentials")
	p := newTestProvisioner(t, repos, gists)
	require.Equal(t, "", p.CreateGistFromRepo(context.Background(), "acme/order-ledger", "main"))

	gists.UserErr = nil
	gists.GistErr = errors.New("http 500")
	require.Equal(t, "", p.CreateGistFromRepo(context.Background(), "acme/order-ledger", "main"))

	require.Equal(t, "", p.CreateGistFromRepo(context.Background(), "not a url", "main"))

	noGist := newTestProvisioner(t, repos, nil)
	require.Equal(t, "", noGist.CreateGistFromRepo(context.Background(), "acme/order-ledger", "main"))
}

func TestGistFileCap(t *testing.T) {
	repos := githubtest.New()
	seedGistRepo(repos)
	gists := githubtest.New()
	p := newTestProvisioner(t, repos, gists)
	p.cfg.Gist.MaxFiles = 1

	require.NotEmpty(t, p.CreateGistFromRepo(context.Background(), "acme/order-ledger", "main"))
	require.Len(t, gists.Gists[0].Files, 2, "one repo file plus the folder structure")
}

func TestSetRepoAccess(t *testing.T) {
	gh := githubtest.New()
	p := newTestProvisioner(t, gh, nil)

	require.NoError(t, p.SetRepoAccess(context.Background(), "acme", "order-ledger", "candidate", "read"))
	perm, err := p.RepoAccess(context.Background(), "acme", "order-ledger", "candidate")
	require.NoError(t, err)
	require.Equal(t, "pull", perm)

	require.NoError(t, p.SetRepoAccess(context.Background(), "acme", "order-ledger", "candidate", "none"))
	perm, _ = p.RepoAccess(context.Background(), "acme", "order-ledger", "candidate")
	require.Equal(t, "none", perm)

	require.Error(t, p.SetRepoAccess(context.Background(), "acme", "order-ledger", "candidate", "owner"))
}
