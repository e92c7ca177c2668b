package deploy

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
	"gorm.io/datatypes"

	taskrepos "github.com/ngm9/Utkrusht-task-sub000/internal/data/repos/tasks"
	"github.com/ngm9/Utkrusht-task-sub000/internal/data/repos/testutil"
	types "github.com/ngm9/Utkrusht-task-sub000/internal/domain/tasks"
	"github.com/ngm9/Utkrusht-task-sub000/internal/pkg/dbctx"
	"github.com/ngm9/Utkrusht-task-sub000/internal/platform/sshx"
)

type fakeConn struct {
	d *fakeDialer
}

func (c *fakeConn) UploadDir(ctx context.Context, localDir, remoteDir string) (int, error) {
	if c.d.uploadErr != nil {
		return 0, c.d.uploadErr
	}
	n := 0
	err := filepath.WalkDir(localDir, func(p string, e os.DirEntry, err error) error {
		if err != nil || e.IsDir() {
			return err
		}
		rel, _ := filepath.Rel(localDir, p)
		c.d.uploaded = append(c.d.uploaded, remoteDir+"/"+filepath.ToSlash(rel))
		n++
		return nil
	})
	return n, err
}

func (c *fakeConn) Run(ctx context.Context, cmd string) (sshx.RunResult, error) {
	c.d.commands = append(c.d.commands, cmd)
	stdout := "ok\n"
	if c.d.stdout != "" {
		stdout = c.d.stdout
	}
	return sshx.RunResult{Stdout: stdout, Stderr: c.d.stderr, ExitCode: c.d.exitCode}, nil
}

func (c *fakeConn) Close() error { return nil }

type fakeDialer struct {
	dialErr   error
	uploadErr error
	exitCode  int
	stdout    string
	stderr    string

	dialed   []string
	uploaded []string
	commands []string
}

func (d *fakeDialer) Dial(ctx context.Context, target types.DropletTarget, signer ssh.Signer) (Conn, error) {
	d.dialed = append(d.dialed, target.IP)
	if d.dialErr != nil {
		return nil, d.dialErr
	}
	return &fakeConn{d: d}, nil
}

type fakeCloner struct {
	files map[string]string
	urls  []string
}

func (c *fakeCloner) Clone(ctx context.Context, repoURL, branch, dir string) error {
	c.urls = append(c.urls, repoURL)
	for name, body := range c.files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func testSigner(t *testing.T) ssh.Signer {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	s, err := ssh.NewSignerFromKey(priv)
	require.NoError(t, err)
	return s
}

func seedTask(t *testing.T, repo taskrepos.TaskRepo, id, repoURL string) {
	t.Helper()
	blob := types.TaskBlob{Title: "Order ledger", Definitions: map[string]string{"a": "b"}}
	if repoURL != "" {
		blob.SetResource(types.ResourceGithubRepo, repoURL)
	}
	raw, err := blob.Encode()
	require.NoError(t, err)
	_, err = repo.Insert(dbctx.From(context.Background()), &types.TaskRecord{
		TaskID:    id,
		CreatedAt: time.Now().UTC(),
		TaskBlob:  raw,
		Criterias: datatypes.JSON(`[]`),
	})
	require.NoError(t, err)
}

type fixture struct {
	repo   taskrepos.TaskRepo
	dialer *fakeDialer
	cloner *fakeCloner
	uc     Usecases
}

func newFixture(t *testing.T, signer ssh.Signer, ips ...string) *fixture {
	t.Helper()
	log := testutil.Logger(t)
	f := &fixture{
		repo:   taskrepos.NewTaskRepo(testutil.DB(t), log, ""),
		dialer: &fakeDialer{},
		cloner: &fakeCloner{files: map[string]string{"run.sh": "echo up\n", "app/main.py": "print(1)\n"}},
	}
	f.uc = New(UsecasesDeps{
		Log:    log,
		Tasks:  f.repo,
		Agent:  NewAgent(log, f.dialer, signer),
		Pool:   NewPool(ips),
		Cloner: f.cloner,
		Now:    func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) },
	})
	return f
}

func TestDeployPicksFreeDropletAndMarksDeployed(t *testing.T) {
	f := newFixture(t, testSigner(t), "10.0.0.1", "10.0.0.2")
	ctx := context.Background()
	seedTask(t, f.repo, "busy", "https://github.com/acme/busy")
	require.NoError(t, f.repo.MarkDeployed(dbctx.From(ctx), "busy", "10.0.0.1", time.Now().UTC()))
	seedTask(t, f.repo, "task-1", "https://github.com/acme/order-ledger")

	out, err := f.uc.Deploy(ctx, DeployInput{TaskID: "task-1"})
	require.NoError(t, err)
	require.Equal(t, "10.0.0.2", out.DropletIP)
	require.True(t, out.Upload.OK())
	require.True(t, out.Execute.OK())
	require.Equal(t, 2, out.Upload.Files)
	require.Equal(t, []string{"https://github.com/acme/order-ledger"}, f.cloner.urls)
	require.ElementsMatch(t, []string{"/root/task/run.sh", "/root/task/app/main.py"}, f.dialer.uploaded)
	require.Equal(t, []string{"bash '/root/task/run.sh'"}, f.dialer.commands)

	got, err := f.repo.Get(dbctx.From(ctx), "task-1")
	require.NoError(t, err)
	require.True(t, got.IsDeployed)
	require.NotNil(t, got.DropletIP)
	require.Equal(t, "10.0.0.2", *got.DropletIP)
}

func TestDeployRefusesRedeployWithoutFlag(t *testing.T) {
	f := newFixture(t, testSigner(t), "10.0.0.1")
	ctx := context.Background()
	seedTask(t, f.repo, "task-1", "https://github.com/acme/order-ledger")
	require.NoError(t, f.repo.MarkDeployed(dbctx.From(ctx), "task-1", "10.0.0.1", time.Now().UTC()))

	_, err := f.uc.Deploy(ctx, DeployInput{TaskID: "task-1"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "--deploy-existing")
	require.Empty(t, f.dialer.dialed)

	out, err := f.uc.Deploy(ctx, DeployInput{TaskID: "task-1", DeployExisting: true})
	require.NoError(t, err)
	require.Equal(t, "10.0.0.1", out.DropletIP)
}

func TestDeployReportsTaggedFailures(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t, nil, "10.0.0.1")
	seedTask(t, f.repo, "task-1", "https://github.com/acme/order-ledger")
	out, err := f.uc.Deploy(ctx, DeployInput{TaskID: "task-1"})
	require.Error(t, err)
	require.Equal(t, KindKeyMissing, out.Upload.Kind)
	require.Empty(t, f.dialer.dialed)

	f = newFixture(t, testSigner(t), "10.0.0.1")
	seedTask(t, f.repo, "task-1", "https://github.com/acme/order-ledger")
	f.dialer.dialErr = errors.New("i/o timeout")
	out, err = f.uc.Deploy(ctx, DeployInput{TaskID: "task-1"})
	require.Error(t, err)
	require.Equal(t, KindConnectFailed, out.Upload.Kind)

	f = newFixture(t, testSigner(t), "10.0.0.1")
	seedTask(t, f.repo, "task-1", "https://github.com/acme/order-ledger")
	f.dialer.uploadErr = errors.New("permission denied")
	out, err = f.uc.Deploy(ctx, DeployInput{TaskID: "task-1"})
	require.Error(t, err)
	require.Equal(t, KindUploadFailed, out.Upload.Kind)

	f = newFixture(t, testSigner(t), "10.0.0.1")
	seedTask(t, f.repo, "task-1", "https://github.com/acme/order-ledger")
	f.dialer.exitCode = 3
	f.dialer.stderr = "docker: not found\n"
	out, err = f.uc.Deploy(ctx, DeployInput{TaskID: "task-1"})
	require.Error(t, err)
	require.Equal(t, KindScriptNonZero, out.Execute.Kind)
	require.Equal(t, 3, out.Execute.ExitCode)
	require.False(t, out.Execute.OK())
	require.Contains(t, err.Error(), "docker: not found")

	got, gerr := f.repo.Get(dbctx.From(ctx), "task-1")
	require.NoError(t, gerr)
	require.False(t, got.IsDeployed)
}

func TestDeployNeedsRepoAndScript(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testSigner(t), "10.0.0.1")
	seedTask(t, f.repo, "no-repo", "")
	_, err := f.uc.Deploy(ctx, DeployInput{TaskID: "no-repo"})
	require.Error(t, err)
	require.Contains(t, err.Error(), types.ResourceGithubRepo)

	seedTask(t, f.repo, "task-1", "https://github.com/acme/order-ledger")
	_, err = f.uc.Deploy(ctx, DeployInput{TaskID: "task-1", ScriptPath: "deploy/start.sh"})
	require.Error(t, err)
	require.Empty(t, f.dialer.dialed)
}

func TestResetUploadsScriptAndClearsDeployment(t *testing.T) {
	f := newFixture(t, testSigner(t))
	ctx := context.Background()
	seedTask(t, f.repo, "task-1", "https://github.com/acme/order-ledger")
	require.NoError(t, f.repo.MarkDeployed(dbctx.From(ctx), "task-1", "10.0.0.9", time.Now().UTC()))

	script := filepath.Join(t.TempDir(), "reset.sh")
	require.NoError(t, os.WriteFile(script, []byte("docker compose down\n"), 0o644))

	out, err := f.uc.Reset(ctx, ResetInput{TaskID: "task-1", DropletIP: "10.0.0.9", ScriptPath: script})
	require.NoError(t, err)
	require.True(t, out.Execute.OK())
	require.Equal(t, []string{"/root/reset/reset.sh"}, f.dialer.uploaded)
	require.Equal(t, []string{"bash '/root/reset/reset.sh'"}, f.dialer.commands)

	got, err := f.repo.Get(dbctx.From(ctx), "task-1")
	require.NoError(t, err)
	require.False(t, got.IsDeployed)
	require.Nil(t, got.DropletIP)
}

func TestPoolPick(t *testing.T) {
	p := NewPool([]string{" 10.0.0.1", "10.0.0.2", "10.0.0.1", ""})
	if p.Len() != 2 {
		t.Fatalf("Len: want=2 got=%d", p.Len())
	}
	got, err := p.Pick(map[string]bool{"10.0.0.1": true})
	if err != nil || got.IP != "10.0.0.2" {
		t.Fatalf("Pick: want=10.0.0.2 got=%q err=%v", got.IP, err)
	}
	if _, err := p.Pick(map[string]bool{"10.0.0.1": true, "10.0.0.2": true}); err == nil {
		t.Fatalf("Pick: want error when every droplet is in use")
	}
	if _, err := NewPool(nil).Pick(nil); err == nil {
		t.Fatalf("Pick: want error on empty pool")
	}
}
