package deploy

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/crypto/ssh"

	types "github.com/ngm9/Utkrusht-task-sub000/internal/domain/tasks"
	"github.com/ngm9/Utkrusht-task-sub000/internal/platform/logger"
	"github.com/ngm9/Utkrusht-task-sub000/internal/platform/sshx"
)

type ResultKind string

const (
	KindOK            ResultKind = "ok"
	KindKeyMissing    ResultKind = "key_missing"
	KindConnectFailed ResultKind = "connect_failed"
	KindUploadFailed  ResultKind = "upload_failed"
	KindScriptNonZero ResultKind = "script_non_zero"
)

// Result is the outcome of one remote operation.
type Result struct {
	Kind     ResultKind
	ExitCode int
	Stdout   string
	Stderr   string
	Files    int
	Err      error
}

func (r Result) OK() bool { return r.Kind == KindOK }

// String summarizes a failed result for logs and banners.
func (r Result) String() string {
	switch r.Kind {
	case KindOK:
		return ""
	case KindScriptNonZero:
		return fmt.Sprintf("%s: exit %d: %s", r.Kind, r.ExitCode, strings.TrimSpace(lastLines(r.Stderr, 5)))
	default:
		if r.Err != nil {
			return fmt.Sprintf("%s: %v", r.Kind, r.Err)
		}
		return string(r.Kind)
	}
}

// Conn is an open session to one droplet.
type Conn interface {
	UploadDir(ctx context.Context, localDir, remoteDir string) (int, error)
	Run(ctx context.Context, cmd string) (sshx.RunResult, error)
	Close() error
}

// Dialer opens a Conn to a droplet.
type Dialer interface {
	Dial(ctx context.Context, target types.DropletTarget, signer ssh.Signer) (Conn, error)
}

type sshDialer struct {
	log *logger.Logger
	cfg sshx.Config
}

func NewSSHDialer(log *logger.Logger, cfg sshx.Config) Dialer {
	return &sshDialer{log: log, cfg: cfg}
}

func (d *sshDialer) Dial(ctx context.Context, target types.DropletTarget, signer ssh.Signer) (Conn, error) {
	c, err := sshx.Dial(ctx, d.log, target.IP, signer, d.cfg)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Agent uploads directories to droplets and runs scripts on them. It never returns errors;
// every failure is a tagged Result.
type Agent struct {
	log    *logger.Logger
	dialer Dialer
	signer ssh.Signer
}

func NewAgent(log *logger.Logger, dialer Dialer, signer ssh.Signer) *Agent {
	return &Agent{log: log.With("service", "DeploymentAgent"), dialer: dialer, signer: signer}
}

func (a *Agent) connect(ctx context.Context, target types.DropletTarget) (Conn, *Result) {
	if a.signer == nil {
		a.log.Error("ssh key missing", "ip", target.IP)
		return nil, &Result{Kind: KindKeyMissing, Err: fmt.Errorf("DROPLET_SSH_PRIVATE_KEY not loaded")}
	}
	conn, err := a.dialer.Dial(ctx, target, a.signer)
	if err != nil {
		a.log.Error("ssh connect failed", "ip", target.IP, "error", err)
		return nil, &Result{Kind: KindConnectFailed, Err: err}
	}
	return conn, nil
}

// Upload copies localDir to remoteDir on target.
func (a *Agent) Upload(ctx context.Context, target types.DropletTarget, localDir, remoteDir string) Result {
	conn, failed := a.connect(ctx, target)
	if failed != nil {
		return *failed
	}
	defer conn.Close()

	n, err := conn.UploadDir(ctx, localDir, remoteDir)
	if err != nil {
		a.log.Error("upload failed", "ip", target.IP, "remote_dir", remoteDir, "files", n, "error", err)
		return Result{Kind: KindUploadFailed, Files: n, Err: err}
	}
	a.log.Info("upload complete", "ip", target.IP, "remote_dir", remoteDir, "files", n)
	return Result{Kind: KindOK, Files: n}
}

// Execute runs `bash scriptPath` on target. Both output streams are logged in full whatever the outcome.
func (a *Agent) Execute(ctx context.Context, target types.DropletTarget, scriptPath string) Result {
	conn, failed := a.connect(ctx, target)
	if failed != nil {
		return *failed
	}
	defer conn.Close()

	log := a.log.With("ip", target.IP, "script", scriptPath)
	log.Info("executing script")
	res, err := conn.Run(ctx, "bash "+sshx.Quote(scriptPath))
	if err != nil {
		log.Error("script session failed", "exit_code", res.ExitCode, "stdout", res.Stdout, "stderr", res.Stderr, "error", err)
		return Result{Kind: KindConnectFailed, Stdout: res.Stdout, Stderr: res.Stderr, ExitCode: res.ExitCode, Err: err}
	}
	out := Result{Kind: KindOK, ExitCode: res.ExitCode, Stdout: res.Stdout, Stderr: res.Stderr}
	if res.ExitCode != 0 {
		out.Kind = KindScriptNonZero
		log.Error("script exited non-zero", "exit_code", res.ExitCode, "stdout", res.Stdout, "stderr", res.Stderr)
		return out
	}
	log.Info("script finished", "exit_code", res.ExitCode, "stdout", res.Stdout, "stderr", res.Stderr)
	return out
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
