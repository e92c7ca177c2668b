// Package sshx runs commands on and copies files to remote hosts over SSH and SFTP.
package sshx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/ngm9/Utkrusht-task-sub000/internal/platform/logger"
)

type Config struct {
	User           string
	Port           int
	ConnectTimeout time.Duration
}

const DefaultConnectTimeout = 30 * time.Second

// killGrace bounds how long a cancelled Run waits for the remote side to close the session
// before the whole connection is dropped.
const killGrace = 5 * time.Second

func (c Config) withDefaults() Config {
	if c.User == "" {
		c.User = "root"
	}
	if c.Port <= 0 {
		c.Port = 22
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	return c
}

// Client is one authenticated SSH connection.
type Client struct {
	log  *logger.Logger
	host string
	conn *ssh.Client
}

// Dial connects to host with signer. Host keys are not verified: droplets are recreated
// often and have no stable key to pin.
func Dial(ctx context.Context, log *logger.Logger, host string, signer ssh.Signer, cfg Config) (*Client, error) {
	if signer == nil {
		return nil, errors.New("ssh signer required")
	}
	cfg = cfg.withDefaults()
	addr := net.JoinHostPort(host, strconv.Itoa(cfg.Port))

	sshCfg := &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         cfg.ConnectTimeout,
	}

	dialer := net.Dialer{Timeout: cfg.ConnectTimeout}
	netConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	_ = netConn.SetDeadline(time.Now().Add(cfg.ConnectTimeout))
	c, chans, reqs, err := ssh.NewClientConn(netConn, addr, sshCfg)
	if err != nil {
		_ = netConn.Close()
		return nil, fmt.Errorf("ssh handshake %s: %w", addr, err)
	}
	_ = netConn.SetDeadline(time.Time{})

	return &Client{
		log:  log.With("client", "SSHClient", "host", host),
		host: host,
		conn: ssh.NewClient(c, chans, reqs),
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// RunResult is the outcome of a remote command that ran to completion.
type RunResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Run executes cmd in a new session. A non-zero exit is reported in RunResult, not as an error.
func (c *Client) Run(ctx context.Context, cmd string) (RunResult, error) {
	sess, err := c.conn.NewSession()
	if err != nil {
		return RunResult{}, fmt.Errorf("open session: %w", err)
	}
	defer sess.Close()

	var stdout, stderr bytes.Buffer
	sess.Stdout = &stdout
	sess.Stderr = &stderr

	done := make(chan error, 1)
	go func() { done <- sess.Run(cmd) }()

	select {
	case <-ctx.Done():
		_ = sess.Signal(ssh.SIGKILL)
		_ = sess.Close()
		// The buffers are owned by the session copiers until Run returns.
		select {
		case <-done:
		case <-time.After(killGrace):
			_ = c.conn.Close()
			<-done
		}
		return RunResult{Stdout: stdout.String(), Stderr: stderr.String(), ExitCode: -1}, ctx.Err()
	case err = <-done:
	}

	res := RunResult{Stdout: stdout.String(), Stderr: stderr.String()}
	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitStatus()
		return res, nil
	}
	if err != nil {
		return res, fmt.Errorf("run %q: %w", cmd, err)
	}
	return res, nil
}

// UploadDir copies every regular file under localDir to remoteDir, skipping .git. Shell
// scripts are made executable. It returns the number of files copied.
func (c *Client) UploadDir(ctx context.Context, localDir, remoteDir string) (int, error) {
	if res, err := c.Run(ctx, "mkdir -p "+Quote(remoteDir)); err != nil || res.ExitCode != 0 {
		if err == nil {
			err = fmt.Errorf("exit %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr))
		}
		return 0, fmt.Errorf("create %s: %w", remoteDir, err)
	}

	client, err := sftp.NewClient(c.conn)
	if err != nil {
		return 0, fmt.Errorf("start sftp: %w", err)
	}
	defer client.Close()

	var scripts []string
	count := 0
	err = filepath.WalkDir(localDir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(localDir, p)
		if err != nil {
			return err
		}
		remote := path.Join(remoteDir, filepath.ToSlash(rel))
		if err := client.MkdirAll(path.Dir(remote)); err != nil {
			return fmt.Errorf("mkdir %s: %w", path.Dir(remote), err)
		}
		if err := copyFile(client, p, remote); err != nil {
			return err
		}
		if strings.HasSuffix(remote, ".sh") {
			scripts = append(scripts, remote)
		}
		count++
		return nil
	})
	if err != nil {
		return count, err
	}

	if len(scripts) > 0 {
		quoted := make([]string, len(scripts))
		for i, s := range scripts {
			quoted[i] = Quote(s)
		}
		res, err := c.Run(ctx, "chmod +x "+strings.Join(quoted, " "))
		if err != nil {
			return count, err
		}
		if res.ExitCode != 0 {
			return count, fmt.Errorf("chmod scripts: exit %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr))
		}
	}
	c.log.Info("directory uploaded", "local_dir", localDir, "remote_dir", remoteDir, "files", count)
	return count, nil
}

func copyFile(client *sftp.Client, local, remote string) error {
	src, err := os.Open(local)
	if err != nil {
		return err
	}
	defer src.Close()
	dst, err := client.Create(remote)
	if err != nil {
		return fmt.Errorf("create %s: %w", remote, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return fmt.Errorf("write %s: %w", remote, err)
	}
	return dst.Close()
}

// Quote single-quotes s for a POSIX shell.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
