package sshx

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pkg/sftp"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	"github.com/ngm9/Utkrusht-task-sub000/internal/platform/logger"
)

// testServer is a loopback SSH server that runs exec requests through the local sh
// and serves the sftp subsystem against the local filesystem.
type testServer struct {
	port   int
	signer ssh.Signer

	mu    sync.Mutex
	execs []string
}

func newTestSigner(t *testing.T) ssh.Signer {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	s, err := ssh.NewSignerFromKey(priv)
	require.NoError(t, err)
	return s
}

func startTestServer(t *testing.T) *testServer {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	s := &testServer{signer: newTestSigner(t)}
	allowed := s.signer.PublicKey().Marshal()

	cfg := &ssh.ServerConfig{
		PublicKeyCallback: func(meta ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			if meta.User() == "root" && bytes.Equal(key.Marshal(), allowed) {
				return nil, nil
			}
			return nil, errors.New("unknown key")
		},
	}
	cfg.AddHostKey(newTestSigner(t))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })
	s.port = ln.Addr().(*net.TCPAddr).Port

	go func() {
		for {
			nc, err := ln.Accept()
			if err != nil {
				return
			}
			go s.serveConn(nc, cfg)
		}
	}()
	return s
}

func (s *testServer) serveConn(nc net.Conn, cfg *ssh.ServerConfig) {
	sconn, chans, reqs, err := ssh.NewServerConn(nc, cfg)
	if err != nil {
		_ = nc.Close()
		return
	}
	defer sconn.Close()
	go ssh.DiscardRequests(reqs)
	for nch := range chans {
		if nch.ChannelType() != "session" {
			_ = nch.Reject(ssh.UnknownChannelType, "session only")
			continue
		}
		ch, creqs, err := nch.Accept()
		if err != nil {
			continue
		}
		go s.serveSession(ch, creqs)
	}
}

func (s *testServer) serveSession(ch ssh.Channel, reqs <-chan *ssh.Request) {
	defer ch.Close()
	for req := range reqs {
		switch req.Type {
		case "exec":
			var payload struct{ Command string }
			if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
				_ = req.Reply(false, nil)
				continue
			}
			_ = req.Reply(true, nil)
			s.exec(ch, reqs, payload.Command)
			return
		case "subsystem":
			var payload struct{ Name string }
			if err := ssh.Unmarshal(req.Payload, &payload); err != nil || payload.Name != "sftp" {
				_ = req.Reply(false, nil)
				continue
			}
			_ = req.Reply(true, nil)
			srv, err := sftp.NewServer(ch)
			if err != nil {
				return
			}
			_ = srv.Serve()
			return
		default:
			if req.WantReply {
				_ = req.Reply(false, nil)
			}
		}
	}
}

func (s *testServer) exec(ch ssh.Channel, reqs <-chan *ssh.Request, command string) {
	s.mu.Lock()
	s.execs = append(s.execs, command)
	s.mu.Unlock()

	cmd := exec.Command("sh", "-c", command)
	cmd.Stdout = ch
	cmd.Stderr = ch.Stderr()
	cmd.WaitDelay = 200 * time.Millisecond
	if err := cmd.Start(); err != nil {
		sendExitStatus(ch, 127)
		return
	}
	go func() {
		for req := range reqs {
			if req.Type == "signal" {
				_ = cmd.Process.Kill()
			}
			if req.WantReply {
				_ = req.Reply(false, nil)
			}
		}
	}()

	code := 0
	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		code = 1
		if errors.As(err, &exitErr) && exitErr.ExitCode() > 0 {
			code = exitErr.ExitCode()
		} else if errors.As(err, &exitErr) {
			code = 137
		}
	}
	sendExitStatus(ch, code)
}

func sendExitStatus(ch ssh.Channel, code int) {
	_, _ = ch.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{uint32(code)}))
}

func (s *testServer) commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.execs...)
}

func (s *testServer) dial(t *testing.T) *Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := Dial(ctx, logger.Nop(), "127.0.0.1", s.signer, Config{Port: s.port, ConnectTimeout: 5 * time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestDialRejectsUnknownKey(t *testing.T) {
	s := startTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := Dial(ctx, logger.Nop(), "127.0.0.1", newTestSigner(t), Config{Port: s.port, ConnectTimeout: 5 * time.Second})
	require.Error(t, err)
	require.Contains(t, err.Error(), "ssh handshake")
}

func TestRunReportsExitCodeAndStreams(t *testing.T) {
	c := startTestServer(t).dial(t)

	res, err := c.Run(context.Background(), "echo out; echo err >&2; exit 3")
	require.NoError(t, err)
	require.Equal(t, 3, res.ExitCode)
	require.Equal(t, "out\n", res.Stdout)
	require.Equal(t, "err\n", res.Stderr)

	res, err = c.Run(context.Background(), "printf done")
	require.NoError(t, err)
	require.Equal(t, 0, res.ExitCode)
	require.Equal(t, "done", res.Stdout)
}

func TestRunCancelWaitsForSession(t *testing.T) {
	c := startTestServer(t).dial(t)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	start := time.Now()
	res, err := c.Run(ctx, "echo started; sleep 10")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, -1, res.ExitCode)
	require.Less(t, time.Since(start), killGrace)

	// The connection survives a cancelled session.
	res, err = c.Run(context.Background(), "echo again")
	require.NoError(t, err)
	require.Equal(t, "again\n", res.Stdout)
}

func TestUploadDirMirrorsTree(t *testing.T) {
	s := startTestServer(t)
	c := s.dial(t)

	local := t.TempDir()
	files := map[string]string{
		"run.sh":               "#!/bin/sh\necho up\n",
		"app/main.py":          "print(1)\n",
		"app/lib/util.py":      "X = 1\n",
		"scripts/seed data.sh": "echo seed\n",
		".git/config":          "[core]\n",
		".git/hooks/pre.sh":    "exit 1\n",
	}
	for name, body := range files {
		p := filepath.Join(local, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}

	remote := filepath.Join(t.TempDir(), "root", "task")
	n, err := c.UploadDir(context.Background(), local, filepath.ToSlash(remote))
	require.NoError(t, err)
	require.Equal(t, 4, n)

	for _, name := range []string{"run.sh", "app/main.py", "app/lib/util.py", "scripts/seed data.sh"} {
		got, err := os.ReadFile(filepath.Join(remote, filepath.FromSlash(name)))
		require.NoError(t, err, name)
		require.Equal(t, files[name], string(got), name)
	}
	_, err = os.Stat(filepath.Join(remote, ".git"))
	require.True(t, os.IsNotExist(err), ".git must not be uploaded")

	for _, name := range []string{"run.sh", "scripts/seed data.sh"} {
		info, err := os.Stat(filepath.Join(remote, filepath.FromSlash(name)))
		require.NoError(t, err)
		require.NotZero(t, info.Mode().Perm()&0o111, "%s should be executable", name)
	}

	cmds := s.commands()
	require.Len(t, cmds, 2)
	require.Equal(t, "mkdir -p "+Quote(filepath.ToSlash(remote)), cmds[0])
	require.Contains(t, cmds[1], "chmod +x ")
	require.Contains(t, cmds[1], Quote(filepath.ToSlash(remote)+"/scripts/seed data.sh"))
}

func TestUploadDirReportsMkdirFailure(t *testing.T) {
	c := startTestServer(t).dial(t)

	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	_, err := c.UploadDir(context.Background(), t.TempDir(), filepath.ToSlash(filepath.Join(blocker, "task")))
	require.Error(t, err)
	require.Contains(t, err.Error(), "create ")
}
