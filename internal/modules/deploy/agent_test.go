package deploy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	types "github.com/ngm9/Utkrusht-task-sub000/internal/domain/tasks"
	"github.com/ngm9/Utkrusht-task-sub000/internal/platform/logger"
)

func observedLogger() (*logger.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return &logger.Logger{SugaredLogger: zap.New(core).Sugar()}, logs
}

func entryFields(t *testing.T, logs *observer.ObservedLogs, msg string) map[string]interface{} {
	t.Helper()
	found := logs.FilterMessage(msg).All()
	require.Len(t, found, 1, "log entry %q", msg)
	return found[0].ContextMap()
}

func TestExecuteRunsScriptPathAndLogsBothStreams(t *testing.T) {
	log, logs := observedLogger()
	d := &fakeDialer{stdout: "ok", stderr: "warn: something"}
	a := NewAgent(log, d, testSigner(t))

	res := a.Execute(context.Background(), types.DropletTarget{IP: "10.0.0.5"}, "/root/task/run.sh")
	require.True(t, res.OK())
	require.Equal(t, "ok", res.Stdout)
	require.Equal(t, "warn: something", res.Stderr)
	require.Equal(t, []string{"bash '/root/task/run.sh'"}, d.commands)

	fields := entryFields(t, logs, "script finished")
	require.Equal(t, "ok", fields["stdout"])
	require.Equal(t, "warn: something", fields["stderr"])
	require.Equal(t, "/root/task/run.sh", fields["script"])
}

func TestExecuteNonZeroLogsFullStderr(t *testing.T) {
	log, logs := observedLogger()
	stderr := "line1\nline2\nline3\nline4\nline5\nline6\nline7\n"
	d := &fakeDialer{stdout: "partial", stderr: stderr, exitCode: 2}
	a := NewAgent(log, d, testSigner(t))

	res := a.Execute(context.Background(), types.DropletTarget{IP: "10.0.0.5"}, "/root/task/run.sh")
	require.False(t, res.OK())
	require.Equal(t, KindScriptNonZero, res.Kind)
	require.Equal(t, 2, res.ExitCode)

	fields := entryFields(t, logs, "script exited non-zero")
	require.Equal(t, "partial", fields["stdout"])
	require.Equal(t, stderr, fields["stderr"])
}

func TestExecuteConnectFailureLogsError(t *testing.T) {
	log, logs := observedLogger()
	d := &fakeDialer{dialErr: errors.New("connection refused")}
	a := NewAgent(log, d, testSigner(t))

	res := a.Execute(context.Background(), types.DropletTarget{IP: "10.0.0.5"}, "/root/task/run.sh")
	require.Equal(t, KindConnectFailed, res.Kind)
	require.Empty(t, d.commands)
	require.Equal(t, 1, logs.FilterMessage("ssh connect failed").Len())
}
