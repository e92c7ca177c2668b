package cli

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/ngm9/Utkrusht-task-sub000/internal/modules/deploy"
)

func TestPrinterSummaryAndFailure(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)
	p.Section("Deploy agent")
	p.Step("uploaded %d files", 3)
	p.Success("Task deployed", F("task_id", "t1"), F("gist", ""))
	p.Failure(errors.New("connect_failed: timeout"))

	out := buf.String()
	for _, want := range []string{"== Deploy agent ==", "-> uploaded 3 files", "Task deployed", "task_id", "t1", "FAILED", "connect_failed: timeout"} {
		require.True(t, strings.Contains(out, want), "missing %q in:\n%s", want, out)
	}
	require.False(t, strings.Contains(out, "gist"), "empty fields are dropped")
}

func TestScriptOutputPrintsBothStreamsInFull(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)
	stderr := "l1\nl2\nl3\nl4\nl5\nl6\nl7\n"
	printScriptOutput(p, deploy.Result{Kind: deploy.KindScriptNonZero, ExitCode: 1, Stdout: "ok", Stderr: stderr})

	out := buf.String()
	require.Contains(t, out, "-- stdout --")
	require.Contains(t, out, "ok\n")
	require.Contains(t, out, "-- stderr --")
	require.Contains(t, out, stderr)

	buf.Reset()
	printScriptOutput(p, deploy.Result{Kind: deploy.KindOK})
	require.Empty(t, buf.String())
}

func TestExecuteReturnsOneOnError(t *testing.T) {
	var stderr bytes.Buffer
	cmd := &cobra.Command{Use: "x", RunE: func(*cobra.Command, []string) error { return errors.New("boom") }}
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{})
	require.Equal(t, 1, Execute(cmd))
	require.Contains(t, stderr.String(), "boom")

	ok := &cobra.Command{Use: "y", RunE: func(*cobra.Command, []string) error { return nil }}
	ok.SetArgs([]string{})
	require.Equal(t, 0, Execute(ok))
}

func TestCommandsValidateFlagsBeforeWiring(t *testing.T) {
	cases := []struct {
		cmd  *cobra.Command
		args []string
		want string
	}{
		{NewDeployAgentCommand(), []string{"--task-id", "t1", "--competency-id", "c1"}, "exactly one of"},
		{NewScenarioGenCommand(), []string{"--name", "Go", "--proficiency", "guru"}, "unknown proficiency"},
		{NewScenarioGenCommand(), []string{"--name", "Go", "--proficiency", "BASIC", "--count", "0"}, "--count"},
		{NewResetAgentCommand(), []string{"--task-id", "t1"}, "required flag"},
		{NewTaskPipelineCommand(), []string{}, "required flag"},
	}
	for _, tc := range cases {
		var stderr bytes.Buffer
		tc.cmd.SetErr(&stderr)
		tc.cmd.SetOut(&bytes.Buffer{})
		tc.cmd.SetArgs(tc.args)
		require.Equal(t, 1, Execute(tc.cmd), tc.cmd.Use)
		require.Contains(t, stderr.String(), tc.want, tc.cmd.Use)
	}
}

func TestGistManagerSubcommands(t *testing.T) {
	root := NewGistManagerCommand()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	require.ElementsMatch(t, []string{"sync-prod-to-dev", "create-prod-missing-gists", "sync-is-enabled", "create", "repo-access"}, names)
}
