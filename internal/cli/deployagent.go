package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ngm9/Utkrusht-task-sub000/internal/app"
	"github.com/ngm9/Utkrusht-task-sub000/internal/modules/deploy"
)

func NewDeployAgentCommand() *cobra.Command {
	var (
		in  deploy.DeployInput
		env string
	)
	cmd := &cobra.Command{
		Use:   "deployagent",
		Short: "Deploy a task repository to a droplet and run its setup script",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if (in.TaskID == "") == (in.CompetencyID == "") {
				return fmt.Errorf("exactly one of --task-id or --competency-id is required")
			}
			p := NewPrinter(cmd.OutOrStdout())
			p.Section("Deploy agent")
			a, err := app.New(ctx, "deployagent", env)
			if err != nil {
				return err
			}
			defer a.Close()
			uc, err := a.Deploy(ctx)
			if err != nil {
				return err
			}
			out, err := uc.Deploy(ctx, in)
			if out != nil {
				p.Step("task %s -> %s", out.TaskID, out.DropletIP)
				if out.Droplet != nil {
					p.Step("droplet %s (%s, %s, %s)", out.Droplet.Name, out.Droplet.Region, out.Droplet.Size, out.Droplet.Status)
				}
				if out.Upload.OK() {
					p.Step("uploaded %d files", out.Upload.Files)
				}
				printScriptOutput(p, out.Execute)
			}
			if err != nil {
				return err
			}
			p.Success("Task deployed",
				F("task_id", out.TaskID),
				F("repo", out.RepoURL),
				F("droplet_ip", out.DropletIP),
				F("exit_code", out.Execute.ExitCode),
			)
			return nil
		},
	}
	cmd.Flags().StringVar(&in.TaskID, "task-id", "", "task to deploy")
	cmd.Flags().StringVar(&in.CompetencyID, "competency-id", "", "deploy the newest task of this competency")
	cmd.Flags().StringVar(&in.DropletIP, "droplet-ip", "", "target droplet; default picks a free one from AVAILABLE_IPS")
	cmd.Flags().BoolVar(&in.DeployExisting, "deploy-existing", false, "redeploy a task already marked deployed")
	cmd.Flags().StringVar(&in.ScriptPath, "script-path", deploy.DefaultScriptPath, "setup script, relative to the repository root")
	addEnvFlag(cmd, &env)
	return cmd
}

func NewResetAgentCommand() *cobra.Command {
	var (
		in  deploy.ResetInput
		env string
	)
	cmd := &cobra.Command{
		Use:   "resetagent",
		Short: "Run a reset script on a droplet and clear the task's deployment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p := NewPrinter(cmd.OutOrStdout())
			p.Section("Reset agent")
			a, err := app.New(ctx, "resetagent", env)
			if err != nil {
				return err
			}
			defer a.Close()
			uc, err := a.Deploy(ctx)
			if err != nil {
				return err
			}
			out, err := uc.Reset(ctx, in)
			if out != nil {
				printScriptOutput(p, out.Execute)
			}
			if err != nil {
				return err
			}
			p.Success("Task reset",
				F("task_id", out.TaskID),
				F("droplet_ip", out.DropletIP),
				F("exit_code", out.Execute.ExitCode),
			)
			return nil
		},
	}
	cmd.Flags().StringVar(&in.TaskID, "task-id", "", "task to reset")
	cmd.Flags().StringVar(&in.DropletIP, "droplet-ip", "", "droplet the task runs on")
	cmd.Flags().StringVar(&in.ScriptPath, "script-path", "", "local reset script to upload and run")
	addEnvFlag(cmd, &env)
	for _, f := range []string{"task-id", "droplet-ip", "script-path"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

func printScriptOutput(p *Printer, r deploy.Result) {
	p.Output("stdout", r.Stdout)
	p.Output("stderr", r.Stderr)
}
