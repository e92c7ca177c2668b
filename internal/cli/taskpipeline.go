package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/ngm9/Utkrusht-task-sub000/internal/app"
	"github.com/ngm9/Utkrusht-task-sub000/internal/modules/tasks/pipeline"
)

func NewTaskPipelineCommand() *cobra.Command {
	var (
		competencyFile string
		backgroundFile string
		scenariosFile  string
		outputDir      string
		env            string
		skipGist       bool
	)
	cmd := &cobra.Command{
		Use:   "taskpipeline",
		Short: "Generate, evaluate, provision and store one assessment task",
		Long: `Generate one coding-assessment task from the input files written by inputgen.

The task is evaluated, committed to a new repository (from TEMPLATE_REPO when set),
optionally mirrored to a gist, inserted into the tasks table of --env and written
to <output-dir>/<task_id>/.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p := NewPrinter(cmd.OutOrStdout())
			p.Section("Task pipeline")

			in, err := pipeline.LoadInputs(competencyFile, backgroundFile, scenariosFile)
			if err != nil {
				return err
			}
			in.SkipGist = skipGist
			labels := make([]string, 0, len(in.Competencies))
			for _, c := range in.Competencies {
				labels = append(labels, c.Label())
			}
			p.Step("competencies: %s", strings.Join(labels, ", "))
			p.Step("scenarios: %d", len(in.Scenarios))

			a, err := app.New(ctx, "taskpipeline", env)
			if err != nil {
				return err
			}
			defer a.Close()
			uc, err := a.Pipeline(ctx, outputDir)
			if err != nil {
				return err
			}
			out, err := uc.Run(ctx, in)
			if out != nil {
				for _, s := range out.Stages {
					p.Step("%s done", s)
				}
			}
			if err != nil {
				return err
			}
			if out.Evaluation.Task != nil && !out.Evaluation.Task.Pass {
				p.Warn("task evaluation failed: %s", strings.Join(out.Evaluation.Task.Issues, "; "))
			}
			if out.Evaluation.CodeFiles != nil && !out.Evaluation.CodeFiles.Pass {
				p.Warn("code files evaluation failed: %s", strings.Join(out.Evaluation.CodeFiles.Issues, "; "))
			}
			p.Success("Task created",
				F("task_id", out.TaskID),
				F("name", out.Name),
				F("repo", out.RepoURL),
				F("gist", out.GistURL),
				F("linked", out.LinkedCount),
				F("artifacts", out.ArtifactsDir),
			)
			return nil
		},
	}
	cmd.Flags().StringVar(&competencyFile, "competency-file", "", "competency.json written by inputgen")
	cmd.Flags().StringVar(&backgroundFile, "background-file", "", "background.json written by inputgen")
	cmd.Flags().StringVar(&scenariosFile, "scenarios-file", "", "scenario store to pick scenarios from")
	cmd.Flags().StringVar(&outputDir, "output-dir", "output", "local artifact folder; empty disables the mirror")
	cmd.Flags().BoolVar(&skipGist, "skip-gist", false, "do not mirror the repository to a gist")
	addEnvFlag(cmd, &env)
	_ = cmd.MarkFlagRequired("competency-file")
	_ = cmd.MarkFlagRequired("background-file")
	return cmd
}
