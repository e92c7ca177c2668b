package cli

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ngm9/Utkrusht-task-sub000/internal/app"
	"github.com/ngm9/Utkrusht-task-sub000/internal/modules/tasks/inputs"
	"github.com/ngm9/Utkrusht-task-sub000/internal/modules/tasks/scenarios"
)

func NewInputGenCommand() *cobra.Command {
	var (
		names         []string
		proficiency   string
		folder        string
		inputsRoot    string
		scenariosFile string
		force         bool
		dryRun        bool
		env           string
	)
	cmd := &cobra.Command{
		Use:   "inputgen",
		Short: "Write competency, background and scenario input files for taskpipeline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p := NewPrinter(cmd.OutOrStdout())
			p.Section("Input generation")
			a, err := app.New(ctx, "inputgen", env)
			if err != nil {
				return err
			}
			defer a.Close()
			repos, err := a.Repos(a.Cfg.Env)
			if err != nil {
				return err
			}
			ai, err := a.OpenAI()
			if err != nil {
				return err
			}
			var store *scenarios.Store
			if scenariosFile != "" {
				store = scenarios.NewStore(scenariosFile)
			}
			uc := inputs.New(inputs.UsecasesDeps{
				Log:           a.Log,
				Competencies:  repos.Competencies,
				Organizations: repos.Organizations,
				AI:            ai,
				Scenarios:     store,
			})
			dir := filepath.Join(inputsRoot, folder)
			out, err := uc.Generate(ctx, inputs.Input{
				Names:       names,
				Proficiency: proficiency,
				Dir:         dir,
				Force:       force,
				DryRun:      dryRun,
			})
			if err != nil {
				return err
			}
			for _, c := range out.Competencies {
				p.Step("competency %s [%s]", c.Label(), c.CompetencyID)
			}
			for path, wrote := range out.Written {
				if wrote {
					p.Step("wrote %s", path)
				} else {
					p.Warn("kept existing %s (use --force)", path)
				}
			}
			status := "Inputs written"
			if dryRun {
				status = "Dry run complete"
			}
			p.Success(status,
				F("folder", dir),
				F("organization", out.Background.Organization.OrganizationName),
				F("yoe", out.Background.YOE),
			)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&names, "name", nil, "competency name (repeatable or comma separated)")
	cmd.Flags().StringVar(&proficiency, "proficiency", "", "BEGINNER, BASIC, INTERMEDIATE or ADVANCED; empty matches any")
	cmd.Flags().StringVar(&folder, "folder-name", "", "folder under --inputs-dir to write to")
	cmd.Flags().StringVar(&inputsRoot, "inputs-dir", "inputs", "root folder for input folders")
	cmd.Flags().StringVar(&scenariosFile, "scenarios-file", "scenarios/all_scenarios.json", "scenario store to copy from; empty skips")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing files")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "resolve and generate without writing files")
	addEnvFlag(cmd, &env)
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("folder-name")
	return cmd
}
