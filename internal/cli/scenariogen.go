package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ngm9/Utkrusht-task-sub000/internal/app"
	types "github.com/ngm9/Utkrusht-task-sub000/internal/domain/tasks"
	"github.com/ngm9/Utkrusht-task-sub000/internal/modules/tasks/scenarios"
)

func NewScenarioGenCommand() *cobra.Command {
	var (
		names         []string
		proficiency   string
		count         int
		appendMode    bool
		scenariosFile string
	)
	cmd := &cobra.Command{
		Use:   "scenariogen",
		Short: "Generate scenario variations for a competency set and store them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if count <= 0 {
				return fmt.Errorf("--count must be positive")
			}
			if !types.ValidProficiency(proficiency) {
				return fmt.Errorf("unknown proficiency %q", proficiency)
			}
			var cs []types.Competency
			for _, n := range names {
				for _, part := range strings.Split(n, ",") {
					if part = strings.TrimSpace(part); part != "" {
						cs = append(cs, types.Competency{Name: part, Proficiency: proficiency})
					}
				}
			}
			if len(cs) == 0 {
				return fmt.Errorf("at least one --name required")
			}
			key := scenarios.BuildScenarioKey(cs)

			p := NewPrinter(cmd.OutOrStdout())
			p.Section("Scenario generation")
			p.Step("key: %s", key)
			a, err := app.New(ctx, "scenariogen", "")
			if err != nil {
				return err
			}
			defer a.Close()
			ai, err := a.OpenAI()
			if err != nil {
				return err
			}
			store := scenarios.NewStore(scenariosFile)
			existing, err := store.Get(key)
			if err != nil {
				return err
			}
			p.Step("existing scenarios: %d", len(existing))
			list, err := scenarios.NewGenerator(a.Log, ai).Generate(ctx, cs, existing, count)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				return fmt.Errorf("model returned no new scenarios")
			}
			if err := store.Save(list, key, appendMode); err != nil {
				return err
			}
			mode := "replaced"
			if appendMode {
				mode = "appended"
			}
			p.Success("Scenarios saved", F("key", key), F("generated", len(list)), F("mode", mode), F("file", scenariosFile))
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&names, "name", nil, "competency name (repeatable or comma separated)")
	cmd.Flags().StringVar(&proficiency, "proficiency", "", "proficiency applied to every name")
	cmd.Flags().IntVar(&count, "count", 5, "number of scenarios to generate")
	cmd.Flags().BoolVar(&appendMode, "append", false, "append to the stored list instead of replacing it")
	cmd.Flags().StringVar(&scenariosFile, "scenarios-file", "scenarios/all_scenarios.json", "scenario store file")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("proficiency")
	return cmd
}
