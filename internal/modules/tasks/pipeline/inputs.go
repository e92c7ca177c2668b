package pipeline

import (
	"fmt"
	"strings"

	types "github.com/ngm9/Utkrusht-task-sub000/internal/domain/tasks"
	"github.com/ngm9/Utkrusht-task-sub000/internal/modules/tasks/scenarios"
	"github.com/ngm9/Utkrusht-task-sub000/internal/pkg/fsutil"
)

// Input is one generation request.
type Input struct {
	Competencies []types.Competency
	Background   types.Background
	Scenarios    []string
	SkipGist     bool
}

// LoadInputs reads the files written by inputgen and picks the scenarios stored for the
// competency set.
func LoadInputs(competencyFile, backgroundFile, scenariosFile string) (Input, error) {
	var in Input
	if err := fsutil.ReadJSON(competencyFile, &in.Competencies); err != nil {
		return in, fmt.Errorf("read competency file: %w", err)
	}
	if len(in.Competencies) == 0 {
		return in, fmt.Errorf("competency file %s lists no competencies", competencyFile)
	}
	for i, c := range in.Competencies {
		if strings.TrimSpace(c.CompetencyID) == "" || strings.TrimSpace(c.Name) == "" {
			return in, fmt.Errorf("competency %d in %s needs competency_id and name", i, competencyFile)
		}
		if !types.ValidProficiency(c.Proficiency) {
			return in, fmt.Errorf("competency %s has unknown proficiency %q", c.Name, c.Proficiency)
		}
	}
	if err := fsutil.ReadJSON(backgroundFile, &in.Background); err != nil {
		return in, fmt.Errorf("read background file: %w", err)
	}
	if scenariosFile != "" {
		list, err := scenarios.NewStore(scenariosFile).Get(scenarios.BuildScenarioKey(in.Competencies))
		if err != nil {
			return in, err
		}
		in.Scenarios = list
	}
	return in, nil
}
