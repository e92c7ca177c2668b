// Package inputs prepares the per-run input files of the task pipeline from competency rows.
package inputs

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	taskrepos "github.com/ngm9/Utkrusht-task-sub000/internal/data/repos/tasks"
	types "github.com/ngm9/Utkrusht-task-sub000/internal/domain/tasks"
	"github.com/ngm9/Utkrusht-task-sub000/internal/modules/tasks/generator"
	"github.com/ngm9/Utkrusht-task-sub000/internal/modules/tasks/prompts"
	"github.com/ngm9/Utkrusht-task-sub000/internal/modules/tasks/scenarios"
	"github.com/ngm9/Utkrusht-task-sub000/internal/pkg/dbctx"
	pkgerrors "github.com/ngm9/Utkrusht-task-sub000/internal/pkg/errors"
	"github.com/ngm9/Utkrusht-task-sub000/internal/pkg/fsutil"
	"github.com/ngm9/Utkrusht-task-sub000/internal/platform/logger"
	"github.com/ngm9/Utkrusht-task-sub000/internal/platform/openai"
)

// File names inside the input folder.
const (
	CompetencyFile = "competency.json"
	BackgroundFile = "background.json"
	ScenariosFile  = "scenarios.json"
)

type UsecasesDeps struct {
	Log           *logger.Logger
	Competencies  taskrepos.CompetencyRepo
	Organizations taskrepos.OrganizationRepo
	AI            openai.Client
	// Optional: the shared scenario store copied into scenarios.json.
	Scenarios *scenarios.Store
}

type Usecases struct {
	deps UsecasesDeps
}

func New(deps UsecasesDeps) Usecases {
	return Usecases{deps: deps}
}

type Input struct {
	Names       []string
	Proficiency string
	// Dir is the folder the three files are written to.
	Dir    string
	Force  bool
	DryRun bool
}

type Output struct {
	Competencies []types.Competency
	Background   types.Background
	Scenarios    scenarios.Set
	// Written maps each file path to whether it was (re)written.
	Written map[string]bool
}

// Generate resolves the competencies, builds the background with two model calls and writes
// the input files. Existing files are kept unless Force is set; DryRun writes nothing.
func (u Usecases) Generate(ctx context.Context, in Input) (*Output, error) {
	names := splitNames(in.Names)
	if len(names) == 0 {
		return nil, fmt.Errorf("at least one competency name required")
	}
	if in.Proficiency != "" && !types.ValidProficiency(in.Proficiency) {
		return nil, fmt.Errorf("unknown proficiency %q", in.Proficiency)
	}
	log := u.deps.Log.With("op", "inputgen", "names", strings.Join(names, ","))
	dbc := dbctx.From(ctx)

	rows, err := u.deps.Competencies.FindByNames(dbc, names, in.Proficiency)
	if err != nil {
		return nil, err
	}
	out := &Output{Written: map[string]bool{}}
	for _, c := range rows {
		out.Competencies = append(out.Competencies, *c)
	}

	org := u.organization(dbc, log, out.Competencies)
	yoe := types.YearsOfExperience(types.HighestProficiency(out.Competencies))
	pin := prompts.Input{
		OrganizationName:       org.OrganizationName,
		OrganizationBackground: org.OrganizationBackground,
		Scope:                  scopeOf(out.Competencies),
		YOE:                    yoe,
		Competencies:           generator.CompetencyLines(out.Competencies),
	}
	roleContext, err := u.text(ctx, prompts.PromptRoleContext, pin)
	if err != nil {
		return nil, fmt.Errorf("role context: %w", err)
	}
	questions, err := u.text(ctx, prompts.PromptQuestionsPrompt, pin)
	if err != nil {
		return nil, fmt.Errorf("questions prompt: %w", err)
	}
	out.Background = types.Background{
		Organization:    org,
		RoleContext:     roleContext,
		QuestionsPrompt: questions,
		YOE:             yoe,
	}

	key := scenarios.BuildScenarioKey(out.Competencies)
	out.Scenarios = scenarios.Set{key: {}}
	if u.deps.Scenarios != nil {
		list, err := u.deps.Scenarios.Get(key)
		if err != nil {
			return nil, err
		}
		if len(list) > 0 {
			out.Scenarios[key] = list
		} else {
			log.Warn("no stored scenarios for competency set; run scenariogen first", "key", key)
		}
	}

	if in.DryRun {
		log.Info("dry run; no files written", "dir", in.Dir)
		return out, nil
	}
	files := []struct {
		name string
		v    any
	}{
		{CompetencyFile, out.Competencies},
		{BackgroundFile, out.Background},
		{ScenariosFile, out.Scenarios},
	}
	for _, f := range files {
		path := filepath.Join(in.Dir, f.name)
		wrote, err := fsutil.WriteJSONSafe(path, f.v, in.Force)
		if err != nil {
			return nil, err
		}
		out.Written[path] = wrote
		if !wrote {
			log.Warn("file exists; kept (use --force to overwrite)", "path", path)
		}
	}
	return out, nil
}

func (u Usecases) organization(dbc dbctx.Context, log *logger.Logger, cs []types.Competency) types.OrganizationBackground {
	for _, c := range cs {
		if c.OrganizationID == "" {
			continue
		}
		org, err := u.deps.Organizations.Get(dbc, c.OrganizationID)
		if errors.Is(err, pkgerrors.ErrNotFound) {
			log.Warn("organization not found", "organization_id", c.OrganizationID)
			continue
		}
		if err != nil {
			log.Warn("organization lookup failed", "organization_id", c.OrganizationID, "error", err)
			continue
		}
		return types.OrganizationBackground{
			OrganizationID:         org.OrganizationID,
			OrganizationName:       org.Name,
			OrganizationBackground: org.Background,
		}
	}
	return types.OrganizationBackground{}
}

func (u Usecases) text(ctx context.Context, name prompts.PromptName, in prompts.Input) (string, error) {
	p, err := prompts.Build(name, in)
	if err != nil {
		return "", err
	}
	out, err := u.deps.AI.GenerateText(ctx, p.System, p.User)
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("%s: empty reply", name)
	}
	return out, nil
}

// scopeOf joins the distinct competency scopes, one per line.
func scopeOf(cs []types.Competency) string {
	seen := map[string]bool{}
	var lines []string
	for _, c := range cs {
		s := strings.TrimSpace(c.Scope)
		if s == "" {
			s = c.Label()
		}
		if !seen[s] {
			seen[s] = true
			lines = append(lines, s)
		}
	}
	return strings.Join(lines, "\n")
}

// splitNames accepts repeated and comma-separated names.
func splitNames(in []string) []string {
	var out []string
	for _, n := range in {
		for _, part := range strings.Split(n, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
