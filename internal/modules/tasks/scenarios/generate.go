package scenarios

import (
	"context"
	"fmt"
	"strings"

	types "github.com/ngm9/Utkrusht-task-sub000/internal/domain/tasks"
	"github.com/ngm9/Utkrusht-task-sub000/internal/modules/tasks/prompts"
	"github.com/ngm9/Utkrusht-task-sub000/internal/platform/logger"
	"github.com/ngm9/Utkrusht-task-sub000/internal/platform/openai"
)

// Generator asks the model for new scenario variations.
type Generator struct {
	log *logger.Logger
	ai  openai.Client
}

func NewGenerator(log *logger.Logger, ai openai.Client) *Generator {
	return &Generator{log: log.With("service", "ScenarioGenerator"), ai: ai}
}

// Generate returns up to count new scenarios for cs. existing is shown to the model so it
// avoids repeats; blank and duplicate replies are dropped.
func (g *Generator) Generate(ctx context.Context, cs []types.Competency, existing []string, count int) ([]string, error) {
	if len(cs) == 0 {
		return nil, fmt.Errorf("generate scenarios: no competencies")
	}
	lines := make([]string, 0, len(cs))
	for _, c := range cs {
		lines = append(lines, "- "+c.Label())
	}
	prev := make([]string, 0, len(existing))
	for _, s := range existing {
		prev = append(prev, "- "+s)
	}
	p, err := prompts.Build(prompts.PromptScenarioVariations, prompts.Input{
		Competencies: strings.Join(lines, "\n"),
		Proficiency:  types.HighestProficiency(cs),
		Scenarios:    strings.Join(prev, "\n"),
		Count:        count,
	})
	if err != nil {
		return nil, err
	}
	obj, err := g.ai.GenerateJSON(ctx, p.System, p.User, p.SchemaName, p.Schema)
	if err != nil {
		return nil, fmt.Errorf("generate scenarios: %w", err)
	}
	raw, ok := obj["scenarios"].([]any)
	if !ok {
		return nil, fmt.Errorf("generate scenarios: reply has no scenarios list")
	}
	seen := map[string]bool{}
	for _, s := range existing {
		seen[strings.TrimSpace(s)] = true
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		s, _ := v.(string)
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
		if len(out) == count {
			break
		}
	}
	g.log.Info("scenarios generated", "key", BuildScenarioKey(cs), "requested", count, "kept", len(out))
	return out, nil
}
