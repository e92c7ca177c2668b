package generator

import (
	"context"
	"fmt"
	"strings"
	"time"

	types "github.com/ngm9/Utkrusht-task-sub000/internal/domain/tasks"
	"github.com/ngm9/Utkrusht-task-sub000/internal/modules/tasks/prompts"
	"github.com/ngm9/Utkrusht-task-sub000/internal/pkg/llmjson"
	"github.com/ngm9/Utkrusht-task-sub000/internal/platform/logger"
	"github.com/ngm9/Utkrusht-task-sub000/internal/platform/openai"
)

// Input is everything a chain can reference.
type Input struct {
	Competencies []types.Competency
	Background   types.Background
	Scenarios    []string
	Minutes      int
}

type Generator struct {
	log *logger.Logger
	ai  openai.Client
	lib *prompts.Library
	now func() time.Time
}

func New(log *logger.Logger, ai openai.Client, lib *prompts.Library) *Generator {
	return &Generator{
		log: log.With("service", "TaskGenerator"),
		ai:  ai,
		lib: lib,
		now: time.Now,
	}
}

// Chain resolves the prompt chain for competencies, trying StackKeys in order.
func (g *Generator) Chain(cs []types.Competency) (*prompts.Chain, string, error) {
	keys := types.StackKeys(cs)
	for _, k := range keys {
		if c, ok := g.lib.Lookup(k); ok {
			return c, k, nil
		}
	}
	return nil, "", &types.UnsupportedStackError{Keys: keys}
}

// Generate runs the chain as one growing conversation and decodes the final reply. Earlier
// replies only feed the transcript. No LLM call is made for an unsupported stack.
func (g *Generator) Generate(ctx context.Context, in Input) (*types.GeneratedTask, error) {
	if len(in.Competencies) == 0 {
		return nil, fmt.Errorf("generate: no competencies")
	}
	chain, key, err := g.Chain(in.Competencies)
	if err != nil {
		return nil, err
	}
	log := g.log.With("stack", key)

	system, turns := chain.Render(PromptInput(in))
	transcript := make([]openai.Message, 0, 1+2*len(turns))
	transcript = append(transcript, openai.Message{Role: openai.RoleSystem, Content: system})

	var reply string
	for i, prompt := range turns {
		transcript = append(transcript, openai.Message{Role: openai.RoleUser, Content: prompt})
		reply, err = g.ai.Complete(ctx, transcript)
		if err != nil {
			return nil, fmt.Errorf("generate turn %d/%d: %w", i+1, len(turns), err)
		}
		transcript = append(transcript, openai.Message{Role: openai.RoleAssistant, Content: reply})
		log.Info("chain turn complete", "turn", i+1, "of", len(turns), "reply_chars", len(reply))
	}

	obj, strategy, ok := llmjson.Extract(reply)
	if !ok {
		return nil, &types.ResponseParseError{Stage: "generate", Text: reply}
	}
	obj["created_at"] = g.now().UTC().Format(time.RFC3339Nano)

	task, err := types.DecodeGeneratedTask(obj)
	if err != nil {
		return nil, err
	}
	log.Info("task generated", "name", task.Name, "code_files", len(task.CodeFiles), "parse_strategy", strategy)
	return task, nil
}

// PromptInput flattens generation input into template fields.
func PromptInput(in Input) prompts.Input {
	return prompts.Input{
		OrganizationName:       in.Background.Organization.OrganizationName,
		OrganizationBackground: in.Background.Organization.OrganizationBackground,
		RoleContext:            in.Background.RoleContext,
		QuestionsPrompt:        in.Background.QuestionsPrompt,
		YOE:                    in.Background.YOE,
		Proficiency:            types.HighestProficiency(in.Competencies),
		Competencies:           CompetencyLines(in.Competencies),
		Scenarios:              bulletLines(in.Scenarios),
		Minutes:                in.Minutes,
	}
}

// CompetencyLines renders one "- Name (PROFICIENCY): scope" line per competency.
func CompetencyLines(cs []types.Competency) string {
	lines := make([]string, 0, len(cs))
	for _, c := range cs {
		line := "- " + c.Label()
		if s := strings.TrimSpace(c.Scope); s != "" {
			line += ": " + s
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func bulletLines(items []string) string {
	lines := make([]string, 0, len(items))
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			lines = append(lines, "- "+s)
		}
	}
	return strings.Join(lines, "\n")
}
