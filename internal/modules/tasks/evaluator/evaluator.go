package evaluator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	types "github.com/ngm9/Utkrusht-task-sub000/internal/domain/tasks"
	"github.com/ngm9/Utkrusht-task-sub000/internal/modules/tasks/prompts"
	"github.com/ngm9/Utkrusht-task-sub000/internal/pkg/llmjson"
	"github.com/ngm9/Utkrusht-task-sub000/internal/platform/logger"
	"github.com/ngm9/Utkrusht-task-sub000/internal/platform/openai"
)

// TimeConstraintMinutes is the time box for a proficiency.
func TimeConstraintMinutes(proficiency string) int {
	switch types.NormalizeProficiency(proficiency) {
	case types.ProficiencyAdvanced:
		return 25
	case types.ProficiencyIntermediate:
		return 20
	default:
		return 15
	}
}

// Rubric parameterizes both evaluations.
type Rubric struct {
	Proficiency string
	YOE         string
	Minutes     int
}

// RubricFor derives the rubric for a proficiency.
func RubricFor(proficiency string) Rubric {
	return Rubric{
		Proficiency: types.NormalizeProficiency(proficiency),
		YOE:         types.YearsOfExperience(proficiency),
		Minutes:     TimeConstraintMinutes(proficiency),
	}
}

// Evaluator produces advisory verdicts. Its methods never return errors: every failure becomes
// a DefaultFailure result.
type Evaluator struct {
	log        *logger.Logger
	ai         openai.Client
	maxRetries int
}

func New(log *logger.Logger, ai openai.Client) *Evaluator {
	return &Evaluator{log: log.With("service", "TaskEvaluator"), ai: ai, maxRetries: types.MaxEvalRetries}
}

// EvaluateTask makes one schema-constrained call.
func (e *Evaluator) EvaluateTask(ctx context.Context, task *types.GeneratedTask, r Rubric) types.EvaluationResult {
	log := e.log.With("evaluation", "task")
	raw, err := json.MarshalIndent(task, "", "  ")
	if err != nil {
		log.Error("encode task failed", "error", err)
		return types.DefaultFailure("could not encode task: " + err.Error())
	}
	p, err := prompts.Build(prompts.PromptTaskEvaluation, e.input(r, string(raw), ""))
	if err != nil {
		log.Error("build prompt failed", "error", err)
		return types.DefaultFailure(err.Error())
	}
	obj, err := e.ai.GenerateJSON(ctx, p.System, p.User, p.SchemaName, p.Schema)
	if err != nil {
		log.Error("task evaluation call failed", "error", err)
		return types.DefaultFailure("task evaluation failed: " + err.Error())
	}
	res, err := decodeResult(obj)
	if err != nil {
		log.Error("task evaluation unreadable", "error", err)
		return types.DefaultFailure("task evaluation unreadable: " + err.Error())
	}
	log.Info("task evaluated", "pass", res.Pass, "issues", len(res.Issues))
	return res
}

// EvaluateCodeFiles makes up to MaxEvalRetries plain JSON-mode calls.
func (e *Evaluator) EvaluateCodeFiles(ctx context.Context, files map[string]string, r Rubric) types.EvaluationResult {
	log := e.log.With("evaluation", "code_files")
	raw, err := json.MarshalIndent(files, "", "  ")
	if err != nil {
		return types.DefaultFailure("could not encode code files: " + err.Error())
	}
	p, err := prompts.Build(prompts.PromptCodeFilesEvaluation, e.input(r, "", string(raw)))
	if err != nil {
		log.Error("build prompt failed", "error", err)
		return types.DefaultFailure(err.Error())
	}

	var lastErr error
	for attempt := 1; attempt <= e.maxRetries; attempt++ {
		text, err := e.ai.GenerateJSONText(ctx, p.System, p.User)
		if err == nil && strings.TrimSpace(text) == "" {
			err = fmt.Errorf("empty output")
		}
		if err == nil {
			obj, _, ok := llmjson.Extract(text)
			if !ok {
				err = &types.ResponseParseError{Stage: "code_files_evaluation", Text: text}
			} else {
				var res types.EvaluationResult
				if res, err = decodeResult(obj); err == nil {
					log.Info("code files evaluated", "pass", res.Pass, "issues", len(res.Issues), "attempt", attempt)
					return res
				}
			}
		}
		lastErr = err
		log.Warn("code files evaluation attempt failed", "attempt", attempt, "max", e.maxRetries, "error", err)
		if ctx.Err() != nil {
			break
		}
	}
	return types.DefaultFailure(fmt.Sprintf("code files evaluation failed after %d attempts: %v", e.maxRetries, lastErr))
}

func (e *Evaluator) input(r Rubric, taskJSON, filesJSON string) prompts.Input {
	return prompts.Input{
		Proficiency:   r.Proficiency,
		YOE:           r.YOE,
		Minutes:       r.Minutes,
		TaskJSON:      taskJSON,
		CodeFilesJSON: filesJSON,
	}
}

func decodeResult(obj map[string]any) (types.EvaluationResult, error) {
	if _, ok := obj["pass"].(bool); !ok {
		return types.EvaluationResult{}, fmt.Errorf("missing boolean pass")
	}
	raw, err := json.Marshal(obj)
	if err != nil {
		return types.EvaluationResult{}, err
	}
	var res types.EvaluationResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return types.EvaluationResult{}, err
	}
	if res.Issues == nil {
		res.Issues = []string{}
	}
	return res, nil
}
