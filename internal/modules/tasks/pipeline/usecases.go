package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	taskrepos "github.com/ngm9/Utkrusht-task-sub000/internal/data/repos/tasks"
	types "github.com/ngm9/Utkrusht-task-sub000/internal/domain/tasks"
	"github.com/ngm9/Utkrusht-task-sub000/internal/modules/provision"
	"github.com/ngm9/Utkrusht-task-sub000/internal/modules/tasks/artifacts"
	"github.com/ngm9/Utkrusht-task-sub000/internal/modules/tasks/evaluator"
	"github.com/ngm9/Utkrusht-task-sub000/internal/modules/tasks/generator"
	"github.com/ngm9/Utkrusht-task-sub000/internal/pkg/dbctx"
	"github.com/ngm9/Utkrusht-task-sub000/internal/platform/logger"
)

const tracerName = "github.com/ngm9/Utkrusht-task-sub000/internal/modules/tasks/pipeline"

type UsecasesDeps struct {
	DB  *gorm.DB
	Log *logger.Logger

	Tasks taskrepos.TaskRepo
	Links taskrepos.TaskCompetencyRepo

	Generator   *generator.Generator
	Evaluator   *evaluator.Evaluator
	Provisioner *provision.Provisioner
	// Optional: local/bucket mirror of the generated task.
	Mirror *artifacts.Mirror

	// UseTemplate creates task repositories from the configured template repository.
	UseTemplate bool
	Env         string

	NewID func() string
	Now   func() time.Time
}

type Usecases struct {
	deps   UsecasesDeps
	tracer trace.Tracer
}

func New(deps UsecasesDeps) Usecases {
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return Usecases{deps: deps, tracer: otel.Tracer(tracerName)}
}

// Stage names reported by Output and on spans.
const (
	StageGenerate  = "generate"
	StageEvaluate  = "evaluate"
	StageRepo      = "create_repo"
	StageCommit    = "commit_files"
	StageGist      = "create_gist"
	StagePersist   = "persist"
	StageArtifacts = "artifacts"
)

type Output struct {
	TaskID       string
	Name         string
	RepoURL      string
	GistURL      string
	CommitSHA    string
	Evaluation   types.EvalInfo
	LinkedCount  int
	ArtifactsDir string
	Stages       []string
}

// Run generates one task and provisions, persists and mirrors it. Evaluation and the gist are
// advisory; every other stage failure aborts the run.
func (u Usecases) Run(ctx context.Context, in Input) (*Output, error) {
	if len(in.Competencies) == 0 {
		return nil, fmt.Errorf("no competencies")
	}
	ctx, span := u.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(attribute.String("env", u.deps.Env)))
	defer span.End()
	log := u.deps.Log.With("op", "task_pipeline", "env", u.deps.Env)
	out := &Output{}

	rubric := evaluator.RubricFor(types.HighestProficiency(in.Competencies))

	var task *types.GeneratedTask
	err := u.stage(ctx, out, StageGenerate, func(ctx context.Context) error {
		var err error
		task, err = u.deps.Generator.Generate(ctx, generator.Input{
			Competencies: in.Competencies,
			Background:   in.Background,
			Scenarios:    in.Scenarios,
			Minutes:      rubric.Minutes,
		})
		return err
	})
	if err != nil {
		return u.fail(span, out, err)
	}
	out.Name = task.Name
	if len(task.Criterias) == 0 {
		task.Criterias = criteriasFor(in.Competencies)
	}
	if task.Resources == nil {
		task.Resources = map[string]any{}
	}
	log = log.With("task", task.Name)

	_ = u.stage(ctx, out, StageEvaluate, func(ctx context.Context) error {
		taskEval := u.deps.Evaluator.EvaluateTask(ctx, task, rubric)
		filesEval := u.deps.Evaluator.EvaluateCodeFiles(ctx, task.FileContents(), rubric)
		out.Evaluation = types.EvalInfo{Task: &taskEval, CodeFiles: &filesEval}
		return nil
	})

	prov := u.deps.Provisioner
	owner, branch := prov.Owner(), prov.DefaultBranch()
	var repoName string
	err = u.stage(ctx, out, StageRepo, func(ctx context.Context) error {
		desc := fmt.Sprintf("Assessment task: %s", task.Name)
		if u.deps.UseTemplate {
			r, err := prov.CreateRepoFromTemplate(ctx, task.Name, desc)
			if err != nil {
				return err
			}
			repoName, out.RepoURL = r.Name, r.HTMLURL
			return nil
		}
		r, err := prov.CreateRepo(ctx, task.Name, provision.RepoOptions{Description: desc, Private: true})
		if err != nil {
			return err
		}
		repoName, out.RepoURL = r.Name, r.HTMLURL
		return nil
	})
	if err != nil {
		return u.fail(span, out, err)
	}

	err = u.stage(ctx, out, StageCommit, func(ctx context.Context) error {
		commit, err := prov.CommitFiles(ctx, owner, repoName, branch, task.CodeFiles, "Add task files: "+task.Name)
		if err != nil {
			return err
		}
		out.CommitSHA = commit.SHA
		return nil
	})
	if err != nil {
		if derr := prov.DeleteRepo(ctx, owner, repoName); derr != nil {
			log.Error("could not delete repository after failed commit", "repo", repoName, "error", derr)
		}
		return u.fail(span, out, err)
	}
	task.Resources[types.ResourceGithubRepo] = out.RepoURL

	if !in.SkipGist {
		_ = u.stage(ctx, out, StageGist, func(ctx context.Context) error {
			out.GistURL = prov.CreateGistFromRepo(ctx, out.RepoURL, branch)
			if out.GistURL != "" {
				task.Resources[types.ResourceGithubGist] = out.GistURL
			}
			return nil
		})
	}

	out.TaskID = u.deps.NewID()
	err = u.stage(ctx, out, StagePersist, func(ctx context.Context) error {
		row, err := u.record(out.TaskID, task, out.Evaluation)
		if err != nil {
			return err
		}
		return u.deps.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			dbc := dbctx.Context{Ctx: ctx, Tx: tx}
			if _, err := u.deps.Tasks.Insert(dbc, row); err != nil {
				return err
			}
			ids := make([]string, 0, len(in.Competencies))
			for _, c := range in.Competencies {
				ids = append(ids, c.CompetencyID)
			}
			n, err := u.deps.Links.Link(dbc, out.TaskID, ids)
			out.LinkedCount = n
			return err
		})
	})
	if err != nil {
		return u.fail(span, out, err)
	}

	if u.deps.Mirror != nil {
		_ = u.stage(ctx, out, StageArtifacts, func(ctx context.Context) error {
			res, err := u.deps.Mirror.Write(ctx, out.TaskID, mirrorDocument(out, task), task.FileContents())
			if err != nil {
				log.Warn("artifact mirror failed", "task_id", out.TaskID, "error", err)
				return err
			}
			out.ArtifactsDir = res.Dir
			return nil
		})
	}

	span.SetAttributes(attribute.String("task_id", out.TaskID))
	log.Info("task pipeline complete", "task_id", out.TaskID, "repo", out.RepoURL, "gist", out.GistURL,
		"task_eval_pass", out.Evaluation.Task != nil && out.Evaluation.Task.Pass)
	return out, nil
}

func (u Usecases) stage(ctx context.Context, out *Output, name string, fn func(context.Context) error) error {
	ctx, span := u.tracer.Start(ctx, "pipeline."+name)
	defer span.End()
	start := time.Now()
	err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		u.deps.Log.Error("pipeline stage failed", "stage", name, "elapsed", time.Since(start).String(), "error", err)
		return fmt.Errorf("%s: %w", name, err)
	}
	out.Stages = append(out.Stages, name)
	u.deps.Log.Info("pipeline stage done", "stage", name, "elapsed", time.Since(start).String())
	return nil
}

func (u Usecases) fail(span trace.Span, out *Output, err error) (*Output, error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return out, err
}

func (u Usecases) record(taskID string, task *types.GeneratedTask, eval types.EvalInfo) (*types.TaskRecord, error) {
	blob, err := types.BlobFromTask(task).Encode()
	if err != nil {
		return nil, fmt.Errorf("encode task_blob: %w", err)
	}
	prereq, err := json.Marshal(task.PreRequisites)
	if err != nil {
		return nil, err
	}
	criterias, err := json.Marshal(task.Criterias)
	if err != nil {
		return nil, err
	}
	evalInfo, err := json.Marshal(eval)
	if err != nil {
		return nil, err
	}
	solutions, err := json.Marshal(map[string]string{"answer": task.Answer})
	if err != nil {
		return nil, err
	}
	created := task.CreatedAt
	if created.IsZero() {
		created = u.deps.Now()
	}
	return &types.TaskRecord{
		TaskID:        taskID,
		CreatedAt:     created.UTC(),
		PreRequisites: datatypes.JSON(prereq),
		Answer:        task.Answer,
		Criterias:     datatypes.JSON(criterias),
		TaskBlob:      blob,
		ReadmeContent: task.ReadmeContent(),
		EvalInfo:      datatypes.JSON(evalInfo),
		Solutions:     datatypes.JSON(solutions),
	}, nil
}

func criteriasFor(cs []types.Competency) []types.Criteria {
	out := make([]types.Criteria, 0, len(cs))
	for _, c := range cs {
		out = append(out, types.Criteria{
			Name:         c.Name,
			Proficiency:  types.NormalizeProficiency(c.Proficiency),
			CompetencyID: c.CompetencyID,
		})
	}
	return out
}

func mirrorDocument(out *Output, task *types.GeneratedTask) map[string]any {
	return map[string]any{
		"task_id":    out.TaskID,
		"task":       task,
		"evaluation": out.Evaluation,
		"repo_url":   out.RepoURL,
		"gist_url":   out.GistURL,
		"commit_sha": out.CommitSHA,
	}
}
