package app

import (
	"context"
	"fmt"

	"github.com/ngm9/Utkrusht-task-sub000/internal/modules/deploy"
	"github.com/ngm9/Utkrusht-task-sub000/internal/modules/gists"
	"github.com/ngm9/Utkrusht-task-sub000/internal/modules/tasks/artifacts"
	"github.com/ngm9/Utkrusht-task-sub000/internal/modules/tasks/evaluator"
	"github.com/ngm9/Utkrusht-task-sub000/internal/modules/tasks/generator"
	"github.com/ngm9/Utkrusht-task-sub000/internal/modules/tasks/pipeline"
	"github.com/ngm9/Utkrusht-task-sub000/internal/modules/tasks/prompts"
	"github.com/ngm9/Utkrusht-task-sub000/internal/platform/envutil"
	"github.com/ngm9/Utkrusht-task-sub000/internal/platform/openai"
	"github.com/ngm9/Utkrusht-task-sub000/internal/platform/sshx"
)

// Pipeline wires the task generation workflow against the configured environment.
func (a *App) Pipeline(ctx context.Context, outputDir string) (pipeline.Usecases, error) {
	db, err := a.Database(a.Cfg.Env)
	if err != nil {
		return pipeline.Usecases{}, fmt.Errorf("open %s database: %w", a.Cfg.Env, err)
	}
	repos, err := a.Repos(a.Cfg.Env)
	if err != nil {
		return pipeline.Usecases{}, err
	}
	ai, err := a.OpenAI()
	if err != nil {
		return pipeline.Usecases{}, err
	}
	lib, err := prompts.LoadLibrary()
	if err != nil {
		return pipeline.Usecases{}, fmt.Errorf("load prompt chains: %w", err)
	}
	prov, err := a.Provisioner(ctx)
	if err != nil {
		return pipeline.Usecases{}, err
	}
	var mirror *artifacts.Mirror
	if outputDir != "" {
		bucket, err := a.Bucket(ctx)
		if err != nil {
			return pipeline.Usecases{}, err
		}
		mirror = artifacts.NewMirror(a.Log, outputDir, bucket)
	}
	return pipeline.New(pipeline.UsecasesDeps{
		DB:          db,
		Log:         a.Log,
		Tasks:       repos.Tasks,
		Links:       repos.Links,
		Generator:   generator.New(a.Log, ai, lib),
		Evaluator:   evaluator.New(a.Log, openai.WithModel(ai, envutil.String("OPENAI_EVAL_MODEL", ""))),
		Provisioner: prov,
		Mirror:      mirror,
		UseTemplate: a.Cfg.TemplateRepo != "",
		Env:         a.Cfg.Env,
	}), nil
}

// Gists wires the gist workflows. Prod is always opened; dev only when its URL is set.
func (a *App) Gists(ctx context.Context) (gists.Usecases, error) {
	deps := gists.UsecasesDeps{Log: a.Log}
	for _, env := range []string{EnvProd, EnvDev} {
		if !a.HasDatabase(env) {
			continue
		}
		repos, err := a.Repos(env)
		if err != nil {
			return gists.Usecases{}, err
		}
		if env == EnvProd {
			deps.Prod = repos.Tasks
		} else {
			deps.Dev = repos.Tasks
		}
	}
	if deps.Prod == nil && deps.Dev == nil {
		return gists.Usecases{}, fmt.Errorf("%w: %s or %s", envutil.ErrMissingEnv, ProdDSNVar, DevDSNVar)
	}
	prov, err := a.Provisioner(ctx)
	if err != nil {
		return gists.Usecases{}, err
	}
	deps.Gists = prov
	deps.Access = prov
	if deps.Lock, err = a.Lock(ctx); err != nil {
		return gists.Usecases{}, err
	}
	return gists.New(deps), nil
}

// Deploy wires the deployment and reset workflows. DROPLET_SSH_PRIVATE_KEY is required;
// an unreadable key still builds the agent and surfaces as a key_missing result.
func (a *App) Deploy(ctx context.Context) (deploy.Usecases, error) {
	if _, err := envutil.Require("DROPLET_SSH_PRIVATE_KEY"); err != nil {
		return deploy.Usecases{}, err
	}
	repos, err := a.Repos(a.Cfg.Env)
	if err != nil {
		return deploy.Usecases{}, err
	}
	signer := deploy.LoadSigner(a.Log, a.Cfg.DropletSSHKey)
	dialer := deploy.NewSSHDialer(a.Log, sshx.Config{
		User: envutil.String("DROPLET_SSH_USER", "root"),
		Port: envutil.Int("DROPLET_SSH_PORT", 22),
	})
	if len(a.Cfg.AvailableIPs) == 0 {
		a.Log.Warn("AVAILABLE_IPS is empty; deployments need an explicit droplet ip")
	}
	return deploy.New(deploy.UsecasesDeps{
		Log:      a.Log,
		Tasks:    repos.Tasks,
		Agent:    deploy.NewAgent(a.Log, dialer, signer),
		Pool:     deploy.NewPool(a.Cfg.AvailableIPs),
		Droplets: a.Droplets(),
		Cloner:   deploy.NewGitCloner(a.Log, a.Cfg.OrgToken),
		Branch:   a.Cfg.Branch,
	}), nil
}

