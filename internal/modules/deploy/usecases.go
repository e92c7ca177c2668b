package deploy

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	taskrepos "github.com/ngm9/Utkrusht-task-sub000/internal/data/repos/tasks"
	types "github.com/ngm9/Utkrusht-task-sub000/internal/domain/tasks"
	"github.com/ngm9/Utkrusht-task-sub000/internal/pkg/dbctx"
	"github.com/ngm9/Utkrusht-task-sub000/internal/platform/digitalocean"
	"github.com/ngm9/Utkrusht-task-sub000/internal/platform/logger"
)

const (
	DefaultScriptPath = "run.sh"
	DefaultRemoteDir  = "/root/task"
	DefaultResetDir   = "/root/reset"
)

type UsecasesDeps struct {
	Log   *logger.Logger
	Tasks taskrepos.TaskRepo
	Agent *Agent
	Pool  *Pool
	// Optional: informational droplet metadata.
	Droplets digitalocean.DropletLookup
	Cloner   Cloner
	Branch   string
	Now      func() time.Time
}

type Usecases struct {
	deps UsecasesDeps
}

func New(deps UsecasesDeps) Usecases {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return Usecases{deps: deps}
}

type DeployInput struct {
	TaskID         string
	CompetencyID   string
	DropletIP      string
	DeployExisting bool
	// ScriptPath is relative to the repository root.
	ScriptPath string
	RemoteDir  string
}

type DeployOutput struct {
	TaskID    string
	RepoURL   string
	DropletIP string
	Droplet   *types.DropletInfo
	Upload    Result
	Execute   Result
}

// Deploy clones a task's repository, uploads it to a droplet, runs its script and marks the
// task deployed.
func (u Usecases) Deploy(ctx context.Context, in DeployInput) (*DeployOutput, error) {
	log := u.deps.Log.With("op", "deploy")
	dbc := dbctx.From(ctx)

	task, err := u.resolveTask(dbc, in)
	if err != nil {
		return nil, err
	}
	log = log.With("task_id", task.TaskID)

	if task.IsDeployed && !in.DeployExisting {
		return nil, fmt.Errorf("task %s is already deployed on %s; pass --deploy-existing to redeploy", task.TaskID, deref(task.DropletIP))
	}

	blob, err := task.Blob()
	if err != nil {
		return nil, fmt.Errorf("decode task_blob of %s: %w", task.TaskID, err)
	}
	repoURL := blob.RepoURL()
	if repoURL == "" {
		return nil, fmt.Errorf("task %s has no %s resource", task.TaskID, types.ResourceGithubRepo)
	}

	target, err := u.resolveTarget(dbc, task, in)
	if err != nil {
		return nil, err
	}
	log = log.With("ip", target.IP)
	out := &DeployOutput{TaskID: task.TaskID, RepoURL: repoURL, DropletIP: target.IP}
	out.Droplet = u.describe(ctx, log, target.IP)

	workDir, err := os.MkdirTemp("", "deploy-"+task.TaskID+"-")
	if err != nil {
		return out, fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)
	repoDir := filepath.Join(workDir, "repo")
	if err := u.deps.Cloner.Clone(ctx, repoURL, u.deps.Branch, repoDir); err != nil {
		return out, err
	}

	remoteDir := firstNonEmpty(in.RemoteDir, DefaultRemoteDir)
	scriptRel := strings.TrimPrefix(firstNonEmpty(in.ScriptPath, DefaultScriptPath), "/")
	if _, err := os.Stat(filepath.Join(repoDir, filepath.FromSlash(scriptRel))); err != nil {
		return out, fmt.Errorf("script %s not found in %s: %w", scriptRel, repoURL, err)
	}

	out.Upload = u.deps.Agent.Upload(ctx, target, repoDir, remoteDir)
	if !out.Upload.OK() {
		return out, fmt.Errorf("upload to %s failed: %s", target.IP, out.Upload)
	}
	out.Execute = u.deps.Agent.Execute(ctx, target, path.Join(remoteDir, scriptRel))
	if !out.Execute.OK() {
		return out, fmt.Errorf("deploy script on %s failed: %s", target.IP, out.Execute)
	}

	if err := u.deps.Tasks.MarkDeployed(dbc, task.TaskID, target.IP, u.deps.Now().UTC()); err != nil {
		return out, fmt.Errorf("mark task %s deployed: %w", task.TaskID, err)
	}
	log.Info("task deployed", "repo", repoURL, "files", out.Upload.Files)
	return out, nil
}

type ResetInput struct {
	TaskID    string
	DropletIP string
	// ScriptPath is a local file uploaded and then executed on the droplet.
	ScriptPath string
	RemoteDir  string
}

type ResetOutput struct {
	TaskID    string
	DropletIP string
	Upload    Result
	Execute   Result
}

// Reset runs a local reset script on the droplet and clears the task's deployment fields.
func (u Usecases) Reset(ctx context.Context, in ResetInput) (*ResetOutput, error) {
	if strings.TrimSpace(in.TaskID) == "" || strings.TrimSpace(in.DropletIP) == "" || strings.TrimSpace(in.ScriptPath) == "" {
		return nil, fmt.Errorf("task id, droplet ip and script path are required")
	}
	log := u.deps.Log.With("op", "reset", "task_id", in.TaskID, "ip", in.DropletIP)
	dbc := dbctx.From(ctx)

	task, err := u.deps.Tasks.Get(dbc, in.TaskID)
	if err != nil {
		return nil, fmt.Errorf("load task %s: %w", in.TaskID, err)
	}
	if !task.IsDeployed {
		log.Warn("task is not marked deployed; resetting anyway")
	} else if ip := deref(task.DropletIP); ip != "" && ip != in.DropletIP {
		log.Warn("task is recorded on a different droplet", "recorded_ip", ip)
	}

	stage, err := os.MkdirTemp("", "reset-"+in.TaskID+"-")
	if err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(stage)
	raw, err := os.ReadFile(in.ScriptPath)
	if err != nil {
		return nil, fmt.Errorf("read reset script: %w", err)
	}
	name := filepath.Base(in.ScriptPath)
	if err := os.WriteFile(filepath.Join(stage, name), raw, 0o755); err != nil {
		return nil, fmt.Errorf("stage reset script: %w", err)
	}

	target := types.DropletTarget{IP: strings.TrimSpace(in.DropletIP)}
	remoteDir := firstNonEmpty(in.RemoteDir, DefaultResetDir)
	out := &ResetOutput{TaskID: task.TaskID, DropletIP: target.IP}

	out.Upload = u.deps.Agent.Upload(ctx, target, stage, remoteDir)
	if !out.Upload.OK() {
		return out, fmt.Errorf("upload reset script to %s failed: %s", target.IP, out.Upload)
	}
	out.Execute = u.deps.Agent.Execute(ctx, target, path.Join(remoteDir, name))
	if !out.Execute.OK() {
		return out, fmt.Errorf("reset script on %s failed: %s", target.IP, out.Execute)
	}

	if err := u.deps.Tasks.ClearDeployment(dbc, task.TaskID); err != nil {
		return out, fmt.Errorf("clear deployment of %s: %w", task.TaskID, err)
	}
	log.Info("task reset")
	return out, nil
}

func (u Usecases) resolveTask(dbc dbctx.Context, in DeployInput) (*types.TaskRecord, error) {
	switch {
	case strings.TrimSpace(in.TaskID) != "":
		t, err := u.deps.Tasks.Get(dbc, strings.TrimSpace(in.TaskID))
		if err != nil {
			return nil, fmt.Errorf("load task %s: %w", in.TaskID, err)
		}
		return t, nil
	case strings.TrimSpace(in.CompetencyID) != "":
		t, err := u.deps.Tasks.LatestForCompetency(dbc, strings.TrimSpace(in.CompetencyID))
		if err != nil {
			return nil, fmt.Errorf("latest task for competency %s: %w", in.CompetencyID, err)
		}
		return t, nil
	}
	return nil, fmt.Errorf("either a task id or a competency id is required")
}

func (u Usecases) resolveTarget(dbc dbctx.Context, task *types.TaskRecord, in DeployInput) (types.DropletTarget, error) {
	if ip := strings.TrimSpace(in.DropletIP); ip != "" {
		if u.deps.Pool != nil && u.deps.Pool.Len() > 0 && !u.deps.Pool.Contains(ip) {
			u.deps.Log.Warn("droplet ip is not in AVAILABLE_IPS", "ip", ip)
		}
		return types.DropletTarget{IP: ip}, nil
	}
	if task.IsDeployed && deref(task.DropletIP) != "" {
		return types.DropletTarget{IP: deref(task.DropletIP)}, nil
	}
	if u.deps.Pool == nil {
		return types.DropletTarget{}, fmt.Errorf("no droplet ip given and no pool configured")
	}
	rows, err := u.deps.Tasks.ListAll(dbc)
	if err != nil {
		return types.DropletTarget{}, fmt.Errorf("list deployed tasks: %w", err)
	}
	inUse := map[string]bool{}
	for _, r := range rows {
		if r.IsDeployed && deref(r.DropletIP) != "" {
			inUse[deref(r.DropletIP)] = true
		}
	}
	return u.deps.Pool.Pick(inUse)
}

func (u Usecases) describe(ctx context.Context, log *logger.Logger, ip string) *types.DropletInfo {
	if u.deps.Droplets == nil {
		return nil
	}
	info, err := u.deps.Droplets.FindByIP(ctx, ip)
	if err != nil {
		log.Warn("droplet lookup failed", "error", err)
		return nil
	}
	log.Info("droplet", "id", info.ID, "name", info.Name, "size", info.Size, "region", info.Region, "status", info.Status)
	return info
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
