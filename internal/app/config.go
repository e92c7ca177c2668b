package app

import (
	"fmt"
	"strings"

	"github.com/ngm9/Utkrusht-task-sub000/internal/platform/envutil"
)

const (
	EnvDev  = "dev"
	EnvProd = "prod"
)

// Database URLs per environment.
const (
	ProdDSNVar = "SUPABASE_DB_URL_APTITUDETESTS"
	DevDSNVar  = "SUPABASE_DB_URL_APTITUDETESTSDEV"
)

type Config struct {
	Env           string
	LogMode       string
	LogFile       string
	TasksPKColumn string
	AutoMigrate   bool

	RepoOwner    string
	TemplateRepo string
	Branch       string
	OrgToken     string
	GistToken    string

	DropletSSHKey string
	AvailableIPs  []string
	DOToken       string

	SyncLockURL string
}

// LoadConfig reads the process environment. Credentials are not validated here; each
// component checks the ones it needs when it is built.
func LoadConfig(env string) (Config, error) {
	env = strings.ToLower(strings.TrimSpace(env))
	if env == "" {
		env = envutil.String("APP_ENV", EnvDev)
	}
	if env != EnvDev && env != EnvProd {
		return Config{}, fmt.Errorf("unknown env %q (want dev or prod)", env)
	}
	return Config{
		Env:           env,
		LogMode:       envutil.String("LOG_MODE", "development"),
		LogFile:       envutil.String("LOG_FILE", ""),
		TasksPKColumn: envutil.String("TASKS_PK_COLUMN", "task_id"),
		AutoMigrate:   envutil.Bool("DB_AUTO_MIGRATE", false),
		RepoOwner:     envutil.String("REPO_OWNER", ""),
		TemplateRepo:  envutil.String("TEMPLATE_REPO", ""),
		Branch:        envutil.String("REPO_BRANCH", "main"),
		OrgToken:      envutil.String("GITHUB_UTKRUSHTAPPS_TOKEN", ""),
		GistToken:     envutil.String("GITHUB_GIST_TOKEN", ""),
		DropletSSHKey: envutil.String("DROPLET_SSH_PRIVATE_KEY", ""),
		AvailableIPs:  envutil.List("AVAILABLE_IPS"),
		DOToken:       envutil.String("DIGITALOCEAN_API_PAT", ""),
		SyncLockURL:   envutil.String("SYNC_LOCK_REDIS_URL", ""),
	}, nil
}

// DSNVar names the variable holding env's database URL.
func DSNVar(env string) string {
	if env == EnvProd {
		return ProdDSNVar
	}
	return DevDSNVar
}
