package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ngm9/Utkrusht-task-sub000/internal/app"
	"github.com/ngm9/Utkrusht-task-sub000/internal/modules/gists"
)

func NewGistManagerCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "gistmanager",
		Short: "Create task gists and keep prod and dev task rows in step",
	}
	root.AddCommand(
		batchCommand("sync-prod-to-dev", "Copy prod gist urls onto matching dev tasks",
			func(ctx context.Context, uc gists.Usecases) (*gists.Summary, error) { return uc.SyncProdToDev(ctx) }),
		batchCommand("create-prod-missing-gists", "Create gists for prod tasks that have a repository but no gist",
			func(ctx context.Context, uc gists.Usecases) (*gists.Summary, error) { return uc.CreateProdMissingGists(ctx) }),
		batchCommand("sync-is-enabled", "Copy prod is_enabled onto matching dev tasks",
			func(ctx context.Context, uc gists.Usecases) (*gists.Summary, error) { return uc.SyncIsEnabled(ctx) }),
		createGistsCommand(),
		repoAccessCommand(),
	)
	return root
}

func batchCommand(use, short string, run func(context.Context, gists.Usecases) (*gists.Summary, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p := NewPrinter(cmd.OutOrStdout())
			p.Section("gistmanager " + use)
			a, err := app.New(ctx, "gistmanager", "")
			if err != nil {
				return err
			}
			defer a.Close()
			uc, err := a.Gists(ctx)
			if err != nil {
				return err
			}
			s, err := run(ctx, uc)
			if err != nil {
				return err
			}
			printSummary(p, s)
			return nil
		},
	}
}

func createGistsCommand() *cobra.Command {
	var (
		taskIDs []string
		env     string
		force   bool
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create gists for the given tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p := NewPrinter(cmd.OutOrStdout())
			p.Section("gistmanager create")
			a, err := app.New(ctx, "gistmanager", env)
			if err != nil {
				return err
			}
			defer a.Close()
			uc, err := a.Gists(ctx)
			if err != nil {
				return err
			}
			s, err := uc.Create(ctx, gists.CreateInput{TaskIDs: taskIDs, Env: a.Cfg.Env, Force: force})
			if err != nil {
				return err
			}
			printSummary(p, s)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&taskIDs, "task-ids", nil, "task ids (repeatable or comma separated)")
	cmd.Flags().BoolVar(&force, "force", false, "replace an existing gist url")
	addEnvFlag(cmd, &env)
	_ = cmd.MarkFlagRequired("task-ids")
	_ = cmd.MarkFlagRequired("env")
	return cmd
}

func repoAccessCommand() *cobra.Command {
	var (
		taskID     string
		user       string
		permission string
		env        string
	)
	cmd := &cobra.Command{
		Use:   "repo-access",
		Short: "Show or change a collaborator's access to a task repository",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p := NewPrinter(cmd.OutOrStdout())
			p.Section("gistmanager repo-access")
			a, err := app.New(ctx, "gistmanager", env)
			if err != nil {
				return err
			}
			defer a.Close()
			uc, err := a.Gists(ctx)
			if err != nil {
				return err
			}
			out, err := uc.RepoAccess(ctx, gists.AccessInput{TaskID: taskID, Env: a.Cfg.Env, User: user, Permission: permission})
			if err != nil {
				return err
			}
			p.Success("Repository access", F("repo", out.Repo), F("user", out.User), F("permission", out.Permission))
			return nil
		},
	}
	cmd.Flags().StringVar(&taskID, "task-id", "", "task whose repository to inspect")
	cmd.Flags().StringVar(&user, "user", "", "GitHub login")
	cmd.Flags().StringVar(&permission, "permission", "", "read, triage, write, maintain, admin or none; empty only reads")
	addEnvFlag(cmd, &env)
	_ = cmd.MarkFlagRequired("task-id")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func printSummary(p *Printer, s *gists.Summary) {
	if s.Failed > 0 {
		p.Warn("failed task ids: %s", strings.Join(s.FailedIDs, ", "))
	}
	p.Success(s.Op,
		F("total", s.Total),
		F("updated", s.Updated),
		F("unchanged", s.Unchanged),
		F("skipped", s.Skipped),
		F("failed", s.Failed),
	)
}
