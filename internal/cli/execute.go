// Package cli holds the cobra commands behind the cmd/ binaries.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Execute runs cmd and returns the process exit code: 0 on success, 1 on any error.
func Execute(cmd *cobra.Command) int {
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := cmd.ExecuteContext(ctx); err != nil {
		NewPrinter(cmd.ErrOrStderr()).Failure(err)
		return 1
	}
	return 0
}

func addEnvFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVar(target, "env", "", "database environment: dev or prod (default $APP_ENV or dev)")
}
