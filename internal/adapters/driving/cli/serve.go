package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/syncbridge/internal/app"
	"github.com/custodia-labs/syncbridge/internal/core/services"
	"github.com/custodia-labs/syncbridge/internal/logger"
)

var serveWatch bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the framework until interrupted",
	Long: `Registers the configured servers and integrations, runs health checks and
auto-sync timers, and blocks until interrupted.

With --watch, edits to the config file (or its .env) register new servers
and register or update integrations without a restart.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVarP(&serveWatch, "watch", "w", false, "reload the config file when it changes")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	if framework != nil {
		services.LogStatus(ctx, framework)
		cmd.Println("Serving. Press Ctrl+C to stop.")
		<-ctx.Done()
		return shutdown(ctx, framework.Shutdown)
	}

	a, err := app.New(ctx, app.Options{ConfigPath: configPath})
	if err != nil {
		return err
	}
	if err := a.Start(ctx); err != nil {
		logger.Warn("Some configured entries could not be registered: %v", err)
	}

	if serveWatch {
		go func() {
			if err := a.Watch(ctx); err != nil {
				logger.Error("Config watcher stopped: %v", err)
			}
		}()
	}

	cmd.Printf("Serving %d servers and %d integrations from %s. Press Ctrl+C to stop.\n",
		len(a.Config.Servers), len(a.Config.Integrations), a.ConfigStore.Path())
	<-ctx.Done()

	logger.Info("Shutting down")
	return shutdown(ctx, a.Close)
}

func shutdown(ctx context.Context, closeFn func(context.Context) error) error {
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return closeFn(shutdownCtx)
}
