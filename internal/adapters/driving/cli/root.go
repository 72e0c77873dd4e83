// Package cli provides the syncbridge command-line interface.
package cli

import (
	"context"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/syncbridge/internal/app"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driving"
	"github.com/custodia-labs/syncbridge/internal/logger"
)

const shutdownTimeout = 10 * time.Second

var (
	version = "dev"

	configPath string
	verbose    bool

	// framework, when set, is used instead of building one from the
	// config file. Tests inject mocks here.
	framework driving.Framework
)

var rootCmd = &cobra.Command{
	Use:   "syncbridge",
	Short: "Reconcile data from adapter servers into a unified schema",
	Long: `syncbridge connects to adapter servers over JSON-RPC, pulls records from
them, maps the records onto a unified schema and pushes the result back.

Servers and integrations are declared in ~/.syncbridge/config.toml.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		if verbose {
			logger.SetVerbose(true)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ~/.syncbridge/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command with ctx. v is the build version.
func Execute(ctx context.Context, v string) error {
	if v != "" {
		version = v
	}
	return rootCmd.ExecuteContext(ctx)
}

// withFramework builds and starts the framework from the config file,
// runs fn and shuts the framework down again.
func withFramework(cmd *cobra.Command, fn func(ctx context.Context, fw driving.Framework) error) error {
	ctx := cmd.Context()
	if framework != nil {
		return fn(ctx, framework)
	}

	a, err := app.New(ctx, app.Options{ConfigPath: configPath})
	if err != nil {
		return err
	}
	if err := a.Start(ctx); err != nil {
		logger.Warn("Some configured entries could not be registered: %v", err)
	}

	var result *multierror.Error
	if err := fn(ctx, a.Framework); err != nil {
		result = multierror.Append(result, err)
	}

	if err := shutdown(ctx, a.Close); err != nil {
		result = multierror.Append(result, err)
	}
	if result != nil && len(result.Errors) == 1 {
		return result.Errors[0]
	}
	return result.ErrorOrNil()
}
