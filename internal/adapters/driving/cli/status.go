package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driving"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show framework health",
	Long: `Connects to the configured servers and reports how many are connected,
how many integrations are enabled and auto-syncing, and the event queue state.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the unified schema as JSON",
	Args:  cobra.NoArgs,
	RunE:  runSchema,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output status as JSON")
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(schemaCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	return withFramework(cmd, func(ctx context.Context, fw driving.Framework) error {
		status, err := fw.Status(ctx)
		if err != nil {
			return err
		}
		if statusJSON {
			return printJSON(cmd, status)
		}

		cmd.Printf("Status: %s\n\n", status.Status)
		cmd.Printf("Servers: %d total, %d connected, %d disconnected, %d error\n",
			status.Servers.Total, status.Servers.Connected, status.Servers.Disconnected, status.Servers.Error)
		cmd.Printf("Integrations: %d total, %d enabled, %d auto-sync\n",
			status.Integrations.Total, status.Integrations.Enabled, status.Integrations.AutoSync)
		cmd.Printf("Events: %d queued, %d handlers\n",
			status.Dispatcher.QueueLength, status.Dispatcher.HandlerCount)
		cmd.Printf("Schema version: %s\n", status.SchemaVersion)
		cmd.Printf("Checked at: %s\n", status.LastCheck.Format(time.RFC3339))
		return nil
	})
}

// runSchema prints the schema without contacting any server.
func runSchema(cmd *cobra.Command, _ []string) error {
	var schema *domain.UnifiedSchema
	if framework != nil {
		schema = framework.UnifiedSchema()
	} else {
		var err error
		if schema, err = domain.DefaultUnifiedSchema(); err != nil {
			return err
		}
	}
	return printJSON(cmd, schema)
}
