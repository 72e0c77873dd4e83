package cli

import (
	"context"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driving"
)

var (
	resultsHistory int
	resultsJSON    bool
)

var integrationsCmd = &cobra.Command{
	Use:   "integrations",
	Short: "List configured integrations",
	Args:  cobra.NoArgs,
	RunE:  runIntegrations,
}

var resultsCmd = &cobra.Command{
	Use:   "results [integration-id]",
	Short: "Show stored sync results",
	Long: `Shows the last stored result of every integration, or of one integration
when an ID is given. With --history, recent auto-sync runs of that
integration are listed too.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runResults,
}

func init() {
	resultsCmd.Flags().IntVar(&resultsHistory, "history", 0, "number of auto-sync runs to show")
	resultsCmd.Flags().BoolVar(&resultsJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(integrationsCmd)
	rootCmd.AddCommand(resultsCmd)
}

func runIntegrations(cmd *cobra.Command, _ []string) error {
	return withFramework(cmd, func(ctx context.Context, fw driving.Framework) error {
		integrations, err := fw.Integrations(ctx)
		if err != nil {
			return err
		}
		if len(integrations) == 0 {
			cmd.Println("No integrations configured.")
			return nil
		}

		cmd.Println("Configured integrations:")
		cmd.Println()
		for i := range integrations {
			in := &integrations[i]
			cmd.Printf("  %s\n", in.ID)
			cmd.Printf("    Name: %s\n", in.Name)
			cmd.Printf("    Server: %s\n", in.ServerID)
			cmd.Printf("    Enabled: %t\n", in.Enabled)
			if in.AutoSync {
				cmd.Printf("    Auto-sync: every %s\n", in.SyncInterval)
			} else {
				cmd.Println("    Auto-sync: off")
			}
			if !in.LastSync.IsZero() {
				cmd.Printf("    Last sync: %s\n", in.LastSync.Format(time.RFC3339))
			}
			cmd.Println()
		}
		cmd.Printf("Total: %d integrations\n", len(integrations))
		return nil
	})
}

func runResults(cmd *cobra.Command, args []string) error {
	return withFramework(cmd, func(ctx context.Context, fw driving.Framework) error {
		if len(args) == 0 {
			results, err := fw.SyncResults(ctx)
			if err != nil {
				return err
			}
			if resultsJSON {
				return printJSON(cmd, results)
			}
			if len(results) == 0 {
				cmd.Println("No sync results stored.")
				return nil
			}
			for i := range results {
				printResult(cmd, results[i])
			}
			return nil
		}

		integrationID := args[0]
		result, err := fw.SyncResult(ctx, integrationID)
		if err != nil {
			return err
		}

		var history []domain.TaskResult
		if resultsHistory > 0 {
			if history, err = fw.TaskHistory(ctx, integrationID, resultsHistory); err != nil {
				return err
			}
		}

		if resultsJSON {
			return printJSON(cmd, map[string]any{"result": result, "history": history})
		}
		printResult(cmd, *result)
		if resultsHistory > 0 {
			printHistory(cmd, history)
		}
		return nil
	})
}

func printResult(cmd *cobra.Command, r domain.SyncResult) {
	state := "succeeded"
	if !r.Success {
		state = "failed"
	}
	cmd.Printf("  %s (%s)\n", r.IntegrationID, state)
	cmd.Printf("    Server: %s\n", r.ServerID)
	cmd.Printf("    At: %s\n", r.Timestamp.Format(time.RFC3339))
	cmd.Printf("    Records: %d processed, %d created, %d updated, %d deleted\n",
		r.RecordsProcessed, r.RecordsCreated, r.RecordsUpdated, r.RecordsDeleted)
	if len(r.Errors) > 0 {
		cmd.Printf("    Errors: %s\n", strings.Join(r.Errors, "; "))
	}
}

func printHistory(cmd *cobra.Command, history []domain.TaskResult) {
	if len(history) == 0 {
		cmd.Println("  No auto-sync runs recorded.")
		return
	}
	cmd.Println("  Recent auto-sync runs:")
	for _, run := range history {
		outcome := "ok"
		if !run.Success {
			outcome = "error: " + run.Error
		}
		cmd.Printf("    %s  %d items  %s\n", run.StartedAt.Format(time.RFC3339), run.ItemsProcessed, outcome)
	}
}
