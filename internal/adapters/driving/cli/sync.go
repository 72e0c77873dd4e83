package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driving"
)

var syncJSON bool

var syncCmd = &cobra.Command{
	Use:   "sync [integration-id]",
	Short: "Synchronise integrations",
	Long: `Fetches records from an integration's server, transforms them and pushes
the batch back. If an integration ID is provided, only that integration is
synchronised. Otherwise, every enabled integration is synchronised.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSync,
}

func init() {
	syncCmd.Flags().BoolVar(&syncJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	return withFramework(cmd, func(ctx context.Context, fw driving.Framework) error {
		if len(args) > 0 {
			return syncOne(ctx, cmd, fw, args[0])
		}
		return syncAll(ctx, cmd, fw)
	})
}

func syncOne(ctx context.Context, cmd *cobra.Command, fw driving.Framework, integrationID string) error {
	if !syncJSON {
		cmd.Printf("Synchronising integration: %s...\n", integrationID)
	}

	result, err := fw.SyncIntegration(ctx, integrationID)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	if syncJSON {
		return printJSON(cmd, result)
	}
	if !result.Success {
		return fmt.Errorf("sync of %s failed: %s", integrationID, strings.Join(result.Errors, "; "))
	}
	cmd.Printf("Integration %s synchronised: %s\n", integrationID, summarise(*result))
	return nil
}

func syncAll(ctx context.Context, cmd *cobra.Command, fw driving.Framework) error {
	if !syncJSON {
		cmd.Println("Synchronising all integrations...")
	}

	results, err := fw.SyncAll(ctx)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	var failures *multierror.Error
	for i := range results {
		if !results[i].Success {
			failures = multierror.Append(failures,
				fmt.Errorf("%s: %s", results[i].IntegrationID, strings.Join(results[i].Errors, "; ")))
		}
	}

	if syncJSON {
		if err := printJSON(cmd, results); err != nil {
			return err
		}
	} else {
		if len(results) == 0 {
			cmd.Println("No enabled integrations.")
			return nil
		}
		for i := range results {
			status := "ok  "
			if !results[i].Success {
				status = "FAIL"
			}
			cmd.Printf("  %s %s: %s\n", status, results[i].IntegrationID, summarise(results[i]))
		}
	}

	if failures != nil {
		return fmt.Errorf("%d of %d integrations failed: %w", len(failures.Errors), len(results), failures)
	}
	if !syncJSON {
		cmd.Println("All integrations synchronised successfully.")
	}
	return nil
}

func summarise(r domain.SyncResult) string {
	if !r.Success {
		return strings.Join(r.Errors, "; ")
	}
	return fmt.Sprintf("%d processed, %d created, %d updated, %d deleted (%s)",
		r.RecordsProcessed, r.RecordsCreated, r.RecordsUpdated, r.RecordsDeleted, r.Duration.Round(time.Millisecond))
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
