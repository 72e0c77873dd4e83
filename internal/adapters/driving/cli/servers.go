package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driving"
)

var serversCmd = &cobra.Command{
	Use:   "servers",
	Short: "List configured servers and their connection status",
	Args:  cobra.NoArgs,
	RunE:  runServers,
}

var pingCmd = &cobra.Command{
	Use:   "ping [server-id]",
	Short: "Ping an adapter server",
	Long:  `Sends a ping request to the server and reports whether it answered pong.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runPing,
}

func init() {
	rootCmd.AddCommand(serversCmd)
	rootCmd.AddCommand(pingCmd)
}

func runServers(cmd *cobra.Command, _ []string) error {
	return withFramework(cmd, func(ctx context.Context, fw driving.Framework) error {
		servers, err := fw.Servers(ctx)
		if err != nil {
			return err
		}
		if len(servers) == 0 {
			cmd.Println("No servers configured.")
			return nil
		}

		cmd.Println("Configured servers:")
		cmd.Println()
		for _, srv := range servers {
			snap := srv.Snapshot()
			cmd.Printf("  %s\n", snap.ID)
			cmd.Printf("    Name: %s\n", snap.Name)
			cmd.Printf("    Status: %s\n", snap.Status)
			cmd.Printf("    URL: %s\n", snap.Config.URL())
			if snap.LastSync != nil {
				cmd.Printf("    Last sync: %s\n", snap.LastSync.Format(time.RFC3339))
			}
			cmd.Println()
		}
		cmd.Printf("Total: %d servers\n", len(servers))
		return nil
	})
}

func runPing(cmd *cobra.Command, args []string) error {
	serverID := args[0]
	return withFramework(cmd, func(ctx context.Context, fw driving.Framework) error {
		start := time.Now()
		resp, err := fw.SendMessage(ctx, serverID, domain.NewRequest("ping", domain.MethodPing, nil))
		if err != nil {
			return fmt.Errorf("ping %s failed: %w", serverID, err)
		}

		var reply string
		if err := resp.Decode(&reply); err != nil || reply != domain.PongResult {
			return fmt.Errorf("ping %s: unexpected reply %s", serverID, string(resp.Result))
		}
		cmd.Printf("%s: %s (%s)\n", serverID, reply, time.Since(start).Round(time.Millisecond))
		return nil
	})
}
