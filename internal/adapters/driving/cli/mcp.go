package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/syncbridge/internal/adapters/driving/mcp"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driving"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server so AI assistants can trigger syncs
and inspect framework state.

By default, the server communicates over stdio. Use --port to serve the
streamable HTTP transport instead.

Tools: sync_integration, sync_all, status, ping_server
Resources: syncbridge://schema, syncbridge://servers, syncbridge://results/{id}

Examples:
  # Stdio mode
  syncbridge mcp serve

  # HTTP mode
  syncbridge mcp serve --port 8080`,
	Args: cobra.NoArgs,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntP("port", "p", 0, "HTTP port (0 = use stdio)")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return fmt.Errorf("getting port flag: %w", err)
	}

	return withFramework(cmd, func(ctx context.Context, fw driving.Framework) error {
		server, err := mcp.NewServer(&mcp.Ports{Framework: fw})
		if err != nil {
			return err
		}

		if port > 0 {
			addr := fmt.Sprintf(":%d", port)
			fmt.Fprintf(cmd.OutOrStdout(), "MCP server listening on http://localhost%s\n", addr)
			return server.RunHTTP(ctx, addr)
		}
		return server.Run(ctx)
	})
}
