package mcp

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
)

// SyncIntegrationInput is the input schema for the sync_integration tool.
type SyncIntegrationInput struct {
	IntegrationID string `json:"integration_id" jsonschema:"the integration to sync"`
}

// SyncResultOutput is one sync run as reported to the client.
type SyncResultOutput struct {
	IntegrationID    string   `json:"integration_id"`
	ServerID         string   `json:"server_id"`
	Success          bool     `json:"success"`
	RecordsProcessed int      `json:"records_processed"`
	RecordsCreated   int      `json:"records_created"`
	RecordsUpdated   int      `json:"records_updated"`
	RecordsDeleted   int      `json:"records_deleted"`
	Errors           []string `json:"errors,omitempty"`
	DurationMS       int64    `json:"duration_ms"`
	Timestamp        string   `json:"timestamp"`
}

// SyncAllInput is the (empty) input schema for the sync_all tool.
type SyncAllInput struct{}

// SyncAllOutput is the output schema for the sync_all tool.
type SyncAllOutput struct {
	Results   []SyncResultOutput `json:"results"`
	Succeeded int                `json:"succeeded"`
	Failed    int                `json:"failed"`
}

// StatusInput is the (empty) input schema for the status tool.
type StatusInput struct{}

// StatusOutput is the output schema for the status tool.
type StatusOutput struct {
	Status        string                   `json:"status"`
	Servers       domain.ServerCounts      `json:"servers"`
	Integrations  domain.IntegrationCounts `json:"integrations"`
	QueueLength   int                      `json:"queue_length"`
	HandlerCount  int                      `json:"handler_count"`
	SchemaVersion string                   `json:"schema_version"`
	LastCheck     string                   `json:"last_check"`
}

// PingServerInput is the input schema for the ping_server tool.
type PingServerInput struct {
	ServerID string `json:"server_id" jsonschema:"the server to ping"`
}

// PingServerOutput is the output schema for the ping_server tool.
type PingServerOutput struct {
	ServerID  string `json:"server_id"`
	Reachable bool   `json:"reachable"`
	Status    string `json:"status"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "sync_integration",
		Description: "Run one sync for an integration and report the result",
	}, s.handleSyncIntegration)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "sync_all",
		Description: "Sync every enabled integration",
	}, s.handleSyncAll)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "status",
		Description: "Summarise server, integration and event queue health",
	}, s.handleStatus)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ping_server",
		Description: "Check whether an adapter server answers a ping",
	}, s.handlePingServer)
}

func (s *Server) handleSyncIntegration(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SyncIntegrationInput,
) (*mcp.CallToolResult, SyncResultOutput, error) {
	result, err := s.ports.Framework.SyncIntegration(ctx, input.IntegrationID)
	if err != nil {
		return nil, SyncResultOutput{}, err
	}
	return nil, toResultOutput(*result), nil
}

func (s *Server) handleSyncAll(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ SyncAllInput,
) (*mcp.CallToolResult, SyncAllOutput, error) {
	results, err := s.ports.Framework.SyncAll(ctx)
	if err != nil {
		return nil, SyncAllOutput{}, err
	}

	output := SyncAllOutput{Results: make([]SyncResultOutput, len(results))}
	for i := range results {
		output.Results[i] = toResultOutput(results[i])
		if results[i].Success {
			output.Succeeded++
		} else {
			output.Failed++
		}
	}
	return nil, output, nil
}

func (s *Server) handleStatus(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ StatusInput,
) (*mcp.CallToolResult, StatusOutput, error) {
	status, err := s.ports.Framework.Status(ctx)
	if err != nil {
		return nil, StatusOutput{}, err
	}
	return nil, StatusOutput{
		Status:        status.Status,
		Servers:       status.Servers,
		Integrations:  status.Integrations,
		QueueLength:   status.Dispatcher.QueueLength,
		HandlerCount:  status.Dispatcher.HandlerCount,
		SchemaVersion: status.SchemaVersion,
		LastCheck:     status.LastCheck.Format(time.RFC3339),
	}, nil
}

// handlePingServer reports an unreachable server in the output rather than
// as a tool error; only unknown server IDs fail the call.
func (s *Server) handlePingServer(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input PingServerInput,
) (*mcp.CallToolResult, PingServerOutput, error) {
	server, err := s.ports.Framework.Server(ctx, input.ServerID)
	if err != nil {
		return nil, PingServerOutput{}, err
	}

	output := PingServerOutput{ServerID: server.ID}
	start := time.Now()
	resp, err := s.ports.Framework.SendMessage(ctx, server.ID, domain.NewRequest("ping", domain.MethodPing, nil))
	output.LatencyMS = time.Since(start).Milliseconds()
	output.Status = string(server.Status())

	if err != nil {
		output.Error = err.Error()
		return nil, output, nil
	}
	var pong string
	if err := resp.Decode(&pong); err != nil || pong != domain.PongResult {
		output.Error = "unexpected ping reply"
		return nil, output, nil
	}
	output.Reachable = true
	return nil, output, nil
}

func toResultOutput(r domain.SyncResult) SyncResultOutput {
	return SyncResultOutput{
		IntegrationID:    r.IntegrationID,
		ServerID:         r.ServerID,
		Success:          r.Success,
		RecordsProcessed: r.RecordsProcessed,
		RecordsCreated:   r.RecordsCreated,
		RecordsUpdated:   r.RecordsUpdated,
		RecordsDeleted:   r.RecordsDeleted,
		Errors:           r.Errors,
		DurationMS:       r.Duration.Milliseconds(),
		Timestamp:        r.Timestamp.Format(time.RFC3339),
	}
}
