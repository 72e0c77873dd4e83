package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
)

const uriScheme = "syncbridge://"

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "schema",
		Name:        "schema",
		Description: "The unified schema records are reconciled into",
		MIMEType:    "application/json",
	}, s.handleSchemaResource)

	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "servers",
		Name:        "servers",
		Description: "Registered adapter servers and their connection status",
		MIMEType:    "application/json",
	}, s.handleServersResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "results/{integrationId}",
		Name:        "sync-result",
		Description: "Last sync result of an integration",
		MIMEType:    "application/json",
	}, s.handleResultResource)
}

func (s *Server) handleSchemaResource(
	_ context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	return jsonResource(req.Params.URI, s.ports.Framework.UnifiedSchema())
}

func (s *Server) handleServersResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	servers, err := s.ports.Framework.Servers(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing servers: %w", err)
	}
	snapshots := make([]domain.ServerSnapshot, len(servers))
	for i, srv := range servers {
		snapshots[i] = srv.Snapshot()
	}
	return jsonResource(req.Params.URI, snapshots)
}

func (s *Server) handleResultResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	integrationID := extractIntegrationID(req.Params.URI)
	if integrationID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	result, err := s.ports.Framework.SyncResult(ctx, integrationID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("getting sync result: %w", err)
	}
	return jsonResource(req.Params.URI, toResultOutput(*result))
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling %s: %w", uri, err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractIntegrationID extracts the ID from a URI like syncbridge://results/{integrationId}.
func extractIntegrationID(uri string) string {
	const prefix = uriScheme + "results/"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}
	id := strings.TrimPrefix(uri, prefix)
	if strings.Contains(id, "/") {
		return ""
	}
	return id
}
