package driving

import (
	"context"
	"encoding/json"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
)

// Framework is the facade collaborators use to register servers and
// integrations, trigger syncs and inspect state.
type Framework interface {
	// RegisterServer stores the server, filling unset fields with defaults,
	// and performs the handshake. The server stays registered when the
	// handshake fails; the error is returned and reflected in its status.
	RegisterServer(ctx context.Context, server *domain.Server) (*domain.Server, error)

	// UnregisterServer disconnects and removes a server.
	UnregisterServer(ctx context.Context, serverID string) error

	// Servers returns all registered servers.
	Servers(ctx context.Context) ([]*domain.Server, error)

	// Server returns a server by ID.
	Server(ctx context.Context, serverID string) (*domain.Server, error)

	// RegisterIntegration stores the integration and starts its auto-sync
	// timer when it is enabled and auto-syncing.
	RegisterIntegration(ctx context.Context, integration domain.Integration) (*domain.Integration, error)

	// UpdateIntegration replaces an integration and restarts its timer.
	UpdateIntegration(ctx context.Context, integration domain.Integration) (*domain.Integration, error)

	// UnregisterIntegration stops an integration's timer and removes it.
	UnregisterIntegration(ctx context.Context, integrationID string) error

	// Integrations returns all registered integrations.
	Integrations(ctx context.Context) ([]domain.Integration, error)

	// Integration returns an integration by ID.
	Integration(ctx context.Context, integrationID string) (*domain.Integration, error)

	// SyncIntegration runs one sync. Failures of the run itself are
	// reported in the result; the error is reserved for unknown IDs.
	SyncIntegration(ctx context.Context, integrationID string) (*domain.SyncResult, error)

	// SyncAll syncs every enabled integration and returns one result each.
	SyncAll(ctx context.Context) ([]domain.SyncResult, error)

	// SyncResult returns the last result for an integration.
	SyncResult(ctx context.Context, integrationID string) (*domain.SyncResult, error)

	// SyncResults returns the last result of every integration.
	SyncResults(ctx context.Context) ([]domain.SyncResult, error)

	// TaskHistory returns recent auto-sync runs for an integration.
	TaskHistory(ctx context.Context, integrationID string, limit int) ([]domain.TaskResult, error)

	// UnifiedSchema returns a copy of the unified schema.
	UnifiedSchema() *domain.UnifiedSchema

	// Status summarises server, integration and dispatcher state.
	Status(ctx context.Context) (*domain.FrameworkStatus, error)

	// SendMessage delivers a raw request to a server.
	SendMessage(ctx context.Context, serverID string, req domain.Request) (*domain.Response, error)

	// Capabilities asks a server for its capabilities.
	Capabilities(ctx context.Context, serverID string) (json.RawMessage, error)

	// ProcessEvent hands an externally produced event to the dispatcher.
	ProcessEvent(ctx context.Context, event *domain.Event) error

	// Shutdown stops timers and health checks and closes all connections.
	Shutdown(ctx context.Context) error
}
