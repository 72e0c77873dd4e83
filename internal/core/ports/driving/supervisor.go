package driving

import (
	"context"
	"encoding/json"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
)

// ConnectionSupervisor owns per-server transports and their health.
type ConnectionSupervisor interface {
	// Connect builds a transport and performs the ping handshake.
	// On success the server is connected and a health-check task starts.
	// On failure the server's status is error and a *domain.HandshakeError
	// is returned.
	Connect(ctx context.Context, server *domain.Server) error

	// SendMessage delivers req with retry and exponential backoff.
	SendMessage(ctx context.Context, server *domain.Server, req domain.Request) (*domain.Response, error)

	// Capabilities sends a capabilities request and returns the raw result.
	Capabilities(ctx context.Context, server *domain.Server) (json.RawMessage, error)

	// Disconnect stops health checks and drops the server's transport.
	Disconnect(serverID string) error

	// ConnectionStatus returns the status of every held connection.
	ConnectionStatus() map[string]domain.ServerStatus

	// Close disconnects every server.
	Close() error
}

// EventHandler reacts to a dispatched event.
type EventHandler func(ctx context.Context, event *domain.Event) error

// EventDispatcher queues events and fans them out to handlers.
type EventDispatcher interface {
	// RegisterHandler adds a handler for an event type.
	RegisterHandler(eventType domain.EventType, handler EventHandler)

	// Dispatch queues event and returns without waiting for handlers.
	Dispatch(ctx context.Context, event *domain.Event) error

	// Flush blocks until the queue is empty and no event is being handled.
	Flush(ctx context.Context) error

	// Clear drops queued events that have not started processing.
	Clear()

	// Stats reports queue depth, processing state and handler count.
	Stats() domain.DispatcherStats
}
