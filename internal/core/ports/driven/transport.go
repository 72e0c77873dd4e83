package driven

import (
	"context"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
)

// Transport delivers request envelopes to a single server.
// Implementations must be safe for concurrent use.
type Transport interface {
	// Call sends req and returns the server's response envelope.
	// Delivery failures are returned as *domain.TransportError; responses
	// that cannot be decoded as *domain.ProtocolError. A response carrying
	// an error member is returned as-is with a nil error.
	Call(ctx context.Context, req domain.Request) (*domain.Response, error)

	// Close releases resources held by the transport.
	Close() error
}

// TransportFactory creates transports from server configuration.
type TransportFactory interface {
	// New builds a transport for server. It does not perform any I/O.
	New(server *domain.Server) (Transport, error)
}
