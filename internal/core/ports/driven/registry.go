package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
)

// ServerStore holds registered servers. Servers carry live connection
// state, so stores keep and return the same pointers.
type ServerStore interface {
	// Save stores or replaces a server.
	Save(ctx context.Context, server *domain.Server) error

	// Get retrieves a server by ID.
	// Returns domain.ErrNotFound if it is not registered.
	Get(ctx context.Context, id string) (*domain.Server, error)

	// Delete removes a server. Deleting an unknown ID is not an error.
	Delete(ctx context.Context, id string) error

	// List returns all servers in registration order.
	List(ctx context.Context) ([]*domain.Server, error)
}

// IntegrationStore persists integration definitions.
type IntegrationStore interface {
	// Save stores or updates an integration.
	Save(ctx context.Context, integration domain.Integration) error

	// Get retrieves an integration by ID.
	// Returns domain.ErrNotFound if it is not registered.
	Get(ctx context.Context, id string) (*domain.Integration, error)

	// Delete removes an integration.
	Delete(ctx context.Context, id string) error

	// List returns all integrations in registration order.
	List(ctx context.Context) ([]domain.Integration, error)

	// SetLastSync records a successful sync time.
	SetLastSync(ctx context.Context, id string, at time.Time) error
}

// SyncResultStore keeps the most recent sync result per integration.
type SyncResultStore interface {
	// Save stores result, replacing any previous result for its integration.
	Save(ctx context.Context, result domain.SyncResult) error

	// Get returns the last result for an integration.
	// Returns domain.ErrNotFound if none has been recorded.
	Get(ctx context.Context, integrationID string) (*domain.SyncResult, error)

	// List returns the last result of every integration.
	List(ctx context.Context) ([]domain.SyncResult, error)

	// Clear removes all results.
	Clear(ctx context.Context) error
}
