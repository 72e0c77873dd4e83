package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
)

// SyncEngine runs fetch, transform and push for integrations.
type SyncEngine interface {
	// Sync runs one integration against its server. Failures are reported
	// in the result, never as an error.
	Sync(ctx context.Context, integration *domain.Integration, server *domain.Server) *domain.SyncResult

	// Fail records a run that could not start, such as one whose server is
	// no longer registered, as a failed result and announces it.
	Fail(ctx context.Context, integration *domain.Integration, serverID string, cause error) *domain.SyncResult

	// Status returns sync status for an integration.
	Status(ctx context.Context, integrationID string) (*SyncStatus, error)

	// Result returns the last stored result for an integration.
	Result(ctx context.Context, integrationID string) (*domain.SyncResult, error)

	// Results returns every stored result.
	Results(ctx context.Context) ([]domain.SyncResult, error)

	// ClearResults removes stored results.
	ClearResults(ctx context.Context) error
}

// SyncStatus represents the current state of a sync operation.
type SyncStatus struct {
	// IntegrationID identifies the integration.
	IntegrationID string

	// Running indicates if sync is currently in progress.
	Running bool

	// StartedAt is when the running sync began.
	StartedAt time.Time

	// RecordsFetched is the number of records returned by the server so far.
	RecordsFetched int
}
