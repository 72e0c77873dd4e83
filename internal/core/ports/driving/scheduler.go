package driving

import (
	"context"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
)

// Scheduler runs each auto-syncing integration on its own interval timer.
type Scheduler interface {
	// Schedule starts (or restarts) the timer for an integration.
	Schedule(ctx context.Context, integration domain.Integration) error

	// Unschedule stops an integration's timer.
	Unschedule(integrationID string)

	// Tasks returns the IDs of integrations with an active timer.
	Tasks() []string

	// Stop stops all timers and waits for running syncs to finish.
	Stop() error
}
