package driven

import (
	"context"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
)

// ConfigStore provides access to the framework configuration.
// Implementations handle persistence (e.g., TOML files), environment
// expansion and validation.
type ConfigStore interface {
	// Load reads and validates the configuration.
	Load() (*domain.Config, error)

	// Watch calls onChange with the reloaded configuration whenever the
	// underlying storage changes. It blocks until ctx is cancelled.
	// Reloads that fail validation are logged and skipped.
	Watch(ctx context.Context, onChange func(*domain.Config)) error

	// Path returns the configuration file path.
	Path() string
}
