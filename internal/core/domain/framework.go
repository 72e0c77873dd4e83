package domain

import "time"

// FrameworkConfig tunes the supervisor and dispatcher.
type FrameworkConfig struct {
	// HealthCheckInterval is how often connected servers are pinged.
	HealthCheckInterval time.Duration

	// BaseRetryDelay is the backoff unit: attempt n waits 2^n * BaseRetryDelay.
	BaseRetryDelay time.Duration

	// CircuitBreakerThreshold trips a server's breaker after this many
	// consecutive transport failures. Zero disables the breaker.
	CircuitBreakerThreshold uint32

	// CircuitBreakerTimeout is how long an open breaker waits before probing.
	CircuitBreakerTimeout time.Duration

	// RateLimit caps requests per second to each server. Zero is unlimited.
	RateLimit float64
}

// DefaultFrameworkConfig returns the default tuning.
func DefaultFrameworkConfig() FrameworkConfig {
	return FrameworkConfig{
		HealthCheckInterval:   30 * time.Second,
		BaseRetryDelay:        time.Second,
		CircuitBreakerTimeout: time.Minute,
	}
}

// ServerCounts groups servers by status.
type ServerCounts struct {
	Total        int `json:"total"`
	Connected    int `json:"connected"`
	Disconnected int `json:"disconnected"`
	Error        int `json:"error"`
}

// IntegrationCounts groups integrations by flag.
type IntegrationCounts struct {
	Total    int `json:"total"`
	Enabled  int `json:"enabled"`
	AutoSync int `json:"auto_sync"`
}

// FrameworkStatus is a health summary of the whole framework.
type FrameworkStatus struct {
	Status        string            `json:"status"`
	Servers       ServerCounts      `json:"servers"`
	Integrations  IntegrationCounts `json:"integrations"`
	Dispatcher    DispatcherStats   `json:"dispatcher"`
	SchemaVersion string            `json:"schema_version"`
	LastCheck     time.Time         `json:"last_check"`
}

// Overall health labels.
const (
	HealthHealthy  = "healthy"
	HealthDegraded = "degraded"
)

// Storage backends for integrations, results and scheduler history.
const (
	StorageSQLite = "sqlite"
	StorageMemory = "memory"
)

// Config is the complete runtime configuration: framework tuning plus the
// servers and integrations registered at startup.
type Config struct {
	LogLevel     string
	DataDir      string
	Storage      string
	Framework    FrameworkConfig
	Servers      []*Server
	Integrations []Integration
}
