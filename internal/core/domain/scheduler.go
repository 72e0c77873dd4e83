package domain

import (
	"strings"
	"time"
)

// HistoryRetention is the number of task results kept per task.
const HistoryRetention = 100

const syncTaskPrefix = "sync:"

// SyncTaskID returns the scheduler task id for an integration's auto-sync.
func SyncTaskID(integrationID string) string {
	return syncTaskPrefix + integrationID
}

// IntegrationIDFromTask extracts the integration id from a sync task id.
func IntegrationIDFromTask(taskID string) (string, bool) {
	return strings.CutPrefix(taskID, syncTaskPrefix)
}

// ScheduledTask is the persisted state of one integration's auto-sync timer.
type ScheduledTask struct {
	ID            string        `json:"id"`
	IntegrationID string        `json:"integration_id"`
	Interval      time.Duration `json:"interval"`
	LastRun       time.Time     `json:"last_run"`
	NextRun       time.Time     `json:"next_run"`
	// LastError is empty after a successful run.
	LastError   string    `json:"last_error,omitempty"`
	LastSuccess time.Time `json:"last_success"`
	Enabled     bool      `json:"enabled"`
}

// TaskResult records one execution of a scheduled task.
type TaskResult struct {
	TaskID         string    `json:"task_id"`
	StartedAt      time.Time `json:"started_at"`
	EndedAt        time.Time `json:"ended_at"`
	Success        bool      `json:"success"`
	Error          string    `json:"error,omitempty"`
	ItemsProcessed int       `json:"items_processed"`
}

// Duration is how long the run took.
func (r TaskResult) Duration() time.Duration {
	return r.EndedAt.Sub(r.StartedAt)
}
