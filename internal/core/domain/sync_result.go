package domain

import (
	"encoding/json"
	"time"
)

// SyncStats are the counts reported by a server after sync_to_target.
type SyncStats struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Deleted int `json:"deleted"`
}

// SyncResult is the outcome of one sync run for an integration. In JSON
// the duration is written as whole milliseconds under duration_ms.
type SyncResult struct {
	ServerID         string        `json:"server_id"`
	IntegrationID    string        `json:"integration_id"`
	Success          bool          `json:"success"`
	RecordsProcessed int           `json:"records_processed"`
	RecordsCreated   int           `json:"records_created"`
	RecordsUpdated   int           `json:"records_updated"`
	RecordsDeleted   int           `json:"records_deleted"`
	Errors           []string      `json:"errors"`
	Duration         time.Duration `json:"-"`
	Timestamp        time.Time     `json:"timestamp"`
}

// NewFailedSyncResult returns a failed result carrying err.
func NewFailedSyncResult(serverID, integrationID string, err error) *SyncResult {
	r := &SyncResult{
		ServerID:      serverID,
		IntegrationID: integrationID,
		Errors:        []string{},
		Timestamp:     time.Now(),
	}
	if err != nil {
		r.Errors = append(r.Errors, err.Error())
	}
	return r
}

// ApplyStats copies server-reported counts into the result.
func (r *SyncResult) ApplyStats(s SyncStats) {
	r.RecordsCreated = s.Created
	r.RecordsUpdated = s.Updated
	r.RecordsDeleted = s.Deleted
}

type plainSyncResult SyncResult

// MarshalJSON writes the result with its duration in milliseconds.
func (r SyncResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		plainSyncResult
		DurationMS int64 `json:"duration_ms"`
	}{plainSyncResult(r), r.Duration.Milliseconds()})
}

// UnmarshalJSON reads a result written by MarshalJSON.
func (r *SyncResult) UnmarshalJSON(data []byte) error {
	aux := struct {
		*plainSyncResult
		DurationMS int64 `json:"duration_ms"`
	}{plainSyncResult: (*plainSyncResult)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.Duration = time.Duration(aux.DurationMS) * time.Millisecond
	return nil
}
