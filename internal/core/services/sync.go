package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driven"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driving"
	"github.com/custodia-labs/syncbridge/internal/logger"
	"github.com/custodia-labs/syncbridge/internal/transform"
)

// Ensure SyncEngine implements the interface.
var _ driving.SyncEngine = (*SyncEngine)(nil)

// SyncEngine fetches records from a server, transforms them and pushes the
// batch back, announcing the outcome through the dispatcher.
type SyncEngine struct {
	supervisor   driving.ConnectionSupervisor
	dispatcher   driving.EventDispatcher
	transformer  *transform.Engine
	results      driven.SyncResultStore
	integrations driven.IntegrationStore

	// Status tracking
	mu          sync.RWMutex
	activeSyncs map[string]*driving.SyncStatus
}

// NewSyncEngine creates a sync engine.
func NewSyncEngine(
	supervisor driving.ConnectionSupervisor,
	dispatcher driving.EventDispatcher,
	transformer *transform.Engine,
	results driven.SyncResultStore,
	integrations driven.IntegrationStore,
) *SyncEngine {
	return &SyncEngine{
		supervisor:   supervisor,
		dispatcher:   dispatcher,
		transformer:  transformer,
		results:      results,
		integrations: integrations,
		activeSyncs:  make(map[string]*driving.SyncStatus),
	}
}

type fetchResult struct {
	Data []any `json:"data"`
}

type pushResult struct {
	Stats *domain.SyncStats `json:"stats"`
}

// Sync runs one integration. The returned result is always non-nil; a
// failed run has Success false and the reason in Errors. Every completed
// run is stored, replacing the integration's previous result. A run
// rejected because another is in progress is not stored.
func (e *SyncEngine) Sync(ctx context.Context, integration *domain.Integration, server *domain.Server) *domain.SyncResult {
	start := time.Now()
	result := &domain.SyncResult{
		ServerID:      server.ID,
		IntegrationID: integration.ID,
		Errors:        []string{},
		Timestamp:     start,
	}

	if !e.begin(integration.ID, start) {
		result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", integration.ID, domain.ErrSyncInProgress))
		result.Duration = time.Since(start)
		return result
	}
	defer e.end(integration.ID)

	batch, err := e.run(ctx, integration, server, result)
	result.Duration = time.Since(start)

	if err != nil {
		result.Success = false
		result.Errors = append(result.Errors, err.Error())
		logger.Error("Sync failed for integration %s: %v", integration.Name, err)
		e.dispatch(ctx, NewErrorEvent(server.ID, integration.ID, err))
	} else {
		result.Success = true
		now := time.Now()
		integration.LastSync = now
		if err := e.integrations.SetLastSync(ctx, integration.ID, now); err != nil && !errors.Is(err, domain.ErrNotFound) {
			logger.Warn("Failed to record last sync for %s: %v", integration.ID, err)
		}
		snapshot := *result
		e.dispatch(ctx, NewSyncEvent(server.ID, integration.ID, map[string]any{
			"result": snapshot,
			"data":   batch,
		}))
		logger.Info("Sync completed for integration %s: %d processed, %d created, %d updated, %d deleted",
			integration.Name, result.RecordsProcessed, result.RecordsCreated, result.RecordsUpdated, result.RecordsDeleted)
	}

	if err := e.results.Save(ctx, *result); err != nil {
		logger.Warn("Failed to store sync result for %s: %v", integration.ID, err)
	}
	return result
}

// Fail stores a failed result for a run that never reached the server and
// dispatches an error event for it.
func (e *SyncEngine) Fail(ctx context.Context, integration *domain.Integration, serverID string, cause error) *domain.SyncResult {
	result := domain.NewFailedSyncResult(serverID, integration.ID, cause)
	logger.Error("Sync failed for integration %s: %v", integration.Name, cause)
	e.dispatch(ctx, NewErrorEvent(serverID, integration.ID, cause))
	if err := e.results.Save(ctx, *result); err != nil {
		logger.Warn("Failed to store sync result for %s: %v", integration.ID, err)
	}
	return result
}

// run performs fetch, transform and push, filling result's counts.
func (e *SyncEngine) run(
	ctx context.Context,
	integration *domain.Integration,
	server *domain.Server,
	result *domain.SyncResult,
) ([]map[string]any, error) {
	if !server.IsConnected() {
		return nil, fmt.Errorf("%w: %s is %s", domain.ErrServerNotConnected, server.ID, server.Status())
	}

	logger.Info("Starting sync for integration: %s", integration.Name)

	records, err := e.fetch(ctx, integration, server)
	if err != nil {
		return nil, &domain.SyncError{IntegrationID: integration.ID, Stage: domain.StageFetch, Err: err}
	}
	result.RecordsProcessed = len(records)
	e.setFetched(integration.ID, len(records))

	batch := e.transformAll(integration, records)

	stats, err := e.push(ctx, integration, server, batch)
	if err != nil {
		return nil, &domain.SyncError{IntegrationID: integration.ID, Stage: domain.StagePush, Err: err}
	}
	result.ApplyStats(stats)
	return batch, nil
}

func (e *SyncEngine) fetch(ctx context.Context, integration *domain.Integration, server *domain.Server) ([]any, error) {
	req := domain.NewRequest("sync_"+integration.ID, domain.MethodFetchData, map[string]any{
		"integration_id": integration.ID,
		"config":         configOf(integration),
	})

	resp, err := e.supervisor.SendMessage(ctx, server, req)
	if err != nil {
		return nil, err
	}

	var out fetchResult
	if len(resp.Result) > 0 {
		if err := resp.Decode(&out); err != nil {
			return nil, &domain.ProtocolError{Code: domain.CodeParseError, Message: err.Error(), Method: domain.MethodFetchData}
		}
	}
	return out.Data, nil
}

// transformAll applies the mapping to every record. Records that fail to
// transform or are excluded by a filter are dropped.
func (e *SyncEngine) transformAll(integration *domain.Integration, records []any) []map[string]any {
	batch := make([]map[string]any, 0, len(records))
	for i, record := range records {
		out, include, err := e.transformer.Transform(record, integration.Mapping)
		if err != nil {
			logger.Warn("Failed to transform record %d of %s: %v", i, integration.ID, err)
			continue
		}
		if !include {
			logger.Debug("Record %d of %s excluded by filter", i, integration.ID)
			continue
		}
		batch = append(batch, out)
	}
	return batch
}

func (e *SyncEngine) push(
	ctx context.Context,
	integration *domain.Integration,
	server *domain.Server,
	batch []map[string]any,
) (domain.SyncStats, error) {
	req := domain.NewRequest("sync_target_"+integration.ID, domain.MethodSyncToTarget, map[string]any{
		"integration_id": integration.ID,
		"data":           batch,
		"config":         configOf(integration),
	})

	resp, err := e.supervisor.SendMessage(ctx, server, req)
	if err != nil {
		return domain.SyncStats{}, err
	}

	var out pushResult
	if len(resp.Result) > 0 {
		if err := resp.Decode(&out); err != nil {
			return domain.SyncStats{}, &domain.ProtocolError{Code: domain.CodeParseError, Message: err.Error(), Method: domain.MethodSyncToTarget}
		}
	}
	if out.Stats == nil {
		return domain.SyncStats{}, nil
	}
	return *out.Stats, nil
}

func configOf(integration *domain.Integration) map[string]any {
	if integration.Config == nil {
		return map[string]any{}
	}
	return integration.Config
}

func (e *SyncEngine) dispatch(ctx context.Context, event *domain.Event) {
	if e.dispatcher == nil {
		return
	}
	if err := e.dispatcher.Dispatch(ctx, event); err != nil {
		logger.Warn("Failed to dispatch %s event: %v", event.Type, err)
	}
}

// Status returns sync status for an integration.
func (e *SyncEngine) Status(_ context.Context, integrationID string) (*driving.SyncStatus, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if status, ok := e.activeSyncs[integrationID]; ok {
		// Return a copy to avoid race conditions
		statusCopy := *status
		return &statusCopy, nil
	}

	// Not running - return idle status
	return &driving.SyncStatus{
		IntegrationID: integrationID,
		Running:       false,
	}, nil
}

// begin marks a sync as running. It reports false if one already is.
func (e *SyncEngine) begin(integrationID string, at time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, running := e.activeSyncs[integrationID]; running {
		return false
	}
	e.activeSyncs[integrationID] = &driving.SyncStatus{
		IntegrationID: integrationID,
		Running:       true,
		StartedAt:     at,
	}
	return true
}

func (e *SyncEngine) setFetched(integrationID string, n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if status, ok := e.activeSyncs[integrationID]; ok {
		status.RecordsFetched = n
	}
}

func (e *SyncEngine) end(integrationID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.activeSyncs, integrationID)
}

// Result returns the last stored result for an integration.
func (e *SyncEngine) Result(ctx context.Context, integrationID string) (*domain.SyncResult, error) {
	return e.results.Get(ctx, integrationID)
}

// Results returns every stored result.
func (e *SyncEngine) Results(ctx context.Context) ([]domain.SyncResult, error) {
	return e.results.List(ctx)
}

// ClearResults removes stored results.
func (e *SyncEngine) ClearResults(ctx context.Context) error {
	return e.results.Clear(ctx)
}
