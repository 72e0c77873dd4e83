package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driven"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driving"
	"github.com/custodia-labs/syncbridge/internal/logger"
)

// Ensure Framework implements the interface.
var _ driving.Framework = (*Framework)(nil)

// Framework is the registry of servers and integrations and the entry
// point for syncs.
type Framework struct {
	servers      driven.ServerStore
	integrations driven.IntegrationStore
	history      driven.SchedulerStore
	supervisor   driving.ConnectionSupervisor
	dispatcher   driving.EventDispatcher
	engine       driving.SyncEngine
	scheduler    driving.Scheduler
	schema       *domain.UnifiedSchema
}

// FrameworkDeps are the collaborators of a Framework.
// History is optional.
type FrameworkDeps struct {
	Servers      driven.ServerStore
	Integrations driven.IntegrationStore
	History      driven.SchedulerStore
	Supervisor   driving.ConnectionSupervisor
	Dispatcher   driving.EventDispatcher
	Engine       driving.SyncEngine
}

// NewFramework creates a framework, its scheduler and the built-in event
// handlers.
func NewFramework(deps FrameworkDeps) *Framework {
	f := &Framework{
		servers:      deps.Servers,
		integrations: deps.Integrations,
		history:      deps.History,
		supervisor:   deps.Supervisor,
		dispatcher:   deps.Dispatcher,
		engine:       deps.Engine,
		schema:       domain.MustDefaultUnifiedSchema(),
	}
	f.scheduler = NewScheduler(deps.History, f.SyncIntegration)

	f.dispatcher.RegisterHandler(domain.EventError, logErrorEvent)
	f.dispatcher.RegisterHandler(domain.EventSync, logSyncEvent)
	return f
}

func logErrorEvent(_ context.Context, event *domain.Event) error {
	logger.WithFields(logger.Fields{
		"event_id":       event.ID,
		"server_id":      event.ServerID,
		"integration_id": event.IntegrationID,
	}).Errorf("error event: %v", event.Payload["error"])
	return nil
}

func logSyncEvent(_ context.Context, event *domain.Event) error {
	fields := logger.Fields{
		"event_id":       event.ID,
		"server_id":      event.ServerID,
		"integration_id": event.IntegrationID,
	}
	if result, ok := event.Payload["result"].(domain.SyncResult); ok {
		fields["created"] = result.RecordsCreated
		fields["updated"] = result.RecordsUpdated
		fields["deleted"] = result.RecordsDeleted
		fields["duration"] = result.Duration.String()
	}
	logger.WithFields(fields).Debug("sync event")
	return nil
}

// RegisterServer stores server with defaults applied and connects to it.
// If the handshake fails the server remains registered with status error
// and the handshake error is returned alongside it.
func (f *Framework) RegisterServer(ctx context.Context, server *domain.Server) (*domain.Server, error) {
	if server == nil {
		return nil, fmt.Errorf("%w: server is nil", domain.ErrInvalidInput)
	}
	applyServerDefaults(server)

	if existing, err := f.servers.Get(ctx, server.ID); err == nil && existing != nil {
		if err := f.supervisor.Disconnect(server.ID); err != nil {
			logger.Warn("Failed to disconnect replaced server %s: %v", server.ID, err)
		}
	}

	server.SetStatus(domain.StatusDisconnected)
	if err := f.servers.Save(ctx, server); err != nil {
		return nil, fmt.Errorf("save server: %w", err)
	}
	logger.Info("Registered server: %s (%s)", server.Name, server.ID)

	if err := f.supervisor.Connect(ctx, server); err != nil {
		return server, err
	}
	return server, nil
}

func applyServerDefaults(server *domain.Server) {
	if server.ID == "" {
		server.ID = "mcp_" + uuid.NewString()
	}
	if server.Name == "" {
		server.Name = domain.DefaultServerName
	}
	if server.Version == "" {
		server.Version = domain.DefaultServerVersion
	}
	if server.Capabilities == nil {
		server.Capabilities = []string{}
	}
	if server.Endpoints == nil {
		server.Endpoints = []string{}
	}
	if server.Config.Host == "" && server.Config.Port == 0 {
		cfg := domain.DefaultServerConfig()
		cfg.APIKey = server.Config.APIKey
		cfg.AuthToken = server.Config.AuthToken
		cfg.Options = server.Config.Options
		server.Config = cfg
		return
	}
	server.Config = server.Config.WithDefaults()
}

// UnregisterServer disconnects and removes a server. Integrations that
// reference it stay registered and fail on their next sync.
func (f *Framework) UnregisterServer(ctx context.Context, serverID string) error {
	if _, err := f.servers.Get(ctx, serverID); err != nil {
		return fmt.Errorf("server %s: %w", serverID, err)
	}
	if err := f.supervisor.Disconnect(serverID); err != nil {
		logger.Warn("Failed to disconnect server %s: %v", serverID, err)
	}
	if err := f.servers.Delete(ctx, serverID); err != nil {
		return fmt.Errorf("delete server: %w", err)
	}
	logger.Info("Unregistered server: %s", serverID)
	return nil
}

// Servers returns all registered servers.
func (f *Framework) Servers(ctx context.Context) ([]*domain.Server, error) {
	return f.servers.List(ctx)
}

// Server returns a server by ID.
func (f *Framework) Server(ctx context.Context, serverID string) (*domain.Server, error) {
	server, err := f.servers.Get(ctx, serverID)
	if err != nil {
		return nil, fmt.Errorf("server %s: %w", serverID, err)
	}
	return server, nil
}

// RegisterIntegration stores the integration with defaults applied and
// schedules it when it is enabled and auto-syncing.
func (f *Framework) RegisterIntegration(ctx context.Context, integration domain.Integration) (*domain.Integration, error) {
	if integration.ServerID == "" {
		return nil, fmt.Errorf("%w: integration has no server id", domain.ErrInvalidInput)
	}
	applyIntegrationDefaults(&integration)

	if err := f.integrations.Save(ctx, integration); err != nil {
		return nil, fmt.Errorf("save integration: %w", err)
	}
	logger.Info("Registered integration: %s (%s)", integration.Name, integration.ID)

	f.scheduler.Unschedule(integration.ID)
	if integration.Scheduled() {
		if err := f.scheduler.Schedule(ctx, integration); err != nil {
			return &integration, fmt.Errorf("schedule integration: %w", err)
		}
	}
	return &integration, nil
}

// UpdateIntegration replaces a registered integration and restarts its
// timer with the new interval.
func (f *Framework) UpdateIntegration(ctx context.Context, integration domain.Integration) (*domain.Integration, error) {
	existing, err := f.integrations.Get(ctx, integration.ID)
	if err != nil {
		return nil, fmt.Errorf("integration %s: %w", integration.ID, err)
	}
	if integration.LastSync.IsZero() {
		integration.LastSync = existing.LastSync
	}
	return f.RegisterIntegration(ctx, integration)
}

// UnregisterIntegration stops the integration's timer and removes it from
// the registry. Its last stored result is kept.
func (f *Framework) UnregisterIntegration(ctx context.Context, integrationID string) error {
	if _, err := f.integrations.Get(ctx, integrationID); err != nil {
		return fmt.Errorf("integration %s: %w", integrationID, err)
	}
	f.scheduler.Unschedule(integrationID)
	if err := f.integrations.Delete(ctx, integrationID); err != nil {
		return fmt.Errorf("delete integration: %w", err)
	}
	logger.Info("Unregistered integration: %s", integrationID)
	return nil
}

func applyIntegrationDefaults(integration *domain.Integration) {
	if integration.ID == "" {
		integration.ID = "mcp_" + uuid.NewString()
	}
	if integration.Name == "" {
		integration.Name = domain.DefaultIntegrationName
	}
	if integration.SyncInterval <= 0 {
		integration.SyncInterval = domain.DefaultSyncInterval
	}
	if integration.Config == nil {
		integration.Config = map[string]any{}
	}
	if integration.Mapping.SourceFields == nil {
		integration.Mapping.SourceFields = []string{}
	}
	if integration.Mapping.TargetFields == nil {
		integration.Mapping.TargetFields = []string{}
	}
	if integration.Mapping.Transformations == nil {
		integration.Mapping.Transformations = []domain.Transformation{}
	}
}

// Integrations returns all registered integrations.
func (f *Framework) Integrations(ctx context.Context) ([]domain.Integration, error) {
	return f.integrations.List(ctx)
}

// Integration returns an integration by ID.
func (f *Framework) Integration(ctx context.Context, integrationID string) (*domain.Integration, error) {
	integration, err := f.integrations.Get(ctx, integrationID)
	if err != nil {
		return nil, fmt.Errorf("integration %s: %w", integrationID, err)
	}
	return integration, nil
}

// SyncIntegration runs one sync for integrationID. A missing server fails
// the run and is stored like any other failed result.
func (f *Framework) SyncIntegration(ctx context.Context, integrationID string) (*domain.SyncResult, error) {
	integration, err := f.Integration(ctx, integrationID)
	if err != nil {
		return nil, err
	}
	server, err := f.Server(ctx, integration.ServerID)
	if errors.Is(err, domain.ErrNotFound) {
		return f.engine.Fail(ctx, integration, integration.ServerID, err), nil
	}
	if err != nil {
		return nil, err
	}
	return f.engine.Sync(ctx, integration, server), nil
}

// SyncAll syncs every enabled integration in registration order. Lookup
// failures become failed results so the result count always matches the
// number of enabled integrations.
func (f *Framework) SyncAll(ctx context.Context) ([]domain.SyncResult, error) {
	integrations, err := f.integrations.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list integrations: %w", err)
	}

	results := make([]domain.SyncResult, 0, len(integrations))
	for _, integration := range integrations {
		if !integration.Enabled {
			continue
		}
		result, err := f.SyncIntegration(ctx, integration.ID)
		if err != nil {
			logger.Error("Failed to sync integration %s: %v", integration.ID, err)
			result = domain.NewFailedSyncResult(integration.ServerID, integration.ID, err)
		}
		results = append(results, *result)
	}
	return results, nil
}

// SyncResult returns the last result for an integration.
func (f *Framework) SyncResult(ctx context.Context, integrationID string) (*domain.SyncResult, error) {
	result, err := f.engine.Result(ctx, integrationID)
	if err != nil {
		return nil, fmt.Errorf("sync result %s: %w", integrationID, err)
	}
	return result, nil
}

// SyncResults returns the last result of every integration.
func (f *Framework) SyncResults(ctx context.Context) ([]domain.SyncResult, error) {
	return f.engine.Results(ctx)
}

// TaskHistory returns recent auto-sync runs for an integration, most
// recent first.
func (f *Framework) TaskHistory(ctx context.Context, integrationID string, limit int) ([]domain.TaskResult, error) {
	if f.history == nil {
		return []domain.TaskResult{}, nil
	}
	if limit <= 0 {
		limit = domain.HistoryRetention
	}
	return f.history.GetTaskHistory(ctx, domain.SyncTaskID(integrationID), limit)
}

// UnifiedSchema returns a copy of the unified schema.
func (f *Framework) UnifiedSchema() *domain.UnifiedSchema {
	return f.schema.Clone()
}

// Status summarises the framework's health.
func (f *Framework) Status(ctx context.Context) (*domain.FrameworkStatus, error) {
	servers, err := f.servers.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list servers: %w", err)
	}
	integrations, err := f.integrations.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list integrations: %w", err)
	}

	status := &domain.FrameworkStatus{
		Status:        domain.HealthHealthy,
		Dispatcher:    f.dispatcher.Stats(),
		SchemaVersion: f.schema.Version,
		LastCheck:     time.Now(),
	}
	status.Servers.Total = len(servers)
	for _, server := range servers {
		switch server.Status() {
		case domain.StatusConnected:
			status.Servers.Connected++
		case domain.StatusError:
			status.Servers.Error++
		default:
			status.Servers.Disconnected++
		}
	}
	if status.Servers.Connected < status.Servers.Total {
		status.Status = domain.HealthDegraded
	}

	status.Integrations.Total = len(integrations)
	for _, integration := range integrations {
		if integration.Enabled {
			status.Integrations.Enabled++
		}
		if integration.AutoSync {
			status.Integrations.AutoSync++
		}
	}
	return status, nil
}

// SendMessage delivers a raw request to a registered server.
func (f *Framework) SendMessage(ctx context.Context, serverID string, req domain.Request) (*domain.Response, error) {
	server, err := f.Server(ctx, serverID)
	if err != nil {
		return nil, err
	}
	return f.supervisor.SendMessage(ctx, server, req)
}

// Capabilities asks a registered server for its capabilities.
func (f *Framework) Capabilities(ctx context.Context, serverID string) (json.RawMessage, error) {
	server, err := f.Server(ctx, serverID)
	if err != nil {
		return nil, err
	}
	return f.supervisor.Capabilities(ctx, server)
}

// ProcessEvent hands an event to the dispatcher.
func (f *Framework) ProcessEvent(ctx context.Context, event *domain.Event) error {
	return f.dispatcher.Dispatch(ctx, event)
}

// Shutdown stops auto-sync timers, closes every connection and drains the
// event queue.
func (f *Framework) Shutdown(ctx context.Context) error {
	var result *multierror.Error
	if err := f.scheduler.Stop(); err != nil {
		result = multierror.Append(result, fmt.Errorf("stop scheduler: %w", err))
	}
	if err := f.supervisor.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("close supervisor: %w", err))
	}
	if err := f.dispatcher.Flush(ctx); err != nil && !errors.Is(err, context.Canceled) {
		result = multierror.Append(result, fmt.Errorf("flush events: %w", err))
	}
	logger.Info("Framework shut down")
	return result.ErrorOrNil()
}
