package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
	"github.com/custodia-labs/syncbridge/internal/transform"
)

type frameworkFixture struct {
	fw           *Framework
	factory      *fakeFactory
	servers      *mockServerStore
	integrations *mockIntegrationStore
	results      *mockResultStore
	history      *mockSchedulerStore
	dispatcher   *Dispatcher
}

func newFrameworkFixture(t *testing.T, fallback callHandler) *frameworkFixture {
	t.Helper()
	f := &frameworkFixture{
		factory:      newFakeFactory(fallback),
		servers:      newMockServerStore(),
		integrations: newMockIntegrationStore(),
		results:      newMockResultStore(),
		history:      newMockSchedulerStore(),
		dispatcher:   NewDispatcher(),
	}
	supervisor := NewSupervisor(f.factory, testConfig())
	engine := NewSyncEngine(supervisor, f.dispatcher, transform.NewEngine(), f.results, f.integrations)
	f.fw = NewFramework(FrameworkDeps{
		Servers:      f.servers,
		Integrations: f.integrations,
		History:      f.history,
		Supervisor:   supervisor,
		Dispatcher:   f.dispatcher,
		Engine:       engine,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = f.fw.Shutdown(ctx)
	})
	return f
}

func TestFramework_RegisterServer_AppliesDefaults(t *testing.T) {
	f := newFrameworkFixture(t, pongOr(nil))

	server, err := f.fw.RegisterServer(context.Background(), &domain.Server{})

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(server.ID, "mcp_"))
	assert.Equal(t, domain.DefaultServerName, server.Name)
	assert.Equal(t, domain.DefaultServerVersion, server.Version)
	assert.Equal(t, "localhost", server.Config.Host)
	assert.Equal(t, 3000, server.Config.Port)
	assert.Equal(t, 30*time.Second, server.Config.Timeout)
	assert.Equal(t, 3, server.Config.MaxRetries)
	assert.NotNil(t, server.Capabilities)
	assert.NotNil(t, server.Endpoints)
	assert.Equal(t, domain.StatusConnected, server.Status())

	got, err := f.fw.Server(context.Background(), server.ID)
	require.NoError(t, err)
	assert.Same(t, server, got)
}

func TestFramework_RegisterServer_KeepsGivenConfig(t *testing.T) {
	f := newFrameworkFixture(t, pongOr(nil))

	server, err := f.fw.RegisterServer(context.Background(), &domain.Server{
		ID:     "crm",
		Config: domain.ServerConfig{Host: "crm.internal", Port: 8443, MaxRetries: 0},
	})

	require.NoError(t, err)
	assert.Equal(t, "crm.internal", server.Config.Host)
	assert.Equal(t, 8443, server.Config.Port)
	assert.Equal(t, 0, server.Config.MaxRetries)
	assert.Equal(t, domain.DefaultTimeout, server.Config.Timeout)
}

func TestFramework_RegisterServer_HandshakeFailureKeepsServer(t *testing.T) {
	f := newFrameworkFixture(t, func(_ context.Context, req domain.Request) (*domain.Response, error) {
		return nil, transportFailure(req)
	})

	server, err := f.fw.RegisterServer(context.Background(), testServer("down", 0))

	var hs *domain.HandshakeError
	require.True(t, errors.As(err, &hs))
	require.NotNil(t, server)
	assert.Equal(t, domain.StatusError, server.Status())

	servers, err := f.fw.Servers(context.Background())
	require.NoError(t, err)
	require.Len(t, servers, 1)
	assert.Equal(t, "down", servers[0].ID)
}

func TestFramework_RegisterServer_Nil(t *testing.T) {
	f := newFrameworkFixture(t, pongOr(nil))
	_, err := f.fw.RegisterServer(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestFramework_UnregisterServer(t *testing.T) {
	f := newFrameworkFixture(t, pongOr(nil))
	ctx := context.Background()
	server, err := f.fw.RegisterServer(ctx, testServer("srv", 0))
	require.NoError(t, err)

	require.NoError(t, f.fw.UnregisterServer(ctx, "srv"))

	assert.Equal(t, domain.StatusDisconnected, server.Status())
	assert.True(t, f.factory.transport("srv").isClosed())
	_, err = f.fw.Server(ctx, "srv")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, f.fw.UnregisterServer(ctx, "srv"), domain.ErrNotFound)
}

func TestFramework_RegisterIntegration(t *testing.T) {
	f := newFrameworkFixture(t, pongOr(nil))
	ctx := context.Background()

	integration, err := f.fw.RegisterIntegration(ctx, domain.Integration{ServerID: "srv"})

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(integration.ID, "mcp_"))
	assert.Equal(t, domain.DefaultIntegrationName, integration.Name)
	assert.Equal(t, domain.DefaultSyncInterval, integration.SyncInterval)
	assert.NotNil(t, integration.Config)
	assert.NotNil(t, integration.Mapping.SourceFields)
	assert.NotNil(t, integration.Mapping.Transformations)
	assert.Empty(t, f.fw.scheduler.Tasks())

	_, err = f.fw.RegisterIntegration(ctx, domain.Integration{ID: "orphan"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestFramework_RegisterIntegration_SchedulesAutoSync(t *testing.T) {
	f := newFrameworkFixture(t, pongOr(nil))
	ctx := context.Background()

	_, err := f.fw.RegisterIntegration(ctx, domain.Integration{
		ID: "auto", ServerID: "srv", Enabled: true, AutoSync: true, SyncInterval: time.Hour,
	})
	require.NoError(t, err)
	_, err = f.fw.RegisterIntegration(ctx, domain.Integration{
		ID: "disabled", ServerID: "srv", Enabled: false, AutoSync: true, SyncInterval: time.Hour,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"auto"}, f.fw.scheduler.Tasks())
	task, ok := f.history.task("sync:auto")
	require.True(t, ok)
	assert.Equal(t, time.Hour, task.Interval)
}

func TestFramework_UpdateIntegration(t *testing.T) {
	f := newFrameworkFixture(t, pongOr(nil))
	ctx := context.Background()

	_, err := f.fw.UpdateIntegration(ctx, domain.Integration{ID: "missing", ServerID: "srv"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.fw.RegisterIntegration(ctx, domain.Integration{
		ID: "int", ServerID: "srv", Enabled: true, AutoSync: true, SyncInterval: time.Hour,
	})
	require.NoError(t, err)
	synced := time.Now().Add(-time.Minute)
	require.NoError(t, f.integrations.SetLastSync(ctx, "int", synced))

	updated, err := f.fw.UpdateIntegration(ctx, domain.Integration{
		ID: "int", ServerID: "srv", Name: "Renamed", Enabled: true, AutoSync: false,
	})

	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, synced, updated.LastSync)
	assert.Empty(t, f.fw.scheduler.Tasks())
}

func TestFramework_UnregisterIntegration(t *testing.T) {
	f := newFrameworkFixture(t, pongOr(nil))
	ctx := context.Background()
	_, err := f.fw.RegisterIntegration(ctx, domain.Integration{ID: "int", ServerID: "srv", Enabled: true, AutoSync: true, SyncInterval: time.Hour})
	require.NoError(t, err)
	assert.Equal(t, []string{"int"}, f.fw.scheduler.Tasks())

	require.NoError(t, f.fw.UnregisterIntegration(ctx, "int"))

	assert.Empty(t, f.fw.scheduler.Tasks())
	_, err = f.fw.Integration(ctx, "int")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, f.fw.UnregisterIntegration(ctx, "int"), domain.ErrNotFound)
}

func TestFramework_SyncIntegration(t *testing.T) {
	f := newFrameworkFixture(t, pongOr(func(_ context.Context, req domain.Request) (*domain.Response, error) {
		if req.Method == domain.MethodFetchData {
			return okResponse(req, map[string]any{"data": []any{map[string]any{"id": 1}}}), nil
		}
		return okResponse(req, map[string]any{"stats": map[string]int{"created": 1}}), nil
	}))
	ctx := context.Background()
	_, err := f.fw.RegisterServer(ctx, testServer("srv", 0))
	require.NoError(t, err)
	_, err = f.fw.RegisterIntegration(ctx, domain.Integration{ID: "int", ServerID: "srv", Enabled: true})
	require.NoError(t, err)

	result, err := f.fw.SyncIntegration(ctx, "int")

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.RecordsCreated)

	stored, err := f.fw.SyncResult(ctx, "int")
	require.NoError(t, err)
	assert.Equal(t, result.Timestamp, stored.Timestamp)

	_, err = f.fw.SyncIntegration(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.fw.SyncResult(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFramework_SyncIntegration_RemovedServerStoresFailure(t *testing.T) {
	f := newFrameworkFixture(t, pongOr(func(_ context.Context, req domain.Request) (*domain.Response, error) {
		if req.Method == domain.MethodFetchData {
			return okResponse(req, map[string]any{"data": []any{}}), nil
		}
		return okResponse(req, map[string]any{}), nil
	}))
	ctx := context.Background()
	_, err := f.fw.RegisterServer(ctx, testServer("srv", 0))
	require.NoError(t, err)
	_, err = f.fw.RegisterIntegration(ctx, domain.Integration{ID: "int", ServerID: "srv", Enabled: true})
	require.NoError(t, err)

	first, err := f.fw.SyncIntegration(ctx, "int")
	require.NoError(t, err)
	require.True(t, first.Success)

	require.NoError(t, f.fw.UnregisterServer(ctx, "srv"))
	result, err := f.fw.SyncIntegration(ctx, "int")

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "srv", result.ServerID)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "not found")

	stored, err := f.fw.SyncResult(ctx, "int")
	require.NoError(t, err)
	assert.False(t, stored.Success)
	assert.Equal(t, result.Errors, stored.Errors)
	assert.Equal(t, 2, f.results.saveCount())
}

func TestFramework_SyncAll_IsolatesFailures(t *testing.T) {
	f := newFrameworkFixture(t, pongOr(nil))
	ctx := context.Background()
	f.factory.set("bad", pongOr(func(_ context.Context, req domain.Request) (*domain.Response, error) {
		return rpcError(req, -32000, "broken"), nil
	}))

	_, err := f.fw.RegisterServer(ctx, testServer("good", 0))
	require.NoError(t, err)
	_, err = f.fw.RegisterServer(ctx, testServer("bad", 0))
	require.NoError(t, err)

	for _, in := range []domain.Integration{
		{ID: "one", ServerID: "good", Enabled: true},
		{ID: "two", ServerID: "bad", Enabled: true},
		{ID: "three", ServerID: "ghost", Enabled: true},
		{ID: "off", ServerID: "good", Enabled: false},
		{ID: "four", ServerID: "good", Enabled: true},
	} {
		_, err := f.fw.RegisterIntegration(ctx, in)
		require.NoError(t, err)
	}

	results, err := f.fw.SyncAll(ctx)

	require.NoError(t, err)
	require.Len(t, results, 4)
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.IntegrationID
	}
	assert.Equal(t, []string{"one", "two", "three", "four"}, ids)
	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
	assert.False(t, results[2].Success)
	assert.Contains(t, results[2].Errors[0], "ghost")
	assert.True(t, results[3].Success)
}

func TestFramework_Status(t *testing.T) {
	f := newFrameworkFixture(t, pongOr(nil))
	ctx := context.Background()
	f.factory.set("down", func(_ context.Context, req domain.Request) (*domain.Response, error) {
		return nil, transportFailure(req)
	})

	status, err := f.fw.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.HealthHealthy, status.Status)
	assert.Equal(t, domain.SchemaVersion, status.SchemaVersion)

	_, err = f.fw.RegisterServer(ctx, testServer("up", 0))
	require.NoError(t, err)
	_, _ = f.fw.RegisterServer(ctx, testServer("down", 0))
	_, err = f.fw.RegisterIntegration(ctx, domain.Integration{ID: "a", ServerID: "up", Enabled: true, AutoSync: true, SyncInterval: time.Hour})
	require.NoError(t, err)
	_, err = f.fw.RegisterIntegration(ctx, domain.Integration{ID: "b", ServerID: "up"})
	require.NoError(t, err)

	status, err = f.fw.Status(ctx)

	require.NoError(t, err)
	assert.Equal(t, domain.HealthDegraded, status.Status)
	assert.Equal(t, domain.ServerCounts{Total: 2, Connected: 1, Error: 1}, status.Servers)
	assert.Equal(t, domain.IntegrationCounts{Total: 2, Enabled: 1, AutoSync: 1}, status.Integrations)
	assert.Equal(t, 2, status.Dispatcher.HandlerCount)
	assert.False(t, status.LastCheck.IsZero())
}

func TestFramework_UnifiedSchemaIsACopy(t *testing.T) {
	f := newFrameworkFixture(t, pongOr(nil))

	s := f.fw.UnifiedSchema()
	s.Entities = nil

	assert.NotEmpty(t, f.fw.UnifiedSchema().Entities)
}

func TestFramework_SendMessageAndCapabilities(t *testing.T) {
	f := newFrameworkFixture(t, pongOr(func(_ context.Context, req domain.Request) (*domain.Response, error) {
		return okResponse(req, []string{"fetch_data"}), nil
	}))
	ctx := context.Background()
	_, err := f.fw.RegisterServer(ctx, testServer("srv", 0))
	require.NoError(t, err)

	resp, err := f.fw.SendMessage(ctx, "srv", domain.NewRequest("custom", "list_things", nil))
	require.NoError(t, err)
	assert.Equal(t, "custom", resp.ID)

	caps, err := f.fw.Capabilities(ctx, "srv")
	require.NoError(t, err)
	assert.JSONEq(t, `["fetch_data"]`, string(caps))

	_, err = f.fw.SendMessage(ctx, "missing", domain.NewRequest("x", "y", nil))
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.fw.Capabilities(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFramework_TaskHistory(t *testing.T) {
	f := newFrameworkFixture(t, pongOr(nil))
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, f.history.RecordResult(ctx, &domain.TaskResult{TaskID: "sync:int", ItemsProcessed: i}))
	}

	history, err := f.fw.TaskHistory(ctx, "int", 2)

	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 2, history[0].ItemsProcessed)
}

func TestFramework_ProcessEvent(t *testing.T) {
	f := newFrameworkFixture(t, pongOr(nil))
	ctx := context.Background()

	event := NewErrorEvent("srv", "int", errors.New("external failure"))
	require.NoError(t, f.fw.ProcessEvent(ctx, event))
	require.NoError(t, f.dispatcher.Flush(ctx))

	assert.True(t, event.Processed)
	assert.Equal(t, domain.OutcomeOK, event.Outcome)
}

func TestFramework_Shutdown(t *testing.T) {
	f := newFrameworkFixture(t, pongOr(nil))
	ctx := context.Background()
	server, err := f.fw.RegisterServer(ctx, testServer("srv", 0))
	require.NoError(t, err)
	_, err = f.fw.RegisterIntegration(ctx, domain.Integration{ID: "a", ServerID: "srv", Enabled: true, AutoSync: true, SyncInterval: time.Hour})
	require.NoError(t, err)

	require.NoError(t, f.fw.Shutdown(ctx))

	assert.Empty(t, f.fw.scheduler.Tasks())
	assert.Equal(t, domain.StatusDisconnected, server.Status())
	assert.Equal(t, 0, f.dispatcher.Stats().QueueLength)
}
