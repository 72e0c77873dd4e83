package cli

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driving"
)

var _ driving.Framework = (*mockFramework)(nil)

// mockFramework implements driving.Framework for testing.
type mockFramework struct {
	servers      []*domain.Server
	integrations []domain.Integration
	results      map[string]domain.SyncResult
	all          []domain.SyncResult
	history      []domain.TaskResult
	status       *domain.FrameworkStatus
	response     *domain.Response
	sendErr      error
	err          error

	historyLimit int
	shutdowns    int
}

func (m *mockFramework) RegisterServer(_ context.Context, s *domain.Server) (*domain.Server, error) {
	return s, m.err
}

func (m *mockFramework) UnregisterServer(_ context.Context, _ string) error {
	return m.err
}

func (m *mockFramework) Servers(_ context.Context) ([]*domain.Server, error) {
	return m.servers, m.err
}

func (m *mockFramework) Server(_ context.Context, id string) (*domain.Server, error) {
	for _, s := range m.servers {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockFramework) RegisterIntegration(_ context.Context, in domain.Integration) (*domain.Integration, error) {
	return &in, m.err
}

func (m *mockFramework) UpdateIntegration(_ context.Context, in domain.Integration) (*domain.Integration, error) {
	return &in, m.err
}

func (m *mockFramework) UnregisterIntegration(_ context.Context, _ string) error {
	return m.err
}

func (m *mockFramework) Integrations(_ context.Context) ([]domain.Integration, error) {
	return m.integrations, m.err
}

func (m *mockFramework) Integration(_ context.Context, id string) (*domain.Integration, error) {
	for i := range m.integrations {
		if m.integrations[i].ID == id {
			return &m.integrations[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockFramework) SyncIntegration(_ context.Context, id string) (*domain.SyncResult, error) {
	return m.result(id)
}

func (m *mockFramework) SyncAll(_ context.Context) ([]domain.SyncResult, error) {
	return m.all, m.err
}

func (m *mockFramework) SyncResult(_ context.Context, id string) (*domain.SyncResult, error) {
	return m.result(id)
}

func (m *mockFramework) result(id string) (*domain.SyncResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	r, ok := m.results[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &r, nil
}

func (m *mockFramework) SyncResults(_ context.Context) ([]domain.SyncResult, error) {
	return m.all, m.err
}

func (m *mockFramework) TaskHistory(_ context.Context, _ string, limit int) ([]domain.TaskResult, error) {
	m.historyLimit = limit
	return m.history, m.err
}

func (m *mockFramework) UnifiedSchema() *domain.UnifiedSchema {
	return domain.MustDefaultUnifiedSchema()
}

func (m *mockFramework) Status(_ context.Context) (*domain.FrameworkStatus, error) {
	if m.status == nil {
		return &domain.FrameworkStatus{Status: domain.HealthHealthy}, m.err
	}
	return m.status, m.err
}

func (m *mockFramework) SendMessage(_ context.Context, _ string, _ domain.Request) (*domain.Response, error) {
	return m.response, m.sendErr
}

func (m *mockFramework) Capabilities(_ context.Context, _ string) (json.RawMessage, error) {
	return json.RawMessage(`[]`), m.err
}

func (m *mockFramework) ProcessEvent(_ context.Context, _ *domain.Event) error {
	return m.err
}

func (m *mockFramework) Shutdown(_ context.Context) error {
	m.shutdowns++
	return nil
}

// setupFramework installs fw as the package framework for one test.
func setupFramework(fw driving.Framework) func() {
	old := framework
	framework = fw
	return func() {
		framework = old
	}
}

// execute runs the root command with args and returns its combined output.
// Flag variables are reset first since cobra keeps them between runs.
func execute(args ...string) (string, error) {
	syncJSON = false
	statusJSON = false
	resultsJSON = false
	resultsHistory = 0
	serveWatch = false
	configPath = ""
	verbose = false

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return buf.String(), err
}
