package mcp

import (
	"context"
	"encoding/json"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driving"
)

var _ driving.Framework = (*mockFramework)(nil)

// mockFramework is a mock implementation of driving.Framework.
type mockFramework struct {
	servers  []*domain.Server
	results  map[string]domain.SyncResult
	all      []domain.SyncResult
	status   *domain.FrameworkStatus
	schema   *domain.UnifiedSchema
	response *domain.Response
	sendErr  error
	err      error

	sent []domain.Request
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
	return nil, m.err
}

func (m *mockFramework) Integration(_ context.Context, _ string) (*domain.Integration, error) {
	return nil, domain.ErrNotFound
}

func (m *mockFramework) SyncIntegration(_ context.Context, id string) (*domain.SyncResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	r, ok := m.results[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &r, nil
}

func (m *mockFramework) SyncAll(_ context.Context) ([]domain.SyncResult, error) {
	return m.all, m.err
}

func (m *mockFramework) SyncResult(_ context.Context, id string) (*domain.SyncResult, error) {
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

func (m *mockFramework) TaskHistory(_ context.Context, _ string, _ int) ([]domain.TaskResult, error) {
	return nil, m.err
}

func (m *mockFramework) UnifiedSchema() *domain.UnifiedSchema {
	return m.schema
}

func (m *mockFramework) Status(_ context.Context) (*domain.FrameworkStatus, error) {
	return m.status, m.err
}

func (m *mockFramework) SendMessage(_ context.Context, _ string, req domain.Request) (*domain.Response, error) {
	m.sent = append(m.sent, req)
	return m.response, m.sendErr
}

func (m *mockFramework) Capabilities(_ context.Context, _ string) (json.RawMessage, error) {
	return json.RawMessage(`[]`), m.err
}

func (m *mockFramework) ProcessEvent(_ context.Context, _ *domain.Event) error {
	return m.err
}

func (m *mockFramework) Shutdown(_ context.Context) error {
	return nil
}
