package memory

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driven"
)

// Ensure IntegrationStore implements the interface.
var _ driven.IntegrationStore = (*IntegrationStore)(nil)

// IntegrationStore is an in-memory implementation of driven.IntegrationStore.
type IntegrationStore struct {
	mu           sync.RWMutex
	integrations map[string]domain.Integration
	order        []string
}

// NewIntegrationStore creates a new in-memory integration store.
func NewIntegrationStore() *IntegrationStore {
	return &IntegrationStore{
		integrations: make(map[string]domain.Integration),
	}
}

// Save stores or updates an integration.
func (s *IntegrationStore) Save(_ context.Context, integration domain.Integration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.integrations[integration.ID]; !ok {
		s.order = append(s.order, integration.ID)
	}
	s.integrations[integration.ID] = integration
	return nil
}

// Get retrieves an integration by ID.
func (s *IntegrationStore) Get(_ context.Context, id string) (*domain.Integration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	integration, ok := s.integrations[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &integration, nil
}

// Delete removes an integration.
func (s *IntegrationStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.integrations[id]; !ok {
		return nil
	}
	delete(s.integrations, id)
	s.order = without(s.order, id)
	return nil
}

// List returns all integrations in registration order.
func (s *IntegrationStore) List(_ context.Context) ([]domain.Integration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.Integration, 0, len(s.order))
	for _, id := range s.order {
		result = append(result, s.integrations[id])
	}
	return result, nil
}

// SetLastSync records a successful sync time.
func (s *IntegrationStore) SetLastSync(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	integration, ok := s.integrations[id]
	if !ok {
		return domain.ErrNotFound
	}
	integration.LastSync = at
	s.integrations[id] = integration
	return nil
}
