package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driven"
)

// Ensure SyncResultStore implements the interface.
var _ driven.SyncResultStore = (*SyncResultStore)(nil)

// SyncResultStore is an in-memory implementation of driven.SyncResultStore.
type SyncResultStore struct {
	mu      sync.RWMutex
	results map[string]domain.SyncResult
}

// NewSyncResultStore creates a new in-memory sync result store.
func NewSyncResultStore() *SyncResultStore {
	return &SyncResultStore{
		results: make(map[string]domain.SyncResult),
	}
}

// Save stores result, replacing the integration's previous one.
func (s *SyncResultStore) Save(_ context.Context, result domain.SyncResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	result.Errors = append([]string{}, result.Errors...)
	s.results[result.IntegrationID] = result
	return nil
}

// Get retrieves the last result for an integration.
func (s *SyncResultStore) Get(_ context.Context, integrationID string) (*domain.SyncResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result, ok := s.results[integrationID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &result, nil
}

// List returns the last result of every integration, sorted by integration ID.
func (s *SyncResultStore) List(_ context.Context) ([]domain.SyncResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.SyncResult, 0, len(s.results))
	for _, r := range s.results {
		result = append(result, r)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].IntegrationID < result[j].IntegrationID
	})
	return result, nil
}

// Clear removes all results.
func (s *SyncResultStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = make(map[string]domain.SyncResult)
	return nil
}
