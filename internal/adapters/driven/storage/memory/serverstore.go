package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driven"
)

// Ensure ServerStore implements the interface.
var _ driven.ServerStore = (*ServerStore)(nil)

// ServerStore is an in-memory implementation of driven.ServerStore.
// It keeps the pointers it is given so connection state stays shared.
type ServerStore struct {
	mu      sync.RWMutex
	servers map[string]*domain.Server
	order   []string
}

// NewServerStore creates a new in-memory server store.
func NewServerStore() *ServerStore {
	return &ServerStore{
		servers: make(map[string]*domain.Server),
	}
}

// Save stores or replaces a server. A replaced server keeps its position.
func (s *ServerStore) Save(_ context.Context, server *domain.Server) error {
	if server == nil {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.servers[server.ID]; !ok {
		s.order = append(s.order, server.ID)
	}
	s.servers[server.ID] = server
	return nil
}

// Get retrieves a server by ID.
func (s *ServerStore) Get(_ context.Context, id string) (*domain.Server, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	server, ok := s.servers[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return server, nil
}

// Delete removes a server.
func (s *ServerStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.servers[id]; !ok {
		return nil
	}
	delete(s.servers, id)
	s.order = without(s.order, id)
	return nil
}

// List returns all servers in registration order.
func (s *ServerStore) List(_ context.Context) ([]*domain.Server, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*domain.Server, 0, len(s.order))
	for _, id := range s.order {
		result = append(result, s.servers[id])
	}
	return result, nil
}

func without(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i:i], ids[i+1:]...)
		}
	}
	return ids
}
