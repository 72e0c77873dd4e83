package services

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driven"
)

// --- Transport fakes ---

type callHandler func(ctx context.Context, req domain.Request) (*domain.Response, error)

// fakeTransport implements driven.Transport with a swappable handler.
type fakeTransport struct {
	mu      sync.Mutex
	handler callHandler
	calls   []domain.Request
	closed  bool
}

func newFakeTransport(h callHandler) *fakeTransport {
	return &fakeTransport{handler: h}
}

func (t *fakeTransport) Call(ctx context.Context, req domain.Request) (*domain.Response, error) {
	t.mu.Lock()
	t.calls = append(t.calls, req)
	h := t.handler
	t.mu.Unlock()
	return h(ctx, req)
}

func (t *fakeTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

func (t *fakeTransport) setHandler(h callHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handler = h
}

func (t *fakeTransport) callCount(method string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, c := range t.calls {
		if method == "" || c.Method == method {
			n++
		}
	}
	return n
}

func (t *fakeTransport) requests(method string) []domain.Request {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []domain.Request
	for _, c := range t.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func (t *fakeTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// fakeFactory hands out one transport per server ID.
type fakeFactory struct {
	mu         sync.Mutex
	transports map[string]*fakeTransport
	fallback   callHandler
	err        error
}

func newFakeFactory(fallback callHandler) *fakeFactory {
	return &fakeFactory{transports: make(map[string]*fakeTransport), fallback: fallback}
}

func (f *fakeFactory) New(server *domain.Server) (driven.Transport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if t, ok := f.transports[server.ID]; ok {
		return t, nil
	}
	t := newFakeTransport(f.fallback)
	f.transports[server.ID] = t
	return t, nil
}

func (f *fakeFactory) transport(serverID string) *fakeTransport {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.transports[serverID]
}

// set installs a transport for a server before it connects.
func (f *fakeFactory) set(serverID string, h callHandler) *fakeTransport {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := newFakeTransport(h)
	f.transports[serverID] = t
	return t
}

func okResponse(req domain.Request, v any) *domain.Response {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return &domain.Response{ProtocolVersion: domain.ProtocolVersion, ID: req.ID, Result: data}
}

func rpcError(req domain.Request, code int, msg string) *domain.Response {
	return &domain.Response{ProtocolVersion: domain.ProtocolVersion, ID: req.ID, Error: &domain.RPCError{Code: code, Message: msg}}
}

func transportFailure(req domain.Request) error {
	return &domain.TransportError{Method: req.Method, Err: errors.New("connection refused")}
}

// pongOr answers ping with pong and delegates everything else.
func pongOr(next callHandler) callHandler {
	return func(ctx context.Context, req domain.Request) (*domain.Response, error) {
		if req.Method == domain.MethodPing {
			return okResponse(req, domain.PongResult), nil
		}
		if next == nil {
			return okResponse(req, map[string]any{}), nil
		}
		return next(ctx, req)
	}
}

func testConfig() domain.FrameworkConfig {
	return domain.FrameworkConfig{
		HealthCheckInterval: time.Hour,
		BaseRetryDelay:      time.Millisecond,
	}
}

func testServer(id string, maxRetries int) *domain.Server {
	cfg := domain.DefaultServerConfig()
	cfg.MaxRetries = maxRetries
	return domain.NewServer(id, "Server "+id, cfg)
}

// --- Store mocks ---

type mockServerStore struct {
	mu      sync.RWMutex
	servers map[string]*domain.Server
	order   []string
}

func newMockServerStore() *mockServerStore {
	return &mockServerStore{servers: make(map[string]*domain.Server)}
}

func (m *mockServerStore) Save(_ context.Context, server *domain.Server) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.servers[server.ID]; !ok {
		m.order = append(m.order, server.ID)
	}
	m.servers[server.ID] = server
	return nil
}

func (m *mockServerStore) Get(_ context.Context, id string) (*domain.Server, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.servers[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s, nil
}

func (m *mockServerStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.servers, id)
	for i, o := range m.order {
		if o == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *mockServerStore) List(_ context.Context) ([]*domain.Server, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.Server, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.servers[id])
	}
	return out, nil
}

type mockIntegrationStore struct {
	mu           sync.RWMutex
	integrations map[string]domain.Integration
	order        []string
}

func newMockIntegrationStore() *mockIntegrationStore {
	return &mockIntegrationStore{integrations: make(map[string]domain.Integration)}
}

func (m *mockIntegrationStore) Save(_ context.Context, in domain.Integration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.integrations[in.ID]; !ok {
		m.order = append(m.order, in.ID)
	}
	m.integrations[in.ID] = in
	return nil
}

func (m *mockIntegrationStore) Get(_ context.Context, id string) (*domain.Integration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	in, ok := m.integrations[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &in, nil
}

func (m *mockIntegrationStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.integrations, id)
	return nil
}

func (m *mockIntegrationStore) List(_ context.Context) ([]domain.Integration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Integration, 0, len(m.order))
	for _, id := range m.order {
		if in, ok := m.integrations[id]; ok {
			out = append(out, in)
		}
	}
	return out, nil
}

func (m *mockIntegrationStore) SetLastSync(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	in, ok := m.integrations[id]
	if !ok {
		return domain.ErrNotFound
	}
	in.LastSync = at
	m.integrations[id] = in
	return nil
}

type mockResultStore struct {
	mu      sync.RWMutex
	results map[string]domain.SyncResult
	saves   int
}

func newMockResultStore() *mockResultStore {
	return &mockResultStore{results: make(map[string]domain.SyncResult)}
}

func (m *mockResultStore) Save(_ context.Context, r domain.SyncResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[r.IntegrationID] = r
	m.saves++
	return nil
}

func (m *mockResultStore) Get(_ context.Context, id string) (*domain.SyncResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.results[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &r, nil
}

func (m *mockResultStore) List(_ context.Context) ([]domain.SyncResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.SyncResult, 0, len(m.results))
	for _, r := range m.results {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IntegrationID < out[j].IntegrationID })
	return out, nil
}

func (m *mockResultStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = make(map[string]domain.SyncResult)
	return nil
}

func (m *mockResultStore) saveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

// mockSchedulerStore implements driven.SchedulerStore for testing.
type mockSchedulerStore struct {
	mu       sync.RWMutex
	tasks    map[string]*domain.ScheduledTask
	results  map[string][]domain.TaskResult
	saveErr  error
	pruneErr error
	prunes   int
}

func newMockSchedulerStore() *mockSchedulerStore {
	return &mockSchedulerStore{
		tasks:   make(map[string]*domain.ScheduledTask),
		results: make(map[string][]domain.TaskResult),
	}
}

func (m *mockSchedulerStore) GetTask(_ context.Context, taskID string) (*domain.ScheduledTask, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	task, exists := m.tasks[taskID]
	if !exists {
		return nil, nil
	}
	// Return a copy
	taskCopy := *task
	return &taskCopy, nil
}

func (m *mockSchedulerStore) ListTasks(_ context.Context) ([]domain.ScheduledTask, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tasks := make([]domain.ScheduledTask, 0, len(m.tasks))
	for _, t := range m.tasks {
		tasks = append(tasks, *t)
	}
	return tasks, nil
}

func (m *mockSchedulerStore) SaveTask(_ context.Context, task *domain.ScheduledTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	taskCopy := *task
	m.tasks[task.ID] = &taskCopy
	return nil
}

func (m *mockSchedulerStore) DeleteTask(_ context.Context, taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tasks, taskID)
	delete(m.results, taskID)
	return nil
}

func (m *mockSchedulerStore) RecordResult(_ context.Context, result *domain.TaskResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[result.TaskID] = append(m.results[result.TaskID], *result)
	return nil
}

func (m *mockSchedulerStore) GetTaskHistory(_ context.Context, taskID string, limit int) ([]domain.TaskResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	results := m.results[taskID]
	out := make([]domain.TaskResult, 0, len(results))
	for i := len(results) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, results[i])
	}
	return out, nil
}

func (m *mockSchedulerStore) PruneHistory(_ context.Context, _ int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prunes++
	return m.pruneErr
}

func (m *mockSchedulerStore) task(id string) (domain.ScheduledTask, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	if !ok {
		return domain.ScheduledTask{}, false
	}
	return *t, true
}

func (m *mockSchedulerStore) history(id string) []domain.TaskResult {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.TaskResult(nil), m.results[id]...)
}
