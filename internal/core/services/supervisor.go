package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driven"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driving"
	"github.com/custodia-labs/syncbridge/internal/logger"
)

// Request IDs used by the supervisor.
const (
	pingRequestID         = "ping"
	healthCheckRequestID  = "health_check"
	capabilitiesRequestID = "capabilities"
)

// Ensure Supervisor implements the interface.
var _ driving.ConnectionSupervisor = (*Supervisor)(nil)

// Supervisor owns one connection per server: its transport, rate limiter,
// circuit breaker and health-check goroutine.
type Supervisor struct {
	factory driven.TransportFactory
	config  domain.FrameworkConfig

	mu    sync.RWMutex
	conns map[string]*connection
}

type connection struct {
	server    *domain.Server
	transport driven.Transport
	limiter   *rate.Limiter
	breaker   *gobreaker.CircuitBreaker

	// ctx is cancelled on disconnect, aborting health checks and
	// in-flight retries.
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSupervisor creates a supervisor. Zero config fields take the values
// of domain.DefaultFrameworkConfig.
func NewSupervisor(factory driven.TransportFactory, config domain.FrameworkConfig) *Supervisor {
	defaults := domain.DefaultFrameworkConfig()
	if config.HealthCheckInterval <= 0 {
		config.HealthCheckInterval = defaults.HealthCheckInterval
	}
	if config.BaseRetryDelay <= 0 {
		config.BaseRetryDelay = defaults.BaseRetryDelay
	}
	if config.CircuitBreakerTimeout <= 0 {
		config.CircuitBreakerTimeout = defaults.CircuitBreakerTimeout
	}
	return &Supervisor{
		factory: factory,
		config:  config,
		conns:   make(map[string]*connection),
	}
}

// Connect builds a transport for server and performs the ping handshake.
// An existing connection for the same server is replaced.
func (s *Supervisor) Connect(ctx context.Context, server *domain.Server) error {
	if server == nil {
		return fmt.Errorf("%w: server is nil", domain.ErrInvalidInput)
	}
	if _, err := s.drop(server.ID); err != nil {
		logger.Warn("Replacing connection for %s: %v", server.ID, err)
	}

	transport, err := s.factory.New(server)
	if err != nil {
		return s.handshakeFailed(server, err)
	}

	conn := s.newConnection(server, transport)
	resp, err := s.attempt(ctx, conn, domain.NewRequest(pingRequestID, domain.MethodPing, map[string]any{}))
	if err == nil {
		err = checkPong(resp)
	}
	if err != nil {
		conn.cancel()
		close(conn.done)
		_ = transport.Close()
		return s.handshakeFailed(server, err)
	}

	server.SetStatus(domain.StatusConnected)
	server.MarkSynced(time.Now())

	s.mu.Lock()
	prev := s.conns[server.ID]
	s.conns[server.ID] = conn
	s.mu.Unlock()
	if prev != nil {
		_ = prev.shutdown()
	}

	go s.healthLoop(conn)

	logger.Info("Connected to server %s (%s)", server.Name, server.ID)
	return nil
}

func (s *Supervisor) handshakeFailed(server *domain.Server, err error) error {
	server.SetStatus(domain.StatusError)
	logger.Error("Failed to connect to server %s: %v", server.Name, err)
	return &domain.HandshakeError{ServerID: server.ID, Err: err}
}

func checkPong(resp *domain.Response) error {
	if resp.Error != nil {
		return &domain.ProtocolError{Code: resp.Error.Code, Message: resp.Error.Message, Method: domain.MethodPing}
	}
	var result string
	if err := resp.Decode(&result); err != nil || result != domain.PongResult {
		return &domain.ProtocolError{
			Code:    domain.CodeInvalidRequest,
			Message: fmt.Sprintf("invalid ping response %s", string(resp.Result)),
			Method:  domain.MethodPing,
		}
	}
	return nil
}

func (s *Supervisor) newConnection(server *domain.Server, transport driven.Transport) *connection {
	limit := rate.Inf
	if s.config.RateLimit > 0 {
		limit = rate.Limit(s.config.RateLimit)
	}

	ctx, cancel := context.WithCancel(context.Background())
	conn := &connection{
		server:    server,
		transport: transport,
		limiter:   rate.NewLimiter(limit, 1),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	if threshold := s.config.CircuitBreakerThreshold; threshold > 0 {
		conn.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    server.ID,
			Timeout: s.config.CircuitBreakerTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			IsSuccessful: func(err error) bool {
				var te *domain.TransportError
				return !errors.As(err, &te)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.WithFields(logger.Fields{
					"server_id": name,
					"from":      from.String(),
					"to":        to.String(),
				}).Warn("circuit breaker state changed")
			},
		})
	}
	return conn
}

// bind derives a context that is also cancelled when the connection is.
func (c *connection) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(c.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// attempt performs a single call through the limiter and breaker.
func (s *Supervisor) attempt(ctx context.Context, conn *connection, req domain.Request) (*domain.Response, error) {
	if err := conn.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit %s: %w", conn.server.ID, err)
	}
	if conn.breaker == nil {
		return conn.transport.Call(ctx, req)
	}

	out, err := conn.breaker.Execute(func() (interface{}, error) {
		return conn.transport.Call(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %s", domain.ErrCircuitOpen, conn.server.ID)
	}
	if err != nil {
		return nil, err
	}
	return out.(*domain.Response), nil
}

// SendMessage delivers req to server. Transport errors are retried up to
// the server's MaxRetries with a delay of 2^attempt * BaseRetryDelay.
// An error member in the response is returned as *domain.ProtocolError
// without retrying.
func (s *Supervisor) SendMessage(ctx context.Context, server *domain.Server, req domain.Request) (*domain.Response, error) {
	conn, ok := s.connection(server.ID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNoConnection, server.ID)
	}
	if req.ProtocolVersion == "" {
		req.ProtocolVersion = domain.ProtocolVersion
	}

	ctx, cancel := conn.bind(ctx)
	defer cancel()

	maxRetries := server.Config.MaxRetries
	var lastErr error
	for attempt := 0; ; attempt++ {
		resp, err := s.attempt(ctx, conn, req)
		if err == nil {
			if resp.Error != nil {
				return nil, &domain.ProtocolError{Code: resp.Error.Code, Message: resp.Error.Message, Method: req.Method}
			}
			return resp, nil
		}
		lastErr = err

		var te *domain.TransportError
		if !errors.As(err, &te) || attempt >= maxRetries {
			break
		}

		delay := s.backoff(attempt)
		logger.Debug("Retrying %s to %s in %s (attempt %d/%d): %v", req.Method, server.ID, delay, attempt+1, maxRetries, err)
		if err := sleep(ctx, delay); err != nil {
			return nil, fmt.Errorf("send %s to %s: %w", req.Method, server.ID, err)
		}
	}

	var te *domain.TransportError
	if errors.As(lastErr, &te) {
		if prev := server.SetStatus(domain.StatusDisconnected); prev == domain.StatusConnected {
			logger.Warn("Server %s marked disconnected: %v", server.ID, lastErr)
		}
	}
	logger.Error("Failed to send %s to server %s: %v", req.Method, server.ID, lastErr)
	return nil, lastErr
}

func (s *Supervisor) backoff(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt)) * s.config.BaseRetryDelay
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Capabilities asks server for its capabilities.
func (s *Supervisor) Capabilities(ctx context.Context, server *domain.Server) (json.RawMessage, error) {
	resp, err := s.SendMessage(ctx, server, domain.NewRequest(capabilitiesRequestID, domain.MethodCapabilities, map[string]any{}))
	if err != nil {
		return nil, err
	}
	return resp.Result, nil
}

func (s *Supervisor) healthLoop(conn *connection) {
	defer close(conn.done)

	ticker := time.NewTicker(s.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-conn.ctx.Done():
			return
		case <-ticker.C:
			s.checkHealth(conn.ctx, conn.server)
		}
	}
}

// checkHealth pings server once (with retries) and updates its status.
func (s *Supervisor) checkHealth(ctx context.Context, server *domain.Server) {
	wasConnected := server.IsConnected()

	_, err := s.SendMessage(ctx, server, domain.NewRequest(healthCheckRequestID, domain.MethodPing, map[string]any{}))
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		if wasConnected {
			server.SetStatus(domain.StatusDisconnected)
			logger.Warn("Server %s health check failed: %v", server.Name, err)
		}
		return
	}

	if prev := server.SetStatus(domain.StatusConnected); prev != domain.StatusConnected {
		logger.Info("Server %s is back online", server.Name)
	}
}

// Disconnect stops the server's health checks and in-flight retries and
// closes its transport. Unknown servers are logged and ignored.
func (s *Supervisor) Disconnect(serverID string) error {
	server, err := s.drop(serverID)
	if server == nil {
		logger.Warn("No connection found for server: %s", serverID)
		return nil
	}
	server.SetStatus(domain.StatusDisconnected)
	logger.Info("Disconnected from server: %s", serverID)
	return err
}

// drop removes and shuts down a connection. It returns the connection's
// server, or nil if there was none.
func (s *Supervisor) drop(serverID string) (*domain.Server, error) {
	s.mu.Lock()
	conn, ok := s.conns[serverID]
	delete(s.conns, serverID)
	s.mu.Unlock()
	if !ok {
		return nil, nil
	}
	return conn.server, conn.shutdown()
}

// shutdown stops the health loop and closes the transport.
func (c *connection) shutdown() error {
	c.cancel()
	<-c.done
	if err := c.transport.Close(); err != nil {
		return fmt.Errorf("close transport for %s: %w", c.server.ID, err)
	}
	return nil
}

func (s *Supervisor) connection(serverID string) (*connection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conn, ok := s.conns[serverID]
	return conn, ok
}

// ConnectionStatus returns the status of every server with a connection.
func (s *Supervisor) ConnectionStatus() map[string]domain.ServerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	status := make(map[string]domain.ServerStatus, len(s.conns))
	for id, conn := range s.conns {
		status[id] = conn.server.Status()
	}
	return status
}

// Close disconnects every server.
func (s *Supervisor) Close() error {
	s.mu.RLock()
	ids := make([]string, 0, len(s.conns))
	for id := range s.conns {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	var result *multierror.Error
	for _, id := range ids {
		server, err := s.drop(id)
		if server != nil {
			server.SetStatus(domain.StatusDisconnected)
		}
		if err != nil {
			result = multierror.Append(result, err)
		}
	}
	logger.Info("Connection supervisor closed")
	return result.ErrorOrNil()
}
