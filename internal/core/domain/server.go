package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
)

// ServerStatus is the connection state of a server.
type ServerStatus string

// Server connection states.
const (
	StatusDisconnected ServerStatus = "disconnected"
	StatusConnected    ServerStatus = "connected"
	StatusError        ServerStatus = "error"
)

// Server defaults applied at registration when a field is unset.
const (
	DefaultServerName    = "Unknown Server"
	DefaultServerVersion = "1.0.0"
	DefaultHost          = "localhost"
	DefaultPort          = 3000
	DefaultScheme        = "http"
	DefaultPath          = "/rpc"
	DefaultTimeout       = 30 * time.Second
	DefaultMaxRetries    = 3
)

// ServerConfig describes how to reach a server.
type ServerConfig struct {
	Host       string         `json:"host"`
	Port       int            `json:"port"`
	Scheme     string         `json:"scheme,omitempty"`
	Path       string         `json:"path,omitempty"`
	Timeout    time.Duration  `json:"timeout"`
	MaxRetries int            `json:"max_retries"`
	APIKey     string         `json:"-"`
	AuthToken  string         `json:"-"`
	Options    map[string]any `json:"options,omitempty"`
}

// DefaultServerConfig returns the connection settings used when none are given.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:       DefaultHost,
		Port:       DefaultPort,
		Scheme:     DefaultScheme,
		Path:       DefaultPath,
		Timeout:    DefaultTimeout,
		MaxRetries: DefaultMaxRetries,
	}
}

// WithDefaults fills zero fields from DefaultServerConfig.
// MaxRetries is left as given since zero retries is meaningful.
func (c ServerConfig) WithDefaults() ServerConfig {
	d := DefaultServerConfig()
	if c.Host == "" {
		c.Host = d.Host
	}
	if c.Port == 0 {
		c.Port = d.Port
	}
	if c.Scheme == "" {
		c.Scheme = d.Scheme
	}
	if c.Path == "" {
		c.Path = d.Path
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	return c
}

// URL returns the endpoint requests are posted to.
func (c ServerConfig) URL() string {
	path := c.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return fmt.Sprintf("%s://%s:%d%s", c.Scheme, c.Host, c.Port, path)
}

// Server is an external adapter service.
// Status and LastSync are mutated concurrently by the supervisor and sync
// engine, so they are only reachable through methods.
type Server struct {
	ID           string
	Name         string
	Description  string
	Version      string
	Capabilities []string
	Endpoints    []string
	Config       ServerConfig

	mu       sync.RWMutex
	status   ServerStatus
	lastSync time.Time
}

// NewServer creates a disconnected server.
func NewServer(id, name string, cfg ServerConfig) *Server {
	return &Server{
		ID:     id,
		Name:   name,
		Config: cfg,
		status: StatusDisconnected,
	}
}

// Status returns the current connection state.
func (s *Server) Status() ServerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.status == "" {
		return StatusDisconnected
	}
	return s.status
}

// SetStatus sets the connection state and returns the previous one.
func (s *Server) SetStatus(status ServerStatus) ServerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.status
	if prev == "" {
		prev = StatusDisconnected
	}
	s.status = status
	return prev
}

// LastSync returns when the server last completed a handshake or sync.
func (s *Server) LastSync() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSync
}

// MarkSynced records t as the last sync time.
func (s *Server) MarkSynced(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSync = t
}

// IsConnected reports whether the server is in the connected state.
func (s *Server) IsConnected() bool {
	return s.Status() == StatusConnected
}

// ServerSnapshot is a point-in-time copy of a server, safe to serialise.
type ServerSnapshot struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Description  string       `json:"description,omitempty"`
	Version      string       `json:"version"`
	Capabilities []string     `json:"capabilities"`
	Endpoints    []string     `json:"endpoints"`
	Status       ServerStatus `json:"status"`
	LastSync     *time.Time   `json:"last_sync,omitempty"`
	Config       ServerConfig `json:"config"`
}

// Snapshot returns a copy of the server's current state.
func (s *Server) Snapshot() ServerSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := ServerSnapshot{
		ID:           s.ID,
		Name:         s.Name,
		Description:  s.Description,
		Version:      s.Version,
		Capabilities: append([]string{}, s.Capabilities...),
		Endpoints:    append([]string{}, s.Endpoints...),
		Status:       s.status,
		Config:       s.Config,
	}
	if snap.Status == "" {
		snap.Status = StatusDisconnected
	}
	if !s.lastSync.IsZero() {
		t := s.lastSync
		snap.LastSync = &t
	}
	return snap
}

// MarshalJSON encodes the server's snapshot.
func (s *Server) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Snapshot())
}
