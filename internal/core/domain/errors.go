package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrSyncInProgress indicates a sync is already running for the integration.
	ErrSyncInProgress = errors.New("sync in progress")

	// ErrInvalidConfig indicates the configuration file failed validation.
	ErrInvalidConfig = errors.New("invalid configuration")

	// Connection Errors.

	// ErrNoConnection indicates no transport is held for the server.
	ErrNoConnection = errors.New("no connection to server")

	// ErrServerNotConnected indicates the server exists but is not in the connected state.
	ErrServerNotConnected = errors.New("server not connected")

	// ErrCircuitOpen indicates calls to the server are short-circuited after repeated failures.
	ErrCircuitOpen = errors.New("circuit breaker open")
)

// HandshakeError is returned when the initial ping to a server fails.
type HandshakeError struct {
	ServerID string
	Err      error
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("handshake with server %s failed: %v", e.ServerID, e.Err)
}

func (e *HandshakeError) Unwrap() error { return e.Err }

// TransportError is a failure to deliver a request or read its response:
// network errors, timeouts and server-side (5xx, 429) HTTP statuses.
// Transport errors are retryable.
type TransportError struct {
	ServerID   string
	Method     string
	StatusCode int
	Timeout    bool
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("transport %s -> %s: timeout: %v", e.Method, e.ServerID, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("transport %s -> %s: http status %d: %v", e.Method, e.ServerID, e.StatusCode, e.Err)
	default:
		return fmt.Sprintf("transport %s -> %s: %v", e.Method, e.ServerID, e.Err)
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError is an error reported by the server inside a response
// envelope, or a response that could not be understood. It is not retried.
type ProtocolError struct {
	Code    int
	Message string
	Method  string
}

func (e *ProtocolError) Error() string {
	if e.Method != "" {
		return fmt.Sprintf("%s: protocol error %d: %s", e.Method, e.Code, e.Message)
	}
	return fmt.Sprintf("protocol error %d: %s", e.Code, e.Message)
}

// Standard JSON-RPC error codes used when a response cannot be read.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeInternalError  = -32603
)

// TransformError is a failure to transform a single record.
type TransformError struct {
	Field string
	Err   error
}

func (e *TransformError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("transform %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("transform: %v", e.Err)
}

func (e *TransformError) Unwrap() error { return e.Err }

// SyncError is a failure of one stage of a sync run.
type SyncError struct {
	IntegrationID string
	Stage         string
	Err           error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync %s: %s: %v", e.IntegrationID, e.Stage, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

// Sync stages.
const (
	StageFetch = "fetch"
	StagePush  = "push"
)

// HandlerError is an error or panic raised by an event handler.
type HandlerError struct {
	EventID   string
	EventType EventType
	Err       error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler for %s event %s: %v", e.EventType, e.EventID, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }
