package domain

import (
	"encoding/json"
	"fmt"
)

// ProtocolVersion is the envelope version sent with every request.
const ProtocolVersion = "2.0"

// Methods understood by adapter servers.
const (
	MethodPing         = "ping"
	MethodCapabilities = "capabilities"
	MethodFetchData    = "fetch_data"
	MethodSyncToTarget = "sync_to_target"
)

// PongResult is the handshake reply expected for MethodPing.
const PongResult = "pong"

// Request is an outgoing RPC envelope.
type Request struct {
	ProtocolVersion string         `json:"protocolVersion"`
	ID              string         `json:"id"`
	Method          string         `json:"method"`
	Params          map[string]any `json:"params"`
}

// NewRequest builds a request with the current protocol version. A nil
// params becomes an empty object.
func NewRequest(id, method string, params map[string]any) Request {
	if params == nil {
		params = map[string]any{}
	}
	return Request{
		ProtocolVersion: ProtocolVersion,
		ID:              id,
		Method:          method,
		Params:          params,
	}
}

// RPCError is the error member of a response envelope.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Response is an incoming RPC envelope. Exactly one of Result or Error is set.
type Response struct {
	ProtocolVersion string          `json:"protocolVersion"`
	ID              string          `json:"id"`
	Result          json.RawMessage `json:"result,omitempty"`
	Error           *RPCError       `json:"error,omitempty"`
}

// Decode unmarshals the result into v.
func (r *Response) Decode(v any) error {
	if len(r.Result) == 0 {
		return fmt.Errorf("%w: response %s has no result", ErrInvalidInput, r.ID)
	}
	if err := json.Unmarshal(r.Result, v); err != nil {
		return fmt.Errorf("decode result of %s: %w", r.ID, err)
	}
	return nil
}
