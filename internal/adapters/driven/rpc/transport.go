// Package rpc delivers request envelopes to adapter servers as JSON over
// HTTP POST.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"golang.org/x/oauth2"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driven"
)

// APIKeyHeader carries ServerConfig.APIKey.
const APIKeyHeader = "X-API-Key"

// maxErrorBody bounds how much of a failed response is quoted in errors.
const maxErrorBody = 512

// Ensure Transport and Factory implement the interfaces.
var (
	_ driven.Transport        = (*Transport)(nil)
	_ driven.TransportFactory = (*Factory)(nil)
)

// Factory builds HTTP transports from server configuration.
type Factory struct {
	// Base is the client whose transport requests go through.
	// Nil means http.DefaultTransport.
	Base *http.Client
}

// NewFactory creates a factory using the default HTTP transport.
func NewFactory() *Factory {
	return &Factory{}
}

// New builds a transport for server. A configured AuthToken is sent as an
// OAuth2 bearer token.
func (f *Factory) New(server *domain.Server) (driven.Transport, error) {
	if server == nil {
		return nil, fmt.Errorf("%w: server is nil", domain.ErrInvalidInput)
	}
	cfg := server.Config.WithDefaults()

	base := f.Base
	if base == nil {
		base = &http.Client{}
	}

	client := &http.Client{Transport: base.Transport}
	if cfg.AuthToken != "" {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
		client = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: cfg.AuthToken,
			TokenType:   "Bearer",
		}))
	}
	client.Timeout = cfg.Timeout

	return &Transport{
		client:   client,
		url:      cfg.URL(),
		apiKey:   cfg.APIKey,
		serverID: server.ID,
	}, nil
}

// Transport posts envelopes to one server.
type Transport struct {
	client   *http.Client
	url      string
	apiKey   string
	serverID string
}

// URL returns the endpoint requests are posted to.
func (t *Transport) URL() string {
	return t.url
}

// Call posts req and decodes the response envelope. Network failures,
// timeouts and 5xx or 429 statuses are *domain.TransportError; other
// non-2xx statuses and undecodable bodies are *domain.ProtocolError.
func (t *Transport) Call(ctx context.Context, req domain.Request) (*domain.Response, error) {
	if req.ProtocolVersion == "" {
		req.ProtocolVersion = domain.ProtocolVersion
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request %s: %w", req.ID, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if t.apiKey != "" {
		httpReq.Header.Set(APIKeyHeader, t.apiKey)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, &domain.TransportError{
			ServerID: t.serverID,
			Method:   req.Method,
			Timeout:  isTimeout(ctx, err),
			Err:      err,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		msg := strings.TrimSpace(string(snippet))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, &domain.TransportError{
				ServerID:   t.serverID,
				Method:     req.Method,
				StatusCode: resp.StatusCode,
				Err:        errors.New(msg),
			}
		}
		return nil, &domain.ProtocolError{Code: resp.StatusCode, Message: msg, Method: req.Method}
	}

	var out domain.Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		if isTimeout(ctx, err) {
			return nil, &domain.TransportError{ServerID: t.serverID, Method: req.Method, Timeout: true, Err: err}
		}
		return nil, &domain.ProtocolError{
			Code:    domain.CodeParseError,
			Message: fmt.Sprintf("decode response: %v", err),
			Method:  req.Method,
		}
	}
	return &out, nil
}

// Close releases idle connections.
func (t *Transport) Close() error {
	t.client.CloseIdleConnections()
	return nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
