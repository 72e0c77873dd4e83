package cli

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
)

func TestServersCmd_ListsServers(t *testing.T) {
	github := domain.NewServer("github", "GitHub", domain.DefaultServerConfig())
	github.SetStatus(domain.StatusConnected)
	jira := domain.NewServer("jira", "Jira", domain.ServerConfig{Host: "jira.local", Port: 8443, Scheme: "https", Path: "rpc"})
	defer setupFramework(&mockFramework{servers: []*domain.Server{github, jira}})()

	out, err := execute("servers")

	require.NoError(t, err)
	assert.Contains(t, out, "Configured servers:")
	assert.Contains(t, out, "  github\n    Name: GitHub\n    Status: connected\n    URL: http://localhost:3000/rpc")
	assert.Contains(t, out, "URL: https://jira.local:8443/rpc")
	assert.Contains(t, out, "Status: disconnected")
	assert.Contains(t, out, "Total: 2 servers")
}

func TestServersCmd_Empty(t *testing.T) {
	defer setupFramework(&mockFramework{})()

	out, err := execute("servers")

	require.NoError(t, err)
	assert.Contains(t, out, "No servers configured.")
}

func TestPingCmd_RequiresExactlyOneArg(t *testing.T) {
	defer setupFramework(&mockFramework{})()

	_, err := execute("ping")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

func TestPingCmd_Pong(t *testing.T) {
	pong, err := json.Marshal(domain.PongResult)
	require.NoError(t, err)
	defer setupFramework(&mockFramework{response: &domain.Response{ID: "ping", Result: pong}})()

	out, err := execute("ping", "github")

	require.NoError(t, err)
	assert.Contains(t, out, "github: pong")
}

func TestPingCmd_UnexpectedReply(t *testing.T) {
	defer setupFramework(&mockFramework{response: &domain.Response{ID: "ping", Result: json.RawMessage(`"pang"`)}})()

	_, err := execute("ping", "github")

	require.Error(t, err)
	assert.Contains(t, err.Error(), `unexpected reply "pang"`)
}

func TestPingCmd_TransportFailure(t *testing.T) {
	defer setupFramework(&mockFramework{sendErr: &domain.TransportError{ServerID: "github", Method: "ping", Err: errors.New("connection refused")}})()

	_, err := execute("ping", "github")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping github failed")
	var te *domain.TransportError
	assert.ErrorAs(t, err, &te)
}
