package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMCPCmd_Use(t *testing.T) {
	assert.Equal(t, "mcp", mcpCmd.Use)
	assert.Equal(t, "serve", mcpServeCmd.Use)
}

func TestMCPServeCmd_HasPortFlag(t *testing.T) {
	flag := mcpServeCmd.Flags().Lookup("port")
	if assert.NotNil(t, flag) {
		assert.Equal(t, "p", flag.Shorthand)
		assert.Equal(t, "0", flag.DefValue)
	}
}

func TestMCPServeCmd_ListsTools(t *testing.T) {
	for _, name := range []string{"sync_integration", "sync_all", "status", "ping_server", "syncbridge://schema"} {
		assert.Contains(t, mcpServeCmd.Long, name)
	}
}
