package mcp

import (
	"github.com/custodia-labs/syncbridge/internal/core/ports/driving"
)

// Ports aggregates the driving ports the MCP server calls into.
type Ports struct {
	// Framework registers, syncs and reports on integrations.
	Framework driving.Framework
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p == nil || p.Framework == nil {
		return ErrMissingFramework
	}
	return nil
}
