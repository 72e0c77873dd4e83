// Package mcp exposes the sync framework as a Model Context Protocol server,
// so AI assistants can trigger syncs and inspect framework state.
package mcp

import "errors"

// ErrMissingFramework is returned when no framework is provided.
var ErrMissingFramework = errors.New("mcp: framework is required")
