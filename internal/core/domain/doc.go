// Package domain defines the core entities for syncbridge.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Server: An external adapter service speaking the JSON-RPC envelope
//   - Integration: A mapping between one server's data and the unified schema
//   - Request/Response: The wire envelope exchanged with servers
//   - Event: A notification fanned out by the dispatcher
//   - SyncResult: The outcome of one sync run
//   - UnifiedSchema: The canonical entity model records are reconciled into
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
