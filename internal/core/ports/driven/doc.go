// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - TransportFactory: Creates a Transport for a server
//   - Transport: Carries RPC envelopes to one server
//   - ServerStore: Registered servers (live objects, in memory)
//   - IntegrationStore: Registered integrations
//   - SyncResultStore: Last sync result per integration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - SchedulerStore: Auto-sync task state and history. Without it, runs are not recorded.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
