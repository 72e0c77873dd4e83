// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// The supervisor owns server connections, the dispatcher fans events out
// to handlers, the sync engine moves records from a server through the
// transform engine and back, and the framework ties them together behind
// driving.Framework.
package services
