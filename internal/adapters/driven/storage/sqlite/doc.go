// Package sqlite persists integrations, sync results and auto-sync task
// history in a single SQLite database.
//
// The adapter uses modernc.org/sqlite, a pure Go driver, so the binary
// needs no CGO. Schema changes are goose migrations embedded from the
// migrations/ directory and applied when the store is opened.
//
// Servers are not stored here: they carry live connection state and are
// re-registered from configuration on every start.
//
// By default the database lives at ~/.syncbridge/data/syncbridge.db.
package sqlite
