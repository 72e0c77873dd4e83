package domain

import "time"

// EventType classifies events for handler routing.
type EventType string

// Event types.
const (
	EventSync   EventType = "sync"
	EventCreate EventType = "create"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
	EventError  EventType = "error"
)

// EventOutcome summarises how handlers settled for an event.
type EventOutcome string

// Event outcomes.
const (
	OutcomePending        EventOutcome = ""
	OutcomeOK             EventOutcome = "ok"
	OutcomePartialFailure EventOutcome = "partial_failure"
	OutcomeNoHandlers     EventOutcome = "no_handlers"
)

// Event is a notification routed to handlers by type.
// Processed and Outcome are set by the dispatcher once every handler settles.
type Event struct {
	ID            string         `json:"id"`
	Type          EventType      `json:"type"`
	ServerID      string         `json:"server_id"`
	IntegrationID string         `json:"integration_id,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
	Payload       map[string]any `json:"payload,omitempty"`
	Processed     bool           `json:"processed"`
	Outcome       EventOutcome   `json:"outcome,omitempty"`
}

// DispatcherStats reports the dispatcher's queue state.
type DispatcherStats struct {
	QueueLength  int  `json:"queue_length"`
	Processing   bool `json:"processing"`
	HandlerCount int  `json:"handler_count"`
}
