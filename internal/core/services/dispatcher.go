package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driving"
	"github.com/custodia-labs/syncbridge/internal/logger"
)

// Ensure Dispatcher implements the interface.
var _ driving.EventDispatcher = (*Dispatcher)(nil)

// Dispatcher is an in-process FIFO event queue. A single drain goroutine
// runs while the queue is non-empty; each event's handlers run concurrently
// and the event is marked processed once all of them settle.
type Dispatcher struct {
	mu         sync.Mutex
	handlers   map[domain.EventType][]driving.EventHandler
	queue      []queuedEvent
	processing bool
	// idle is closed when the drain goroutine exits.
	idle chan struct{}
}

type queuedEvent struct {
	ctx   context.Context
	event *domain.Event
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	idle := make(chan struct{})
	close(idle)
	return &Dispatcher{
		handlers: make(map[domain.EventType][]driving.EventHandler),
		idle:     idle,
	}
}

// RegisterHandler appends handler for eventType. Handlers are not deduplicated.
func (d *Dispatcher) RegisterHandler(eventType domain.EventType, handler driving.EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[eventType] = append(d.handlers[eventType], handler)
	logger.Debug("Registered handler for event type: %s", eventType)
}

// Dispatch queues event and starts the drain goroutine if it is not running.
// Handlers receive a context that keeps ctx's values but not its cancellation.
func (d *Dispatcher) Dispatch(ctx context.Context, event *domain.Event) error {
	if event == nil {
		return fmt.Errorf("%w: event is nil", domain.ErrInvalidInput)
	}
	if event.ID == "" {
		event.ID = newEventID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.queue = append(d.queue, queuedEvent{ctx: context.WithoutCancel(ctx), event: event})
	if !d.processing {
		d.processing = true
		d.idle = make(chan struct{})
		go d.drain()
	}
	return nil
}

func (d *Dispatcher) drain() {
	for {
		d.mu.Lock()
		if len(d.queue) == 0 {
			d.processing = false
			close(d.idle)
			d.mu.Unlock()
			return
		}
		next := d.queue[0]
		d.queue[0] = queuedEvent{}
		d.queue = d.queue[1:]
		handlers := append([]driving.EventHandler(nil), d.handlers[next.event.Type]...)
		d.mu.Unlock()

		outcome := d.process(next.ctx, next.event, handlers)

		d.mu.Lock()
		next.event.Processed = true
		next.event.Outcome = outcome
		d.mu.Unlock()
	}
}

func (d *Dispatcher) process(ctx context.Context, event *domain.Event, handlers []driving.EventHandler) domain.EventOutcome {
	if len(handlers) == 0 {
		logger.Warn("No handlers registered for event type: %s", event.Type)
		return domain.OutcomeNoHandlers
	}

	errs := make([]error, len(handlers))
	var wg sync.WaitGroup
	for i, handler := range handlers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = invoke(ctx, event, handler)
		}()
	}
	wg.Wait()

	outcome := domain.OutcomeOK
	for _, err := range errs {
		if err != nil {
			outcome = domain.OutcomePartialFailure
			logger.Error("Event handler failed: %v", err)
		}
	}
	logger.Debug("Processed %s event %s", event.Type, event.ID)
	return outcome
}

// invoke runs one handler, converting errors and panics to *domain.HandlerError.
func invoke(ctx context.Context, event *domain.Event, handler driving.EventHandler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &domain.HandlerError{EventID: event.ID, EventType: event.Type, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	if herr := handler(ctx, event); herr != nil {
		return &domain.HandlerError{EventID: event.ID, EventType: event.Type, Err: herr}
	}
	return nil
}

// Flush blocks until the queue is empty and the drain goroutine has exited.
func (d *Dispatcher) Flush(ctx context.Context) error {
	for {
		d.mu.Lock()
		if !d.processing && len(d.queue) == 0 {
			d.mu.Unlock()
			return nil
		}
		idle := d.idle
		d.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-idle:
		}
	}
}

// Clear drops queued events that have not started processing.
func (d *Dispatcher) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	dropped := len(d.queue)
	d.queue = nil
	if dropped > 0 {
		logger.Info("Cleared %d queued events", dropped)
	}
}

// Stats reports queue depth, processing state and handler count.
func (d *Dispatcher) Stats() domain.DispatcherStats {
	d.mu.Lock()
	defer d.mu.Unlock()
	count := 0
	for _, hs := range d.handlers {
		count += len(hs)
	}
	return domain.DispatcherStats{
		QueueLength:  len(d.queue),
		Processing:   d.processing,
		HandlerCount: count,
	}
}

func newEventID() string {
	return "event_" + uuid.NewString()
}

func newEvent(t domain.EventType, serverID, integrationID string, payload map[string]any) *domain.Event {
	return &domain.Event{
		ID:            newEventID(),
		Type:          t,
		ServerID:      serverID,
		IntegrationID: integrationID,
		Timestamp:     time.Now(),
		Payload:       payload,
	}
}

// NewSyncEvent announces a completed sync.
func NewSyncEvent(serverID, integrationID string, payload map[string]any) *domain.Event {
	return newEvent(domain.EventSync, serverID, integrationID, payload)
}

// NewCreateEvent announces a created record.
func NewCreateEvent(serverID, integrationID string, payload map[string]any) *domain.Event {
	return newEvent(domain.EventCreate, serverID, integrationID, payload)
}

// NewUpdateEvent announces an updated record.
func NewUpdateEvent(serverID, integrationID string, payload map[string]any) *domain.Event {
	return newEvent(domain.EventUpdate, serverID, integrationID, payload)
}

// NewDeleteEvent announces a deleted record.
func NewDeleteEvent(serverID, integrationID string, payload map[string]any) *domain.Event {
	return newEvent(domain.EventDelete, serverID, integrationID, payload)
}

// NewErrorEvent announces a failure. The payload carries the error message.
func NewErrorEvent(serverID, integrationID string, err error) *domain.Event {
	payload := map[string]any{}
	if err != nil {
		payload["error"] = err.Error()
	}
	return newEvent(domain.EventError, serverID, integrationID, payload)
}
