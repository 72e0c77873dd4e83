package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driven"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driving"
	"github.com/custodia-labs/syncbridge/internal/logger"
)

// Ensure Scheduler implements the interface.
var _ driving.Scheduler = (*Scheduler)(nil)

// SyncFunc runs one sync for an integration.
type SyncFunc func(ctx context.Context, integrationID string) (*domain.SyncResult, error)

// Scheduler runs one ticker goroutine per auto-syncing integration.
// Task state and run history go to the SchedulerStore when one is set.
type Scheduler struct {
	store driven.SchedulerStore
	sync  SyncFunc

	mu      sync.Mutex
	stopped bool
	tasks   map[string]*taskRunner
	wg      sync.WaitGroup
}

type taskRunner struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler creates a scheduler. store may be nil.
func NewScheduler(store driven.SchedulerStore, syncFn SyncFunc) *Scheduler {
	return &Scheduler{
		store: store,
		sync:  syncFn,
		tasks: make(map[string]*taskRunner),
	}
}

// Schedule starts the integration's timer, replacing any existing one.
// The timer outlives ctx; only Unschedule and Stop end it.
func (s *Scheduler) Schedule(ctx context.Context, integration domain.Integration) error {
	if integration.SyncInterval <= 0 {
		return fmt.Errorf("%w: sync interval must be positive", domain.ErrInvalidInput)
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return errors.New("scheduler stopped")
	}

	// The previous runner is cancelled while the lock is held so that no
	// runner outside the map survives a concurrent Schedule.
	previous := s.tasks[integration.ID]
	if previous != nil {
		previous.cancel()
	}

	task := &domain.ScheduledTask{
		ID:            domain.SyncTaskID(integration.ID),
		IntegrationID: integration.ID,
		Interval:      integration.SyncInterval,
		NextRun:       time.Now().Add(integration.SyncInterval),
		Enabled:       true,
	}
	s.ensureTask(ctx, task)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	runner := &taskRunner{cancel: cancel, done: make(chan struct{})}
	s.tasks[integration.ID] = runner

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(runner.done)
		s.run(runCtx, task)
	}()
	s.mu.Unlock()

	if previous != nil {
		<-previous.done
	}
	logger.Info("Auto-sync scheduled for integration %s every %s", integration.ID, integration.SyncInterval)
	return nil
}

// ensureTask creates or updates the task in the store, keeping its history
// fields from a previous run.
func (s *Scheduler) ensureTask(ctx context.Context, task *domain.ScheduledTask) {
	if s.store == nil {
		return
	}
	existing, err := s.store.GetTask(ctx, task.ID)
	if err != nil {
		logger.Warn("scheduler: failed to load task %s: %v", task.ID, err)
	} else if existing != nil {
		task.LastRun = existing.LastRun
		task.LastSuccess = existing.LastSuccess
		task.LastError = existing.LastError
	}
	if err := s.store.SaveTask(ctx, task); err != nil {
		logger.Warn("scheduler: failed to save task %s: %v", task.ID, err)
	}
}

// Unschedule stops the integration's timer and waits for a running sync to
// finish.
func (s *Scheduler) Unschedule(integrationID string) {
	s.mu.Lock()
	runner, ok := s.tasks[integrationID]
	delete(s.tasks, integrationID)
	s.mu.Unlock()
	if !ok {
		return
	}

	runner.cancel()
	<-runner.done

	if s.store != nil {
		ctx := context.Background()
		taskID := domain.SyncTaskID(integrationID)
		if task, err := s.store.GetTask(ctx, taskID); err == nil && task != nil {
			task.Enabled = false
			if err := s.store.SaveTask(ctx, task); err != nil {
				logger.Warn("scheduler: failed to save task %s: %v", taskID, err)
			}
		}
	}
	logger.Debug("Auto-sync stopped for integration %s", integrationID)
}

// Tasks returns the integrations with an active timer, sorted.
func (s *Scheduler) Tasks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.tasks))
	for id := range s.tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Stop cancels every timer and waits for running syncs to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	for _, runner := range s.tasks {
		runner.cancel()
	}
	s.tasks = make(map[string]*taskRunner)
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

func (s *Scheduler) run(ctx context.Context, task *domain.ScheduledTask) {
	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runTask(ctx, task)
		}
	}
}

// runTask executes one sync and records it. Failures are recorded, never
// propagated.
func (s *Scheduler) runTask(ctx context.Context, task *domain.ScheduledTask) {
	result := &domain.TaskResult{
		TaskID:    task.ID,
		StartedAt: time.Now(),
	}

	res, err := s.sync(ctx, task.IntegrationID)
	if err == nil && res != nil {
		result.ItemsProcessed = res.RecordsProcessed
		if !res.Success {
			err = errors.New(strings.Join(res.Errors, "; "))
		}
	}

	result.EndedAt = time.Now()
	if err != nil {
		result.Error = err.Error()
		task.LastError = err.Error()
		logger.Warn("Auto-sync failed for integration %s: %v", task.IntegrationID, err)
	} else {
		result.Success = true
		task.LastError = ""
		task.LastSuccess = result.EndedAt
	}
	task.LastRun = result.StartedAt
	task.NextRun = result.EndedAt.Add(task.Interval)

	if s.store == nil {
		return
	}

	// Persist with a context that survives cancellation mid-run.
	storeCtx := context.WithoutCancel(ctx)
	if saveErr := s.store.SaveTask(storeCtx, task); saveErr != nil {
		logger.Warn("scheduler: failed to save task %s: %v", task.ID, saveErr)
	}
	if recordErr := s.store.RecordResult(storeCtx, result); recordErr != nil {
		logger.Warn("scheduler: failed to record result for %s: %v", task.ID, recordErr)
	}
	if pruneErr := s.store.PruneHistory(storeCtx, domain.HistoryRetention); pruneErr != nil {
		logger.Warn("scheduler: failed to prune history: %v", pruneErr)
	}
}
