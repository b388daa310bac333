package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driven"
	"github.com/custodia-labs/kbase/internal/core/ports/driving"
	"github.com/custodia-labs/kbase/internal/logger"
)

// Ensure Scheduler implements the interface.
var _ driving.Scheduler = (*Scheduler)(nil)

// historyKeep is how many results are kept per task.
const historyKeep = 100

// Maintainer performs the consistency work the scheduler triggers.
// *IngestionOrchestrator satisfies it.
type Maintainer interface {
	Reconcile(ctx context.Context) (*domain.ReconcileReport, error)
	ResumeStalled(ctx context.Context) (int, error)
}

// Scheduler manages background task execution.
type Scheduler struct {
	config     domain.SchedulerConfig
	store      driven.SchedulerStore
	maintainer Maintainer
	tick       time.Duration

	mu      sync.Mutex
	running bool
	active  map[string]bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler with configuration.
func NewScheduler(
	config domain.SchedulerConfig,
	store driven.SchedulerStore,
	maintainer Maintainer,
) *Scheduler {
	return &Scheduler{
		config:     config,
		store:      store,
		maintainer: maintainer,
		tick:       time.Minute,
		active:     make(map[string]bool),
	}
}

// Start begins the scheduler loop. This method blocks until Stop is called
// or ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	if !s.config.Enabled {
		logger.Debug("Scheduler disabled")
	}
	if err := s.syncTasks(ctx); err != nil {
		logger.Warn("Scheduler failed to initialise tasks: %v", err)
	}

	return s.loop(ctx)
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	// Wait for running tasks to complete
	s.wg.Wait()

	return nil
}

// RunNow runs a sweep synchronously, ignoring its schedule, and records
// the run like a timed one.
func (s *Scheduler) RunNow(ctx context.Context, taskID string) (*driving.TaskReport, error) {
	if domain.TaskName(taskID) == "" {
		return nil, fmt.Errorf("%w: unknown task %q", domain.ErrNotFound, taskID)
	}
	if !s.acquire(taskID) {
		return nil, fmt.Errorf("%w: task %s is already running", domain.ErrInvalidInput, taskID)
	}
	defer s.release(taskID)

	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("loading task %s: %w", taskID, err)
	}
	if task == nil {
		task = s.newTask(taskID, s.config.GetTaskConfig(taskID), time.Now())
	}

	r := s.execute(ctx, task)
	return &driving.TaskReport{
		TaskID:         r.TaskID,
		Success:        r.Success,
		Error:          r.Error,
		ItemsProcessed: r.ItemsProcessed,
	}, nil
}

func (s *Scheduler) newTask(id string, cfg domain.TaskConfig, now time.Time) *domain.ScheduledTask {
	return &domain.ScheduledTask{
		ID:       id,
		Name:     domain.TaskName(id),
		Interval: cfg.Interval,
		Enabled:  cfg.Enabled,
		NextRun:  now.Add(cfg.Interval),
	}
}

// syncTasks brings the stored schedule in line with the configuration.
// Sweeps with no interval are left alone.
func (s *Scheduler) syncTasks(ctx context.Context) error {
	var errs []error
	now := time.Now()
	for _, id := range domain.MaintenanceTasks {
		cfg := s.config.Effective(id)
		if cfg.Interval <= 0 {
			continue
		}
		if err := s.syncTask(ctx, id, cfg, now); err != nil {
			errs = append(errs, fmt.Errorf("task %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Scheduler) syncTask(ctx context.Context, id string, cfg domain.TaskConfig, now time.Time) error {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return err
	}
	switch {
	case task == nil:
		task = s.newTask(id, cfg, now)
	case task.Interval != cfg.Interval:
		// A changed interval counts from now, not from the last run.
		task.Interval = cfg.Interval
		task.NextRun = now.Add(cfg.Interval)
	}
	task.Enabled = cfg.Enabled
	return s.store.SaveTask(ctx, task)
}

func (s *Scheduler) loop(ctx context.Context) error {
	s.runDue(ctx)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stopCh:
			return nil
		case <-ticker.C:
			s.runDue(ctx)
		}
	}
}

// runDue starts every due sweep in its own goroutine. A sweep still
// running from an earlier tick is skipped.
func (s *Scheduler) runDue(ctx context.Context) {
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		logger.Warn("Scheduler failed to list tasks: %v", err)
		return
	}
	now := time.Now()
	for i := range tasks {
		task := &tasks[i]
		if !task.Due(now) || !s.acquire(task.ID) {
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.release(task.ID)
			s.execute(ctx, task)
		}()
	}
}

// execute runs one sweep and persists the schedule, the run and the
// pruned history. Store failures are logged, not returned.
func (s *Scheduler) execute(ctx context.Context, task *domain.ScheduledTask) *domain.TaskResult {
	r := &domain.TaskResult{TaskID: task.ID, StartedAt: time.Now()}

	var err error
	switch task.ID {
	case domain.TaskIDReconcile:
		r.ItemsProcessed, err = s.runReconcile(ctx)
	case domain.TaskIDResume:
		r.ItemsProcessed, err = s.runResume(ctx)
	default:
		err = fmt.Errorf("no sweep named %s", task.ID)
	}
	r.EndedAt = time.Now()

	if err != nil {
		r.Error = err.Error()
		logger.Warn("Task %s failed: %v", task.ID, err)
	} else {
		r.Success = true
		logger.Debug("Task %s processed %d item(s)", task.ID, r.ItemsProcessed)
	}
	task.Record(r)

	if err := s.store.SaveTask(ctx, task); err != nil {
		logger.Warn("Scheduler failed to save task %s: %v", task.ID, err)
	}
	if err := s.store.RecordResult(ctx, r); err != nil {
		logger.Warn("Scheduler failed to record %s run: %v", task.ID, err)
	}
	if err := s.store.PruneHistory(ctx, historyKeep); err != nil {
		logger.Warn("Scheduler failed to prune history: %v", err)
	}
	return r
}

func (s *Scheduler) runReconcile(ctx context.Context) (int, error) {
	if s.maintainer == nil {
		return 0, nil
	}
	report, err := s.maintainer.Reconcile(ctx)
	if err != nil {
		return 0, err
	}
	return report.Items(), nil
}

func (s *Scheduler) runResume(ctx context.Context) (int, error) {
	if s.maintainer == nil {
		return 0, nil
	}
	return s.maintainer.ResumeStalled(ctx)
}

func (s *Scheduler) acquire(taskID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active[taskID] {
		return false
	}
	s.active[taskID] = true
	return true
}

func (s *Scheduler) release(taskID string) {
	s.mu.Lock()
	delete(s.active, taskID)
	s.mu.Unlock()
}
