// Package scheduler runs named periodic tasks from a polling tick.
//
// The scheduler owns no goroutines. The caller invokes Tick at its own
// cadence; every due task runs synchronously, in registration order. A task
// is due on the first tick and then whenever its schedule says so,
// measured from the tick at which it last ran. The last run is stamped even
// when the task fails, so failures are never retried early.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"grimm.is/opnwatch/internal/clock"
	"grimm.is/opnwatch/internal/logging"
)

// TaskFunc is a function that performs a scheduled task.
type TaskFunc func(ctx context.Context) error

// Schedule defines when a task should run.
type Schedule interface {
	// Next returns the next time the task should run after the given time.
	Next(after time.Time) time.Time
}

// Task represents a scheduled task.
type Task struct {
	ID          string
	Name        string
	Description string
	Schedule    Schedule
	Func        TaskFunc
	Enabled     bool
	Timeout     time.Duration
}

// TaskStatus represents the current status of a task.
type TaskStatus struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Description  string        `json:"description"`
	Enabled      bool          `json:"enabled"`
	LastRun      time.Time     `json:"last_run,omitempty"`
	LastRunID    string        `json:"last_run_id,omitempty"`
	LastDuration time.Duration `json:"last_duration,omitempty"`
	LastError    string        `json:"last_error,omitempty"`
	NextRun      time.Time     `json:"next_run,omitempty"`
	RunCount     int64         `json:"run_count"`
	ErrorCount   int64         `json:"error_count"`
}

// Observer is called after every task run.
type Observer func(taskID string, err error, elapsed time.Duration)

// Scheduler holds tasks in registration order.
type Scheduler struct {
	mu       sync.RWMutex
	tasks    []*taskEntry
	index    map[string]*taskEntry
	logger   *logging.Logger
	clock    clock.Clock
	observer Observer
}

type taskEntry struct {
	task    *Task
	status  TaskStatus
	nextRun time.Time
}

// Option configures the Scheduler.
type Option func(*Scheduler)

// WithClock sets the clock used to time task runs.
func WithClock(c clock.Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithObserver registers a callback invoked after every run (metrics).
func WithObserver(o Observer) Option {
	return func(s *Scheduler) { s.observer = o }
}

// New creates a new scheduler.
func New(logger *logging.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = logging.Default()
	}
	s := &Scheduler{
		index:  make(map[string]*taskEntry),
		logger: logger.WithComponent("scheduler"),
		clock:  &clock.RealClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddTask adds a task to the scheduler.
func (s *Scheduler) AddTask(task *Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if task.ID == "" {
		return fmt.Errorf("task ID is required")
	}
	if task.Schedule == nil {
		return fmt.Errorf("task schedule is required")
	}
	if task.Func == nil {
		return fmt.Errorf("task function is required")
	}

	if _, exists := s.index[task.ID]; exists {
		return fmt.Errorf("task %s already exists", task.ID)
	}

	entry := &taskEntry{
		task: task,
		status: TaskStatus{
			ID:          task.ID,
			Name:        task.Name,
			Description: task.Description,
			Enabled:     task.Enabled,
		},
	}

	s.tasks = append(s.tasks, entry)
	s.index[task.ID] = entry
	s.logger.Info("task added", "id", task.ID, "name", task.Name)

	return nil
}

// GetStatus returns the status of all tasks in registration order.
func (s *Scheduler) GetStatus() []TaskStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	statuses := make([]TaskStatus, 0, len(s.tasks))
	for _, entry := range s.tasks {
		statuses = append(statuses, entry.status)
	}
	return statuses
}

// GetTaskStatus returns the status of a specific task.
func (s *Scheduler) GetTaskStatus(id string) (TaskStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, exists := s.index[id]
	if !exists {
		return TaskStatus{}, false
	}
	return entry.status, true
}

func (e *taskEntry) due(now time.Time) bool {
	if !e.task.Enabled {
		return false
	}
	if e.status.LastRun.IsZero() {
		return true
	}
	return !now.Before(e.nextRun)
}

// Tick runs every due task, one after the other. It stops early and
// returns ctx.Err() when the context ends between tasks.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) error {
	s.mu.RLock()
	entries := make([]*taskEntry, len(s.tasks))
	copy(entries, s.tasks)
	s.mu.RUnlock()

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		s.mu.RLock()
		due := entry.due(now)
		s.mu.RUnlock()
		if !due {
			continue
		}
		s.execute(ctx, entry, now)
	}
	return nil
}

// RunTask runs a task immediately, regardless of schedule.
func (s *Scheduler) RunTask(ctx context.Context, id string) error {
	s.mu.RLock()
	entry, exists := s.index[id]
	s.mu.RUnlock()

	if !exists {
		return fmt.Errorf("task %s not found", id)
	}
	return s.execute(ctx, entry, s.clock.Now())
}

// execute runs a single task. Status is updated from a deferred function
// so that a panicking task still records its run before the panic
// reaches the caller.
func (s *Scheduler) execute(ctx context.Context, entry *taskEntry, now time.Time) (err error) {
	task := entry.task
	runID := uuid.NewString()
	log := s.logger.WithFields(map[string]any{"task": task.ID, "run_id": runID})
	log.Debug("executing task", "name", task.Name)

	ctx = WithRunID(ctx, runID)
	var cancel context.CancelFunc
	if task.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, task.Timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}

	start := s.clock.Now()
	completed := false
	defer func() {
		cancel()
		duration := s.clock.Since(start)
		if !completed {
			err = fmt.Errorf("task %s panicked", task.ID)
		}

		s.mu.Lock()
		entry.status.LastRun = now
		entry.status.LastRunID = runID
		entry.status.LastDuration = duration
		entry.status.RunCount++
		entry.nextRun = task.Schedule.Next(now)
		entry.status.NextRun = entry.nextRun
		if err != nil {
			entry.status.LastError = err.Error()
			entry.status.ErrorCount++
		} else {
			entry.status.LastError = ""
		}
		s.mu.Unlock()

		if s.observer != nil {
			s.observer(task.ID, err, duration)
		}
		if err != nil {
			log.Warn("task failed", "error", err, "duration", duration)
		} else {
			log.Debug("task completed", "duration", duration)
		}
	}()

	err = task.Func(ctx)
	completed = true
	return err
}

// Handler serves the task statuses as JSON.
func (s *Scheduler) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(s.GetStatus())
	}
}

type runIDKey struct{}

// WithRunID returns a context carrying the run id of the current task.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunID returns the run id stored in ctx, or "".
func RunID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}
