package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrUnknownTaskType is returned when a task names a type with no
// registered definition.
var ErrUnknownTaskType = errors.New("unknown task type")

// RunnerConfig holds configuration for the task runner.
type RunnerConfig struct {
	// WorkerCount determines how many concurrent workers process tasks
	WorkerCount int

	// QueueSize determines the buffer size for the in-memory task queue
	QueueSize int

	// StuckTaskAge defines how long a task can be in processing state
	// before it's considered stuck and reset
	StuckTaskAge time.Duration

	// StuckTaskCheckInterval defines how often to check for stuck tasks.
	// If zero, defaults to 5 minutes.
	StuckTaskCheckInterval time.Duration
}

// DefaultRunnerConfig returns a RunnerConfig with reasonable defaults.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		WorkerCount:            2,
		QueueSize:              100,
		StuckTaskAge:           30 * time.Minute,
		StuckTaskCheckInterval: 5 * time.Minute,
	}
}

// Runner manages background task processing: it drains the queue with a
// pool of workers, drives the persisted status transitions, retries
// execution per the task definition, and recovers unfinished tasks after
// a restart.
type Runner struct {
	store       Store
	queue       *Queue
	definitions map[string]Definition
	ctx         context.Context
	cancelFunc  context.CancelFunc
	wg          sync.WaitGroup
	config      RunnerConfig
	logger      *slog.Logger
	errHandler  func(task Task, err error)
	observer    func(taskType, outcome string)
}

// NewRunner creates a new Runner with the given definitions registered.
func NewRunner(store Store, defs []Definition, config RunnerConfig, logger *slog.Logger) *Runner {
	if config.StuckTaskCheckInterval == 0 {
		config.StuckTaskCheckInterval = 5 * time.Minute
	}

	definitions := make(map[string]Definition, len(defs))
	for _, def := range defs {
		definitions[def.Type] = def
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Runner{
		store:       store,
		queue:       NewQueue(config.QueueSize, logger),
		definitions: definitions,
		ctx:         ctx,
		cancelFunc:  cancel,
		config:      config,
		logger:      logger.With(slog.String("component", "task_runner")),
		errHandler: func(task Task, err error) {
			logger.Error("task execution failed",
				"task_id", task.ID(),
				"task_type", task.Type(),
				"error", err)
		},
	}
}

// SetErrorHandler allows setting a custom error handler function.
func (r *Runner) SetErrorHandler(handler func(task Task, err error)) {
	r.errHandler = handler
}

// SetObserver registers a callback invoked with the type and terminal
// outcome ("completed" or "failed") of every executed task. Used to
// feed metrics without coupling the runner to a metrics registry.
func (r *Runner) SetObserver(observer func(taskType, outcome string)) {
	r.observer = observer
}

func (r *Runner) observe(taskType, outcome string) {
	if r.observer != nil {
		r.observer(taskType, outcome)
	}
}

// Queue exposes the runner's queue for enqueueing already-persisted tasks.
func (r *Runner) Queue() QueueWriter {
	return r.queue
}

// Definition returns the registered definition for a task type.
func (r *Runner) Definition(taskType string) (Definition, bool) {
	def, ok := r.definitions[taskType]
	return def, ok
}

// Start initializes the worker pool and begins processing tasks.
func (r *Runner) Start() error {
	if err := r.Recover(); err != nil {
		return fmt.Errorf("failed to recover tasks: %w", err)
	}

	for i := 0; i < r.config.WorkerCount; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}

	r.wg.Add(1)
	go r.stuckTaskMonitor()

	return nil
}

// Stop gracefully shuts down the task runner.
func (r *Runner) Stop() {
	r.cancelFunc()
	r.queue.Close()
	r.wg.Wait()
}

// Recover loads any unfinished tasks from the database and re-queues them.
// Processing tasks are reset to pending first; they were interrupted by a
// crash.
func (r *Runner) Recover() error {
	ctx := context.Background()

	pending, err := r.store.GetPending(ctx)
	if err != nil {
		return fmt.Errorf("failed to get pending tasks: %w", err)
	}

	processing, err := r.store.GetProcessing(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to get processing tasks: %w", err)
	}

	r.logger.Info("recovering unfinished tasks",
		"pending_count", len(pending),
		"processing_count", len(processing))

	for _, rec := range processing {
		if err := r.store.UpdateStatus(ctx, rec.ID, StatusPending, "reset after recovery"); err != nil {
			r.logger.Error("failed to reset processing task status",
				"task_id", rec.ID,
				"task_type", rec.Type,
				"error", err)
			continue
		}
		pending = append(pending, rec)
	}

	for _, rec := range pending {
		t, err := r.rebuild(rec)
		if err != nil {
			r.logger.Error("failed to rebuild recovered task",
				"task_id", rec.ID,
				"task_type", rec.Type,
				"error", err)
			continue
		}
		if err := r.queue.Enqueue(t); err != nil {
			r.logger.Error("failed to requeue recovered task",
				"task_id", rec.ID,
				"task_type", rec.Type,
				"error", err)
		}
	}

	return nil
}

// rebuild turns a persisted record back into an executable task using the
// registered definition for its type.
func (r *Runner) rebuild(rec *Record) (Task, error) {
	def, ok := r.definitions[rec.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTaskType, rec.Type)
	}
	return &queuedTask{
		id:      rec.ID,
		typ:     rec.Type,
		payload: rec.Payload,
		status:  rec.Status,
		handler: def.Handler,
	}, nil
}

// worker processes tasks from the queue.
func (r *Runner) worker(id int) {
	defer r.wg.Done()

	r.logger.Debug("starting worker", "worker_id", id)

	for {
		select {
		case <-r.ctx.Done():
			r.logger.Debug("stopping worker", "worker_id", id)
			return

		case t, ok := <-r.queue.GetChannel():
			if !ok {
				r.logger.Debug("task channel closed, stopping worker", "worker_id", id)
				return
			}
			r.processTask(t, id)
		}
	}
}

// processTask handles execution of a single task, including the per-type
// retry policy. Revoked tasks are dropped without executing.
func (r *Runner) processTask(t Task, workerID int) {
	ctx := context.Background()
	log := r.logger.With(
		"task_id", t.ID(),
		"task_type", t.Type(),
		"worker_id", workerID,
	)

	// Revocation happens between enqueue and dequeue; re-check the
	// persisted status before doing any work.
	rec, err := r.store.Get(ctx, t.ID())
	if err != nil {
		log.Error("failed to load task before execution", "error", err)
		return
	}
	if rec.Status == StatusRevoked {
		log.Info("skipping revoked task")
		return
	}

	if err := r.store.UpdateStatus(ctx, t.ID(), StatusProcessing, ""); err != nil {
		log.Error("failed to update task status to processing", "error", err)
		return
	}

	log.Info("processing task")

	retry := RetryPolicy{MaxAttempts: 1}
	if def, ok := r.definitions[t.Type()]; ok {
		retry = def.Retry
	}
	if retry.MaxAttempts < 1 {
		retry.MaxAttempts = 1
	}

	var execErr error
	for attempt := 1; attempt <= retry.MaxAttempts; attempt++ {
		execErr = t.Execute(ctx)
		if execErr == nil {
			break
		}
		log.Warn("task attempt failed",
			"attempt", attempt,
			"max_attempts", retry.MaxAttempts,
			"error", execErr)
		if attempt < retry.MaxAttempts && retry.Backoff > 0 {
			select {
			case <-r.ctx.Done():
				// Shutting down; leave the task in processing state for
				// recovery on the next start.
				return
			case <-time.After(retry.Backoff):
			}
		}
	}

	if execErr != nil {
		if updateErr := r.store.UpdateStatus(ctx, t.ID(), StatusFailed, execErr.Error()); updateErr != nil {
			log.Error("failed to update task status to failed", "error", updateErr)
		}
		r.errHandler(t, execErr)
		r.observe(t.Type(), "failed")
		return
	}

	log.Info("task completed")
	if updateErr := r.store.UpdateStatus(ctx, t.ID(), StatusCompleted, ""); updateErr != nil {
		log.Error("failed to update task status to completed", "error", updateErr)
	}
	r.observe(t.Type(), "completed")
}

// stuckTaskMonitor periodically checks for tasks that have been in
// "processing" state for too long and resets them.
func (r *Runner) stuckTaskMonitor() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.StuckTaskCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return

		case <-ticker.C:
			r.SweepStuckTasks()
		}
	}
}

// SweepStuckTasks finds processing tasks older than the configured age,
// resets them to pending and re-queues them. Also callable from a
// scheduler.
func (r *Runner) SweepStuckTasks() {
	ctx := context.Background()

	stuck, err := r.store.GetProcessing(ctx, r.config.StuckTaskAge)
	if err != nil {
		r.logger.Error("failed to check for stuck tasks", "error", err)
		return
	}
	if len(stuck) == 0 {
		return
	}

	r.logger.Info("found stuck tasks", "count", len(stuck))

	for _, rec := range stuck {
		if err := r.store.UpdateStatus(ctx, rec.ID, StatusPending,
			"reset after being stuck in processing state"); err != nil {
			r.logger.Error("failed to reset stuck task status",
				"task_id", rec.ID,
				"task_type", rec.Type,
				"error", err)
			continue
		}

		t, err := r.rebuild(rec)
		if err != nil {
			r.logger.Error("failed to rebuild stuck task",
				"task_id", rec.ID,
				"error", err)
			continue
		}
		if err := r.queue.Enqueue(t); err != nil {
			r.logger.Error("failed to requeue stuck task",
				"task_id", rec.ID,
				"task_type", rec.Type,
				"error", err)
		}
	}
}
