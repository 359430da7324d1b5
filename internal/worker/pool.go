// Package worker provides an in-process pool for short-lived compute
// jobs. Unlike the persisted background tasks, pool jobs live only in
// memory: results survive until cleaned up, not across restarts.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of a pool job. Transitions are
// monotonic: pending -> running -> completed/failed, or
// pending -> cancelled. A running job cannot be cancelled.
type JobStatus string

// Possible job status values.
const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// IsTerminal reports whether the status is final.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// JobFunc is the unit of work submitted to the pool.
type JobFunc func(ctx context.Context) (any, error)

// Pool errors.
var (
	ErrPoolClosed    = errors.New("worker pool is closed")
	ErrQueueFull     = errors.New("worker pool queue is full")
	ErrJobNotFound   = errors.New("job not found")
	ErrNotCancelable = errors.New("job has already started and cannot be cancelled")
	ErrResultTimeout = errors.New("timed out waiting for job result")
)

// job is the registry entry for one submitted function.
type job struct {
	id       uuid.UUID
	fn       JobFunc
	status   JobStatus
	result   any
	err      error
	done     chan struct{}
	finished time.Time
}

// JobInfo is a snapshot of a job's state.
type JobInfo struct {
	ID     uuid.UUID
	Status JobStatus
	Error  string
}

// Pool runs submitted jobs on a fixed number of goroutines with a
// bounded queue. Submission fails fast when the queue is full rather
// than blocking the caller.
type Pool struct {
	mu     sync.Mutex
	jobs   map[uuid.UUID]*job
	queue  chan *job
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed bool
	logger *slog.Logger
}

// New creates a Pool with the given number of workers and queue
// capacity. Non-positive values fall back to 1.
func New(workers, queueSize int, logger *slog.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		jobs:   make(map[uuid.UUID]*job),
		queue:  make(chan *job, queueSize),
		ctx:    ctx,
		cancel: cancel,
		logger: logger.With(slog.String("component", "worker_pool")),
	}

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	return p
}

// Submit registers fn and queues it for execution, returning the job ID.
// Returns ErrQueueFull when the queue has no room and ErrPoolClosed
// after Shutdown.
func (p *Pool) Submit(fn JobFunc) (uuid.UUID, error) {
	if fn == nil {
		return uuid.Nil, errors.New("job function cannot be nil")
	}

	j := &job{
		id:     uuid.New(),
		fn:     fn,
		status: JobPending,
		done:   make(chan struct{}),
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return uuid.Nil, ErrPoolClosed
	}
	p.jobs[j.id] = j
	p.mu.Unlock()

	select {
	case p.queue <- j:
		return j.id, nil
	default:
		p.mu.Lock()
		delete(p.jobs, j.id)
		p.mu.Unlock()
		return uuid.Nil, ErrQueueFull
	}
}

// Status returns a snapshot of the job's state.
func (p *Pool) Status(id uuid.UUID) (JobInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	j, ok := p.jobs[id]
	if !ok {
		return JobInfo{}, ErrJobNotFound
	}
	return p.snapshot(j), nil
}

func (p *Pool) snapshot(j *job) JobInfo {
	info := JobInfo{ID: j.id, Status: j.status}
	if j.err != nil {
		info.Error = j.err.Error()
	}
	return info
}

// Result blocks until the job finishes or the timeout elapses. On
// timeout the job keeps running and its result stays retrievable later;
// only the wait is abandoned. A cancelled job reports ErrNotCancelable's
// counterpart through its status, not through Result's error.
func (p *Pool) Result(id uuid.UUID, timeout time.Duration) (any, error) {
	p.mu.Lock()
	j, ok := p.jobs[id]
	p.mu.Unlock()
	if !ok {
		return nil, ErrJobNotFound
	}

	select {
	case <-j.done:
	case <-time.After(timeout):
		return nil, ErrResultTimeout
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if j.err != nil {
		return nil, j.err
	}
	return j.result, nil
}

// Cancel marks a pending job as cancelled. Jobs that have already
// started run to completion; cancellation is only a dequeue-time check.
func (p *Pool) Cancel(id uuid.UUID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	j, ok := p.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	if j.status != JobPending {
		return fmt.Errorf("%w: status is %s", ErrNotCancelable, j.status)
	}

	j.status = JobCancelled
	j.finished = time.Now()
	close(j.done)
	return nil
}

// Cleanup removes terminal jobs that finished more than maxAge ago and
// returns the number removed. Pending and running jobs are never touched.
func (p *Pool) Cleanup(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	p.mu.Lock()
	defer p.mu.Unlock()

	removed := 0
	for id, j := range p.jobs {
		if j.status.IsTerminal() && j.finished.Before(cutoff) {
			delete(p.jobs, id)
			removed++
		}
	}
	if removed > 0 {
		p.logger.Debug("cleaned up finished jobs", "removed", removed)
	}
	return removed
}

// Shutdown stops accepting jobs and waits for in-flight jobs to finish.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	close(p.queue)
	p.wg.Wait()
	p.cancel()
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for j := range p.queue {
		p.mu.Lock()
		// Cancelled between submit and dequeue; drop without running.
		if j.status != JobPending {
			p.mu.Unlock()
			continue
		}
		j.status = JobRunning
		p.mu.Unlock()

		result, err := p.run(j)

		p.mu.Lock()
		j.result = result
		j.err = err
		if err != nil {
			j.status = JobFailed
		} else {
			j.status = JobCompleted
		}
		j.finished = time.Now()
		close(j.done)
		p.mu.Unlock()

		if err != nil {
			p.logger.Warn("job failed", "job_id", j.id, "worker_id", id, "error", err)
		}
	}
}

// run executes the job function, converting a panic into an error so a
// bad job cannot kill the worker.
func (p *Pool) run(j *job) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return j.fn(p.ctx)
}
