package task

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// ErrNotRevocable is returned when a revoke targets a task that has
// already started or finished. Cancellation is best-effort: only tasks
// still pending can be revoked.
var ErrNotRevocable = fmt.Errorf("task is not pending and cannot be revoked")

// StatusInfo is the dispatcher's answer to a status poll: the job
// reference, its lifecycle state, and the result or error payload once the
// task is terminal.
type StatusInfo struct {
	TaskID uuid.UUID       `json:"task_id"`
	Status Status          `json:"status"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// queuedTask is the Task implementation the dispatcher enqueues: a
// persisted payload bound to its registered handler.
type queuedTask struct {
	id      uuid.UUID
	typ     string
	payload []byte
	status  Status
	handler HandlerFunc
}

func (t *queuedTask) ID() uuid.UUID   { return t.id }
func (t *queuedTask) Type() string    { return t.typ }
func (t *queuedTask) Payload() []byte { return t.payload }
func (t *queuedTask) Status() Status  { return t.status }

func (t *queuedTask) Execute(ctx context.Context) error {
	if t.handler == nil {
		return fmt.Errorf("%w: %s", ErrUnknownTaskType, t.typ)
	}
	return t.handler(ctx, t.payload)
}

// Dispatcher is the service-facing entry point for background work:
// submit a named job with a payload, poll its status, or revoke it.
type Dispatcher struct {
	store  Store
	runner *Runner
	logger *slog.Logger
}

// NewDispatcher creates a Dispatcher backed by the given store and runner.
func NewDispatcher(store Store, runner *Runner, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		store:  store,
		runner: runner,
		logger: logger.With(slog.String("component", "task_dispatcher")),
	}
}

// Submit serializes the payload, persists the task row and enqueues it.
// Returns the opaque job reference. If the queue is full the task stays
// persisted as pending and is picked up by the next recovery sweep, so
// submission never silently loses work.
func (d *Dispatcher) Submit(ctx context.Context, name string, payload any) (uuid.UUID, error) {
	t, err := d.build(name, payload)
	if err != nil {
		return uuid.Nil, err
	}

	if err := d.store.Save(ctx, t); err != nil {
		return uuid.Nil, fmt.Errorf("failed to save task: %w", err)
	}

	d.enqueue(t)
	return t.id, nil
}

// SubmitTx persists the task row inside the caller's transaction and
// enqueues it for execution. Callers should invoke the returned enqueue
// function only after the transaction commits; if the process dies in
// between, recovery re-queues the row.
func (d *Dispatcher) SubmitTx(ctx context.Context, tx *sql.Tx, name string, payload any) (uuid.UUID, func(), error) {
	t, err := d.build(name, payload)
	if err != nil {
		return uuid.Nil, nil, err
	}

	if err := d.store.WithTx(tx).Save(ctx, t); err != nil {
		return uuid.Nil, nil, fmt.Errorf("failed to save task: %w", err)
	}

	return t.id, func() { d.enqueue(t) }, nil
}

// build validates the task type and assembles a queuedTask with a fresh ID.
func (d *Dispatcher) build(name string, payload any) (*queuedTask, error) {
	def, ok := d.runner.Definition(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTaskType, name)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal task payload: %w", err)
	}

	return &queuedTask{
		id:      uuid.New(),
		typ:     name,
		payload: data,
		status:  StatusPending,
		handler: def.Handler,
	}, nil
}

// enqueue pushes the task onto the runner queue; a full queue is logged
// and left to recovery rather than surfaced to the request path.
func (d *Dispatcher) enqueue(t *queuedTask) {
	if err := d.runner.Queue().Enqueue(t); err != nil {
		d.logger.Warn("failed to enqueue task, leaving for recovery",
			"task_id", t.id,
			"task_type", t.typ,
			"error", err)
	}
}

// Status returns the current lifecycle state of a task, with the result
// or error payload once terminal.
func (d *Dispatcher) Status(ctx context.Context, id uuid.UUID) (*StatusInfo, error) {
	rec, err := d.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	info := &StatusInfo{
		TaskID: rec.ID,
		Status: rec.Status,
	}
	if rec.Status.IsTerminal() {
		info.Result = rec.Result
		info.Error = rec.ErrorMessage
	}
	return info, nil
}

// Revoke cancels a pending task. Tasks that are already processing or
// terminal return ErrNotRevocable; in-flight work runs to completion.
func (d *Dispatcher) Revoke(ctx context.Context, id uuid.UUID) error {
	rec, err := d.store.Get(ctx, id)
	if err != nil {
		return err
	}

	if rec.Status != StatusPending {
		return fmt.Errorf("%w: status is %s", ErrNotRevocable, rec.Status)
	}

	if err := d.store.UpdateStatus(ctx, id, StatusRevoked, "revoked by caller"); err != nil {
		return fmt.Errorf("failed to revoke task: %w", err)
	}

	d.logger.Info("task revoked", "task_id", id, "task_type", rec.Type)
	return nil
}
