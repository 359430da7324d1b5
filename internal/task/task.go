// Package task implements background task dispatch: tasks are persisted in
// the same transaction as the write that triggers them, pushed onto an
// in-memory queue, and executed by a pool of workers. Crash recovery
// re-queues persisted tasks, which gives the side effects at-least-once
// delivery instead of an uncoordinated dual write.
package task

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Status represents the current state of a background task.
type Status string

// Possible task status values.
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusRevoked    Status = "revoked"
)

// IsTerminal reports whether the status is final.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusRevoked
}

// Task type identifiers.
const (
	// TypeWelcomeEmail sends the post-registration welcome email.
	TypeWelcomeEmail = "user_welcome_email"

	// TypeOrderConfirmation sends the order confirmation email.
	TypeOrderConfirmation = "order_confirmation_email"

	// TypeOrderInvoice renders the order invoice PDF into the spool
	// directory.
	TypeOrderInvoice = "order_invoice_pdf"
)

// Task represents a unit of background work to be processed.
type Task interface {
	// ID returns the task's unique identifier
	ID() uuid.UUID

	// Type returns the task type identifier
	Type() string

	// Payload returns the task data as a byte slice
	Payload() []byte

	// Status returns the current task status
	Status() Status

	// Execute runs the task logic
	Execute(ctx context.Context) error
}

// QueueReader provides read-only access to the task channel,
// allowing workers to consume tasks without the ability to enqueue.
type QueueReader interface {
	// GetChannel returns a read-only channel for consuming tasks
	GetChannel() <-chan Task
}

// QueueWriter provides write access to the task queue,
// allowing services to enqueue tasks for processing.
type QueueWriter interface {
	// Enqueue adds a task to the queue for processing.
	// Returns an error if the queue is full or closed.
	Enqueue(task Task) error

	// Close closes the task queue, preventing further task submission
	Close()
}

// Record is a task row as persisted: the identifier plus its lifecycle
// state and terminal payloads.
type Record struct {
	ID           uuid.UUID
	Type         string
	Payload      []byte
	Status       Status
	Result       []byte
	ErrorMessage string
	Attempts     int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Store defines the interface for persisting tasks.
type Store interface {
	// Save persists a new task row.
	Save(ctx context.Context, task Task) error

	// Get retrieves a task record by ID.
	// Returns store.ErrTaskNotFound if the task does not exist.
	Get(ctx context.Context, id uuid.UUID) (*Record, error)

	// UpdateStatus updates the status of a task along with its terminal
	// error message (empty for success) and increments the attempt count
	// when moving to processing.
	UpdateStatus(ctx context.Context, taskID uuid.UUID, status Status, errorMsg string) error

	// SetResult records the terminal result payload of a completed task.
	SetResult(ctx context.Context, taskID uuid.UUID, result []byte) error

	// GetPending retrieves all tasks with "pending" status.
	GetPending(ctx context.Context) ([]*Record, error)

	// GetProcessing retrieves tasks with "processing" status.
	// If olderThan is non-zero, only returns tasks that have been in this
	// state longer than the specified duration.
	GetProcessing(ctx context.Context, olderThan time.Duration) ([]*Record, error)

	// WithTx returns a new Store instance that uses the provided
	// transaction. This is how services persist a task row atomically with
	// the write that triggers it.
	WithTx(tx *sql.Tx) Store
}

// HandlerFunc executes one task type against its decoded payload.
type HandlerFunc func(ctx context.Context, payload []byte) error

// RetryPolicy configures execution retries for one task definition.
// Retries live on the definition, not on the dispatch call.
type RetryPolicy struct {
	// MaxAttempts is the total number of execution attempts (>= 1).
	MaxAttempts int

	// Backoff is the delay between attempts.
	Backoff time.Duration
}

// Definition binds a task type to its handler and retry policy.
type Definition struct {
	Type    string
	Handler HandlerFunc
	Retry   RetryPolicy
}
