package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/stackmesh/commerce-api/internal/platform/logger"
	"github.com/stackmesh/commerce-api/internal/store"
	"github.com/stackmesh/commerce-api/internal/task"
)

// TaskStore implements the task.Store interface using PostgreSQL.
// Task rows double as the outbox: services insert them inside their own
// transactions and the runner drains them.
type TaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewTaskStore creates a new TaskStore.
func NewTaskStore(db store.DBTX, logger *slog.Logger) *TaskStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &TaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_store")),
	}
}

// Ensure TaskStore implements task.Store interface
var _ task.Store = (*TaskStore)(nil)

// Save persists a new task row.
func (s *TaskStore) Save(ctx context.Context, t task.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		INSERT INTO tasks (id, type, payload, status, attempts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, $5, $6)
	`
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, query,
		t.ID(),
		t.Type(),
		t.Payload(),
		t.Status(),
		now,
		now,
	)
	if err != nil {
		log.Error("failed to save task",
			"task_id", t.ID(),
			"task_type", t.Type(),
			"error", err)
		return mapError(err, "task", "save")
	}

	return nil
}

const taskColumns = "id, type, payload, status, result, error_message, attempts, created_at, updated_at"

// Get retrieves a task record by ID.
func (s *TaskStore) Get(ctx context.Context, id uuid.UUID) (*task.Record, error) {
	query := "SELECT " + taskColumns + " FROM tasks WHERE id = $1"

	rec, err := s.scanRecord(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrTaskNotFound
		}
		return nil, mapError(err, "task", "get")
	}
	return rec, nil
}

func (s *TaskStore) scanRecord(row *sql.Row) (*task.Record, error) {
	var rec task.Record
	var status string
	var result, errorMessage sql.NullString

	err := row.Scan(
		&rec.ID,
		&rec.Type,
		&rec.Payload,
		&status,
		&result,
		&errorMessage,
		&rec.Attempts,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Status = task.Status(status)
	rec.Result = []byte(result.String)
	rec.ErrorMessage = errorMessage.String
	return &rec, nil
}

// UpdateStatus updates the status of a task in the database. Moving into
// processing increments the attempt counter.
func (s *TaskStore) UpdateStatus(ctx context.Context, taskID uuid.UUID, status task.Status, errorMsg string) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE tasks
		SET status = $1,
		    error_message = $2,
		    attempts = attempts + CASE WHEN $1 = 'processing' THEN 1 ELSE 0 END,
		    updated_at = $3
		WHERE id = $4
	`
	result, err := s.db.ExecContext(ctx, query, status, errorMsg, time.Now().UTC(), taskID)
	if err != nil {
		log.Error("failed to update task status",
			"task_id", taskID,
			"status", status,
			"error", err)
		return mapError(err, "task", "update_status")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return mapError(err, "task", "update_status")
	}
	if rowsAffected == 0 {
		return store.ErrTaskNotFound
	}

	return nil
}

// SetResult records the terminal result payload of a completed task.
func (s *TaskStore) SetResult(ctx context.Context, taskID uuid.UUID, result []byte) error {
	query := "UPDATE tasks SET result = $1, updated_at = $2 WHERE id = $3"
	res, err := s.db.ExecContext(ctx, query, result, time.Now().UTC(), taskID)
	if err != nil {
		return mapError(err, "task", "set_result")
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return mapError(err, "task", "set_result")
	}
	if rowsAffected == 0 {
		return store.ErrTaskNotFound
	}
	return nil
}

// GetPending retrieves all tasks with "pending" status.
func (s *TaskStore) GetPending(ctx context.Context) ([]*task.Record, error) {
	return s.getByStatus(ctx, task.StatusPending, 0)
}

// GetProcessing retrieves tasks with "processing" status, optionally only
// those stuck longer than olderThan.
func (s *TaskStore) GetProcessing(ctx context.Context, olderThan time.Duration) ([]*task.Record, error) {
	return s.getByStatus(ctx, task.StatusProcessing, olderThan)
}

func (s *TaskStore) getByStatus(ctx context.Context, status task.Status, olderThan time.Duration) ([]*task.Record, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := "SELECT " + taskColumns + " FROM tasks WHERE status = $1"
	args := []any{status}
	if olderThan > 0 {
		query += " AND updated_at < $2"
		args = append(args, time.Now().UTC().Add(-olderThan))
	}
	query += " ORDER BY created_at ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query tasks by status",
			"status", status,
			"error", err)
		return nil, mapError(err, "task", "list")
	}
	defer closeRows(rows, log)

	var records []*task.Record
	for rows.Next() {
		var rec task.Record
		var statusStr string
		var result, errorMessage sql.NullString

		if err := rows.Scan(
			&rec.ID,
			&rec.Type,
			&rec.Payload,
			&statusStr,
			&result,
			&errorMessage,
			&rec.Attempts,
			&rec.CreatedAt,
			&rec.UpdatedAt,
		); err != nil {
			return nil, mapError(err, "task", "list")
		}

		rec.Status = task.Status(statusStr)
		rec.Result = []byte(result.String)
		rec.ErrorMessage = errorMessage.String
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "task", "list")
	}

	return records, nil
}

// WithTx returns a new TaskStore bound to the provided transaction.
func (s *TaskStore) WithTx(tx *sql.Tx) task.Store {
	return &TaskStore{
		db:     tx,
		logger: s.logger,
	}
}
