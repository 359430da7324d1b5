package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/stackmesh/commerce-api/internal/domain"
	"github.com/stackmesh/commerce-api/internal/platform/logger"
	"github.com/stackmesh/commerce-api/internal/store"
)

// UserStore implements the store.UserStore interface using a PostgreSQL
// database as the storage backend.
type UserStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewUserStore creates a new PostgreSQL implementation of the UserStore
// interface. It accepts a database connection or transaction that should be
// initialized and managed by the caller.
func NewUserStore(db store.DBTX, logger *slog.Logger) *UserStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &UserStore{
		db:     db,
		logger: logger.With(slog.String("component", "user_store")),
	}
}

// Ensure UserStore implements store.UserStore interface
var _ store.UserStore = (*UserStore)(nil)

const userColumns = "id, email, full_name, hashed_password, is_active, created_at, updated_at"

// Create implements store.UserStore.Create
func (s *UserStore) Create(ctx context.Context, user *domain.User) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := user.Validate(); err != nil {
		log.Warn("user validation failed during create",
			slog.String("error", err.Error()),
			slog.String("user_id", user.ID.String()))
		return err
	}

	query := `
		INSERT INTO users (id, email, full_name, hashed_password, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		user.ID,
		user.Email,
		user.FullName,
		user.HashedPassword,
		user.IsActive,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		mapped := mapError(err, "user", "create")
		if errors.Is(mapped, store.ErrConflict) {
			log.Debug("duplicate email during user creation",
				slog.String("user_id", user.ID.String()))
			return store.ErrEmailExists
		}
		log.Error("failed to create user",
			slog.String("error", err.Error()),
			slog.String("user_id", user.ID.String()))
		return mapped
	}

	log.Info("user created",
		slog.String("user_id", user.ID.String()))
	return nil
}

// GetByID implements store.UserStore.GetByID
func (s *UserStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE id = $1"
	return s.scanUser(ctx, s.db.QueryRowContext(ctx, query, id))
}

// GetByEmail implements store.UserStore.GetByEmail
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE email = $1"
	return s.scanUser(ctx, s.db.QueryRowContext(ctx, query, email))
}

func (s *UserStore) scanUser(ctx context.Context, row *sql.Row) (*domain.User, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var user domain.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.FullName,
		&user.HashedPassword,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrUserNotFound
		}
		log.Error("failed to scan user row", slog.String("error", err.Error()))
		return nil, mapError(err, "user", "get")
	}
	return &user, nil
}

// List implements store.UserStore.List
func (s *UserStore) List(ctx context.Context, q store.ListQuery) (store.PageResult[*domain.User], error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var empty store.PageResult[*domain.User]

	b := &queryBuilder{}
	b.applyFilters(q.Filters, store.UserFilterFields)
	b.applySearch(q.Search, q.SearchFields)
	where := b.whereClause()

	var total int
	countQuery := "SELECT COUNT(*) FROM users" + where
	if err := s.db.QueryRowContext(ctx, countQuery, b.args...).Scan(&total); err != nil {
		log.Error("failed to count users", slog.String("error", err.Error()))
		return empty, mapError(err, "user", "count")
	}

	listQuery := "SELECT " + userColumns + " FROM users" + where +
		orderClause(q.SortBy, q.SortDesc, store.UserSortFields, "created_at") +
		b.limitOffset(q.Page)

	rows, err := s.db.QueryContext(ctx, listQuery, b.args...)
	if err != nil {
		log.Error("failed to list users", slog.String("error", err.Error()))
		return empty, mapError(err, "user", "list")
	}
	defer closeRows(rows, log)

	var users []*domain.User
	for rows.Next() {
		var user domain.User
		if err := rows.Scan(
			&user.ID,
			&user.Email,
			&user.FullName,
			&user.HashedPassword,
			&user.IsActive,
			&user.CreatedAt,
			&user.UpdatedAt,
		); err != nil {
			log.Error("failed to scan user row", slog.String("error", err.Error()))
			return empty, mapError(err, "user", "list")
		}
		users = append(users, &user)
	}
	if err := rows.Err(); err != nil {
		return empty, mapError(err, "user", "list")
	}

	return store.NewPageResult(users, total, q.Page), nil
}

// Update implements store.UserStore.Update
func (s *UserStore) Update(ctx context.Context, user *domain.User) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := user.Validate(); err != nil {
		log.Warn("user validation failed during update",
			slog.String("error", err.Error()),
			slog.String("user_id", user.ID.String()))
		return err
	}

	user.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE users
		SET email = $1, full_name = $2, hashed_password = $3, is_active = $4, updated_at = $5
		WHERE id = $6
	`
	result, err := s.db.ExecContext(
		ctx,
		query,
		user.Email,
		user.FullName,
		user.HashedPassword,
		user.IsActive,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		mapped := mapError(err, "user", "update")
		if errors.Is(mapped, store.ErrConflict) {
			return store.ErrEmailExists
		}
		log.Error("failed to update user",
			slog.String("error", err.Error()),
			slog.String("user_id", user.ID.String()))
		return mapped
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return mapError(err, "user", "update")
	}
	if rowsAffected == 0 {
		return store.ErrUserNotFound
	}

	log.Info("user updated", slog.String("user_id", user.ID.String()))
	return nil
}

// Delete implements store.UserStore.Delete
func (s *UserStore) Delete(ctx context.Context, id uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx, "DELETE FROM users WHERE id = $1", id)
	if err != nil {
		log.Error("failed to delete user",
			slog.String("error", err.Error()),
			slog.String("user_id", id.String()))
		return mapError(err, "user", "delete")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return mapError(err, "user", "delete")
	}
	if rowsAffected == 0 {
		return store.ErrUserNotFound
	}

	log.Info("user deleted", slog.String("user_id", id.String()))
	return nil
}

// Count implements store.UserStore.Count
func (s *UserStore) Count(ctx context.Context, filters store.Filters) (int, error) {
	b := &queryBuilder{}
	b.applyFilters(filters, store.UserFilterFields)

	var total int
	query := "SELECT COUNT(*) FROM users" + b.whereClause()
	if err := s.db.QueryRowContext(ctx, query, b.args...).Scan(&total); err != nil {
		return 0, mapError(err, "user", "count")
	}
	return total, nil
}

// Exists implements store.UserStore.Exists
func (s *UserStore) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	query := "SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)"
	if err := s.db.QueryRowContext(ctx, query, id).Scan(&exists); err != nil {
		return false, mapError(err, "user", "exists")
	}
	return exists, nil
}

// WithTx implements store.UserStore.WithTx
func (s *UserStore) WithTx(tx *sql.Tx) store.UserStore {
	return &UserStore{
		db:     tx,
		logger: s.logger,
	}
}

// closeRows closes a result set, logging failures instead of returning
// them since the scan error (if any) is the one the caller cares about.
func closeRows(rows *sql.Rows, log *slog.Logger) {
	if err := rows.Close(); err != nil {
		log.Error("failed to close rows", slog.String("error", err.Error()))
	}
}
