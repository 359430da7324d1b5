package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/stackmesh/commerce-api/internal/domain"
)

// UserSortFields is the allow-list of columns a user listing may sort by.
// Sort fields are always strict: a typo'd sort would silently change
// ordering, so unknown fields are rejected with the allowed set.
var UserSortFields = []string{"email", "full_name", "created_at", "updated_at"}

// UserFilterFields is the allow-list of columns a user listing may filter by.
var UserFilterFields = []string{"email", "full_name", "is_active", "created_at"}

// UserPatch describes a partial user update. Nil fields are left unchanged.
type UserPatch struct {
	ID       uuid.UUID
	Email    *string
	FullName *string
	Password *string // plaintext; hashed by the caller before Update
	IsActive *bool
}

// UserStore defines the interface for user data persistence.
type UserStore interface {
	// Create saves a new user to the store.
	// The caller must have hashed the password already.
	// Returns ErrEmailExists if the email is already taken.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by their unique ID.
	// Returns ErrUserNotFound if the user does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)

	// GetByEmail retrieves a user by their email address.
	// The email is expected to be normalized by the caller.
	// Returns ErrUserNotFound if the user does not exist.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// List returns one page of users matching the query.
	// Filter keys outside UserFilterFields are ignored by the store; the
	// service layer decides whether unknown keys are an error.
	List(ctx context.Context, q ListQuery) (PageResult[*domain.User], error)

	// Update modifies an existing user's details.
	// The caller MUST provide a complete user object including HashedPassword.
	// Returns ErrUserNotFound if the user does not exist.
	// Returns ErrEmailExists if updating to an email that already exists.
	Update(ctx context.Context, user *domain.User) error

	// Delete removes a user from the store by their ID.
	// Returns ErrUserNotFound if the user does not exist.
	// This operation is permanent and cannot be undone.
	Delete(ctx context.Context, id uuid.UUID) error

	// Count returns the number of users matching the filters.
	Count(ctx context.Context, filters Filters) (int, error)

	// Exists reports whether a user with the given ID exists.
	Exists(ctx context.Context, id uuid.UUID) (bool, error)

	// WithTx returns a new UserStore instance that uses the provided transaction.
	// The transaction should be created and managed by the caller (typically a service).
	WithTx(tx *sql.Tx) UserStore
}
