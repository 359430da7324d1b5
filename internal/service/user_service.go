package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/stackmesh/commerce-api/internal/domain"
	"github.com/stackmesh/commerce-api/internal/platform/logger"
	"github.com/stackmesh/commerce-api/internal/service/auth"
	"github.com/stackmesh/commerce-api/internal/store"
	"github.com/stackmesh/commerce-api/internal/task"
)

// TokenPair is the result of a successful authentication.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// TaskDispatcher is the subset of the task dispatcher the services use.
// Defined here so services can be tested with a fake.
type TaskDispatcher interface {
	Submit(ctx context.Context, name string, payload any) (uuid.UUID, error)
	SubmitTx(ctx context.Context, tx *sql.Tx, name string, payload any) (uuid.UUID, func(), error)
}

// UserService implements account lifecycle and authentication.
type UserService struct {
	db       *sql.DB
	users    store.UserStore
	hasher   auth.PasswordHasher
	verifier auth.PasswordVerifier
	jwt      auth.JWTService
	tasks    TaskDispatcher
	policy   ListingPolicy
	logger   *slog.Logger
}

// NewUserService creates a UserService with its dependencies.
func NewUserService(
	db *sql.DB,
	users store.UserStore,
	hasher auth.PasswordHasher,
	verifier auth.PasswordVerifier,
	jwtService auth.JWTService,
	tasks TaskDispatcher,
	policy ListingPolicy,
	log *slog.Logger,
) *UserService {
	return &UserService{
		db:       db,
		users:    users,
		hasher:   hasher,
		verifier: verifier,
		jwt:      jwtService,
		tasks:    tasks,
		policy:   policy,
		logger:   log.With(slog.String("component", "user_service")),
	}
}

// Register creates a new account. The email is normalized before the
// uniqueness check, the password is hashed, and a welcome email task is
// persisted in the same transaction as the user row.
func (s *UserService) Register(ctx context.Context, email, password, fullName string) (*domain.User, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	user, err := domain.NewUser(email, password, fullName)
	if err != nil {
		return nil, userValidationError(err)
	}

	hash, err := s.hasher.Hash(ctx, user.Password)
	if err != nil {
		return nil, NewInternalError(fmt.Errorf("failed to hash password: %w", err))
	}
	user.HashedPassword = hash
	user.Password = ""

	var enqueue func()
	err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		if err := s.users.WithTx(tx).Create(ctx, user); err != nil {
			return err
		}

		_, fn, err := s.tasks.SubmitTx(ctx, tx, task.TypeWelcomeEmail, task.WelcomeEmailPayload{
			UserID:   user.ID,
			Email:    user.Email,
			FullName: user.FullName,
		})
		if err != nil {
			return err
		}
		enqueue = fn
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrEmailExists) {
			return nil, NewConflictError("email is already registered", err)
		}
		log.Error("failed to register user", "error", err)
		return nil, NewExternalError("failed to create user", err)
	}
	enqueue()

	log.Info("user registered", "user_id", user.ID)
	return user, nil
}

// Login authenticates by email and password and returns a token pair.
// Unknown email and wrong password return the same error so the endpoint
// cannot be used to probe for accounts.
func (s *UserService) Login(ctx context.Context, email, password string) (*domain.User, *TokenPair, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	user, err := s.users.GetByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, nil, NewUnauthorizedError("invalid email or password")
		}
		return nil, nil, NewExternalError("failed to look up user", err)
	}

	if !user.IsActive {
		return nil, nil, NewUnauthorizedError("account is disabled")
	}

	if err := s.verifier.Verify(ctx, password, user.HashedPassword); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, nil, NewUnauthorizedError("invalid email or password")
		}
		return nil, nil, NewInternalError(err)
	}

	pair, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, nil, err
	}

	log.Info("user logged in", "user_id", user.ID)
	return user, pair, nil
}

// Refresh exchanges a valid refresh token for a fresh token pair.
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.jwt.ValidateRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, NewUnauthorizedError("invalid refresh token")
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, NewUnauthorizedError("invalid refresh token")
		}
		return nil, NewExternalError("failed to look up user", err)
	}
	if !user.IsActive {
		return nil, NewUnauthorizedError("account is disabled")
	}

	return s.issueTokens(ctx, user)
}

func (s *UserService) issueTokens(ctx context.Context, user *domain.User) (*TokenPair, error) {
	access, err := s.jwt.GenerateToken(ctx, user.ID, user.Email)
	if err != nil {
		return nil, NewInternalError(fmt.Errorf("failed to generate access token: %w", err))
	}
	refresh, err := s.jwt.GenerateRefreshToken(ctx, user.ID, user.Email)
	if err != nil {
		return nil, NewInternalError(fmt.Errorf("failed to generate refresh token: %w", err))
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// GetByID returns a single user.
func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, NewNotFoundError("user", err)
		}
		return nil, NewExternalError("failed to get user", err)
	}
	return user, nil
}

// List returns one page of users after normalizing the listing input.
func (s *UserService) List(ctx context.Context, opts ListOptions) (store.PageResult[*domain.User], error) {
	q, err := buildListQuery(opts, s.policy, store.UserSortFields, store.UserFilterFields, nil)
	if err != nil {
		return store.PageResult[*domain.User]{}, err
	}

	result, err := s.users.List(ctx, q)
	if err != nil {
		return store.PageResult[*domain.User]{}, NewExternalError("failed to list users", err)
	}
	return result, nil
}

// Update applies a partial update to a user. A changed email is
// normalized and re-checked for uniqueness; a changed password is
// validated and re-hashed.
func (s *UserService) Update(ctx context.Context, patch store.UserPatch) (*domain.User, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	user, err := s.users.GetByID(ctx, patch.ID)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, NewNotFoundError("user", err)
		}
		return nil, NewExternalError("failed to get user", err)
	}

	if patch.Email != nil {
		user.Email = domain.NormalizeEmail(*patch.Email)
	}
	if patch.FullName != nil {
		user.FullName = *patch.FullName
	}
	if patch.IsActive != nil {
		user.IsActive = *patch.IsActive
	}
	if patch.Password != nil {
		if err := domain.ValidatePassword(*patch.Password); err != nil {
			return nil, NewFieldError("password", err.Error())
		}
		hash, err := s.hasher.Hash(ctx, *patch.Password)
		if err != nil {
			return nil, NewInternalError(fmt.Errorf("failed to hash password: %w", err))
		}
		user.HashedPassword = hash
	}

	if err := user.Validate(); err != nil {
		return nil, userValidationError(err)
	}

	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, store.ErrEmailExists) {
			return nil, NewConflictError("email is already registered", err)
		}
		if store.IsNotFoundError(err) {
			return nil, NewNotFoundError("user", err)
		}
		log.Error("failed to update user", "user_id", patch.ID, "error", err)
		return nil, NewExternalError("failed to update user", err)
	}

	return user, nil
}

// Delete permanently removes a user account.
func (s *UserService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.users.Delete(ctx, id); err != nil {
		if store.IsNotFoundError(err) {
			return NewNotFoundError("user", err)
		}
		return NewExternalError("failed to delete user", err)
	}

	s.logger.Info("user deleted", "user_id", id)
	return nil
}

// userValidationError maps domain validation errors to service
// validation errors keyed by field.
func userValidationError(err error) error {
	switch {
	case errors.Is(err, domain.ErrEmptyEmail), errors.Is(err, domain.ErrInvalidEmail):
		return NewFieldError("email", err.Error())
	case errors.Is(err, domain.ErrEmptyFullName):
		return NewFieldError("full_name", err.Error())
	case errors.Is(err, domain.ErrEmptyPassword),
		errors.Is(err, domain.ErrPasswordTooShort),
		errors.Is(err, domain.ErrPasswordTooLong),
		errors.Is(err, domain.ErrPasswordTooWeak):
		return NewFieldError("password", err.Error())
	default:
		return NewFieldError("user", err.Error())
	}
}
