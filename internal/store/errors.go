package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
//
// The taxonomy deliberately keeps the underlying cause distinguishable:
// a unique-constraint violation (ErrConflict), a missing row (ErrNotFound),
// a broken connection (ErrUnavailable) and a cancelled statement
// (ErrTimeout) are different failures and the service layer reacts to them
// differently.
var (
	// ErrNotFound is returned when a requested entity does not exist in the
	// store. This is the generic version of the entity-specific not found
	// errors (e.g., ErrUserNotFound, ErrProductNotFound).
	ErrNotFound = errors.New("entity not found")

	// ErrConflict is returned when an operation would violate a uniqueness
	// constraint (e.g., a user with the same email).
	ErrConflict = errors.New("entity already exists")

	// ErrInvalidEntity is returned when an entity fails validation before
	// being stored, or references a row that does not exist (foreign key
	// violation). Check the wrapped error for details.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrUnavailable is returned when the store cannot be reached, for
	// example because the connection was refused or dropped.
	ErrUnavailable = errors.New("store unavailable")

	// ErrTimeout is returned when a statement was cancelled because it
	// exceeded its deadline.
	ErrTimeout = errors.New("store operation timed out")

	// ErrTransactionFailed is returned when a database transaction fails
	// to commit or when an operation within a transaction fails.
	ErrTransactionFailed = errors.New("transaction failed")

	// Entity-specific "not found" errors

	// ErrUserNotFound indicates that the requested user does not exist in the store.
	ErrUserNotFound = fmt.Errorf("%w: user", ErrNotFound)

	// ErrProductNotFound indicates that the requested product does not exist in the store.
	ErrProductNotFound = fmt.Errorf("%w: product", ErrNotFound)

	// ErrOrderNotFound indicates that the requested order does not exist in the store.
	ErrOrderNotFound = fmt.Errorf("%w: order", ErrNotFound)

	// ErrTaskNotFound indicates that the requested background task does not exist in the store.
	ErrTaskNotFound = fmt.Errorf("%w: task", ErrNotFound)

	// Entity-specific "conflict" errors

	// ErrEmailExists indicates that a user with the given email already exists.
	ErrEmailExists = fmt.Errorf("%w: email", ErrConflict)

	// ErrSKUExists indicates that a product with the given SKU already exists.
	ErrSKUExists = fmt.Errorf("%w: sku", ErrConflict)
)

// IsNotFoundError checks if the error is any kind of "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflictError checks if the error is any kind of uniqueness conflict.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsTransientError reports whether the error is worth retrying: the store
// was unreachable or the statement timed out, as opposed to the data being
// wrong.
func IsTransientError(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, ErrTimeout)
}

// StoreError is a custom error type for store-specific errors with
// additional context.
type StoreError struct {
	Entity    string // The entity type (e.g., "user", "product")
	Operation string // The operation that failed (e.g., "create", "update")
	Message   string // Error message
	Err       error  // Original error
}

// Error implements the error interface for StoreError.
func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf(
			"%s operation on %s failed: %s: %v",
			e.Operation,
			e.Entity,
			e.Message,
			e.Err,
		)
	}
	return fmt.Sprintf("%s operation on %s failed: %s", e.Operation, e.Entity, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError with the given entity, operation,
// message, and wrapped error.
func NewStoreError(entity, operation, message string, err error) *StoreError {
	return &StoreError{
		Entity:    entity,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
