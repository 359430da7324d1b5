// Package postgres provides PostgreSQL implementations of the store
// interfaces.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stackmesh/commerce-api/internal/store"
)

// PostgreSQL error codes.
const (
	pgUniqueViolationCode     = "23505"
	pgForeignKeyViolationCode = "23503"
	pgCheckViolationCode      = "23514"
	pgQueryCanceledCode       = "57014"
	pgConnectionClassPrefix   = "08" // connection exceptions share the 08xxx class
)

// mapError translates a driver error into the store error taxonomy while
// keeping the cause distinguishable: uniqueness conflicts, missing
// references, cancelled statements and connection failures each map to
// their own sentinel so the service layer can react differently to them.
func mapError(err error, entity, operation string) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == pgUniqueViolationCode:
			return fmt.Errorf("%w: %s", constraintConflict(pgErr), pgErr.ConstraintName)
		case pgErr.Code == pgForeignKeyViolationCode:
			return fmt.Errorf("%w: %s references a missing row", store.ErrInvalidEntity, entity)
		case pgErr.Code == pgCheckViolationCode:
			return fmt.Errorf("%w: %s violates %s", store.ErrInvalidEntity, entity, pgErr.ConstraintName)
		case pgErr.Code == pgQueryCanceledCode:
			return fmt.Errorf("%w: %s %s", store.ErrTimeout, entity, operation)
		case strings.HasPrefix(pgErr.Code, pgConnectionClassPrefix):
			return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s %s", store.ErrTimeout, entity, operation)
	}

	return store.NewStoreError(entity, operation, "query failed", err)
}

// constraintConflict picks the entity-specific conflict sentinel for known
// unique constraints, falling back to the generic one.
func constraintConflict(pgErr *pgconn.PgError) error {
	switch {
	case strings.Contains(pgErr.ConstraintName, "email"):
		return store.ErrEmailExists
	case strings.Contains(pgErr.ConstraintName, "sku"):
		return store.ErrSKUExists
	default:
		return store.ErrConflict
	}
}
