package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/stackmesh/commerce-api/internal/domain"
)

// OrderSortFields is the allow-list of columns an order listing may sort by.
var OrderSortFields = []string{"status", "total_amount", "created_at", "updated_at"}

// OrderFilterFields is the allow-list of columns an order listing may filter by.
var OrderFilterFields = []string{"user_id", "status", "created_at"}

// OrderStore defines the interface for order data persistence.
type OrderStore interface {
	// Create saves a new order and its items.
	// Returns ErrInvalidEntity if the user or a product does not exist.
	Create(ctx context.Context, order *domain.Order) error

	// GetByID retrieves an order with its items.
	// Returns ErrOrderNotFound if the order does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)

	// List returns one page of orders matching the query. Items are not
	// loaded for listings.
	List(ctx context.Context, q ListQuery) (PageResult[*domain.Order], error)

	// UpdateStatus sets the order's status. The caller is responsible for
	// checking the transition against the order state machine first.
	// Returns ErrOrderNotFound if the order does not exist.
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) error

	// Count returns the number of orders matching the filters.
	Count(ctx context.Context, filters Filters) (int, error)

	// WithTx returns a new OrderStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) OrderStore
}
