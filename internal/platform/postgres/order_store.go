package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stackmesh/commerce-api/internal/domain"
	"github.com/stackmesh/commerce-api/internal/platform/logger"
	"github.com/stackmesh/commerce-api/internal/store"
)

// OrderStore implements the store.OrderStore interface using a PostgreSQL
// database as the storage backend.
type OrderStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewOrderStore creates a new PostgreSQL implementation of the OrderStore
// interface.
func NewOrderStore(db store.DBTX, logger *slog.Logger) *OrderStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &OrderStore{
		db:     db,
		logger: logger.With(slog.String("component", "order_store")),
	}
}

// Ensure OrderStore implements store.OrderStore interface
var _ store.OrderStore = (*OrderStore)(nil)

const orderColumns = "id, user_id, status, total_amount, is_active, created_at, updated_at"

// Create implements store.OrderStore.Create
// The order row and its item rows are inserted together; run this inside a
// transaction so the whole order is atomic.
func (s *OrderStore) Create(ctx context.Context, order *domain.Order) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := order.Validate(); err != nil {
		log.Warn("order validation failed during create",
			slog.String("error", err.Error()),
			slog.String("order_id", order.ID.String()))
		return err
	}

	orderQuery := `
		INSERT INTO orders (id, user_id, status, total_amount, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(
		ctx,
		orderQuery,
		order.ID,
		order.UserID,
		order.Status,
		order.TotalAmount,
		order.IsActive,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to create order",
			slog.String("error", err.Error()),
			slog.String("order_id", order.ID.String()))
		return mapError(err, "order", "create")
	}

	var args []any
	var rowsSQL []string
	for _, item := range order.Items {
		base := len(args)
		args = append(args, item.ID, item.OrderID, item.ProductID, item.Quantity, item.UnitPrice)
		rowsSQL = append(rowsSQL, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5))
	}

	itemQuery := `
		INSERT INTO order_items (id, order_id, product_id, quantity, unit_price)
		VALUES ` + strings.Join(rowsSQL, ", ")

	if _, err := s.db.ExecContext(ctx, itemQuery, args...); err != nil {
		log.Error("failed to create order items",
			slog.String("error", err.Error()),
			slog.String("order_id", order.ID.String()))
		return mapError(err, "order_item", "create")
	}

	log.Info("order created",
		slog.String("order_id", order.ID.String()),
		slog.String("user_id", order.UserID.String()),
		slog.Int("item_count", len(order.Items)))
	return nil
}

// GetByID implements store.OrderStore.GetByID
func (s *OrderStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := "SELECT " + orderColumns + " FROM orders WHERE id = $1"

	var order domain.Order
	var status string
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&order.ID,
		&order.UserID,
		&status,
		&order.TotalAmount,
		&order.IsActive,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrOrderNotFound
		}
		log.Error("failed to get order by ID",
			slog.String("error", err.Error()),
			slog.String("order_id", id.String()))
		return nil, mapError(err, "order", "get")
	}
	order.Status = domain.OrderStatus(status)

	items, err := s.loadItems(ctx, id)
	if err != nil {
		return nil, err
	}
	order.Items = items

	return &order, nil
}

// loadItems fetches the line items for one order.
func (s *OrderStore) loadItems(ctx context.Context, orderID uuid.UUID) ([]domain.OrderItem, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, order_id, product_id, quantity, unit_price
		FROM order_items
		WHERE order_id = $1
		ORDER BY id
	`
	rows, err := s.db.QueryContext(ctx, query, orderID)
	if err != nil {
		log.Error("failed to load order items",
			slog.String("error", err.Error()),
			slog.String("order_id", orderID.String()))
		return nil, mapError(err, "order_item", "list")
	}
	defer closeRows(rows, log)

	var items []domain.OrderItem
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.Quantity,
			&item.UnitPrice,
		); err != nil {
			return nil, mapError(err, "order_item", "list")
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "order_item", "list")
	}

	return items, nil
}

// List implements store.OrderStore.List
// Items are not loaded for listings.
func (s *OrderStore) List(ctx context.Context, q store.ListQuery) (store.PageResult[*domain.Order], error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var empty store.PageResult[*domain.Order]

	b := &queryBuilder{}
	b.applyFilters(q.Filters, store.OrderFilterFields)
	where := b.whereClause()

	var total int
	countQuery := "SELECT COUNT(*) FROM orders" + where
	if err := s.db.QueryRowContext(ctx, countQuery, b.args...).Scan(&total); err != nil {
		log.Error("failed to count orders", slog.String("error", err.Error()))
		return empty, mapError(err, "order", "count")
	}

	listQuery := "SELECT " + orderColumns + " FROM orders" + where +
		orderClause(q.SortBy, q.SortDesc, store.OrderSortFields, "created_at") +
		b.limitOffset(q.Page)

	rows, err := s.db.QueryContext(ctx, listQuery, b.args...)
	if err != nil {
		log.Error("failed to list orders", slog.String("error", err.Error()))
		return empty, mapError(err, "order", "list")
	}
	defer closeRows(rows, log)

	var orders []*domain.Order
	for rows.Next() {
		var order domain.Order
		var status string
		if err := rows.Scan(
			&order.ID,
			&order.UserID,
			&status,
			&order.TotalAmount,
			&order.IsActive,
			&order.CreatedAt,
			&order.UpdatedAt,
		); err != nil {
			return empty, mapError(err, "order", "list")
		}
		order.Status = domain.OrderStatus(status)
		orders = append(orders, &order)
	}
	if err := rows.Err(); err != nil {
		return empty, mapError(err, "order", "list")
	}

	return store.NewPageResult(orders, total, q.Page), nil
}

// UpdateStatus implements store.OrderStore.UpdateStatus
func (s *OrderStore) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if !status.IsValid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidOrderStatus, status)
	}

	query := "UPDATE orders SET status = $1, updated_at = $2 WHERE id = $3"
	result, err := s.db.ExecContext(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		log.Error("failed to update order status",
			slog.String("error", err.Error()),
			slog.String("order_id", id.String()),
			slog.String("status", string(status)))
		return mapError(err, "order", "update_status")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return mapError(err, "order", "update_status")
	}
	if rowsAffected == 0 {
		return store.ErrOrderNotFound
	}

	log.Info("order status updated",
		slog.String("order_id", id.String()),
		slog.String("status", string(status)))
	return nil
}

// Count implements store.OrderStore.Count
func (s *OrderStore) Count(ctx context.Context, filters store.Filters) (int, error) {
	b := &queryBuilder{}
	b.applyFilters(filters, store.OrderFilterFields)

	var total int
	query := "SELECT COUNT(*) FROM orders" + b.whereClause()
	if err := s.db.QueryRowContext(ctx, query, b.args...).Scan(&total); err != nil {
		return 0, mapError(err, "order", "count")
	}
	return total, nil
}

// WithTx implements store.OrderStore.WithTx
func (s *OrderStore) WithTx(tx *sql.Tx) store.OrderStore {
	return &OrderStore{
		db:     tx,
		logger: s.logger,
	}
}
