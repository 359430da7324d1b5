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
	"github.com/stackmesh/commerce-api/internal/store"
	"github.com/stackmesh/commerce-api/internal/task"
)

// OrderItemInput is one line of an order creation request.
type OrderItemInput struct {
	ProductID uuid.UUID
	Quantity  int
}

// OrderService implements order processing: creation with atomic stock
// reservation, the status state machine, and cancellation with restock.
type OrderService struct {
	db       *sql.DB
	orders   store.OrderStore
	products store.ProductStore
	users    store.UserStore
	tasks    TaskDispatcher
	policy   ListingPolicy
	logger   *slog.Logger
}

// NewOrderService creates an OrderService with its dependencies.
func NewOrderService(
	db *sql.DB,
	orders store.OrderStore,
	products store.ProductStore,
	users store.UserStore,
	tasks TaskDispatcher,
	policy ListingPolicy,
	log *slog.Logger,
) *OrderService {
	return &OrderService{
		db:       db,
		orders:   orders,
		products: products,
		users:    users,
		tasks:    tasks,
		policy:   policy,
		logger:   log.With(slog.String("component", "order_service")),
	}
}

// Create places a new order for the user. Within one transaction it
// captures current prices, decrements stock for every line and inserts
// the order; any failure (unknown product, inactive product, not enough
// stock) rolls the whole order back. The confirmation email and invoice
// tasks are persisted in the same transaction and enqueued after commit.
func (s *OrderService) Create(ctx context.Context, userID uuid.UUID, items []OrderItemInput) (*domain.Order, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if len(items) == 0 {
		return nil, NewFieldError("items", "order must contain at least one item")
	}
	fields := make(map[string]string)
	for i, item := range items {
		if item.ProductID == uuid.Nil {
			fields[fmt.Sprintf("items[%d].product_id", i)] = "product_id is required"
		}
		if item.Quantity < 1 {
			fields[fmt.Sprintf("items[%d].quantity", i)] = "quantity must be at least one"
		}
	}
	if len(fields) > 0 {
		return nil, NewValidationError(fields)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, NewNotFoundError("user", err)
		}
		return nil, NewExternalError("failed to look up user", err)
	}

	var order *domain.Order
	var enqueueFns []func()
	err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		products := s.products.WithTx(tx)

		orderItems := make([]domain.OrderItem, 0, len(items))
		invoiceItems := make([]task.InvoiceItem, 0, len(items))
		for i, item := range items {
			product, err := products.GetByID(ctx, item.ProductID)
			if err != nil {
				if store.IsNotFoundError(err) {
					return NewFieldError(fmt.Sprintf("items[%d].product_id", i), "product not found")
				}
				return err
			}
			if !product.IsActive {
				return NewFieldError(fmt.Sprintf("items[%d].product_id", i), "product is not available")
			}

			// The conditional update reserves stock atomically; concurrent
			// orders cannot both take the last unit.
			if err := products.AdjustStock(ctx, item.ProductID, -item.Quantity); err != nil {
				if errors.Is(err, store.ErrInvalidEntity) {
					return NewBusinessRuleError(
						fmt.Sprintf("insufficient stock for product %s", product.SKU), err)
				}
				return err
			}

			orderItems = append(orderItems, domain.OrderItem{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				UnitPrice: product.Price,
			})
			invoiceItems = append(invoiceItems, task.InvoiceItem{
				Name:      product.Name,
				Quantity:  item.Quantity,
				UnitPrice: product.Price,
			})
		}

		var err error
		order, err = domain.NewOrder(userID, orderItems)
		if err != nil {
			return orderValidationError(err)
		}

		if err := s.orders.WithTx(tx).Create(ctx, order); err != nil {
			return err
		}

		_, confirmFn, err := s.tasks.SubmitTx(ctx, tx, task.TypeOrderConfirmation, task.OrderConfirmationPayload{
			OrderID:     order.ID,
			UserID:      userID,
			Email:       user.Email,
			TotalAmount: order.TotalAmount,
		})
		if err != nil {
			return err
		}

		_, invoiceFn, err := s.tasks.SubmitTx(ctx, tx, task.TypeOrderInvoice, task.InvoicePayload{
			OrderID:     order.ID,
			Email:       user.Email,
			FullName:    user.FullName,
			Items:       invoiceItems,
			TotalAmount: order.TotalAmount,
		})
		if err != nil {
			return err
		}

		enqueueFns = append(enqueueFns, confirmFn, invoiceFn)
		return nil
	})
	if err != nil {
		if _, ok := AsServiceError(err); ok {
			return nil, err
		}
		log.Error("failed to create order", "user_id", userID, "error", err)
		return nil, NewExternalError("failed to create order", err)
	}
	for _, fn := range enqueueFns {
		fn()
	}

	log.Info("order created",
		"order_id", order.ID,
		"user_id", userID,
		"total_amount", order.TotalAmount)
	return order, nil
}

// GetByID returns an order with its items. The order must belong to the
// calling user.
func (s *OrderService) GetByID(ctx context.Context, id, callerID uuid.UUID) (*domain.Order, error) {
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, NewNotFoundError("order", err)
		}
		return nil, NewExternalError("failed to get order", err)
	}
	if order.UserID != callerID {
		return nil, NewForbiddenError("order belongs to another user")
	}
	return order, nil
}

// List returns one page of orders without items.
func (s *OrderService) List(ctx context.Context, opts ListOptions) (store.PageResult[*domain.Order], error) {
	q, err := buildListQuery(opts, s.policy, store.OrderSortFields, store.OrderFilterFields, nil)
	if err != nil {
		return store.PageResult[*domain.Order]{}, err
	}

	result, err := s.orders.List(ctx, q)
	if err != nil {
		return store.PageResult[*domain.Order]{}, NewExternalError("failed to list orders", err)
	}
	return result, nil
}

// ListForUser returns one page of the given user's orders.
func (s *OrderService) ListForUser(ctx context.Context, userID uuid.UUID, opts ListOptions) (store.PageResult[*domain.Order], error) {
	opts.Filters = opts.Filters.Clone()
	opts.Filters["user_id"] = userID
	return s.List(ctx, opts)
}

// UpdateStatus moves the caller's order to the target status if the state
// machine allows it. Cancellation goes through Cancel, which also restocks.
func (s *OrderService) UpdateStatus(ctx context.Context, id, callerID uuid.UUID, target domain.OrderStatus) (*domain.Order, error) {
	if target == domain.OrderStatusCancelled {
		return s.Cancel(ctx, id, callerID)
	}

	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, NewNotFoundError("order", err)
		}
		return nil, NewExternalError("failed to get order", err)
	}
	if order.UserID != callerID {
		return nil, NewForbiddenError("order belongs to another user")
	}

	if err := order.TransitionTo(target); err != nil {
		if errors.Is(err, domain.ErrInvalidOrderStatus) {
			return nil, NewFieldError("status", err.Error())
		}
		return nil, NewBusinessRuleError(err.Error(), err)
	}

	if err := s.orders.UpdateStatus(ctx, id, target); err != nil {
		if store.IsNotFoundError(err) {
			return nil, NewNotFoundError("order", err)
		}
		return nil, NewExternalError("failed to update order status", err)
	}

	s.logger.Info("order status updated", "order_id", id, "status", target)
	return order, nil
}

// Cancel cancels a pending or paid order of the calling user and restores
// the reserved stock in the same transaction. Shipped and delivered orders
// cannot be cancelled; their stock is left untouched.
func (s *OrderService) Cancel(ctx context.Context, id, callerID uuid.UUID) (*domain.Order, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, NewNotFoundError("order", err)
		}
		return nil, NewExternalError("failed to get order", err)
	}
	if order.UserID != callerID {
		return nil, NewForbiddenError("order belongs to another user")
	}

	// Check the transition before touching stock. A shipped order must
	// come back unchanged, not cancelled with restocked inventory.
	if err := order.TransitionTo(domain.OrderStatusCancelled); err != nil {
		return nil, NewBusinessRuleError(
			fmt.Sprintf("order in status %q cannot be cancelled", order.Status), err)
	}

	err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		if err := s.orders.WithTx(tx).UpdateStatus(ctx, id, domain.OrderStatusCancelled); err != nil {
			return err
		}

		products := s.products.WithTx(tx)
		for _, item := range order.Items {
			if err := products.AdjustStock(ctx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Error("failed to cancel order", "order_id", id, "error", err)
		return nil, NewExternalError("failed to cancel order", err)
	}

	log.Info("order cancelled", "order_id", id)
	return order, nil
}

// orderValidationError maps domain validation errors to service
// validation errors keyed by field.
func orderValidationError(err error) error {
	switch {
	case errors.Is(err, domain.ErrEmptyOrder):
		return NewFieldError("items", err.Error())
	case errors.Is(err, domain.ErrInvalidQuantity):
		return NewFieldError("quantity", err.Error())
	case errors.Is(err, domain.ErrInvalidPrice):
		return NewFieldError("unit_price", err.Error())
	default:
		return NewFieldError("order", err.Error())
	}
}
