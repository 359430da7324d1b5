package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OrderStatus represents the fulfilment state of an order.
type OrderStatus string

// Possible order status values.
const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Order validation errors.
var (
	ErrEmptyOrderID     = errors.New("order ID cannot be empty")
	ErrEmptyOrderUserID = errors.New("order user ID cannot be empty")
)

// orderTransitions encodes the allowed status transitions.
// Shipped and delivered orders cannot be cancelled; cancelled and delivered
// are terminal.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:   {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPaid:      {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:   {OrderStatusDelivered},
	OrderStatusDelivered: {},
	OrderStatusCancelled: {},
}

// IsValid reports whether the status is one of the known values.
func (s OrderStatus) IsValid() bool {
	_, ok := orderTransitions[s]
	return ok
}

// Order represents a customer order with its line items.
type Order struct {
	ID          uuid.UUID   `json:"id"`
	UserID      uuid.UUID   `json:"user_id"`
	Status      OrderStatus `json:"status"`
	TotalAmount float64     `json:"total_amount"`
	Items       []OrderItem `json:"items,omitempty"`
	IsActive    bool        `json:"is_active"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// OrderItem represents a single product line within an order.
// UnitPrice is the product price captured at order time.
type OrderItem struct {
	ID        uuid.UUID `json:"id"`
	OrderID   uuid.UUID `json:"order_id"`
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
	UnitPrice float64   `json:"unit_price"`
}

// NewOrder creates a new pending Order for the given user and items.
// The total amount is computed from the item quantities and unit prices.
func NewOrder(userID uuid.UUID, items []OrderItem) (*Order, error) {
	now := time.Now().UTC()
	order := &Order{
		ID:        uuid.New(),
		UserID:    userID,
		Status:    OrderStatusPending,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	for i := range items {
		items[i].ID = uuid.New()
		items[i].OrderID = order.ID
		order.TotalAmount += float64(items[i].Quantity) * items[i].UnitPrice
	}
	order.Items = items

	if err := order.Validate(); err != nil {
		return nil, err
	}

	return order, nil
}

// Validate checks if the Order has valid data.
// Returns an error if any field fails validation.
func (o *Order) Validate() error {
	if o.ID == uuid.Nil {
		return ErrEmptyOrderID
	}
	if o.UserID == uuid.Nil {
		return ErrEmptyOrderUserID
	}
	if !o.Status.IsValid() {
		return ErrInvalidOrderStatus
	}
	if len(o.Items) == 0 {
		return ErrEmptyOrder
	}
	for _, item := range o.Items {
		if item.ProductID == uuid.Nil {
			return ErrEmptyProductID
		}
		if item.Quantity < 1 {
			return ErrInvalidQuantity
		}
		if item.UnitPrice <= 0 {
			return ErrInvalidPrice
		}
	}
	return nil
}

// CanTransitionTo reports whether the order may move to the target status.
func (o *Order) CanTransitionTo(target OrderStatus) bool {
	for _, allowed := range orderTransitions[o.Status] {
		if allowed == target {
			return true
		}
	}
	return false
}

// TransitionTo moves the order to the target status, or returns
// ErrInvalidTransition (wrapped with both statuses) if the order state
// machine does not allow the change.
func (o *Order) TransitionTo(target OrderStatus) error {
	if !target.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidOrderStatus, target)
	}
	if !o.CanTransitionTo(target) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, target)
	}
	o.Status = target
	o.UpdatedAt = time.Now().UTC()
	return nil
}
