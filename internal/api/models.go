package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/stackmesh/commerce-api/internal/domain"
)

// Auth request/response models.

// RegisterRequest is the payload for POST /auth/register.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	FullName string `json:"full_name" validate:"required,min=1,max=255"`
}

// LoginRequest is the payload for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest is the payload for POST /auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// TokenResponse carries a freshly issued token pair.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// User models.

// UserResponse is the public representation of a user.
type UserResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewUserResponse maps a domain user to its public representation.
func NewUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		FullName:  u.FullName,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// NewUserResponses maps a page of users.
func NewUserResponses(users []*domain.User) []UserResponse {
	out := make([]UserResponse, len(users))
	for i, u := range users {
		out[i] = NewUserResponse(u)
	}
	return out
}

// UpdateUserRequest is the payload for PATCH /users/{id}. All fields are
// optional; absent fields are left unchanged.
type UpdateUserRequest struct {
	Email    *string `json:"email,omitempty" validate:"omitempty,email"`
	FullName *string `json:"full_name,omitempty" validate:"omitempty,min=1,max=255"`
	Password *string `json:"password,omitempty" validate:"omitempty,min=8,max=72"`
	IsActive *bool   `json:"is_active,omitempty"`
}

// Product models.

// CreateProductRequest is the payload for POST /products.
type CreateProductRequest struct {
	Name        string  `json:"name" validate:"required,min=1,max=255"`
	Description string  `json:"description" validate:"max=2000"`
	SKU         string  `json:"sku" validate:"required,min=1,max=64"`
	Price       float64 `json:"price" validate:"required,gt=0"`
	Stock       int     `json:"stock" validate:"gte=0"`
}

// UpdateProductRequest is the payload for PATCH /products/{id}.
type UpdateProductRequest struct {
	Name        *string  `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Description *string  `json:"description,omitempty" validate:"omitempty,max=2000"`
	Price       *float64 `json:"price,omitempty" validate:"omitempty,gt=0"`
	Stock       *int     `json:"stock,omitempty" validate:"omitempty,gte=0"`
	IsActive    *bool    `json:"is_active,omitempty"`
}

// AdjustStockRequest is the payload for POST /products/{id}/stock.
type AdjustStockRequest struct {
	Delta int `json:"delta" validate:"required"`
}

// BatchCreateProductsRequest is the payload for POST /products/batch.
type BatchCreateProductsRequest struct {
	Products []CreateProductRequest `json:"products" validate:"required,min=1,max=100,dive"`
}

// BatchUpdateEntry is one entry of a batch update request.
type BatchUpdateEntry struct {
	ID uuid.UUID `json:"id"`
	UpdateProductRequest
}

// BatchUpdateProductsRequest is the payload for PATCH /products/batch.
type BatchUpdateProductsRequest struct {
	Products []BatchUpdateEntry `json:"products" validate:"required,min=1,max=100,dive"`
}

// BatchDeleteProductsRequest is the payload for DELETE /products/batch.
type BatchDeleteProductsRequest struct {
	IDs []uuid.UUID `json:"ids" validate:"required,min=1,max=100"`
}

// BatchCountResponse reports how many rows a batch operation touched.
type BatchCountResponse struct {
	Count int `json:"count"`
}

// ProductResponse is the public representation of a product.
type ProductResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	SKU         string    `json:"sku"`
	Price       float64   `json:"price"`
	Stock       int       `json:"stock"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewProductResponse maps a domain product to its public representation.
func NewProductResponse(p *domain.Product) ProductResponse {
	return ProductResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		SKU:         p.SKU,
		Price:       p.Price,
		Stock:       p.Stock,
		IsActive:    p.IsActive,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// NewProductResponses maps a page of products.
func NewProductResponses(products []*domain.Product) []ProductResponse {
	out := make([]ProductResponse, len(products))
	for i, p := range products {
		out[i] = NewProductResponse(p)
	}
	return out
}

// Order models.

// OrderItemRequest is one line of an order creation request.
type OrderItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,gt=0"`
}

// CreateOrderRequest is the payload for POST /orders.
type CreateOrderRequest struct {
	Items []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
}

// UpdateOrderStatusRequest is the payload for PATCH /orders/{id}/status.
type UpdateOrderStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// OrderItemResponse is the public representation of an order line.
type OrderItemResponse struct {
	ID        uuid.UUID `json:"id"`
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
	UnitPrice float64   `json:"unit_price"`
}

// OrderResponse is the public representation of an order.
type OrderResponse struct {
	ID          uuid.UUID           `json:"id"`
	UserID      uuid.UUID           `json:"user_id"`
	Status      string              `json:"status"`
	TotalAmount float64             `json:"total_amount"`
	Items       []OrderItemResponse `json:"items,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// NewOrderResponse maps a domain order to its public representation.
func NewOrderResponse(o *domain.Order) OrderResponse {
	resp := OrderResponse{
		ID:          o.ID,
		UserID:      o.UserID,
		Status:      string(o.Status),
		TotalAmount: o.TotalAmount,
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
	}
	for _, item := range o.Items {
		resp.Items = append(resp.Items, OrderItemResponse{
			ID:        item.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return resp
}

// NewOrderResponses maps a page of orders.
func NewOrderResponses(orders []*domain.Order) []OrderResponse {
	out := make([]OrderResponse, len(orders))
	for i, o := range orders {
		out[i] = NewOrderResponse(o)
	}
	return out
}

// Task models.

// TaskStatusResponse reports the state of a background task.
type TaskStatusResponse struct {
	TaskID uuid.UUID `json:"task_id"`
	Status string    `json:"status"`
	Result any       `json:"result,omitempty"`
	Error  string    `json:"error,omitempty"`
}
