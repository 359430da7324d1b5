package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Product validation errors.
var (
	ErrEmptyProductID   = errors.New("product ID cannot be empty")
	ErrEmptyProductName = errors.New("product name cannot be empty")
	ErrEmptySKU         = errors.New("product SKU cannot be empty")
)

// Product represents an item available for purchase.
// Stock is tracked on the product itself; order creation decrements it and
// order cancellation restores it.
type Product struct {
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

// NormalizeSKU trims surrounding whitespace and uppercases a SKU so
// lookups and uniqueness checks are case-insensitive.
func NormalizeSKU(sku string) string {
	return strings.ToUpper(strings.TrimSpace(sku))
}

// NewProduct creates a new Product with a generated ID and timestamps.
// Name, description and SKU are trimmed before validation; the SKU is
// uppercased so uniqueness checks are case-insensitive.
func NewProduct(name, description, sku string, price float64, stock int) (*Product, error) {
	now := time.Now().UTC()
	product := &Product{
		ID:          uuid.New(),
		Name:        strings.TrimSpace(name),
		Description: strings.TrimSpace(description),
		SKU:         NormalizeSKU(sku),
		Price:       price,
		Stock:       stock,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := product.Validate(); err != nil {
		return nil, err
	}

	return product, nil
}

// Validate checks if the Product has valid data.
// Returns an error if any field fails validation.
func (p *Product) Validate() error {
	if p.ID == uuid.Nil {
		return ErrEmptyProductID
	}
	if p.Name == "" {
		return ErrEmptyProductName
	}
	if p.SKU == "" {
		return ErrEmptySKU
	}
	if p.Price <= 0 {
		return ErrInvalidPrice
	}
	if p.Stock < 0 {
		return ErrInvalidStock
	}
	return nil
}
