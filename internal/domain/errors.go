// Package domain defines the core business entities and errors.
package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidID is returned when an ID is malformed or invalid.
	ErrInvalidID = errors.New("invalid ID")

	// ErrInvalidEmail is returned when an email address is malformed.
	ErrInvalidEmail = errors.New("invalid email format")

	// ErrInvalidPassword is returned when a password doesn't meet requirements.
	ErrInvalidPassword = errors.New("invalid password")

	// ErrInvalidPrice is returned when a product price is zero or negative.
	ErrInvalidPrice = errors.New("price must be greater than zero")

	// ErrInvalidQuantity is returned when an order item quantity is below one.
	ErrInvalidQuantity = errors.New("quantity must be at least one")

	// ErrInvalidStock is returned when a stock level is negative.
	ErrInvalidStock = errors.New("stock cannot be negative")

	// ErrInvalidOrderStatus is returned when an order status is not one of
	// the known status values.
	ErrInvalidOrderStatus = errors.New("invalid order status")

	// ErrInvalidTransition is returned when an order status change is not
	// allowed by the order state machine.
	ErrInvalidTransition = errors.New("order status transition not allowed")

	// ErrEmptyOrder is returned when an order is created without items.
	ErrEmptyOrder = errors.New("order must contain at least one item")

	// ErrUnauthorized is returned when an operation is not permitted.
	ErrUnauthorized = errors.New("unauthorized operation")
)
