package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists indicates a uniqueness constraint was violated.
	ErrAlreadyExists = errors.New("already exists")
	// ErrInsufficientStock indicates a requested quantity exceeds available stock.
	ErrInsufficientStock = errors.New("not enough stock available")
	// ErrInvalidArgument indicates malformed or out-of-range caller input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInvalidState indicates the operation is not allowed in the entity's current state.
	ErrInvalidState = errors.New("invalid state")
	// ErrUnauthorized indicates missing or invalid credentials.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden indicates the caller may not act on the resource.
	ErrForbidden = errors.New("forbidden")
)

// InsufficientStockError names the product whose stock could not cover a request.
type InsufficientStockError struct {
	ProductID   string
	ProductName string
	Requested   int
	Available   int
}

func (e *InsufficientStockError) Error() string {
	if e.ProductName == "" {
		return ErrInsufficientStock.Error()
	}
	return fmt.Sprintf("Not enough stock for %s", e.ProductName)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }
