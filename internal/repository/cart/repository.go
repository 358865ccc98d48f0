package cart

import (
	"context"

	"webshop/internal/domain"
)

// MutateFunc changes a cart in memory. Returning an error aborts the write.
type MutateFunc func(c *domain.Cart) error

type Repository interface {
	// GetByUser returns the user's cart with live products resolved on each line.
	GetByUser(ctx context.Context, userID string) (*domain.Cart, error)
	// GetOrCreate returns the user's cart, creating an empty one on first use.
	GetOrCreate(ctx context.Context, userID string) (*domain.Cart, error)
	// Mutate loads the user's cart under a row lock, applies fn and persists lines and total atomically.
	Mutate(ctx context.Context, userID string, fn MutateFunc) (*domain.Cart, error)
}
