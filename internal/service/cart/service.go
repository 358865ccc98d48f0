package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"webshop/internal/domain"
	"webshop/internal/logger"
	cartrepo "webshop/internal/repository/cart"
)

type cartRepo interface {
	GetOrCreate(ctx context.Context, userID string) (*domain.Cart, error)
	Mutate(ctx context.Context, userID string, fn cartrepo.MutateFunc) (*domain.Cart, error)
}

type productRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Product, error)
}

type Service struct {
	repo        cartRepo
	productRepo productRepo
	logger      *logger.Logger
}

func New(repo cartRepo, productRepo productRepo, log *logger.Logger) *Service {
	return &Service{repo: repo, productRepo: productRepo, logger: logger.OrNop(log).With("service", "cart")}
}

// Get returns the user's cart, creating an empty one on first access.
func (s *Service) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	return s.repo.GetOrCreate(ctx, userID)
}

// AddItem adds quantity units of a product, merging with an existing line.
func (s *Service) AddItem(ctx context.Context, userID, productID string, quantity int) (*domain.Cart, error) {
	if quantity < 1 {
		return nil, fmt.Errorf("quantity must be at least 1: %w", domain.ErrInvalidArgument)
	}
	p, err := s.product(ctx, productID)
	if err != nil {
		return nil, err
	}
	c, err := s.repo.Mutate(ctx, userID, func(c *domain.Cart) error {
		return c.AddLine(*p, quantity)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("cart item added", "user_id", userID, "product_id", p.ID, "quantity", quantity)
	return c, nil
}

// UpdateQuantity overwrites the quantity of a line already in the cart.
func (s *Service) UpdateQuantity(ctx context.Context, userID, productID string, quantity int) (*domain.Cart, error) {
	if quantity < 1 {
		return nil, fmt.Errorf("quantity must be at least 1: %w", domain.ErrInvalidArgument)
	}
	p, err := s.product(ctx, productID)
	if err != nil {
		return nil, err
	}
	return s.repo.Mutate(ctx, userID, func(c *domain.Cart) error {
		return c.SetQuantity(*p, quantity)
	})
}

// RemoveItem drops a product from the cart. Removing an absent product succeeds.
func (s *Service) RemoveItem(ctx context.Context, userID, productID string) (*domain.Cart, error) {
	productID = strings.TrimSpace(productID)
	return s.repo.Mutate(ctx, userID, func(c *domain.Cart) error {
		c.RemoveLine(productID)
		return nil
	})
}

func (s *Service) Clear(ctx context.Context, userID string) (*domain.Cart, error) {
	return s.repo.Mutate(ctx, userID, func(c *domain.Cart) error {
		c.Clear()
		return nil
	})
}

func (s *Service) product(ctx context.Context, productID string) (*domain.Product, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, fmt.Errorf("productId required: %w", domain.ErrInvalidArgument)
	}
	p, err := s.productRepo.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("product not found: %w", domain.ErrNotFound)
		}
		return nil, err
	}
	return p, nil
}
