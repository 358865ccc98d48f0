package product

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"webshop/internal/cache"
	"webshop/internal/domain"
	"webshop/internal/logger"
)

const defaultPageSize = 12

var errProductNotFound = fmt.Errorf("product not found: %w", domain.ErrNotFound)

type productRepo interface {
	List(ctx context.Context, f domain.ProductFilter) ([]domain.Product, int, error)
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	Create(ctx context.Context, p domain.Product) (*domain.Product, error)
	Update(ctx context.Context, id string, patch domain.ProductPatch) (*domain.Product, error)
	DistinctCategories(ctx context.Context) ([]string, error)
	DistinctBrands(ctx context.Context) ([]string, error)
}

// facetCache is satisfied by *cache.Catalog.
type facetCache interface {
	Strings(ctx context.Context, key string, load cache.Loader) ([]string, error)
	Invalidate(ctx context.Context, keys ...string) error
}

type Service struct {
	repo   productRepo
	facets facetCache
	logger *logger.Logger
}

func New(repo productRepo, facets facetCache, log *logger.Logger) *Service {
	if facets == nil {
		facets = cache.NewCatalog(nil, 0, nil)
	}
	return &Service{repo: repo, facets: facets, logger: logger.OrNop(log).With("service", "product")}
}

// ListResult is one page of the catalog.
type ListResult struct {
	Products   []domain.Product
	Pagination domain.Pagination
}

// List returns active products matching f. Page size defaults to 12.
func (s *Service) List(ctx context.Context, f domain.ProductFilter) (*ListResult, error) {
	f.Page = domain.NewPage(f.Page.Number, f.Page.Limit, defaultPageSize)
	f.IncludeRetired = false
	if f.MinPriceCents != nil && f.MaxPriceCents != nil && *f.MinPriceCents > *f.MaxPriceCents {
		return nil, fmt.Errorf("minPrice exceeds maxPrice: %w", domain.ErrInvalidArgument)
	}
	products, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, err
	}
	return &ListResult{Products: products, Pagination: domain.Paginate(f.Page, total)}, nil
}

// Get returns an active product. Retired products are reported as missing.
func (s *Service) Get(ctx context.Context, id string) (*domain.Product, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	if !p.Active() {
		return nil, errProductNotFound
	}
	return p, nil
}

func (s *Service) Categories(ctx context.Context) ([]string, error) {
	return s.facets.Strings(ctx, cache.KeyCategories, s.repo.DistinctCategories)
}

func (s *Service) Brands(ctx context.Context) ([]string, error) {
	return s.facets.Strings(ctx, cache.KeyBrands, s.repo.DistinctBrands)
}

// CreateInput is the admin payload for a new product.
type CreateInput struct {
	Name        string
	Description string
	PriceCents  int64
	Category    string
	Brand       string
	Stock       int
	Images      []string
	Featured    bool
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.Product, error) {
	p := domain.Product{
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		PriceCents:  in.PriceCents,
		Category:    strings.ToLower(strings.TrimSpace(in.Category)),
		Brand:       strings.TrimSpace(in.Brand),
		Stock:       in.Stock,
		Status:      domain.ProductActive,
		Images:      in.Images,
		Featured:    in.Featured,
	}
	if err := validateProduct(p); err != nil {
		return nil, err
	}
	created, err := s.repo.Create(ctx, p)
	if err != nil {
		return nil, err
	}
	s.invalidateFacets(ctx)
	return created, nil
}

// Update applies a partial change. Fields left nil are untouched.
func (s *Service) Update(ctx context.Context, id string, patch domain.ProductPatch) (*domain.Product, error) {
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, fmt.Errorf("name required: %w", domain.ErrInvalidArgument)
		}
		patch.Name = &name
	}
	if patch.Category != nil {
		category := strings.ToLower(strings.TrimSpace(*patch.Category))
		if category == "" {
			return nil, fmt.Errorf("category required: %w", domain.ErrInvalidArgument)
		}
		patch.Category = &category
	}
	if patch.PriceCents != nil && *patch.PriceCents < 0 {
		return nil, fmt.Errorf("price must not be negative: %w", domain.ErrInvalidArgument)
	}
	if patch.Stock != nil && *patch.Stock < 0 {
		return nil, fmt.Errorf("stock must not be negative: %w", domain.ErrInvalidArgument)
	}
	if patch.Status != nil && *patch.Status != domain.ProductActive && *patch.Status != domain.ProductRetired {
		return nil, fmt.Errorf("unknown product status %q: %w", *patch.Status, domain.ErrInvalidArgument)
	}
	updated, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return nil, notFound(err)
	}
	s.invalidateFacets(ctx)
	return updated, nil
}

// Retire soft-deletes a product: it disappears from the catalog but stays referenced by orders.
func (s *Service) Retire(ctx context.Context, id string) error {
	retired := domain.ProductRetired
	if _, err := s.repo.Update(ctx, id, domain.ProductPatch{Status: &retired}); err != nil {
		return notFound(err)
	}
	s.logger.Info("product retired", "id", id)
	s.invalidateFacets(ctx)
	return nil
}

func (s *Service) invalidateFacets(ctx context.Context) {
	_ = s.facets.Invalidate(ctx, cache.KeyCategories, cache.KeyBrands)
}

func notFound(err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return errProductNotFound
	}
	return err
}

func validateProduct(p domain.Product) error {
	switch {
	case p.Name == "":
		return fmt.Errorf("name required: %w", domain.ErrInvalidArgument)
	case p.Category == "":
		return fmt.Errorf("category required: %w", domain.ErrInvalidArgument)
	case p.PriceCents < 0:
		return fmt.Errorf("price must not be negative: %w", domain.ErrInvalidArgument)
	case p.Stock < 0:
		return fmt.Errorf("stock must not be negative: %w", domain.ErrInvalidArgument)
	}
	return nil
}
