package domain

import "time"

// ProductStatus replaces a boolean active flag; retired products are hidden from every customer read.
type ProductStatus string

const (
	ProductActive  ProductStatus = "active"
	ProductRetired ProductStatus = "retired"
)

type Rating struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

type Product struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	PriceCents  int64         `json:"priceCents"`
	Category    string        `json:"category"`
	Brand       string        `json:"brand,omitempty"`
	Stock       int           `json:"stock"`
	Status      ProductStatus `json:"status"`
	Images      []string      `json:"images,omitempty"`
	Featured    bool          `json:"featured"`
	Rating      Rating        `json:"rating"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// Active reports whether the product may be shown, added to carts or ordered.
func (p Product) Active() bool {
	return p.Status == ProductActive
}

// ProductFilter describes a catalog query. Zero values mean "no constraint".
type ProductFilter struct {
	Category       string
	Brand          string
	MinPriceCents  *int64
	MaxPriceCents  *int64
	Search         string
	IncludeRetired bool
	SortField      string
	SortDesc       bool
	Page           Page
}

// ProductPatch carries a partial admin update; nil fields are left untouched.
type ProductPatch struct {
	Name        *string
	Description *string
	PriceCents  *int64
	Category    *string
	Brand       *string
	Stock       *int
	Images      []string
	Featured    *bool
	Status      *ProductStatus
}
