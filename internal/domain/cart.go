package domain

import (
	"fmt"
	"math"
	"time"
)

// Cart is a user's mutable staging area. TotalCents always equals the sum of its line totals.
type Cart struct {
	ID         string     `json:"id"`
	UserID     string     `json:"userId"`
	TotalCents int64      `json:"totalCents"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	Lines      []CartLine `json:"items"`
}

// CartLine holds the price snapshot taken when the product was first added.
type CartLine struct {
	ProductID      string    `json:"productId"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int64     `json:"unitPriceCents"`
	TotalCents     int64     `json:"totalCents"`
	CreatedAt      time.Time `json:"createdAt"`
	// Product is the live catalog entry, resolved on read.
	Product *Product `json:"product,omitempty"`
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

func (c *Cart) lineIndex(productID string) int {
	for i, l := range c.Lines {
		if l.ProductID == productID {
			return i
		}
	}
	return -1
}

// Line returns the line for productID, if present.
func (c *Cart) Line(productID string) (CartLine, bool) {
	idx := c.lineIndex(productID)
	if idx < 0 {
		return CartLine{}, false
	}
	return c.Lines[idx], true
}

// AddLine merges quantity into an existing line or appends a new one priced at the product's
// current price. The cart is left untouched when an error is returned.
func (c *Cart) AddLine(p Product, quantity int) error {
	if quantity < 1 {
		return fmt.Errorf("quantity must be at least 1: %w", ErrInvalidArgument)
	}
	if !p.Active() {
		return fmt.Errorf("product not found: %w", ErrNotFound)
	}
	idx := c.lineIndex(p.ID)
	existing := 0
	if idx >= 0 {
		existing = c.Lines[idx].Quantity
	}
	// Compared against the remaining stock so existing+quantity cannot overflow.
	if quantity > p.Stock-existing {
		requested := math.MaxInt
		if quantity <= math.MaxInt-existing {
			requested = existing + quantity
		}
		return &InsufficientStockError{ProductID: p.ID, Requested: requested, Available: p.Stock}
	}

	if idx >= 0 {
		c.Lines[idx].Quantity = existing + quantity
		c.Lines[idx].Product = &p
	} else {
		c.Lines = append(c.Lines, CartLine{
			ProductID:      p.ID,
			Quantity:       quantity,
			UnitPriceCents: p.PriceCents,
			CreatedAt:      time.Now().UTC(),
			Product:        &p,
		})
	}
	c.Recalculate()
	return nil
}

// SetQuantity overwrites the quantity of an existing line.
func (c *Cart) SetQuantity(p Product, quantity int) error {
	if quantity < 1 {
		return fmt.Errorf("quantity must be at least 1: %w", ErrInvalidArgument)
	}
	if !p.Active() {
		return fmt.Errorf("product not found: %w", ErrNotFound)
	}
	if p.Stock < quantity {
		return &InsufficientStockError{ProductID: p.ID, Requested: quantity, Available: p.Stock}
	}
	idx := c.lineIndex(p.ID)
	if idx < 0 {
		return fmt.Errorf("item not found in cart: %w", ErrNotFound)
	}
	c.Lines[idx].Quantity = quantity
	c.Lines[idx].Product = &p
	c.Recalculate()
	return nil
}

// RemoveLine drops the line for productID. Removing an absent product is not an error.
func (c *Cart) RemoveLine(productID string) {
	kept := c.Lines[:0]
	for _, l := range c.Lines {
		if l.ProductID != productID {
			kept = append(kept, l)
		}
	}
	c.Lines = kept
	c.Recalculate()
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.Lines = nil
	c.TotalCents = 0
}

// Recalculate derives line and cart totals from quantities and snapshot prices.
func (c *Cart) Recalculate() int64 {
	var total int64
	for i := range c.Lines {
		c.Lines[i].TotalCents = c.Lines[i].UnitPriceCents * int64(c.Lines[i].Quantity)
		total += c.Lines[i].TotalCents
	}
	c.TotalCents = total
	return total
}
