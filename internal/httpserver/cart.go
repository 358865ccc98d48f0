package httpserver

import (
	"net/http"

	"webshop/internal/domain"

	"github.com/gin-gonic/gin"
)

type addCartItemRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  *int   `json:"quantity" binding:"omitempty,gte=1"`
}

type updateCartItemRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  *int   `json:"quantity" binding:"required,gte=1"`
}

func (h *handlers) respondCart(c *gin.Context, cart *domain.Cart, err error) {
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "cart": toCartResponse(cart)})
}

func (h *handlers) getCart(c *gin.Context) {
	p, _ := principalFrom(c)
	cart, err := h.deps.Cart.Get(c.Request.Context(), p.UserID)
	h.respondCart(c, cart, err)
}

func (h *handlers) addToCart(c *gin.Context) {
	var req addCartItemRequest
	if !bindJSON(c, &req) {
		return
	}
	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}
	p, _ := principalFrom(c)
	cart, err := h.deps.Cart.AddItem(c.Request.Context(), p.UserID, req.ProductID, quantity)
	h.respondCart(c, cart, err)
}

func (h *handlers) updateCartItem(c *gin.Context) {
	var req updateCartItemRequest
	if !bindJSON(c, &req) {
		return
	}
	p, _ := principalFrom(c)
	cart, err := h.deps.Cart.UpdateQuantity(c.Request.Context(), p.UserID, req.ProductID, *req.Quantity)
	h.respondCart(c, cart, err)
}

func (h *handlers) removeFromCart(c *gin.Context) {
	p, _ := principalFrom(c)
	cart, err := h.deps.Cart.RemoveItem(c.Request.Context(), p.UserID, c.Param("productId"))
	h.respondCart(c, cart, err)
}

func (h *handlers) clearCart(c *gin.Context) {
	p, _ := principalFrom(c)
	cart, err := h.deps.Cart.Clear(c.Request.Context(), p.UserID)
	h.respondCart(c, cart, err)
}
