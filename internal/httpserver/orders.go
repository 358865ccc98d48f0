package httpserver

import (
	"net/http"

	"webshop/internal/domain"
	ordersvc "webshop/internal/service/order"

	"github.com/gin-gonic/gin"
)

type createOrderRequest struct {
	ShippingAddress domain.ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string                 `json:"paymentMethod" binding:"required,oneof=credit_card paypal cash_on_delivery"`
}

type orderStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type paymentStatusRequest struct {
	PaymentStatus string `json:"paymentStatus" binding:"required"`
}

func (h *handlers) createOrder(c *gin.Context) {
	var req createOrderRequest
	if !bindJSON(c, &req) {
		return
	}
	p, _ := principalFrom(c)
	order, err := h.deps.Orders.Checkout(c.Request.Context(), p.UserID, ordersvc.CheckoutInput{
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "order": toOrderResponse(order)})
}

func (h *handlers) myOrders(c *gin.Context) {
	page, ok := pageQuery(c)
	if !ok {
		badRequest(c, "page and limit must be numbers")
		return
	}
	p, _ := principalFrom(c)
	res, err := h.deps.Orders.MyOrders(c.Request.Context(), p.UserID, page)
	h.respondOrders(c, res, err)
}

func (h *handlers) listOrders(c *gin.Context) {
	page, ok := pageQuery(c)
	if !ok {
		badRequest(c, "page and limit must be numbers")
		return
	}
	res, err := h.deps.Orders.List(c.Request.Context(), c.Query("status"), page)
	h.respondOrders(c, res, err)
}

func (h *handlers) respondOrders(c *gin.Context, res *ordersvc.ListResult, err error) {
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"orders":     toOrderResponses(res.Orders),
		"pagination": res.Pagination,
	})
}

func (h *handlers) getOrder(c *gin.Context) {
	p, _ := principalFrom(c)
	order, err := h.deps.Orders.Get(c.Request.Context(), p, c.Param("id"))
	h.respondOrder(c, order, err)
}

func (h *handlers) updateOrderStatus(c *gin.Context) {
	var req orderStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	order, err := h.deps.Orders.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status)
	h.respondOrder(c, order, err)
}

func (h *handlers) updatePaymentStatus(c *gin.Context) {
	var req paymentStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	order, err := h.deps.Orders.UpdatePaymentStatus(c.Request.Context(), c.Param("id"), req.PaymentStatus)
	h.respondOrder(c, order, err)
}

func (h *handlers) respondOrder(c *gin.Context, order *domain.Order, err error) {
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "order": toOrderResponse(order)})
}
