package httpserver

import (
	"net/http"
	"strconv"
	"strings"

	"webshop/internal/domain"
	productsvc "webshop/internal/service/product"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type createProductRequest struct {
	Name        string          `json:"name" binding:"required"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category" binding:"required"`
	Brand       string          `json:"brand"`
	Stock       int             `json:"stock" binding:"gte=0"`
	Images      []string        `json:"images"`
	Featured    bool            `json:"featured"`
}

type updateProductRequest struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Category    *string          `json:"category"`
	Brand       *string          `json:"brand"`
	Stock       *int             `json:"stock" binding:"omitempty,gte=0"`
	Images      []string         `json:"images"`
	Featured    *bool            `json:"featured"`
	IsActive    *bool            `json:"isActive"`
}

func (r updateProductRequest) patch() (domain.ProductPatch, bool) {
	patch := domain.ProductPatch{
		Name:        r.Name,
		Description: r.Description,
		Category:    r.Category,
		Brand:       r.Brand,
		Stock:       r.Stock,
		Images:      r.Images,
		Featured:    r.Featured,
	}
	if r.Price != nil {
		cents, ok := decimalToCents(*r.Price)
		if !ok {
			return domain.ProductPatch{}, false
		}
		patch.PriceCents = &cents
	}
	if r.IsActive != nil {
		status := domain.ProductRetired
		if *r.IsActive {
			status = domain.ProductActive
		}
		patch.Status = &status
	}
	return patch, true
}

// productFilter reads catalog query parameters; malformed numbers are rejected.
func productFilter(c *gin.Context) (domain.ProductFilter, string) {
	var f domain.ProductFilter
	page, ok := queryInt(c, "page")
	if !ok {
		return f, "page must be a number"
	}
	limit, ok := queryInt(c, "limit")
	if !ok {
		return f, "limit must be a number"
	}
	f.Page = domain.Page{Number: page, Limit: limit}

	for _, bound := range []struct {
		key string
		dst **int64
	}{{"minPrice", &f.MinPriceCents}, {"maxPrice", &f.MaxPriceCents}} {
		raw := strings.TrimSpace(c.Query(bound.key))
		if raw == "" {
			continue
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return f, bound.key + " must be a number"
		}
		cents := d.Shift(2).Round(0).IntPart()
		*bound.dst = &cents
	}

	f.Category = strings.ToLower(strings.TrimSpace(c.Query("category")))
	f.Brand = strings.TrimSpace(c.Query("brand"))
	f.Search = strings.TrimSpace(c.Query("search"))
	f.SortField = c.DefaultQuery("sort", "createdAt")
	f.SortDesc = !strings.EqualFold(c.Query("order"), "asc")
	return f, ""
}

func queryInt(c *gin.Context, key string) (int, bool) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

func pageQuery(c *gin.Context) (domain.Page, bool) {
	page, ok := queryInt(c, "page")
	if !ok {
		return domain.Page{}, false
	}
	limit, ok := queryInt(c, "limit")
	if !ok {
		return domain.Page{}, false
	}
	return domain.Page{Number: page, Limit: limit}, true
}

func (h *handlers) listProducts(c *gin.Context) {
	f, problem := productFilter(c)
	if problem != "" {
		badRequest(c, problem)
		return
	}
	res, err := h.deps.Products.List(c.Request.Context(), f)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"products":   toProductResponses(res.Products),
		"pagination": res.Pagination,
	})
}

func (h *handlers) categories(c *gin.Context) {
	values, err := h.deps.Products.Categories(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "categories": nonNil(values)})
}

func (h *handlers) brands(c *gin.Context) {
	values, err := h.deps.Products.Brands(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "brands": nonNil(values)})
}

func (h *handlers) getProduct(c *gin.Context) {
	p, err := h.deps.Products.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "product": toProductResponse(*p)})
}

func (h *handlers) createProduct(c *gin.Context) {
	var req createProductRequest
	if !bindJSON(c, &req) {
		return
	}
	cents, ok := decimalToCents(req.Price)
	if !ok {
		badRequest(c, "Price must have at most two decimal places")
		return
	}
	p, err := h.deps.Products.Create(c.Request.Context(), productsvc.CreateInput{
		Name:        req.Name,
		Description: req.Description,
		PriceCents:  cents,
		Category:    req.Category,
		Brand:       req.Brand,
		Stock:       req.Stock,
		Images:      req.Images,
		Featured:    req.Featured,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "product": toProductResponse(*p)})
}

func (h *handlers) updateProduct(c *gin.Context) {
	var req updateProductRequest
	if !bindJSON(c, &req) {
		return
	}
	patch, ok := req.patch()
	if !ok {
		badRequest(c, "Price must have at most two decimal places")
		return
	}
	p, err := h.deps.Products.Update(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "product": toProductResponse(*p)})
}

func (h *handlers) deleteProduct(c *gin.Context) {
	if err := h.deps.Products.Retire(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Product deleted successfully"})
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
