package api

import (
	"net/http"
	"strconv"

	"storefront/internal/service"
	"storefront/internal/session"

	"github.com/gin-gonic/gin"
)

func (h *Handler) listProducts(c *gin.Context) {
	products, err := h.catalog.Products(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *Handler) featuredProducts(c *gin.Context) {
	products, err := h.catalog.FeaturedProducts(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *Handler) getProduct(c *gin.Context) {
	product, err := h.catalog.ProductBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) productsByCategory(c *gin.Context) {
	products, err := h.catalog.ProductsByCategory(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *Handler) listCategories(c *gin.Context) {
	categories, err := h.catalog.Categories(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, categories)
}

func (h *Handler) getCategory(c *gin.Context) {
	category, err := h.catalog.CategoryBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, category)
}

func (h *Handler) getCart(c *gin.Context) {
	view, err := h.carts.View(c.Request.Context(), session.From(c).ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// addToCart merges into an existing line for the same product and weight.
func (h *Handler) addToCart(c *gin.Context) {
	var req service.AddToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	item, err := h.carts.Add(c.Request.Context(), session.From(c).ID, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

type updateCartRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) updateCartItem(c *gin.Context) {
	id, ok := cartItemID(c)
	if !ok {
		return
	}
	var req updateCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	item, err := h.carts.Update(c.Request.Context(), session.From(c).ID, id, req.Quantity)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if item == nil {
		c.JSON(http.StatusOK, gin.H{"success": true, "removed": true})
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *Handler) removeCartItem(c *gin.Context) {
	id, ok := cartItemID(c)
	if !ok {
		return
	}
	if err := h.carts.Remove(c.Request.Context(), session.From(c).ID, id); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) clearCart(c *gin.Context) {
	if err := h.carts.Clear(c.Request.Context(), session.From(c).ID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func cartItemID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid cart item id")
		return 0, false
	}
	return id, true
}

type affiliateCodeRequest struct {
	Code string `json:"code"`
}

func (h *Handler) validateAffiliateCode(c *gin.Context) {
	var req affiliateCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	h.respondAffiliate(c, req.Code)
}

func (h *Handler) validateAffiliateParam(c *gin.Context) {
	h.respondAffiliate(c, c.Param("code"))
}

// respondAffiliate answers 200 for unknown codes too; the body says valid=false.
func (h *Handler) respondAffiliate(c *gin.Context, code string) {
	if service.NormalizeCode(code) == "" {
		badRequest(c, "code is required")
		return
	}
	res, err := h.affiliates.Validate(c.Request.Context(), code)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) validateAddress(c *gin.Context) {
	var req service.AddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	res, err := h.addresses.Validate(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) shippingRates(c *gin.Context) {
	quote, err := h.addresses.ShippingRates(c.Request.Context(), session.From(c).ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}
