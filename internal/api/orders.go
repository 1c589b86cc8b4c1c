package api

import (
	"net/http"
	"strconv"

	"storefront/internal/service"

	"github.com/gin-gonic/gin"
)

const defaultOrderPageSize = 50

func (h *Handler) listOrders(c *gin.Context) {
	q := service.OrderQuery{
		Search: c.Query("search"),
		Limit:  defaultOrderPageSize,
	}
	var ok bool
	if q.Limit, ok = queryInt(c, "limit", q.Limit); !ok {
		return
	}
	if q.Offset, ok = queryInt(c, "offset", 0); !ok {
		return
	}

	orders, err := h.orders.List(c.Request.Context(), q)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"orders": orders,
		"limit":  q.Limit,
		"offset": q.Offset,
	})
}

func (h *Handler) countOrders(c *gin.Context) {
	n, err := h.orders.Count(c.Request.Context(), c.Query("search"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": n})
}

// getOrder accepts an order id or the numeric id of a single line.
func (h *Handler) getOrder(c *gin.Context) {
	lines, err := h.orders.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if len(lines) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"orderId": lines[0].OrderID,
		"lines":   lines,
	})
}

type paymentStatusRequest struct {
	PaymentStatus string `json:"paymentStatus"`
}

func (h *Handler) updatePaymentStatus(c *gin.Context) {
	var req paymentStatusRequest
	if !bindBody(c, &req) {
		return
	}
	orderID := c.Param("id")
	if err := h.orders.UpdatePaymentStatus(c.Request.Context(), orderID, req.PaymentStatus); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"orderId":       orderID,
		"paymentStatus": req.PaymentStatus,
	})
}

func queryInt(c *gin.Context, key string, def int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		badRequest(c, key+" must be an integer")
		return 0, false
	}
	return n, true
}
