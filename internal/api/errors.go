package api

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"storefront/internal/catalog"
	"storefront/internal/checkout"
	"storefront/internal/payment"
	"storefront/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const adminTokenHeader = "X-Admin-Token"

// statusFor maps a service error onto an HTTP status and the message the
// client sees. Anything unrecognised is a 500 with a generic message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, checkout.ErrIllegalTransition):
		return http.StatusBadRequest, strings.TrimPrefix(err.Error(), service.ErrValidation.Error()+": ")
	case errors.Is(err, service.ErrNotFound),
		errors.Is(err, catalog.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, payment.ErrNotConfigured):
		return http.StatusServiceUnavailable, payment.ErrNotConfigured.Error()
	default:
		return http.StatusInternalServerError, "something went wrong, please try again"
	}
}

func (h *Handler) respondError(c *gin.Context, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}
	c.JSON(status, gin.H{"error": msg})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

// adminOnly guards the order endpoints. An unset token closes them entirely.
func adminOnly(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader(adminTokenHeader)
		if token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
