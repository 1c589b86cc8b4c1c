package api

import (
	"errors"
	"io"
	"net/http"

	"storefront/internal/service"
	"storefront/internal/session"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxWebhookBody = 64 << 10

func (h *Handler) checkoutState(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"checkout": h.checkout.State(session.From(c))})
}

func (h *Handler) initializeCheckout(c *gin.Context) {
	st, err := h.checkout.Initialize(c.Request.Context(), session.From(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondCheckout(c, st)
}

func (h *Handler) submitPersonalInfo(c *gin.Context) {
	var req service.PersonalInfoRequest
	if !bindBody(c, &req) {
		return
	}
	st, err := h.checkout.SubmitPersonalInfo(c.Request.Context(), session.From(c), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondCheckout(c, st)
}

func (h *Handler) submitShippingInfo(c *gin.Context) {
	var req service.ShippingInfoRequest
	if !bindBody(c, &req) {
		return
	}
	st, err := h.checkout.SubmitShippingInfo(c.Request.Context(), session.From(c), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondCheckout(c, st)
}

func (h *Handler) selectPaymentMethod(c *gin.Context) {
	var req service.PaymentMethodRequest
	if !bindBody(c, &req) {
		return
	}
	sel, err := h.checkout.SelectPaymentMethod(c.Request.Context(), session.From(c), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.commitSession(c)
	c.JSON(http.StatusOK, sel)
}

func (h *Handler) confirmCheckoutPayment(c *gin.Context) {
	var req service.ConfirmPaymentRequest
	if !bindOptionalBody(c, &req) {
		return
	}
	res, err := h.checkout.ConfirmPayment(c.Request.Context(), session.From(c), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.commitSession(c)
	c.JSON(http.StatusOK, res)
}

func (h *Handler) createPaymentIntent(c *gin.Context) {
	intent, err := h.payments.CreateIntent(c.Request.Context(), session.From(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.commitSession(c)
	c.JSON(http.StatusOK, gin.H{
		"clientSecret":    intent.ClientSecret,
		"paymentIntentId": intent.ID,
		"amount":          intent.AmountCents,
		"currency":        intent.Currency,
	})
}

func (h *Handler) paymentIntentStatus(c *gin.Context) {
	var req service.ConfirmPaymentRequest
	if !bindBody(c, &req) {
		return
	}
	intent, err := h.payments.IntentStatus(c.Request.Context(), req.PaymentIntentID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, intent)
}

// stripeWebhook needs the raw body for signature verification.
func (h *Handler) stripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		badRequest(c, "unreadable body")
		return
	}
	if err := h.payments.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (h *Handler) respondCheckout(c *gin.Context, st any) {
	h.commitSession(c)
	c.JSON(http.StatusOK, gin.H{"checkout": st})
}

// commitSession saves checkout progress before the response goes out, so a
// fast follow-up request sees it.
func (h *Handler) commitSession(c *gin.Context) {
	if err := session.Commit(c, h.sessions); err != nil {
		h.logger.Error("Failed to commit session", zap.Error(err))
	}
}

func bindBody(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		badRequest(c, "invalid request body")
		return false
	}
	return true
}

// bindOptionalBody accepts an empty body.
func bindOptionalBody(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "invalid request body")
		return false
	}
	return true
}
