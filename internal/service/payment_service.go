package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/internal/checkout"
	"storefront/internal/models"
	"storefront/internal/payment"
	"storefront/internal/pricing"
	"storefront/internal/session"
	"storefront/internal/store"
	"storefront/internal/util"

	"go.uber.org/zap"
)

const webhookDedupTTL = 72 * time.Hour

// Deduper remembers processed webhook deliveries.
type Deduper interface {
	MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ForgetOnce(ctx context.Context, key string) error
}

// PaymentService exposes card intents outside the checkout steps and
// applies gateway webhooks to stored orders.
type PaymentService struct {
	repo      Repository
	carts     *CartService
	gateway   payment.Gateway
	dedup     Deduper
	checkouts *CheckoutService
	sessions  session.Store
	now       func() time.Time
	logger    *zap.Logger
}

// NewPaymentService creates a new payment service
func NewPaymentService(repo Repository, carts *CartService, gateway payment.Gateway, dedup Deduper) *PaymentService {
	if gateway == nil {
		gateway = payment.Disabled{}
	}
	return &PaymentService{
		repo:    repo,
		carts:   carts,
		gateway: gateway,
		dedup:   dedup,
		now:     time.Now,
		logger:  util.GetLogger(),
	}
}

// WithCheckout lets a succeeded card webhook complete a checkout whose
// browser never called confirm-payment.
func (ps *PaymentService) WithCheckout(checkouts *CheckoutService, sessions session.Store) *PaymentService {
	ps.checkouts = checkouts
	ps.sessions = sessions
	return ps
}

// CreateIntent opens a card intent for the session's current total.
func (ps *PaymentService) CreateIntent(ctx context.Context, sess *session.Session) (*payment.Intent, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.CreateIntent")
	defer span.End()

	view, err := ps.carts.View(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	if view.Empty() {
		return nil, ErrEmptyCart
	}

	totals := pricing.Compute(view.PricedLines(), sess.Checkout.DiscountPercent())
	metadata := map[string]string{"session_id": sess.ID}
	if sess.Checkout != nil {
		metadata["checkout_id"] = sess.Checkout.CheckoutID
	}

	intent, err := ps.gateway.CreateIntent(ctx, pricing.ToCents(totals.Total), metadata)
	if err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}

	if st := sess.Checkout; st != nil && st.Payment != nil && st.Payment.Method == models.PaymentMethodCard && !st.Status.Terminal() {
		next := cloneState(st)
		next.Payment.PaymentIntentID = intent.ID
		next.Payment.Total = totals.Total
		sess.Checkout = next
		sess.MarkDirty()
	}

	ps.logger.Info("Payment intent created",
		zap.String("intent_id", intent.ID),
		zap.String("session_id", sess.ID),
		zap.String("total", totals.Total.StringFixed(2)))
	return intent, nil
}

// IntentStatus looks up an intent without exposing its client secret.
func (ps *PaymentService) IntentStatus(ctx context.Context, intentID string) (*payment.Intent, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.IntentStatus")
	defer span.End()

	intentID = strings.TrimSpace(intentID)
	if intentID == "" {
		return nil, validationError("paymentIntentId is required")
	}
	intent, err := ps.gateway.GetIntent(ctx, intentID)
	if err != nil {
		return nil, fmt.Errorf("get payment intent: %w", err)
	}
	out := *intent
	out.ClientSecret = ""
	return &out, nil
}

// HandleWebhook verifies a gateway notification and updates the payment
// status of every order line paid with that intent. A succeeded intent with
// no order yet completes its checkout. Redelivered events are acknowledged
// without side effects.
func (ps *PaymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	ctx, span := util.StartSpan(ctx, "PaymentService.HandleWebhook")
	defer span.End()

	evt, err := ps.gateway.ParseWebhook(payload, signature)
	if errors.Is(err, payment.ErrInvalidSignature) {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if err != nil {
		return err
	}

	var status string
	switch evt.Type {
	case payment.EventIntentSucceeded:
		status = models.PaymentStatusPaid
	case payment.EventIntentFailed:
		status = models.PaymentStatusFailed
	default:
		ps.logger.Debug("Ignoring webhook event", zap.String("type", evt.Type))
		return nil
	}

	key := "stripe:" + evt.ID
	if ps.dedup != nil {
		first, err := ps.dedup.MarkOnce(ctx, key, webhookDedupTTL)
		if err != nil {
			return fmt.Errorf("webhook dedup: %w", err)
		}
		if !first {
			ps.logger.Info("Duplicate webhook delivery", zap.String("event_id", evt.ID))
			return nil
		}
	}

	var orderIDs []string
	err = ps.repo.WithTx(ctx, func(tx Repository) error {
		var err error
		orderIDs, err = tx.UpdatePaymentStatusByIntent(ctx, evt.IntentID, status)
		if err != nil {
			return err
		}
		for _, orderID := range orderIDs {
			if err := appendPaymentStatusEvent(ctx, tx, orderID, status, ps.now()); err != nil {
				return err
			}
		}
		return nil
	})
	if err == nil && status == models.PaymentStatusPaid {
		err = ps.completeCheckout(ctx, evt)
	}
	if err != nil {
		if ps.dedup != nil {
			if ferr := ps.dedup.ForgetOnce(ctx, key); ferr != nil {
				ps.logger.Error("Failed to clear webhook dedup key", zap.Error(ferr))
			}
		}
		return fmt.Errorf("apply webhook: %w", err)
	}

	ps.logger.Info("Webhook applied",
		zap.String("event_id", evt.ID),
		zap.String("intent_id", evt.IntentID),
		zap.String("payment_status", status),
		zap.Strings("order_ids", orderIDs))
	return nil
}

// completeCheckout writes the orders for a paid intent through the regular
// confirm path. Conditions a retry cannot change are logged and acknowledged.
func (ps *PaymentService) completeCheckout(ctx context.Context, evt *payment.Event) error {
	if ps.checkouts == nil || ps.sessions == nil {
		return nil
	}
	sessionID, checkoutID := evt.Metadata["session_id"], evt.Metadata["checkout_id"]
	if sessionID == "" || checkoutID == "" {
		ps.logger.Debug("Intent carries no checkout", zap.String("intent_id", evt.IntentID))
		return nil
	}

	_, err := ps.repo.OrderForIntent(ctx, evt.IntentID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	fields := []zap.Field{
		zap.String("intent_id", evt.IntentID),
		zap.String("session_id", sessionID),
		zap.String("checkout_id", checkoutID),
	}

	sess, err := ps.sessions.Load(ctx, sessionID)
	if errors.Is(err, session.ErrNotFound) {
		ps.logger.Error("Paid intent has no session to complete", fields...)
		return nil
	}
	if err != nil {
		return err
	}
	if sess.Checkout == nil || sess.Checkout.CheckoutID != checkoutID {
		ps.logger.Error("Paid intent belongs to a replaced checkout", fields...)
		return nil
	}

	res, err := ps.checkouts.ConfirmPayment(ctx, sess, ConfirmPaymentRequest{PaymentIntentID: evt.IntentID})
	if errors.Is(err, ErrValidation) || errors.Is(err, checkout.ErrIllegalTransition) {
		ps.logger.Warn("Webhook could not complete checkout", append(fields, zap.Error(err))...)
		return nil
	}
	if err != nil {
		return err
	}

	if err := ps.sessions.Save(ctx, sess); err != nil {
		ps.logger.Error("Failed to save session after webhook checkout", append(fields, zap.Error(err))...)
	}
	ps.logger.Info("Checkout completed from webhook", append(fields, zap.String("order_id", res.OrderID))...)
	return nil
}

func appendPaymentStatusEvent(ctx context.Context, tx Repository, orderID, status string, now time.Time) error {
	evt := models.OrderPaymentStatusEvent{
		BaseEvent:     newBaseEvent(models.EventTypeOrderPaymentSet, now),
		OrderID:       orderID,
		PaymentStatus: status,
	}
	if err := tx.AppendOutbox(ctx, evt.EventID, evt.EventType, orderID, evt); err != nil {
		return fmt.Errorf("append payment status event: %w", err)
	}
	return nil
}
