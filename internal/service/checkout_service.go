package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/config"
	"storefront/internal/checkout"
	"storefront/internal/models"
	"storefront/internal/payment"
	"storefront/internal/pricing"
	"storefront/internal/session"
	"storefront/internal/store"
	"storefront/internal/util"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	localCheckoutPrefix = "local-"
	confirmClaimTTL     = 24 * time.Hour
)

// DiscountValidator checks affiliate codes.
type DiscountValidator interface {
	Validate(ctx context.Context, code string) (*AffiliateResult, error)
}

// CheckoutOptions carries the static payment instructions.
type CheckoutOptions struct {
	Bank    config.BankInstructions
	Wallets map[string]string
}

type PersonalInfoRequest struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Email     string `json:"email" validate:"omitempty,email"`
	Phone     string `json:"phone" validate:"omitempty,max=32"`
}

type ShippingInfoRequest struct {
	Address string `json:"address" validate:"required"`
	City    string `json:"city" validate:"required"`
	State   string `json:"state" validate:"required,len=2,alpha"`
	Zip     string `json:"zip" validate:"required,zip"`
	Country string `json:"country" validate:"omitempty,max=56"`
	Method  string `json:"method" validate:"required"`
}

// PaymentMethodRequest selects how to pay. A nil DiscountCode keeps the
// applied discount; an empty one removes it.
type PaymentMethodRequest struct {
	Method       string  `json:"method"`
	DiscountCode *string `json:"discountCode"`
}

type ConfirmPaymentRequest struct {
	PaymentIntentID string `json:"paymentIntentId"`
}

// PaymentSelection is returned by the payment-method step.
type PaymentSelection struct {
	Method           string                   `json:"method"`
	Totals           pricing.Totals           `json:"totals"`
	Discount         *checkout.Discount       `json:"discount,omitempty"`
	ClientSecret     string                   `json:"clientSecret,omitempty"`
	PaymentIntentID  string                   `json:"paymentIntentId,omitempty"`
	BankInstructions *config.BankInstructions `json:"bankInstructions,omitempty"`
	CryptoWallets    map[string]string        `json:"cryptoWallets,omitempty"`
}

// ConfirmResult is returned once orders are written.
type ConfirmResult struct {
	OrderID       string         `json:"orderId"`
	PaymentStatus string         `json:"paymentStatus"`
	Totals        pricing.Totals `json:"totals"`
}

// CheckoutService drives the checkout steps stored on the session.
type CheckoutService struct {
	repo       Repository
	carts      *CartService
	affiliates DiscountValidator
	gateway    payment.Gateway
	writer     *OrderWriter
	claims     Deduper
	opts       CheckoutOptions
	validate   *validator.Validate
	now        func() time.Time
	logger     *zap.Logger
}

// NewCheckoutService creates a new checkout service. claims guards the
// confirm step across instances; nil keeps the guard in process.
func NewCheckoutService(
	repo Repository,
	carts *CartService,
	affiliates DiscountValidator,
	gateway payment.Gateway,
	writer *OrderWriter,
	claims Deduper,
	opts CheckoutOptions,
) *CheckoutService {
	if gateway == nil {
		gateway = payment.Disabled{}
	}
	if claims == nil {
		claims = newLocalClaims()
	}
	return &CheckoutService{
		repo:       repo,
		carts:      carts,
		affiliates: affiliates,
		gateway:    gateway,
		writer:     writer,
		claims:     claims,
		opts:       opts,
		validate:   newValidator(),
		now:        time.Now,
		logger:     util.GetLogger(),
	}
}

// State returns the session's checkout, or nil if none was started.
func (s *CheckoutService) State(sess *session.Session) *checkout.State {
	return sess.Checkout
}

// Initialize starts a checkout. A persisted, unfinished checkout is resumed.
// An empty cart gets a throwaway local id that is never stored.
func (s *CheckoutService) Initialize(ctx context.Context, sess *session.Session) (*checkout.State, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.Initialize")
	defer span.End()

	if st := sess.Checkout; st != nil && st.Persisted && !st.Status.Terminal() {
		return st, nil
	}

	view, err := s.carts.View(ctx, sess.ID)
	if err != nil {
		return nil, err
	}

	if view.Empty() {
		st := checkout.New(localCheckoutPrefix+uuid.NewString(), false)
		sess.Checkout = st
		sess.MarkDirty()
		return st, nil
	}

	st := checkout.New(uuid.NewString(), true)
	rec, err := checkoutRecord(sess.ID, st)
	if err != nil {
		return nil, err
	}

	err = s.repo.WithTx(ctx, func(tx Repository) error {
		if err := tx.InsertCheckout(ctx, rec); err != nil {
			return fmt.Errorf("insert checkout: %w", err)
		}
		return appendCheckoutEvent(ctx, tx, sess.ID, st, s.now())
	})
	if err != nil {
		util.CheckoutStepsTotal.WithLabelValues("initialize", "error").Inc()
		return nil, err
	}

	util.CheckoutStepsTotal.WithLabelValues("initialize", "ok").Inc()
	s.logger.Info("Checkout started",
		zap.String("checkout_id", st.CheckoutID),
		zap.String("session_id", sess.ID))

	sess.Checkout = st
	sess.MarkDirty()
	return st, nil
}

// SubmitPersonalInfo records the customer's name and contact details.
func (s *CheckoutService) SubmitPersonalInfo(ctx context.Context, sess *session.Session, req PersonalInfoRequest) (*checkout.State, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.SubmitPersonalInfo")
	defer span.End()

	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Email = strings.TrimSpace(req.Email)
	req.Phone = strings.TrimSpace(req.Phone)
	if err := validateStruct(s.validate, req); err != nil {
		return nil, s.stepFailed("personal_info", err)
	}

	if sess.Checkout == nil {
		if _, err := s.Initialize(ctx, sess); err != nil {
			return nil, err
		}
	}

	next := cloneState(sess.Checkout)
	if err := next.Advance(checkout.StatusPersonalInfo); err != nil {
		return nil, s.stepFailed("personal_info", err)
	}
	next.Personal = &checkout.PersonalInfo{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
	}

	customer := &models.Customer{
		SessionID: sess.ID,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
	}
	if err := s.persistStep(ctx, sess.ID, sess.Checkout.Status, next, customer); err != nil {
		return nil, s.persistFailed(ctx, sess, "personal_info", err)
	}

	s.commit(sess, next, "personal_info")
	return next, nil
}

// SubmitShippingInfo records the shipping address and method.
func (s *CheckoutService) SubmitShippingInfo(ctx context.Context, sess *session.Session, req ShippingInfoRequest) (*checkout.State, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.SubmitShippingInfo")
	defer span.End()

	if sess.Checkout == nil || !checkout.CanTransition(sess.Checkout.Status, checkout.StatusShippingInfo) {
		return nil, s.stepFailed("shipping_info", illegalStep(sess.Checkout, checkout.StatusShippingInfo))
	}

	req.Address = strings.TrimSpace(req.Address)
	req.City = strings.TrimSpace(req.City)
	req.State = strings.ToUpper(strings.TrimSpace(req.State))
	req.Zip = strings.TrimSpace(req.Zip)
	req.Country = strings.TrimSpace(req.Country)
	req.Method = strings.TrimSpace(req.Method)
	if err := validateStruct(s.validate, req); err != nil {
		return nil, s.stepFailed("shipping_info", err)
	}

	view, err := s.carts.View(ctx, sess.ID)
	if err != nil {
		return nil, err
	}

	next := cloneState(sess.Checkout)
	if err := next.Advance(checkout.StatusShippingInfo); err != nil {
		return nil, s.stepFailed("shipping_info", err)
	}
	next.Shipping = &checkout.ShippingInfo{
		Address:       req.Address,
		City:          req.City,
		State:         req.State,
		Zip:           req.Zip,
		Country:       req.Country,
		Method:        req.Method,
		ShippingPrice: pricing.ShippingFor(view.ItemCount),
	}

	customer := &models.Customer{
		SessionID:      sess.ID,
		Address:        req.Address,
		City:           req.City,
		State:          req.State,
		Zip:            req.Zip,
		Country:        req.Country,
		ShippingMethod: req.Method,
	}
	if err := s.persistStep(ctx, sess.ID, sess.Checkout.Status, next, customer); err != nil {
		return nil, s.persistFailed(ctx, sess, "shipping_info", err)
	}

	s.commit(sess, next, "shipping_info")
	return next, nil
}

// SelectPaymentMethod prices the cart, applies the discount code and
// prepares the chosen payment method.
func (s *CheckoutService) SelectPaymentMethod(ctx context.Context, sess *session.Session, req PaymentMethodRequest) (*PaymentSelection, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.SelectPaymentMethod")
	defer span.End()

	if sess.Checkout == nil || !checkout.CanTransition(sess.Checkout.Status, checkout.StatusPaymentSelection) {
		return nil, s.stepFailed("payment_selection", illegalStep(sess.Checkout, checkout.StatusPaymentSelection))
	}

	method := strings.ToLower(strings.TrimSpace(req.Method))
	if !models.ValidPaymentMethod(method) {
		return nil, s.stepFailed("payment_selection", ErrUnsupportedPayment)
	}

	view, err := s.carts.View(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	if view.Empty() {
		return nil, s.stepFailed("payment_selection", ErrEmptyCart)
	}

	next := cloneState(sess.Checkout)
	if err := next.Advance(checkout.StatusPaymentSelection); err != nil {
		return nil, s.stepFailed("payment_selection", err)
	}

	if req.DiscountCode != nil {
		next.SetDiscount(nil)
		if code := NormalizeCode(*req.DiscountCode); code != "" {
			res, err := s.affiliates.Validate(ctx, code)
			if err != nil {
				return nil, err
			}
			if !res.Valid {
				return nil, s.stepFailed("payment_selection", ErrInvalidDiscount)
			}
			next.SetDiscount(&checkout.Discount{Code: res.Code, Percent: res.Discount, Name: res.Name})
		}
	}

	totals := pricing.Compute(view.PricedLines(), next.DiscountPercent())
	selection := &PaymentSelection{Method: method, Totals: totals, Discount: next.Discount}
	next.Payment = &checkout.PaymentInfo{Method: method, Total: totals.Total}

	switch method {
	case models.PaymentMethodCard:
		intent, err := s.gateway.CreateIntent(ctx, pricing.ToCents(totals.Total), map[string]string{
			"checkout_id": next.CheckoutID,
			"session_id":  sess.ID,
		})
		if err != nil {
			return nil, s.stepFailed("payment_selection", fmt.Errorf("create payment intent: %w", err))
		}
		selection.ClientSecret = intent.ClientSecret
		selection.PaymentIntentID = intent.ID
		next.Payment.PaymentIntentID = intent.ID
	case models.PaymentMethodBank:
		bank := s.opts.Bank
		selection.BankInstructions = &bank
	case models.PaymentMethodCrypto:
		selection.CryptoWallets = s.opts.Wallets
	}

	if err := s.persistStep(ctx, sess.ID, sess.Checkout.Status, next, nil); err != nil {
		return nil, s.persistFailed(ctx, sess, "payment_selection", err)
	}

	s.commit(sess, next, "payment_selection")
	return selection, nil
}

// ConfirmPayment verifies payment, writes the orders and completes the
// checkout. One request per checkout gets past the confirm claim; the
// stored status and the payment intent are checked again inside the
// transaction.
func (s *CheckoutService) ConfirmPayment(ctx context.Context, sess *session.Session, req ConfirmPaymentRequest) (*ConfirmResult, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.ConfirmPayment")
	defer span.End()

	if res, ok := completedCardResult(sess.Checkout, req); ok {
		return res, nil
	}

	view, err := s.carts.View(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	if len(view.Items) == 0 {
		return nil, s.stepFailed("payment_processing", ErrEmptyCart)
	}
	if view.HasUnavailable() {
		return nil, s.stepFailed("payment_processing", ErrProductUnavailable)
	}

	if sess.Checkout == nil || !checkout.CanTransition(sess.Checkout.Status, checkout.StatusPaymentProcessing) {
		return nil, s.stepFailed("payment_processing", illegalStep(sess.Checkout, checkout.StatusPaymentProcessing))
	}
	from := sess.Checkout.Status
	next := cloneState(sess.Checkout)
	if err := next.Advance(checkout.StatusPaymentProcessing); err != nil {
		return nil, s.stepFailed("payment_processing", err)
	}
	if next.Personal == nil || next.Shipping == nil || next.Payment == nil {
		return nil, s.stepFailed("payment_processing", validationError("checkout is incomplete"))
	}

	totals := pricing.Compute(view.PricedLines(), next.DiscountPercent())
	status := models.PaymentStatusPending
	intentID := ""

	if next.Payment.Method == models.PaymentMethodCard {
		intentID = next.Payment.PaymentIntentID
		if id := strings.TrimSpace(req.PaymentIntentID); id != "" && id != intentID {
			return nil, s.stepFailed("payment_processing", errForeignIntent)
		}
		if err := s.verifyCardPayment(ctx, sess.ID, next.CheckoutID, intentID, totals); err != nil {
			// the session keeps payment_selection so the customer can retry
			return nil, s.stepFailed("payment_processing", err)
		}
		status = models.PaymentStatusPaid
	}

	claim := "checkout:confirm:" + next.CheckoutID
	first, err := s.claims.MarkOnce(ctx, claim, confirmClaimTTL)
	if err != nil {
		return nil, fmt.Errorf("claim checkout: %w", err)
	}
	if !first {
		return nil, s.stepFailed("payment_processing",
			fmt.Errorf("%w: checkout %s is already being confirmed", checkout.ErrIllegalTransition, next.CheckoutID))
	}

	var result *OrderResult
	err = s.repo.WithTx(ctx, func(tx Repository) error {
		var err error
		result, err = s.writer.Write(ctx, tx, OrderInput{
			SessionID:       sess.ID,
			Personal:        *next.Personal,
			Shipping:        *next.Shipping,
			Items:           view.Items,
			PaymentMethod:   next.Payment.Method,
			PaymentStatus:   status,
			PaymentIntentID: intentID,
			Discount:        next.Discount,
		})
		if err != nil {
			return err
		}

		if intentID != "" {
			if err := tx.ClaimPaymentIntent(ctx, intentID, result.OrderID); err != nil {
				if errors.Is(err, store.ErrIntentUsed) {
					return validationError("payment intent was already used for another order")
				}
				return fmt.Errorf("claim payment intent: %w", err)
			}
		}

		if err := next.Advance(checkout.StatusCompleted); err != nil {
			return err
		}
		next.OrderID = result.OrderID
		next.Totals = &result.Totals
		next.Payment.Total = result.Totals.Total
		if next.Persisted {
			return s.writeCheckout(ctx, tx, sess.ID, from, next)
		}
		return nil
	})
	if err != nil {
		if ferr := s.claims.ForgetOnce(ctx, claim); ferr != nil {
			s.logger.Error("Failed to release checkout claim",
				zap.String("checkout_id", next.CheckoutID),
				zap.Error(ferr))
		}
		return nil, s.persistFailed(ctx, sess, "payment_processing", err)
	}

	if err := s.carts.Clear(ctx, sess.ID); err != nil {
		s.logger.Error("Failed to clear cart after order",
			zap.String("order_id", result.OrderID),
			zap.Error(err))
	}

	s.commit(sess, next, "completed")
	util.CheckoutsCompletedTotal.WithLabelValues(next.Payment.Method).Inc()
	s.logger.Info("Checkout completed",
		zap.String("checkout_id", next.CheckoutID),
		zap.String("order_id", result.OrderID),
		zap.String("payment_status", status))

	return &ConfirmResult{
		OrderID:       result.OrderID,
		PaymentStatus: status,
		Totals:        result.Totals,
	}, nil
}

var errForeignIntent = validationError("payment intent does not belong to this checkout")

// completedCardResult answers a repeated card confirmation for a checkout
// that is already complete, for example when the gateway webhook got there
// first.
func completedCardResult(st *checkout.State, req ConfirmPaymentRequest) (*ConfirmResult, bool) {
	if st == nil || st.Status != checkout.StatusCompleted || st.OrderID == "" || st.Totals == nil {
		return nil, false
	}
	if st.Payment == nil || st.Payment.Method != models.PaymentMethodCard {
		return nil, false
	}
	if id := strings.TrimSpace(req.PaymentIntentID); id != "" && id != st.Payment.PaymentIntentID {
		return nil, false
	}
	return &ConfirmResult{
		OrderID:       st.OrderID,
		PaymentStatus: models.PaymentStatusPaid,
		Totals:        *st.Totals,
	}, true
}

func (s *CheckoutService) verifyCardPayment(ctx context.Context, sessionID, checkoutID, intentID string, totals pricing.Totals) error {
	if intentID == "" {
		return validationError("paymentIntentId is required")
	}
	intent, err := s.gateway.GetIntent(ctx, intentID)
	if err != nil {
		return fmt.Errorf("get payment intent: %w", err)
	}
	if intent.Metadata["session_id"] != sessionID || intent.Metadata["checkout_id"] != checkoutID {
		s.logger.Warn("Payment intent belongs to another checkout",
			zap.String("intent_id", intentID),
			zap.String("checkout_id", checkoutID))
		return errForeignIntent
	}
	if intent.Status != payment.IntentSucceeded {
		return ErrPaymentNotCompleted
	}
	if intent.AmountCents != pricing.ToCents(totals.Total) {
		s.logger.Warn("Payment amount mismatch",
			zap.String("intent_id", intentID),
			zap.Int64("paid_cents", intent.AmountCents),
			zap.Int64("expected_cents", pricing.ToCents(totals.Total)))
		return validationError("payment amount does not match order total")
	}
	return nil
}

// AbandonStale moves idle unfinished checkouts to abandoned and returns how many moved.
func (s *CheckoutService) AbandonStale(ctx context.Context, idleFor time.Duration, limit int) (int, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.AbandonStale")
	defer span.End()

	cutoff := s.now().Add(-idleFor)
	abandoned := 0
	err := s.repo.WithTx(ctx, func(tx Repository) error {
		stale, err := tx.ListStaleCheckouts(ctx, cutoff, limit)
		if err != nil {
			return err
		}
		for i := range stale {
			rec := &stale[i]
			if !checkout.CanTransition(checkout.Status(rec.Status), checkout.StatusAbandoned) {
				continue
			}
			from := rec.Status
			rec.Status = string(checkout.StatusAbandoned)
			if err := tx.UpdateCheckout(ctx, rec, from); err != nil {
				return fmt.Errorf("abandon checkout %s: %w", rec.CheckoutID, err)
			}
			evt := models.CheckoutUpdatedEvent{
				BaseEvent:  newBaseEvent(models.EventTypeCheckoutUpdated, s.now()),
				CheckoutID: rec.CheckoutID,
				SessionID:  rec.SessionID,
				Status:     rec.Status,
				Personal:   rawToMap(rec.Personal),
				Shipping:   rawToMap(rec.Shipping),
				Payment:    rawToMap(rec.Payment),
			}
			if err := tx.AppendOutbox(ctx, evt.EventID, evt.EventType, rec.CheckoutID, evt); err != nil {
				return err
			}
			abandoned++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if abandoned > 0 {
		util.CheckoutsAbandonedTotal.Add(float64(abandoned))
	}
	return abandoned, nil
}

// persistStep stores the customer and checkout snapshot in one transaction.
// The stored checkout must still be at from.
func (s *CheckoutService) persistStep(ctx context.Context, sessionID string, from checkout.Status, st *checkout.State, customer *models.Customer) error {
	return s.repo.WithTx(ctx, func(tx Repository) error {
		if customer != nil {
			if err := tx.UpsertCustomer(ctx, customer); err != nil {
				return fmt.Errorf("upsert customer: %w", err)
			}
		}
		if !st.Persisted {
			return nil
		}
		return s.writeCheckout(ctx, tx, sessionID, from, st)
	})
}

func (s *CheckoutService) writeCheckout(ctx context.Context, tx Repository, sessionID string, from checkout.Status, st *checkout.State) error {
	rec, err := checkoutRecord(sessionID, st)
	if err != nil {
		return err
	}
	if err := tx.UpdateCheckout(ctx, rec, string(from)); err != nil {
		if errors.Is(err, store.ErrStatusConflict) {
			return fmt.Errorf("%w: %w", checkout.ErrIllegalTransition, err)
		}
		return fmt.Errorf("update checkout: %w", err)
	}
	return appendCheckoutEvent(ctx, tx, sessionID, st, s.now())
}

func (s *CheckoutService) commit(sess *session.Session, next *checkout.State, step string) {
	sess.Checkout = next
	sess.MarkDirty()
	util.CheckoutStepsTotal.WithLabelValues(step, "ok").Inc()
}

// persistFailed records a failed write. When the stored checkout was
// abandoned meanwhile, the session follows it so the next initialize
// starts a new checkout.
func (s *CheckoutService) persistFailed(ctx context.Context, sess *session.Session, step string, err error) error {
	if errors.Is(err, store.ErrStatusConflict) && sess.Checkout != nil {
		rec, gerr := s.repo.GetCheckout(ctx, sess.Checkout.CheckoutID)
		if gerr != nil {
			s.logger.Warn("Failed to reload checkout", zap.String("checkout_id", sess.Checkout.CheckoutID), zap.Error(gerr))
		} else if checkout.Status(rec.Status) == checkout.StatusAbandoned {
			abandoned := cloneState(sess.Checkout)
			abandoned.Status = checkout.StatusAbandoned
			sess.Checkout = abandoned
			sess.MarkDirty()
		}
	}
	return s.stepFailed(step, err)
}

func (s *CheckoutService) stepFailed(step string, err error) error {
	util.CheckoutStepsTotal.WithLabelValues(step, "rejected").Inc()
	return err
}

func illegalStep(st *checkout.State, to checkout.Status) error {
	if st == nil {
		return fmt.Errorf("%w: checkout not initialized", checkout.ErrIllegalTransition)
	}
	return checkout.Transition(st.Status, to)
}

func cloneState(st *checkout.State) *checkout.State {
	c := *st
	if st.Payment != nil {
		p := *st.Payment
		c.Payment = &p
	}
	return &c
}

func checkoutRecord(sessionID string, st *checkout.State) (*models.CheckoutRecord, error) {
	rec := &models.CheckoutRecord{
		CheckoutID: st.CheckoutID,
		SessionID:  sessionID,
		Status:     string(st.Status),
	}
	var err error
	if rec.Personal, err = marshalOptional(st.Personal); err != nil {
		return nil, err
	}
	if rec.Shipping, err = marshalOptional(st.Shipping); err != nil {
		return nil, err
	}
	if rec.Payment, err = marshalOptional(st.Payment); err != nil {
		return nil, err
	}
	return rec, nil
}

func appendCheckoutEvent(ctx context.Context, tx Repository, sessionID string, st *checkout.State, now time.Time) error {
	evt := models.CheckoutUpdatedEvent{
		BaseEvent:  newBaseEvent(models.EventTypeCheckoutUpdated, now),
		CheckoutID: st.CheckoutID,
		SessionID:  sessionID,
		Status:     string(st.Status),
		Personal:   toMap(st.Personal),
		Shipping:   toMap(st.Shipping),
		Payment:    toMap(st.Payment),
	}
	if err := tx.AppendOutbox(ctx, evt.EventID, evt.EventType, st.CheckoutID, evt); err != nil {
		return fmt.Errorf("append checkout event: %w", err)
	}
	return nil
}

func marshalOptional[T any](v *T) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func toMap[T any](v *T) map[string]any {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return rawToMap(raw)
}

func rawToMap(raw json.RawMessage) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}
