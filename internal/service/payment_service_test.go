package service

import (
	"context"
	"testing"
	"time"

	"storefront/internal/checkout"
	"storefront/internal/models"
	"storefront/internal/payment"
	"storefront/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func seedPaidOrder(repo *fakeRepo, orderID, intentID string, lines int) {
	for i := 0; i < lines; i++ {
		_ = repo.InsertOrderLine(context.Background(), &models.Order{
			OrderID:         orderID,
			PaymentMethod:   models.PaymentMethodCard,
			PaymentStatus:   models.PaymentStatusPending,
			PaymentIntentID: intentID,
		})
	}
}

func TestHandleWebhook_UpdatesOrdersOnce(t *testing.T) {
	repo := newFakeRepo()
	seedPaidOrder(repo, "ORD-1-AAAAA", "pi_1", 2)
	seedPaidOrder(repo, "ORD-2-BBBBB", "pi_other", 1)

	gw := &mockGateway{}
	gw.On("ParseWebhook", []byte("payload"), "sig").
		Return(&payment.Event{ID: "evt_1", Type: payment.EventIntentSucceeded, IntentID: "pi_1", Status: "succeeded"}, nil)
	svc := NewPaymentService(repo, nil, gw, newMemoryDeduper())

	require.NoError(t, svc.HandleWebhook(context.Background(), []byte("payload"), "sig"))
	require.NoError(t, svc.HandleWebhook(context.Background(), []byte("payload"), "sig"))

	assert.Equal(t, models.PaymentStatusPaid, repo.orders[0].PaymentStatus)
	assert.Equal(t, models.PaymentStatusPaid, repo.orders[1].PaymentStatus)
	assert.Equal(t, models.PaymentStatusPending, repo.orders[2].PaymentStatus)

	events := repo.eventsOfType(models.EventTypeOrderPaymentSet)
	require.Len(t, events, 1, "redelivery must not emit a second event")
	assert.Equal(t, "ORD-1-AAAAA", events[0].AggregateID)
}

func TestHandleWebhook_FailedPaymentAndIgnoredTypes(t *testing.T) {
	repo := newFakeRepo()
	seedPaidOrder(repo, "ORD-1-AAAAA", "pi_1", 1)

	gw := &mockGateway{}
	gw.On("ParseWebhook", []byte("failed"), "sig").
		Return(&payment.Event{ID: "evt_2", Type: payment.EventIntentFailed, IntentID: "pi_1"}, nil)
	gw.On("ParseWebhook", []byte("other"), "sig").
		Return(&payment.Event{ID: "evt_3", Type: "charge.refunded"}, nil)
	svc := NewPaymentService(repo, nil, gw, newMemoryDeduper())

	require.NoError(t, svc.HandleWebhook(context.Background(), []byte("other"), "sig"))
	assert.Equal(t, models.PaymentStatusPending, repo.orders[0].PaymentStatus)

	require.NoError(t, svc.HandleWebhook(context.Background(), []byte("failed"), "sig"))
	assert.Equal(t, models.PaymentStatusFailed, repo.orders[0].PaymentStatus)
}

func TestHandleWebhook_InvalidSignature(t *testing.T) {
	gw := &mockGateway{}
	gw.On("ParseWebhook", mock.Anything, "bad").Return(nil, payment.ErrInvalidSignature)
	svc := NewPaymentService(newFakeRepo(), nil, gw, newMemoryDeduper())

	err := svc.HandleWebhook(context.Background(), []byte("{}"), "bad")
	assert.ErrorIs(t, err, ErrValidation)
	assert.ErrorIs(t, err, payment.ErrInvalidSignature)
}

func TestHandleWebhook_FailureAllowsRedelivery(t *testing.T) {
	repo := newFakeRepo()
	seedPaidOrder(repo, "ORD-1-AAAAA", "pi_1", 1)
	repo.failOn = "UpdatePaymentStatusByIntent"

	gw := &mockGateway{}
	gw.On("ParseWebhook", mock.Anything, mock.Anything).
		Return(&payment.Event{ID: "evt_1", Type: payment.EventIntentSucceeded, IntentID: "pi_1"}, nil)
	dedup := newMemoryDeduper()
	svc := NewPaymentService(repo, nil, gw, dedup)

	require.Error(t, svc.HandleWebhook(context.Background(), nil, "sig"))
	assert.Empty(t, dedup.keys)

	repo.failOn = ""
	require.NoError(t, svc.HandleWebhook(context.Background(), nil, "sig"))
	assert.Equal(t, models.PaymentStatusPaid, repo.orders[0].PaymentStatus)
}

func TestPaymentCreateIntent_UsesSessionTotal(t *testing.T) {
	carts, _ := newTestCartService(product("p1", "10"))
	gw := &mockGateway{}
	svc := NewPaymentService(newFakeRepo(), carts, gw, nil)
	sess := session.NewSession()
	ctx := context.Background()

	_, err := svc.CreateIntent(ctx, sess)
	assert.ErrorIs(t, err, ErrEmptyCart)

	_, err = carts.Add(ctx, sess.ID, AddToCartRequest{ProductID: "p1", Quantity: 7})
	require.NoError(t, err)

	gw.On("CreateIntent", mock.Anything, int64(9500), mock.Anything).
		Return(&payment.Intent{ID: "pi_9", ClientSecret: "secret"}, nil).Once()

	intent, err := svc.CreateIntent(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, "secret", intent.ClientSecret)
	gw.AssertExpectations(t)
}

func TestPaymentIntentStatus_HidesSecret(t *testing.T) {
	gw := &mockGateway{}
	gw.On("GetIntent", mock.Anything, "pi_1").
		Return(&payment.Intent{ID: "pi_1", ClientSecret: "secret", Status: payment.IntentSucceeded}, nil)
	svc := NewPaymentService(newFakeRepo(), nil, gw, nil)

	intent, err := svc.IntentStatus(context.Background(), "pi_1")
	require.NoError(t, err)
	assert.Empty(t, intent.ClientSecret)
	assert.Equal(t, payment.IntentSucceeded, intent.Status)

	_, err = svc.IntentStatus(context.Background(), " ")
	assert.ErrorIs(t, err, ErrValidation)
}

// webhookFixture is a card checkout left at payment selection whose session
// lives in a store the webhook can load.
type webhookFixture struct {
	*checkoutFixture
	sessions *session.MemoryStore
	payments *PaymentService
}

func newWebhookFixture(t *testing.T) *webhookFixture {
	t.Helper()
	f := newCheckoutFixture(product("p1", "25"))
	f.addToCart(t, "p1", 2)
	f.toCardSelection(t, "pi_1", 5999)
	f.paidIntent("pi_1", 5999, f.intentMetadata())

	sessions := session.NewMemoryStore(time.Hour)
	require.NoError(t, sessions.Save(context.Background(), f.sess))

	payments := NewPaymentService(f.repo, f.carts, f.gateway, newMemoryDeduper()).
		WithCheckout(f.checkout, sessions)
	return &webhookFixture{checkoutFixture: f, sessions: sessions, payments: payments}
}

func (f *webhookFixture) succeeded(eventID string, metadata map[string]string) {
	f.gateway.On("ParseWebhook", []byte(eventID), "sig").
		Return(&payment.Event{ID: eventID, Type: payment.EventIntentSucceeded, IntentID: "pi_1",
			Status: payment.IntentSucceeded, Metadata: metadata}, nil)
}

func TestHandleWebhook_CompletesUnconfirmedCardCheckout(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()
	checkoutID := f.sess.Checkout.CheckoutID
	f.succeeded("evt_1", f.intentMetadata())
	f.succeeded("evt_2", f.intentMetadata())

	require.NoError(t, f.payments.HandleWebhook(ctx, []byte("evt_1"), "sig"))

	require.Len(t, f.repo.orders, 1)
	assert.Equal(t, "pi_1", f.repo.orders[0].PaymentIntentID)
	assert.Equal(t, models.PaymentStatusPaid, f.repo.orders[0].PaymentStatus)
	assert.Len(t, f.repo.eventsOfType(models.EventTypeOrderCreated), 1)

	view, err := f.carts.View(ctx, f.sess.ID)
	require.NoError(t, err)
	assert.True(t, view.Empty())

	rec, _ := f.repo.checkout(checkoutID)
	assert.Equal(t, "completed", rec.Status)

	stored, err := f.sessions.Load(ctx, f.sess.ID)
	require.NoError(t, err)
	require.Equal(t, checkout.StatusCompleted, stored.Checkout.Status)
	orderID := stored.Checkout.OrderID
	assert.Equal(t, f.repo.orders[0].OrderID, orderID)

	// a second event for the same intent finds the order
	require.NoError(t, f.payments.HandleWebhook(ctx, []byte("evt_2"), "sig"))
	assert.Len(t, f.repo.orders, 1)

	// the browser confirming afterwards gets the same order
	res, err := f.checkout.ConfirmPayment(ctx, stored, ConfirmPaymentRequest{PaymentIntentID: "pi_1"})
	require.NoError(t, err)
	assert.Equal(t, orderID, res.OrderID)
	assert.Len(t, f.repo.orders, 1)
}

func TestHandleWebhook_BrowserConfirmedFirst(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()
	f.succeeded("evt_1", f.intentMetadata())

	_, err := f.checkout.ConfirmPayment(ctx, f.sess, ConfirmPaymentRequest{})
	require.NoError(t, err)

	require.NoError(t, f.payments.HandleWebhook(ctx, []byte("evt_1"), "sig"))
	assert.Len(t, f.repo.orders, 1)
	assert.Len(t, f.repo.eventsOfType(models.EventTypeOrderCreated), 1)
}

func TestHandleWebhook_UnknownSessionIsAcknowledged(t *testing.T) {
	f := newWebhookFixture(t)
	f.succeeded("evt_1", map[string]string{"session_id": "gone", "checkout_id": f.sess.Checkout.CheckoutID})

	require.NoError(t, f.payments.HandleWebhook(context.Background(), []byte("evt_1"), "sig"))
	assert.Empty(t, f.repo.orders)
}
