package broker

import (
	"context"
	"encoding/json"
	"testing"

	"storefront/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventHandler_RoutesByType(t *testing.T) {
	h := NewEventHandler()

	var gotOrder *models.OrderCreatedEvent
	var gotCheckout *models.CheckoutUpdatedEvent
	h.OnOrderCreated(func(_ context.Context, e *models.OrderCreatedEvent) error {
		gotOrder = e
		return nil
	})
	h.OnCheckoutUpdated(func(_ context.Context, e *models.CheckoutUpdatedEvent) error {
		gotCheckout = e
		return nil
	})

	raw, err := json.Marshal(models.OrderCreatedEvent{
		BaseEvent: models.BaseEvent{EventID: "e1", EventType: models.EventTypeOrderCreated},
		OrderID:   "ORD-1-AAAAA",
	})
	require.NoError(t, err)
	require.NoError(t, h.HandleMessage(context.Background(), kafka.Message{Value: raw}))

	require.NotNil(t, gotOrder)
	assert.Equal(t, "ORD-1-AAAAA", gotOrder.OrderID)
	assert.Nil(t, gotCheckout)
}

func TestEventHandler_IgnoresUnregisteredAndUnknown(t *testing.T) {
	h := NewEventHandler()

	raw, err := json.Marshal(models.OrderPaymentStatusEvent{
		BaseEvent: models.BaseEvent{EventType: models.EventTypeOrderPaymentSet},
	})
	require.NoError(t, err)
	assert.NoError(t, h.Handle(context.Background(), raw))

	assert.NoError(t, h.Handle(context.Background(), []byte(`{"event_type":"SOMETHING_ELSE"}`)))
	assert.Error(t, h.Handle(context.Background(), []byte(`not json`)))
}
