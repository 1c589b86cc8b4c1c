package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"storefront/internal/models"
	"storefront/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher relays stored outbox events to the broker
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishOutbox publishes a stored event keyed by its aggregate id.
func (ep *EventPublisher) PublishOutbox(ctx context.Context, evt models.OutboxEvent) error {
	return ep.producer.PublishRaw(ctx, evt.AggregateID, evt.Payload, map[string]string{
		"event_id":   evt.EventID,
		"event_type": evt.EventType,
	})
}

// EventHandler handles incoming events
type EventHandler struct {
	onCheckoutUpdated    func(context.Context, *models.CheckoutUpdatedEvent) error
	onOrderLineCreated   func(context.Context, *models.OrderLineCreatedEvent) error
	onOrderCreated       func(context.Context, *models.OrderCreatedEvent) error
	onOrderPaymentStatus func(context.Context, *models.OrderPaymentStatusEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnCheckoutUpdated registers a handler for CheckoutUpdated events
func (eh *EventHandler) OnCheckoutUpdated(handler func(context.Context, *models.CheckoutUpdatedEvent) error) {
	eh.onCheckoutUpdated = handler
}

// OnOrderLineCreated registers a handler for OrderLineCreated events
func (eh *EventHandler) OnOrderLineCreated(handler func(context.Context, *models.OrderLineCreatedEvent) error) {
	eh.onOrderLineCreated = handler
}

// OnOrderCreated registers a handler for OrderCreated events
func (eh *EventHandler) OnOrderCreated(handler func(context.Context, *models.OrderCreatedEvent) error) {
	eh.onOrderCreated = handler
}

// OnOrderPaymentStatus registers a handler for payment status changes
func (eh *EventHandler) OnOrderPaymentStatus(handler func(context.Context, *models.OrderPaymentStatusEvent) error) {
	eh.onOrderPaymentStatus = handler
}

func decodeAndCall[T any](ctx context.Context, raw []byte, handler func(context.Context, *T) error) error {
	if handler == nil {
		return nil
	}
	var event T
	if err := json.Unmarshal(raw, &event); err != nil {
		return fmt.Errorf("failed to unmarshal %T: %w", event, err)
	}
	return handler(ctx, &event)
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	return eh.Handle(ctx, msg.Value)
}

// Handle routes a raw event payload by its event_type.
func (eh *EventHandler) Handle(ctx context.Context, raw []byte) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(raw, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	switch baseEvent.EventType {
	case models.EventTypeCheckoutUpdated:
		return decodeAndCall(ctx, raw, eh.onCheckoutUpdated)
	case models.EventTypeOrderLineCreated:
		return decodeAndCall(ctx, raw, eh.onOrderLineCreated)
	case models.EventTypeOrderCreated:
		return decodeAndCall(ctx, raw, eh.onOrderCreated)
	case models.EventTypeOrderPaymentSet:
		return decodeAndCall(ctx, raw, eh.onOrderPaymentStatus)
	default:
		util.GetLogger().Debug("Unhandled event type", zap.String("event_type", baseEvent.EventType))
	}

	return nil
}
