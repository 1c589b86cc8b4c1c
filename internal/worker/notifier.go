package worker

import (
	"context"
	"fmt"

	"storefront/internal/broker"
	"storefront/internal/mailer"
	"storefront/internal/models"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// NotificationConsumer is the consumer name recorded in processed_events.
const NotificationConsumer = "notification"

// NotificationWorker emails the order confirmation once per order.
type NotificationWorker struct {
	sender mailer.Sender
	store  ProcessedStore
	logger *zap.Logger
}

// NewNotificationWorker creates a new notification worker
func NewNotificationWorker(sender mailer.Sender, store ProcessedStore) *NotificationWorker {
	return &NotificationWorker{
		sender: sender,
		store:  store,
		logger: util.GetLogger(),
	}
}

// Register wires the notifier into an event handler.
func (n *NotificationWorker) Register(h *broker.EventHandler) {
	h.OnOrderCreated(n.HandleOrderCreated)
}

// HandleOrderCreated sends the confirmation. Orders without an email are
// acknowledged without sending.
func (n *NotificationWorker) HandleOrderCreated(ctx context.Context, evt *models.OrderCreatedEvent) error {
	if evt.Email == "" {
		n.logger.Info("Order has no email, skipping confirmation", zap.String("order_id", evt.OrderID))
		util.EmailsSentTotal.WithLabelValues("skipped").Inc()
		return nil
	}

	return once(ctx, n.store, NotificationConsumer, evt.EventID, evt.EventType, func() error {
		msg, err := mailer.OrderConfirmation(*evt)
		if err != nil {
			util.EmailsSentTotal.WithLabelValues("error").Inc()
			return fmt.Errorf("render confirmation: %w", err)
		}
		if err := n.sender.Send(ctx, msg); err != nil {
			util.EmailsSentTotal.WithLabelValues("error").Inc()
			return fmt.Errorf("send confirmation: %w", err)
		}
		util.EmailsSentTotal.WithLabelValues("sent").Inc()
		n.logger.Info("Order confirmation sent",
			zap.String("order_id", evt.OrderID),
			zap.String("email", evt.Email))
		return nil
	})
}
