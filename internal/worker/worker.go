// Package worker runs the background loops behind the request path: the
// outbox relay, the broker consumers that mirror and notify, and the
// periodic sweepers.
package worker

import (
	"context"
	"time"

	"storefront/internal/broker"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// EventWorker consumes the event topic with one consumer group and routes
// messages through an EventHandler.
type EventWorker struct {
	name         string
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewEventWorker creates a new event worker
func NewEventWorker(name string, consumer *broker.Consumer, eventHandler *broker.EventHandler) *EventWorker {
	return &EventWorker{
		name:         name,
		consumer:     consumer,
		eventHandler: eventHandler,
		logger:       util.GetLogger(),
	}
}

// Start blocks until ctx is done.
func (w *EventWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker", zap.String("worker", w.name))
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *EventWorker) Stop() error {
	w.logger.Info("Stopping worker", zap.String("worker", w.name))
	return w.consumer.Close()
}

// ProcessedStore tracks which events a consumer already handled.
type ProcessedStore interface {
	IsEventProcessed(ctx context.Context, eventID, consumer string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType, consumer string) error
}

// once runs fn unless consumer already processed eventID, then records it.
func once(ctx context.Context, store ProcessedStore, consumer, eventID, eventType string, fn func() error) error {
	done, err := store.IsEventProcessed(ctx, eventID, consumer)
	if err != nil {
		return err
	}
	if done {
		util.GetLogger().Debug("Event already processed",
			zap.String("consumer", consumer),
			zap.String("event_id", eventID))
		return nil
	}
	if err := fn(); err != nil {
		return err
	}
	return store.MarkEventProcessed(ctx, eventID, eventType, consumer)
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
