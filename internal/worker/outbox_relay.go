package worker

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"

	"go.uber.org/zap"
)

const (
	defaultRelayBatchSize   = 50
	defaultRelayPoll        = 500 * time.Millisecond
	defaultRelayMaxAttempts = 10
	defaultPublishTimeout   = 15 * time.Second
	maxRelayBackoff         = 10 * time.Second
	relayJitterWindow       = 250 * time.Millisecond
)

// OutboxStore is the part of the SQL store the relay needs.
type OutboxStore interface {
	Ping(ctx context.Context) error
	WithTx(ctx context.Context, fn func(tx *store.Store) error) error
}

// outboxTx is what the relay does inside a transaction.
type outboxTx interface {
	FetchUnpublished(ctx context.Context, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublished(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, cause error) error
}

// Publisher sends one stored event to the broker.
type Publisher interface {
	PublishOutbox(ctx context.Context, evt models.OutboxEvent) error
}

// RelayConfig tunes the relay loop.
type RelayConfig struct {
	BatchSize    int
	PollInterval time.Duration
	MaxAttempts  int
}

// OutboxRelay moves committed outbox rows to the broker. Rows are locked
// with SKIP LOCKED so several relays can run side by side.
type OutboxRelay struct {
	db          OutboxStore
	withTx      func(ctx context.Context, fn func(tx outboxTx) error) error
	publisher   Publisher
	batchSize   int
	maxAttempts int
	interval    time.Duration
	jitter      *rand.Rand
	logger      *zap.Logger
}

// NewOutboxRelay creates a relay over the SQL store.
func NewOutboxRelay(db OutboxStore, publisher Publisher, cfg RelayConfig) *OutboxRelay {
	r := newOutboxRelay(publisher, cfg)
	r.db = db
	r.withTx = func(ctx context.Context, fn func(tx outboxTx) error) error {
		return db.WithTx(ctx, func(tx *store.Store) error { return fn(tx) })
	}
	return r
}

func newOutboxRelay(publisher Publisher, cfg RelayConfig) *OutboxRelay {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultRelayBatchSize
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultRelayPoll
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultRelayMaxAttempts
	}
	return &OutboxRelay{
		publisher:   publisher,
		batchSize:   cfg.BatchSize,
		maxAttempts: cfg.MaxAttempts,
		interval:    cfg.PollInterval,
		jitter:      rand.New(rand.NewSource(time.Now().UnixNano())),
		logger:      util.GetLogger(),
	}
}

// Run polls until ctx is done. Batch errors back off exponentially.
func (r *OutboxRelay) Run(ctx context.Context) error {
	if r.db != nil {
		if err := r.db.Ping(ctx); err != nil {
			return fmt.Errorf("database ping failed: %w", err)
		}
	}
	r.logger.Info("Starting outbox relay",
		zap.Int("batch_size", r.batchSize),
		zap.Int("max_attempts", r.maxAttempts))

	backoff := r.interval
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Outbox relay stopping")
			return ctx.Err()
		default:
		}

		processed, err := r.processBatch(ctx)
		if err != nil {
			r.logger.Error("Outbox relay batch error", zap.Error(err))
			util.OutboxFailedTotal.WithLabelValues("batch").Inc()
			backoff = nextBackoff(backoff, r.interval, maxRelayBackoff)
			if err := sleep(ctx, r.withJitter(backoff)); err != nil {
				return err
			}
			continue
		}

		backoff = r.interval
		if processed {
			continue
		}
		if err := sleep(ctx, r.withJitter(r.interval)); err != nil {
			return err
		}
	}
}

// processBatch publishes one batch and reports whether anything was pending.
func (r *OutboxRelay) processBatch(ctx context.Context) (bool, error) {
	processed := false
	err := r.withTx(ctx, func(tx outboxTx) error {
		events, err := tx.FetchUnpublished(ctx, r.batchSize, r.maxAttempts)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			return nil
		}
		processed = true

		for _, evt := range events {
			fields := []zap.Field{
				zap.Int64("outbox_id", evt.ID),
				zap.String("event_id", evt.EventID),
				zap.String("event_type", evt.EventType),
				zap.String("aggregate_id", evt.AggregateID),
				zap.Int("attempts", evt.Attempts),
			}

			pubCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
			err := r.publisher.PublishOutbox(pubCtx, evt)
			cancel()
			if err != nil {
				reason := "publish"
				if evt.Attempts+1 >= r.maxAttempts {
					reason = "max_attempts"
					r.logger.Error("Outbox event will not be retried", append(fields, zap.Error(err))...)
				} else {
					r.logger.Warn("Outbox publish failed", append(fields, zap.Error(err))...)
				}
				util.OutboxFailedTotal.WithLabelValues(reason).Inc()
				if markErr := tx.MarkFailed(ctx, evt.ID, err); markErr != nil {
					return fmt.Errorf("mark failure %d: %w", evt.ID, markErr)
				}
				continue
			}

			if err := tx.MarkPublished(ctx, evt.ID); err != nil {
				return fmt.Errorf("mark published %d: %w", evt.ID, err)
			}
			util.OutboxPublishedTotal.Inc()
			r.logger.Debug("Outbox event published", fields...)
		}
		return nil
	})
	return processed, err
}

func (r *OutboxRelay) withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + time.Duration(r.jitter.Int63n(int64(relayJitterWindow)))
}

func nextBackoff(current, base, max time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	next := current * 2
	if next > max {
		return max
	}
	return next
}
