package worker

import (
	"context"
	"time"

	"storefront/internal/cartstore"
	"storefront/internal/util"

	"go.uber.org/zap"
)

const sweepBatchSize = 200

// Abandoner moves idle checkouts to abandoned.
type Abandoner interface {
	AbandonStale(ctx context.Context, idleFor time.Duration, limit int) (int, error)
}

// Locker is a cluster-wide try-lock.
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string) error
}

// AbandonmentSweeper periodically abandons idle checkouts. With a Locker
// only one instance sweeps per tick.
type AbandonmentSweeper struct {
	abandoner Abandoner
	locker    Locker
	idleFor   time.Duration
	every     time.Duration
	logger    *zap.Logger
}

// NewAbandonmentSweeper creates a sweeper; locker may be nil.
func NewAbandonmentSweeper(abandoner Abandoner, locker Locker, idleFor, every time.Duration) *AbandonmentSweeper {
	if every <= 0 {
		every = 15 * time.Minute
	}
	return &AbandonmentSweeper{
		abandoner: abandoner,
		locker:    locker,
		idleFor:   idleFor,
		every:     every,
		logger:    util.GetLogger(),
	}
}

// Run sweeps every interval until ctx is done.
func (s *AbandonmentSweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.Error("Checkout sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep abandons stale checkouts in batches and returns the total moved.
func (s *AbandonmentSweeper) Sweep(ctx context.Context) (int, error) {
	if s.locker != nil {
		ok, err := s.locker.AcquireLock(ctx, "checkout-sweeper", s.every)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, nil
		}
		defer func() {
			if err := s.locker.ReleaseLock(ctx, "checkout-sweeper"); err != nil {
				s.logger.Warn("Failed to release sweeper lock", zap.Error(err))
			}
		}()
	}

	total := 0
	for {
		n, err := s.abandoner.AbandonStale(ctx, s.idleFor, sweepBatchSize)
		if err != nil {
			return total, err
		}
		total += n
		if n < sweepBatchSize {
			break
		}
	}
	if total > 0 {
		s.logger.Info("Abandoned idle checkouts", zap.Int("count", total))
	}
	return total, nil
}

// CartJanitor evicts idle carts from the in-memory arena.
type CartJanitor struct {
	arena    *cartstore.Memory
	interval time.Duration
}

// NewCartJanitor creates a janitor for arena.
func NewCartJanitor(arena *cartstore.Memory, interval time.Duration) *CartJanitor {
	if interval <= 0 {
		interval = time.Hour
	}
	return &CartJanitor{arena: arena, interval: interval}
}

// Run blocks until ctx is done.
func (j *CartJanitor) Run(ctx context.Context) error {
	j.arena.Run(ctx, j.interval)
	return ctx.Err()
}
