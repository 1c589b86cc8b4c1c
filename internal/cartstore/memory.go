package cartstore

import (
	"context"
	"sync"
	"time"

	"storefront/internal/models"
	"storefront/internal/util"

	"go.uber.org/zap"
)

type bucket struct {
	lines       []models.CartItem
	lastTouched time.Time
}

// Memory is an in-process cart arena. Buckets idle longer than the TTL are
// evicted by Run.
type Memory struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	nextID  int64
	ttl     time.Duration
	now     func() time.Time
	logger  *zap.Logger
}

// NewMemory creates an arena whose sessions expire after ttl of inactivity.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		buckets: make(map[string]*bucket),
		ttl:     ttl,
		now:     time.Now,
		logger:  util.GetLogger(),
	}
}

func (m *Memory) touch(sessionID string) *bucket {
	b, ok := m.buckets[sessionID]
	if !ok {
		b = &bucket{}
		m.buckets[sessionID] = b
	}
	b.lastTouched = m.now()
	return b
}

func (m *Memory) Get(_ context.Context, sessionID string) ([]models.CartItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.buckets[sessionID]
	if !ok {
		return []models.CartItem{}, nil
	}
	b.lastTouched = m.now()
	out := make([]models.CartItem, len(b.lines))
	copy(out, b.lines)
	return out, nil
}

func (m *Memory) Add(_ context.Context, item models.CartItem) (*models.CartItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b := m.touch(item.SessionID)
	for i := range b.lines {
		if b.lines[i].ProductID == item.ProductID && b.lines[i].Weight == item.Weight {
			b.lines[i].Quantity += item.Quantity
			line := b.lines[i]
			return &line, nil
		}
	}

	m.nextID++
	line := models.CartItem{
		ID:        m.nextID,
		SessionID: item.SessionID,
		ProductID: item.ProductID,
		Quantity:  item.Quantity,
		Weight:    item.Weight,
	}
	b.lines = append(b.lines, line)
	return &line, nil
}

func (m *Memory) Update(_ context.Context, sessionID string, id int64, qty int) (*models.CartItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.buckets[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	for i := range b.lines {
		if b.lines[i].ID != id {
			continue
		}
		b.lastTouched = m.now()
		if qty <= 0 {
			b.lines = append(b.lines[:i], b.lines[i+1:]...)
			return nil, nil
		}
		b.lines[i].Quantity = qty
		line := b.lines[i]
		return &line, nil
	}
	return nil, ErrNotFound
}

func (m *Memory) Remove(ctx context.Context, sessionID string, id int64) error {
	_, err := m.Update(ctx, sessionID, id, 0)
	return err
}

func (m *Memory) Clear(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.buckets, sessionID)
	return nil
}

// Evict drops buckets idle longer than the TTL and returns how many went.
func (m *Memory) Evict() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-m.ttl)
	evicted := 0
	for sid, b := range m.buckets {
		if b.lastTouched.Before(cutoff) {
			delete(m.buckets, sid)
			evicted++
		}
	}
	return evicted
}

// Run evicts idle sessions every interval until ctx is done.
func (m *Memory) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Evict(); n > 0 {
				util.CartSessionsEvictedTotal.Add(float64(n))
				m.logger.Debug("Evicted idle carts", zap.Int("count", n))
			}
		}
	}
}
