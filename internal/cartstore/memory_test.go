package cartstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"storefront/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ Store = (*Memory)(nil)
var _ Store = (*Redis)(nil)

func TestMemory_AddMergesSameProductAndWeight(t *testing.T) {
	m := NewMemory(time.Hour)
	ctx := context.Background()

	first, err := m.Add(ctx, models.CartItem{SessionID: "s1", ProductID: "p1", Weight: "10mg", Quantity: 1})
	require.NoError(t, err)
	second, err := m.Add(ctx, models.CartItem{SessionID: "s1", ProductID: "p1", Weight: "10mg", Quantity: 2})
	require.NoError(t, err)
	_, err = m.Add(ctx, models.CartItem{SessionID: "s1", ProductID: "p1", Weight: "5mg", Quantity: 1})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 3, second.Quantity)

	items, err := m.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestMemory_ConcurrentAddsNeverDuplicate(t *testing.T) {
	m := NewMemory(time.Hour)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Add(ctx, models.CartItem{SessionID: "s1", ProductID: "p1", Quantity: 1})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	items, err := m.Get(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 50, items[0].Quantity)
}

func TestMemory_UpdateAndRemove(t *testing.T) {
	m := NewMemory(time.Hour)
	ctx := context.Background()

	line, err := m.Add(ctx, models.CartItem{SessionID: "s1", ProductID: "p1", Quantity: 1})
	require.NoError(t, err)

	updated, err := m.Update(ctx, "s1", line.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, updated.Quantity)

	_, err = m.Update(ctx, "other", line.ID, 2)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, m.Remove(ctx, "other", line.ID), ErrNotFound)

	removed, err := m.Update(ctx, "s1", line.ID, 0)
	require.NoError(t, err)
	assert.Nil(t, removed)

	items, err := m.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, items)

	assert.ErrorIs(t, m.Remove(ctx, "s1", line.ID), ErrNotFound)
}

func TestMemory_IDsAreUniqueAcrossSessions(t *testing.T) {
	m := NewMemory(time.Hour)
	ctx := context.Background()

	a, err := m.Add(ctx, models.CartItem{SessionID: "s1", ProductID: "p1", Quantity: 1})
	require.NoError(t, err)
	b, err := m.Add(ctx, models.CartItem{SessionID: "s2", ProductID: "p1", Quantity: 1})
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
}

func TestMemory_Clear(t *testing.T) {
	m := NewMemory(time.Hour)
	ctx := context.Background()

	_, err := m.Add(ctx, models.CartItem{SessionID: "s1", ProductID: "p1", Quantity: 1})
	require.NoError(t, err)
	require.NoError(t, m.Clear(ctx, "s1"))

	items, err := m.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestMemory_EvictIdleSessions(t *testing.T) {
	m := NewMemory(time.Hour)
	now := time.Now()
	m.now = func() time.Time { return now }
	ctx := context.Background()

	_, err := m.Add(ctx, models.CartItem{SessionID: "idle", ProductID: "p1", Quantity: 1})
	require.NoError(t, err)

	now = now.Add(50 * time.Minute)
	_, err = m.Add(ctx, models.CartItem{SessionID: "active", ProductID: "p1", Quantity: 1})
	require.NoError(t, err)

	now = now.Add(20 * time.Minute)
	assert.Equal(t, 1, m.Evict())

	idle, err := m.Get(ctx, "idle")
	require.NoError(t, err)
	assert.Empty(t, idle)

	active, err := m.Get(ctx, "active")
	require.NoError(t, err)
	assert.Len(t, active, 1)
}
