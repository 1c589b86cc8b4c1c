package cartstore

import (
	"context"
	"errors"
	"time"

	"storefront/internal/models"
	"storefront/internal/redisclient"
)

// Redis keeps carts in Redis; keys expire with the session TTL.
type Redis struct {
	client *redisclient.Client
	ttl    time.Duration
}

func NewRedis(client *redisclient.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func toItem(sessionID string, line redisclient.CartLine) models.CartItem {
	return models.CartItem{
		ID:        line.ID,
		SessionID: sessionID,
		ProductID: line.ProductID,
		Quantity:  line.Quantity,
		Weight:    line.Weight,
	}
}

func (r *Redis) Get(ctx context.Context, sessionID string) ([]models.CartItem, error) {
	lines, err := r.client.CartLines(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	items := make([]models.CartItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, toItem(sessionID, line))
	}
	return items, nil
}

func (r *Redis) Add(ctx context.Context, item models.CartItem) (*models.CartItem, error) {
	line, err := r.client.AddCartLine(ctx, item.SessionID, item.ProductID, item.Weight, item.Quantity, r.ttl)
	if err != nil {
		return nil, err
	}
	stored := toItem(item.SessionID, *line)
	return &stored, nil
}

func (r *Redis) Update(ctx context.Context, sessionID string, id int64, qty int) (*models.CartItem, error) {
	line, err := r.client.SetCartLineQuantity(ctx, sessionID, id, qty, r.ttl)
	if errors.Is(err, redisclient.ErrLineNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if line == nil {
		return nil, nil
	}
	stored := toItem(sessionID, *line)
	return &stored, nil
}

func (r *Redis) Remove(ctx context.Context, sessionID string, id int64) error {
	_, err := r.Update(ctx, sessionID, id, 0)
	return err
}

func (r *Redis) Clear(ctx context.Context, sessionID string) error {
	return r.client.ClearCart(ctx, sessionID)
}
