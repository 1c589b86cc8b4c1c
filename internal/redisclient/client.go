package redisclient

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

//go:embed scripts/cart_add.lua
var cartAddScript string

//go:embed scripts/cart_set_qty.lua
var cartSetQtyScript string

// ErrLineNotFound is returned when a cart line id is not in the session's cart.
var ErrLineNotFound = errors.New("cart line not found")

type Client struct {
	rdb          *redis.Client
	addScript    *redis.Script
	setQtyScript *redis.Script
}

// CartLine is the stored shape of one cart line.
type CartLine struct {
	ID        int64  `json:"id"`
	ProductID string `json:"productId"`
	Weight    string `json:"weight"`
	Quantity  int    `json:"quantity"`
}

// LineKey identifies a line by product and weight; adding the same pair merges.
func LineKey(productID, weight string) string {
	return productID + "|" + weight
}

// NewClient creates a new Redis client with Lua scripts loaded
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{
		rdb:          rdb,
		addScript:    redis.NewScript(cartAddScript),
		setQtyScript: redis.NewScript(cartSetQtyScript),
	}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Ping checks connectivity, used by the readiness probe.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func cartIndexKey(sessionID string) string { return fmt.Sprintf("cart:%s:index", sessionID) }
func cartItemsKey(sessionID string) string { return fmt.Sprintf("cart:%s:items", sessionID) }

const cartSeqKey = "cart:seq"

func ttlSeconds(ttl time.Duration) int64 {
	s := int64(ttl / time.Second)
	if s < 1 {
		s = 1
	}
	return s
}

// AddCartLine atomically inserts a line or increments the quantity of the
// existing line with the same product and weight.
func (c *Client) AddCartLine(ctx context.Context, sessionID, productID, weight string, quantity int, ttl time.Duration) (*CartLine, error) {
	keys := []string{cartIndexKey(sessionID), cartItemsKey(sessionID), cartSeqKey}
	result, err := c.addScript.Run(ctx, c.rdb, keys,
		LineKey(productID, weight), productID, weight, quantity, ttlSeconds(ttl)).Result()
	if err != nil {
		return nil, fmt.Errorf("cart add script failed: %w", err)
	}

	raw, ok := result.(string)
	if !ok {
		return nil, fmt.Errorf("unexpected script result type")
	}

	var line CartLine
	if err := json.Unmarshal([]byte(raw), &line); err != nil {
		return nil, fmt.Errorf("decode cart line: %w", err)
	}
	return &line, nil
}

// SetCartLineQuantity sets a line's quantity. A quantity of zero or less
// removes the line and returns a nil line.
func (c *Client) SetCartLineQuantity(ctx context.Context, sessionID string, id int64, quantity int, ttl time.Duration) (*CartLine, error) {
	keys := []string{cartIndexKey(sessionID), cartItemsKey(sessionID)}
	result, err := c.setQtyScript.Run(ctx, c.rdb, keys, id, quantity, ttlSeconds(ttl)).Result()
	if err != nil {
		return nil, fmt.Errorf("cart update script failed: %w", err)
	}

	reply, ok := result.([]interface{})
	if !ok || len(reply) != 2 {
		return nil, fmt.Errorf("unexpected script result type")
	}
	status, _ := reply[0].(int64)

	switch status {
	case 0:
		return nil, ErrLineNotFound
	case 2:
		return nil, nil
	}

	raw, _ := reply[1].(string)
	var line CartLine
	if err := json.Unmarshal([]byte(raw), &line); err != nil {
		return nil, fmt.Errorf("decode cart line: %w", err)
	}
	return &line, nil
}

// CartLines returns the session's lines ordered by id.
func (c *Client) CartLines(ctx context.Context, sessionID string) ([]CartLine, error) {
	result, err := c.rdb.HGetAll(ctx, cartItemsKey(sessionID)).Result()
	if err != nil {
		return nil, err
	}

	lines := make([]CartLine, 0, len(result))
	for field, raw := range result {
		var line CartLine
		if err := json.Unmarshal([]byte(raw), &line); err != nil {
			return nil, fmt.Errorf("decode cart line %s: %w", field, err)
		}
		if line.ID == 0 {
			line.ID, _ = strconv.ParseInt(field, 10, 64)
		}
		lines = append(lines, line)
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ID < lines[j].ID })
	return lines, nil
}

// ClearCart drops every line of a session.
func (c *Client) ClearCart(ctx context.Context, sessionID string) error {
	return c.rdb.Del(ctx, cartIndexKey(sessionID), cartItemsKey(sessionID)).Err()
}

// GetValue reads a raw value; ok is false when the key does not exist.
func (c *Client) GetValue(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

// SetValue writes a raw value with a TTL.
func (c *Client) SetValue(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

// Delete removes keys.
func (c *Client) Delete(ctx context.Context, keys ...string) error {
	return c.rdb.Del(ctx, keys...).Err()
}

// MarkOnce records an idempotency key and reports whether this call was the first.
func (c *Client) MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("idempotency:%s", key), "1", ttl).Result()
}

// ForgetOnce clears an idempotency key so the work can be retried.
func (c *Client) ForgetOnce(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("idempotency:%s", key)).Err()
}

// AcquireLock acquires a distributed lock
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), "1", ttl).Result()
}

// ReleaseLock releases a distributed lock
func (c *Client) ReleaseLock(ctx context.Context, lockKey string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("lock:%s", lockKey)).Err()
}

// Cache is a prefixed byte cache over the client.
type Cache struct {
	client *Client
	prefix string
}

// NewCache scopes cache keys under prefix.
func NewCache(client *Client, prefix string) *Cache {
	return &Cache{client: client, prefix: prefix}
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return c.client.GetValue(ctx, c.prefix+key)
}

func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.SetValue(ctx, c.prefix+key, value, ttl)
}
